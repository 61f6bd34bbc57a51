// Package mongodb implements the store contract on top of a MongoDB database.
package mongodb

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers     = "users"
	collGroups    = "groups"
	collMessages  = "messages"
	collAuditLogs = "audit_logs"
)

type Store struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewStore(db *mongo.Database, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// EnsureIndexes creates the indexes the queries below rely on. Safe to call
// on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.db.Collection(collUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "verification_token", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collGroups).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collMessages).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return err
}
