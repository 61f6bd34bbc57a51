package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatrelay/internal/models"
)

func (s *Store) CreateMessage(ctx context.Context, senderID string, target models.Target, content string) (*models.Message, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	msg := &models.Message{
		ID:        primitive.NewObjectID().Hex(),
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if receiverID, ok := target.Receiver(); ok {
		msg.ReceiverID = receiverID
	}
	if groupID, ok := target.Group(); ok {
		msg.GroupID = groupID
	}

	if _, err := s.db.Collection(collMessages).InsertOne(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) MessagesBetweenUsers(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID, "receiver_id": otherID},
		bson.M{"sender_id": otherID, "receiver_id": userID},
	}}
	return s.findMessages(ctx, filter)
}

func (s *Store) GroupMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	return s.findMessages(ctx, bson.M{"group_id": groupID})
}

func (s *Store) findMessages(ctx context.Context, filter bson.M) ([]models.Message, error) {
	cur, err := s.db.Collection(collMessages).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
