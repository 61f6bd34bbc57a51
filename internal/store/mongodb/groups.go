package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	if group.ID == "" {
		group.ID = primitive.NewObjectID().Hex()
	}
	if group.Members == nil {
		group.Members = []string{}
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Collection(collGroups).InsertOne(ctx, group)
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := s.db.Collection(collGroups).FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	cur, err := s.db.Collection(collGroups).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	groups := make([]models.Group, 0)
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) AddUserToGroup(ctx context.Context, groupID, userID string) error {
	res, err := s.db.Collection(collGroups).UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$addToSet": bson.M{"members": userID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	res, err := s.db.Collection(collGroups).UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$pull": bson.M{"members": userID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetGroupMembers(ctx context.Context, groupID string) ([]models.User, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(group.Members) == 0 {
		return []models.User{}, nil
	}

	cur, err := s.db.Collection(collUsers).Find(ctx, bson.M{"_id": bson.M{"$in": group.Members}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	members := make([]models.User, 0, len(group.Members))
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) GetUserGroups(ctx context.Context, userID string) ([]models.Group, error) {
	cur, err := s.db.Collection(collGroups).Find(ctx, bson.M{"members": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	groups := make([]models.Group, 0)
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error) {
	n, err := s.db.Collection(collGroups).CountDocuments(ctx,
		bson.M{"_id": groupID, "members": userID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
