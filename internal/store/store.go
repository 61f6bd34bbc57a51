package store

import (
	"context"
	"errors"

	"chatrelay/internal/models"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when registering an email that is taken.
var ErrDuplicateEmail = errors.New("email already in use")

// Store is the persistence contract shared by the REST layer and the relay.
type Store interface {
	// Users
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	SetUserVerified(ctx context.Context, id string) error
	ListUsers(ctx context.Context, role models.Role, page, limit int) ([]models.User, int64, error)

	// Groups and membership
	CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	AddUserToGroup(ctx context.Context, groupID, userID string) error
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
	GetGroupMembers(ctx context.Context, groupID string) ([]models.User, error)
	GetUserGroups(ctx context.Context, userID string) ([]models.Group, error)
	IsUserInGroup(ctx context.Context, userID, groupID string) (bool, error)

	// Messages
	CreateMessage(ctx context.Context, senderID string, target models.Target, content string) (*models.Message, error)
	MessagesBetweenUsers(ctx context.Context, userID, otherID string) ([]models.Message, error)
	GroupMessages(ctx context.Context, groupID string) ([]models.Message, error)

	// Audit logs
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}
