package relay

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

// TokenVerifier checks the bearer credential presented on the WebSocket
// upgrade and resolves the identity it references. Every failure path
// denies: authentication fails closed.
type TokenVerifier struct {
	secret []byte
	store  Store
}

func NewTokenVerifier(secret string, st Store) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), store: st}
}

// Verify returns the authenticated, verified identity for token, or an auth
// error that closes the session.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*models.User, *Error) {
	if token == "" {
		return nil, authError("Authentication token required")
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, authError("Invalid authentication token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authError("Invalid authentication token")
	}
	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return nil, authError("Invalid authentication token")
	}

	user, err := v.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, authError("User not found")
		}
		return nil, authError("Invalid authentication token")
	}
	if !user.IsVerified {
		return nil, authError("Email verification required")
	}
	return user, nil
}
