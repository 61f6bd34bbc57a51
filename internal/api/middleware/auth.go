package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

const (
	// Context keys set by RequireAuth.
	CtxUserKey   = "user"
	CtxUserIDKey = "user_id"
	CtxRoleKey   = "role"
)

type AuthMiddleware struct {
	jwtSecret string
	store     store.Store
}

func NewAuthMiddleware(jwtSecret string, st store.Store) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret, store: st}
}

// RequireAuth validates the bearer token and loads the referenced user into
// the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header is required")
			return
		}
		tokenString := authHeader
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(am.jwtSecret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid token claims")
			return
		}
		userID, ok := claims["id"].(string)
		if !ok || userID == "" {
			abortUnauthorized(c, "invalid user ID in token")
			return
		}

		user, err := am.store.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				abortUnauthorized(c, "user no longer exists")
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
				Code:    http.StatusInternalServerError,
				Message: "Authentication failed",
			})
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxRoleKey, user.Role)
		c.Next()
	}
}

// RequireVerified gates routes behind email verification. Must run after
// RequireAuth.
func (am *AuthMiddleware) RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsVerified {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Code:    http.StatusForbidden,
				Message: "Email verification required",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin gates routes behind the admin role. Must run after
// RequireAuth.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Code:    http.StatusForbidden,
				Message: "Admin access required",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user loaded by RequireAuth.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: message,
	})
}
