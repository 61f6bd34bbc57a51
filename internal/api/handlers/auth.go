package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chatrelay/internal/email"
	"chatrelay/internal/models"
	"chatrelay/internal/store"
)

type AuthHandler struct {
	store     store.Store
	mailer    *email.Mailer
	jwtSecret string
	jwtExpire time.Duration
	logger    *slog.Logger
}

func NewAuthHandler(st store.Store, mailer *email.Mailer, jwtSecret string, jwtExpire time.Duration, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		store:     st,
		mailer:    mailer,
		jwtSecret: jwtSecret,
		jwtExpire: jwtExpire,
		logger:    logger,
	}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates an account and sends a verification email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body models.RegisterRequest true "Registration data"
// @Success      201 {object} models.SuccessResponse
// @Failure      400 {object} models.ErrorResponse
// @Failure      409 {object} models.ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to create user",
		})
		return
	}

	user := &models.User{
		Name:              req.Name,
		FirstName:         req.FirstName,
		Email:             req.Email,
		Country:           req.Country,
		Password:          string(hashed),
		Role:              models.RoleUser,
		VerificationToken: uuid.NewString(),
	}

	created, err := h.store.CreateUser(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Code:    http.StatusConflict,
				Message: "Email already registered",
			})
			return
		}
		h.logger.Error("failed to create user", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Failed to create user",
		})
		return
	}

	// Mail delivery must not block registration.
	go func(to, token string) {
		if err := h.mailer.SendVerificationEmail(to, token); err != nil {
			h.logger.Error("failed to send verification email", "to", to, "error", err)
		}
	}(created.Email, created.VerificationToken)

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Message: "User registered. Please check your email to verify your account.",
	})
}

// Login godoc
// @Summary      Log in
// @Description  Returns a JWT for a verified account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body models.LoginRequest true "Credentials"
// @Success      200 {object} models.LoginResponse
// @Failure      400 {object} models.ErrorResponse
// @Failure      401 {object} models.ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    http.StatusBadRequest,
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "Invalid email or password",
			})
			return
		}
		h.logger.Error("failed to load user", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Login failed",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Code:    http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
		return
	}

	if !user.IsVerified {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Code:    http.StatusUnauthorized,
			Message: "Email verification required",
		})
		return
	}

	token, err := h.signToken(user)
	if err != nil {
		h.logger.Error("failed to sign token", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Login failed",
		})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Success: true,
		Token:   token,
		User: models.LoginUser{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
	})
}

// Verify godoc
// @Summary      Verify email address
// @Description  Marks the account behind the token as verified
// @Tags         auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} models.SuccessResponse
// @Failure      404 {object} models.ErrorResponse
// @Router       /auth/verify/{token} [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	token := c.Param("token")

	user, err := h.store.GetUserByVerificationToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Code:    http.StatusNotFound,
				Message: "Invalid or expired verification token",
			})
			return
		}
		h.logger.Error("failed to look up verification token", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Verification failed",
		})
		return
	}

	if err := h.store.SetUserVerified(c.Request.Context(), user.ID); err != nil {
		h.logger.Error("failed to mark user verified", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Verification failed",
		})
		return
	}

	go func(to, name string) {
		if err := h.mailer.SendWelcomeEmail(to, name); err != nil {
			h.logger.Error("failed to send welcome email", "to", to, "error", err)
		}
	}(user.Email, user.FirstName)

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Email verified. You can now log in.",
	})
}

func (h *AuthHandler) signToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"id":   user.ID,
		"role": string(user.Role),
		"exp":  time.Now().Add(h.jwtExpire).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
