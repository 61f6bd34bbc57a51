package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"chatrelay/internal/api/handlers"
	"chatrelay/internal/api/middleware"
)

// Router wires handlers and middleware onto a gin engine.
type Router struct {
	auth      *handlers.AuthHandler
	users     *handlers.UserHandler
	groups    *handlers.GroupHandler
	messages  *handlers.MessageHandler
	admin     *handlers.AdminHandler
	ws        *handlers.WebSocketHandler
	authMW    *middleware.AuthMiddleware
	rateLimit *middleware.RateLimitMiddleware
}

func NewRouter(
	auth *handlers.AuthHandler,
	users *handlers.UserHandler,
	groups *handlers.GroupHandler,
	messages *handlers.MessageHandler,
	admin *handlers.AdminHandler,
	ws *handlers.WebSocketHandler,
	authMW *middleware.AuthMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
) *Router {
	return &Router{
		auth:      auth,
		users:     users,
		groups:    groups,
		messages:  messages,
		admin:     admin,
		ws:        ws,
		authMW:    authMW,
		rateLimit: rateLimit,
	}
}

func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogAPI())
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Relay socket. Authentication happens inside the relay handshake.
	engine.GET("/ws", r.ws.Serve)

	v1 := engine.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", r.rateLimit.RateLimitIP(5, time.Minute), r.auth.Register)
		auth.POST("/login", r.rateLimit.RateLimitIP(10, time.Minute), r.auth.Login)
		auth.GET("/verify/:token", r.auth.Verify)
	}

	authed := v1.Group("")
	authed.Use(r.authMW.RequireAuth(), r.authMW.RequireVerified())

	users := authed.Group("/users")
	{
		users.GET("", r.users.ListUsers)
		users.GET("/me", r.users.Profile)
		users.GET("/online", r.users.OnlineUsers)
		users.GET("/:id", r.users.GetUser)
	}

	groups := authed.Group("/groups")
	{
		groups.POST("", r.rateLimit.RateLimit(20, time.Minute), r.groups.CreateGroup)
		groups.GET("", r.groups.ListGroups)
		groups.GET("/mine", r.groups.MyGroups)
		groups.GET("/:id", r.groups.GetGroup)
		groups.GET("/:id/members", r.groups.GetMembers)
		groups.POST("/:id/join", r.rateLimit.RateLimit(30, time.Minute), r.groups.JoinGroup)
		groups.POST("/:id/leave", r.rateLimit.RateLimit(30, time.Minute), r.groups.LeaveGroup)
	}

	messages := authed.Group("/messages")
	{
		messages.GET("/direct/:userId", r.messages.DirectHistory)
		messages.GET("/group/:groupId", r.messages.GroupHistory)
	}

	admin := authed.Group("/admin")
	admin.Use(r.authMW.RequireAdmin())
	{
		admin.POST("/users", r.admin.CreateAdmin)
		admin.GET("/users", r.admin.ListAdmins)
		admin.GET("/audit-logs", r.admin.ListAuditLogs)
	}
}
