// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/application/container"
	"github.com/iyedjb/edutokudte-sub000/internal/presentation/http/handlers"
	"github.com/iyedjb/edutokudte-sub000/internal/presentation/http/middleware"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	if config.GinReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORSMiddleware(config.CORSOrigins))
	r.Use(middleware.Observe(container.Metrics, container.Logger, config.SlowRequestThreshold))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": container.Sessions.Count()})
	})
	r.GET("/metrics", gin.WrapH(container.Metrics.Handler()))
	r.Static("/media", config.MediaDir)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(container.Sessions, container.RoleService, container.QRLoginService, container.Logger)
	cacheHandlers := handlers.NewCacheHandlers(container.Logger)
	feedHandlers := handlers.NewFeedHandlers(container.Logger)
	socialHandlers := handlers.NewSocialHandlers(container.Logger)
	messageHandlers := handlers.NewMessageHandlers(container.MessageService, container.Logger)
	schoolHandlers := handlers.NewSchoolHandlers(container.RoleService, container.GradeService, container.NotificationService, container.Logger)
	assistantHandlers := handlers.NewAssistantHandlers(container.AssistantService, container.Logger)
	liveHandlers := handlers.NewLiveHandlers(container.Hub, container.QRLoginService, container.Logger)
	adminHandlers := handlers.NewAdminHandlers(container.RoleService, container.Sessions, container.Logger)

	authenticate := middleware.Authenticate(container.Tokens, container.Logger)
	requireSession := middleware.RequireSession(container.Sessions)

	api := r.Group("/api/v1")
	{
		// QR display side: no token yet
		qr := api.Group("/auth/qr")
		{
			qr.POST("", authHandlers.PostQR)
			qr.GET("/:id", authHandlers.GetQR)
			qr.POST("/:id/redeem", authHandlers.PostQRRedeem)
			qr.POST("/:id/approve", authenticate, authHandlers.PostQRApprove)
		}

		api.GET("/live/qr", liveHandlers.GetLiveQR)

		authed := api.Group("", authenticate)
		{
			authed.POST("/auth/session", authHandlers.PostSession)
			authed.DELETE("/auth/session", authHandlers.DeleteSession)
		}

		s := api.Group("", authenticate, requireSession)
		{
			s.GET("/auth/role", authHandlers.GetRole)

			s.GET("/cache", cacheHandlers.GetCache)
			s.DELETE("/cache", cacheHandlers.DeleteCache)

			s.GET("/feed", feedHandlers.GetFeed)
			s.POST("/feed/more", feedHandlers.PostFeedMore)

			posts := s.Group("/posts")
			{
				posts.POST("", feedHandlers.PostCreatePost)
				posts.DELETE("/:id", feedHandlers.DeletePost)
				posts.POST("/:id/reactions", feedHandlers.PostReaction)
				posts.POST("/:id/retweet", feedHandlers.PostRetweet)
				posts.POST("/:id/bookmark", feedHandlers.PostBookmark)
				posts.POST("/:id/vote", feedHandlers.PostVote)
			}

			s.GET("/users", socialHandlers.GetUsers)
			s.POST("/users/:uid/follow", socialHandlers.PostFollow)
			s.DELETE("/users/:uid/follow", socialHandlers.DeleteFollow)

			s.GET("/rooms", messageHandlers.GetRooms)
			s.GET("/messages/:room", messageHandlers.GetMessages)
			s.POST("/messages/:room", messageHandlers.PostMessage)

			s.GET("/grades", schoolHandlers.GetGrades)
			s.POST("/grades", schoolHandlers.PostGrade)

			s.GET("/conversations", schoolHandlers.GetConversations)
			s.POST("/conversations", schoolHandlers.PostConversation)
			s.POST("/conversations/:id/approve", schoolHandlers.PostConversationApprove)
			s.POST("/conversations/:id/reject", schoolHandlers.PostConversationReject)

			s.GET("/notifications", schoolHandlers.GetNotifications)
			s.POST("/notifications", schoolHandlers.PostNotification)

			s.GET("/videos", schoolHandlers.GetVideos)
			s.GET("/classes", schoolHandlers.GetClasses)
			s.GET("/events", schoolHandlers.GetEvents)

			assistantLimit := middleware.RateLimit(middleware.NewRateLimiter(config.AssistantRatePerMinute, config.AssistantBurst))
			s.POST("/assistant/chat", assistantLimit, assistantHandlers.PostChat)
			s.POST("/moderation", assistantLimit, assistantHandlers.PostModerate)

			s.GET("/live/:resource", liveHandlers.GetLive)

			admin := s.Group("/admin", adminHandlers.RequireAdmin)
			{
				admin.GET("/log-levels", adminHandlers.GetLogLevels)
				admin.POST("/log-levels", adminHandlers.PostLogLevel)
				admin.GET("/stats", adminHandlers.GetStats)
			}
		}
	}

	return r
}
