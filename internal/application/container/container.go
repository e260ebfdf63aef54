// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/iyedjb/edutokudte-sub000/internal/application/services"
	"github.com/iyedjb/edutokudte-sub000/internal/application/session"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/ai"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/email"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/media"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/messaging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
)

// Infrastructure is what startup opens before the container is built.
// Media, Mailer and Assistant are optional.
type Infrastructure struct {
	Logger    *logging.ChanneledLogger
	Metrics   *metrics.Collector
	Realtime  realtime.Database
	Caches    *localcache.Store
	Tokens    *security.TokenIssuer
	Sealer    *security.Sealer
	Media     *media.ImageProcessor
	Mailer    email.Service
	Assistant ai.Assistant
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Remote-side services (stateless singletons)
	FeedService         *services.FeedService
	SocialService       *services.SocialService
	CatalogService      *services.CatalogService
	GradeService        *services.GradeService
	MessageService      *services.MessageService
	ConversationService *services.ConversationService
	QRLoginService      *services.QRLoginService
	RoleService         *services.RoleService
	WarmingService      *services.WarmingService
	AssistantService    *services.AssistantService
	NotificationService *services.NotificationService

	// Per-user state
	Sessions *session.Manager

	// Infrastructure Dependencies
	Logger   *logging.ChanneledLogger
	Metrics  *metrics.Collector
	Realtime realtime.Database
	Caches   *localcache.Store
	Hub      *messaging.Hub
	Tokens   *security.TokenIssuer
	Media    *media.ImageProcessor
}

// NewContainer creates and wires all singleton services
func NewContainer(infra Infrastructure) *Container {
	logger := infra.Logger
	db := infra.Realtime

	var attachments services.AttachmentProcessor
	if infra.Media != nil {
		attachments = infra.Media
	}

	c := &Container{
		FeedService:         services.NewFeedService(db, logger),
		SocialService:       services.NewSocialService(db, logger),
		CatalogService:      services.NewCatalogService(db, logger),
		GradeService:        services.NewGradeService(db, logger),
		MessageService:      services.NewMessageService(db, attachments, logger),
		ConversationService: services.NewConversationService(db, logger),
		QRLoginService:      services.NewQRLoginService(db, infra.Tokens, infra.Sealer, logger),
		RoleService:         services.NewRoleService(db, logger),
		AssistantService:    services.NewAssistantService(infra.Assistant, logger),
		NotificationService: services.NewNotificationService(db, infra.Mailer, logger),

		Logger:   logger,
		Metrics:  infra.Metrics,
		Realtime: db,
		Caches:   infra.Caches,
		Hub:      messaging.NewHub(logger, infra.Metrics),
		Tokens:   infra.Tokens,
		Media:    infra.Media,
	}
	c.WarmingService = services.NewWarmingService(c.FeedService, c.CatalogService, c.GradeService, caching.NewWarmingLock(), logger, infra.Metrics)

	c.Sessions = session.NewManager(session.Deps{
		DB:            db,
		Caches:        infra.Caches,
		Hub:           c.Hub,
		Feed:          c.FeedService,
		Social:        c.SocialService,
		Catalog:       c.CatalogService,
		Grades:        c.GradeService,
		Messages:      c.MessageService,
		Conversations: c.ConversationService,
		Warming:       c.WarmingService,
		Logger:        logger,
		Collector:     infra.Metrics,
	})
	return c
}
