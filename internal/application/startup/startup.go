// Package startup prepares the application server
package startup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iyedjb/edutokudte-sub000/internal/application/container"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/ai"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/cleanup"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/email"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/media"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/persistence/database"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/realtime"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/security"
	"github.com/iyedjb/edutokudte-sub000/internal/presentation/http/server"
	"github.com/iyedjb/edutokudte-sub000/pkg/config"
)

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize() error {
	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 1: Logger
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    config.LogToFile,
		OutputToConsole: true,
		LogDirectory:    config.LogDirectory,
		JSONFormat:      config.LogJSON,
		DefaultLevel:    parseLevel(config.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Starting EduTok sync gateway", "port", config.Port)

	// Step 2: Metrics
	collector := metrics.NewCollector("edutok")

	// Step 3: Authoritative store
	stepStart := time.Now()
	db, err := database.Open(database.Options{
		Path:            config.RealtimeDBPath,
		TursoURL:        config.TursoDatabaseURL,
		TursoAuthToken:  config.TursoAuthToken,
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open realtime database: %w", err)
	}
	defer db.Close()

	store, err := realtime.NewStore(db.DB, logger, collector)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.LogStartupPhase("realtime store", time.Since(stepStart), true)

	// Step 4: Local cache, opened lazily on first use
	caches := localcache.NewStore(localcache.PathOpener(config.LocalCachePath, logger), logger, collector)
	defer caches.Close()

	// Step 5: Tokens
	if config.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	tokens := security.NewTokenIssuer(config.JWTSecret, config.JWTIssuer)
	sealer, err := security.NewSealer(config.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to create sealer: %w", err)
	}

	// Step 6: Optional integrations
	infra := container.Infrastructure{
		Logger:   logger,
		Metrics:  collector,
		Realtime: store,
		Caches:   caches,
		Tokens:   tokens,
		Sealer:   sealer,
		Media:    media.NewImageProcessor(config.MediaDir, "/media"),
	}

	if mailer, err := email.NewService(config.ResendAPIKey, config.EmailFrom, config.EmailFromName); err == nil {
		infra.Mailer = mailer
	} else {
		logger.Startup().Warn("Email notifications disabled", "reason", err)
	}

	provider, err := ai.NewProvider(ai.Config{
		BaseURL:   config.OpenAIBaseURL,
		APIKey:    config.OpenAIAPIKey,
		ChatModel: config.OpenAIModel,
	}, logger.Assistant())
	if err == nil {
		infra.Assistant = provider
	} else {
		logger.Startup().Warn("Assistant disabled", "reason", err)
	}

	// Step 7: Container
	appContainer := container.NewContainer(infra)
	logger.Startup().Info("Dependency injection container created")

	// Step 8: Background cleanup worker
	worker := cleanup.NewWorker(cleanup.NewConfig(), logger, cleanup.NewReporter(os.Stdout),
		cleanup.Task{Name: "local cache", Run: caches.PurgeExpired},
		cleanup.Task{Name: "qr sessions", Run: appContainer.QRLoginService.ExpireStale},
		cleanup.Task{Name: "idle sessions", Run: func(context.Context) (int64, error) {
			return int64(appContainer.Sessions.CloseIdle(config.SessionIdleTTL)), nil
		}},
	)
	go worker.Start(ctx)

	// Step 9: HTTP server
	httpServer := server.New(config.Port, appContainer)

	// Step 10: Graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete", "totalDuration", time.Since(start), "port", config.Port)

	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err)
			return err
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err)
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	// sessions flush pending mutations before the stores close
	appContainer.Sessions.CloseAll()

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}
