package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/docreview-backend/api/controllers"
	"github.com/angelmondragon/docreview-backend/api/routes"
	"github.com/angelmondragon/docreview-backend/internal/analysis"
	"github.com/angelmondragon/docreview-backend/internal/auth"
	"github.com/angelmondragon/docreview-backend/internal/cron"
	"github.com/angelmondragon/docreview-backend/internal/history"
	"github.com/angelmondragon/docreview-backend/internal/notifications"
	"github.com/angelmondragon/docreview-backend/internal/review"
	"github.com/angelmondragon/docreview-backend/internal/sessions"
	"github.com/angelmondragon/docreview-backend/internal/uploads"
	"github.com/angelmondragon/docreview-backend/pkg/auth/session"
	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/angelmondragon/docreview-backend/pkg/db"
	"github.com/angelmondragon/docreview-backend/pkg/instance"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
	"github.com/angelmondragon/docreview-backend/pkg/metrics"
	"github.com/angelmondragon/docreview-backend/pkg/migrate"
	"github.com/angelmondragon/docreview-backend/pkg/pubsub"
	"github.com/angelmondragon/docreview-backend/pkg/redis"
	"github.com/angelmondragon/docreview-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

// closeWithLog closes c during shutdown and logs, rather than returns, its error.
func closeWithLog(logg *logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if security.NeedsRehash(cfg.Reviewer.PasswordHash, cfg.Password) {
		logg.Warn(ctx, "reviewer password hash is weaker than the configured argon2id cost; regenerate it with cmd/hashpw")
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer closeWithLog(logg, "redis", redisClient)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	var (
		archive  history.Archive
		dbPinger controllers.Pinger
	)
	if cfg.FeatureFlags.HistoryArchive {
		dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
		if err != nil {
			return err
		}
		defer closeWithLog(logg, "database", dbClient)
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			return err
		}
		if archive, err = history.NewArchiveRepository(dbClient.DB()); err != nil {
			return err
		}
		dbPinger = dbClient
	}

	var analyzer analysis.Analyzer
	if cfg.Analysis.Enabled {
		vertex, err := analysis.NewVertexAnalyzer(ctx, analysis.VertexConfig{
			ProjectID:       cfg.GCP.ProjectID,
			Region:          cfg.Analysis.Region,
			Model:           cfg.Analysis.Model,
			MaxOutputTokens: cfg.Analysis.MaxOutputTokens,
			Timeout:         cfg.Analysis.Timeout,
		})
		if err != nil {
			return err
		}
		defer closeWithLog(logg, "vertex analyzer", vertex)
		analyzer = vertex
	}

	var (
		notifier     notifications.Notifier
		pubsubPinger controllers.Pinger
	)
	if cfg.Notifications.Enabled {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Notifications, logg)
		if err != nil {
			return err
		}
		defer closeWithLog(logg, "pubsub", psClient)
		if notifier, err = notifications.NewPubSubNotifier(psClient.NotificationsPublisher(), cfg.Notifications.Timeout); err != nil {
			return err
		}
		pubsubPinger = psClient
	}

	reviewMetrics := metrics.NewReviewMetrics(prometheus.DefaultRegisterer)
	registry := sessions.NewRegistry(cfg.Review.RetentionWindow, time.Now)
	inspector := uploads.NewInspector(cfg.Uploads.MaxUploadBytes(), cfg.Analysis.MaxInputChars)

	reviewService, err := review.NewService(review.Params{
		Sessions:    registry,
		Inspector:   inspector,
		Analyzer:    analyzer,
		Notifier:    notifier,
		Archive:     archive,
		Metrics:     reviewMetrics,
		Logger:      logg,
		MaxFiles:    cfg.Review.MaxFilesPerUpload,
		Concurrency: cfg.Review.AnalysisConcurrency,
	})
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Reviewer:       cfg.Reviewer,
		SessionManager: sessionManager,
		Workspaces:     registry,
		Metrics:        reviewMetrics,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return err
	}

	expiryJob, err := cron.NewDocumentExpiryJob(cron.DocumentExpiryJobParams{
		Logger:     logg,
		Sweeper:    reviewService,
		Workspaces: registry,
		Sessions:   sessionManager,
		Gauge:      reviewMetrics,
	})
	if err != nil {
		return err
	}
	jobs := cron.NewRegistry()
	if err := jobs.Register(expiryJob); err != nil {
		return err
	}

	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   jobs,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Review.SweepInterval,
		JobTimeout: cfg.Review.SweepTimeout,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			Redis:         redisClient,
			DB:            dbPinger,
			PubSub:        pubsubPinger,
			Sessions:      sessionManager,
			AuthService:   authService,
			ReviewService: reviewService,
			Uploads:       inspector,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"instance":        instance.GetID(),
		"analysis":        analyzer != nil,
		"notifications":   notifier != nil,
		"history_archive": archive != nil,
	})
	logg.Info(ctx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server shutting down gracefully")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
