package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/docreview-backend/api/controllers"
	"github.com/angelmondragon/docreview-backend/api/middleware"
	"github.com/angelmondragon/docreview-backend/internal/auth"
	"github.com/angelmondragon/docreview-backend/pkg/auth/session"
	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

type rateLimiter interface {
	controllers.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	Redis           rateLimiter
	DB              controllers.Pinger
	PubSub          controllers.Pinger
	Sessions        session.AccessSessionChecker
	AuthService     auth.Service
	ReviewService   controllers.ReviewService
	Uploads         controllers.FileReader
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	).TrustingProxyHeaders(cfg.AuthRateLimit.TrustProxyHeaders)

	deps := map[string]controllers.Pinger{"redis": d.Redis}
	if d.DB != nil {
		deps["db"] = d.DB
	}
	if d.PubSub != nil {
		deps["pubsub"] = d.PubSub
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	gatherer := d.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	requireSession := middleware.Auth(cfg.JWT, d.Sessions, logg)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.AuthService, logg))
		r.With(requireSession).Post("/logout", controllers.AuthLogout(d.AuthService, logg))
	})

	maxBody := uploadBodyLimit(cfg)

	r.Route("/api/v1/documents", func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/", controllers.DocumentsList(d.ReviewService, logg))
		r.Post("/", controllers.DocumentsUpload(d.ReviewService, d.Uploads, maxBody, logg))
		r.Get("/{documentId}", controllers.DocumentsGet(d.ReviewService, logg))
		r.Post("/{documentId}/decision", controllers.DocumentsDecide(d.ReviewService, logg))
		r.Post("/{documentId}/analysis", controllers.DocumentsReanalyze(d.ReviewService, logg))
	})

	r.Route("/api/v1/history", func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/", controllers.HistoryList(d.ReviewService, logg))
		r.Get("/stats", controllers.HistoryStats(d.ReviewService, logg))
		r.Get("/archive", controllers.HistoryArchive(d.ReviewService, logg))
	})

	return r
}

// uploadBodyLimit allows every file at the per-file cap plus multipart framing.
func uploadBodyLimit(cfg *config.Config) int64 {
	perFile := cfg.Uploads.MaxUploadBytes()
	if perFile <= 0 {
		return 0
	}
	files := int64(cfg.Review.MaxFilesPerUpload)
	if files <= 0 {
		files = 1
	}
	return perFile*files + 1<<20
}
