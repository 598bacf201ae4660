package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/api/middleware"
	"github.com/umiteyigun/santral-ai/internal/handlers"
)

// maxUploadBytes bounds reference voice uploads.
const maxUploadBytes = 50 << 20

// Options configures the router.
type Options struct {
	MaxBodyBytes       int64
	CORSOrigins        []string
	RateLimitWhitelist []string
	RateLimitClient    *redis.Client // nil limits per process
	StaticDir          string        // defaults to web/static
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(opts.RateLimitClient, logger, middleware.RateLimiterConfig{
		Whitelist: opts.RateLimitWhitelist,
	})
	r.Use(limiter.Middleware)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	static := opts.StaticDir
	if static == "" {
		static = staticDir()
	}

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Pages
	r.Get("/", servePage(static, "index.html"))
	r.Get("/admin", servePage(static, "admin.html"))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(static))))

	r.Get("/api", h.Root)
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

		// Agent message relay
		r.Post("/agent-message", h.PostAgentMessage)
		r.Get("/agent-message", h.GetAgentMessages)
		r.Post("/agent-message/publish", h.PublishAgentMessage)
		r.Get("/agent-message/ws", h.StreamAgentMessages)

		// Session provisioning
		r.Post("/start-chat", h.StartChat)
		r.Get("/token", h.Token)
		r.Post("/dispatch-agent", h.DispatchAgent)

		// Voice admin
		r.Get("/api/voices", h.ListVoices)
		r.Get("/api/voices/active", h.ActiveVoice)
		r.Post("/api/voices/set-active", h.SetActiveVoice)
		r.Get("/api/cache/info", h.CacheInfo)
	})

	r.With(middleware.MaxBodySize(maxUploadBytes)).Post("/api/voices/upload", h.UploadVoice)

	return r
}

// staticDir returns the path to static files directory.
func staticDir() string {
	// Check if running from app directory (production container)
	if _, err := os.Stat("/app/web/static"); err == nil {
		return "/app/web/static"
	}
	return "web/static"
}

// servePage serves a page from the static directory.
func servePage(dir, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, dir+"/"+name)
	}
}
