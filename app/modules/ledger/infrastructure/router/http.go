package ledgerrouter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	authdomain "github.com/Black-And-White-Club/score-ledger/app/modules/auth/domain"
	authhandlers "github.com/Black-And-White-Club/score-ledger/app/modules/auth/infrastructure/handlers"
	authjwt "github.com/Black-And-White-Club/score-ledger/app/modules/auth/infrastructure/jwt"
	ledgerhandlers "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/infrastructure/handlers"
)

// HTTPConfig tunes the REST surface.
type HTTPConfig struct {
	AllowedOrigins []string
	SubmitRate     rate.Limit
	SubmitBurst    int
}

// HTTPDeps are the collaborators mounted under /api/ledger.
type HTTPDeps struct {
	Handlers ledgerhandlers.HTTPHandlers
	Tokens   authjwt.Provider
	Feed     http.HandlerFunc
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

func isAdmin(r authdomain.Role) bool { return r == authdomain.RoleAdmin }

// RegisterHTTPRoutes mounts the ledger API on r.
func RegisterHTTPRoutes(r chi.Router, deps HTTPDeps, cfg HTTPConfig) {
	if cfg.SubmitRate <= 0 {
		cfg.SubmitRate = 5
	}
	if cfg.SubmitBurst <= 0 {
		cfg.SubmitBurst = 10
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	limiter := authhandlers.NewIPRateLimiter(cfg.SubmitRate, cfg.SubmitBurst)
	h := deps.Handlers

	r.Route("/api/ledger", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Retry-After", "Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		// Public reads
		r.Get("/scores/{participantID}", h.HandleGetBestScore)
		r.Get("/ranks/{participantID}", h.HandleGetRank)
		r.Get("/stats/{participantID}", h.HandleGetStats)
		r.Get("/players/count", h.HandleGetPlayerCount)
		r.Get("/top", h.HandleGetTop)
		r.Get("/top/chart.png", h.HandleGetTopChart)
		r.Get("/admin/paused", h.HandleGetPaused)
		if deps.Feed != nil {
			r.Get("/ws", deps.Feed)
		}

		r.Group(func(r chi.Router) {
			r.Use(authhandlers.BearerAuth(deps.Tokens, deps.Logger))

			r.With(authhandlers.RateLimitMiddleware(limiter), authhandlers.RequireSubmitter()).
				Post("/scores", h.HandleSubmitScore)

			// The gateway enforces the admin check on pause transitions.
			r.Post("/admin/pause", h.HandlePause)
			r.Post("/admin/unpause", h.HandleUnpause)

			r.With(authhandlers.RequireRole(isAdmin)).Get("/top/export.xlsx", h.HandleExportTop)
		})
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}
}
