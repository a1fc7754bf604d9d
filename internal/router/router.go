package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"readtrack-backend/internal/handlers"
	"readtrack-backend/internal/middleware"
	"readtrack-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	trackingLimiter *middleware.RateLimiter,
	healthHandler *handlers.HealthHandler,
	readingHandler *handlers.ReadingHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Reading Tracking Routes ────
		r.Route("/reading", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(trackingLimiter.Middleware)
			r.Post("/sessions", readingHandler.StartSession)
			r.Post("/scroll", readingHandler.RecordScroll)
			r.Post("/focus", readingHandler.SetFocus)
			r.Post("/end", readingHandler.EndSession)
			r.Get("/current", readingHandler.CurrentSession)
		})

		// ──── Admin Analytics Routes ────
		r.Route("/admin", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireAdmin)
			r.Get("/analytics", analyticsHandler.Overview)
			r.Get("/users/{userID}/sessions", analyticsHandler.UserSessions)
			r.Get("/users/{userID}/profile", analyticsHandler.UserProfile)
			r.Get("/articles/{articleID}/stats", analyticsHandler.ArticleStats)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
