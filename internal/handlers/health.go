package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"readtrack-backend/internal/cache"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db         pinger
	redis      pinger
	cache      *cache.Cache
	active     func() int
	dashboards func() int
}

// NewHealthHandler builds the liveness handler. active reports the number of
// in-memory trackers and dashboards the number of live event viewers.
func NewHealthHandler(db, redis pinger, c *cache.Cache, active, dashboards func() int) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, cache: c, active: active, dashboards: dashboards}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"database": "ok", "redis": "ok"}
	deps := map[string]pinger{"database": h.db, "redis": h.redis}
	for name, p := range deps {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("health check failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]interface{}{
		"status": "ok",
		"checks": checks,
		"cache":  h.cache.Stats(),
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.active != nil {
		body["active_trackers"] = h.active()
	}
	if h.dashboards != nil {
		body["dashboards"] = h.dashboards()
	}

	writeJSON(w, status, body)
}
