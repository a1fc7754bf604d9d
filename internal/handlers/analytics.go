package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"readtrack-backend/internal/models"
	"readtrack-backend/internal/services"
)

const dateOnly = "2006-01-02"

type analyticsReader interface {
	GetReadingAnalytics(ctx context.Context, r models.DateRange) (*models.ReadingAnalytics, error)
	GetUserReadingSessions(ctx context.Context, userID string, limit int) ([]*models.ReadingSession, error)
	GetArticleReadingStats(ctx context.Context, articleID string) (*models.ArticleReadingStats, error)
	GetUserReadingProfile(ctx context.Context, userID string) (*models.UserReadingProfile, error)
}

type AnalyticsHandler struct {
	analytics analyticsReader
	loc       *time.Location
}

// NewAnalyticsHandler builds the admin handler. Date-only query values are
// interpreted in loc.
func NewAnalyticsHandler(analytics analyticsReader, loc *time.Location) *AnalyticsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsHandler{analytics: analytics, loc: loc}
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	dr, err := h.parseDateRange(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.analytics.GetReadingAnalytics(r.Context(), dr)
	if err != nil {
		log.Error().Err(err).Msg("failed to compute reading analytics")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute reading analytics", r))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *AnalyticsHandler) UserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"limit": "must be a positive integer"}})
			return
		}
		limit = n
	}

	sessions, err := h.analytics.GetUserReadingSessions(r.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to list reading sessions")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load reading sessions", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

func (h *AnalyticsHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	profile, err := h.analytics.GetUserReadingProfile(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to load reading profile")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load reading profile", r))
		return
	}
	if profile == nil {
		handleServiceError(w, r, &services.NotFoundError{Message: "Reading profile not found"})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *AnalyticsHandler) ArticleStats(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")

	stats, err := h.analytics.GetArticleReadingStats(r.Context(), articleID)
	if err != nil {
		log.Error().Err(err).Str("article_id", articleID).Msg("failed to compute article stats")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to compute article stats", r))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AnalyticsHandler) parseDateRange(r *http.Request) (models.DateRange, error) {
	var dr models.DateRange
	fields := map[string]string{}

	q := r.URL.Query()
	if raw := q.Get("start"); raw != "" {
		t, err := parseDate(raw, h.loc, false)
		if err != nil {
			fields["start"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			dr.Start = &t
		}
	}
	if raw := q.Get("end"); raw != "" {
		t, err := parseDate(raw, h.loc, true)
		if err != nil {
			fields["end"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			dr.End = &t
		}
	}
	if dr.Start != nil && dr.End != nil && dr.End.Before(*dr.Start) {
		fields["end"] = "must not be before start"
	}

	if len(fields) > 0 {
		return models.DateRange{}, &services.ValidationError{Fields: fields}
	}
	return dr, nil
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the whole
// day.
func parseDate(raw string, loc *time.Location, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	t, err := time.ParseInLocation(dateOnly, raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}
