package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"readtrack-backend/internal/middleware"
	"readtrack-backend/internal/models"
)

type sessionTracker interface {
	StartSession(ctx context.Context, userID, articleID, articleTitle string, env models.Environment) (uuid.UUID, error)
	RecordScroll(userID string, percentage int) (int, bool)
	SetFocus(userID string, focused bool) bool
	EndSession(ctx context.Context, userID string) *models.ReadingSession
	CurrentSession(userID string) *models.ReadingSession
}

// ReadingHandler is the host UI's tracking surface. Every route acts on the
// caller's own tracker.
type ReadingHandler struct {
	tracker sessionTracker
}

func NewReadingHandler(tracker sessionTracker) *ReadingHandler {
	return &ReadingHandler{tracker: tracker}
}

type startSessionRequest struct {
	ArticleID    string `json:"article_id" validate:"required,max=256"`
	ArticleTitle string `json:"article_title" validate:"max=512"`
	models.Environment
}

type scrollRequest struct {
	Percentage *int `json:"percentage" validate:"required"`
}

type focusRequest struct {
	Focused *bool `json:"focused" validate:"required"`
}

func (h *ReadingHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req startSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	// Starting closes the previous session, which must finish even if the
	// client goes away mid-request.
	ctx := context.WithoutCancel(r.Context())
	id, err := h.tracker.StartSession(ctx, userID, req.ArticleID, req.ArticleTitle, req.Environment)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("article_id", req.ArticleID).Msg("failed to start reading session")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start reading session", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": id,
	})
}

func (h *ReadingHandler) RecordScroll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req scrollRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	progress, active := h.tracker.RecordScroll(userID, *req.Percentage)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":           active,
		"reading_progress": progress,
	})
}

func (h *ReadingHandler) SetFocus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req focusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	tracked := h.tracker.SetFocus(userID, *req.Focused)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracked": tracked,
	})
}

// EndSession returns the finalized session, or null when none was open.
func (h *ReadingHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	s := h.tracker.EndSession(context.WithoutCancel(r.Context()), userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": s,
	})
}

func (h *ReadingHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": h.tracker.CurrentSession(userID),
	})
}
