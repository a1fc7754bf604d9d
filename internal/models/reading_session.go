package models

import (
	"time"

	"github.com/google/uuid"
)

type ReadingSession struct {
	ID              uuid.UUID     `json:"id"`
	UserID          string        `json:"user_id"`
	ArticleID       string        `json:"article_id"`
	ArticleTitle    string        `json:"article_title"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	TotalTimeSpent  int           `json:"total_time_spent"` // seconds
	ReadingProgress int           `json:"reading_progress"` // 0-100
	ScrollEvents    []ScrollEvent `json:"scroll_events"`
	IsCompleted     bool          `json:"is_completed"`
	Device          string        `json:"device"`
	Browser         string        `json:"browser"`
	ScreenSize      string        `json:"screen_size"`
	UserAgent       string        `json:"user_agent"`
	CreatedAt       time.Time     `json:"created_at"`
}

type ScrollEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	ScrollPosition int       `json:"scroll_position"`
	TimeFromStart  int       `json:"time_from_start"` // seconds
}

// Clone returns a deep copy so callers can read a session without holding
// the tracker lock.
func (s *ReadingSession) Clone() *ReadingSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	c.ScrollEvents = append([]ScrollEvent(nil), s.ScrollEvents...)
	return &c
}

// Environment is what the host UI reports about the reader's browser when a
// session starts.
type Environment struct {
	ViewportWidth  int    `json:"viewport_width" validate:"gte=0,lte=20000"`
	ViewportHeight int    `json:"viewport_height" validate:"gte=0,lte=20000"`
	UserAgent      string `json:"user_agent" validate:"max=1024"`
}

// ProgressSnapshot is the payload of a batched partial persist.
type ProgressSnapshot struct {
	SessionID       uuid.UUID     `json:"session_id"`
	ReadingProgress int           `json:"reading_progress"`
	TotalTimeSpent  int           `json:"total_time_spent"`
	ScrollEvents    []ScrollEvent `json:"scroll_events"`
}

const (
	EventSessionStarted   = "session_started"
	EventSessionCompleted = "session_completed"
)

// ReadingEvent is pushed to admins watching the live feed.
type ReadingEvent struct {
	Type            string    `json:"type"`
	SessionID       uuid.UUID `json:"session_id"`
	UserID          string    `json:"user_id"`
	ArticleID       string    `json:"article_id"`
	ArticleTitle    string    `json:"article_title"`
	ReadingProgress int       `json:"reading_progress"`
	TotalTimeSpent  int       `json:"total_time_spent"`
	IsCompleted     bool      `json:"is_completed"`
	At              time.Time `json:"at"`
}
