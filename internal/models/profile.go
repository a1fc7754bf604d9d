package models

import (
	"time"

	"github.com/google/uuid"
)

type UserReadingProfile struct {
	UserID                string      `json:"user_id"`
	TotalReadingTime      int         `json:"total_reading_time"`
	ArticlesRead          int         `json:"articles_read"`
	AverageReadingTime    float64     `json:"average_reading_time"`
	CompletionRate        float64     `json:"completion_rate"`
	PreferredReadingTimes []string    `json:"preferred_reading_times"`
	TopCategories         []string    `json:"top_categories"`
	EngagementScore       float64     `json:"engagement_score"`
	LastActivity          time.Time   `json:"last_activity"`
	ReadingSessions       []uuid.UUID `json:"reading_sessions"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// Time-of-day labels used in PreferredReadingTimes.
const (
	SlotNight     = "night"
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
)
