package models

import "time"

type ReadingAnalytics struct {
	TotalUsers         int               `json:"total_users"`
	TotalReadingTime   int               `json:"total_reading_time"`
	AverageSessionTime float64           `json:"average_session_time"`
	TopArticles        []ArticleSummary  `json:"top_articles"`
	UserEngagement     EngagementBuckets `json:"user_engagement"`
	ReadingPatterns    ReadingPatterns   `json:"reading_patterns"`
}

type ArticleSummary struct {
	ArticleID      string  `json:"article_id"`
	ArticleTitle   string  `json:"article_title"`
	TotalReads     int     `json:"total_reads"`
	AverageTime    float64 `json:"average_time"`
	CompletionRate float64 `json:"completion_rate"`
}

type EngagementBuckets struct {
	HighlyEngaged     int `json:"highly_engaged"`
	ModeratelyEngaged int `json:"moderately_engaged"`
	LowEngaged        int `json:"low_engaged"`
}

type ReadingPatterns struct {
	Hourly [24]int        `json:"hourly"`
	Daily  map[string]int `json:"daily"` // keyed by weekday name
}

type ArticleReadingStats struct {
	ArticleID          string  `json:"article_id"`
	TotalSessions      int     `json:"total_sessions"`
	UniqueReaders      int     `json:"unique_readers"`
	AverageReadingTime float64 `json:"average_reading_time"`
	CompletionRate     float64 `json:"completion_rate"`
	EngagementScore    float64 `json:"engagement_score"`
}

// DateRange filters sessions on start time. A nil bound is open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls within the range, bounds inclusive.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}
