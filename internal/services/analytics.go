package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"readtrack-backend/internal/models"
)

const (
	topArticlesLimit = 10

	highEngagementThreshold     = 80
	moderateEngagementThreshold = 50

	defaultSessionsLimit = 10
	maxSessionsLimit     = 100
)

type SessionReader interface {
	ListByRange(ctx context.Context, r models.DateRange) ([]*models.ReadingSession, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.ReadingSession, error)
	ListByArticle(ctx context.Context, articleID string) ([]*models.ReadingSession, error)
}

type ProfileReader interface {
	Get(ctx context.Context, userID string) (*models.UserReadingProfile, error)
	ListAll(ctx context.Context) ([]*models.UserReadingProfile, error)
}

// ResultCache is satisfied by *cache.Cache.
type ResultCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, cost int64) bool
}

// AnalyticsService serves the admin read API. Every method is read-only and
// returns storage errors to the caller.
type AnalyticsService struct {
	sessions SessionReader
	profiles ProfileReader
	cache    ResultCache
	loc      *time.Location
}

// NewAnalyticsService builds the service. cache may be nil.
func NewAnalyticsService(sessions SessionReader, profiles ProfileReader, cache ResultCache, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{sessions: sessions, profiles: profiles, cache: cache, loc: loc}
}

func (s *AnalyticsService) GetReadingAnalytics(ctx context.Context, r models.DateRange) (*models.ReadingAnalytics, error) {
	key := "analytics:" + rangeKey(r)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if cached, ok := v.(*models.ReadingAnalytics); ok {
				return cached, nil
			}
		}
	}

	sessions, err := s.sessions.ListByRange(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to load reading sessions: %w", err)
	}
	profiles, err := s.profiles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reading profiles: %w", err)
	}

	result := ComputeReadingAnalytics(sessions, profiles, r, s.loc)
	if s.cache != nil {
		s.cache.Set(key, &result, 1)
	}
	return &result, nil
}

// GetUserReadingSessions returns the reader's most recent sessions first.
func (s *AnalyticsService) GetUserReadingSessions(ctx context.Context, userID string, limit int) ([]*models.ReadingSession, error) {
	if limit <= 0 {
		limit = defaultSessionsLimit
	}
	if limit > maxSessionsLimit {
		limit = maxSessionsLimit
	}

	sessions, err := s.sessions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load user sessions: %w", err)
	}
	return sessions, nil
}

func (s *AnalyticsService) GetArticleReadingStats(ctx context.Context, articleID string) (*models.ArticleReadingStats, error) {
	key := "article:" + articleID
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if cached, ok := v.(*models.ArticleReadingStats); ok {
				return cached, nil
			}
		}
	}

	sessions, err := s.sessions.ListByArticle(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load article sessions: %w", err)
	}

	stats := ComputeArticleStats(articleID, sessions)
	if s.cache != nil {
		s.cache.Set(key, &stats, 1)
	}
	return &stats, nil
}

// GetUserReadingProfile returns (nil, nil) when the reader has no profile.
func (s *AnalyticsService) GetUserReadingProfile(ctx context.Context, userID string) (*models.UserReadingProfile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reading profile: %w", err)
	}
	return p, nil
}

// ComputeReadingAnalytics aggregates sessions whose start time falls in r.
// Profiles are not date filtered.
func ComputeReadingAnalytics(sessions []*models.ReadingSession, profiles []*models.UserReadingProfile, r models.DateRange, loc *time.Location) models.ReadingAnalytics {
	if loc == nil {
		loc = time.UTC
	}

	out := models.ReadingAnalytics{
		TopArticles: []models.ArticleSummary{},
		ReadingPatterns: models.ReadingPatterns{
			Daily: make(map[string]int, 7),
		},
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		out.ReadingPatterns.Daily[d.String()] = 0
	}

	type articleAgg struct {
		title     string
		reads     int
		time      int
		completed int
	}

	users := make(map[string]struct{})
	articles := make(map[string]*articleAgg)
	count := 0

	for _, s := range sessions {
		if !r.Contains(s.StartTime) {
			continue
		}
		count++
		users[s.UserID] = struct{}{}
		out.TotalReadingTime += s.TotalTimeSpent

		agg, ok := articles[s.ArticleID]
		if !ok {
			agg = &articleAgg{title: s.ArticleTitle}
			articles[s.ArticleID] = agg
		}
		agg.reads++
		agg.time += s.TotalTimeSpent
		if s.IsCompleted {
			agg.completed++
		}

		local := s.StartTime.In(loc)
		out.ReadingPatterns.Hourly[local.Hour()]++
		out.ReadingPatterns.Daily[local.Weekday().String()]++
	}

	out.TotalUsers = len(users)
	if count > 0 {
		out.AverageSessionTime = float64(out.TotalReadingTime) / float64(count)
	}

	for id, agg := range articles {
		out.TopArticles = append(out.TopArticles, models.ArticleSummary{
			ArticleID:      id,
			ArticleTitle:   agg.title,
			TotalReads:     agg.reads,
			AverageTime:    float64(agg.time) / float64(agg.reads),
			CompletionRate: percent(agg.completed, agg.reads),
		})
	}
	sort.Slice(out.TopArticles, func(i, j int) bool {
		a, b := out.TopArticles[i], out.TopArticles[j]
		if a.TotalReads != b.TotalReads {
			return a.TotalReads > b.TotalReads
		}
		return a.ArticleID < b.ArticleID
	})
	if len(out.TopArticles) > topArticlesLimit {
		out.TopArticles = out.TopArticles[:topArticlesLimit]
	}

	for _, p := range profiles {
		switch {
		case p.EngagementScore >= highEngagementThreshold:
			out.UserEngagement.HighlyEngaged++
		case p.EngagementScore >= moderateEngagementThreshold:
			out.UserEngagement.ModeratelyEngaged++
		default:
			out.UserEngagement.LowEngaged++
		}
	}

	return out
}

// ComputeArticleStats summarizes one article's sessions. Engagement is the
// mean of Score over those sessions, the same formula used for profiles.
func ComputeArticleStats(articleID string, sessions []*models.ReadingSession) models.ArticleReadingStats {
	stats := models.ArticleReadingStats{ArticleID: articleID}
	if len(sessions) == 0 {
		return stats
	}

	readers := make(map[string]struct{})
	total, completed := 0, 0
	scoreSum := 0.0
	for _, s := range sessions {
		readers[s.UserID] = struct{}{}
		total += s.TotalTimeSpent
		if s.IsCompleted {
			completed++
		}
		scoreSum += Score(s)
	}

	n := len(sessions)
	stats.TotalSessions = n
	stats.UniqueReaders = len(readers)
	stats.AverageReadingTime = float64(total) / float64(n)
	stats.CompletionRate = percent(completed, n)
	stats.EngagementScore = scoreSum / float64(n)
	return stats
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func rangeKey(r models.DateRange) string {
	start, end := "-", "-"
	if r.Start != nil {
		start = r.Start.UTC().Format(time.RFC3339)
	}
	if r.End != nil {
		end = r.End.UTC().Format(time.RFC3339)
	}
	return start + "|" + end
}
