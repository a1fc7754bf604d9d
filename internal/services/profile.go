package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"readtrack-backend/internal/models"
)

// ProfileStore reads and writes profiles keyed by user id. Get returns
// (nil, nil) when the reader has no profile yet.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.UserReadingProfile, error)
	Upsert(ctx context.Context, p *models.UserReadingProfile) error
}

type ProfileAggregator struct {
	store ProfileStore
	loc   *time.Location
	now   func() time.Time
}

// NewProfileAggregator buckets preferred reading times in loc. A nil loc
// means UTC.
func NewProfileAggregator(store ProfileStore, loc *time.Location) *ProfileAggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &ProfileAggregator{
		store: store,
		loc:   loc,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Apply folds one finalized session into the reader's profile.
func (a *ProfileAggregator) Apply(ctx context.Context, s *models.ReadingSession) (*models.UserReadingProfile, error) {
	existing, err := a.store.Get(ctx, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reading profile: %w", err)
	}

	lastActivity := a.now()
	if s.EndTime != nil {
		lastActivity = *s.EndTime
	}

	slot := TimeSlotOf(s.StartTime.In(a.loc))

	var p *models.UserReadingProfile
	if existing == nil {
		p = newProfile(s, slot, lastActivity)
	} else {
		p = foldSession(existing, s, slot, lastActivity)
	}

	if err := a.store.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save reading profile: %w", err)
	}
	return p, nil
}

func newProfile(s *models.ReadingSession, slot string, at time.Time) *models.UserReadingProfile {
	articlesRead := 0
	completionRate := 0.0
	if s.IsCompleted {
		articlesRead = 1
		completionRate = 100
	}

	return &models.UserReadingProfile{
		UserID:                s.UserID,
		TotalReadingTime:      s.TotalTimeSpent,
		ArticlesRead:          articlesRead,
		AverageReadingTime:    float64(s.TotalTimeSpent),
		CompletionRate:        completionRate,
		PreferredReadingTimes: []string{slot},
		TopCategories:         []string{},
		EngagementScore:       Score(s),
		LastActivity:          at,
		ReadingSessions:       []uuid.UUID{s.ID},
	}
}

// foldSession returns an updated copy of p.
func foldSession(p *models.UserReadingProfile, s *models.ReadingSession, slot string, at time.Time) *models.UserReadingProfile {
	out := *p
	prior := len(p.ReadingSessions)

	out.TotalReadingTime += s.TotalTimeSpent
	if s.IsCompleted {
		out.ArticlesRead++
	}
	out.AverageReadingTime = float64(out.TotalReadingTime) / float64(max(out.ArticlesRead, 1))

	completed := 0.0
	if s.IsCompleted {
		completed = 100
	}
	out.CompletionRate = (p.CompletionRate*float64(prior) + completed) / float64(prior+1)

	out.PreferredReadingTimes = addSlot(p.PreferredReadingTimes, slot)
	out.ReadingSessions = append(append([]uuid.UUID(nil), p.ReadingSessions...), s.ID)
	out.EngagementScore = Score(s)
	out.LastActivity = at
	if out.TopCategories == nil {
		out.TopCategories = []string{}
	}
	return &out
}

func addSlot(slots []string, slot string) []string {
	for _, s := range slots {
		if s == slot {
			return append([]string(nil), slots...)
		}
	}
	return append(append([]string(nil), slots...), slot)
}

// Score rates one session's engagement on a 0-100 scale: scroll depth,
// a completion bonus, time invested (capped at 10 minutes) and interaction
// density (capped at 50 samples).
func Score(s *models.ReadingSession) float64 {
	score := float64(s.ReadingProgress)
	if s.IsCompleted {
		score += 20
	}
	score += math.Min(20, float64(s.TotalTimeSpent)/600*20)
	score += math.Min(10, float64(len(s.ScrollEvents))/50*10)
	return math.Max(0, math.Min(100, score))
}

// TimeSlotOf buckets a timestamp into night/morning/afternoon/evening by the
// hour in t's own location.
func TimeSlotOf(t time.Time) string {
	switch h := t.Hour(); {
	case h < 6:
		return models.SlotNight
	case h < 12:
		return models.SlotMorning
	case h < 18:
		return models.SlotAfternoon
	default:
		return models.SlotEvening
	}
}
