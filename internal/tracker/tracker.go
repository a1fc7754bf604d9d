package tracker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"readtrack-backend/internal/metrics"
	"readtrack-backend/internal/models"
)

// ErrRetired is returned by StartSession once the registry has evicted the
// tracker. Callers should fetch a fresh tracker and retry.
var ErrRetired = errors.New("tracker retired")

// SessionStore persists the initial and final session records.
type SessionStore interface {
	Create(ctx context.Context, s *models.ReadingSession) error
	Finalize(ctx context.Context, s *models.ReadingSession) error
}

// ProgressSink receives batched partial persists. Calls are fire-and-forget.
type ProgressSink interface {
	Flush(ctx context.Context, snap models.ProgressSnapshot) error
}

// ProfileUpdater folds a finalized session into the reader's profile.
type ProfileUpdater interface {
	Apply(ctx context.Context, s *models.ReadingSession) (*models.UserReadingProfile, error)
}

// EventPublisher fans session lifecycle events out to live viewers.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.ReadingEvent) error
}

type Options struct {
	HeartbeatInterval   time.Duration
	FlushEvery          int
	CompletionThreshold int
	Clock               Clock
	Logger              *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 5 * time.Second
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 10
	}
	if o.CompletionThreshold <= 0 {
		o.CompletionThreshold = 80
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Logger == nil {
		o.Logger = &log.Logger
	}
	return o
}

// Tracker owns at most one open reading session.
//
// mu guards in-memory state and is never held across I/O, so scroll samples
// and heartbeat ticks never wait on the database. lifecycle serializes
// start/end, which await their persistence calls.
type Tracker struct {
	store    SessionStore
	sink     ProgressSink
	profiles ProfileUpdater
	events   EventPublisher
	opts     Options

	lifecycle sync.Mutex

	mu        sync.Mutex
	active    *models.ReadingSession
	started   time.Time // carries the monotonic reading; active.StartTime does not
	heartbeat *Heartbeat
	focused   bool
	samples   int
	lastSeen  time.Time
	retired   bool

	flushes sync.WaitGroup
}

// New builds a tracker. events may be nil.
func New(store SessionStore, sink ProgressSink, profiles ProfileUpdater, events EventPublisher, opts Options) *Tracker {
	opts = opts.withDefaults()
	return &Tracker{
		store:    store,
		sink:     sink,
		profiles: profiles,
		events:   events,
		opts:     opts,
		lastSeen: opts.Clock.Now(),
	}
}

// StartSession finalizes any open session, then opens and persists a new one.
func (t *Tracker) StartSession(ctx context.Context, userID, articleID, articleTitle string, env models.Environment) (uuid.UUID, error) {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	retired := t.retired
	if !retired {
		t.lastSeen = t.opts.Clock.Now()
	}
	t.mu.Unlock()
	if retired {
		return uuid.Nil, ErrRetired
	}

	t.endLocked(ctx)

	now := t.opts.Clock.Now()
	s := &models.ReadingSession{
		UserID:       userID,
		ArticleID:    articleID,
		ArticleTitle: articleTitle,
		StartTime:    now.UTC(),
		ScrollEvents: []models.ScrollEvent{},
		Device:       ParseDevice(env.UserAgent),
		Browser:      ParseBrowser(env.UserAgent),
		ScreenSize:   screenSize(env),
		UserAgent:    env.UserAgent,
	}

	if err := t.store.Create(ctx, s); err != nil {
		metrics.PersistFailures.WithLabelValues(metrics.OpCreate).Inc()
		return uuid.Nil, fmt.Errorf("failed to create reading session: %w", err)
	}

	t.mu.Lock()
	t.active = s
	t.started = now
	t.focused = true
	t.samples = 0
	t.lastSeen = now
	t.heartbeat = StartHeartbeat(t.opts.HeartbeatInterval, t.beat)
	t.mu.Unlock()

	metrics.SessionsStarted.Inc()
	t.opts.Logger.Debug().
		Str("session_id", s.ID.String()).
		Str("user_id", userID).
		Str("article_id", articleID).
		Msg("reading session started")

	t.publish(ctx, models.EventSessionStarted, s)

	return s.ID, nil
}

// RecordScroll logs a scroll sample and raises progress to the running max.
// It returns the session's progress and false when no session is open.
func (t *Tracker) RecordScroll(percentage int) (int, bool) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		return 0, false
	}

	now := t.opts.Clock.Now()
	s := t.active
	s.ScrollEvents = append(s.ScrollEvents, models.ScrollEvent{
		Timestamp:      now.UTC(),
		ScrollPosition: percentage,
		TimeFromStart:  elapsedSeconds(t.started, now),
	})
	if percentage > s.ReadingProgress {
		s.ReadingProgress = percentage
	}
	t.samples++
	t.lastSeen = now

	var snap *models.ProgressSnapshot
	if t.samples%t.opts.FlushEvery == 0 {
		snap = &models.ProgressSnapshot{
			SessionID:       s.ID,
			ReadingProgress: s.ReadingProgress,
			TotalTimeSpent:  s.TotalTimeSpent,
			ScrollEvents:    append([]models.ScrollEvent(nil), s.ScrollEvents...),
		}
	}
	progress := s.ReadingProgress
	t.mu.Unlock()

	metrics.ScrollSamples.Inc()

	if snap != nil {
		t.flush(*snap)
	}
	return progress, true
}

func (t *Tracker) flush(snap models.ProgressSnapshot) {
	t.flushes.Add(1)
	go func() {
		defer t.flushes.Done()
		if err := t.sink.Flush(context.Background(), snap); err != nil {
			metrics.PersistFailures.WithLabelValues(metrics.OpFlush).Inc()
			t.opts.Logger.Warn().Err(err).
				Str("session_id", snap.SessionID.String()).
				Msg("partial progress persist failed")
		}
	}()
}

// SetFocus records whether the host page currently has foreground focus.
func (t *Tracker) SetFocus(focused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = focused
	t.lastSeen = t.opts.Clock.Now()
}

// beat recomputes time spent while the page is focused. Nothing is persisted.
// A focused page counts as host activity, so long reads without scrolling
// are not swept as idle.
func (t *Tracker) beat() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil || !t.focused {
		return
	}
	now := t.opts.Clock.Now()
	t.active.TotalTimeSpent = elapsedSeconds(t.started, now)
	t.lastSeen = now
}

// EndSession finalizes the open session, persists it and updates the reader's
// profile. Persistence failures are logged; in-memory state is cleared either
// way. Returns the finalized session, or nil when nothing was open.
func (t *Tracker) EndSession(ctx context.Context) *models.ReadingSession {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	return t.endLocked(ctx)
}

// ForceEnd is EndSession for teardown paths. Idempotent.
func (t *Tracker) ForceEnd(ctx context.Context) *models.ReadingSession {
	return t.EndSession(ctx)
}

// endLocked requires t.lifecycle.
func (t *Tracker) endLocked(ctx context.Context) *models.ReadingSession {
	t.mu.Lock()
	s := t.active
	hb := t.heartbeat
	t.active = nil
	t.heartbeat = nil
	t.samples = 0
	if s != nil {
		now := t.opts.Clock.Now()
		end := now.UTC()
		s.EndTime = &end
		s.TotalTimeSpent = elapsedSeconds(t.started, now)
		s.IsCompleted = s.ReadingProgress >= t.opts.CompletionThreshold
	}
	t.mu.Unlock()

	hb.Stop()

	if s == nil {
		return nil
	}

	logger := t.opts.Logger.With().
		Str("session_id", s.ID.String()).
		Str("user_id", s.UserID).
		Logger()

	if err := t.store.Finalize(ctx, s); err != nil {
		// The session is dropped rather than counted without a stored record.
		metrics.PersistFailures.WithLabelValues(metrics.OpFinalize).Inc()
		logger.Error().Err(err).Msg("failed to persist final reading session")
		return s
	}

	if _, err := t.profiles.Apply(ctx, s); err != nil {
		metrics.PersistFailures.WithLabelValues(metrics.OpProfile).Inc()
		logger.Error().Err(err).Msg("failed to update reading profile")
	}

	metrics.SessionsEnded.WithLabelValues(strconv.FormatBool(s.IsCompleted)).Inc()
	metrics.SessionDuration.Observe(float64(s.TotalTimeSpent))
	logger.Debug().
		Int("total_time_spent", s.TotalTimeSpent).
		Int("reading_progress", s.ReadingProgress).
		Bool("is_completed", s.IsCompleted).
		Msg("reading session ended")

	t.publish(ctx, models.EventSessionCompleted, s)

	return s
}

func (t *Tracker) publish(ctx context.Context, typ string, s *models.ReadingSession) {
	if t.events == nil {
		return
	}
	ev := models.ReadingEvent{
		Type:            typ,
		SessionID:       s.ID,
		UserID:          s.UserID,
		ArticleID:       s.ArticleID,
		ArticleTitle:    s.ArticleTitle,
		ReadingProgress: s.ReadingProgress,
		TotalTimeSpent:  s.TotalTimeSpent,
		IsCompleted:     s.IsCompleted,
		At:              t.opts.Clock.Now().UTC(),
	}
	if err := t.events.Publish(ctx, ev); err != nil {
		metrics.PersistFailures.WithLabelValues(metrics.OpPublish).Inc()
		t.opts.Logger.Warn().Err(err).Str("event", typ).Msg("failed to publish reading event")
	}
}

// CurrentSession returns a copy of the open session, or nil.
func (t *Tracker) CurrentSession() *models.ReadingSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active.Clone()
}

// LastSeen is the time of the most recent host input.
func (t *Tracker) LastSeen() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

// Wait blocks until in-flight partial persists have returned.
func (t *Tracker) Wait() {
	t.flushes.Wait()
}

func (t *Tracker) retire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retired = true
}
