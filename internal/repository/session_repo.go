package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"readtrack-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, user_id, article_id, article_title, start_time, end_time,
		total_time_spent, reading_progress, scroll_events, is_completed,
		device, browser, screen_size, user_agent, created_at`

func (r *SessionRepo) Create(ctx context.Context, s *models.ReadingSession) error {
	events, err := marshalScrollEvents(s.ScrollEvents)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reading_sessions (user_id, article_id, article_title, start_time,
			total_time_spent, reading_progress, scroll_events, is_completed,
			device, browser, screen_size, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	return r.pool.QueryRow(ctx, query,
		s.UserID, s.ArticleID, s.ArticleTitle, s.StartTime,
		s.TotalTimeSpent, s.ReadingProgress, events, s.IsCompleted,
		s.Device, s.Browser, s.ScreenSize, s.UserAgent,
	).Scan(&s.ID, &s.CreatedAt)
}

// UpdateProgress writes a partial snapshot. Finalized rows are left alone so a
// late flush cannot roll a session back.
func (r *SessionRepo) UpdateProgress(ctx context.Context, snap models.ProgressSnapshot) error {
	events, err := marshalScrollEvents(snap.ScrollEvents)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE reading_sessions
		SET reading_progress = GREATEST(reading_progress, $2),
			total_time_spent = $3,
			scroll_events = $4
		WHERE id = $1
		  AND end_time IS NULL
	`, snap.SessionID, snap.ReadingProgress, snap.TotalTimeSpent, events)
	return err
}

func (r *SessionRepo) Finalize(ctx context.Context, s *models.ReadingSession) error {
	events, err := marshalScrollEvents(s.ScrollEvents)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE reading_sessions
		SET end_time = $2,
			total_time_spent = $3,
			reading_progress = $4,
			scroll_events = $5,
			is_completed = $6
		WHERE id = $1
	`, s.ID, s.EndTime, s.TotalTimeSpent, s.ReadingProgress, events, s.IsCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reading session %s: %w", s.ID, pgx.ErrNoRows)
	}
	return nil
}

// ListByRange returns sessions started inside r. Nil bounds are open.
func (r *SessionRepo) ListByRange(ctx context.Context, dr models.DateRange) ([]*models.ReadingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM reading_sessions
		WHERE ($1::timestamptz IS NULL OR start_time >= $1)
		  AND ($2::timestamptz IS NULL OR start_time <= $2)
		ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, dr.Start, dr.End)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListByUser returns the reader's sessions, newest first.
func (r *SessionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ReadingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM reading_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *SessionRepo) ListByArticle(ctx context.Context, articleID string) ([]*models.ReadingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM reading_sessions
		WHERE article_id = $1
		ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query, articleID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]*models.ReadingSession, error) {
	defer rows.Close()

	sessions := []*models.ReadingSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*models.ReadingSession, error) {
	s := &models.ReadingSession{}
	var events []byte
	err := row.Scan(
		&s.ID, &s.UserID, &s.ArticleID, &s.ArticleTitle, &s.StartTime, &s.EndTime,
		&s.TotalTimeSpent, &s.ReadingProgress, &events, &s.IsCompleted,
		&s.Device, &s.Browser, &s.ScreenSize, &s.UserAgent, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.ScrollEvents = []models.ScrollEvent{}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &s.ScrollEvents); err != nil {
			return nil, fmt.Errorf("failed to decode scroll events: %w", err)
		}
	}
	return s, nil
}

func marshalScrollEvents(events []models.ScrollEvent) (json.RawMessage, error) {
	if events == nil {
		events = []models.ScrollEvent{}
	}
	b, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scroll events: %w", err)
	}
	return b, nil
}
