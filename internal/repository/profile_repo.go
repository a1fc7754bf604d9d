package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"readtrack-backend/internal/models"
)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

const profileColumns = `user_id, total_reading_time, articles_read, average_reading_time,
		completion_rate, preferred_reading_times, top_categories, engagement_score,
		last_activity, reading_sessions, created_at, updated_at`

// Get returns (nil, nil) when the reader has no profile.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*models.UserReadingProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_reading_profiles WHERE user_id = $1`
	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProfileRepo) Upsert(ctx context.Context, p *models.UserReadingProfile) error {
	ids := p.ReadingSessions
	if ids == nil {
		ids = []uuid.UUID{}
	}
	sessions, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode session ids: %w", err)
	}

	query := `
		INSERT INTO user_reading_profiles (user_id, total_reading_time, articles_read,
			average_reading_time, completion_rate, preferred_reading_times, top_categories,
			engagement_score, last_activity, reading_sessions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE
		SET total_reading_time = EXCLUDED.total_reading_time,
			articles_read = EXCLUDED.articles_read,
			average_reading_time = EXCLUDED.average_reading_time,
			completion_rate = EXCLUDED.completion_rate,
			preferred_reading_times = EXCLUDED.preferred_reading_times,
			top_categories = EXCLUDED.top_categories,
			engagement_score = EXCLUDED.engagement_score,
			last_activity = EXCLUDED.last_activity,
			reading_sessions = EXCLUDED.reading_sessions,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	return r.pool.QueryRow(ctx, query,
		p.UserID, p.TotalReadingTime, p.ArticlesRead,
		p.AverageReadingTime, p.CompletionRate, nonNil(p.PreferredReadingTimes), nonNil(p.TopCategories),
		p.EngagementScore, p.LastActivity, json.RawMessage(sessions),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *ProfileRepo) ListAll(ctx context.Context) ([]*models.UserReadingProfile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM user_reading_profiles ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*models.UserReadingProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row) (*models.UserReadingProfile, error) {
	p := &models.UserReadingProfile{}
	var sessions []byte
	err := row.Scan(
		&p.UserID, &p.TotalReadingTime, &p.ArticlesRead, &p.AverageReadingTime,
		&p.CompletionRate, &p.PreferredReadingTimes, &p.TopCategories, &p.EngagementScore,
		&p.LastActivity, &sessions, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ReadingSessions = []uuid.UUID{}
	if len(sessions) > 0 {
		if err := json.Unmarshal(sessions, &p.ReadingSessions); err != nil {
			return nil, fmt.Errorf("failed to decode session ids: %w", err)
		}
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
