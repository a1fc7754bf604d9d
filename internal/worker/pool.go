package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"readtrack-backend/internal/metrics"
	"readtrack-backend/internal/models"
)

const ProgressQueue = "queue:progress-flush"

// ProgressWriter applies a partial snapshot to storage.
type ProgressWriter interface {
	UpdateProgress(ctx context.Context, snap models.ProgressSnapshot) error
}

// Enqueuer pushes snapshots onto the flush queue. It satisfies
// tracker.ProgressSink.
type Enqueuer struct {
	redis *redis.Client
}

func NewEnqueuer(redisClient *redis.Client) *Enqueuer {
	return &Enqueuer{redis: redisClient}
}

func (e *Enqueuer) Flush(ctx context.Context, snap models.ProgressSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode progress snapshot: %w", err)
	}
	if err := e.redis.RPush(ctx, ProgressQueue, b).Err(); err != nil {
		return fmt.Errorf("failed to enqueue progress snapshot: %w", err)
	}
	return nil
}

// Pool drains the flush queue. Failed writes are logged and dropped; the
// final persist at session end carries the authoritative state.
type Pool struct {
	redis       *redis.Client
	writer      ProgressWriter
	workerCount int
	popTimeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(redisClient *redis.Client, writer ProgressWriter, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		redis:       redisClient,
		writer:      writer,
		workerCount: workerCount,
		popTimeout:  5 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Info().Int("workers", p.workerCount).Str("queue", ProgressQueue).Msg("started flush workers")
}

// Stop signals the workers and waits for them. A worker blocked on an empty
// queue returns after at most one pop timeout.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			log.Debug().Int("worker", id).Msg("flush worker shutting down")
			return
		}

		result, err := p.redis.BLPop(p.ctx, p.popTimeout, ProgressQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && p.ctx.Err() == nil {
				log.Warn().Err(err).Int("worker", id).Msg("flush queue pop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		p.process(id, result[1])
	}
}

func (p *Pool) process(id int, payload string) {
	var snap models.ProgressSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		log.Error().Err(err).Int("worker", id).Msg("failed to parse progress snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.writer.UpdateProgress(ctx, snap); err != nil {
		metrics.PersistFailures.WithLabelValues(metrics.OpFlush).Inc()
		log.Warn().Err(err).
			Int("worker", id).
			Str("session_id", snap.SessionID.String()).
			Msg("partial progress write failed")
	}
}
