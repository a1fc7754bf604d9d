package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"readtrack-backend/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type recordingWriter struct {
	mu    sync.Mutex
	snaps []models.ProgressSnapshot
	err   error
}

func (w *recordingWriter) UpdateProgress(_ context.Context, snap models.ProgressSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snaps = append(w.snaps, snap)
	return w.err
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.snaps)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEnqueuerPushesJSON(t *testing.T) {
	mr, client := setupTestRedis(t)
	e := NewEnqueuer(client)

	snap := models.ProgressSnapshot{SessionID: uuid.New(), ReadingProgress: 40, TotalTimeSpent: 12}
	if err := e.Flush(context.Background(), snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := mr.List(ProgressQueue)
	if err != nil {
		t.Fatalf("failed to read queue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 queued snapshot, got %d", len(items))
	}
}

func TestEnqueuerReportsRedisFailure(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	err := NewEnqueuer(client).Flush(context.Background(), models.ProgressSnapshot{SessionID: uuid.New()})
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestPoolAppliesQueuedSnapshots(t *testing.T) {
	_, client := setupTestRedis(t)
	writer := &recordingWriter{}

	pool := NewPool(client, writer, 2)
	pool.popTimeout = 100 * time.Millisecond
	pool.Start()
	defer pool.Stop()

	e := NewEnqueuer(client)
	id := uuid.New()
	for i := 1; i <= 3; i++ {
		if err := e.Flush(context.Background(), models.ProgressSnapshot{SessionID: id, ReadingProgress: i * 10}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	waitFor(t, func() bool { return writer.count() == 3 })

	writer.mu.Lock()
	defer writer.mu.Unlock()
	for _, s := range writer.snaps {
		if s.SessionID != id {
			t.Errorf("unexpected session id %s", s.SessionID)
		}
	}
}

func TestPoolSkipsMalformedPayloadAndWriteErrors(t *testing.T) {
	mr, client := setupTestRedis(t)
	writer := &recordingWriter{err: errors.New("db down")}

	pool := NewPool(client, writer, 1)
	pool.popTimeout = 100 * time.Millisecond
	pool.Start()
	defer pool.Stop()

	mr.Lpush(ProgressQueue, "not json")
	if err := NewEnqueuer(client).Flush(context.Background(), models.ProgressSnapshot{SessionID: uuid.New()}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	waitFor(t, func() bool { return writer.count() == 1 })
	waitFor(t, func() bool {
		items, _ := mr.List(ProgressQueue)
		return len(items) == 0
	})
}

func TestPoolStopReturnsWhileIdle(t *testing.T) {
	_, client := setupTestRedis(t)

	pool := NewPool(client, &recordingWriter{}, 3)
	pool.popTimeout = 200 * time.Millisecond
	pool.Start()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return while workers were idle")
	}
}
