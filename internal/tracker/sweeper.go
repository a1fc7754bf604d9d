package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper force-ends sessions whose page never reported teardown.
type Sweeper struct {
	registry    *Registry
	clock       Clock
	idleTimeout time.Duration
	interval    time.Duration
	stopChan    chan struct{}
	done        chan struct{}
	started     bool
}

func NewSweeper(registry *Registry, clock Clock, idleTimeout, interval time.Duration) *Sweeper {
	if clock == nil {
		clock = SystemClock
	}
	return &Sweeper{
		registry:    registry,
		clock:       clock,
		idleTimeout: idleTimeout,
		interval:    interval,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.started = true
	go s.loop()
	log.Info().
		Dur("idle_timeout", s.idleTimeout).
		Dur("interval", s.interval).
		Msg("Idle session sweeper started")
}

func (s *Sweeper) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	if s.started {
		<-s.done
	}
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep evicts idle trackers and force-ends their sessions. Returns the
// number of sessions it closed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.idleTimeout)
	evicted := s.registry.EvictIdle(cutoff)

	closed := 0
	for _, t := range evicted {
		if t.ForceEnd(ctx) != nil {
			closed++
		}
	}

	if closed > 0 {
		log.Info().
			Int("evicted", len(evicted)).
			Int("closed", closed).
			Msg("Idle reading sessions force-ended")
	}
	return closed
}
