package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"
)

type Config struct {
	MaxSizeMB int
	Counters  int
	TTL       time.Duration
}

// Cache holds computed analytics results for a short TTL.
type Cache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

func New(cfg Config) (*Cache, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(cfg.Counters),
		MaxCost:     int64(cfg.MaxSizeMB) * 1024 * 1024,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("max_size_mb", cfg.MaxSizeMB).
		Dur("ttl", cfg.TTL).
		Int("counters", cfg.Counters).
		Msg("analytics cache initialized")

	return &Cache{client: client, ttl: cfg.TTL}, nil
}

// Get returns (nil, false) on a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	return c.client.Get(key)
}

// Set stores value under the configured TTL. Writes are applied
// asynchronously and may be dropped under contention.
func (c *Cache) Set(key string, value interface{}, cost int64) bool {
	if c == nil || c.client == nil {
		return false
	}
	return c.client.SetWithTTL(key, value, cost, c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Wait()
}

func (c *Cache) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Close()
	log.Info().Msg("analytics cache closed")
}

type Stats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	KeysAdded   uint64  `json:"keys_added"`
	KeysEvicted uint64  `json:"keys_evicted"`
	SetsDropped uint64  `json:"sets_dropped"`
	HitRatio    float64 `json:"hit_ratio"`
	TTLSeconds  int     `json:"ttl_seconds"`
}

func (c *Cache) Stats() Stats {
	if c == nil || c.client == nil || c.client.Metrics == nil {
		return Stats{}
	}

	m := c.client.Metrics
	return Stats{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		SetsDropped: m.SetsDropped(),
		HitRatio:    m.Ratio(),
		TTLSeconds:  int(c.ttl.Seconds()),
	}
}
