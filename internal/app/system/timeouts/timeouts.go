// Package timeouts centralizes the deadlines handlers put on database
// and storage work, so a slow Mongo node degrades requests predictably
// instead of pinning goroutines.
//
// Pick the tier by the shape of the operation:
//   - Ping: connectivity checks from the health endpoint
//   - Short: single-document reads, token-to-user lookups
//   - Medium: list queries, group browse, plain creates and updates
//   - Long: submission uploads and deletes that also touch storage
//   - Batch: the integrity sweep and cascade deletes over collections
package timeouts

import (
	"sync"
	"time"
)

// Config is the full set of tiers. Zero fields keep the current value.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Batch  time.Duration
}

var defaults = Config{
	Ping:   2 * time.Second,
	Short:  5 * time.Second,
	Medium: 10 * time.Second,
	Long:   30 * time.Second,
	Batch:  60 * time.Second,
}

var (
	mu      sync.RWMutex
	current = defaults
)

// Ping is the deadline for health-check connectivity probes.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short is the deadline for single-document reads and lookups.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium is the deadline for list queries and ordinary writes.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long is the deadline for multi-collection writes and storage I/O.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Batch is the deadline for sweeps and bulk cascades.
func Batch() time.Duration { return get(func(c Config) time.Duration { return c.Batch }) }

func get(field func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return field(current)
}

// Configure overrides tiers at startup. Zero fields are left alone, so
// callers only name what they want to change.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		current.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
	if cfg.Batch > 0 {
		current.Batch = cfg.Batch
	}
}

// Reset restores the defaults. Intended for tests.
func Reset() {
	mu.Lock()
	current = defaults
	mu.Unlock()
}
