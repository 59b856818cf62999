// Package limiter provides a bounded in-memory rate limiter keyed by
// source address. It is a best-effort optimization in front of the
// authoritative lockout state in the relational store, and is injected as
// a dependency so a shared store can replace it in multi-process setups.
package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Memory is a swept map of per-key token buckets.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*entry
	limit      rate.Limit
	burst      int
	ttl        time.Duration
	maxEntries int
	lastGC     time.Time
}

// NewMemory constructs a limiter allowing r events per second with the
// given burst per key. Entries idle longer than ttl are swept; the map
// never tracks more than maxEntries keys.
func NewMemory(r rate.Limit, burst int, ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]*entry),
		limit:      r,
		burst:      burst,
		ttl:        ttl,
		maxEntries: maxEntries,
		lastGC:     time.Now(),
	}
}

// Allow reports whether one event for key may proceed now.
func (m *Memory) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastGC) > time.Minute {
		for k, e := range m.entries {
			if now.Sub(e.lastSeen) > m.ttl {
				delete(m.entries, k)
			}
		}
		m.lastGC = now
	}

	e, ok := m.entries[key]
	if !ok {
		if len(m.entries) >= m.maxEntries {
			// At capacity the limiter stops tracking new keys rather than
			// growing without bound; the store-backed lockout still applies.
			return true
		}
		e = &entry{lim: rate.NewLimiter(m.limit, m.burst)}
		m.entries[key] = e
	}
	e.lastSeen = now
	return e.lim.Allow()
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
