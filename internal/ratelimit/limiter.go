// Package ratelimit bounds attempts per identifier inside a rolling
// window. It holds its own state, deliberately independent of the
// relational store: the limiter must keep working while the main store is
// the thing under attack.
package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"
	"time"

	"schooladmin.org/internal/obs"
)

// entry tracks attempts for one hashed identifier. The JSON shape matches
// the snapshot file format.
type entry struct {
	Attempts     int   `json:"attempts"`
	FirstAttempt int64 `json:"first_attempt"`
}

// Limiter is a sliding-window attempt counter keyed by hashed identifier.
type Limiter struct {
	mu           sync.Mutex
	entries      map[string]*entry
	snapshotPath string
	now          func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithSnapshot persists counters to a JSON file under the limiter's lock,
// so a restart does not hand an attacker a fresh window. Write failures
// only log; the limiter keeps serving from memory.
func WithSnapshot(path string) Option {
	return func(l *Limiter) { l.snapshotPath = path }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter, loading the snapshot file if one is configured
// and present.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.snapshotPath != "" {
		l.loadSnapshot()
	}
	return l
}

// Check records an attempt for identifier and reports whether it is still
// allowed. The whole evict-increment-compare sequence runs under one lock:
// two concurrent attempts for the same identifier must not both observe
// the pre-increment count.
//
// The counter increments before the comparison, so the limit is inclusive
// of the boundary attempt: attempt maxAttempts passes, attempt
// maxAttempts+1 is the first one blocked.
func (l *Limiter) Check(identifier string, maxAttempts int, window time.Duration) bool {
	key := hashKey(identifier)
	now := l.now().Unix()
	windowSeconds := int64(window / time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.entries {
		if now-e.FirstAttempt > windowSeconds {
			delete(l.entries, k)
		}
	}

	e, ok := l.entries[key]
	if !ok {
		e = &entry{Attempts: 1, FirstAttempt: now}
		l.entries[key] = e
	} else {
		e.Attempts++
	}

	if l.snapshotPath != "" {
		l.writeSnapshot()
	}

	return e.Attempts <= maxAttempts
}

// Attempts returns the current count for identifier without recording an
// attempt. Zero means no live window.
func (l *Limiter) Attempts(identifier string) int {
	key := hashKey(identifier)
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return e.Attempts
	}
	return 0
}

func (l *Limiter) loadSnapshot() {
	data, err := os.ReadFile(l.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			obs.LogError("ratelimit", "snapshot read failed", err, nil)
		}
		return
	}
	var entries map[string]*entry
	if err := json.Unmarshal(data, &entries); err != nil {
		obs.LogError("ratelimit", "snapshot decode failed", err, nil)
		return
	}
	l.entries = entries
	if l.entries == nil {
		l.entries = make(map[string]*entry)
	}
}

// writeSnapshot runs with l.mu held.
func (l *Limiter) writeSnapshot() {
	data, err := json.Marshal(l.entries)
	if err != nil {
		obs.LogError("ratelimit", "snapshot encode failed", err, nil)
		return
	}
	if err := os.WriteFile(l.snapshotPath, data, 0o644); err != nil {
		obs.LogError("ratelimit", "snapshot write failed", err, nil)
	}
}

func hashKey(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}
