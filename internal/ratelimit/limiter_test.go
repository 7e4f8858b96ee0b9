package ratelimit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckBoundaryInclusive(t *testing.T) {
	l := New()

	// The counter increments before comparing, so exactly maxAttempts
	// attempts pass and the next one is blocked.
	for i := 1; i <= 5; i++ {
		require.True(t, l.Check("1.2.3.4", 5, 900*time.Second), "attempt %d should pass", i)
	}
	require.False(t, l.Check("1.2.3.4", 5, 900*time.Second), "attempt 6 should be blocked")
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(WithClock(func() time.Time { return now }))

	for i := 0; i < 6; i++ {
		l.Check("client", 5, 900*time.Second)
	}
	require.False(t, l.Check("client", 5, 900*time.Second))

	now = now.Add(901 * time.Second)
	require.True(t, l.Check("client", 5, 900*time.Second), "fresh window should allow attempts again")
	require.Equal(t, 1, l.Attempts("client"), "window reset creates a fresh entry")
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 6; i++ {
		l.Check("attacker", 5, 900*time.Second)
	}
	require.True(t, l.Check("bystander", 5, 900*time.Second))
}

func TestAttemptsMonotonicWithinWindow(t *testing.T) {
	l := New()
	last := 0
	for i := 0; i < 10; i++ {
		l.Check("client", 3, time.Hour)
		n := l.Attempts("client")
		require.Greater(t, n, last)
		last = n
	}
}

func TestConcurrentChecksLoseNoUpdates(t *testing.T) {
	l := New()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			l.Check("shared", workers*2, time.Hour)
		}()
	}
	wg.Wait()

	require.Equal(t, workers, l.Attempts("shared"), "racing increments must not be lost")
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rate_limit.json")

	l := New(WithSnapshot(path))
	l.Check("client", 5, 900*time.Second)
	l.Check("client", 5, 900*time.Second)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries map[string]struct {
		Attempts     int   `json:"attempts"`
		FirstAttempt int64 `json:"first_attempt"`
	}
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)

	restarted := New(WithSnapshot(path))
	require.Equal(t, 2, restarted.Attempts("client"), "restart must not reset the window")
}
