package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.log")
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	l, err := New(path, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	return l, path
}

func TestRecordLineFormat(t *testing.T) {
	l, path := newTestLogger(t)

	uid := int64(42)
	l.Record(Record{
		PrincipalID: &uid,
		ClientIP:    "10.0.0.9",
		Action:      "Successful Login",
		Details:     "User: admin, Role: admin",
		UserAgent:   "Mozilla/5.0",
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"[2025-03-14 09:26:53] User ID: 42 | IP: 10.0.0.9 | Action: Successful Login | Details: User: admin, Role: admin | User Agent: Mozilla/5.0\n",
		string(data))
	require.True(t, l.Healthy())
}

func TestRecordNilPrincipalWritesNull(t *testing.T) {
	l, path := newTestLogger(t)

	l.Record(Record{ClientIP: "1.2.3.4", Action: "Failed Login Attempt", Details: "Username: ghost"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "User ID: null |")
}

func TestRecordsAppendInOrder(t *testing.T) {
	l, path := newTestLogger(t)

	l.Record(Record{Action: "First"})
	l.Record(Record{Action: "Second"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Action: First")
	require.Contains(t, lines[1], "Action: Second")
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	l, path := newTestLogger(t)

	const workers = 40
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			l.Record(Record{Action: "Update Visitor Status", Details: strings.Repeat("x", 200)})
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, workers)
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "["), "partial write detected: %q", line)
		require.Contains(t, line, "User Agent:")
	}
}

func TestDetailsForcedToOneLine(t *testing.T) {
	l, path := newTestLogger(t)

	l.Record(Record{Action: "Delete Visitor", Details: "ID: 3\nName: sneaky\r\nnewline"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 1)
}

func TestWriteFailureSurfacesViaHealth(t *testing.T) {
	dir := t.TempDir()
	// A path whose parent is a file cannot be opened for append.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	l := &Logger{path: filepath.Join(blocker, "activity.log"), now: time.Now}
	l.Record(Record{Action: "Anything"})

	require.False(t, l.Healthy())
	require.Error(t, l.Err())
}

func TestEmptyActionRejected(t *testing.T) {
	l, path := newTestLogger(t)

	l.Record(Record{Action: "   "})

	_, err := os.ReadFile(path)
	require.True(t, os.IsNotExist(err), "no line should be written without an action")
	require.False(t, l.Healthy())
}

func TestRecordReturnsCompletedRecord(t *testing.T) {
	l, _ := newTestLogger(t)

	first := l.Record(Record{ClientIP: "1.2.3.4", Action: "Successful Login"})
	require.NotEmpty(t, first.ID)
	_, err := ulid.Parse(first.ID)
	require.NoError(t, err)
	require.False(t, first.Timestamp.IsZero())

	second := l.Record(Record{ClientIP: "1.2.3.4", Action: "User Logout"})
	require.NotEqual(t, first.ID, second.ID)

	// Caller-supplied ids survive untouched.
	third := l.Record(Record{ID: "fixed-id", ClientIP: "1.2.3.4", Action: "User Logout"})
	require.Equal(t, "fixed-id", third.ID)
}
