// Package audit keeps the append-only action log. Records are immutable
// once written and serialized per file, so concurrent requests never
// interleave partial lines.
package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"schooladmin.org/internal/ids"
	"schooladmin.org/internal/obs"
)

const lineTimeFormat = "2006-01-02 15:04:05"

// Record is one security-relevant action. PrincipalID is nil for
// anonymous actions (failed logins, denied requests without a session).
type Record struct {
	ID          string
	Timestamp   time.Time
	PrincipalID *int64
	ClientIP    string
	Action      string
	Details     string
	UserAgent   string
}

// Logger appends records to a single log file. A write fault never
// propagates to the caller: the primary operation must not fail because
// logging did. The fault is surfaced to operators through the
// audit_write_failures_total counter and Healthy().
type Logger struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	lastErr error
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Logger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New creates a Logger appending to path, creating the parent directory
// if needed.
func New(path string, opts ...Option) (*Logger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("audit: log path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: create log dir: %w", err)
		}
	}
	l := &Logger{path: path, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends one line and returns the completed record with its
// generated id and timestamp filled in. The action must be non-empty;
// everything else may be blank.
func (l *Logger) Record(rec Record) Record {
	if strings.TrimSpace(rec.Action) == "" {
		l.fail(errors.New("audit: record without action"), nil)
		return rec
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.failLocked(err, recordFields(rec))
		return rec
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(rec)); err != nil {
		l.failLocked(err, recordFields(rec))
		return rec
	}
	l.lastErr = nil
	obs.AuditRecordsTotal.Inc()
	return rec
}

// Healthy reports whether the most recent append succeeded. A silently
// dropped audit trail is itself a defect; readiness checks consume this.
func (l *Logger) Healthy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr == nil
}

// Err returns the most recent append failure, if any.
func (l *Logger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Logger) fail(err error, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failLocked(err, fields)
}

// failLocked runs with l.mu held. The record id in fields lets operators
// correlate a dropped line with the caller that produced it.
func (l *Logger) failLocked(err error, fields map[string]any) {
	l.lastErr = err
	obs.AuditWriteFailuresTotal.Inc()
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields["path"] = l.path
	obs.LogError("audit", "audit append failed", err, fields)
}

func recordFields(rec Record) map[string]any {
	return map[string]any{
		"record_id": rec.ID,
		"action":    rec.Action,
	}
}

func formatLine(rec Record) string {
	principal := "null"
	if rec.PrincipalID != nil {
		principal = fmt.Sprintf("%d", *rec.PrincipalID)
	}
	return fmt.Sprintf("[%s] User ID: %s | IP: %s | Action: %s | Details: %s | User Agent: %s\n",
		rec.Timestamp.Format(lineTimeFormat),
		principal,
		oneLine(rec.ClientIP),
		oneLine(rec.Action),
		oneLine(rec.Details),
		oneLine(rec.UserAgent),
	)
}

// oneLine keeps records to exactly one line each.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
