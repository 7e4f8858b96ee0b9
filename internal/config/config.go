// Package config holds runtime settings for the admin API, populated from
// defaults and SCHOOLADMIN_* environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the school-admin API.
//
// Fields:
//   - Addr: HTTP bind address.
//   - DatabaseDSN: PostgreSQL DSN (pgx). When empty the DB-backed
//     handlers answer with a data-access failure; health endpoints
//     still serve.
//   - AuditLogPath: append-only audit log file.
//   - RateLimitSnapshotPath: optional JSON snapshot of login-attempt
//     counters, empty keeps them memory-only.
//   - BackupDir: directory for database backup files.
//   - LoginMaxAttempts / LoginWindow: brute-force limiter bounds per client.
//   - SessionTTL: idle lifetime of a server-side session.
type Config struct {
	Addr                  string
	DatabaseDSN           string
	AuditLogPath          string
	RateLimitSnapshotPath string
	BackupDir             string
	LoginMaxAttempts      int
	LoginWindow           time.Duration
	SessionTTL            time.Duration
}

// Load builds a Config from defaults overlaid with environment variables.
func Load() *Config {
	cfg := &Config{
		Addr:             ":8080",
		AuditLogPath:     "logs/activity.log",
		BackupDir:        "backups",
		LoginMaxAttempts: 5,
		LoginWindow:      15 * time.Minute,
		SessionTTL:       8 * time.Hour,
	}
	if v := os.Getenv("SCHOOLADMIN_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.DatabaseDSN = os.Getenv("SCHOOLADMIN_PG_DSN")
	if v := os.Getenv("SCHOOLADMIN_AUDIT_LOG"); v != "" {
		cfg.AuditLogPath = v
	}
	cfg.RateLimitSnapshotPath = os.Getenv("SCHOOLADMIN_RATELIMIT_SNAPSHOT")
	if v := os.Getenv("SCHOOLADMIN_BACKUP_DIR"); v != "" {
		cfg.BackupDir = v
	}
	if v := os.Getenv("SCHOOLADMIN_LOGIN_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LoginMaxAttempts = n
		}
	}
	if v := os.Getenv("SCHOOLADMIN_LOGIN_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LoginWindow = d
		}
	}
	if v := os.Getenv("SCHOOLADMIN_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}
	return cfg
}
