package auth

import (
	"context"
	"strings"
	"time"

	"schooladmin.org/internal/audit"
	"schooladmin.org/internal/dbgw"
	"schooladmin.org/internal/obs"
	"schooladmin.org/internal/ratelimit"
)

const usersTable = "users"

// Authenticator orchestrates the rate limiter, query gateway, and audit
// logger for the session lifecycle. Per client the states are
// anonymous -> authenticating -> authenticated -> terminated;
// authenticating exists only inside one Login call, nothing
// partially-authenticated is ever stored.
type Authenticator struct {
	gw          *dbgw.Gateway
	sessions    *SessionStore
	limiter     *ratelimit.Limiter
	auditLog    *audit.Logger
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAttemptLimit overrides the brute-force bounds.
func WithAttemptLimit(maxAttempts int, window time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		if maxAttempts > 0 {
			a.maxAttempts = maxAttempts
		}
		if window > 0 {
			a.window = window
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		if fn != nil {
			a.now = fn
		}
	}
}

// NewAuthenticator wires the session lifecycle dependencies. Defaults
// match the original deployment: five attempts per fifteen minutes.
func NewAuthenticator(gw *dbgw.Gateway, sessions *SessionStore, limiter *ratelimit.Limiter, auditLog *audit.Logger, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		gw:          gw,
		sessions:    sessions,
		limiter:     limiter,
		auditLog:    auditLog,
		maxAttempts: 5,
		window:      15 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ClientInfo identifies the requesting client for rate limiting and audit.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Login authenticates an identifier/secret pair.
//
// Order matters: empty input is rejected before anything else, then the
// rate limiter is consulted before the store is touched (cheap rejection
// of abusive clients), then the principal is looked up and verified. An
// unknown identifier and a wrong secret both return ErrInvalidCredentials;
// the response must not reveal which it was.
func (a *Authenticator) Login(ctx context.Context, identifier, secret string, client ClientInfo) (Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return Session{}, ErrInvalidInput
	}

	if !a.limiter.Check(client.IP, a.maxAttempts, a.window) {
		obs.LoginRateLimitedTotal.Inc()
		return Session{}, ErrRateLimited
	}

	row, err := a.gw.FetchOne(ctx,
		"select id, username, email, full_name, role, credential_hash, is_active from users where (username = ? or email = ?) and is_active = true",
		identifier, identifier)
	if err != nil {
		return Session{}, err
	}
	if row == nil {
		a.recordFailedLogin(identifier, client)
		return Session{}, ErrInvalidCredentials
	}

	principal := principalFromRow(row)
	if err := VerifyPassword(principal.CredentialHash, secret); err != nil {
		a.recordFailedLogin(identifier, client)
		return Session{}, ErrInvalidCredentials
	}

	session := a.sessions.Create(principal)

	if _, err := a.gw.Update(ctx, usersTable,
		dbgw.Row{"updated_at": a.now().UTC()}, "id = ?", principal.ID); err != nil {
		a.sessions.Delete(session.Token)
		return Session{}, err
	}

	a.auditLog.Record(audit.Record{
		PrincipalID: &principal.ID,
		ClientIP:    client.IP,
		Action:      "Successful Login",
		Details:     "User: " + principal.Username + ", Role: " + principal.Role,
		UserAgent:   client.UserAgent,
	})
	return session, nil
}

// Logout destroys the session and records the action. The remember-me
// cookie is expired by the HTTP layer alongside this call.
func (a *Authenticator) Logout(session Session, client ClientInfo) {
	a.auditLog.Record(audit.Record{
		PrincipalID: &session.PrincipalID,
		ClientIP:    client.IP,
		Action:      "User Logout",
		Details:     "User: " + session.Username,
		UserAgent:   client.UserAgent,
	})
	a.sessions.Delete(session.Token)
}

// Resolve maps a session token to its live session.
func (a *Authenticator) Resolve(token string) (Session, bool) {
	return a.sessions.Get(token)
}

func (a *Authenticator) recordFailedLogin(identifier string, client ClientInfo) {
	obs.LoginFailuresTotal.Inc()
	a.auditLog.Record(audit.Record{
		ClientIP:  client.IP,
		Action:    "Failed Login Attempt",
		Details:   "Username: " + identifier + ", IP: " + client.IP,
		UserAgent: client.UserAgent,
	})
}

func principalFromRow(row dbgw.Row) Principal {
	return Principal{
		ID:             rowInt64(row, "id"),
		Username:       rowString(row, "username"),
		Email:          rowString(row, "email"),
		FullName:       rowString(row, "full_name"),
		Role:           rowString(row, "role"),
		CredentialHash: rowString(row, "credential_hash"),
		Active:         rowBool(row, "is_active"),
	}
}

func rowString(row dbgw.Row, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func rowInt64(row dbgw.Row, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

func rowBool(row dbgw.Row, key string) bool {
	if v, ok := row[key].(bool); ok {
		return v
	}
	return false
}
