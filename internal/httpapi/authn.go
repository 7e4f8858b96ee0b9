package httpapi

import (
	"net/http"

	"schooladmin.org/internal/audit"
	"schooladmin.org/internal/auth"
)

const (
	sessionCookieName  = "session_token"
	rememberCookieName = "remember_token"
)

// withSession resolves the session cookie into a request-scoped session.
// Resolution never fails the request by itself; requireAuth and
// requirePermission decide per handler.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err == nil && cookie.Value != "" {
			if session, ok := a.authn.Resolve(cookie.Value); ok {
				r = r.WithContext(auth.ContextWithSession(r.Context(), session))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth returns the session or ErrAuthRequired. Anonymous requests
// short-circuit before any data access.
func (a *API) requireAuth(r *http.Request) (auth.Session, error) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok || !session.Authenticated {
		return auth.Session{}, auth.ErrAuthRequired
	}
	return session, nil
}

// requirePermission checks authentication first, then the role table.
// Denied attempts by authenticated users are audited; a missing session is
// an authentication problem, not an authorization one.
func (a *API) requirePermission(r *http.Request, perm auth.Permission) (auth.Session, error) {
	session, err := a.requireAuth(r)
	if err != nil {
		return auth.Session{}, err
	}
	if !auth.HasPermission(session, perm) {
		a.auditLog.Record(audit.Record{
			PrincipalID: &session.PrincipalID,
			ClientIP:    clientIP(r),
			Action:      "Permission Denied",
			Details:     "Permission: " + string(perm) + ", Role: " + session.Role,
			UserAgent:   r.UserAgent(),
		})
		return auth.Session{}, auth.ErrPermissionDenied
	}
	return session, nil
}

func clientInfo(r *http.Request) auth.ClientInfo {
	return auth.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()}
}
