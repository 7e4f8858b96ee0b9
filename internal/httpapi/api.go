package httpapi

import (
	"net/http"
	"strings"
	"time"

	"schooladmin.org/internal/audit"
	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/dbgw"
	"schooladmin.org/internal/obs"
)

// API is the HTTP layer over the access-control core. Every handler goes
// through requireAuth/requirePermission before touching the gateway.
type API struct {
	mux       *http.ServeMux
	gw        *dbgw.Gateway
	authn     *auth.Authenticator
	auditLog  *audit.Logger
	backupDir string
	version   string
}

func New(gw *dbgw.Gateway, authn *auth.Authenticator, auditLog *audit.Logger, backupDir, version string) *API {
	a := &API{
		mux:       http.NewServeMux(),
		gw:        gw,
		authn:     authn,
		auditLog:  auditLog,
		backupDir: backupDir,
		version:   version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/login", a.handleLogin)
	a.mux.HandleFunc("/api/logout", a.handleLogout)

	a.mux.HandleFunc("/api/admissions", a.handleAdmissionsCollection)
	a.mux.HandleFunc("/api/admissions/", a.handleAdmissionResource)
	a.mux.HandleFunc("/api/visitors", a.handleVisitorsCollection)
	a.mux.HandleFunc("/api/visitors/", a.handleVisitorResource)

	a.mux.HandleFunc("/api/dashboard/stats", a.handleDashboardStats)
	a.mux.HandleFunc("/api/export", a.handleExport)
	a.mux.HandleFunc("/api/backup", a.handleBackup)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "resource not found")
	})

	return a
}

// Handler composes the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- health ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "schooladmin-api",
		"version": a.version,
	})
}

// Ready reports not-ready when the store is unreachable or the audit log
// is dropping records. A dropped audit trail is a defect even though the
// primary operations keep succeeding.
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if db := a.gw.DB(); db != nil {
		if err := db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  "store unreachable",
			})
			return
		}
	}
	if !a.auditLog.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  "audit log unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- session lifecycle ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	session, err := a.authn.Login(r.Context(), req.Username, req.Password, clientInfo(r))
	if err != nil {
		writeFailure(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if req.Remember {
		http.SetCookie(w, &http.Cookie{
			Name:     rememberCookieName,
			Value:    auth.MintRememberToken(),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(auth.RememberTokenTTL),
		})
	}

	writeData(w, loginResponse{
		Username: session.Username,
		FullName: session.FullName,
		Role:     session.Role,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	session, err := a.requireAuth(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	a.authn.Logout(session, clientInfo(r))

	expireCookie(w, sessionCookieName)
	expireCookie(w, rememberCookieName)
	writeMessage(w, "Logged out.")
}

func expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// resourceID splits "/api/<kind>/{id}" or "/api/<kind>/{id}/status" and
// reports whether the status suffix was present.
func resourceID(path, prefix string) (id string, status bool, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path || rest == "" {
		return "", false, false
	}
	if tail, found := strings.CutSuffix(rest, "/status"); found {
		rest = tail
		status = true
	}
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false, false
	}
	return rest, status, true
}
