package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"schooladmin.org/internal/audit"
	"schooladmin.org/internal/dbgw"
	"schooladmin.org/internal/ratelimit"
)

const loginQuery = "select id, username, email, full_name, role, credential_hash, is_active from users where (username = $1 or email = $2) and is_active = true"

type authFixture struct {
	auth      *Authenticator
	mock      sqlmock.Sqlmock
	auditPath string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	auditPath := filepath.Join(t.TempDir(), "activity.log")
	auditLog, err := audit.New(auditPath)
	require.NoError(t, err)

	a := NewAuthenticator(
		dbgw.New(db),
		NewSessionStore(time.Hour),
		ratelimit.New(),
		auditLog,
	)
	return &authFixture{auth: a, mock: mock, auditPath: auditPath}
}

func (f *authFixture) auditLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.auditPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func (f *authFixture) expectUserRow(hash string) {
	f.mock.ExpectQuery(regexp.QuoteMeta(loginQuery)).
		WithArgs("admin", "admin").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "full_name", "role", "credential_hash", "is_active",
		}).AddRow(int64(7), "admin", "admin@school.test", "Site Admin", "admin", hash, true))
}

func (f *authFixture) expectNoUserRow(identifier string) {
	f.mock.ExpectQuery(regexp.QuoteMeta(loginQuery)).
		WithArgs(identifier, identifier).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "full_name", "role", "credential_hash", "is_active",
		}))
}

var testClient = ClientInfo{IP: "10.1.2.3", UserAgent: "go-test"}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	hash, err := HashPassword("admin123")
	require.NoError(t, err)

	f.expectUserRow(hash)
	f.mock.ExpectExec(regexp.QuoteMeta("update users set updated_at = $1 where id = $2")).
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := f.auth.Login(context.Background(), "admin", "admin123", testClient)
	require.NoError(t, err)
	require.True(t, session.Authenticated)
	require.Equal(t, "admin", session.Role)
	require.Equal(t, "Site Admin", session.FullName)

	resolved, ok := f.auth.Resolve(session.Token)
	require.True(t, ok)
	require.Equal(t, int64(7), resolved.PrincipalID)

	lines := f.auditLines(t)
	require.Len(t, lines, 1, "exactly one audit record per login")
	require.Contains(t, lines[0], "Action: Successful Login")
	require.Contains(t, lines[0], "User ID: 7")

	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	hash, err := HashPassword("admin123")
	require.NoError(t, err)

	f.expectUserRow(hash)

	_, err = f.auth.Login(context.Background(), "admin", "wrong", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	lines := f.auditLines(t)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "Action: Failed Login Attempt")
	require.Contains(t, lines[0], "User ID: null")
}

func TestLoginUnknownIdentifierSameError(t *testing.T) {
	f := newAuthFixture(t)
	f.expectNoUserRow("ghost")

	_, err := f.auth.Login(context.Background(), "ghost", "whatever", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials,
		"unknown identifier and wrong secret must be indistinguishable")
}

func TestLoginInactivePrincipalRejected(t *testing.T) {
	// The lookup filters on is_active, so a disabled principal behaves
	// exactly like an unknown one regardless of credential correctness.
	f := newAuthFixture(t)
	f.expectNoUserRow("disabled")

	_, err := f.auth.Login(context.Background(), "disabled", "correct-password", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginEmptyInputRejectedBeforeLimiter(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Login(context.Background(), "  ", "x", testClient)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.auth.Login(context.Background(), "admin", "", testClient)
	require.ErrorIs(t, err, ErrInvalidInput)

	// Neither attempt may have consumed rate-limit budget or touched the
	// store (no expectations were registered).
	require.NoError(t, f.mock.ExpectationsWereMet())
	require.Empty(t, f.auditLines(t))
}

func TestLoginRateLimitedAfterMaxAttempts(t *testing.T) {
	f := newAuthFixture(t)
	hash, err := HashPassword("admin123")
	require.NoError(t, err)

	client := ClientInfo{IP: "1.2.3.4", UserAgent: "go-test"}

	// Five failed attempts inside the window consume the whole budget.
	for i := 0; i < 5; i++ {
		f.expectNoUserRow("ghost")
		_, err := f.auth.Login(context.Background(), "ghost", "bad", client)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The sixth attempt is blocked before the store is touched, even
	// with correct credentials.
	_, err = f.auth.Login(context.Background(), "admin", "admin123", client)
	require.ErrorIs(t, err, ErrRateLimited)
	require.NoError(t, f.mock.ExpectationsWereMet())

	// A different client key is unaffected.
	f.expectUserRow(hash)
	f.mock.ExpectExec(regexp.QuoteMeta("update users set updated_at = $1 where id = $2")).
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = f.auth.Login(context.Background(), "admin", "admin123", ClientInfo{IP: "5.6.7.8"})
	require.NoError(t, err)
}

func TestLoginStoreFailurePropagatesOpaque(t *testing.T) {
	f := newAuthFixture(t)
	f.mock.ExpectQuery(regexp.QuoteMeta(loginQuery)).
		WithArgs("admin", "admin").
		WillReturnError(errors.New("connection refused"))

	_, err := f.auth.Login(context.Background(), "admin", "admin123", testClient)
	require.ErrorIs(t, err, dbgw.ErrDataAccess)
}

func TestLogoutDestroysSessionAndAudits(t *testing.T) {
	f := newAuthFixture(t)
	hash, err := HashPassword("admin123")
	require.NoError(t, err)

	f.expectUserRow(hash)
	f.mock.ExpectExec(regexp.QuoteMeta("update users set updated_at = $1 where id = $2")).
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := f.auth.Login(context.Background(), "admin", "admin123", testClient)
	require.NoError(t, err)

	f.auth.Logout(session, testClient)

	_, ok := f.auth.Resolve(session.Token)
	require.False(t, ok, "session must be terminated")

	lines := f.auditLines(t)
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "Action: User Logout")
}
