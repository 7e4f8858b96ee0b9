package auth

import "errors"

var (
	// ErrInvalidInput marks caller-correctable problems (empty identifier
	// or secret). Never logged as a security event.
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrInvalidCredentials is returned for every login failure, whether
	// the identifier was unknown, the secret was wrong, or the account is
	// disabled. The distinction exists only in the audit log.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrRateLimited rejects a login before the store is touched.
	ErrRateLimited = errors.New("auth: too many attempts")

	// ErrAuthRequired means no valid session accompanies the request.
	ErrAuthRequired = errors.New("auth: authentication required")

	// ErrPermissionDenied means the session is authenticated but its role
	// lacks the permission.
	ErrPermissionDenied = errors.New("auth: permission denied")
)
