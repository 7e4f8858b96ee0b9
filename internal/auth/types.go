package auth

import "time"

// Principal is an identity record from the users table. Mutated only
// through the query gateway; Active=false permanently disables
// authentication regardless of credential correctness.
type Principal struct {
	ID             int64
	Username       string
	Email          string
	FullName       string
	Role           string
	CredentialHash string
	Active         bool
	UpdatedAt      time.Time
}

// Session is ephemeral server-side state for one authenticated client.
// Created on successful login, destroyed on logout or expiry, never
// persisted beyond the session store.
type Session struct {
	Token         string
	PrincipalID   int64
	Username      string
	FullName      string
	Role          string
	Authenticated bool
	CreatedAt     time.Time
	LastSeen      time.Time
}
