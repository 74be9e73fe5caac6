package identity

import "errors"

var (
	// ErrInvalidCredentials covers unknown email, inactive account and password
	// mismatch alike so login responses cannot be used as an account oracle.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	// ErrInvalidToken covers signature and expiry failures of the token itself.
	ErrInvalidToken = errors.New("identity: invalid token")

	// ErrSessionExpired means the server-side session row is missing or past
	// expiry. Raised independently of ErrInvalidToken; this is the revocation path.
	ErrSessionExpired = errors.New("identity: session missing or expired")

	// ErrAccountNotActive means the owning account is no longer ACTIVE.
	ErrAccountNotActive = errors.New("identity: account is not active")

	ErrNotFound     = errors.New("identity: not found")
	ErrConflict     = errors.New("identity: already exists")
	ErrInvalidInput = errors.New("identity: invalid input")
)
