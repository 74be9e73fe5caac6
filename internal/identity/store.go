package identity

import (
	"context"
	"time"
)

// UserStore manages intranet accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByAzureID(ctx context.Context, azureID string) (*User, error)
	UpdateProfile(ctx context.Context, u *User) error
	// RecordLogin stamps last-login and increments the login count. The two
	// login paths (local and SSO) are the only callers.
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	SetStatus(ctx context.Context, userID string, status Status) error
	ListActive(ctx context.Context, limit int) ([]*User, error)
}

// SessionStore persists the server-side session rows that make tokens revocable.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	// Lookup returns the session together with the owning user's current role
	// and status (a join, not a cached copy).
	Lookup(ctx context.Context, token string) (*Session, *User, error)
	// Revoke deletes the row; revoking an unknown token is not an error.
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

// AuditStore appends immutable access records.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	RecentByUser(ctx context.Context, userID string, limit int) ([]*AuditEntry, error)
}
