package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloudos.jermis.io/internal/ids"
)

const defaultSessionTTL = 24 * time.Hour

// Service owns the credential verification and session lifecycle. All
// dependencies are passed in explicitly; there is no package-level state.
type Service struct {
	users      UserStore
	sessions   SessionStore
	tokens     *TokenIssuer
	sessionTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithSessionTTL overrides the default 24h session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth service.
func NewService(users UserStore, sessions SessionStore, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil || sessions == nil || tokens == nil {
		return nil, errors.New("identity: users, sessions and tokens are required")
	}
	s := &Service{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Login verifies email/password credentials, updates login bookkeeping and
// opens a session. Unknown email, non-ACTIVE status and password mismatch all
// collapse into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status != StatusActive {
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.openSession(ctx, user)
}

// LoginFromAzure resolves an externally verified profile to a local account,
// creating one on first sign-in, and opens a session.
func (s *Service) LoginFromAzure(ctx context.Context, profile AzureProfile) (*LoginResult, error) {
	if strings.TrimSpace(profile.ID) == "" {
		return nil, fmt.Errorf("%w: provider profile id is required", ErrInvalidInput)
	}
	user, err := s.upsertFromAzure(ctx, profile)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user)
}

func (s *Service) upsertFromAzure(ctx context.Context, profile AzureProfile) (*User, error) {
	user, err := s.users.FindByAzureID(ctx, profile.ID)
	switch {
	case err == nil:
		user.Email = strings.ToLower(profile.Address())
		user.FirstName = profile.GivenName
		user.LastName = profile.Surname
		user.DisplayName = profile.DisplayName
		// The provider may omit the org fields on some tenants. Absence
		// means "no change", not "clear".
		if profile.Department != "" {
			user.Department = profile.Department
		}
		if profile.JobTitle != "" {
			user.Position = profile.JobTitle
		}
		if err := s.users.UpdateProfile(ctx, user); err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		return user, nil
	case errors.Is(err, ErrNotFound):
		user = &User{
			ID:          ids.New(),
			AzureID:     profile.ID,
			Email:       strings.ToLower(profile.Address()),
			FirstName:   profile.GivenName,
			LastName:    profile.Surname,
			DisplayName: profile.DisplayName,
			Department:  profile.Department,
			Position:    profile.JobTitle,
			Role:        RoleEmployee,
			Status:      StatusActive,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return user, nil
	default:
		return nil, fmt.Errorf("find user by provider id: %w", err)
	}
}

func (s *Service) openSession(ctx context.Context, user *User) (*LoginResult, error) {
	now := s.now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.LastLogin = &now
	user.LoginCount++

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	// The session expiry is fixed server-side and tracked independently of the
	// token's exp claim; both must hold for a request to pass.
	expiresAt := now.Add(s.sessionTTL)
	if err := s.sessions.Create(ctx, &Session{Token: token, UserID: user.ID, ExpiresAt: expiresAt}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate runs the per-request checks in order: token signature and
// expiry, session row presence and expiry, account status. Each failure maps
// to its own sentinel so the transport layer can answer precisely.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	if _, err := s.tokens.Verify(token); err != nil {
		return Principal{}, ErrInvalidToken
	}
	session, user, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrSessionExpired
		}
		return Principal{}, fmt.Errorf("session lookup: %w", err)
	}
	if session.Expired(s.now()) {
		return Principal{}, ErrSessionExpired
	}
	if user.Status != StatusActive {
		return Principal{}, ErrAccountNotActive
	}
	return user.Principal(), nil
}

// Logout revokes the session for the presented token. Idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// Deactivate flips the account to INACTIVE and revokes every live session, so
// the lockout takes effect immediately rather than at token expiry.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if err := s.users.SetStatus(ctx, userID, StatusInactive); err != nil {
		return err
	}
	return s.sessions.RevokeAll(ctx, userID)
}

// Profile loads the full profile projection for an authenticated user.
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	return s.users.Find(ctx, userID)
}
