package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeUserStore behaves like a database: rows are canonical, reads hand out copies.
type fakeUserStore struct {
	rows    map[string]*User
	created []User
}

func newFakeUserStore(users ...*User) *fakeUserStore {
	s := &fakeUserStore{rows: map[string]*User{}}
	for _, u := range users {
		row := *u
		s.rows[row.ID] = &row
	}
	return s
}

func (s *fakeUserStore) Create(ctx context.Context, u *User) error {
	for _, row := range s.rows {
		if row.Email == u.Email {
			return ErrConflict
		}
	}
	row := *u
	s.rows[row.ID] = &row
	s.created = append(s.created, row)
	return nil
}

func (s *fakeUserStore) Find(ctx context.Context, id string) (*User, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *row
	return &out, nil
}

func (s *fakeUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, row := range s.rows {
		if row.Email == email {
			out := *row
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeUserStore) FindByAzureID(ctx context.Context, azureID string) (*User, error) {
	for _, row := range s.rows {
		if row.AzureID != "" && row.AzureID == azureID {
			out := *row
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeUserStore) UpdateProfile(ctx context.Context, u *User) error {
	if _, ok := s.rows[u.ID]; !ok {
		return ErrNotFound
	}
	row := *u
	s.rows[row.ID] = &row
	return nil
}

func (s *fakeUserStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	row, ok := s.rows[userID]
	if !ok {
		return ErrNotFound
	}
	stamped := at
	row.LastLogin = &stamped
	row.LoginCount++
	return nil
}

func (s *fakeUserStore) SetStatus(ctx context.Context, userID string, status Status) error {
	row, ok := s.rows[userID]
	if !ok {
		return ErrNotFound
	}
	row.Status = status
	return nil
}

func (s *fakeUserStore) ListActive(ctx context.Context, limit int) ([]*User, error) {
	var out []*User
	for _, row := range s.rows {
		if row.Status == StatusActive {
			u := *row
			out = append(out, &u)
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	sessions map[string]*Session
	users    *fakeUserStore
}

func newFakeSessionStore(users *fakeUserStore) *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*Session{}, users: users}
}

func (s *fakeSessionStore) Create(ctx context.Context, sess *Session) error {
	if _, ok := s.sessions[sess.Token]; ok {
		return ErrConflict
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *fakeSessionStore) Lookup(ctx context.Context, token string) (*Session, *User, error) {
	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil, ErrNotFound
	}
	user, err := s.users.Find(ctx, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	return sess, user, nil
}

func (s *fakeSessionStore) Revoke(ctx context.Context, token string) error {
	delete(s.sessions, token)
	return nil
}

func (s *fakeSessionStore) RevokeAll(ctx context.Context, userID string) error {
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func newTestService(t *testing.T, users *fakeUserStore, opts ...ServiceOption) (*Service, *fakeSessionStore) {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	sessions := newFakeSessionStore(users)
	svc, err := NewService(users, sessions, issuer, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, sessions
}

func activeUser(t *testing.T, password string) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &User{
		ID:           "user-1",
		Email:        "a@x.com",
		PasswordHash: hash,
		FirstName:    "Anna",
		LastName:     "Muster",
		Role:         RoleEmployee,
		Status:       StatusActive,
	}
}

func TestLoginSuccessUpdatesBookkeeping(t *testing.T) {
	user := activeUser(t, "secret1")
	users := newFakeUserStore(user)
	svc, sessions := newTestService(t, users)

	res, err := svc.Login(context.Background(), "A@X.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
	if res.User.ID != "user-1" {
		t.Fatalf("unexpected user: %s", res.User.ID)
	}
	if res.User.LoginCount != 1 {
		t.Fatalf("expected login count 1, got %d", res.User.LoginCount)
	}
	if res.User.LastLogin == nil {
		t.Fatal("expected last login to be stamped")
	}
	if _, ok := sessions.sessions[res.Token]; !ok {
		t.Fatal("expected a session row for the issued token")
	}
	if got := sessions.sessions[res.Token].UserID; got != "user-1" {
		t.Fatalf("session bound to wrong user: %s", got)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	users := newFakeUserStore(activeUser(t, "secret1"))
	svc, _ := newTestService(t, users)

	if _, err := svc.Login(context.Background(), "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t, newFakeUserStore())
	if _, err := svc.Login(context.Background(), "nobody@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRejectsInactiveEvenWithCorrectPassword(t *testing.T) {
	for _, status := range []Status{StatusInactive, StatusSuspended, StatusPending} {
		user := activeUser(t, "secret1")
		user.Status = status
		svc, _ := newTestService(t, newFakeUserStore(user))

		if _, err := svc.Login(context.Background(), "a@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("status %s: expected ErrInvalidCredentials, got %v", status, err)
		}
	}
}

func TestAuthenticateHappyPath(t *testing.T) {
	users := newFakeUserStore(activeUser(t, "secret1"))
	svc, _ := newTestService(t, users)

	res, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	principal, err := svc.Authenticate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.ID != "user-1" || principal.Role != RoleEmployee || principal.Status != StatusActive {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestRevokedSessionRejectsValidToken(t *testing.T) {
	users := newFakeUserStore(activeUser(t, "secret1"))
	svc, _ := newTestService(t, users)

	res, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	// The token's own signature and expiry are still valid; revocation is
	// driven by the session row alone.
	if _, err := svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	// Logout of an already revoked token is not an error.
	if err := svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestAuthenticateExpiryBoundaryIsExclusive(t *testing.T) {
	current := time.Now().UTC()
	clock := func() time.Time { return current }
	users := newFakeUserStore(activeUser(t, "secret1"))
	svc, _ := newTestService(t, users, WithSessionTTL(time.Hour), WithClock(clock))

	res, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	current = res.ExpiresAt.Add(-time.Second)
	if _, err := svc.Authenticate(context.Background(), res.Token); err != nil {
		t.Fatalf("one second before expiry should pass: %v", err)
	}

	current = res.ExpiresAt
	if _, err := svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("exactly at expiry must be expired, got %v", err)
	}
}

func TestAuthenticateRejectsDeactivatedAccount(t *testing.T) {
	user := activeUser(t, "secret1")
	users := newFakeUserStore(user)
	svc, _ := newTestService(t, users)

	res, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	// Deactivation takes effect on the next request because the session
	// lookup re-reads the user row.
	users.rows[user.ID].Status = StatusSuspended
	if _, err := svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrAccountNotActive) {
		t.Fatalf("expected ErrAccountNotActive, got %v", err)
	}
}

func TestDeactivateRevokesAllSessions(t *testing.T) {
	users := newFakeUserStore(activeUser(t, "secret1"))
	svc, sessions := newTestService(t, users)

	first, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if err := svc.Deactivate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("expected all sessions revoked, %d remain", len(sessions.sessions))
	}
	if users.rows["user-1"].Status != StatusInactive {
		t.Fatalf("expected INACTIVE status, got %s", users.rows["user-1"].Status)
	}
	for _, token := range []string{first.Token, second.Token} {
		if _, err := svc.Authenticate(context.Background(), token); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	}
}

func TestLoginFromAzureCreatesEmployeeOnFirstSignIn(t *testing.T) {
	users := newFakeUserStore()
	svc, _ := newTestService(t, users)

	res, err := svc.LoginFromAzure(context.Background(), AzureProfile{
		ID:                "azure-1",
		DisplayName:       "Max Muster",
		GivenName:         "Max",
		Surname:           "Muster",
		UserPrincipalName: "Max.Muster@jermis.example",
	})
	if err != nil {
		t.Fatalf("LoginFromAzure: %v", err)
	}
	if len(users.created) != 1 {
		t.Fatalf("expected one created user, got %d", len(users.created))
	}
	created := users.created[0]
	if created.Role != RoleEmployee || created.Status != StatusActive {
		t.Fatalf("unexpected defaults: role=%s status=%s", created.Role, created.Status)
	}
	if created.Email != "max.muster@jermis.example" {
		t.Fatalf("expected UPN fallback lowered, got %s", created.Email)
	}
	// Department and position were absent from the assertion and must stay empty.
	if created.Department != "" || created.Position != "" {
		t.Fatalf("absent provider fields must not be defaulted: %+v", created)
	}
	if res.User.LoginCount != 1 {
		t.Fatalf("expected login count 1, got %d", res.User.LoginCount)
	}
}

func TestLoginFromAzureUpdatesExistingProfile(t *testing.T) {
	existing := activeUser(t, "secret1")
	existing.AzureID = "azure-1"
	existing.Department = "Old"
	users := newFakeUserStore(existing)
	svc, _ := newTestService(t, users)

	res, err := svc.LoginFromAzure(context.Background(), AzureProfile{
		ID:          "azure-1",
		DisplayName: "Anna Muster",
		GivenName:   "Anna",
		Surname:     "Muster",
		Mail:        "a@x.com",
		Department:  "Logistics",
		JobTitle:    "Dispatcher",
	})
	if err != nil {
		t.Fatalf("LoginFromAzure: %v", err)
	}
	if len(users.created) != 0 {
		t.Fatal("no new user should be created for a known provider id")
	}
	if res.User.Department != "Logistics" || res.User.Position != "Dispatcher" {
		t.Fatalf("profile fields not refreshed: %+v", res.User)
	}
}

func TestLoginFromAzureKeepsAbsentProfileFields(t *testing.T) {
	existing := activeUser(t, "secret1")
	existing.AzureID = "azure-1"
	existing.Department = "Logistics"
	existing.Position = "Dispatcher"
	users := newFakeUserStore(existing)
	svc, _ := newTestService(t, users)

	res, err := svc.LoginFromAzure(context.Background(), AzureProfile{
		ID:          "azure-1",
		DisplayName: "Anna Muster",
		GivenName:   "Anna",
		Surname:     "Muster",
		Mail:        "a@x.com",
	})
	if err != nil {
		t.Fatalf("LoginFromAzure: %v", err)
	}
	if res.User.Department != "Logistics" || res.User.Position != "Dispatcher" {
		t.Fatalf("absent provider fields must not clear stored values: %+v", res.User)
	}
}
