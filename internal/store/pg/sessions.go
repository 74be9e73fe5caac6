package pg

import (
	"context"
	"database/sql"
	"errors"

	"cloudos.jermis.io/internal/identity"
)

// Sessions implements identity.SessionStore.
type Sessions struct {
	db *sql.DB
}

func (s *Sessions) Create(ctx context.Context, sess *identity.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (token, user_id, expires_at)
		values ($1, $2, $3)
	`, sess.Token, sess.UserID, sess.ExpiresAt.UTC())
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return identity.ErrConflict
			case pgErrForeignKeyViolation:
				return identity.ErrNotFound
			}
		}
		return err
	}
	return nil
}

// Lookup joins the owning user so role and status changes take effect on the
// next request rather than living on in a stale session copy.
func (s *Sessions) Lookup(ctx context.Context, token string) (*identity.Session, *identity.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select s.token, s.user_id, s.expires_at, `+prefixedUserColumns("u")+`
		from sessions s
		join users u on u.id = s.user_id
		where s.token = $1
	`, token)

	var sess identity.Session
	var u identity.User
	var azureID, passwordHash, phone, avatar sql.NullString
	var department, position, tz, language, theme sql.NullString
	var lastLogin sql.NullTime

	err := row.Scan(&sess.Token, &sess.UserID, &sess.ExpiresAt,
		&u.ID, &azureID, &u.Email, &passwordHash, &u.FirstName, &u.LastName,
		&u.DisplayName, &phone, &avatar, &u.Role, &u.Status, &department, &position,
		&tz, &language, &theme, &lastLogin, &u.LoginCount, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	u.AzureID = azureID.String
	u.PasswordHash = passwordHash.String
	u.PhoneNumber = phone.String
	u.Avatar = avatar.String
	u.Department = department.String
	u.Position = position.String
	u.Timezone = tz.String
	u.Language = language.String
	u.Theme = theme.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &sess, &u, nil
}

func (s *Sessions) Revoke(ctx context.Context, token string) error {
	// Deleting an unknown token is not an error; logout is idempotent.
	_, err := s.db.ExecContext(ctx, `delete from sessions where token=$1`, token)
	return err
}

func (s *Sessions) RevokeAll(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where user_id=$1`, userID)
	return err
}

// PurgeExpired removes lapsed rows; expiry is otherwise enforced lazily on
// lookup, so this only keeps the table small.
func (s *Sessions) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
