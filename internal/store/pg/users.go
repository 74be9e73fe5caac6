package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"cloudos.jermis.io/internal/identity"
)

const userColumns = `id, azure_id, email, password_hash, first_name, last_name, display_name,
	phone_number, avatar, role, status, department, position, timezone, language, theme,
	last_login, login_count, created_at, updated_at`

// prefixedUserColumns qualifies every user column with a table alias so the
// list can be embedded in joins.
func prefixedUserColumns(alias string) string {
	cols := strings.Split(userColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// Users implements identity.UserStore.
type Users struct {
	db *sql.DB
}

func (s *Users) Create(ctx context.Context, u *identity.User) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, azure_id, email, password_hash, first_name, last_name,
			display_name, phone_number, avatar, role, status, department, position,
			timezone, language, theme, login_count, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,0,$17,$17)
	`, u.ID, nullString(u.AzureID), strings.ToLower(u.Email), nullString(u.PasswordHash),
		u.FirstName, u.LastName, u.DisplayName, nullString(u.PhoneNumber), nullString(u.Avatar),
		string(u.Role), string(u.Status), nullString(u.Department), nullString(u.Position),
		nullString(u.Timezone), nullString(u.Language), nullString(u.Theme), now)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrConflict
		}
		return err
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (s *Users) Find(ctx context.Context, id string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email)
	return scanUser(row)
}

func (s *Users) FindByAzureID(ctx context.Context, azureID string) (*identity.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where azure_id=$1`, azureID)
	return scanUser(row)
}

func (s *Users) UpdateProfile(ctx context.Context, u *identity.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set email=$2, first_name=$3, last_name=$4, display_name=$5, department=$6,
			position=$7, updated_at=now()
		where id=$1
	`, u.ID, strings.ToLower(u.Email), u.FirstName, u.LastName, u.DisplayName,
		nullString(u.Department), nullString(u.Position))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Users) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set last_login=$2, login_count=login_count+1, updated_at=now()
		where id=$1
	`, userID, at.UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Users) SetStatus(ctx context.Context, userID string, status identity.Status) error {
	res, err := s.db.ExecContext(ctx, `
		update users set status=$2, updated_at=now() where id=$1
	`, userID, string(status))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Users) ListActive(ctx context.Context, limit int) ([]*identity.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where status='ACTIVE'
		order by last_login desc nulls last
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*identity.User, error) {
	var u identity.User
	var azureID, passwordHash, phone, avatar sql.NullString
	var department, position, tz, language, theme sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &azureID, &u.Email, &passwordHash, &u.FirstName, &u.LastName,
		&u.DisplayName, &phone, &avatar, &u.Role, &u.Status, &department, &position,
		&tz, &language, &theme, &lastLogin, &u.LoginCount, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
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
	return &u, nil
}
