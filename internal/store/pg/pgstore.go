// Package pg implements the persistence interfaces on PostgreSQL via the pgx
// stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cloudos.jermis.io/internal/dashboard"
	"cloudos.jermis.io/internal/identity"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var (
	_ identity.UserStore    = (*Users)(nil)
	_ identity.SessionStore = (*Sessions)(nil)
	_ identity.AuditStore   = (*Audits)(nil)
	_ dashboard.Store       = (*Dashboards)(nil)
)

// Store bundles the per-aggregate stores over one connection pool.
type Store struct {
	db *sql.DB

	users      *Users
	sessions   *Sessions
	audits     *Audits
	dashboards *Dashboards
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool (used by tests).
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:         db,
		users:      &Users{db: db},
		sessions:   &Sessions{db: db},
		audits:     &Audits{db: db},
		dashboards: &Dashboards{db: db},
	}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() *Users           { return s.users }
func (s *Store) Sessions() *Sessions     { return s.sessions }
func (s *Store) Audits() *Audits         { return s.audits }
func (s *Store) Dashboards() *Dashboards { return s.dashboards }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
