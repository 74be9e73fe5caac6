package pg

import (
	"context"
	"database/sql"

	"cloudos.jermis.io/internal/identity"
)

// Audits implements identity.AuditStore. The trail is append-only; rows are
// never updated or deleted through this interface.
type Audits struct {
	db *sql.DB
}

func (s *Audits) Append(ctx context.Context, e *identity.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, user_id, action, entity, entity_id, changes,
			ip_address, user_agent, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, nullString(e.UserID), e.Action, e.Entity, nullString(e.EntityID),
		nullString(e.Changes), nullString(e.IPAddress), nullString(e.UserAgent),
		e.CreatedAt.UTC())
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return identity.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Audits) RecentByUser(ctx context.Context, userID string, limit int) ([]*identity.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, action, entity, entity_id, changes, ip_address, user_agent, created_at
		from audit_logs
		where user_id=$1
		order by created_at desc
		limit $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*identity.AuditEntry
	for rows.Next() {
		var e identity.AuditEntry
		var uid, entityID, changes, ip, agent sql.NullString
		if err := rows.Scan(&e.ID, &uid, &e.Action, &e.Entity, &entityID,
			&changes, &ip, &agent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserID = uid.String
		e.EntityID = entityID.String
		e.Changes = changes.String
		e.IPAddress = ip.String
		e.UserAgent = agent.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
