package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cloudos.jermis.io/internal/dashboard"
	"cloudos.jermis.io/internal/identity"
)

// Dashboards implements dashboard.Store.
type Dashboards struct {
	db *sql.DB
}

const newsColumns = `n.id, n.title, n.content, n.excerpt, n.priority, n.status,
	n.target_roles, n.featured_image, n.author_id, n.published_at, n.expires_at, n.created_at,
	u.first_name, u.last_name, u.display_name, u.avatar`

const newsFromAuthor = `from news_articles n join users u on u.id = n.author_id`

func (s *Dashboards) PublishedNews(ctx context.Context, limit int) ([]*dashboard.NewsArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+newsColumns+`
		`+newsFromAuthor+`
		where n.status='PUBLISHED' and (n.expires_at is null or n.expires_at > now())
		order by n.published_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNews(rows)
}

func (s *Dashboards) ListNews(ctx context.Context, offset, limit int) ([]*dashboard.NewsArticle, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from news_articles where status='PUBLISHED'`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select `+newsColumns+`
		`+newsFromAuthor+`
		where n.status='PUBLISHED'
		order by n.published_at desc
		offset $1 limit $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	articles, err := collectNews(rows)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (s *Dashboards) CreateNews(ctx context.Context, a *dashboard.NewsArticle) error {
	roles, err := json.Marshal(a.TargetRoles)
	if err != nil {
		return fmt.Errorf("encode target roles: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into news_articles (id, title, content, excerpt, priority, status,
			target_roles, featured_image, author_id, published_at, expires_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, a.Title, a.Content, nullString(a.Excerpt), a.Priority, a.Status,
		roles, nullString(a.FeaturedImage), a.AuthorID, nullTime(a.PublishedAt),
		nullTime(a.ExpiresAt), a.CreatedAt.UTC())
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

func collectNews(rows *sql.Rows) ([]*dashboard.NewsArticle, error) {
	var articles []*dashboard.NewsArticle
	for rows.Next() {
		var a dashboard.NewsArticle
		var author dashboard.NewsAuthor
		var excerpt, image, avatar sql.NullString
		var roles []byte
		var publishedAt, expiresAt sql.NullTime
		err := rows.Scan(&a.ID, &a.Title, &a.Content, &excerpt, &a.Priority, &a.Status,
			&roles, &image, &a.AuthorID, &publishedAt, &expiresAt, &a.CreatedAt,
			&author.FirstName, &author.LastName, &author.DisplayName, &avatar)
		if err != nil {
			return nil, err
		}
		if len(roles) > 0 {
			if err := json.Unmarshal(roles, &a.TargetRoles); err != nil {
				return nil, fmt.Errorf("decode target roles: %w", err)
			}
		}
		a.Excerpt = excerpt.String
		a.FeaturedImage = image.String
		author.Avatar = avatar.String
		a.Author = &author
		if publishedAt.Valid {
			t := publishedAt.Time
			a.PublishedAt = &t
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			a.ExpiresAt = &t
		}
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}

func (s *Dashboards) UpcomingEvents(ctx context.Context, userID string, limit int) ([]*dashboard.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, title, start_time, end_time, location
		from calendar_events
		where user_id=$1 and start_time >= now()
		order by start_time asc
		limit $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*dashboard.CalendarEvent
	for rows.Next() {
		var e dashboard.CalendarEvent
		var location sql.NullString
		if err := rows.Scan(&e.ID, &e.Title, &e.Start, &e.End, &location); err != nil {
			return nil, err
		}
		e.Location = location.String
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *Dashboards) MonthlyTimesheetHours(ctx context.Context, userID string, monthStart time.Time) (float64, error) {
	var hours float64
	err := s.db.QueryRowContext(ctx, `
		select coalesce(sum(hours), 0)
		from timesheets
		where user_id=$1 and work_date >= $2
	`, userID, monthStart.UTC()).Scan(&hours)
	return hours, err
}

func (s *Dashboards) PendingExpenseCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from expenses where user_id=$1 and status='PENDING'
	`, userID).Scan(&count)
	return count, err
}

func (s *Dashboards) RecentUploadCount(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from files where uploaded_by=$1 and created_at >= $2
	`, userID, since.UTC()).Scan(&count)
	return count, err
}

func (s *Dashboards) PendingApprovalCounts(ctx context.Context) (int, int, error) {
	var timesheets, expenses int
	err := s.db.QueryRowContext(ctx, `
		select
			(select count(*) from timesheets where status='SUBMITTED'),
			(select count(*) from expenses where status='PENDING')
	`).Scan(&timesheets, &expenses)
	return timesheets, expenses, err
}

func (s *Dashboards) LowStockItems(ctx context.Context, limit int) ([]*dashboard.StockItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, sku, current_stock, min_stock
		from inventory_items
		where current_stock <= min_stock
		order by current_stock asc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*dashboard.StockItem
	for rows.Next() {
		var it dashboard.StockItem
		if err := rows.Scan(&it.ID, &it.Name, &it.SKU, &it.CurrentStock, &it.MinStock); err != nil {
			return nil, err
		}
		if it.CurrentStock == 0 {
			it.Status = "out_of_stock"
		} else {
			it.Status = "low_stock"
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}
