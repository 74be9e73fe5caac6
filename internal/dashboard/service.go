package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cloudos.jermis.io/internal/identity"
	"cloudos.jermis.io/internal/ids"
)

// Presence thresholds, measured against last login.
const (
	onlineWindow   = 5 * time.Minute
	awayWindow     = 30 * time.Minute
	isOnlineWindow = 15 * time.Minute
)

const (
	newsOverviewLimit = 5
	teamBoardLimit    = 20
	lowStockLimit     = 10
	activityLimit     = 10
	uploadWindow      = 7 * 24 * time.Hour
)

// Store is the read/write surface the dashboard needs from persistence.
type Store interface {
	PublishedNews(ctx context.Context, limit int) ([]*NewsArticle, error)
	ListNews(ctx context.Context, offset, limit int) ([]*NewsArticle, int, error)
	CreateNews(ctx context.Context, article *NewsArticle) error
	UpcomingEvents(ctx context.Context, userID string, limit int) ([]*CalendarEvent, error)
	MonthlyTimesheetHours(ctx context.Context, userID string, monthStart time.Time) (float64, error)
	PendingExpenseCount(ctx context.Context, userID string) (int, error)
	RecentUploadCount(ctx context.Context, userID string, since time.Time) (int, error)
	PendingApprovalCounts(ctx context.Context) (timesheets, expenses int, err error)
	LowStockItems(ctx context.Context, limit int) ([]*StockItem, error)
}

// Service aggregates the dashboard from independent reads.
type Service struct {
	store  Store
	users  identity.UserStore
	audits identity.AuditStore
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the dashboard service.
func NewService(store Store, users identity.UserStore, audits identity.AuditStore, opts ...Option) (*Service, error) {
	if store == nil || users == nil || audits == nil {
		return nil, fmt.Errorf("%w: store, users and audits are required", identity.ErrInvalidInput)
	}
	s := &Service{store: store, users: users, audits: audits, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Overview fans out the seven dashboard reads concurrently and joins them
// all-or-nothing: if any read fails the whole aggregate fails, partial
// payloads are never returned. The group context cancels the remaining reads.
func (s *Service) Overview(ctx context.Context, p identity.Principal) (*Overview, error) {
	out := &Overview{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		news, err := s.newsFor(ctx, p.Role)
		out.News = news
		return err
	})
	g.Go(func() error {
		events, err := s.store.UpcomingEvents(ctx, p.ID, 10)
		out.UpcomingEvents = events
		return err
	})
	g.Go(func() error {
		team, err := s.TeamStatus(ctx)
		out.TeamStatus = team
		return err
	})
	g.Go(func() error {
		stats, err := s.userStats(ctx, p.ID)
		out.UserStats = stats
		return err
	})
	g.Go(func() error {
		approvals, err := s.pendingApprovals(ctx, p.Role)
		out.PendingApprovals = approvals
		return err
	})
	g.Go(func() error {
		items, err := s.store.LowStockItems(ctx, lowStockLimit)
		out.LowStockItems = items
		return err
	})
	g.Go(func() error {
		activities, err := s.recentActivities(ctx, p.ID)
		out.RecentActivities = activities
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard aggregate: %w", err)
	}
	out.LastUpdated = s.now().UTC()
	return out, nil
}

func (s *Service) newsFor(ctx context.Context, role identity.Role) ([]*NewsArticle, error) {
	articles, err := s.store.PublishedNews(ctx, newsOverviewLimit)
	if err != nil {
		return nil, err
	}
	filtered := make([]*NewsArticle, 0, len(articles))
	for _, a := range articles {
		if a.VisibleTo(role) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// News returns the paginated role-filtered listing.
func (s *Service) News(ctx context.Context, role identity.Role, page, limit int) (*NewsPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	articles, total, err := s.store.ListNews(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	filtered := make([]*NewsArticle, 0, len(articles))
	for _, a := range articles {
		if a.VisibleTo(role) {
			filtered = append(filtered, a)
		}
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return &NewsPage{Articles: filtered, Page: page, Limit: limit, Total: total, Pages: pages}, nil
}

// NewsDraftInput is the creation payload, already authorized by the caller.
type NewsDraftInput struct {
	Title         string
	Content       string
	Excerpt       string
	Priority      string
	TargetRoles   []identity.Role
	FeaturedImage string
	PublishNow    bool
}

// CreateNews validates and persists a new article for the given author.
func (s *Service) CreateNews(ctx context.Context, authorID string, in NewsDraftInput) (*NewsArticle, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if len(title) < 3 || len(title) > 200 {
		return nil, fmt.Errorf("%w: title must be between 3 and 200 characters", identity.ErrInvalidInput)
	}
	if len(content) < 10 {
		return nil, fmt.Errorf("%w: content must be at least 10 characters long", identity.ErrInvalidInput)
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("%w: invalid priority level", identity.ErrInvalidInput)
	}
	for _, role := range in.TargetRoles {
		if !identity.ValidRole(role) {
			return nil, fmt.Errorf("%w: unknown target role %s", identity.ErrInvalidInput, role)
		}
	}

	now := s.now().UTC()
	article := &NewsArticle{
		ID:            ids.New(),
		Title:         title,
		Content:       content,
		Excerpt:       strings.TrimSpace(in.Excerpt),
		Priority:      priority,
		Status:        NewsDraft,
		TargetRoles:   in.TargetRoles,
		FeaturedImage: in.FeaturedImage,
		AuthorID:      authorID,
		CreatedAt:     now,
	}
	if in.PublishNow {
		article.Status = NewsPublished
		article.PublishedAt = &now
	}
	if err := s.store.CreateNews(ctx, article); err != nil {
		return nil, fmt.Errorf("create news: %w", err)
	}
	return article, nil
}

// TeamStatus returns the presence board for active accounts, most recent first.
func (s *Service) TeamStatus(ctx context.Context) ([]*TeamMember, error) {
	users, err := s.users.ListActive(ctx, teamBoardLimit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	members := make([]*TeamMember, 0, len(users))
	for _, u := range users {
		members = append(members, &TeamMember{
			ID:          u.ID,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			DisplayName: u.DisplayName,
			Avatar:      u.Avatar,
			Department:  u.Department,
			Position:    u.Position,
			LastLogin:   u.LastLogin,
			IsOnline:    u.LastLogin != nil && now.Sub(*u.LastLogin) < isOnlineWindow,
			Presence:    presence(u.LastLogin, now),
		})
	}
	return members, nil
}

func presence(lastLogin *time.Time, now time.Time) string {
	if lastLogin == nil {
		return "offline"
	}
	since := now.Sub(*lastLogin)
	switch {
	case since < onlineWindow:
		return "online"
	case since < awayWindow:
		return "away"
	default:
		return "offline"
	}
}

// UpcomingEvents returns the signed-in user's next calendar entries.
func (s *Service) UpcomingEvents(ctx context.Context, userID string) ([]*CalendarEvent, error) {
	return s.store.UpcomingEvents(ctx, userID, 10)
}

func (s *Service) userStats(ctx context.Context, userID string) (UserStats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	hours, err := s.store.MonthlyTimesheetHours(ctx, userID, monthStart)
	if err != nil {
		return UserStats{}, err
	}
	expenses, err := s.store.PendingExpenseCount(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	uploads, err := s.store.RecentUploadCount(ctx, userID, now.Add(-uploadWindow))
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{MonthlyHours: hours, PendingExpenses: expenses, RecentUploads: uploads}, nil
}

// Approvals returns the open approval queues regardless of role; callers gate
// access themselves.
func (s *Service) Approvals(ctx context.Context) (PendingApprovals, error) {
	timesheets, expenses, err := s.store.PendingApprovalCounts(ctx)
	if err != nil {
		return PendingApprovals{}, err
	}
	return PendingApprovals{Timesheets: timesheets, Expenses: expenses}, nil
}

// LowStock returns inventory lines at or below their minimum level.
func (s *Service) LowStock(ctx context.Context) ([]*StockItem, error) {
	return s.store.LowStockItems(ctx, lowStockLimit)
}

// RecentActivity returns a user's latest audit-trail rows.
func (s *Service) RecentActivity(ctx context.Context, userID string) ([]*Activity, error) {
	return s.recentActivities(ctx, userID)
}

func (s *Service) pendingApprovals(ctx context.Context, role identity.Role) (PendingApprovals, error) {
	switch role {
	case identity.RoleAdmin, identity.RoleSupport, identity.RoleAccounting:
	default:
		// Non-approver roles see empty queues, not an error.
		return PendingApprovals{}, nil
	}
	return s.Approvals(ctx)
}

func (s *Service) recentActivities(ctx context.Context, userID string) ([]*Activity, error) {
	entries, err := s.audits.RecentByUser(ctx, userID, activityLimit)
	if err != nil {
		return nil, err
	}
	activities := make([]*Activity, 0, len(entries))
	for _, e := range entries {
		activities = append(activities, &Activity{
			ID:        e.ID,
			Action:    e.Action,
			Entity:    e.Entity,
			EntityID:  e.EntityID,
			CreatedAt: e.CreatedAt,
		})
	}
	return activities, nil
}
