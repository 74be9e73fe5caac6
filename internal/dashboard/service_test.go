package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloudos.jermis.io/internal/identity"
)

type fakeStore struct {
	news      []*NewsArticle
	events    []*CalendarEvent
	stock     []*StockItem
	hours     float64
	expenses  int
	uploads   int
	approvals [2]int

	failNews      bool
	failStock     bool
	createdNews   []*NewsArticle
	approvalCalls int
}

func (s *fakeStore) PublishedNews(ctx context.Context, limit int) ([]*NewsArticle, error) {
	if s.failNews {
		return nil, errors.New("news query failed")
	}
	if len(s.news) > limit {
		return s.news[:limit], nil
	}
	return s.news, nil
}

func (s *fakeStore) ListNews(ctx context.Context, offset, limit int) ([]*NewsArticle, int, error) {
	if s.failNews {
		return nil, 0, errors.New("news query failed")
	}
	total := len(s.news)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return s.news[offset:end], total, nil
}

func (s *fakeStore) CreateNews(ctx context.Context, article *NewsArticle) error {
	s.createdNews = append(s.createdNews, article)
	return nil
}

func (s *fakeStore) UpcomingEvents(ctx context.Context, userID string, limit int) ([]*CalendarEvent, error) {
	return s.events, nil
}

func (s *fakeStore) MonthlyTimesheetHours(ctx context.Context, userID string, monthStart time.Time) (float64, error) {
	return s.hours, nil
}

func (s *fakeStore) PendingExpenseCount(ctx context.Context, userID string) (int, error) {
	return s.expenses, nil
}

func (s *fakeStore) RecentUploadCount(ctx context.Context, userID string, since time.Time) (int, error) {
	return s.uploads, nil
}

func (s *fakeStore) PendingApprovalCounts(ctx context.Context) (int, int, error) {
	s.approvalCalls++
	return s.approvals[0], s.approvals[1], nil
}

func (s *fakeStore) LowStockItems(ctx context.Context, limit int) ([]*StockItem, error) {
	if s.failStock {
		return nil, errors.New("stock query failed")
	}
	return s.stock, nil
}

type fakeUsers struct {
	active []*identity.User
}

func (f *fakeUsers) Create(ctx context.Context, u *identity.User) error { return nil }
func (f *fakeUsers) Find(ctx context.Context, id string) (*identity.User, error) {
	return nil, identity.ErrNotFound
}
func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return nil, identity.ErrNotFound
}
func (f *fakeUsers) FindByAzureID(ctx context.Context, azureID string) (*identity.User, error) {
	return nil, identity.ErrNotFound
}
func (f *fakeUsers) UpdateProfile(ctx context.Context, u *identity.User) error { return nil }
func (f *fakeUsers) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return nil
}
func (f *fakeUsers) SetStatus(ctx context.Context, userID string, status identity.Status) error {
	return nil
}

func (f *fakeUsers) ListActive(ctx context.Context, limit int) ([]*identity.User, error) {
	return f.active, nil
}

type fakeAudits struct {
	entries []*identity.AuditEntry
	fail    bool
}

func (f *fakeAudits) Append(ctx context.Context, entry *identity.AuditEntry) error { return nil }
func (f *fakeAudits) RecentByUser(ctx context.Context, userID string, limit int) ([]*identity.AuditEntry, error) {
	if f.fail {
		return nil, errors.New("audit query failed")
	}
	return f.entries, nil
}

func employee() identity.Principal {
	return identity.Principal{ID: "user-1", Email: "a@x.com", Role: identity.RoleEmployee, Status: identity.StatusActive}
}

func TestOverviewMergesAllReads(t *testing.T) {
	lastLogin := time.Now().Add(-2 * time.Minute)
	store := &fakeStore{
		news:      []*NewsArticle{{ID: "n1", Title: "Welcome", Status: NewsPublished}},
		events:    []*CalendarEvent{{ID: "e1", Title: "Standup"}},
		stock:     []*StockItem{{ID: "i1", Name: "Paper", Status: "LOW_STOCK"}},
		hours:     42.5,
		expenses:  2,
		uploads:   3,
		approvals: [2]int{4, 5},
	}
	users := &fakeUsers{active: []*identity.User{{ID: "user-2", DisplayName: "Max", LastLogin: &lastLogin}}}
	audits := &fakeAudits{entries: []*identity.AuditEntry{{ID: "a1", UserID: "user-1", Action: "API_ACCESS"}}}

	svc, err := NewService(store, users, audits)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	out, err := svc.Overview(context.Background(), employee())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(out.News) != 1 || len(out.UpcomingEvents) != 1 || len(out.LowStockItems) != 1 {
		t.Fatalf("unexpected payload: %+v", out)
	}
	if out.UserStats.MonthlyHours != 42.5 || out.UserStats.PendingExpenses != 2 || out.UserStats.RecentUploads != 3 {
		t.Fatalf("unexpected stats: %+v", out.UserStats)
	}
	if len(out.TeamStatus) != 1 || out.TeamStatus[0].Presence != "online" || !out.TeamStatus[0].IsOnline {
		t.Fatalf("unexpected team status: %+v", out.TeamStatus)
	}
	if len(out.RecentActivities) != 1 {
		t.Fatalf("unexpected activities: %+v", out.RecentActivities)
	}
	// EMPLOYEE is not an approver role; the queues stay empty.
	if out.PendingApprovals != (PendingApprovals{}) {
		t.Fatalf("expected empty approvals for employee, got %+v", out.PendingApprovals)
	}
	if store.approvalCalls != 0 {
		t.Fatal("approval counts must not be queried for non-approver roles")
	}
	if out.LastUpdated.IsZero() {
		t.Fatal("expected LastUpdated to be set")
	}
}

func TestOverviewShowsApprovalsToApprovers(t *testing.T) {
	store := &fakeStore{approvals: [2]int{4, 5}}
	svc, _ := NewService(store, &fakeUsers{}, &fakeAudits{})

	for _, role := range []identity.Role{identity.RoleAdmin, identity.RoleSupport, identity.RoleAccounting} {
		p := employee()
		p.Role = role
		out, err := svc.Overview(context.Background(), p)
		if err != nil {
			t.Fatalf("Overview(%s): %v", role, err)
		}
		if out.PendingApprovals.Timesheets != 4 || out.PendingApprovals.Expenses != 5 {
			t.Fatalf("role %s: unexpected approvals %+v", role, out.PendingApprovals)
		}
	}
}

func TestOverviewFailsClosedWhenAnyReadFails(t *testing.T) {
	cases := map[string]*fakeStore{
		"news":  {failNews: true},
		"stock": {failStock: true},
	}
	for name, store := range cases {
		svc, _ := NewService(store, &fakeUsers{}, &fakeAudits{})
		if _, err := svc.Overview(context.Background(), employee()); err == nil {
			t.Fatalf("%s: expected aggregate failure, got nil", name)
		}
	}

	svc, _ := NewService(&fakeStore{}, &fakeUsers{}, &fakeAudits{fail: true})
	if _, err := svc.Overview(context.Background(), employee()); err == nil {
		t.Fatal("audit: expected aggregate failure, got nil")
	}
}

func TestNewsRoleTargeting(t *testing.T) {
	store := &fakeStore{news: []*NewsArticle{
		{ID: "n1", Title: "For everyone"},
		{ID: "n2", Title: "Warehouse only", TargetRoles: []identity.Role{identity.RoleWarehouse}},
		{ID: "n3", Title: "Admin or support", TargetRoles: []identity.Role{identity.RoleAdmin, identity.RoleSupport}},
	}}
	svc, _ := NewService(store, &fakeUsers{}, &fakeAudits{})

	page, err := svc.News(context.Background(), identity.RoleWarehouse, 1, 10)
	if err != nil {
		t.Fatalf("News: %v", err)
	}
	if len(page.Articles) != 2 {
		t.Fatalf("expected 2 visible articles, got %d", len(page.Articles))
	}
	for _, a := range page.Articles {
		if a.ID == "n3" {
			t.Fatal("warehouse user must not see admin-targeted news")
		}
	}
	if page.Total != 3 || page.Pages != 1 {
		t.Fatalf("unexpected pagination: %+v", page)
	}
}

func TestCreateNewsValidation(t *testing.T) {
	store := &fakeStore{}
	svc, _ := NewService(store, &fakeUsers{}, &fakeAudits{})
	ctx := context.Background()

	cases := []NewsDraftInput{
		{Title: "ab", Content: "long enough content"},
		{Title: "A valid title", Content: "too short"},
		{Title: "A valid title", Content: "long enough content", Priority: "CRITICAL"},
		{Title: "A valid title", Content: "long enough content", TargetRoles: []identity.Role{"SUPERUSER"}},
	}
	for i, in := range cases {
		if _, err := svc.CreateNews(ctx, "user-1", in); !errors.Is(err, identity.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	if len(store.createdNews) != 0 {
		t.Fatal("invalid drafts must not be persisted")
	}
}

func TestCreateNewsPublishNow(t *testing.T) {
	store := &fakeStore{}
	svc, _ := NewService(store, &fakeUsers{}, &fakeAudits{})

	draft, err := svc.CreateNews(context.Background(), "user-1", NewsDraftInput{
		Title:   "Maintenance window",
		Content: "The warehouse scanner fleet reboots on Friday evening.",
	})
	if err != nil {
		t.Fatalf("CreateNews: %v", err)
	}
	if draft.Status != NewsDraft || draft.PublishedAt != nil {
		t.Fatalf("expected unpublished draft, got %+v", draft)
	}
	if draft.Priority != PriorityNormal {
		t.Fatalf("expected default priority, got %s", draft.Priority)
	}

	published, err := svc.CreateNews(context.Background(), "user-1", NewsDraftInput{
		Title:      "Go live",
		Content:    "The new intranet dashboard is live for everyone.",
		Priority:   PriorityHigh,
		PublishNow: true,
	})
	if err != nil {
		t.Fatalf("CreateNews: %v", err)
	}
	if published.Status != NewsPublished || published.PublishedAt == nil {
		t.Fatalf("expected published article, got %+v", published)
	}
	if published.AuthorID != "user-1" || published.ID == "" {
		t.Fatalf("expected author and id set, got %+v", published)
	}
}

func TestPresenceThresholds(t *testing.T) {
	now := time.Now()
	cases := []struct {
		ago      time.Duration
		expected string
		online   bool
	}{
		{2 * time.Minute, "online", true},
		{10 * time.Minute, "away", true},
		{20 * time.Minute, "away", false},
		{45 * time.Minute, "offline", false},
		{2 * time.Hour, "offline", false},
	}
	for _, c := range cases {
		lastLogin := now.Add(-c.ago)
		users := &fakeUsers{active: []*identity.User{{ID: "u", LastLogin: &lastLogin}}}
		svc, _ := NewService(&fakeStore{}, users, &fakeAudits{})

		team, err := svc.TeamStatus(context.Background())
		if err != nil {
			t.Fatalf("TeamStatus: %v", err)
		}
		if team[0].Presence != c.expected {
			t.Fatalf("%v ago: expected %s, got %s", c.ago, c.expected, team[0].Presence)
		}
		if team[0].IsOnline != c.online {
			t.Fatalf("%v ago: expected isOnline=%v", c.ago, c.online)
		}
	}

	users := &fakeUsers{active: []*identity.User{{ID: "u"}}}
	svc, _ := NewService(&fakeStore{}, users, &fakeAudits{})
	team, _ := svc.TeamStatus(context.Background())
	if team[0].Presence != "offline" || team[0].IsOnline {
		t.Fatalf("never logged in must be offline: %+v", team[0])
	}
}

func TestIsOnlineBoundary(t *testing.T) {
	// 10 minutes ago: past the "online" presence window but within the
	// 15-minute isOnline window.
	lastLogin := time.Now().Add(-10 * time.Minute)
	users := &fakeUsers{active: []*identity.User{{ID: "u", LastLogin: &lastLogin}}}
	svc, _ := NewService(&fakeStore{}, users, &fakeAudits{})

	team, err := svc.TeamStatus(context.Background())
	if err != nil {
		t.Fatalf("TeamStatus: %v", err)
	}
	if !team[0].IsOnline || team[0].Presence != "away" {
		t.Fatalf("expected away but online, got %+v", team[0])
	}
}
