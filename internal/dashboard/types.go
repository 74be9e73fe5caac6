package dashboard

import (
	"time"

	"cloudos.jermis.io/internal/identity"
)

// News lifecycle states and priorities, stored as text.
const (
	NewsDraft     = "DRAFT"
	NewsPublished = "PUBLISHED"
	NewsArchived  = "ARCHIVED"

	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// ValidPriority reports whether p is a known news priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// NewsAuthor is the public projection of an article's author.
type NewsAuthor struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// NewsArticle is an intranet announcement. TargetRoles limits visibility; an
// empty list means visible to everyone.
type NewsArticle struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Excerpt       string          `json:"excerpt,omitempty"`
	Priority      string          `json:"priority"`
	Status        string          `json:"status"`
	TargetRoles   []identity.Role `json:"targetRoles,omitempty"`
	FeaturedImage string          `json:"featuredImage,omitempty"`
	AuthorID      string          `json:"authorId"`
	Author        *NewsAuthor     `json:"author,omitempty"`
	PublishedAt   *time.Time      `json:"publishedAt,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// VisibleTo applies the article's role targeting.
func (a *NewsArticle) VisibleTo(role identity.Role) bool {
	if len(a.TargetRoles) == 0 {
		return true
	}
	for _, r := range a.TargetRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CalendarEvent is an upcoming meeting shown on the dashboard.
type CalendarEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
}

// TeamMember is one row of the presence board.
type TeamMember struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	DisplayName string     `json:"displayName"`
	Avatar      string     `json:"avatar,omitempty"`
	Department  string     `json:"department,omitempty"`
	Position    string     `json:"position,omitempty"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	IsOnline    bool       `json:"isOnline"`
	Presence    string     `json:"status"`
}

// UserStats are the signed-in user's personal counters.
type UserStats struct {
	MonthlyHours    float64 `json:"monthlyHours"`
	PendingExpenses int     `json:"pendingExpenses"`
	RecentUploads   int     `json:"recentUploads"`
}

// PendingApprovals are open approval queues, visible to approver roles only.
type PendingApprovals struct {
	Timesheets int `json:"timesheets"`
	Expenses   int `json:"expenses"`
}

// StockItem is an inventory line at or below its minimum stock level.
type StockItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	CurrentStock int    `json:"currentStock"`
	MinStock     int    `json:"minStock"`
	Status       string `json:"status"`
}

// Activity is one recent audit-trail row shown to its owner.
type Activity struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entityId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Overview is the aggregate dashboard payload.
type Overview struct {
	News             []*NewsArticle   `json:"news"`
	UpcomingEvents   []*CalendarEvent `json:"upcomingEvents"`
	TeamStatus       []*TeamMember    `json:"teamStatus"`
	UserStats        UserStats        `json:"userStats"`
	PendingApprovals PendingApprovals `json:"pendingApprovals"`
	LowStockItems    []*StockItem     `json:"lowStockItems"`
	RecentActivities []*Activity      `json:"recentActivities"`
	LastUpdated      time.Time        `json:"lastUpdated"`
}

// NewsPage is a paginated news listing.
type NewsPage struct {
	Articles []*NewsArticle `json:"articles"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
	Total    int            `json:"total"`
	Pages    int            `json:"pages"`
}
