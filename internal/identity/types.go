package identity

import "time"

// Role is the closed set of intranet roles. Stored as text, compared verbatim.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupport    Role = "SUPPORT"
	RoleAccounting Role = "ACCOUNTING"
	RoleWarehouse  Role = "WAREHOUSE"
	RoleEmployee   Role = "EMPLOYEE"
	RoleExternal   Role = "EXTERNAL"
	RoleGuest      Role = "GUEST"
)

// Status is the account lifecycle state. Only ACTIVE accounts may authenticate.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusPending   Status = "PENDING"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSupport, RoleAccounting, RoleWarehouse, RoleEmployee, RoleExternal, RoleGuest:
		return true
	}
	return false
}

// User is an intranet account, the principal being authenticated.
type User struct {
	ID           string     `json:"id"`
	AzureID      string     `json:"-"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	DisplayName  string     `json:"displayName"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	Department   string     `json:"department,omitempty"`
	Position     string     `json:"position,omitempty"`
	Timezone     string     `json:"timezone,omitempty"`
	Language     string     `json:"language,omitempty"`
	Theme        string     `json:"theme,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	LoginCount   int        `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"-"`
}

// Principal is the minimal projection attached to an authenticated request.
type Principal struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Status Status `json:"status"`
}

// Principal returns the request-scoped projection of the user.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Email: u.Email, Role: u.Role, Status: u.Status}
}

// Session binds an issued bearer token to a user with an absolute expiry.
// The signed token string is the natural key; the row is the sole source of
// truth for server-side revocation, independent of the token's own exp claim.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at instant now.
// The boundary is exclusive: a session is already expired at exactly ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AuditEntry is one append-only record of authenticated access or a notable action.
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Entity    string
	EntityID  string
	Changes   string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// AzureProfile is the externally verified identity assertion returned by the
// provider's profile endpoint. JobTitle and Department are optional by contract;
// absent values stay empty and are never defaulted.
type AzureProfile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	JobTitle          string `json:"jobTitle,omitempty"`
	Department        string `json:"department,omitempty"`
}

// Email returns the profile's preferred address, falling back to the UPN.
func (p AzureProfile) Address() string {
	if p.Mail != "" {
		return p.Mail
	}
	return p.UserPrincipalName
}
