package identity

// Capability tags gate feature areas. The mapping is static; changing a user's
// role takes effect on the next authenticated request because the session
// lookup re-reads the user row.
const (
	CapUserManagement  = "user_management"
	CapSystemSettings  = "system_settings"
	CapAllModules      = "all_modules"
	CapNewsPublish     = "news_publish"
	CapTicketHandling  = "ticket_handling"
	CapExpenseApproval = "expense_approval"
	CapTimesheetReview = "timesheet_review"
	CapInventory       = "inventory"
	CapTimesheets      = "timesheets"
	CapExpenses        = "expenses"
	CapDashboard       = "dashboard"
	CapFileSharing     = "file_sharing"
)

var rolePermissions = map[Role][]string{
	RoleAdmin: {
		CapUserManagement, CapSystemSettings, CapAllModules, CapNewsPublish,
		CapTicketHandling, CapExpenseApproval, CapTimesheetReview, CapInventory,
		CapTimesheets, CapExpenses, CapDashboard, CapFileSharing,
	},
	RoleSupport: {
		CapNewsPublish, CapTicketHandling, CapTimesheets, CapExpenses,
		CapDashboard, CapFileSharing,
	},
	RoleAccounting: {
		CapExpenseApproval, CapTimesheetReview, CapTimesheets, CapExpenses,
		CapDashboard, CapFileSharing,
	},
	RoleWarehouse: {
		CapInventory, CapTimesheets, CapExpenses, CapDashboard, CapFileSharing,
	},
	RoleEmployee: {
		CapTimesheets, CapExpenses, CapDashboard, CapFileSharing,
	},
	RoleExternal: {
		CapDashboard, CapFileSharing,
	},
	RoleGuest: {
		CapDashboard,
	},
}

// Permissions returns the ordered capability tags granted to a role.
func Permissions(r Role) []string {
	perms := rolePermissions[r]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasCapability reports whether the role grants the capability tag.
func HasCapability(r Role, cap string) bool {
	for _, c := range rolePermissions[r] {
		if c == cap {
			return true
		}
	}
	return false
}
