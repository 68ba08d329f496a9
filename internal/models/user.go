package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent    UserRole = "STUDENT"
	RoleTeacher    UserRole = "TEACHER"
	RoleTechnician UserRole = "TECHNICIAN"
	RoleAdmin      UserRole = "ADMIN"
	RoleExternal   UserRole = "EXTERNAL"
)

// Staff reports whether the role may operate the job lifecycle beyond its own jobs.
func (r UserRole) Staff() bool {
	return r == RoleAdmin || r == RoleTechnician
}

// User represents an application user stored in the users table.
type User struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	FullName          string     `db:"full_name" json:"full_name"`
	Role              UserRole   `db:"role" json:"role"`
	Active            bool       `db:"active" json:"active"`
	Balance           float64    `db:"balance" json:"balance"`
	CreditLimit       float64    `db:"credit_limit" json:"credit_limit"`
	MaxConcurrentJobs int        `db:"max_concurrent_jobs" json:"max_concurrent_jobs"`
	LastLogin         *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// HasNegativeBalance reports whether the user's balance has gone below zero.
func (u *User) HasNegativeBalance() bool {
	return u.Balance < 0
}

// AvailableCredit is the remaining headroom before the credit limit is exhausted.
func (u *User) AvailableCredit() float64 {
	credit := u.Balance + u.CreditLimit
	if credit < 0 {
		return 0
	}
	return credit
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// BalanceSummary is the quick balance view consumed by the dashboard.
type BalanceSummary struct {
	Balance            float64 `json:"balance"`
	AvailableCredit    float64 `json:"available_credit"`
	HasNegativeBalance bool    `json:"has_negative_balance"`
	ActiveJobs         int     `json:"active_jobs"`
	CanPrint           bool    `json:"can_print"`
}

// BalanceDetail extends the summary with spend and print statistics.
type BalanceDetail struct {
	BalanceSummary
	CreditLimit     float64       `json:"credit_limit"`
	TotalSpent      float64       `json:"total_spent"`
	TotalJobs       int           `json:"total_jobs"`
	CompletedJobs   int           `json:"completed_jobs"`
	TotalPrintHours float64       `json:"total_print_hours"`
	RecentEntries   []LedgerEntry `json:"recent_entries"`
}
