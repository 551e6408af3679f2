// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID               int64     `db:"id"`
	Name             string    `db:"name"`
	Email            string    `db:"email"`
	PasswordHash     string    `db:"password_hash"`
	Role             string    `db:"role"`
	MembershipNumber *string   `db:"membership_number"`
	CreatedAt        time.Time `db:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// RoleCount is one row of the per-role breakdown.
type RoleCount struct {
	Role  string `db:"role"  json:"role"`
	Count int    `db:"count" json:"count"`
}

type Analytics struct {
	TotalUsers    int         `json:"total_users"`
	ByRole        []RoleCount `json:"by_role"`
	RecentSignups int         `json:"recent_signups"`
	SignupWindow  string      `json:"signup_window"`
}
