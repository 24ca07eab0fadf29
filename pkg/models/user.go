package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleMember = "member"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

var roleRank = map[string]int{RoleMember: 1, RoleEditor: 2, RoleAdmin: 3}

// RoleAtLeast reports whether role grants at least the permissions of min.
func RoleAtLeast(role, min string) bool {
	return roleRank[role] >= roleRank[min] && roleRank[role] > 0
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// User is an account able to sign in.
type User struct {
	Base
	Email        string     `json:"email" gorm:"uniqueIndex;size:254;not null"`
	Name         string     `json:"name" gorm:"size:120"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role" gorm:"size:16;not null;default:member"`
	Image        string     `json:"image,omitempty"`
	TOTPSecret   string     `json:"-" gorm:"column:totp_secret"`
	TOTPPending  string     `json:"-" gorm:"column:totp_pending"`
	TOTPEnabled  bool       `json:"totp_enabled" gorm:"column:totp_enabled"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Session backs a signed session token. Tokens whose session row is missing,
// expired or revoked are rejected.
type Session struct {
	Base
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;index;not null"`
	TokenID   string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	IPAddress string     `json:"ip_address" gorm:"size:64"`
	UserAgent string     `json:"user_agent" gorm:"size:255"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" gorm:"index"`
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
