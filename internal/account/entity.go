// AngelaMos | 2026
// entity.go

package account

import (
	"strings"
	"time"
)

type Account struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	Username     string `db:"username"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	PasswordHash string `db:"password_hash"`
	AccountType  string `db:"account_type"`
	Role         string `db:"role"`
	IPAddress    string `db:"ip_address"`

	IsEmailVerified          bool      `db:"is_email_verified"`
	VerificationToken        string    `db:"verification_token"`
	VerificationTokenExpires time.Time `db:"verification_token_expires"`
	TokenIsUsed              bool      `db:"token_is_used"`

	LoginRetries int       `db:"login_retries"`
	LastLogin    time.Time `db:"last_login"`

	PasswordResetToken   *string    `db:"password_reset_token"`
	PasswordResetExpires *time.Time `db:"password_reset_expires"`
	PasswordResetRetries int        `db:"password_reset_retries"`
	PasswordChangedAt    *time.Time `db:"password_changed_at"`

	IsSuspended bool `db:"is_suspended"`
	IsDeleted   bool `db:"is_deleted"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// HasRole reports whether the account holds exactly role.
func (a *Account) HasRole(role string) bool {
	return a.Role == role
}

const (
	RoleSuperAdmin  = "super_admin"
	RoleClientAdmin = "client_admin"
	RoleUser        = "user"
)

const (
	TypePersonal     = "personal"
	TypeOrganization = "organization"
)

func ValidAccountType(t string) bool {
	return t == TypePersonal || t == TypeOrganization
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Update is a partial update. Nil fields are left untouched.
type Update struct {
	PasswordHash         *string
	IsEmailVerified      *bool
	TokenIsUsed          *bool
	LoginRetries         *int
	LastLogin            *time.Time
	PasswordResetToken   *string
	PasswordResetExpires *time.Time
	PasswordResetRetries *int
	PasswordChangedAt    *time.Time
	IsSuspended          *bool
	IsDeleted            *bool
	IPAddress            *string
}

func (u Update) IsEmpty() bool {
	return u.PasswordHash == nil &&
		u.IsEmailVerified == nil &&
		u.TokenIsUsed == nil &&
		u.LoginRetries == nil &&
		u.LastLogin == nil &&
		u.PasswordResetToken == nil &&
		u.PasswordResetExpires == nil &&
		u.PasswordResetRetries == nil &&
		u.PasswordChangedAt == nil &&
		u.IsSuspended == nil &&
		u.IsDeleted == nil &&
		u.IPAddress == nil
}

// Ptr returns a pointer to v, for building Update values.
func Ptr[T any](v T) *T {
	return &v
}
