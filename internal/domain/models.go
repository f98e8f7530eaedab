package domain

import "time"

// AccountKind discriminates user-facing and admin-facing principals.
// Tokens and routes are scoped to exactly one kind.
type AccountKind string

const (
	KindUser  AccountKind = "user"
	KindAdmin AccountKind = "admin"
)

type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super-admin"
	RoleAdmin      AdminRole = "admin"
	RoleStaff      AdminRole = "staff"
)

// User is a shopper account. The password hash is carried only on
// UserWithPassword, never on the default read shape.
type User struct {
	ID            string
	Email         string
	Name          string
	IsActive      bool
	EmailVerified bool

	FailedLoginCount int
	LockedUntil      *time.Time

	PasswordResetExpiresAt *time.Time

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

type UserWithPassword struct {
	User
	PasswordHash string
}

// Admin is a back-office account. AdminID is an uppercase-normalized
// secondary lookup key alongside the email.
type Admin struct {
	ID       string
	Email    string
	AdminID  string
	Name     string
	Role     AdminRole
	IsActive bool

	// Permissions maps a resource name to the actions allowed on it.
	Permissions map[string][]string

	FailedLoginCount int
	LockedUntil      *time.Time

	PasswordResetExpiresAt *time.Time

	TwoFactorEnabled bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

type AdminWithPassword struct {
	Admin
	PasswordHash string
}

// Session is one admin login, correlated by a client-supplied session id.
// Terminated sessions stay on record with IsActive=false.
type Session struct {
	ID             string
	AdminID        string
	SessionID      string
	IsActive       bool
	IP             string
	UserAgent      string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

type ActivityAction string

const (
	ActivityLogin             ActivityAction = "login"
	ActivityLogout            ActivityAction = "logout"
	ActivityResetRequest      ActivityAction = "password-reset-request"
	ActivityPasswordReset     ActivityAction = "password-reset"
	ActivityPasswordChange    ActivityAction = "password-change"
	ActivitySessionTerminate  ActivityAction = "session-terminate"
	ActivityTwoFactorEnable   ActivityAction = "2fa-enable"
	ActivityTwoFactorDisable  ActivityAction = "2fa-disable"
	ActivityAccountDeactivate ActivityAction = "account-deactivate"
	ActivityAccountReactivate ActivityAction = "account-reactivate"
)

// Activity is one immutable audit entry on an admin account.
type Activity struct {
	ID          string
	AdminID     string
	Action      ActivityAction
	Category    string
	Description string
	IP          string
	UserAgent   string
	CreatedAt   time.Time
}

// Locked reports whether an account is refusing authentication at now,
// regardless of password correctness.
func Locked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// IsSuperAdmin reports whether the role carries implicit all-permissions.
func (a Admin) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }

// HasPermission checks a single resource/action pair against the admin's
// permission map. Super-admin bypass is the caller's concern.
func (a Admin) HasPermission(resource, action string) bool {
	for _, allowed := range a.Permissions[resource] {
		if allowed == action {
			return true
		}
	}
	return false
}
