package model

import "time"

// Role names stored in users.role and in the JWT "role" claim.
const (
	RoleAdmin      = "ADMIN"
	RoleSupervisor = "SUPERVISOR"
	RoleAuditor    = "AUDITOR"
	RoleDriver     = "CHOFER"
)

// User represents an application user record as stored in the `users`
// table.  Drivers are users with the CHOFER role; they are referenced by
// route manifests but do not log in to dispatch routes themselves.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	FullName     – display name.
//	Email        – optional email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – one of ADMIN, SUPERVISOR, AUDITOR, CHOFER.
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	FullName     string    // users.full_name
	Email        *string   // users.email (nullable)
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsDriver reports whether the user can be assigned to a route.
func (u *User) IsDriver() bool { return u.Role == RoleDriver }
