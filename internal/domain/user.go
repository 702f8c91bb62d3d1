package domain

import "time"

// Role classifies an identity as either a ticket requester or a member of
// the support staff pool. The effective role is re-derived from the support
// allow-list on every request; the value stored on the user row is the role
// at creation time, kept for auditing.
type Role string

const (
	RoleRequester Role = "REQUESTER"
	RoleSupport   Role = "SUPPORT"
)

// User is created on first reference (ticket creation or message send) via
// an upsert by email and is never deleted.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
