package auth

import (
	"github.com/wauterstoon/tickets/internal/domain"
)

// Guard classifies caller identities against the support-staff allow-list
// and decides ticket access. The allow-list is process-wide configuration,
// injected once at construction and never mutated; classification is a pure
// function of (email, allow-list) re-evaluated on every call.
//
// No session or token state exists: every request presents a caller email
// which is trusted as-is. Identity spoofing is possible when the transport
// does not verify that claim independently.
type Guard struct {
	supportEmails map[string]struct{}
}

// NewGuard builds a guard from the configured allow-list. Matching is exact,
// case-sensitive.
func NewGuard(allowList []string) *Guard {
	emails := make(map[string]struct{}, len(allowList))
	for _, email := range allowList {
		emails[email] = struct{}{}
	}
	return &Guard{supportEmails: emails}
}

// Classify returns SUPPORT iff the email exactly matches an allow-list
// entry; every other identity is a requester.
func (g *Guard) Classify(email string) domain.Role {
	if g.IsSupport(email) {
		return domain.RoleSupport
	}
	return domain.RoleRequester
}

// IsSupport reports whether the email belongs to the support pool.
func (g *Guard) IsSupport(email string) bool {
	if email == "" {
		return false
	}
	_, ok := g.supportEmails[email]
	return ok
}

// CanAccessTicket allows support staff to reach any ticket, and a requester
// only their own.
func (g *Guard) CanAccessTicket(requesterEmail, identityEmail string) bool {
	if g.IsSupport(identityEmail) {
		return true
	}
	return identityEmail != "" && identityEmail == requesterEmail
}
