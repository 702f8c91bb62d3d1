package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips all markup from free-text input, leaving plain text.
// Title, description, notes and message content all pass through here
// before persistence.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New returns a sanitizer with the strict policy (no tags, no attributes).
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean returns the sanitized, trimmed plain text.
func (s *Sanitizer) Clean(value string) string {
	return strings.TrimSpace(s.policy.Sanitize(value))
}
