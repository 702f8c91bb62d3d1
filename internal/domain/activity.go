package domain

import "time"

// ActivityType captures which lifecycle event an audit entry records.
type ActivityType string

const (
	ActivityCreated         ActivityType = "CREATED"
	ActivityStatusChanged   ActivityType = "STATUS_CHANGED"
	ActivityAssigned        ActivityType = "ASSIGNED"
	ActivityNoteAdded       ActivityType = "NOTE_ADDED"
	ActivityMessageAdded    ActivityType = "MESSAGE_ADDED"
	ActivityAttachmentAdded ActivityType = "ATTACHMENT_ADDED"
)

// ActivityEntry is an append-only audit record of one lifecycle event.
// Entries are never mutated or deleted; CreatedAt ascending is the canonical
// audit order.
type ActivityEntry struct {
	ID        string
	TicketID  string
	Type      ActivityType
	Metadata  map[string]any
	CreatedAt time.Time
}
