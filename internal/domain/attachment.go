package domain

import "time"

// Attachment stores metadata for an uploaded file bound to a ticket.
// Immutable; created in batches tied to one upload event.
type Attachment struct {
	ID               string
	TicketID         string
	StoredFilename   string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	RelativePath     string
	CreatedAt        time.Time
}
