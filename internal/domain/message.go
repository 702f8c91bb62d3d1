package domain

import "time"

// Message is one entry in a ticket's conversation thread. SenderRole is a
// snapshot of the sender's role at send time, not a live join. Immutable
// once created; displayed ordered by CreatedAt ascending.
type Message struct {
	ID         string
	TicketID   string
	SenderID   string
	SenderRole Role
	Content    string
	CreatedAt  time.Time
}
