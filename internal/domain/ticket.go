package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets. Transitions are
// free-form: any status may follow any other by support action.
type TicketStatus string

const (
	TicketStatusRequested  TicketStatus = "REQUESTED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// ValidStatus reports whether s is a known status value.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusRequested, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityNormal TicketPriority = "NORMAL"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// PriorityRank maps a priority to its severity rank for sorting. Higher is
// more urgent.
func PriorityRank(p TicketPriority) int {
	switch p {
	case TicketPriorityUrgent:
		return 4
	case TicketPriorityHigh:
		return 3
	case TicketPriorityNormal:
		return 2
	case TicketPriorityLow:
		return 1
	}
	return 0
}

// Ticket is the aggregate for support requests. Number is the human-facing
// identifier: unique, strictly increasing in creation order, assigned once.
type Ticket struct {
	ID                 string
	Number             int64
	Title              string
	Description        string
	RemoteAccessID     string
	RemoteAccessSecret string
	Priority           TicketPriority
	Status             TicketStatus
	RequesterID        string
	AssignedToID       *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
