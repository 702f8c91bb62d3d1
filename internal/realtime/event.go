package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wauterstoon/tickets/internal/domain"
)

// EventTypeMessage announces a newly persisted ticket message.
const EventTypeMessage = "message"

// Event is the wire envelope delivered to room subscribers.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// MessagePayload mirrors the durable message record.
type MessagePayload struct {
	ID         string      `json:"id"`
	TicketID   string      `json:"ticket_id"`
	SenderID   string      `json:"sender_id"`
	SenderRole domain.Role `json:"sender_role"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewMessageEvent wraps a message for broadcast.
func NewMessageEvent(msg *domain.Message) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: EventTypeMessage,
		Payload: MessagePayload{
			ID:         msg.ID,
			TicketID:   msg.TicketID,
			SenderID:   msg.SenderID,
			SenderRole: msg.SenderRole,
			Content:    msg.Content,
			CreatedAt:  msg.CreatedAt,
		},
	}
}

// RoomForTicket derives the room name for a ticket number.
func RoomForTicket(number int64) string {
	return fmt.Sprintf("ticket-%d", number)
}
