package dto

import (
	"encoding/json"
	"time"

	"github.com/wauterstoon/tickets/internal/domain"
	"github.com/wauterstoon/tickets/internal/service"
)

// NullableString distinguishes an absent JSON field from an explicit null.
// Used for assignment patches, where null means unassign.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON is only invoked when the key is present.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// PatchTicketRequest payload for support updates.
type PatchTicketRequest struct {
	Status        *domain.TicketStatus `json:"status"`
	AssignedToID  NullableString       `json:"assigned_to_id"`
	Note          *string              `json:"note"`
	PublicMessage *string              `json:"public_message"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Email   string `json:"email"`
	Content string `json:"content"`
}

// CreateTicketResponse returns the assigned human-facing number.
type CreateTicketResponse struct {
	TicketNumber int64 `json:"ticket_number"`
}

// UserResponse public user fields.
type UserResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// TicketSummary listing row.
type TicketSummary struct {
	ID         string                `json:"id"`
	Number     int64                 `json:"number"`
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	Status     domain.TicketStatus   `json:"status"`
	Requester  *UserResponse         `json:"requester,omitempty"`
	AssignedTo *UserResponse         `json:"assigned_to"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID                 string                `json:"id"`
	Number             int64                 `json:"number"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	RemoteAccessID     string                `json:"remote_access_id"`
	RemoteAccessSecret string                `json:"remote_access_secret"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	Requester          *UserResponse         `json:"requester"`
	AssignedTo         *UserResponse         `json:"assigned_to"`
	Attachments        []AttachmentResponse  `json:"attachments"`
	Activity           []ActivityResponse    `json:"activity"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID               string    `json:"id"`
	StoredFilename   string    `json:"stored_filename"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	RelativePath     string    `json:"relative_path"`
	CreatedAt        time.Time `json:"created_at"`
}

// ActivityResponse audit entry.
type ActivityResponse struct {
	ID        string              `json:"id"`
	Type      domain.ActivityType `json:"type"`
	Metadata  map[string]any      `json:"metadata"`
	CreatedAt time.Time           `json:"created_at"`
}

// MessageResponse thread entry.
type MessageResponse struct {
	ID         string        `json:"id"`
	TicketID   string        `json:"ticket_id"`
	Sender     *UserResponse `json:"sender,omitempty"`
	SenderID   string        `json:"sender_id"`
	SenderRole domain.Role   `json:"sender_role"`
	Content    string        `json:"content"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SupportTicketResponse bundles a ticket with the engineer roster.
type SupportTicketResponse struct {
	Ticket    TicketDetailResponse `json:"ticket"`
	Engineers []UserResponse       `json:"engineers"`
}

// FromUser maps a user to its response form.
func FromUser(user *domain.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}

// FromTicketRow maps a listing row.
func FromTicketRow(row service.TicketWithUsers) TicketSummary {
	return TicketSummary{
		ID:         row.Ticket.ID,
		Number:     row.Ticket.Number,
		Title:      row.Ticket.Title,
		Priority:   row.Ticket.Priority,
		Status:     row.Ticket.Status,
		Requester:  FromUser(row.Requester),
		AssignedTo: FromUser(row.AssignedTo),
		CreatedAt:  row.Ticket.CreatedAt,
		UpdatedAt:  row.Ticket.UpdatedAt,
	}
}

// FromTicketDetail maps a resolved ticket detail.
func FromTicketDetail(detail *service.TicketDetail) TicketDetailResponse {
	attachments := make([]AttachmentResponse, 0, len(detail.Attachments))
	for _, att := range detail.Attachments {
		attachments = append(attachments, AttachmentResponse{
			ID:               att.ID,
			StoredFilename:   att.StoredFilename,
			OriginalFilename: att.OriginalFilename,
			MimeType:         att.MimeType,
			SizeBytes:        att.SizeBytes,
			RelativePath:     att.RelativePath,
			CreatedAt:        att.CreatedAt,
		})
	}
	activity := make([]ActivityResponse, 0, len(detail.Activity))
	for _, entry := range detail.Activity {
		activity = append(activity, ActivityResponse{
			ID:        entry.ID,
			Type:      entry.Type,
			Metadata:  entry.Metadata,
			CreatedAt: entry.CreatedAt,
		})
	}
	ticket := detail.Ticket
	return TicketDetailResponse{
		ID:                 ticket.ID,
		Number:             ticket.Number,
		Title:              ticket.Title,
		Description:        ticket.Description,
		RemoteAccessID:     ticket.RemoteAccessID,
		RemoteAccessSecret: ticket.RemoteAccessSecret,
		Priority:           ticket.Priority,
		Status:             ticket.Status,
		Requester:          FromUser(detail.Requester),
		AssignedTo:         FromUser(detail.AssignedTo),
		Attachments:        attachments,
		Activity:           activity,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
	}
}

// FromMessage maps a message with its sender.
func FromMessage(row service.MessageWithSender) MessageResponse {
	return MessageResponse{
		ID:         row.Message.ID,
		TicketID:   row.Message.TicketID,
		Sender:     FromUser(row.Sender),
		SenderID:   row.Message.SenderID,
		SenderRole: row.Message.SenderRole,
		Content:    row.Message.Content,
		CreatedAt:  row.Message.CreatedAt,
	}
}
