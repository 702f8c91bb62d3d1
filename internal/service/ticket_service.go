package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/wauterstoon/tickets/internal/auth"
	"github.com/wauterstoon/tickets/internal/domain"
	"github.com/wauterstoon/tickets/internal/realtime"
	"github.com/wauterstoon/tickets/internal/repository"
	"github.com/wauterstoon/tickets/internal/sanitize"
	"github.com/wauterstoon/tickets/internal/storage"
	apperrors "github.com/wauterstoon/tickets/pkg/util"
)

// TicketService owns the ticket lifecycle: creation, status and assignment
// changes, the audit trail each transition must produce, and publishing new
// messages to live viewers.
//
// Mutations for one ticket are not serialized against each other beyond
// single-statement atomicity; concurrent updates interleave and the last
// writer wins on status. Multi-step operations are not transactional as a
// unit: a mid-sequence persistence failure leaves earlier sub-effects
// committed.
type TicketService struct {
	users       repository.UserRepository
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	attachments repository.AttachmentRepository
	activity    repository.ActivityLogRepository
	guard       *auth.Guard
	broker      realtime.Broker
	sanitizer   *sanitize.Sanitizer
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	UserRepo       repository.UserRepository
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.MessageRepository
	AttachmentRepo repository.AttachmentRepository
	ActivityRepo   repository.ActivityLogRepository
	Guard          *auth.Guard
	Broker         realtime.Broker
	Sanitizer      *sanitize.Sanitizer
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		users:       deps.UserRepo,
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		activity:    deps.ActivityRepo,
		guard:       deps.Guard,
		broker:      deps.Broker,
		sanitizer:   deps.Sanitizer,
		logger:      deps.Logger,
	}
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Email              string
	Name               string
	Title              string
	Description        string
	RemoteAccessID     string
	RemoteAccessSecret string
	Priority           domain.TicketPriority
}

// IncidentPatch carries the optional sub-effects of one support update.
// Assignment is tri-state: a nil Assignment means the field was absent,
// a non-nil Assignment with a nil AssignedToID means explicit unassign.
type IncidentPatch struct {
	Status        *domain.TicketStatus
	Assignment    *Assignment
	Note          *string
	PublicMessage *string
}

// Assignment wraps the target assignee for a patch.
type Assignment struct {
	AssignedToID *string
}

// TicketDetail is a ticket with its related records resolved.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Requester   *domain.User
	AssignedTo  *domain.User
	Attachments []domain.Attachment
	Activity    []domain.ActivityEntry
}

// TicketWithUsers is a listing row with requester and assignee resolved.
type TicketWithUsers struct {
	Ticket     domain.Ticket
	Requester  *domain.User
	AssignedTo *domain.User
}

// MessageWithSender pairs a message with its sender.
type MessageWithSender struct {
	Message domain.Message
	Sender  *domain.User
}

// CreateTicket validates input, upserts the requester, allocates the next
// ticket number, persists the ticket and any attachment batch, and appends
// the creation audit entries.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput, files []storage.StoredFile) (*domain.Ticket, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	requester, err := s.users.UpsertByEmail(ctx, input.Email, strings.TrimSpace(input.Name), s.guard.Classify(input.Email))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	ticket := &domain.Ticket{
		Title:              s.sanitizer.Clean(input.Title),
		Description:        s.sanitizer.Clean(input.Description),
		RemoteAccessID:     strings.TrimSpace(input.RemoteAccessID),
		RemoteAccessSecret: strings.TrimSpace(input.RemoteAccessSecret),
		Priority:           input.Priority,
		Status:             domain.TicketStatusRequested,
		RequesterID:        requester.ID,
	}
	if err := s.tickets.CreateWithNextNumber(ctx, ticket); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if len(files) > 0 {
		batch := make([]domain.Attachment, 0, len(files))
		for _, file := range files {
			batch = append(batch, domain.Attachment{
				TicketID:         ticket.ID,
				StoredFilename:   file.StoredFilename,
				OriginalFilename: file.OriginalFilename,
				MimeType:         file.MimeType,
				SizeBytes:        file.SizeBytes,
				RelativePath:     file.RelativePath,
			})
		}
		if _, err := s.attachments.CreateBatch(ctx, batch); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if err := s.appendActivity(ctx, ticket.ID, domain.ActivityAttachmentAdded, map[string]any{"count": len(files)}); err != nil {
			return nil, err
		}
	}

	if err := s.appendActivity(ctx, ticket.ID, domain.ActivityCreated, map[string]any{"by": requester.Email}); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.Int64("number", ticket.Number),
		zap.String("priority", string(ticket.Priority)))
	return ticket, nil
}

// ListRequesterTickets returns the caller's own tickets, newest first. An
// email with no user record yields an empty list.
func (s *TicketService) ListRequesterTickets(ctx context.Context, email string) ([]TicketWithUsers, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []TicketWithUsers{}, nil
		}
		return nil, apperrors.NewInternalError(err)
	}
	tickets, err := s.tickets.ListByRequester(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return s.resolveListUsers(ctx, tickets)
}

// GetTicketForViewer fetches one ticket for either role, enforcing the
// access rule: support sees everything, a requester only their own ticket.
func (s *TicketService) GetTicketForViewer(ctx context.Context, number int64, email string) (*TicketDetail, error) {
	ticket, err := s.ticketByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	requester, err := s.userByID(ctx, ticket.RequesterID)
	if err != nil {
		return nil, err
	}
	if !s.guard.CanAccessTicket(requester.Email, email) {
		return nil, apperrors.NewForbidden("not allowed to view this ticket")
	}
	return s.buildDetail(ctx, ticket, requester)
}

// ListForSupport lists tickets for the dashboard. Support-only.
func (s *TicketService) ListForSupport(ctx context.Context, identityEmail string, filter repository.TicketFilter) ([]TicketWithUsers, error) {
	if !s.guard.IsSupport(identityEmail) {
		return nil, apperrors.NewForbidden("support access required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return s.resolveListUsers(ctx, tickets)
}

// GetTicketForSupport fetches one ticket plus the engineer roster.
// Support-only.
func (s *TicketService) GetTicketForSupport(ctx context.Context, identityEmail string, number int64) (*TicketDetail, []domain.User, error) {
	if !s.guard.IsSupport(identityEmail) {
		return nil, nil, apperrors.NewForbidden("support access required")
	}
	ticket, err := s.ticketByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}
	requester, err := s.userByID(ctx, ticket.RequesterID)
	if err != nil {
		return nil, nil, err
	}
	detail, err := s.buildDetail(ctx, ticket, requester)
	if err != nil {
		return nil, nil, err
	}
	engineers, err := s.users.ListByRole(ctx, domain.RoleSupport)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return detail, engineers, nil
}

// ListEngineers returns the support roster. Support-only.
func (s *TicketService) ListEngineers(ctx context.Context, identityEmail string) ([]domain.User, error) {
	if !s.guard.IsSupport(identityEmail) {
		return nil, apperrors.NewForbidden("support access required")
	}
	engineers, err := s.users.ListByRole(ctx, domain.RoleSupport)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return engineers, nil
}

// ApplyIncidentUpdate applies the present sub-effects of one support patch
// against a single ticket snapshot, in fixed order: status, assignment,
// note, public message. A status set to its current value is applied but
// not logged; an assignment field, present in any form, is always logged.
// The note stays internal and is never broadcast. Sub-effects already
// committed are not rolled back when a later one fails.
func (s *TicketService) ApplyIncidentUpdate(ctx context.Context, number int64, identityEmail string, patch IncidentPatch) (*domain.Ticket, error) {
	if !s.guard.IsSupport(identityEmail) {
		return nil, apperrors.NewForbidden("support access required")
	}
	if patch.Status != nil && !domain.ValidStatus(*patch.Status) {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(*patch.Status)})
	}

	ticket, err := s.ticketByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	prevStatus := ticket.Status
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	if patch.Assignment != nil {
		ticket.AssignedToID = patch.Assignment.AssignedToID
	}
	if patch.Status != nil || patch.Assignment != nil {
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}

	if patch.Status != nil && *patch.Status != prevStatus {
		err := s.appendActivity(ctx, ticket.ID, domain.ActivityStatusChanged, map[string]any{
			"from": string(prevStatus),
			"to":   string(*patch.Status),
		})
		if err != nil {
			return nil, err
		}
	}

	if patch.Assignment != nil {
		var assignee any
		if patch.Assignment.AssignedToID != nil {
			assignee = *patch.Assignment.AssignedToID
		}
		err := s.appendActivity(ctx, ticket.ID, domain.ActivityAssigned, map[string]any{
			"assigned_to_id": assignee,
		})
		if err != nil {
			return nil, err
		}
	}

	if note := trimmedOrEmpty(patch.Note); note != "" {
		err := s.appendActivity(ctx, ticket.ID, domain.ActivityNoteAdded, map[string]any{
			"note": s.sanitizer.Clean(note),
		})
		if err != nil {
			return nil, err
		}
	}

	if content := trimmedOrEmpty(patch.PublicMessage); content != "" {
		if err := s.sendSupportMessage(ctx, ticket, identityEmail, content); err != nil {
			return nil, err
		}
	}

	return ticket, nil
}

// PostMessage appends a message to a ticket's thread for either role, then
// announces it to live viewers. The sender must already have a user record.
func (s *TicketService) PostMessage(ctx context.Context, number int64, senderEmail, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content required", map[string]any{"content": "must not be empty"})
	}

	ticket, err := s.ticketByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	sender, err := s.users.GetByEmail(ctx, senderEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnknownSender(senderEmail)
		}
		return nil, apperrors.NewInternalError(err)
	}

	requester, err := s.userByID(ctx, ticket.RequesterID)
	if err != nil {
		return nil, err
	}
	if !s.guard.CanAccessTicket(requester.Email, senderEmail) {
		return nil, apperrors.NewForbidden("not allowed to message this ticket")
	}

	msg := &domain.Message{
		TicketID:   ticket.ID,
		SenderID:   sender.ID,
		SenderRole: s.guard.Classify(senderEmail),
		Content:    s.sanitizer.Clean(content),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	err = s.appendActivity(ctx, ticket.ID, domain.ActivityMessageAdded, map[string]any{
		"sender_role": string(msg.SenderRole),
	})
	if err != nil {
		return nil, err
	}

	s.broker.PublishMessage(ctx, ticket.Number, msg)
	return msg, nil
}

// ListMessages returns the ticket's thread, oldest first, access-guarded.
func (s *TicketService) ListMessages(ctx context.Context, number int64, email string) ([]MessageWithSender, error) {
	ticket, err := s.ticketByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	requester, err := s.userByID(ctx, ticket.RequesterID)
	if err != nil {
		return nil, err
	}
	if !s.guard.CanAccessTicket(requester.Email, email) {
		return nil, apperrors.NewForbidden("not allowed to view this ticket")
	}

	messages, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	senders := map[string]*domain.User{}
	result := make([]MessageWithSender, 0, len(messages))
	for _, msg := range messages {
		sender, ok := senders[msg.SenderID]
		if !ok {
			sender, err = s.userByID(ctx, msg.SenderID)
			if err != nil {
				return nil, err
			}
			senders[msg.SenderID] = sender
		}
		result = append(result, MessageWithSender{Message: msg, Sender: sender})
	}
	return result, nil
}

// AddAttachments binds an uploaded batch to a ticket and records a single
// audit entry carrying the batch count.
func (s *TicketService) AddAttachments(ctx context.Context, number int64, email string, files []storage.StoredFile) (int, error) {
	ticket, err := s.ticketByNumber(ctx, number)
	if err != nil {
		return 0, err
	}
	requester, err := s.userByID(ctx, ticket.RequesterID)
	if err != nil {
		return 0, err
	}
	if !s.guard.CanAccessTicket(requester.Email, email) {
		return 0, apperrors.NewForbidden("not allowed to modify this ticket")
	}
	if len(files) == 0 {
		return 0, apperrors.NewNoFiles()
	}

	batch := make([]domain.Attachment, 0, len(files))
	for _, file := range files {
		batch = append(batch, domain.Attachment{
			TicketID:         ticket.ID,
			StoredFilename:   file.StoredFilename,
			OriginalFilename: file.OriginalFilename,
			MimeType:         file.MimeType,
			SizeBytes:        file.SizeBytes,
			RelativePath:     file.RelativePath,
		})
	}
	count, err := s.attachments.CreateBatch(ctx, batch)
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}
	if err := s.appendActivity(ctx, ticket.ID, domain.ActivityAttachmentAdded, map[string]any{"count": count}); err != nil {
		return 0, err
	}
	return count, nil
}

// sendSupportMessage handles the public-message sub-effect of a patch. A
// support identity without a user record is skipped silently; the other
// sub-effects stand.
func (s *TicketService) sendSupportMessage(ctx context.Context, ticket *domain.Ticket, identityEmail, content string) error {
	sender, err := s.users.GetByEmail(ctx, identityEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("public message skipped, sender has no user record", zap.String("email", identityEmail))
			return nil
		}
		return apperrors.NewInternalError(err)
	}

	msg := &domain.Message{
		TicketID:   ticket.ID,
		SenderID:   sender.ID,
		SenderRole: domain.RoleSupport,
		Content:    s.sanitizer.Clean(content),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return apperrors.NewInternalError(err)
	}
	err = s.appendActivity(ctx, ticket.ID, domain.ActivityMessageAdded, map[string]any{
		"sender_role": string(domain.RoleSupport),
	})
	if err != nil {
		return err
	}

	s.broker.PublishMessage(ctx, ticket.Number, msg)
	return nil
}

func (s *TicketService) ticketByNumber(ctx context.Context, number int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

func (s *TicketService) userByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *TicketService) buildDetail(ctx context.Context, ticket *domain.Ticket, requester *domain.User) (*TicketDetail, error) {
	detail := &TicketDetail{Ticket: ticket, Requester: requester}

	if ticket.AssignedToID != nil {
		assignee, err := s.userByID(ctx, *ticket.AssignedToID)
		if err != nil {
			return nil, err
		}
		detail.AssignedTo = assignee
	}

	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	detail.Attachments = attachments

	activity, err := s.activity.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	detail.Activity = activity

	return detail, nil
}

func (s *TicketService) resolveListUsers(ctx context.Context, tickets []domain.Ticket) ([]TicketWithUsers, error) {
	cache := map[string]*domain.User{}
	lookup := func(id string) (*domain.User, error) {
		if user, ok := cache[id]; ok {
			return user, nil
		}
		user, err := s.userByID(ctx, id)
		if err != nil {
			return nil, err
		}
		cache[id] = user
		return user, nil
	}

	result := make([]TicketWithUsers, 0, len(tickets))
	for _, ticket := range tickets {
		row := TicketWithUsers{Ticket: ticket}
		requester, err := lookup(ticket.RequesterID)
		if err != nil {
			return nil, err
		}
		row.Requester = requester
		if ticket.AssignedToID != nil {
			assignee, err := lookup(*ticket.AssignedToID)
			if err != nil {
				return nil, err
			}
			row.AssignedTo = assignee
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *TicketService) appendActivity(ctx context.Context, ticketID string, activityType domain.ActivityType, metadata map[string]any) error {
	entry := &domain.ActivityEntry{
		TicketID: ticketID,
		Type:     activityType,
		Metadata: metadata,
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func validateCreate(input CreateTicketInput) error {
	details := map[string]any{}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		details["email"] = "must be a valid email address"
	}
	if len(strings.TrimSpace(input.Name)) < 2 {
		details["name"] = "must be at least 2 characters"
	}
	if len(strings.TrimSpace(input.Title)) < 2 {
		details["title"] = "must be at least 2 characters"
	}
	if len(strings.TrimSpace(input.Description)) < 5 {
		details["description"] = "must be at least 5 characters"
	}
	if len(strings.TrimSpace(input.RemoteAccessID)) < 3 {
		details["remote_access_id"] = "must be at least 3 characters"
	}
	if len(strings.TrimSpace(input.RemoteAccessSecret)) < 3 {
		details["remote_access_secret"] = "must be at least 3 characters"
	}
	if !domain.ValidPriority(input.Priority) {
		details["priority"] = "must be one of LOW, NORMAL, HIGH, URGENT"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket payload", details)
	}
	return nil
}

func trimmedOrEmpty(val *string) string {
	if val == nil {
		return ""
	}
	return strings.TrimSpace(*val)
}
