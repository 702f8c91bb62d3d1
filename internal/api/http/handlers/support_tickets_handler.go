package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wauterstoon/tickets/internal/api/dto"
	"github.com/wauterstoon/tickets/internal/auth"
	"github.com/wauterstoon/tickets/internal/domain"
	"github.com/wauterstoon/tickets/internal/repository"
	"github.com/wauterstoon/tickets/internal/service"
	apperrors "github.com/wauterstoon/tickets/pkg/util"
)

// SupportTicketsHandler manages the staff-only dashboard endpoints.
type SupportTicketsHandler struct {
	service *service.TicketService
}

// NewSupportTicketsHandler constructs handler.
func NewSupportTicketsHandler(ticketService *service.TicketService) *SupportTicketsHandler {
	return &SupportTicketsHandler{service: ticketService}
}

// List GET /api/it/tickets?status=&priority=&assigned=&sort=.
func (h *SupportTicketsHandler) List(c *fiber.Ctx) error {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.TicketStatus(statusStr)
		filter.Status = &status
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		priority := domain.TicketPriority(priorityStr)
		filter.Priority = &priority
	}
	filter.Assignment = repository.AssignmentFilter(c.Query("assigned"))
	filter.Sort = repository.SortOrder(c.Query("sort", string(repository.SortNewest)))

	rows, err := h.service.ListForSupport(c.UserContext(), auth.IdentityFromHeader(c), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.FromTicketRow(row))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/it/tickets/:number — ticket detail plus engineer roster.
func (h *SupportTicketsHandler) Get(c *fiber.Ctx) error {
	number, err := ticketNumber(c)
	if err != nil {
		return err
	}
	detail, engineers, err := h.service.GetTicketForSupport(c.UserContext(), auth.IdentityFromHeader(c), number)
	if err != nil {
		return err
	}
	roster := make([]dto.UserResponse, 0, len(engineers))
	for i := range engineers {
		roster = append(roster, *dto.FromUser(&engineers[i]))
	}
	return c.JSON(fiber.Map{"data": dto.SupportTicketResponse{
		Ticket:    dto.FromTicketDetail(detail),
		Engineers: roster,
	}})
}

// Patch PATCH /api/tickets/:number — status/assignment/note/public message.
func (h *SupportTicketsHandler) Patch(c *fiber.Ctx) error {
	number, err := ticketNumber(c)
	if err != nil {
		return err
	}
	var req dto.PatchTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := service.IncidentPatch{
		Status:        req.Status,
		Note:          req.Note,
		PublicMessage: req.PublicMessage,
	}
	if req.AssignedToID.Set {
		patch.Assignment = &service.Assignment{AssignedToID: req.AssignedToID.Value}
	}

	ticket, err := h.service.ApplyIncidentUpdate(c.UserContext(), number, auth.IdentityFromHeader(c), patch)
	if err != nil {
		return err
	}
	detail, _, err := h.service.GetTicketForSupport(c.UserContext(), auth.IdentityFromHeader(c), ticket.Number)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(detail)})
}

// Engineers GET /api/it/engineers.
func (h *SupportTicketsHandler) Engineers(c *fiber.Ctx) error {
	engineers, err := h.service.ListEngineers(c.UserContext(), auth.IdentityFromHeader(c))
	if err != nil {
		return err
	}
	roster := make([]dto.UserResponse, 0, len(engineers))
	for i := range engineers {
		roster = append(roster, *dto.FromUser(&engineers[i]))
	}
	return c.JSON(fiber.Map{"data": roster})
}
