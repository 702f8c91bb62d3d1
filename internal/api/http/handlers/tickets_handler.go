package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wauterstoon/tickets/internal/api/dto"
	"github.com/wauterstoon/tickets/internal/domain"
	"github.com/wauterstoon/tickets/internal/service"
	"github.com/wauterstoon/tickets/internal/storage"
	apperrors "github.com/wauterstoon/tickets/pkg/util"
)

const attachmentsField = "attachments"

// TicketsHandler manages the requester-facing ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
	uploads *storage.Store
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, uploads *storage.Store) *TicketsHandler {
	return &TicketsHandler{service: ticketService, uploads: uploads}
}

// Create POST /api/tickets (multipart: fields + up to 10 files).
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	input := service.CreateTicketInput{
		Email:              c.FormValue("email"),
		Name:               c.FormValue("name"),
		Title:              c.FormValue("title"),
		Description:        c.FormValue("description"),
		RemoteAccessID:     c.FormValue("remote_access_id"),
		RemoteAccessSecret: c.FormValue("remote_access_secret"),
		Priority:           domain.TicketPriority(c.FormValue("priority")),
	}

	stored, err := h.saveUploads(c)
	if err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), input, stored)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.CreateTicketResponse{TicketNumber: ticket.Number})
}

// ListMine GET /api/tickets/my?email=.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	rows, err := h.service.ListRequesterTickets(c.UserContext(), email)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.FromTicketRow(row))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/tickets/:number?email=.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	number, err := ticketNumber(c)
	if err != nil {
		return err
	}
	email := c.Query("email")
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	detail, err := h.service.GetTicketForViewer(c.UserContext(), number, email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(detail)})
}

// PostMessage POST /api/tickets/:number/messages.
func (h *TicketsHandler) PostMessage(c *fiber.Ctx) error {
	number, err := ticketNumber(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	msg, err := h.service.PostMessage(c.UserContext(), number, req.Email, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromMessage(service.MessageWithSender{Message: *msg})})
}

// ListMessages GET /api/tickets/:number/messages?email=.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	number, err := ticketNumber(c)
	if err != nil {
		return err
	}
	email := c.Query("email")
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	rows, err := h.service.ListMessages(c.UserContext(), number, email)
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.FromMessage(row))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAttachments POST /api/tickets/:number/attachments?email=.
func (h *TicketsHandler) AddAttachments(c *fiber.Ctx) error {
	number, err := ticketNumber(c)
	if err != nil {
		return err
	}
	email := c.Query("email")
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	stored, err := h.saveUploads(c)
	if err != nil {
		return err
	}

	count, err := h.service.AddAttachments(c.UserContext(), number, email, stored)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"count": count})
}

func (h *TicketsHandler) saveUploads(c *fiber.Ctx) ([]storage.StoredFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// No multipart body means no files; field-level validation decides
		// whether that is acceptable.
		return nil, nil
	}
	var files []*multipart.FileHeader
	if form != nil {
		files = form.File[attachmentsField]
	}
	return h.uploads.SaveBatch(files)
}

func ticketNumber(c *fiber.Ctx) (int64, error) {
	number, err := strconv.ParseInt(c.Params("number"), 10, 64)
	if err != nil || number <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket number", nil)
	}
	return number, nil
}
