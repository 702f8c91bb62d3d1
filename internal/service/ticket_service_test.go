package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wauterstoon/tickets/internal/auth"
	"github.com/wauterstoon/tickets/internal/domain"
	"github.com/wauterstoon/tickets/internal/repository"
	"github.com/wauterstoon/tickets/internal/sanitize"
	"github.com/wauterstoon/tickets/internal/storage"
	apperrors "github.com/wauterstoon/tickets/pkg/util"
)

const (
	supportEmail   = "it.lisa@example.com"
	requesterEmail = "jana.devos@example.com"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type fakeUserRepo struct {
	mu    sync.Mutex
	clock *fakeClock
	seq   int
	users map[string]domain.User // keyed by email
}

func (r *fakeUserRepo) UpsertByEmail(_ context.Context, email, name string, role domain.Role) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[email]; ok {
		user.Name = name
		user.UpdatedAt = r.clock.next()
		r.users[email] = user
		return &user, nil
	}
	r.seq++
	now := r.clock.next()
	user := domain.User{
		ID:        fmt.Sprintf("user-%d", r.seq),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[email] = user
	return &user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[email]; ok {
		return &user, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == id {
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.Role == role {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	clock   *fakeClock
	seq     int
	tickets []domain.Ticket
}

func (r *fakeTicketRepo) CreateWithNextNumber(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	for _, existing := range r.tickets {
		if existing.Number > max {
			max = existing.Number
		}
	}
	r.seq++
	now := r.clock.next()
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.Number = max + 1
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets = append(r.tickets, *ticket)
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tickets {
		if r.tickets[i].ID == ticket.ID {
			ticket.UpdatedAt = r.clock.next()
			r.tickets[i].Status = ticket.Status
			r.tickets[i].AssignedToID = ticket.AssignedToID
			r.tickets[i].UpdatedAt = ticket.UpdatedAt
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, number int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.Number == number {
			found := ticket
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListByRequester(_ context.Context, requesterID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.RequesterID == requesterID {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && ticket.Priority != *filter.Priority {
			continue
		}
		if filter.Assignment == repository.AssignmentAssigned && ticket.AssignedToID == nil {
			continue
		}
		if filter.Assignment == repository.AssignmentUnassigned && ticket.AssignedToID != nil {
			continue
		}
		result = append(result, ticket)
	}
	switch filter.Sort {
	case repository.SortOldest:
		sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	case repository.SortPriority:
		sort.Slice(result, func(i, j int) bool {
			ri, rj := domain.PriorityRank(result[i].Priority), domain.PriorityRank(result[j].Priority)
			if ri != rj {
				return ri > rj
			}
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	default:
		sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	}
	return result, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	clock    *fakeClock
	seq      int
	messages []domain.Message
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	msg.ID = fmt.Sprintf("message-%d", r.seq)
	msg.CreatedAt = r.clock.next()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Message
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	clock       *fakeClock
	seq         int
	attachments []domain.Attachment
}

func (r *fakeAttachmentRepo) CreateBatch(_ context.Context, batch []domain.Attachment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range batch {
		r.seq++
		batch[i].ID = fmt.Sprintf("attachment-%d", r.seq)
		batch[i].CreatedAt = r.clock.next()
		r.attachments = append(r.attachments, batch[i])
	}
	return len(batch), nil
}

func (r *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Attachment
	for _, att := range r.attachments {
		if att.TicketID == ticketID {
			result = append(result, att)
		}
	}
	return result, nil
}

type fakeActivityRepo struct {
	mu      sync.Mutex
	clock   *fakeClock
	seq     int
	entries []domain.ActivityEntry
}

func (r *fakeActivityRepo) Append(_ context.Context, entry *domain.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = fmt.Sprintf("activity-%d", r.seq)
	entry.CreatedAt = r.clock.next()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActivityRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ActivityEntry
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

type publishRecord struct {
	number int64
	msg    domain.Message
}

type fakeBroker struct {
	mu        sync.Mutex
	published []publishRecord
}

func (b *fakeBroker) PublishMessage(_ context.Context, ticketNumber int64, msg *domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishRecord{number: ticketNumber, msg: *msg})
}

func (b *fakeBroker) records() []publishRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishRecord{}, b.published...)
}

type fixture struct {
	users       *fakeUserRepo
	tickets     *fakeTicketRepo
	messages    *fakeMessageRepo
	attachments *fakeAttachmentRepo
	activity    *fakeActivityRepo
	broker      *fakeBroker
	svc         *TicketService
}

func newFixture(supportEmails ...string) *fixture {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		users:       &fakeUserRepo{clock: clock, users: map[string]domain.User{}},
		tickets:     &fakeTicketRepo{clock: clock},
		messages:    &fakeMessageRepo{clock: clock},
		attachments: &fakeAttachmentRepo{clock: clock},
		activity:    &fakeActivityRepo{clock: clock},
		broker:      &fakeBroker{},
	}
	f.svc = NewTicketService(TicketDependencies{
		UserRepo:       f.users,
		TicketRepo:     f.tickets,
		MessageRepo:    f.messages,
		AttachmentRepo: f.attachments,
		ActivityRepo:   f.activity,
		Guard:          auth.NewGuard(supportEmails),
		Broker:         f.broker,
		Sanitizer:      sanitize.New(),
		Logger:         zap.NewNop(),
	})
	return f
}

func validInput(email string) CreateTicketInput {
	return CreateTicketInput{
		Email:              email,
		Name:               "Jana De Vos",
		Title:              "Laptop start niet op",
		Description:        "Mijn laptop blijft hangen op het opstartscherm.",
		RemoteAccessID:     "123456789",
		RemoteAccessSecret: "demo-pass",
		Priority:           domain.TicketPriorityHigh,
	}
}

func domainErr(t *testing.T, err error) *apperrors.DomainError {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	return de
}

func TestCreateTicketAssignsSequentialNumbers(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
		require.NoError(t, err)
		assert.Equal(t, want, ticket.Number)
		assert.Equal(t, domain.TicketStatusRequested, ticket.Status)
	}
}

func TestCreateTicketAppendsCreatedEntry(t *testing.T) {
	f := newFixture(supportEmail)

	ticket, err := f.svc.CreateTicket(context.Background(), validInput(requesterEmail), nil)
	require.NoError(t, err)

	entries, err := f.activity.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActivityCreated, entries[0].Type)
	assert.Equal(t, requesterEmail, entries[0].Metadata["by"])
}

func TestCreateTicketWithAttachments(t *testing.T) {
	f := newFixture(supportEmail)
	files := []storage.StoredFile{
		{StoredFilename: "1-a.png", OriginalFilename: "a.png", MimeType: "image/png", SizeBytes: 100, RelativePath: "/uploads/1-a.png"},
		{StoredFilename: "2-b.pdf", OriginalFilename: "b.pdf", MimeType: "application/pdf", SizeBytes: 200, RelativePath: "/uploads/2-b.pdf"},
	}

	ticket, err := f.svc.CreateTicket(context.Background(), validInput(requesterEmail), files)
	require.NoError(t, err)

	entries, err := f.activity.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActivityAttachmentAdded, entries[0].Type)
	assert.Equal(t, 2, entries[0].Metadata["count"])
	assert.Equal(t, domain.ActivityCreated, entries[1].Type)

	stored, err := f.attachments.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(supportEmail)

	input := CreateTicketInput{
		Email:       "not-an-email",
		Name:        "J",
		Title:       "x",
		Description: "shrt",
		Priority:    domain.TicketPriority("CRITICAL"),
	}
	_, err := f.svc.CreateTicket(context.Background(), input, nil)
	de := domainErr(t, err)
	assert.Equal(t, "VALIDATION_ERROR", de.Code)
	for _, field := range []string{"email", "name", "title", "description", "remote_access_id", "remote_access_secret", "priority"} {
		assert.Contains(t, de.Details, field)
	}
	assert.Empty(t, f.tickets.tickets, "validation failures must not persist anything")
}

func TestCreateTicketSanitizesMarkup(t *testing.T) {
	f := newFixture(supportEmail)
	input := validInput(requesterEmail)
	input.Title = "<script>alert(1)</script>Laptop kapot"
	input.Description = "<b>Scherm</b> blijft zwart bij opstarten"

	ticket, err := f.svc.CreateTicket(context.Background(), input, nil)
	require.NoError(t, err)
	assert.Equal(t, "Laptop kapot", ticket.Title)
	assert.Equal(t, "Scherm blijft zwart bij opstarten", ticket.Description)
}

func TestConcurrentCreationsYieldDistinctNumbers(t *testing.T) {
	f := newFixture(supportEmail)
	const n = 25

	numbers := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := validInput(fmt.Sprintf("user%d@example.com", i))
			ticket, err := f.svc.CreateTicket(context.Background(), input, nil)
			if err == nil {
				numbers <- ticket.Number
			}
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for number := range numbers {
		assert.False(t, seen[number], "duplicate ticket number %d", number)
		seen[number] = true
	}
	assert.Len(t, seen, n)
}

func TestGetTicketForViewerAccess(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	detail, err := f.svc.GetTicketForViewer(ctx, ticket.Number, requesterEmail)
	require.NoError(t, err)
	assert.Equal(t, ticket.Number, detail.Ticket.Number)
	assert.Equal(t, requesterEmail, detail.Requester.Email)

	_, err = f.svc.GetTicketForViewer(ctx, ticket.Number, "other@example.com")
	assert.Equal(t, "FORBIDDEN", domainErr(t, err).Code)

	_, err = f.svc.GetTicketForViewer(ctx, ticket.Number, supportEmail)
	require.NoError(t, err, "allow-listed identity reads any ticket")

	_, err = f.svc.GetTicketForViewer(ctx, 9999, requesterEmail)
	assert.Equal(t, "NOT_FOUND", domainErr(t, err).Code)
}

func TestListForSupportRequiresAllowList(t *testing.T) {
	f := newFixture(supportEmail)

	_, err := f.svc.ListForSupport(context.Background(), requesterEmail, repository.TicketFilter{})
	assert.Equal(t, "FORBIDDEN", domainErr(t, err).Code)

	rows, err := f.svc.ListForSupport(context.Background(), supportEmail, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListForSupportFiltersAndSorts(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	priorities := []domain.TicketPriority{
		domain.TicketPriorityLow,
		domain.TicketPriorityUrgent,
		domain.TicketPriorityNormal,
		domain.TicketPriorityHigh,
	}
	for i, priority := range priorities {
		input := validInput(fmt.Sprintf("user%d@example.com", i))
		input.Priority = priority
		_, err := f.svc.CreateTicket(ctx, input, nil)
		require.NoError(t, err)
	}

	rows, err := f.svc.ListForSupport(ctx, supportEmail, repository.TicketFilter{Sort: repository.SortPriority})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	got := make([]domain.TicketPriority, 0, 4)
	for _, row := range rows {
		got = append(got, row.Ticket.Priority)
	}
	assert.Equal(t, []domain.TicketPriority{
		domain.TicketPriorityUrgent,
		domain.TicketPriorityHigh,
		domain.TicketPriorityNormal,
		domain.TicketPriorityLow,
	}, got)

	high := domain.TicketPriorityHigh
	rows, err = f.svc.ListForSupport(ctx, supportEmail, repository.TicketFilter{Priority: &high})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, high, rows[0].Ticket.Priority)

	rows, err = f.svc.ListForSupport(ctx, supportEmail, repository.TicketFilter{Assignment: repository.AssignmentUnassigned})
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestApplyIncidentUpdateFullPatch(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	_, err := f.users.UpsertByEmail(ctx, supportEmail, "Lisa Vermeulen", domain.RoleSupport)
	require.NoError(t, err)

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	engineer, err := f.users.GetByEmail(ctx, supportEmail)
	require.NoError(t, err)

	status := domain.TicketStatusInProgress
	note := "Interne notitie: eerst remote sessie proberen"
	message := "We kijken ernaar"
	updated, err := f.svc.ApplyIncidentUpdate(ctx, ticket.Number, supportEmail, IncidentPatch{
		Status:        &status,
		Assignment:    &Assignment{AssignedToID: &engineer.ID},
		Note:          &note,
		PublicMessage: &message,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	require.NotNil(t, updated.AssignedToID)
	assert.Equal(t, engineer.ID, *updated.AssignedToID)

	entries, err := f.activity.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 5) // CREATED plus the four patch sub-effects

	patchEntries := entries[1:]
	assert.Equal(t, domain.ActivityStatusChanged, patchEntries[0].Type)
	assert.Equal(t, string(domain.TicketStatusRequested), patchEntries[0].Metadata["from"])
	assert.Equal(t, string(domain.TicketStatusInProgress), patchEntries[0].Metadata["to"])

	assert.Equal(t, domain.ActivityAssigned, patchEntries[1].Type)
	assert.Equal(t, engineer.ID, patchEntries[1].Metadata["assigned_to_id"])

	assert.Equal(t, domain.ActivityNoteAdded, patchEntries[2].Type)
	assert.Equal(t, note, patchEntries[2].Metadata["note"])

	assert.Equal(t, domain.ActivityMessageAdded, patchEntries[3].Type)
	assert.Equal(t, string(domain.RoleSupport), patchEntries[3].Metadata["sender_role"])

	// Only the public message reaches the broadcast channel; the note stays
	// internal.
	published := f.broker.records()
	require.Len(t, published, 1)
	assert.Equal(t, ticket.Number, published[0].number)
	assert.Equal(t, message, published[0].msg.Content)
	assert.Equal(t, domain.RoleSupport, published[0].msg.SenderRole)
}

func TestApplyIncidentUpdateStatusIdempotence(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	same := domain.TicketStatusRequested
	_, err = f.svc.ApplyIncidentUpdate(ctx, ticket.Number, supportEmail, IncidentPatch{Status: &same})
	require.NoError(t, err)

	entries, err := f.activity.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "unchanged status must not be logged")
	assert.Equal(t, domain.ActivityCreated, entries[0].Type)
}

func TestApplyIncidentUpdateAssignmentAlwaysLogged(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	// Explicit unassign of an already unassigned ticket still logs.
	_, err = f.svc.ApplyIncidentUpdate(ctx, ticket.Number, supportEmail, IncidentPatch{Assignment: &Assignment{}})
	require.NoError(t, err)

	entries, err := f.activity.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActivityAssigned, entries[1].Type)
	assert.Nil(t, entries[1].Metadata["assigned_to_id"])
}

func TestApplyIncidentUpdateForbiddenForNonSupport(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	status := domain.TicketStatusResolved
	_, err = f.svc.ApplyIncidentUpdate(ctx, ticket.Number, requesterEmail, IncidentPatch{Status: &status})
	assert.Equal(t, "FORBIDDEN", domainErr(t, err).Code)
}

func TestApplyIncidentUpdateRejectsUnknownStatus(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	bogus := domain.TicketStatus("ARCHIVED")
	_, err = f.svc.ApplyIncidentUpdate(ctx, ticket.Number, supportEmail, IncidentPatch{Status: &bogus})
	assert.Equal(t, "VALIDATION_ERROR", domainErr(t, err).Code)

	entries, err := f.activity.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "rejected patch must not mutate anything")
}

func TestApplyIncidentUpdateSkipsMessageForUnknownSupportUser(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	// supportEmail is allow-listed but has no user record yet.
	message := "We kijken ernaar"
	status := domain.TicketStatusInProgress
	updated, err := f.svc.ApplyIncidentUpdate(ctx, ticket.Number, supportEmail, IncidentPatch{
		Status:        &status,
		PublicMessage: &message,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	assert.Empty(t, f.broker.records())
	msgs, err := f.messages.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPostMessageByRequester(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	msg, err := f.svc.PostMessage(ctx, ticket.Number, requesterEmail, "Is er al nieuws?")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleRequester, msg.SenderRole)
	assert.Equal(t, "Is er al nieuws?", msg.Content)

	rows, err := f.svc.ListMessages(ctx, ticket.Number, requesterEmail)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, msg.ID, rows[0].Message.ID)
	assert.Equal(t, requesterEmail, rows[0].Sender.Email)

	published := f.broker.records()
	require.Len(t, published, 1, "exactly one publish per posted message")
	assert.Equal(t, ticket.Number, published[0].number)

	entries, err := f.activity.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActivityMessageAdded, entries[1].Type)
	assert.Equal(t, string(domain.RoleRequester), entries[1].Metadata["sender_role"])
}

func TestPostMessageUnknownSender(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	_, err = f.svc.PostMessage(ctx, ticket.Number, "stranger@example.com", "hallo")
	assert.Equal(t, "UNKNOWN_SENDER", domainErr(t, err).Code)
	assert.Empty(t, f.broker.records())
}

func TestPostMessageForbiddenForOtherRequester(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticketA, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)
	_, err = f.svc.CreateTicket(ctx, validInput("bram.peeters@example.com"), nil)
	require.NoError(t, err)

	_, err = f.svc.PostMessage(ctx, ticketA.Number, "bram.peeters@example.com", "mag ik meekijken?")
	assert.Equal(t, "FORBIDDEN", domainErr(t, err).Code)
}

func TestPostMessageBySupport(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	_, err := f.users.UpsertByEmail(ctx, supportEmail, "Lisa Vermeulen", domain.RoleSupport)
	require.NoError(t, err)
	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	msg, err := f.svc.PostMessage(ctx, ticket.Number, supportEmail, "Probeer eens opnieuw op te starten")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupport, msg.SenderRole)
}

func TestAddAttachments(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	_, err = f.svc.AddAttachments(ctx, ticket.Number, requesterEmail, nil)
	assert.Equal(t, "NO_FILES", domainErr(t, err).Code)

	count, err := f.svc.AddAttachments(ctx, ticket.Number, requesterEmail, []storage.StoredFile{
		{StoredFilename: "1-shot.png", OriginalFilename: "shot.png", MimeType: "image/png", SizeBytes: 123, RelativePath: "/uploads/1-shot.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := f.activity.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActivityAttachmentAdded, entries[1].Type)
	assert.Equal(t, 1, entries[1].Metadata["count"])

	_, err = f.svc.AddAttachments(ctx, ticket.Number, "other@example.com", []storage.StoredFile{
		{StoredFilename: "x", OriginalFilename: "x", MimeType: "image/png", SizeBytes: 1, RelativePath: "/uploads/x"},
	})
	assert.Equal(t, "FORBIDDEN", domainErr(t, err).Code)
}

func TestListRequesterTicketsUnknownEmailIsEmpty(t *testing.T) {
	f := newFixture(supportEmail)

	rows, err := f.svc.ListRequesterTickets(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetTicketForSupportIncludesRoster(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	_, err := f.users.UpsertByEmail(ctx, supportEmail, "Lisa Vermeulen", domain.RoleSupport)
	require.NoError(t, err)
	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	detail, engineers, err := f.svc.GetTicketForSupport(ctx, supportEmail, ticket.Number)
	require.NoError(t, err)
	assert.Equal(t, ticket.Number, detail.Ticket.Number)
	require.Len(t, engineers, 1)
	assert.Equal(t, supportEmail, engineers[0].Email)

	_, _, err = f.svc.GetTicketForSupport(ctx, requesterEmail, ticket.Number)
	assert.Equal(t, "FORBIDDEN", domainErr(t, err).Code)
}

func TestScenarioCreateAndViewTicket(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	input := validInput(requesterEmail)
	input.Title = "Laptop start niet op"
	input.Priority = domain.TicketPriorityHigh

	ticket, err := f.svc.CreateTicket(ctx, input, nil)
	require.NoError(t, err)
	assert.Positive(t, ticket.Number)

	detail, err := f.svc.GetTicketForViewer(ctx, ticket.Number, requesterEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRequested, detail.Ticket.Status)
	require.Len(t, detail.Activity, 1)
	assert.Equal(t, domain.ActivityCreated, detail.Activity[0].Type)
}

func TestScenarioSupportPatchWithMessage(t *testing.T) {
	f := newFixture(supportEmail)
	ctx := context.Background()

	_, err := f.users.UpsertByEmail(ctx, supportEmail, "Lisa Vermeulen", domain.RoleSupport)
	require.NoError(t, err)
	ticket, err := f.svc.CreateTicket(ctx, validInput(requesterEmail), nil)
	require.NoError(t, err)

	status := domain.TicketStatusInProgress
	message := "We kijken ernaar"
	updated, err := f.svc.ApplyIncidentUpdate(ctx, ticket.Number, supportEmail, IncidentPatch{
		Status:        &status,
		PublicMessage: &message,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	msgs, err := f.messages.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleSupport, msgs[0].SenderRole)
	assert.Equal(t, message, msgs[0].Content)

	entries, err := f.activity.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ActivityStatusChanged, entries[1].Type)
	assert.Equal(t, domain.ActivityMessageAdded, entries[2].Type)
}
