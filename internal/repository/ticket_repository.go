package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wauterstoon/tickets/internal/domain"
)

// AssignmentFilter narrows listings by assignment state.
type AssignmentFilter string

const (
	AssignmentAny        AssignmentFilter = ""
	AssignmentAssigned   AssignmentFilter = "assigned"
	AssignmentUnassigned AssignmentFilter = "unassigned"
)

// SortOrder selects listing order for support views.
type SortOrder string

const (
	SortNewest   SortOrder = "newest"
	SortOldest   SortOrder = "oldest"
	SortPriority SortOrder = "priority"
)

// TicketFilter captures support search parameters.
type TicketFilter struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	Assignment AssignmentFilter
	Sort       SortOrder
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	CreateWithNextNumber(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByNumber(ctx context.Context, number int64) (*domain.Ticket, error)
	ListByRequester(ctx context.Context, requesterID string) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const uniqueViolation = "23505"

// Two concurrent creations may both read the same max; the UNIQUE constraint
// on number rejects the loser, which retries with a fresh read.
const maxAllocateAttempts = 5

// CreateWithNextNumber inserts the ticket with number = max(number)+1,
// computed inside the same statement as the insert so the read-then-insert
// is atomic with respect to other allocations.
func (r *ticketRepository) CreateWithNextNumber(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (number, title, description, remote_access_id, remote_access_secret, priority, status, requester_id, assigned_to_id)
        VALUES ((SELECT COALESCE(MAX(number), 0) + 1 FROM tickets), $1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, number, created_at, updated_at`

	var lastErr error
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		err := r.pool.QueryRow(ctx, query,
			ticket.Title,
			ticket.Description,
			ticket.RemoteAccessID,
			ticket.RemoteAccessSecret,
			ticket.Priority,
			ticket.Status,
			ticket.RequesterID,
			ticket.AssignedToID,
		).Scan(&ticket.ID, &ticket.Number, &ticket.CreatedAt, &ticket.UpdatedAt)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("allocate ticket number: %w", lastErr)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, assigned_to_id=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.AssignedToID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number int64) (*domain.Ticket, error) {
	const query = `
        SELECT id, number, title, description, remote_access_id, remote_access_secret,
               priority, status, requester_id, assigned_to_id, created_at, updated_at
        FROM tickets WHERE number=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, number).Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.RemoteAccessID,
		&ticket.RemoteAccessSecret,
		&ticket.Priority,
		&ticket.Status,
		&ticket.RequesterID,
		&ticket.AssignedToID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByRequester(ctx context.Context, requesterID string) ([]domain.Ticket, error) {
	const query = `
        SELECT id, number, title, description, remote_access_id, remote_access_secret,
               priority, status, requester_id, assigned_to_id, created_at, updated_at
        FROM tickets WHERE requester_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, number, title, description, remote_access_id, remote_access_secret,
                    priority, status, requester_id, assigned_to_id, created_at, updated_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	switch filter.Assignment {
	case AssignmentAssigned:
		clauses = append(clauses, "assigned_to_id IS NOT NULL")
	case AssignmentUnassigned:
		clauses = append(clauses, "assigned_to_id IS NULL")
	}

	orderBy := "created_at DESC"
	switch filter.Sort {
	case SortOldest:
		orderBy = "created_at ASC"
	case SortPriority:
		orderBy = `CASE priority
                WHEN 'URGENT' THEN 4
                WHEN 'HIGH' THEN 3
                WHEN 'NORMAL' THEN 2
                WHEN 'LOW' THEN 1
                ELSE 0 END DESC, created_at DESC`
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s`, base, strings.Join(clauses, " AND "), orderBy)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Number,
			&ticket.Title,
			&ticket.Description,
			&ticket.RemoteAccessID,
			&ticket.RemoteAccessSecret,
			&ticket.Priority,
			&ticket.Status,
			&ticket.RequesterID,
			&ticket.AssignedToID,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
