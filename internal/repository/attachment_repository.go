package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wauterstoon/tickets/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	CreateBatch(ctx context.Context, attachments []domain.Attachment) (int, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) CreateBatch(ctx context.Context, attachments []domain.Attachment) (int, error) {
	const query = `
        INSERT INTO attachments (ticket_id, stored_filename, original_filename, mime_type, size_bytes, relative_path)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	for i := range attachments {
		att := &attachments[i]
		if err := r.pool.QueryRow(ctx, query,
			att.TicketID,
			att.StoredFilename,
			att.OriginalFilename,
			att.MimeType,
			att.SizeBytes,
			att.RelativePath,
		).Scan(&att.ID, &att.CreatedAt); err != nil {
			return i, err
		}
	}
	return len(attachments), nil
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, stored_filename, original_filename, mime_type, size_bytes, relative_path, created_at
        FROM attachments WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.TicketID,
			&att.StoredFilename,
			&att.OriginalFilename,
			&att.MimeType,
			&att.SizeBytes,
			&att.RelativePath,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
