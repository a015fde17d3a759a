package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// AttachmentRepository reads attachment metadata. Inserts happen with the doubt in DoubtRepository.Create.
type AttachmentRepository interface {
	ListByDoubt(ctx context.Context, doubtID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository builds repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) ListByDoubt(ctx context.Context, doubtID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, doubt_id, file_name, file_type, file_url, uploaded_by, created_at
        FROM doubt_attachments WHERE doubt_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, doubtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.DoubtID,
			&att.FileName,
			&att.FileType,
			&att.FileURL,
			&att.UploadedBy,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
