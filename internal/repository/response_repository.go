package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// ResponseRepository manages the append-only chat thread of a doubt.
type ResponseRepository interface {
	Create(ctx context.Context, resp *domain.DoubtResponse) error
	ListByDoubt(ctx context.Context, doubtID string) ([]domain.DoubtResponse, error)
}

type responseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository builds repository.
func NewResponseRepository(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepository{pool: pool}
}

func (r *responseRepository) Create(ctx context.Context, resp *domain.DoubtResponse) error {
	const query = `
        INSERT INTO doubt_responses (doubt_id, responder_id, responder_role, response_type, response_text, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		resp.DoubtID,
		resp.ResponderID,
		resp.ResponderRole,
		resp.Type,
		resp.Text,
		resp.CreatedAt,
	).Scan(&resp.ID)
	return classify(err)
}

func (r *responseRepository) ListByDoubt(ctx context.Context, doubtID string) ([]domain.DoubtResponse, error) {
	const query = `
        SELECT id, doubt_id, responder_id, responder_role, response_type, response_text, created_at
        FROM doubt_responses WHERE doubt_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, doubtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DoubtResponse
	for rows.Next() {
		var resp domain.DoubtResponse
		if err := rows.Scan(
			&resp.ID,
			&resp.DoubtID,
			&resp.ResponderID,
			&resp.ResponderRole,
			&resp.Type,
			&resp.Text,
			&resp.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, resp)
	}
	return result, rows.Err()
}
