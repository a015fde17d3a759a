package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// RoleRepository reads role assignments. Assign is used by provisioning tools only.
type RoleRepository interface {
	GetRole(ctx context.Context, userID string) (domain.Role, error)
	Assign(ctx context.Context, assignment *domain.RoleAssignment) error
	ListByRole(ctx context.Context, role domain.Role) ([]domain.RoleAssignment, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) GetRole(ctx context.Context, userID string) (domain.Role, error) {
	const query = `SELECT role FROM user_roles WHERE user_id=$1`
	var role domain.Role
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&role); err != nil {
		return "", err
	}
	return role, nil
}

func (r *roleRepository) Assign(ctx context.Context, assignment *domain.RoleAssignment) error {
	const query = `
        INSERT INTO user_roles (user_id, role) VALUES ($1,$2)
        ON CONFLICT (user_id) DO UPDATE SET role=EXCLUDED.role
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query, assignment.UserID, assignment.Role).Scan(&assignment.CreatedAt)
	return classify(err)
}

func (r *roleRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.RoleAssignment, error) {
	const query = `SELECT user_id, role, created_at FROM user_roles WHERE role=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RoleAssignment
	for rows.Next() {
		var ra domain.RoleAssignment
		if err := rows.Scan(&ra.UserID, &ra.Role, &ra.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ra)
	}
	return result, rows.Err()
}
