package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// BadgeRepository manages the badge catalog and awards.
type BadgeRepository interface {
	// ListBadges returns every badge, or only those for role when it is non-empty.
	ListBadges(ctx context.Context, role domain.Role) ([]domain.Badge, error)
	GetBadge(ctx context.Context, id string) (*domain.Badge, error)
	UpsertBadge(ctx context.Context, badge *domain.Badge) error
	Award(ctx context.Context, award *domain.UserBadge) error
	ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error)
}

type badgeRepository struct {
	pool *pgxpool.Pool
}

// NewBadgeRepository builds repository.
func NewBadgeRepository(pool *pgxpool.Pool) BadgeRepository {
	return &badgeRepository{pool: pool}
}

func (r *badgeRepository) ListBadges(ctx context.Context, role domain.Role) ([]domain.Badge, error) {
	const query = `
        SELECT id, name, description, badge_type, for_role, icon_url, created_at
        FROM badges WHERE ($1 = '' OR for_role=$1) ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Badge
	for rows.Next() {
		var b domain.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Type, &b.ForRole, &b.IconURL, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *badgeRepository) GetBadge(ctx context.Context, id string) (*domain.Badge, error) {
	const query = `SELECT id, name, description, badge_type, for_role, icon_url, created_at FROM badges WHERE id=$1`
	var b domain.Badge
	if err := r.pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Description, &b.Type, &b.ForRole, &b.IconURL, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *badgeRepository) UpsertBadge(ctx context.Context, badge *domain.Badge) error {
	const query = `
        INSERT INTO badges (name, description, badge_type, for_role, icon_url) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (name) DO UPDATE SET description=EXCLUDED.description, badge_type=EXCLUDED.badge_type,
            for_role=EXCLUDED.for_role, icon_url=EXCLUDED.icon_url
        RETURNING id, created_at`
	return classify(r.pool.QueryRow(ctx, query, badge.Name, badge.Description, badge.Type, badge.ForRole, badge.IconURL).
		Scan(&badge.ID, &badge.CreatedAt))
}

func (r *badgeRepository) Award(ctx context.Context, award *domain.UserBadge) error {
	const query = `
        INSERT INTO user_badges (user_id, badge_id, doubt_id, awarded_by, awarded_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return classify(r.pool.QueryRow(ctx, query, award.UserID, award.BadgeID, award.DoubtID, award.AwardedBy, award.AwardedAt).
		Scan(&award.ID))
}

func (r *badgeRepository) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	const query = `
        SELECT ub.id, ub.user_id, ub.badge_id, ub.doubt_id, ub.awarded_by, ub.awarded_at,
               b.id, b.name, b.description, b.badge_type, b.for_role, b.icon_url, b.created_at
        FROM user_badges ub JOIN badges b ON b.id = ub.badge_id
        WHERE ub.user_id=$1 ORDER BY ub.awarded_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UserBadge
	for rows.Next() {
		var ub domain.UserBadge
		var b domain.Badge
		if err := rows.Scan(
			&ub.ID, &ub.UserID, &ub.BadgeID, &ub.DoubtID, &ub.AwardedBy, &ub.AwardedAt,
			&b.ID, &b.Name, &b.Description, &b.Type, &b.ForRole, &b.IconURL, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		ub.Badge = &b
		result = append(result, ub)
	}
	return result, rows.Err()
}
