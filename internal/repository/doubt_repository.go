package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// DoubtFilter captures list parameters.
type DoubtFilter struct {
	StudentID         *string
	AssignedSupportID *string
	Unassigned        bool
	TopicID           *string
	Statuses          []domain.DoubtStatus
	SearchTerm        *string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	Limit             int
	Offset            int
}

// DoubtRepository encapsulates doubt persistence.
type DoubtRepository interface {
	// Create stores the doubt and its attachment metadata atomically and fills in ids.
	Create(ctx context.Context, doubt *domain.Doubt, attachments []domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Doubt, error)
	List(ctx context.Context, filter DoubtFilter) ([]domain.Doubt, error)
	// UpdateLifecycle writes the lifecycle fields of doubt in one statement,
	// only while the stored row still matches the guard taken from the read.
	UpdateLifecycle(ctx context.Context, doubt *domain.Doubt, read LifecycleGuard) error
	UpdateAssignment(ctx context.Context, id string, supportID *string, at time.Time) error
	UpdatePriority(ctx context.Context, id string, priority *int, at time.Time) error
	// ListAutoCloseCandidates returns resolved doubts with resolved_at <= cutoff.
	ListAutoCloseCandidates(ctx context.Context, cutoff time.Time, limit int) ([]domain.Doubt, error)
	// ListSLABreached returns active, never escalated doubts whose deadline is before now.
	ListSLABreached(ctx context.Context, now time.Time, limit int) ([]domain.Doubt, error)
}

const doubtColumns = `id, student_id, assigned_support_id, topic_id, title, description, status, priority,
               created_at, updated_at, submitted_at, resolved_at, closed_at, escalated_at, reopened_count, sla_deadline`

type doubtRepository struct {
	pool *pgxpool.Pool
}

// NewDoubtRepository instantiates repository.
func NewDoubtRepository(pool *pgxpool.Pool) DoubtRepository {
	return &doubtRepository{pool: pool}
}

func (r *doubtRepository) Create(ctx context.Context, doubt *domain.Doubt, attachments []domain.Attachment) error {
	const insertDoubt = `
        INSERT INTO doubts (student_id, assigned_support_id, topic_id, title, description, status, priority,
            created_at, updated_at, submitted_at, reopened_count, sla_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id`
	const insertAttachment = `
        INSERT INTO doubt_attachments (doubt_id, file_name, file_type, file_url, uploaded_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertDoubt,
			doubt.StudentID,
			doubt.AssignedSupportID,
			doubt.TopicID,
			doubt.Title,
			doubt.Description,
			doubt.Status,
			doubt.Priority,
			doubt.CreatedAt,
			doubt.UpdatedAt,
			doubt.SubmittedAt,
			doubt.ReopenedCount,
			doubt.SLADeadline,
		).Scan(&doubt.ID); err != nil {
			return fmt.Errorf("insert doubt: %w", err)
		}
		for i := range attachments {
			att := &attachments[i]
			att.DoubtID = doubt.ID
			if att.CreatedAt.IsZero() {
				att.CreatedAt = doubt.CreatedAt
			}
			if err := tx.QueryRow(ctx, insertAttachment,
				att.DoubtID,
				att.FileName,
				att.FileType,
				att.FileURL,
				att.UploadedBy,
				att.CreatedAt,
			).Scan(&att.ID); err != nil {
				return fmt.Errorf("insert attachment: %w", err)
			}
		}
		return nil
	})
	return classify(err)
}

func (r *doubtRepository) GetByID(ctx context.Context, id string) (*domain.Doubt, error) {
	query := `SELECT ` + doubtColumns + ` FROM doubts WHERE id=$1`
	d, err := scanDoubt(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *doubtRepository) List(ctx context.Context, filter DoubtFilter) ([]domain.Doubt, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id=$%d", len(args)))
	}
	if filter.AssignedSupportID != nil {
		args = append(args, *filter.AssignedSupportID)
		clauses = append(clauses, fmt.Sprintf("assigned_support_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_support_id IS NULL")
	}
	if filter.TopicID != nil {
		args = append(args, *filter.TopicID)
		clauses = append(clauses, fmt.Sprintf("topic_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := NormalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM doubts WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		doubtColumns, strings.Join(clauses, " AND "), limit, offset)

	return r.query(ctx, query, args...)
}

func (r *doubtRepository) UpdateLifecycle(ctx context.Context, doubt *domain.Doubt, read LifecycleGuard) error {
	args := []any{
		doubt.Status,
		doubt.ResolvedAt,
		doubt.ClosedAt,
		doubt.EscalatedAt,
		doubt.ReopenedCount,
		doubt.UpdatedAt,
		doubt.ID,
		read.Status,
		read.ReopenedCount,
		read.AssignedSupportID,
		read.EscalatedAt,
	}
	set := `status=$1, resolved_at=$2, closed_at=$3, escalated_at=$4, reopened_count=$5, updated_at=$6`
	if !sameString(doubt.AssignedSupportID, read.AssignedSupportID) {
		args = append(args, doubt.AssignedSupportID)
		set += fmt.Sprintf(", assigned_support_id=$%d", len(args))
	}
	query := `UPDATE doubts SET ` + set + `
        WHERE id=$7 AND status=$8 AND reopened_count=$9
            AND assigned_support_id IS NOT DISTINCT FROM $10::text
            AND escalated_at IS NOT DISTINCT FROM $11::timestamptz`

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	var current LifecycleGuard
	err = r.pool.QueryRow(ctx,
		`SELECT status, reopened_count, assigned_support_id, escalated_at FROM doubts WHERE id=$1`, doubt.ID,
	).Scan(&current.Status, &current.ReopenedCount, &current.AssignedSupportID, &current.EscalatedAt)
	if err != nil {
		return err
	}
	return read.staleError(current)
}

func (r *doubtRepository) UpdateAssignment(ctx context.Context, id string, supportID *string, at time.Time) error {
	const query = `UPDATE doubts SET assigned_support_id=$1, updated_at=$2 WHERE id=$3`
	return r.exec(ctx, query, supportID, at, id)
}

func (r *doubtRepository) UpdatePriority(ctx context.Context, id string, priority *int, at time.Time) error {
	const query = `UPDATE doubts SET priority=$1, updated_at=$2 WHERE id=$3`
	return r.exec(ctx, query, priority, at, id)
}

func (r *doubtRepository) ListAutoCloseCandidates(ctx context.Context, cutoff time.Time, limit int) ([]domain.Doubt, error) {
	query := `SELECT ` + doubtColumns + `
        FROM doubts WHERE status=$1 AND resolved_at IS NOT NULL AND resolved_at <= $2
        ORDER BY resolved_at ASC LIMIT $3`
	return r.query(ctx, query, domain.DoubtStatusResolved, cutoff, sweepLimit(limit))
}

func (r *doubtRepository) ListSLABreached(ctx context.Context, now time.Time, limit int) ([]domain.Doubt, error) {
	query := `SELECT ` + doubtColumns + `
        FROM doubts WHERE status IN ($1,$2,$3) AND escalated_at IS NULL AND sla_deadline < $4
        ORDER BY sla_deadline ASC LIMIT $5`
	return r.query(ctx, query,
		domain.DoubtStatusSubmitted,
		domain.DoubtStatusInProgress,
		domain.DoubtStatusReopened,
		now,
		sweepLimit(limit),
	)
}

func (r *doubtRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *doubtRepository) query(ctx context.Context, query string, args ...any) ([]domain.Doubt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Doubt
	for rows.Next() {
		d, err := scanDoubt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func scanDoubt(row pgx.Row) (*domain.Doubt, error) {
	var d domain.Doubt
	if err := row.Scan(
		&d.ID,
		&d.StudentID,
		&d.AssignedSupportID,
		&d.TopicID,
		&d.Title,
		&d.Description,
		&d.Status,
		&d.Priority,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.SubmittedAt,
		&d.ResolvedAt,
		&d.ClosedAt,
		&d.EscalatedAt,
		&d.ReopenedCount,
		&d.SLADeadline,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// NormalizePage clamps list paging to sane bounds.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func sweepLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	return limit
}

// LifecycleGuard is the part of a doubt the lifecycle engine decides on. A
// lifecycle write only lands while the stored row still carries these values,
// so a closed -> reopened -> closed cycle between read and write is detected
// through reopened_count and a concurrent assignment is never overwritten.
type LifecycleGuard struct {
	Status            domain.DoubtStatus
	ReopenedCount     int
	AssignedSupportID *string
	EscalatedAt       *time.Time
}

// GuardOf captures the guard fields of a doubt as it was read.
func GuardOf(d domain.Doubt) LifecycleGuard {
	return LifecycleGuard{
		Status:            d.Status,
		ReopenedCount:     d.ReopenedCount,
		AssignedSupportID: d.AssignedSupportID,
		EscalatedAt:       d.EscalatedAt,
	}
}

// Matches reports whether d still carries the guarded values.
func (g LifecycleGuard) Matches(d domain.Doubt) bool {
	return g.Status == d.Status &&
		g.ReopenedCount == d.ReopenedCount &&
		sameString(g.AssignedSupportID, d.AssignedSupportID) &&
		sameTime(g.EscalatedAt, d.EscalatedAt)
}

// StaleError describes why a write guarded by g lost against current.
func (g LifecycleGuard) StaleError(current domain.Doubt) error {
	return g.staleError(GuardOf(current))
}

func (g LifecycleGuard) staleError(current LifecycleGuard) error {
	switch {
	case g.Status != current.Status:
		return fmt.Errorf("%w: expected %s, found %s", ErrStaleWrite, g.Status, current.Status)
	case g.ReopenedCount != current.ReopenedCount:
		return fmt.Errorf("%w: reopened_count moved from %d to %d", ErrStaleWrite, g.ReopenedCount, current.ReopenedCount)
	case !sameString(g.AssignedSupportID, current.AssignedSupportID):
		return fmt.Errorf("%w: assignee changed", ErrStaleWrite)
	default:
		return fmt.Errorf("%w: escalation changed", ErrStaleWrite)
	}
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// IsStale reports whether err came from a lost compare-and-swap.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleWrite)
}
