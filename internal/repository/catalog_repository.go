package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// CatalogRepository manages the course, module and topic hierarchy.
type CatalogRepository interface {
	ListCourses(ctx context.Context) ([]domain.Course, error)
	ListModules(ctx context.Context, courseID string) ([]domain.Module, error)
	ListTopics(ctx context.Context, moduleID string) ([]domain.Topic, error)
	GetTopic(ctx context.Context, id string) (*domain.Topic, error)
	TopicPath(ctx context.Context, topicID string) (*domain.TopicPath, error)
	// Upsert methods match on natural keys (course name, module name within a
	// course, topic name within a module) and fill in the id.
	UpsertCourse(ctx context.Context, course *domain.Course) error
	UpsertModule(ctx context.Context, module *domain.Module) error
	UpsertTopic(ctx context.Context, topic *domain.Topic) error
}

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository builds repository.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) ListCourses(ctx context.Context) ([]domain.Course, error) {
	const query = `SELECT id, name, description, created_at FROM courses ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *catalogRepository) ListModules(ctx context.Context, courseID string) ([]domain.Module, error) {
	const query = `
        SELECT id, course_id, name, description, order_index, created_at
        FROM modules WHERE course_id=$1 ORDER BY order_index ASC, name ASC`
	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Module
	for rows.Next() {
		var m domain.Module
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Name, &m.Description, &m.OrderIndex, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *catalogRepository) ListTopics(ctx context.Context, moduleID string) ([]domain.Topic, error) {
	const query = `
        SELECT id, module_id, name, description, order_index, created_at
        FROM topics WHERE module_id=$1 ORDER BY order_index ASC, name ASC`
	rows, err := r.pool.Query(ctx, query, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Topic
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.ModuleID, &t.Name, &t.Description, &t.OrderIndex, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *catalogRepository) GetTopic(ctx context.Context, id string) (*domain.Topic, error) {
	const query = `SELECT id, module_id, name, description, order_index, created_at FROM topics WHERE id=$1`
	var t domain.Topic
	if err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.ModuleID, &t.Name, &t.Description, &t.OrderIndex, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *catalogRepository) TopicPath(ctx context.Context, topicID string) (*domain.TopicPath, error) {
	const query = `
        SELECT c.id, c.name, c.description, c.created_at,
               m.id, m.course_id, m.name, m.description, m.order_index, m.created_at,
               t.id, t.module_id, t.name, t.description, t.order_index, t.created_at
        FROM topics t
        JOIN modules m ON m.id = t.module_id
        JOIN courses c ON c.id = m.course_id
        WHERE t.id=$1`
	var p domain.TopicPath
	if err := r.pool.QueryRow(ctx, query, topicID).Scan(
		&p.Course.ID, &p.Course.Name, &p.Course.Description, &p.Course.CreatedAt,
		&p.Module.ID, &p.Module.CourseID, &p.Module.Name, &p.Module.Description, &p.Module.OrderIndex, &p.Module.CreatedAt,
		&p.Topic.ID, &p.Topic.ModuleID, &p.Topic.Name, &p.Topic.Description, &p.Topic.OrderIndex, &p.Topic.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *catalogRepository) UpsertCourse(ctx context.Context, course *domain.Course) error {
	const query = `
        INSERT INTO courses (name, description) VALUES ($1,$2)
        ON CONFLICT (name) DO UPDATE SET description=EXCLUDED.description
        RETURNING id, created_at`
	return classify(r.pool.QueryRow(ctx, query, course.Name, course.Description).Scan(&course.ID, &course.CreatedAt))
}

func (r *catalogRepository) UpsertModule(ctx context.Context, module *domain.Module) error {
	const query = `
        INSERT INTO modules (course_id, name, description, order_index) VALUES ($1,$2,$3,$4)
        ON CONFLICT (course_id, name) DO UPDATE SET description=EXCLUDED.description, order_index=EXCLUDED.order_index
        RETURNING id, created_at`
	return classify(r.pool.QueryRow(ctx, query, module.CourseID, module.Name, module.Description, module.OrderIndex).
		Scan(&module.ID, &module.CreatedAt))
}

func (r *catalogRepository) UpsertTopic(ctx context.Context, topic *domain.Topic) error {
	const query = `
        INSERT INTO topics (module_id, name, description, order_index) VALUES ($1,$2,$3,$4)
        ON CONFLICT (module_id, name) DO UPDATE SET description=EXCLUDED.description, order_index=EXCLUDED.order_index
        RETURNING id, created_at`
	return classify(r.pool.QueryRow(ctx, query, topic.ModuleID, topic.Name, topic.Description, topic.OrderIndex).
		Scan(&topic.ID, &topic.CreatedAt))
}
