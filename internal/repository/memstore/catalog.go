package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/doubt-service/internal/domain"
)

type catalogRepo struct{ s *Store }

func (r catalogRepo) ListCourses(_ context.Context) ([]domain.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Course, 0, len(r.s.courses))
	for _, c := range r.s.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r catalogRepo) ListModules(_ context.Context, courseID string) ([]domain.Module, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Module
	for _, m := range r.s.modules {
		if m.CourseID == courseID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex == out[j].OrderIndex {
			return out[i].Name < out[j].Name
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (r catalogRepo) ListTopics(_ context.Context, moduleID string) ([]domain.Topic, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Topic
	for _, t := range r.s.topics {
		if t.ModuleID == moduleID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex == out[j].OrderIndex {
			return out[i].Name < out[j].Name
		}
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out, nil
}

func (r catalogRepo) GetTopic(_ context.Context, id string) (*domain.Topic, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.topics[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r catalogRepo) TopicPath(_ context.Context, topicID string) (*domain.TopicPath, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.topics[topicID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	m, ok := r.s.modules[t.ModuleID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c, ok := r.s.courses[m.CourseID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &domain.TopicPath{Course: c, Module: m, Topic: t}, nil
}

func (r catalogRepo) UpsertCourse(_ context.Context, course *domain.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.courses {
		if c.Name == course.Name {
			c.Description = course.Description
			r.s.courses[id] = c
			*course = c
			return nil
		}
	}
	course.ID = uuid.NewString()
	course.CreatedAt = time.Now().UTC()
	r.s.courses[course.ID] = *course
	return nil
}

func (r catalogRepo) UpsertModule(_ context.Context, module *domain.Module) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.modules {
		if m.CourseID == module.CourseID && m.Name == module.Name {
			m.Description = module.Description
			m.OrderIndex = module.OrderIndex
			r.s.modules[id] = m
			*module = m
			return nil
		}
	}
	module.ID = uuid.NewString()
	module.CreatedAt = time.Now().UTC()
	r.s.modules[module.ID] = *module
	return nil
}

func (r catalogRepo) UpsertTopic(_ context.Context, topic *domain.Topic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.topics {
		if t.ModuleID == topic.ModuleID && t.Name == topic.Name {
			t.Description = topic.Description
			t.OrderIndex = topic.OrderIndex
			r.s.topics[id] = t
			*topic = t
			return nil
		}
	}
	topic.ID = uuid.NewString()
	topic.CreatedAt = time.Now().UTC()
	r.s.topics[topic.ID] = *topic
	return nil
}

type badgeRepo struct{ s *Store }

func (r badgeRepo) ListBadges(_ context.Context, role domain.Role) ([]domain.Badge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Badge
	for _, b := range r.s.badges {
		if role == "" || b.ForRole == role {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r badgeRepo) GetBadge(_ context.Context, id string) (*domain.Badge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.badges[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &b, nil
}

func (r badgeRepo) UpsertBadge(_ context.Context, badge *domain.Badge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, b := range r.s.badges {
		if b.Name == badge.Name {
			badge.ID = id
			badge.CreatedAt = b.CreatedAt
			r.s.badges[id] = *badge
			return nil
		}
	}
	badge.ID = uuid.NewString()
	badge.CreatedAt = time.Now().UTC()
	r.s.badges[badge.ID] = *badge
	return nil
}

func (r badgeRepo) Award(_ context.Context, award *domain.UserBadge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	if _, ok := r.s.badges[award.BadgeID]; !ok {
		return pgx.ErrNoRows
	}
	award.ID = uuid.NewString()
	stored := *award
	stored.Badge = nil
	r.s.userBadges = append(r.s.userBadges, stored)
	return nil
}

func (r badgeRepo) ListUserBadges(_ context.Context, userID string) ([]domain.UserBadge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.UserBadge
	for _, ub := range r.s.userBadges {
		if ub.UserID != userID {
			continue
		}
		if b, ok := r.s.badges[ub.BadgeID]; ok {
			badge := b
			ub.Badge = &badge
		}
		out = append(out, ub)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AwardedAt.After(out[j].AwardedAt) })
	return out, nil
}
