// Package memstore keeps every repository in process memory. It backs the
// service when no database is configured and serves as the fake in tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/repository"
)

// Store holds all records behind one lock.
type Store struct {
	mu            sync.RWMutex
	doubts        map[string]domain.Doubt
	attachments   map[string][]domain.Attachment
	responses     map[string][]domain.DoubtResponse
	notifications []domain.Notification
	roles         map[string]domain.RoleAssignment
	courses       map[string]domain.Course
	modules       map[string]domain.Module
	topics        map[string]domain.Topic
	badges        map[string]domain.Badge
	userBadges    []domain.UserBadge

	// FailWrites, when set, is returned by every write. Tests use it to
	// simulate an unavailable or rejecting store.
	FailWrites error
	// FailNotifications, when set, is returned by notification inserts only.
	FailNotifications error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		doubts:      make(map[string]domain.Doubt),
		attachments: make(map[string][]domain.Attachment),
		responses:   make(map[string][]domain.DoubtResponse),
		roles:       make(map[string]domain.RoleAssignment),
		courses:     make(map[string]domain.Course),
		modules:     make(map[string]domain.Module),
		topics:      make(map[string]domain.Topic),
		badges:      make(map[string]domain.Badge),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Doubts:        doubtRepo{s},
		Responses:     responseRepo{s},
		Attachments:   attachmentRepo{s},
		Notifications: notificationRepo{s},
		Roles:         roleRepo{s},
		Catalog:       catalogRepo{s},
		Badges:        badgeRepo{s},
		Ping:          func(context.Context) error { return nil },
	}
}

// PutDoubt stores d as is, bypassing the lifecycle. Test helper.
func (s *Store) PutDoubt(d domain.Doubt) domain.Doubt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	s.doubts[d.ID] = d.Clone()
	return d
}

// Notifications returns a copy of every stored notification in insertion order.
func (s *Store) Notifications() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.notifications...)
}

func (s *Store) writeErr() error {
	return s.FailWrites
}

type doubtRepo struct{ s *Store }

func (r doubtRepo) Create(_ context.Context, d *domain.Doubt, attachments []domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	d.ID = uuid.NewString()
	r.s.doubts[d.ID] = d.Clone()
	for i := range attachments {
		attachments[i].ID = uuid.NewString()
		attachments[i].DoubtID = d.ID
		if attachments[i].CreatedAt.IsZero() {
			attachments[i].CreatedAt = d.CreatedAt
		}
	}
	if len(attachments) > 0 {
		r.s.attachments[d.ID] = append([]domain.Attachment(nil), attachments...)
	}
	return nil
}

func (r doubtRepo) GetByID(_ context.Context, id string) (*domain.Doubt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.doubts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := d.Clone()
	return &out, nil
}

func (r doubtRepo) List(_ context.Context, f repository.DoubtFilter) ([]domain.Doubt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := ""
	if f.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*f.SearchTerm))
	}
	var out []domain.Doubt
	for _, d := range r.s.doubts {
		if f.StudentID != nil && d.StudentID != *f.StudentID {
			continue
		}
		if f.AssignedSupportID != nil && (d.AssignedSupportID == nil || *d.AssignedSupportID != *f.AssignedSupportID) {
			continue
		}
		if f.Unassigned && d.AssignedSupportID != nil {
			continue
		}
		if f.TopicID != nil && (d.TopicID == nil || *d.TopicID != *f.TopicID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, d.Status) {
			continue
		}
		if f.CreatedFrom != nil && d.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && d.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(d.Title), search) && !strings.Contains(strings.ToLower(d.Description), search) {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	limit, offset := repository.NormalizePage(f.Limit, f.Offset)
	return page(out, limit, offset), nil
}

func (r doubtRepo) UpdateLifecycle(_ context.Context, d *domain.Doubt, read repository.LifecycleGuard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	current, ok := r.s.doubts[d.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !read.Matches(current) {
		return read.StaleError(current)
	}
	current.Status = d.Status
	current.AssignedSupportID = cloneString(d.AssignedSupportID)
	current.ResolvedAt = cloneTime(d.ResolvedAt)
	current.ClosedAt = cloneTime(d.ClosedAt)
	current.EscalatedAt = cloneTime(d.EscalatedAt)
	current.ReopenedCount = d.ReopenedCount
	current.UpdatedAt = d.UpdatedAt
	r.s.doubts[d.ID] = current
	return nil
}

func (r doubtRepo) UpdateAssignment(_ context.Context, id string, supportID *string, at time.Time) error {
	return r.mutate(id, func(d *domain.Doubt) {
		d.AssignedSupportID = cloneString(supportID)
		d.UpdatedAt = at
	})
}

func (r doubtRepo) UpdatePriority(_ context.Context, id string, priority *int, at time.Time) error {
	return r.mutate(id, func(d *domain.Doubt) {
		if priority == nil {
			d.Priority = nil
		} else {
			p := *priority
			d.Priority = &p
		}
		d.UpdatedAt = at
	})
}

func (r doubtRepo) mutate(id string, fn func(*domain.Doubt)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	d, ok := r.s.doubts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(&d)
	r.s.doubts[id] = d
	return nil
}

func (r doubtRepo) ListAutoCloseCandidates(_ context.Context, cutoff time.Time, limit int) ([]domain.Doubt, error) {
	return r.selectSorted(limit, func(d domain.Doubt) bool {
		return d.Status == domain.DoubtStatusResolved && d.ResolvedAt != nil && !d.ResolvedAt.After(cutoff)
	}, func(a, b domain.Doubt) bool { return a.ResolvedAt.Before(*b.ResolvedAt) })
}

func (r doubtRepo) ListSLABreached(_ context.Context, now time.Time, limit int) ([]domain.Doubt, error) {
	return r.selectSorted(limit, func(d domain.Doubt) bool {
		return d.Status.IsActive() && d.EscalatedAt == nil && d.SLADeadline.Before(now)
	}, func(a, b domain.Doubt) bool { return a.SLADeadline.Before(b.SLADeadline) })
}

func (r doubtRepo) selectSorted(limit int, keep func(domain.Doubt) bool, less func(a, b domain.Doubt) bool) ([]domain.Doubt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Doubt
	for _, d := range r.s.doubts {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type responseRepo struct{ s *Store }

func (r responseRepo) Create(_ context.Context, resp *domain.DoubtResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.writeErr(); err != nil {
		return err
	}
	resp.ID = uuid.NewString()
	r.s.responses[resp.DoubtID] = append(r.s.responses[resp.DoubtID], *resp)
	return nil
}

func (r responseRepo) ListByDoubt(_ context.Context, doubtID string) ([]domain.DoubtResponse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.DoubtResponse(nil), r.s.responses[doubtID]...), nil
}

type attachmentRepo struct{ s *Store }

func (r attachmentRepo) ListByDoubt(_ context.Context, doubtID string) ([]domain.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.Attachment(nil), r.s.attachments[doubtID]...), nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailNotifications != nil {
		return r.s.FailNotifications
	}
	if err := r.s.writeErr(); err != nil {
		return err
	}
	n.ID = uuid.NewString()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	var out []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if r.s.notifications[i].UserID == userID {
			out = append(out, r.s.notifications[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r notificationRepo) UnreadCount(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) MarkRead(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id && r.s.notifications[i].UserID == userID {
			r.s.notifications[i].Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r notificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.notifications {
		if r.s.notifications[i].UserID == userID && !r.s.notifications[i].Read {
			r.s.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

type roleRepo struct{ s *Store }

func (r roleRepo) GetRole(_ context.Context, userID string) (domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ra, ok := r.s.roles[userID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return ra.Role, nil
}

func (r roleRepo) Assign(_ context.Context, a *domain.RoleAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.roles[a.UserID]; ok {
		a.CreatedAt = existing.CreatedAt
	} else if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.s.roles[a.UserID] = *a
	return nil
}

func (r roleRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.RoleAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.RoleAssignment
	for _, ra := range r.s.roles {
		if ra.Role == role {
			out = append(out, ra)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func containsStatus(list []domain.DoubtStatus, s domain.DoubtStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
