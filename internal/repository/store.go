package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrStaleWrite is returned when a compare-and-swap write finds the row in a
	// different status than the caller read.
	ErrStaleWrite = errors.New("doubt changed since it was read")
	// ErrWriteRejected is returned when the database refuses a write on
	// permission grounds (row-level security, missing grants).
	ErrWriteRejected = errors.New("write rejected by store policy")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("record already exists")
	// ErrConstraint is returned when a write breaks a CHECK constraint.
	ErrConstraint = errors.New("write violates a table constraint")
)

const (
	sqlStateInsufficientPrivilege = "42501"
	sqlStateUniqueViolation       = "23505"
	sqlStateCheckViolation        = "23514"
)

// Store bundles every repository the services use.
type Store struct {
	Doubts        DoubtRepository
	Responses     ResponseRepository
	Attachments   AttachmentRepository
	Notifications NotificationRepository
	Roles         RoleRepository
	Catalog       CatalogRepository
	Badges        BadgeRepository
	// Ping reports store health for readiness checks.
	Ping func(ctx context.Context) error
}

// NewPostgresStore wires the pgx implementations onto pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return Store{
		Doubts:        NewDoubtRepository(pool),
		Responses:     NewResponseRepository(pool),
		Attachments:   NewAttachmentRepository(pool),
		Notifications: NewNotificationRepository(pool),
		Roles:         NewRoleRepository(pool),
		Catalog:       NewCatalogRepository(pool),
		Badges:        NewBadgeRepository(pool),
		Ping:          pool.Ping,
	}
}

// classify maps postgres error codes onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateInsufficientPrivilege:
			return errors.Join(ErrWriteRejected, err)
		case sqlStateUniqueViolation:
			return errors.Join(ErrDuplicate, err)
		case sqlStateCheckViolation:
			return errors.Join(ErrConstraint, err)
		}
	}
	return err
}
