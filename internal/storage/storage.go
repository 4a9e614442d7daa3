// Package storage defines the record store used by the LMS services.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/isdelr/lms-be/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInUse is returned when a record is still referenced by another.
	ErrInUse = errors.New("record still referenced")
)

// Tx is the read-write view handed to Store.Update. All calls made through a
// Tx are applied together or not at all, and no other Update runs concurrently.
type Tx interface {
	GetCourse(ctx context.Context, id string) (models.Course, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	// UpdateUser replaces the stored account fields. Callers read the user
	// through the same Tx first so concurrent edits cannot be lost.
	UpdateUser(ctx context.Context, user models.User) error
	// AddEnrollment links a course and a user. Both sides of the relation are
	// derived from the single link, so they change together.
	AddEnrollment(ctx context.Context, courseID, userID string, at time.Time) error
	RemoveEnrollment(ctx context.Context, courseID, userID string) error
	// UpdateCourse replaces the editable fields of a course. The roster is
	// not touched.
	UpdateCourse(ctx context.Context, course models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	// DeleteUser removes the user and every enrollment link that references it.
	// It fails with ErrInUse while the user instructs a course.
	DeleteUser(ctx context.Context, id string) error
}

// Store persists users, courses, their enrollment links and activity events.
type Store interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	CreateCourse(ctx context.Context, course models.Course) error
	GetCourse(ctx context.Context, id string) (models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)

	CreateEvent(ctx context.Context, event models.Event) error
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)

	// Update runs fn inside a serialized transaction. If fn returns an error
	// nothing it did is kept.
	Update(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
