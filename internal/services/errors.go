package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyEnrolled      = errors.New("student is already enrolled in this course")
	ErrNotEnrolled          = errors.New("student is not enrolled in this course")
	ErrCapacityExceeded     = errors.New("course has reached maximum capacity")
	ErrHasEnrollments       = errors.New("cannot delete course with enrolled students")
	ErrInstructorHasCourses = errors.New("user still instructs one or more courses")
	ErrEmailTaken           = errors.New("email is already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrStorage              = errors.New("storage failure")
)

// NotFoundError names the missing record. It matches ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError maps input field names to what is wrong with them.
// It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// HasEnrollmentsError reports how many students block a course deletion.
// It matches ErrHasEnrollments.
type HasEnrollmentsError struct {
	CourseID string
	Count    int
}

func (e *HasEnrollmentsError) Error() string {
	return fmt.Sprintf("%s (%d enrolled)", ErrHasEnrollments.Error(), e.Count)
}

func (e *HasEnrollmentsError) Is(target error) bool { return target == ErrHasEnrollments }

// StorageError wraps an unexpected failure of the record store.
// It matches ErrStorage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

var domainErrors = []error{
	ErrValidation,
	ErrNotFound,
	ErrAlreadyEnrolled,
	ErrNotEnrolled,
	ErrCapacityExceeded,
	ErrHasEnrollments,
	ErrInstructorHasCourses,
	ErrEmailTaken,
	ErrInvalidCredentials,
}

// IsDomainError reports whether err is a caller-facing refusal rather than a fault.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify passes domain errors through and turns anything else into a
// logged StorageError.
func classify(op string, err error) error {
	if err == nil || IsDomainError(err) || errors.Is(err, ErrStorage) {
		return err
	}
	log.Error().Err(err).Str("op", op).Msg("Storage operation failed")
	return &StorageError{Op: op, Err: err}
}
