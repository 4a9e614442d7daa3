package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	t.Parallel()

	nf := &NotFoundError{Resource: "course", ID: "42"}
	assert.ErrorIs(t, nf, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", nf), ErrNotFound)
	assert.Equal(t, "course with ID 42 not found", nf.Error())

	he := &HasEnrollmentsError{CourseID: "42", Count: 3}
	assert.ErrorIs(t, he, ErrHasEnrollments)
	assert.Contains(t, he.Error(), "3 enrolled")

	verr := &ValidationError{Fields: map[string]string{"title": "title is required", "capacity": "capacity must be at least 1"}}
	assert.ErrorIs(t, verr, ErrValidation)
	assert.Equal(t, "validation failed: capacity must be at least 1; title is required", verr.Error())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, classify("op", nil))
	assert.Same(t, ErrCapacityExceeded, classify("op", ErrCapacityExceeded))

	cause := errors.New("disk full")
	err := classify("write", cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsDomainError(err))
	assert.Equal(t, err, classify("again", err))

	assert.True(t, IsDomainError(&NotFoundError{Resource: "user", ID: "1"}))
}

func TestMergeValidationErrors(t *testing.T) {
	t.Parallel()

	a := invalidField("title", "bad title")
	b := invalidField("endDate", "bad end")
	merged := merge(a, b)
	assert.Len(t, merged.Fields, 2)
	assert.Same(t, b, merge(nil, b))
	assert.Same(t, a, merge(a, nil))
}
