// Package storagetest holds behaviour tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one test.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// User builds a user record with the given id and role.
func User(id string, role models.Role) models.User {
	return models.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "User " + id,
		Role:      role,
		CreatedAt: base,
		UpdatedAt: base,
		LastLogin: base,
	}
}

// Course builds a course record owned by instructorID.
func Course(id, instructorID string, category models.Category, capacity int) models.Course {
	return models.Course{
		ID:           id,
		Title:        "Course " + id,
		Description:  "About " + id,
		Category:     category,
		InstructorID: instructorID,
		Capacity:     capacity,
		StartDate:    base.AddDate(0, 1, 0),
		EndDate:      base.AddDate(0, 3, 0),
		Status:       models.StatusPublished,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

// Run exercises the storage.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("UserRoundTrip", func(t *testing.T) { testUserRoundTrip(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("CourseRequiresInstructor", func(t *testing.T) { testCourseRequiresInstructor(t, newStore(t)) })
	t.Run("EnrollmentVisibleFromBothSides", func(t *testing.T) { testEnrollmentBothSides(t, newStore(t)) })
	t.Run("DuplicateEnrollment", func(t *testing.T) { testDuplicateEnrollment(t, newStore(t)) })
	t.Run("FailedUpdateRollsBack", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("DeleteUserCascades", func(t *testing.T) { testDeleteUserCascades(t, newStore(t)) })
	t.Run("DeleteInstructorRefused", func(t *testing.T) { testDeleteInstructorRefused(t, newStore(t)) })
	t.Run("UpdateCourseKeepsRoster", func(t *testing.T) { testUpdateCourseKeepsRoster(t, newStore(t)) })
	t.Run("EventsNewestFirst", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("ConcurrentUpdatesSerialize", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
}

func testUserRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	want := User("u1", models.RoleStudent)
	want.PasswordHash = "hash"
	require.NoError(t, s.CreateUser(ctx, want))

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.EnrolledCourses)

	byEmail, err := s.GetUserByEmail(ctx, "U1@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		current, err := tx.GetUser(ctx, "u1")
		if err != nil {
			return err
		}
		current.Name = "Renamed"
		return tx.UpdateUser(ctx, current)
	}))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "hash", got.PasswordHash)

	err = s.Update(ctx, func(tx storage.Tx) error {
		return tx.UpdateUser(ctx, User("ghost", models.RoleStudent))
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDuplicateEmail(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User("u1", models.RoleStudent)))

	dup := User("u2", models.RoleStudent)
	dup.Email = "u1@example.com"
	assert.ErrorIs(t, s.CreateUser(ctx, dup), storage.ErrAlreadyExists)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, s.CreateUser(ctx, User("u3", models.RoleStudent)))
	err = s.Update(ctx, func(tx storage.Tx) error {
		u3, err := tx.GetUser(ctx, "u3")
		if err != nil {
			return err
		}
		u3.Email = "U1@example.com"
		return tx.UpdateUser(ctx, u3)
	})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func testCourseRequiresInstructor(t *testing.T, s storage.Store) {
	ctx := context.Background()
	err := s.CreateCourse(ctx, Course("c1", "nobody", models.CategoryDesign, 3))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetCourse(ctx, "c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func seed(t *testing.T, s storage.Store, students ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User("prof", models.RoleInstructor)))
	for _, id := range students {
		require.NoError(t, s.CreateUser(ctx, User(id, models.RoleStudent)))
	}
	require.NoError(t, s.CreateCourse(ctx, Course("c1", "prof", models.CategoryProgramming, 10)))
	require.NoError(t, s.CreateCourse(ctx, Course("c2", "prof", models.CategoryDesign, 10)))
}

func enroll(t *testing.T, s storage.Store, courseID, userID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.AddEnrollment(ctx, courseID, userID, base)
	}))
}

func testEnrollmentBothSides(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed(t, s, "a", "b")
	enroll(t, s, "c1", "b")
	enroll(t, s, "c1", "a")
	enroll(t, s, "c2", "a")

	course, err := s.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, course.EnrolledStudents, "roster keeps enrollment order")

	user, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, user.EnrolledCourses)

	courses, err := s.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, []string{"b", "a"}, courses[0].EnrolledStudents)
	assert.Equal(t, []string{"a"}, courses[1].EnrolledStudents)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	for _, u := range users {
		for _, cid := range u.EnrolledCourses {
			c, err := s.GetCourse(ctx, cid)
			require.NoError(t, err)
			assert.Contains(t, c.EnrolledStudents, u.ID)
		}
	}

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.RemoveEnrollment(ctx, "c1", "a")
	}))
	user, err = s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, user.EnrolledCourses)
	course, err = s.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, course.EnrolledStudents)

	err = s.Update(ctx, func(tx storage.Tx) error {
		return tx.RemoveEnrollment(ctx, "c1", "a")
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDuplicateEnrollment(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed(t, s, "a")
	enroll(t, s, "c1", "a")

	err := s.Update(ctx, func(tx storage.Tx) error {
		return tx.AddEnrollment(ctx, "c1", "a", base)
	})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	err = s.Update(ctx, func(tx storage.Tx) error {
		return tx.AddEnrollment(ctx, "c1", "ghost", base)
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed(t, s, "a", "b")
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx storage.Tx) error {
		if err := tx.AddEnrollment(ctx, "c1", "a", base); err != nil {
			return err
		}
		if err := tx.DeleteUser(ctx, "b"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	course, err := s.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, course.EnrolledStudents)
	_, err = s.GetUser(ctx, "b")
	assert.NoError(t, err)
}

func testDeleteUserCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed(t, s, "a", "b")
	enroll(t, s, "c1", "a")
	enroll(t, s, "c2", "a")
	enroll(t, s, "c1", "b")

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.DeleteUser(ctx, "a")
	}))

	c1, err := s.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, c1.EnrolledStudents)
	c2, err := s.GetCourse(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, c2.EnrolledStudents)
	_, err = s.GetUser(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.Update(ctx, func(tx storage.Tx) error {
		return tx.DeleteUser(ctx, "a")
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.DeleteCourse(ctx, "c2")
	}))
	_, err = s.GetCourse(ctx, "c2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDeleteInstructorRefused(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed(t, s, "a")
	enroll(t, s, "c1", "a")

	err := s.Update(ctx, func(tx storage.Tx) error {
		return tx.DeleteUser(ctx, "prof")
	})
	assert.ErrorIs(t, err, storage.ErrInUse)

	_, err = s.GetUser(ctx, "prof")
	assert.NoError(t, err)
	c, err := s.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, c.EnrolledStudents)
}

func testUpdateCourseKeepsRoster(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seed(t, s, "a")
	enroll(t, s, "c1", "a")

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		c, err := tx.GetCourse(ctx, "c1")
		if err != nil {
			return err
		}
		c.Title = "Renamed"
		c.Capacity = 4
		c.EnrolledStudents = nil
		return tx.UpdateCourse(ctx, c)
	}))

	c, err := s.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Title)
	assert.Equal(t, 4, c.Capacity)
	assert.Equal(t, []string{"a"}, c.EnrolledStudents)

	err = s.Update(ctx, func(tx storage.Tx) error {
		return tx.UpdateCourse(ctx, Course("ghost", "prof", models.CategoryOther, 1))
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testEvents(t *testing.T, s storage.Store) {
	ctx := context.Background()
	courseID := "c1"
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateEvent(ctx, models.Event{
			ID:        fmt.Sprintf("e%d", i),
			Type:      "course.enroll",
			Level:     "info",
			Message:   fmt.Sprintf("event %d", i),
			CourseID:  &courseID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.ListEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, "e1", events[1].ID)
	require.NotNil(t, events[0].CourseID)
	assert.Equal(t, "c1", *events[0].CourseID)
	assert.Nil(t, events[0].UserID)

	// Equal timestamps come back newest insertion first.
	tied := base.Add(time.Hour)
	for _, id := range []string{"t1", "t2"} {
		require.NoError(t, s.CreateEvent(ctx, models.Event{
			ID:        id,
			Type:      "user.login",
			Level:     "info",
			Message:   "tie " + id,
			CreatedAt: tied,
		}))
	}
	events, err = s.ListEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, []string{"t2", "t1", "e2", "e1", "e0"}, eventIDs(events))
}

func eventIDs(events []models.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

// testConcurrentUpdates races check-then-write transactions; a store that
// does not serialize Update lets more than capacity through.
func testConcurrentUpdates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const students, capacity = 12, 5
	require.NoError(t, s.CreateUser(ctx, User("prof", models.RoleInstructor)))
	for i := 0; i < students; i++ {
		require.NoError(t, s.CreateUser(ctx, User(fmt.Sprintf("s%d", i), models.RoleStudent)))
	}
	require.NoError(t, s.CreateCourse(ctx, Course("c1", "prof", models.CategoryBusiness, capacity)))

	errFull := errors.New("full")
	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = s.Update(ctx, func(tx storage.Tx) error {
				c, err := tx.GetCourse(ctx, "c1")
				if err != nil {
					return err
				}
				if c.IsFull() {
					return errFull
				}
				return tx.AddEnrollment(ctx, "c1", id, base)
			})
		}(fmt.Sprintf("s%d", i))
	}
	wg.Wait()

	c, err := s.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, c.EnrolledStudents, capacity)
}
