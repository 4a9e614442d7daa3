package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage/memory"
	"github.com/isdelr/lms-be/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []EnrollmentChange
}

func (n *recordingNotifier) NotifyEnrollmentChanged(change EnrollmentChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func (n *recordingNotifier) all() []EnrollmentChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]EnrollmentChange(nil), n.changes...)
}

type fixture struct {
	store       *memory.Store
	events      *EventService
	enrollments *EnrollmentService
	courses     *CourseService
	notifier    *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	events := NewEventService(store)
	notifier := &recordingNotifier{}
	enrollments := NewEnrollmentService(store, events, notifier)
	enrollments.now = func() time.Time { return fixedNow }
	courses := NewCourseService(store, events)
	courses.now = func() time.Time { return fixedNow }
	return &fixture{store: store, events: events, enrollments: enrollments, courses: courses, notifier: notifier}
}

func (f *fixture) addUser(t *testing.T, id string, role models.Role) {
	t.Helper()
	require.NoError(t, f.store.CreateUser(context.Background(), storagetest.User(id, role)))
}

func (f *fixture) addCourse(t *testing.T, id, instructorID string, category models.Category, capacity int) {
	t.Helper()
	require.NoError(t, f.store.CreateCourse(context.Background(), storagetest.Course(id, instructorID, category, capacity)))
}

func (f *fixture) course(t *testing.T, id string) models.Course {
	t.Helper()
	c, err := f.store.GetCourse(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) user(t *testing.T, id string) models.User {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

// assertConsistent checks that every roster entry is mirrored on the user
// side and the reverse, and that no roster exceeds its capacity.
func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	courses, err := f.store.ListCourses(ctx)
	require.NoError(t, err)
	users, err := f.store.ListUsers(ctx)
	require.NoError(t, err)

	byID := map[string]models.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, c := range courses {
		require.LessOrEqual(t, len(c.EnrolledStudents), c.Capacity, "course %s over capacity", c.ID)
		seen := map[string]bool{}
		for _, sid := range c.EnrolledStudents {
			require.False(t, seen[sid], "duplicate %s on course %s", sid, c.ID)
			seen[sid] = true
			u, ok := byID[sid]
			require.True(t, ok, "roster of %s names missing user %s", c.ID, sid)
			require.Contains(t, u.EnrolledCourses, c.ID)
		}
	}
	for _, u := range users {
		for _, cid := range u.EnrolledCourses {
			c := f.course(t, cid)
			require.Contains(t, c.EnrolledStudents, u.ID)
		}
	}
}
