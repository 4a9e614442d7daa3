// Package memory provides an in-process storage.Store used by tests and by
// the "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
)

type enrollment struct {
	seq        int64
	courseID   string
	userID     string
	enrolledAt time.Time
}

// Store keeps every record in maps guarded by a single lock.
type Store struct {
	mu          sync.RWMutex
	users       map[string]models.User
	userOrder   []string
	courses     map[string]models.Course
	courseOrder []string
	enrollments []enrollment
	events      []models.Event
	seq         int64
}

var _ storage.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]models.User),
		courses: make(map[string]models.Course),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return storage.ErrAlreadyExists
	}
	if emailTaken(s.users, user.Email, "") {
		return storage.ErrAlreadyExists
	}
	user.EnrolledCourses = nil
	s.users[user.ID] = user
	s.userOrder = append(s.userOrder, user.ID)
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.userOrder {
		if strings.EqualFold(s.users[id].Email, email) {
			return s.getUser(id)
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		user, _ := s.getUser(id)
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) CreateCourse(ctx context.Context, course models.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[course.ID]; ok {
		return storage.ErrAlreadyExists
	}
	if _, ok := s.users[course.InstructorID]; !ok {
		return storage.ErrNotFound
	}
	course.EnrolledStudents = nil
	s.courses[course.ID] = course
	s.courseOrder = append(s.courseOrder, course.ID)
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (models.Course, error) {
	if err := ctx.Err(); err != nil {
		return models.Course{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCourse(id)
}

func (s *Store) ListCourses(ctx context.Context) ([]models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	courses := make([]models.Course, 0, len(s.courseOrder))
	for _, id := range s.courseOrder {
		course, _ := s.getCourse(id)
		courses = append(courses, course)
	}
	return courses, nil
}

func (s *Store) CreateEvent(ctx context.Context, event models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest insertion first so equal timestamps match the sqlite ordering.
	events := make([]models.Event, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		events = append(events, s.events[i])
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Update holds the write lock for the whole of fn. Changes are staged on a
// copy and swapped in only when fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		users:       make(map[string]models.User, len(s.users)),
		userOrder:   append([]string(nil), s.userOrder...),
		courses:     make(map[string]models.Course, len(s.courses)),
		courseOrder: append([]string(nil), s.courseOrder...),
		enrollments: append([]enrollment(nil), s.enrollments...),
		seq:         s.seq,
	}
	for id, u := range s.users {
		tx.users[id] = u
	}
	for id, c := range s.courses {
		tx.courses[id] = c
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.users = tx.users
	s.userOrder = tx.userOrder
	s.courses = tx.courses
	s.courseOrder = tx.courseOrder
	s.enrollments = tx.enrollments
	s.seq = tx.seq
	return nil
}

func emailTaken(users map[string]models.User, email, exceptID string) bool {
	for id, u := range users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) getUser(id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	user.EnrolledCourses = coursesOf(s.enrollments, id)
	return user, nil
}

func (s *Store) getCourse(id string) (models.Course, error) {
	course, ok := s.courses[id]
	if !ok {
		return models.Course{}, storage.ErrNotFound
	}
	course.EnrolledStudents = rosterOf(s.enrollments, id)
	return course, nil
}

func rosterOf(links []enrollment, courseID string) []string {
	roster := []string{}
	for _, e := range links {
		if e.courseID == courseID {
			roster = append(roster, e.userID)
		}
	}
	return roster
}

func coursesOf(links []enrollment, userID string) []string {
	courses := []string{}
	for _, e := range links {
		if e.userID == userID {
			courses = append(courses, e.courseID)
		}
	}
	return courses
}

type memTx struct {
	users       map[string]models.User
	userOrder   []string
	courses     map[string]models.Course
	courseOrder []string
	enrollments []enrollment
	seq         int64
}

func (tx *memTx) GetCourse(ctx context.Context, id string) (models.Course, error) {
	if err := ctx.Err(); err != nil {
		return models.Course{}, err
	}
	course, ok := tx.courses[id]
	if !ok {
		return models.Course{}, storage.ErrNotFound
	}
	course.EnrolledStudents = rosterOf(tx.enrollments, id)
	return course, nil
}

func (tx *memTx) GetUser(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	user, ok := tx.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	user.EnrolledCourses = coursesOf(tx.enrollments, id)
	return user, nil
}

func (tx *memTx) UpdateUser(ctx context.Context, user models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	if emailTaken(tx.users, user.Email, user.ID) {
		return storage.ErrAlreadyExists
	}
	user.EnrolledCourses = nil
	tx.users[user.ID] = user
	return nil
}

func (tx *memTx) AddEnrollment(ctx context.Context, courseID, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.courses[courseID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := tx.users[userID]; !ok {
		return storage.ErrNotFound
	}
	for _, e := range tx.enrollments {
		if e.courseID == courseID && e.userID == userID {
			return storage.ErrAlreadyExists
		}
	}
	tx.seq++
	tx.enrollments = append(tx.enrollments, enrollment{
		seq:        tx.seq,
		courseID:   courseID,
		userID:     userID,
		enrolledAt: at,
	})
	return nil
}

func (tx *memTx) RemoveEnrollment(ctx context.Context, courseID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, e := range tx.enrollments {
		if e.courseID == courseID && e.userID == userID {
			tx.enrollments = append(tx.enrollments[:i:i], tx.enrollments[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (tx *memTx) UpdateCourse(ctx context.Context, course models.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.courses[course.ID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := tx.users[course.InstructorID]; !ok {
		return storage.ErrNotFound
	}
	course.EnrolledStudents = nil
	tx.courses[course.ID] = course
	return nil
}

func (tx *memTx) DeleteCourse(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.courses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(tx.courses, id)
	tx.courseOrder = without(tx.courseOrder, id)
	kept := tx.enrollments[:0:0]
	for _, e := range tx.enrollments {
		if e.courseID != id {
			kept = append(kept, e)
		}
	}
	tx.enrollments = kept
	return nil
}

func (tx *memTx) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.users[id]; !ok {
		return storage.ErrNotFound
	}
	for _, c := range tx.courses {
		if c.InstructorID == id {
			return storage.ErrInUse
		}
	}
	delete(tx.users, id)
	tx.userOrder = without(tx.userOrder, id)
	kept := tx.enrollments[:0:0]
	for _, e := range tx.enrollments {
		if e.userID != id {
			kept = append(kept, e)
		}
	}
	tx.enrollments = kept
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
