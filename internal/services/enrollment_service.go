package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/rs/zerolog/log"
)

// EnrollmentChange describes one roster mutation for live subscribers.
type EnrollmentChange struct {
	CourseID   string `json:"courseId"`
	StudentID  string `json:"studentId"`
	Enrolled   bool   `json:"enrolled"`
	RosterSize int    `json:"rosterSize"`
	Capacity   int    `json:"capacity"`
}

// EnrollmentNotifier receives roster changes after they are committed.
type EnrollmentNotifier interface {
	NotifyEnrollmentChanged(change EnrollmentChange)
}

// EnrollmentServiceProvider defines the operations that change the
// course-student relation or delete one of its sides.
type EnrollmentServiceProvider interface {
	Enroll(ctx context.Context, courseID, studentID string) (models.Course, error)
	Unenroll(ctx context.Context, courseID, studentID string) (models.Course, error)
	DeleteCourse(ctx context.Context, courseID string) error
	DeleteUser(ctx context.Context, userID string) error
}

// EnrollmentService keeps course rosters and users' enrolled-course sets in
// step. Every check and the write it guards run inside one store transaction.
type EnrollmentService struct {
	store    storage.Store
	events   EventServiceProvider
	notifier EnrollmentNotifier
	now      func() time.Time
}

// NewEnrollmentService creates a new EnrollmentService. notifier may be nil.
func NewEnrollmentService(store storage.Store, events EventServiceProvider, notifier EnrollmentNotifier) *EnrollmentService {
	return &EnrollmentService{store: store, events: events, notifier: notifier, now: time.Now}
}

func courseNotFound(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Resource: "course", ID: id}
	}
	return err
}

// Enroll adds studentID to the course roster and courseID to the student's
// enrolled courses.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID, studentID string) (models.Course, error) {
	var updated models.Course
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		course, err := tx.GetCourse(ctx, courseID)
		if err != nil {
			return courseNotFound(err, courseID)
		}
		if _, err := tx.GetUser(ctx, studentID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return &NotFoundError{Resource: "user", ID: studentID}
			}
			return err
		}
		if course.HasStudent(studentID) {
			return ErrAlreadyEnrolled
		}
		if course.IsFull() {
			return ErrCapacityExceeded
		}
		if err := tx.AddEnrollment(ctx, courseID, studentID, s.now().UTC()); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return ErrAlreadyEnrolled
			}
			return err
		}
		updated, err = tx.GetCourse(ctx, courseID)
		return err
	})
	if err != nil {
		err = classify("enroll student", err)
		log.Warn().Err(err).Str("course_id", courseID).Str("user_id", studentID).Msg("Enrollment refused")
		return models.Course{}, err
	}

	log.Info().Str("course_id", courseID).Str("user_id", studentID).Msg("Student enrolled")
	recordEvent(ctx, s.events, "course.enroll", "info", fmt.Sprintf("Student %s enrolled in course '%s'.", studentID, updated.Title), ptr(courseID), ptr(studentID))
	s.notify(updated, studentID, true)
	return updated, nil
}

// Unenroll removes the link between a course and a student on both sides.
func (s *EnrollmentService) Unenroll(ctx context.Context, courseID, studentID string) (models.Course, error) {
	var updated models.Course
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		course, err := tx.GetCourse(ctx, courseID)
		if err != nil {
			return courseNotFound(err, courseID)
		}
		if !course.HasStudent(studentID) {
			return ErrNotEnrolled
		}
		if err := tx.RemoveEnrollment(ctx, courseID, studentID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotEnrolled
			}
			return err
		}
		updated, err = tx.GetCourse(ctx, courseID)
		return err
	})
	if err != nil {
		err = classify("unenroll student", err)
		log.Warn().Err(err).Str("course_id", courseID).Str("user_id", studentID).Msg("Unenrollment refused")
		return models.Course{}, err
	}

	log.Info().Str("course_id", courseID).Str("user_id", studentID).Msg("Student unenrolled")
	recordEvent(ctx, s.events, "course.unenroll", "info", fmt.Sprintf("Student %s unenrolled from course '%s'.", studentID, updated.Title), ptr(courseID), ptr(studentID))
	s.notify(updated, studentID, false)
	return updated, nil
}

// DeleteCourse removes a course whose roster is empty.
func (s *EnrollmentService) DeleteCourse(ctx context.Context, courseID string) error {
	var deleted models.Course
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		course, err := tx.GetCourse(ctx, courseID)
		if err != nil {
			return courseNotFound(err, courseID)
		}
		if n := len(course.EnrolledStudents); n > 0 {
			return &HasEnrollmentsError{CourseID: courseID, Count: n}
		}
		if err := tx.DeleteCourse(ctx, courseID); err != nil {
			return courseNotFound(err, courseID)
		}
		deleted = course
		return nil
	})
	if err != nil {
		err = classify("delete course", err)
		log.Warn().Err(err).Str("course_id", courseID).Msg("Course deletion refused")
		return err
	}

	log.Info().Str("course_id", courseID).Msg("Course deleted")
	recordEvent(ctx, s.events, "course.delete", "warn", fmt.Sprintf("Course '%s' was deleted.", deleted.Title), ptr(courseID), nil)
	return nil
}

// DeleteUser removes a user and pulls them from every roster they are on.
// Users who still instruct a course are refused.
func (s *EnrollmentService) DeleteUser(ctx context.Context, userID string) error {
	var removed models.User
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return &NotFoundError{Resource: "user", ID: userID}
			}
			return err
		}
		if err := tx.DeleteUser(ctx, userID); err != nil {
			if errors.Is(err, storage.ErrInUse) {
				return ErrInstructorHasCourses
			}
			return err
		}
		removed = user
		return nil
	})
	if err != nil {
		err = classify("delete user", err)
		log.Warn().Err(err).Str("user_id", userID).Msg("User deletion refused")
		return err
	}

	log.Info().Str("user_id", userID).Int("courses_left", len(removed.EnrolledCourses)).Msg("User deleted")
	recordEvent(ctx, s.events, "user.delete", "warn", fmt.Sprintf("User '%s' was deleted.", removed.Email), nil, ptr(userID))
	for _, courseID := range removed.EnrolledCourses {
		course, err := s.store.GetCourse(ctx, courseID)
		if err != nil {
			continue
		}
		s.notify(course, userID, false)
	}
	return nil
}

func (s *EnrollmentService) notify(course models.Course, studentID string, enrolled bool) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyEnrollmentChanged(EnrollmentChange{
		CourseID:   course.ID,
		StudentID:  studentID,
		Enrolled:   enrolled,
		RosterSize: len(course.EnrolledStudents),
		Capacity:   course.Capacity,
	})
}
