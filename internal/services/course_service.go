package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/rs/zerolog/log"
)

// CourseServiceProvider defines the interface for course services.
type CourseServiceProvider interface {
	CreateCourse(ctx context.Context, input CourseInput) (models.Course, error)
	GetCourseByID(ctx context.Context, id string) (models.Course, error)
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	UpdateCourse(ctx context.Context, id string, input CourseInput) (models.Course, error)
}

// CourseInput carries the editable fields of a course.
type CourseInput struct {
	Title        string              `json:"title" validate:"required,max=200"`
	Description  string              `json:"description" validate:"required"`
	Category     models.Category     `json:"category" validate:"required,category"`
	InstructorID string              `json:"instructor" validate:"required"`
	Capacity     int                 `json:"capacity" validate:"min=1"`
	StartDate    time.Time           `json:"startDate"`
	EndDate      time.Time           `json:"endDate"`
	Status       models.CourseStatus `json:"status" validate:"omitempty,course_status"`
}

// UnmarshalJSON accepts RFC 3339 timestamps or bare YYYY-MM-DD dates for
// startDate and endDate. A malformed date is reported as a ValidationError.
func (in *CourseInput) UnmarshalJSON(data []byte) error {
	type plain CourseInput
	aux := struct {
		plain
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}{plain: plain(*in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fields := map[string]string{}
	start, err := parseDate(aux.StartDate)
	if err != nil {
		fields["startDate"] = "startDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp"
	}
	end, err := parseDate(aux.EndDate)
	if err != nil {
		fields["endDate"] = "endDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	*in = CourseInput(aux.plain)
	in.StartDate, in.EndDate = start, end
	return nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, value)
}

func (in *CourseInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.InstructorID = strings.TrimSpace(in.InstructorID)
	if in.Status == "" {
		in.Status = models.StatusDraft
	}
}

func (in CourseInput) validate() error {
	var verr *ValidationError
	if err := validateStruct(in); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	dates := map[string]string{}
	if in.StartDate.IsZero() {
		dates["startDate"] = "startDate is required"
	}
	if in.EndDate.IsZero() {
		dates["endDate"] = "endDate is required"
	}
	if len(dates) == 0 && in.EndDate.Before(in.StartDate) {
		dates["endDate"] = "endDate must not be before startDate"
	}
	if len(dates) > 0 {
		verr = merge(verr, &ValidationError{Fields: dates})
	}
	if verr != nil {
		return verr
	}
	return nil
}

// CourseService provides business logic for course management.
type CourseService struct {
	store  storage.Store
	events EventServiceProvider
	now    func() time.Time
}

// NewCourseService creates a new CourseService.
func NewCourseService(store storage.Store, events EventServiceProvider) *CourseService {
	return &CourseService{store: store, events: events, now: time.Now}
}

// checkInstructor verifies the referenced user exists and may teach.
func checkInstructor(user models.User, err error, id string) error {
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Resource: "instructor", ID: id}
		}
		return err
	}
	if !user.Role.CanTeach() {
		return invalidField("instructor", "instructor must have the instructor or admin role")
	}
	return nil
}

// CreateCourse validates the input and stores a new course with an empty roster.
func (s *CourseService) CreateCourse(ctx context.Context, input CourseInput) (models.Course, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return models.Course{}, err
	}

	instructor, err := s.store.GetUser(ctx, input.InstructorID)
	if err := checkInstructor(instructor, err, input.InstructorID); err != nil {
		return models.Course{}, classify("get instructor", err)
	}

	now := s.now().UTC()
	course := models.Course{
		ID:               uuid.New().String(),
		Title:            input.Title,
		Description:      input.Description,
		Category:         input.Category,
		InstructorID:     input.InstructorID,
		Capacity:         input.Capacity,
		EnrolledStudents: []string{},
		StartDate:        input.StartDate.UTC(),
		EndDate:          input.EndDate.UTC(),
		Status:           input.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateCourse(ctx, course); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Course{}, &NotFoundError{Resource: "instructor", ID: input.InstructorID}
		}
		return models.Course{}, classify("create course", err)
	}

	log.Info().Str("course_id", course.ID).Str("category", string(course.Category)).Msg("Course created")
	recordEvent(ctx, s.events, "course.create", "info", fmt.Sprintf("Course '%s' created.", course.Title), ptr(course.ID), ptr(course.InstructorID))
	return course, nil
}

// GetCourseByID retrieves a single course by its ID.
func (s *CourseService) GetCourseByID(ctx context.Context, id string) (models.Course, error) {
	course, err := s.store.GetCourse(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Course{}, &NotFoundError{Resource: "course", ID: id}
		}
		return models.Course{}, classify("get course", err)
	}
	return course, nil
}

// ListCourses returns every course passing filter, in creation order.
func (s *CourseService) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, invalidField("category", fmt.Sprintf("category must be one of %v", models.Categories))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("status must be one of %v", models.CourseStatuses))
	}

	all, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, classify("list courses", err)
	}
	courses := make([]models.Course, 0, len(all))
	for _, c := range all {
		if filter.Matches(c) {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

// UpdateCourse replaces a course's editable fields. Capacity may not drop
// below the current roster size.
func (s *CourseService) UpdateCourse(ctx context.Context, id string, input CourseInput) (models.Course, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return models.Course{}, err
	}

	var updated models.Course
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		course, err := tx.GetCourse(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return &NotFoundError{Resource: "course", ID: id}
			}
			return err
		}
		instructor, err := tx.GetUser(ctx, input.InstructorID)
		if err := checkInstructor(instructor, err, input.InstructorID); err != nil {
			return err
		}
		if input.Capacity < len(course.EnrolledStudents) {
			return invalidField("capacity", fmt.Sprintf("capacity must be at least the current enrollment of %d", len(course.EnrolledStudents)))
		}

		course.Title = input.Title
		course.Description = input.Description
		course.Category = input.Category
		course.InstructorID = input.InstructorID
		course.Capacity = input.Capacity
		course.StartDate = input.StartDate.UTC()
		course.EndDate = input.EndDate.UTC()
		course.Status = input.Status
		course.UpdatedAt = s.now().UTC()
		if err := tx.UpdateCourse(ctx, course); err != nil {
			return err
		}
		updated = course
		return nil
	})
	if err != nil {
		return models.Course{}, classify("update course", err)
	}

	log.Info().Str("course_id", id).Msg("Course updated")
	recordEvent(ctx, s.events, "course.update", "info", fmt.Sprintf("Course '%s' updated.", updated.Title), ptr(id), nil)
	return updated, nil
}
