package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/isdelr/lms-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCourseInput(instructorID string) CourseInput {
	return CourseInput{
		Title:        "  Go for Services ",
		Description:  "Concurrency and HTTP",
		Category:     models.CategoryProgramming,
		InstructorID: instructorID,
		Capacity:     30,
		StartDate:    fixedNow.AddDate(0, 1, 0),
		EndDate:      fixedNow.AddDate(0, 4, 0),
	}
}

func TestCreateCourse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "prof", models.RoleInstructor)

	course, err := f.courses.CreateCourse(ctx, validCourseInput("prof"))
	require.NoError(t, err)
	assert.NotEmpty(t, course.ID)
	assert.Equal(t, "Go for Services", course.Title)
	assert.Equal(t, models.StatusDraft, course.Status)
	assert.Empty(t, course.EnrolledStudents)
	assert.Equal(t, fixedNow, course.CreatedAt)

	stored, err := f.courses.GetCourseByID(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.Title, stored.Title)
	assert.Equal(t, 30, stored.Capacity)
}

func TestCreateCourseValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "prof", models.RoleInstructor)
	f.addUser(t, "pupil", models.RoleStudent)

	tests := []struct {
		name   string
		mutate func(in *CourseInput)
		field  string
	}{
		{"missing title", func(in *CourseInput) { in.Title = "   " }, "title"},
		{"unknown category", func(in *CourseInput) { in.Category = "Cooking" }, "category"},
		{"zero capacity", func(in *CourseInput) { in.Capacity = 0 }, "capacity"},
		{"negative capacity", func(in *CourseInput) { in.Capacity = -3 }, "capacity"},
		{"bad status", func(in *CourseInput) { in.Status = "live" }, "status"},
		{"missing start", func(in *CourseInput) { in.StartDate = time.Time{} }, "startDate"},
		{"end before start", func(in *CourseInput) { in.EndDate = in.StartDate.Add(-time.Hour) }, "endDate"},
		{"student instructor", func(in *CourseInput) { in.InstructorID = "pupil" }, "instructor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCourseInput("prof")
			tt.mutate(&in)
			_, err := f.courses.CreateCourse(ctx, in)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	courses, err := f.courses.ListCourses(ctx, models.CourseFilter{})
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestCreateCourseUnknownInstructor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.courses.CreateCourse(context.Background(), validCourseInput("nobody"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCoursesFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "prof", models.RoleInstructor)
	f.addCourse(t, "p1", "prof", models.CategoryProgramming, 5)
	f.addCourse(t, "d1", "prof", models.CategoryDesign, 5)
	f.addCourse(t, "p2", "prof", models.CategoryProgramming, 5)

	all, err := f.courses.ListCourses(ctx, models.CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	programming, err := f.courses.ListCourses(ctx, models.CourseFilter{Category: models.CategoryProgramming})
	require.NoError(t, err)
	require.Len(t, programming, 2)
	assert.Equal(t, "p1", programming[0].ID)
	assert.Equal(t, "p2", programming[1].ID)

	drafts, err := f.courses.ListCourses(ctx, models.CourseFilter{Status: models.StatusDraft})
	require.NoError(t, err)
	assert.Empty(t, drafts)

	_, err = f.courses.ListCourses(ctx, models.CourseFilter{Category: "Cooking"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateCourse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "prof", models.RoleInstructor)
	f.addUser(t, "A", models.RoleStudent)
	f.addUser(t, "B", models.RoleStudent)
	f.addCourse(t, "X", "prof", models.CategoryProgramming, 5)
	for _, sid := range []string{"A", "B"} {
		_, err := f.enrollments.Enroll(ctx, "X", sid)
		require.NoError(t, err)
	}

	in := validCourseInput("prof")
	in.Capacity = 1
	_, err := f.courses.UpdateCourse(ctx, "X", in)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 5, f.course(t, "X").Capacity)

	in.Capacity = 2
	in.Status = models.StatusPublished
	updated, err := f.courses.UpdateCourse(ctx, "X", in)
	require.NoError(t, err)
	assert.Equal(t, "Go for Services", updated.Title)
	assert.Equal(t, 2, updated.Capacity)
	assert.Equal(t, []string{"A", "B"}, updated.EnrolledStudents)

	stored := f.course(t, "X")
	assert.Equal(t, []string{"A", "B"}, stored.EnrolledStudents)
	assert.Equal(t, models.StatusPublished, stored.Status)

	_, err = f.courses.UpdateCourse(ctx, "missing", in)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCourseByIDNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.courses.GetCourseByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "course with ID missing not found")
}

func TestCourseInputDates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantStart time.Time
		wantEnd   time.Time
		badFields []string
	}{
		{
			name:      "date only",
			body:      `{"title":"Go","startDate":"2026-09-01","endDate":"2026-12-15"}`,
			wantStart: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, time.December, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "rfc3339",
			body:      `{"title":"Go","startDate":"2026-09-01T09:30:00+02:00","endDate":"2026-12-15T00:00:00Z"}`,
			wantStart: time.Date(2026, time.September, 1, 7, 30, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, time.December, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "omitted",
			body: `{"title":"Go"}`,
		},
		{
			name:      "malformed",
			body:      `{"title":"Go","startDate":"09/01/2026","endDate":"soon"}`,
			badFields: []string{"startDate", "endDate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in CourseInput
			err := json.Unmarshal([]byte(tt.body), &in)
			if len(tt.badFields) > 0 {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				for _, field := range tt.badFields {
					assert.Contains(t, verr.Fields, field)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Go", in.Title)
			assert.True(t, tt.wantStart.Equal(in.StartDate), in.StartDate)
			assert.True(t, tt.wantEnd.Equal(in.EndDate), in.EndDate)
		})
	}
}
