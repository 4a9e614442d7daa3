package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, CategoryMarketing.Valid())
	assert.False(t, Category("programming").Valid(), "categories are case-sensitive")
	assert.True(t, StatusArchived.Valid())
	assert.False(t, CourseStatus("").Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("guest").Valid())

	assert.True(t, RoleAdmin.CanTeach())
	assert.True(t, RoleInstructor.CanTeach())
	assert.False(t, RoleStudent.CanTeach())
}

func TestCourseRoster(t *testing.T) {
	t.Parallel()

	c := Course{Capacity: 2, EnrolledStudents: []string{"a"}}
	assert.True(t, c.HasStudent("a"))
	assert.False(t, c.HasStudent("b"))
	assert.False(t, c.IsFull())

	c.EnrolledStudents = append(c.EnrolledStudents, "b")
	assert.True(t, c.IsFull())

	u := User{EnrolledCourses: []string{"x"}}
	assert.True(t, u.IsEnrolledIn("x"))
	assert.False(t, u.IsEnrolledIn("y"))
}

func TestCourseFilterMatches(t *testing.T) {
	t.Parallel()

	c := Course{Category: CategoryDesign, Status: StatusPublished}
	assert.True(t, CourseFilter{}.Matches(c))
	assert.True(t, CourseFilter{Category: CategoryDesign}.Matches(c))
	assert.False(t, CourseFilter{Category: CategoryOther}.Matches(c))
	assert.True(t, CourseFilter{Category: CategoryDesign, Status: StatusPublished}.Matches(c))
	assert.False(t, CourseFilter{Status: StatusDraft}.Matches(c))
}
