package models

import (
	"slices"
	"time"
)

// Category groups courses for browsing and analytics.
type Category string

const (
	CategoryProgramming Category = "Programming"
	CategoryDesign      Category = "Design"
	CategoryBusiness    Category = "Business"
	CategoryMarketing   Category = "Marketing"
	CategoryOther       Category = "Other"
)

// Categories lists every accepted course category.
var Categories = []Category{CategoryProgramming, CategoryDesign, CategoryBusiness, CategoryMarketing, CategoryOther}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// CourseStatus is the publication state of a course.
type CourseStatus string

const (
	StatusDraft     CourseStatus = "draft"
	StatusPublished CourseStatus = "published"
	StatusArchived  CourseStatus = "archived"
)

// CourseStatuses lists every accepted course status.
var CourseStatuses = []CourseStatus{StatusDraft, StatusPublished, StatusArchived}

// Valid reports whether s is one of the known statuses.
func (s CourseStatus) Valid() bool {
	for _, known := range CourseStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Course represents a single course offering.
type Course struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Category         Category     `json:"category"`
	InstructorID     string       `json:"instructor"`
	Capacity         int          `json:"capacity"`
	EnrolledStudents []string     `json:"enrolledStudents"` // roster in enrollment order
	StartDate        time.Time    `json:"startDate"`
	EndDate          time.Time    `json:"endDate"`
	Status           CourseStatus `json:"status"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// HasStudent reports whether studentID is on the roster.
func (c Course) HasStudent(studentID string) bool {
	return slices.Contains(c.EnrolledStudents, studentID)
}

// IsFull reports whether the roster has reached capacity.
func (c Course) IsFull() bool {
	return len(c.EnrolledStudents) >= c.Capacity
}

// CourseFilter narrows a course listing. Zero values match everything.
type CourseFilter struct {
	Category Category
	Status   CourseStatus
}

// Matches reports whether c passes the filter.
func (f CourseFilter) Matches(c Course) bool {
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}
