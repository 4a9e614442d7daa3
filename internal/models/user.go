package models

import (
	"slices"
	"time"
)

// Role is the access level of a user account.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Roles lists every accepted role.
var Roles = []Role{RoleStudent, RoleInstructor, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// CanTeach reports whether a user with this role may own a course.
func (r Role) CanTeach() bool {
	return r == RoleInstructor || r == RoleAdmin
}

// User represents an account in the LMS.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            Role      `json:"role"`
	EnrolledCourses []string  `json:"enrolledCourses"` // projected from the enrollments table
	PasswordHash    string    `json:"-"`               // Never expose this to the client
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	LastLogin       time.Time `json:"lastLogin"`
}

// IsEnrolledIn reports whether the user's enrolled-course set contains courseID.
func (u User) IsEnrolledIn(courseID string) bool {
	return slices.Contains(u.EnrolledCourses, courseID)
}
