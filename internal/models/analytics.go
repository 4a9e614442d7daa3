package models

// RoleCount is one bucket of the user role distribution.
type RoleCount struct {
	Role  Role `json:"role"`
	Count int  `json:"count"`
}

// UserAnalytics is the result of grouping all users by role.
type UserAnalytics struct {
	TotalUsers       int         `json:"totalUsers"`
	RoleDistribution []RoleCount `json:"roleDistribution"`
}

// CategoryStats is one bucket of the course category distribution.
type CategoryStats struct {
	Category        Category `json:"category"`
	Count           int      `json:"count"`
	TotalEnrolled   int      `json:"totalEnrolled"`
	AverageCapacity float64  `json:"averageCapacity"`
	EnrollmentRate  float64  `json:"enrollmentRate"`
}

// CourseAnalytics is the result of grouping all courses by category.
type CourseAnalytics struct {
	TotalCourses         int             `json:"totalCourses"`
	CategoryDistribution []CategoryStats `json:"categoryDistribution"`
}
