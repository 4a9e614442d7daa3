package services

import (
	"context"
	"math"
	"sort"

	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/rs/zerolog/log"
)

// AnalyticsServiceProvider defines the read-only aggregate reports.
type AnalyticsServiceProvider interface {
	UserRoleDistribution(ctx context.Context) (models.UserAnalytics, error)
	CourseCategoryDistribution(ctx context.Context) (models.CourseAnalytics, error)
}

// AnalyticsService computes reports over the full user and course
// collections on every call.
type AnalyticsService struct {
	store storage.Store
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(store storage.Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// UserRoleDistribution groups all users by role.
func (s *AnalyticsService) UserRoleDistribution(ctx context.Context) (models.UserAnalytics, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return models.UserAnalytics{}, classify("list users", err)
	}
	result := RoleDistribution(users)
	log.Info().Int("total_users", result.TotalUsers).Msg("User analytics generated")
	return result, nil
}

// CourseCategoryDistribution groups all courses by category.
func (s *AnalyticsService) CourseCategoryDistribution(ctx context.Context) (models.CourseAnalytics, error) {
	courses, err := s.store.ListCourses(ctx)
	if err != nil {
		return models.CourseAnalytics{}, classify("list courses", err)
	}
	result := CategoryDistribution(courses)
	log.Info().Int("total_courses", result.TotalCourses).Msg("Course analytics generated")
	return result, nil
}

// RoleDistribution counts users per role, largest group first. Equal counts
// are ordered by role name.
func RoleDistribution(users []models.User) models.UserAnalytics {
	counts := map[models.Role]int{}
	for _, u := range users {
		counts[u.Role]++
	}
	dist := make([]models.RoleCount, 0, len(counts))
	for role, n := range counts {
		dist = append(dist, models.RoleCount{Role: role, Count: n})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Role < dist[j].Role
	})
	return models.UserAnalytics{TotalUsers: len(users), RoleDistribution: dist}
}

// CategoryDistribution computes per-category course statistics, largest
// group first. Equal counts are ordered by category name.
//
// enrollmentRate is totalEnrolled / (count * averageCapacity) * 100 using the
// unrounded average. With mixed capacities this differs from
// totalEnrolled / totalCapacity. A zero denominator yields a rate of 0.
func CategoryDistribution(courses []models.Course) models.CourseAnalytics {
	type acc struct {
		count, enrolled, capacity int
	}
	groups := map[models.Category]*acc{}
	for _, c := range courses {
		g, ok := groups[c.Category]
		if !ok {
			g = &acc{}
			groups[c.Category] = g
		}
		g.count++
		g.enrolled += len(c.EnrolledStudents)
		g.capacity += c.Capacity
	}

	dist := make([]models.CategoryStats, 0, len(groups))
	for category, g := range groups {
		avg := float64(g.capacity) / float64(g.count)
		rate := 0.0
		if denom := float64(g.count) * avg; denom != 0 {
			rate = float64(g.enrolled) / denom * 100
		}
		dist = append(dist, models.CategoryStats{
			Category:        category,
			Count:           g.count,
			TotalEnrolled:   g.enrolled,
			AverageCapacity: round2(avg),
			EnrollmentRate:  round2(rate),
		})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Category < dist[j].Category
	})
	return models.CourseAnalytics{TotalCourses: len(courses), CategoryDistribution: dist}
}

// round2 rounds half to even at two decimal places.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
