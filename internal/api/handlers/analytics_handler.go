package handlers

import (
	"net/http"

	"github.com/isdelr/lms-be/internal/services"
)

// AnalyticsHandler serves the dashboard's aggregate reports.
type AnalyticsHandler struct {
	service services.AnalyticsServiceProvider
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(service services.AnalyticsServiceProvider) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// UserCount returns the user role distribution.
func (h *AnalyticsHandler) UserCount(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.UserRoleDistribution(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CourseCount returns the course category distribution.
func (h *AnalyticsHandler) CourseCount(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CourseCategoryDistribution(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
