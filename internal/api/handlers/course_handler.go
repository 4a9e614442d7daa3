package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/lms-be/internal/auth"
	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/services"
)

// CourseHandler handles HTTP requests related to courses and enrollment.
type CourseHandler struct {
	courses     services.CourseServiceProvider
	enrollments services.EnrollmentServiceProvider
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courses services.CourseServiceProvider, enrollments services.EnrollmentServiceProvider) *CourseHandler {
	return &CourseHandler{courses: courses, enrollments: enrollments}
}

// GetAll handles the request to list courses, optionally filtered by
// ?category= and ?status=.
func (h *CourseHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	filter := models.CourseFilter{
		Category: models.Category(r.URL.Query().Get("category")),
		Status:   models.CourseStatus(r.URL.Query().Get("status")),
	}
	courses, err := h.courses.ListCourses(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// Get handles the request to get a single course by its ID.
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.GetCourseByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// Create handles the request to create a new course. When no instructor is
// given the caller becomes the instructor.
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CourseInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}
	if input.InstructorID == "" {
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
			input.InstructorID = claims.UserID
		}
	}

	course, err := h.courses.CreateCourse(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

// Update handles the request to edit an existing course.
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input services.CourseInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeDecodeError(w, err)
		return
	}

	course, err := h.courses.UpdateCourse(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// Delete handles the request to delete a course with an empty roster.
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.enrollments.DeleteCourse(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Enroll handles adding a student to a course roster.
func (h *CourseHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	courseID, studentID := chi.URLParam(r, "id"), chi.URLParam(r, "studentId")
	course, err := h.enrollments.Enroll(r.Context(), courseID, studentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Student enrolled successfully",
		"course":  course,
	})
}

// Unenroll handles removing a student from a course roster.
func (h *CourseHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	courseID, studentID := chi.URLParam(r, "id"), chi.URLParam(r, "studentId")
	course, err := h.enrollments.Unenroll(r.Context(), courseID, studentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Student unenrolled successfully",
		"course":  course,
	})
}
