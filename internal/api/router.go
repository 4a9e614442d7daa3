package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/lms-be/internal/api/handlers"
	"github.com/isdelr/lms-be/internal/auth"
	"github.com/isdelr/lms-be/internal/models"
	"github.com/isdelr/lms-be/internal/services"
	"github.com/isdelr/lms-be/internal/websocket"
)

// Deps bundles what the router needs to build its handlers.
type Deps struct {
	Hub         *websocket.Hub
	Users       services.UserServiceProvider
	Courses     services.CourseServiceProvider
	Enrollments services.EnrollmentServiceProvider
	Analytics   services.AnalyticsServiceProvider
	Events      services.EventServiceProvider
	Tokens      *auth.TokenIssuer

	TokenTTL       time.Duration
	SecureCookies  bool
	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(NewRateLimiter(d.RateLimit, d.RateWindow).Handler)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(d.Users, d.Enrollments, d.Tokens, d.TokenTTL, d.SecureCookies)
	courseHandler := handlers.NewCourseHandler(d.Courses, d.Enrollments)
	analyticsHandler := handlers.NewAnalyticsHandler(d.Analytics)
	eventHandler := handlers.NewEventHandler(d.Events)
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.AllowedOrigins)

	staff := auth.RequireRole(models.RoleAdmin, models.RoleInstructor)
	adminOnly := auth.RequireRole(models.RoleAdmin)

	r.Get("/", handlers.Root)
	r.Get("/api/health", handlers.Health)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", userHandler.Register)
		r.Post("/auth/login", userHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(d.Tokens))

			// WebSocket connection endpoints
			r.Get("/ws", wsHandler.Serve)
			r.Get("/ws/courses/{id}", wsHandler.Serve)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", userHandler.GetMe)
				r.With(adminOnly).Get("/", userHandler.GetAll)
				r.With(adminOnly).Get("/{id}", userHandler.Get)
				r.With(adminOnly).Put("/{id}", userHandler.Update)
				r.With(adminOnly).Delete("/{id}", userHandler.Delete)
			})

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", courseHandler.GetAll)
				r.With(staff).Post("/", courseHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", courseHandler.Get)
					r.With(staff).Put("/", courseHandler.Update)
					r.With(adminOnly).Delete("/", courseHandler.Delete)
					r.With(staff).Post("/enroll/{studentId}", courseHandler.Enroll)
					r.With(staff).Delete("/enroll/{studentId}", courseHandler.Unenroll)
				})
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Use(staff)
				r.Get("/user-count", analyticsHandler.UserCount)
				r.Get("/course-count", analyticsHandler.CourseCount)
			})

			r.With(adminOnly).Get("/events", eventHandler.GetRecent)
		})
	})

	return r
}
