package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/projectdesk/internal/api/auth"
	"github.com/good-yellow-bee/projectdesk/internal/api/calendar"
	"github.com/good-yellow-bee/projectdesk/internal/api/chats"
	"github.com/good-yellow-bee/projectdesk/internal/api/explore"
	"github.com/good-yellow-bee/projectdesk/internal/api/files"
	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/api/projects"
	"github.com/good-yellow-bee/projectdesk/internal/api/tasks"
	"github.com/good-yellow-bee/projectdesk/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	svc := s.services

	authHandler := auth.NewHandler(svc.Accounts, s.jwt, s.tokens, s.lockout)
	userHandler := users.NewHandler(svc.Accounts)
	projectHandler := projects.NewHandler(svc.Projects, s.config.PublicListing)
	fileHandler := files.NewHandler(svc.Files, s.config.MaxUploadBytes)
	taskHandler := tasks.NewHandler(svc.Tasks)
	chatHandler := chats.NewHandler(svc.Chat, s.deps.Hub, s.config.Chat)
	exploreHandler := explore.NewHandler(svc.Explore)
	calendarHandler := calendar.NewHandler(svc.Calendar)

	requireAuth := middleware.JWTAuth(s.jwt)
	perUser := middleware.RateLimitByUser(s.userLimiter)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)
	r.Get("/health/version", s.healthHandler.Version)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(s.ipLimiter))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
				r.Post("/logout", authHandler.Logout)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", userHandler.Me)
				r.Put("/password", userHandler.ChangePassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth, perUser, middleware.RequireAdmin)
			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Get("/{id}", userHandler.GetByID)
			r.Put("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
		})

		r.Route("/projects", func(r chi.Router) {
			// Anonymous listing is decided by the handler.
			r.With(middleware.OptionalJWTAuth(s.jwt)).Get("/", projectHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, perUser)
				r.Post("/", projectHandler.Create)
				r.With(middleware.RequireAdmin).Put("/", projectHandler.SetPosted)
				r.With(middleware.RequireAdmin).Get("/admin", projectHandler.ListAll)

				r.Put("/tasks/{taskId}", taskHandler.Update)
				r.Delete("/tasks/{taskId}", taskHandler.Delete)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(middleware.ProjectIDParam("id"))
					r.Get("/", projectHandler.Get)
					r.Put("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireAdmin)
						r.Get("/admin", projectHandler.Get)
						r.Put("/admin", projectHandler.AdminUpdate)
					})

					r.Post("/files", fileHandler.Upload)
					r.Get("/files", fileHandler.List)
					r.Delete("/files", fileHandler.Delete)
					r.Get("/files/{filename}", fileHandler.Download)

					r.Get("/tasks", taskHandler.List)
					r.Post("/tasks", taskHandler.Create)
				})
			})
		})

		r.Route("/chats/{projectId}", func(r chi.Router) {
			r.Use(middleware.ProjectIDParam("projectId"))
			r.With(requireAuth, perUser).Get("/", chatHandler.History)
			r.With(requireAuth, perUser).Post("/", chatHandler.Post)
			// EventSource cannot set headers, so the stream also takes ?token=.
			r.With(middleware.WebSocketAuth(s.jwt)).Get("/stream", chatHandler.Stream)
		})
		r.With(middleware.WebSocketAuth(s.jwt)).Get("/ws", chatHandler.Socket)

		r.Route("/explore", func(r chi.Router) {
			r.Get("/", exploreHandler.List)
			r.With(requireAuth, perUser, middleware.ProjectIDParam("id")).Put("/{id}", exploreHandler.SetNeedMembers)
		})

		r.With(requireAuth, perUser).Get("/calendar", calendarHandler.Get)
	})

	return r
}
