package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/tobioye/ballotgate/internal/auth"
	"github.com/tobioye/ballotgate/internal/handlers"
	"github.com/tobioye/ballotgate/internal/middleware"
	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/repositories"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	voteHandler *handlers.VoteHandler,
	electionHandler *handlers.ElectionHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
	studentRepo *repositories.StudentRepository,
	rateLimits middleware.RateLimitConfig,
) {
	// Auth endpoints carry their own tighter per-IP cap on top of the
	// general limit applied in main.
	router.With(middleware.AuthRateLimit(rateLimits)).Post("/auth/login", authHandler.Login)
	router.With(middleware.AuthRateLimit(rateLimits)).Post("/auth/refresh", authHandler.Refresh)

	// Election metadata is public
	router.Get("/elections/active", electionHandler.Active)
	router.Get("/elections/{electionID}/positions", electionHandler.Positions)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		// Results enforce their own embargo; admins may read them before the
		// election closes.
		r.Get("/elections/{electionID}/results", electionHandler.Results)
		r.Get("/positions/{positionID}/candidates", electionHandler.Candidates)
		r.Post("/votes", voteHandler.Cast)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(studentRepo, models.RoleAdmin))
			r.Get("/admin/ip-restrictions", adminHandler.ListBlockedIPs)
			r.Post("/admin/ip-restrictions/block", adminHandler.BlockIP)
			r.Post("/admin/ip-restrictions/unblock", adminHandler.UnblockIP)
			r.Get("/admin/ip-violators", adminHandler.IPViolators)
			r.Post("/admin/students/{studentID}/reactivate", adminHandler.ReactivateStudent)
			r.Post("/admin/students/{studentID}/unlock", adminHandler.UnlockStudent)
		})
	})
}
