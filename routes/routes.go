package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rowerg/live-platform/handlers"
	"github.com/rowerg/live-platform/middleware"
	"github.com/rowerg/live-platform/models"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	eventHandler *handlers.EventHandler,
	resultHandler *handlers.ResultHandler,
	liveHandler *handlers.LiveHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate([]byte(jwtSecret))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/events", func(r chi.Router) {
		r.Get("/", eventHandler.ListEvents)
		r.Get("/{eventID}", eventHandler.GetEventByID)
		r.Get("/{eventID}/results", resultHandler.ListByEvent)
		r.Get("/{eventID}/leaderboard", resultHandler.GetLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize(models.RoleOrganizer))

			r.Post("/", eventHandler.CreateEvent)
			r.Put("/{eventID}", eventHandler.UpdateEvent)
			r.Delete("/{eventID}", eventHandler.DeleteEvent)
			r.Post("/{eventID}/banner", eventHandler.UploadBanner)
		})
	})

	router.Route("/results", func(r chi.Router) {
		r.Get("/sessions/{sessionID}", resultHandler.ListBySession)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize(models.RoleOrganizer))

			r.Post("/", resultHandler.ArchiveScores)
		})
	})

	// The live channel authenticates in-protocol: viewers are anonymous,
	// telemetry sources present the shared secret after connect, and admin
	// consoles present their organizer JWT to unlock control commands.
	router.Get("/ws", liveHandler.ServeWs)

	router.Handle("/metrics", promhttp.Handler())
}
