package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/feedwise/internal/feeding"
)

// Streams are the optional push endpoints mounted next to the REST routes.
type Streams struct {
	// Events serves GET /events (server-sent events).
	Events http.Handler
	// Socket serves GET /ws (WebSocket).
	Socket http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced; the push
// streams sit behind the same middleware.
func NewRouter(svc *feeding.Service, authEnabled bool, token string, streams Streams, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Profiles CRUD.
	r.Get("/profiles", h.ListProfiles)
	r.Post("/profiles", h.CreateProfile)
	r.Get("/profiles/{id}", h.GetProfile)
	r.Put("/profiles/{id}", h.UpdateProfile)
	r.Delete("/profiles/{id}", h.DeleteProfile)
	r.Get("/profiles/{id}/recommendation", h.GetRecommendation)

	// Ad hoc calculation.
	r.Post("/recommendations", h.Calculate)

	// Derived views.
	r.Get("/schedule/today", h.Today)
	r.Get("/calendar.ics", h.Calendar)

	// Reminder switch.
	r.Get("/settings/notifications", h.GetNotifications)
	r.Put("/settings/notifications", h.SetNotifications)

	// Data transfer.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Get("/backups", h.ListBackups)
	r.Post("/backups", h.CreateBackup)
	r.Get("/backups/{name}", h.GetBackup)

	if streams.Events != nil {
		r.Get("/events", streams.Events.ServeHTTP)
	}
	if streams.Socket != nil {
		r.Get("/ws", streams.Socket.ServeHTTP)
	}

	return r
}
