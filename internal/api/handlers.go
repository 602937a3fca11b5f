package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/feedwise/internal/checksum"
	"github.com/starford/feedwise/internal/feeding"
	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/schedule"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *feeding.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *feeding.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// ListProfiles handles GET /api/profiles.
//
//	@Summary		List profiles with their feeding plans
//	@Tags			profiles
//	@Produce		json
//	@Success		200	{object}	ProfileListResponse
//	@Security		BearerAuth
//	@Router			/profiles [get]
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.ListProfiles(r.Context())
	if err != nil {
		h.writeError(w, "list profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileListResponse{Profiles: cards, Total: len(cards)})
}

// GetProfile handles GET /api/profiles/{id}.
//
//	@Summary		Get a single profile
//	@Tags			profiles
//	@Produce		json
//	@Param			id	path		int	true	"Profile id"
//	@Success		200	{object}	ProfileCard
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id} [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}
	card, err := h.svc.GetProfile(r.Context(), id)
	if err != nil {
		h.writeError(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// CreateProfile handles POST /api/profiles.
//
//	@Summary		Create a profile and arm its reminders
//	@Tags			profiles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ProfileRequest	true	"Profile to create"
//	@Success		201		{object}	ProfileCard
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles [post]
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	card, err := h.svc.CreateProfile(r.Context(), req.profile(0))
	if err != nil {
		h.writeError(w, "create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// UpdateProfile handles PUT /api/profiles/{id}.
//
//	@Summary		Replace a profile and re-arm its reminders
//	@Tags			profiles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Profile id"
//	@Param			body	body		ProfileRequest	true	"Updated profile"
//	@Success		200		{object}	ProfileCard
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id} [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	card, err := h.svc.UpdateProfile(r.Context(), req.profile(id))
	if err != nil {
		h.writeError(w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// DeleteProfile handles DELETE /api/profiles/{id}.
//
//	@Summary		Delete a profile and cancel its reminders
//	@Tags			profiles
//	@Param			id	path	int	true	"Profile id"
//	@Success		204	"Profile deleted"
//	@Security		BearerAuth
//	@Router			/profiles/{id} [delete]
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProfile(r.Context(), id); err != nil {
		h.writeError(w, "delete profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRecommendation handles GET /api/profiles/{id}/recommendation.
//
//	@Summary		Get the feeding plan of a stored profile
//	@Tags			profiles
//	@Produce		json
//	@Param			id	path		int	true	"Profile id"
//	@Success		200	{object}	nutrition.Recommendation
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profiles/{id}/recommendation [get]
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Recommend(r.Context(), id)
	if err != nil {
		h.writeError(w, "recommend", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Calculate handles POST /api/recommendations.
//
//	@Summary		Compute a feeding plan without storing the profile
//	@Tags			recommendations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ProfileRequest	true	"Profile inputs; name is optional"
//	@Success		200		{object}	nutrition.Recommendation
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recommendations [post]
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.svc.Calculate(req.profile(0))
	if err != nil {
		h.writeError(w, "calculate", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Today handles GET /api/schedule/today.
//
//	@Summary		Today's meal timeline, pending meals first
//	@Tags			schedule
//	@Produce		json
//	@Success		200	{object}	ScheduleResponse
//	@Security		BearerAuth
//	@Router			/schedule/today [get]
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Today(r.Context())
	if err != nil {
		h.writeError(w, "today", err)
		return
	}
	pending := 0
	for _, it := range items {
		if it.Status == schedule.StatusPending {
			pending++
		}
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{Items: items, Pending: pending})
}

// Calendar handles GET /api/calendar.ics.
//
//	@Summary		iCalendar feed with one daily event per meal
//	@Tags			schedule
//	@Produce		text/calendar
//	@Param			If-None-Match	header	string	false	"ETag of a cached feed"
//	@Success		200	{string}	string	"VCALENDAR document"
//	@Success		304	"Not modified"
//	@Security		BearerAuth
//	@Router			/calendar.ics [get]
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Calendar(r.Context())
	if err != nil {
		h.writeError(w, "calendar", err)
		return
	}
	etag := checksum.ETag(data)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="feeding.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetNotifications handles GET /api/settings/notifications.
//
//	@Summary		Reminder switch and armed reminder counts
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	NotificationSettings
//	@Security		BearerAuth
//	@Router			/settings/notifications [get]
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	on, err := h.svc.NotificationsEnabled(r.Context())
	if err != nil {
		h.writeError(w, "get notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationSettings{Enabled: on, Reminders: h.svc.Reminders()})
}

// SetNotifications handles PUT /api/settings/notifications.
//
//	@Summary		Turn reminders on or off
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NotificationSettingsRequest	true	"Switch state"
//	@Success		200		{object}	NotificationSettings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/notifications [put]
func (h *Handler) SetNotifications(w http.ResponseWriter, r *http.Request) {
	var req NotificationSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("enabled is required"))
		return
	}
	if err := h.svc.SetNotificationsEnabled(r.Context(), *req.Enabled); err != nil {
		h.writeError(w, "set notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationSettings{Enabled: *req.Enabled, Reminders: h.svc.Reminders()})
}

// Export handles GET /api/export.
//
//	@Summary		Download every profile as an export document
//	@Tags			data
//	@Produce		json
//	@Success		200	{object}	models.Snapshot
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Export(r.Context())
	if err != nil {
		h.writeError(w, "export", err)
		return
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		h.writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+models.ExportFilename(snap.ExportDate)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import handles POST /api/import.
//
//	@Summary		Replace every profile with an export document
//	@Tags			data
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Snapshot	true	"Export document"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	n, err := h.svc.ImportJSON(r.Context(), data)
	if err != nil {
		h.writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: n})
}

// ListBackups handles GET /api/backups.
//
//	@Summary		List stored backups
//	@Tags			data
//	@Produce		json
//	@Success		200	{object}	BackupListResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups [get]
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Backups(r.Context())
	if err != nil {
		h.writeError(w, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, BackupListResponse{Backups: list})
}

// CreateBackup handles POST /api/backups.
//
//	@Summary		Write the current export to the backup directory
//	@Tags			data
//	@Produce		json
//	@Success		201	{object}	models.FileMeta
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups [post]
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	meta, err := h.svc.Backup(r.Context())
	if err != nil {
		h.writeError(w, "backup", err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

// GetBackup handles GET /api/backups/{name}.
//
//	@Summary		Download a stored backup
//	@Tags			data
//	@Produce		json
//	@Param			name	path		string	true	"Backup file name"
//	@Success		200		{object}	models.Snapshot
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backups/{name} [get]
func (h *Handler) GetBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.svc.BackupData(r.Context(), name)
	if err != nil {
		h.writeError(w, "read backup", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("ETag", checksum.ETag(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
