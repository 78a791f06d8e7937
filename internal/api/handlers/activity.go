package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pharmstock/internal/core"
	"pharmstock/internal/types"
)

// --- Service Interfaces ---

// ActivityRepo defines the data access contract for the activity log views.
// Mirrors the concrete db.ActivityRepository methods used by this handler.
type ActivityRepo interface {
	List(ctx context.Context, userID string, limit int) ([]*types.ActivityLog, error)
	Create(ctx context.Context, entry *types.ActivityLog) error
	Delete(ctx context.Context, id int64) error
}

// defaultActivityLimit caps unfiltered activity listings.
const defaultActivityLimit = 100

// --- Request/Response Models ---

// CreateActivityRequest is the request body for POST /v1/activity. The acting
// user comes from the authenticated context, not the body.
type CreateActivityRequest struct {
	Action   string         `json:"action" validate:"required,min=2,max=80"`
	Entity   string         `json:"entity" validate:"required,min=2,max=80"`
	EntityID string         `json:"entity_id" validate:"omitempty,max=80"`
	Details  map[string]any `json:"details" validate:"omitempty"`
}

// --- Handler ---

// ActivityHandler serves the audit trail. Admins see all entries; other
// roles see only their own.
type ActivityHandler struct {
	repo      ActivityRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(repo ActivityRepo, v *core.Validator, l *slog.Logger) *ActivityHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ActivityHandler{
		repo:      repo,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the activity routes onto the provided router.
func (h *ActivityHandler) RegisterRoutes(r chi.Router) {
	r.Route("/activity", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /v1/activity. Non-admin actors are scoped to their own
// entries regardless of query parameters.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return
	}

	limit := defaultActivityLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 1000 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				"limit must be a number between 1 and 1000",
				nil,
			))
			return
		}
		limit = parsed
	}

	userID := actor.ID
	if actor.IsAdmin() {
		// Admins see everything by default, or one user's trail on request.
		userID = r.URL.Query().Get("user_id")
	}

	entries, err := h.repo.List(r.Context(), userID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: entries})
}

// Create handles POST /v1/activity. The entry is attributed to the
// authenticated actor.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return
	}

	var req CreateActivityRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	entry := &types.ActivityLog{
		UserID:   actor.ID,
		Action:   req.Action,
		Entity:   req.Entity,
		EntityID: req.EntityID,
		Details:  req.Details,
	}
	if err := h.repo.Create(r.Context(), entry); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: entry})
}

// Delete handles DELETE /v1/activity/{id}. Admin-only.
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return
	}
	if !actor.IsAdmin() {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionRole,
			"only admins can delete activity entries",
			nil,
		))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidField,
			"activity ID must be an integer",
			nil,
		))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
