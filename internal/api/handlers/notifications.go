package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pharmstock/internal/core"
	"pharmstock/internal/notifications"
	"pharmstock/internal/types"
)

// --- Service Interfaces ---

// NotificationViews provides the read model and deletion for notifications.
// Mirrors the concrete db.NotificationRepository methods used here.
type NotificationViews interface {
	List(ctx context.Context) ([]*types.NotificationView, error)
	GetView(ctx context.Context, id string) (*types.NotificationView, error)
	Delete(ctx context.Context, id string) error
}

// NotificationEngine exposes the lifecycle operations of the inventory
// notification engine: creation scans, acknowledgement, reactivation, and
// retention cleanup.
type NotificationEngine interface {
	Reconcile(ctx context.Context, now time.Time) ([]*types.Notification, error)
	MarkRead(ctx context.Context, id string, actor types.Actor, now time.Time) (*types.Notification, error)
	Reactivate(ctx context.Context, now time.Time) (int, error)
	Cleanup(ctx context.Context, now time.Time) (notifications.CleanupResult, error)
}

// --- Handler ---

// NotificationHandler serves the notification read model and the manual
// lifecycle triggers. The scheduler drives the same engine operations on a
// timer; the POST endpoints exist so operators can force a pass.
type NotificationHandler struct {
	views    NotificationViews
	engine   NotificationEngine
	activity ActivityRecorder
	logger   *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(views NotificationViews, engine NotificationEngine, activity ActivityRecorder, l *slog.Logger) *NotificationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &NotificationHandler{
		views:    views,
		engine:   engine,
		activity: activity,
		logger:   l,
	}
}

// RegisterRoutes mounts the notification routes onto the provided router.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/check", h.Check)
		r.Post("/reactivate", h.Sweep)
		r.Post("/cleanup", h.Cleanup)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/read", h.MarkRead)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /v1/notifications. Returns every stored notification
// joined with its medicine snapshot, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.views.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: views})
}

// Get handles GET /v1/notifications/{id}.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := h.views.GetView(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: view})
}

// MarkRead handles POST /v1/notifications/{id}/read. The acknowledging user
// comes from the authenticated actor, never from the request body.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())
	id := chi.URLParam(r, "id")

	updated, err := h.engine.MarkRead(r.Context(), id, actor, time.Now().UTC())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityNotificationRead, "notification", id, nil)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: updated})
}

// Check handles POST /v1/notifications/check. Runs a full inventory scan and
// returns the notifications the pass created.
func (h *NotificationHandler) Check(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())

	created, err := h.engine.Reconcile(r.Context(), time.Now().UTC())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityNotificationCheckRun, "notification", "",
		map[string]any{"created": len(created)})

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: created})
}

// Sweep handles POST /v1/notifications/reactivate. Flips silenced
// notifications back to unread where their condition still holds.
func (h *NotificationHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())

	reactivated, err := h.engine.Reactivate(r.Context(), time.Now().UTC())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityNotificationSweepRun, "notification", "",
		map[string]any{"reactivated": reactivated})

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]int{"reactivated": reactivated},
	})
}

// Cleanup handles POST /v1/notifications/cleanup. Purges acknowledged
// notifications past the retention window and anything past the absolute TTL.
func (h *NotificationHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())

	result, err := h.engine.Cleanup(r.Context(), time.Now().UTC())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityNotificationPurgeRun, "notification", "",
		map[string]any{"purged": result.Total()})

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]int64{
			"read_purged":    result.ReadPurged,
			"expired_purged": result.ExpiredPurged,
		},
	})
}

// Delete handles DELETE /v1/notifications/{id}. Restricted to admins;
// pharmacists silence alerts by acknowledging them instead.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
			"only admins can delete notifications",
			nil,
		))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.views.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityNotificationDeleted, "notification", id, nil)

	w.WriteHeader(http.StatusNoContent)
}
