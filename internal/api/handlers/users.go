package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pharmstock/internal/core"
	"pharmstock/internal/types"
)

// --- Service Interfaces ---

// UserRepo defines the data access contract for user administration.
// Mirrors the concrete db.UserRepository methods used by this handler.
type UserRepo interface {
	List(ctx context.Context) ([]*types.User, error)
	GetByID(ctx context.Context, id string) (*types.User, error)
	Update(ctx context.Context, u *types.User) error
	Delete(ctx context.Context, id string) error
}

// --- Request Models ---

// UpdateUserRequest is the request body for PUT /v1/users/{id}.
type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=admin pharmacist"`
}

// --- Handler ---

// UserHandler manages staff accounts. Every route is admin-only, enforced
// per-request so the check is covered by handler tests.
type UserHandler struct {
	repo      UserRepo
	activity  ActivityRecorder
	validator *core.Validator
	logger    *slog.Logger
}

// NewUserHandler creates a new UserHandler with the provided dependencies.
func NewUserHandler(repo UserRepo, activity ActivityRecorder, v *core.Validator, l *slog.Logger) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UserHandler{
		repo:      repo,
		activity:  activity,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the user administration routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// requireAdmin resolves the actor and enforces the admin role. Returns the
// actor and false when a response has already been written.
func (h *UserHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return types.Actor{}, false
	}
	if !actor.IsAdmin() {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionRole,
			"only admins can manage user accounts",
			nil,
		))
		return types.Actor{}, false
	}
	return actor, true
}

// List handles GET /v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	users, err := h.repo.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: users})
}

// Get handles GET /v1/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	user, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: user})
}

// Update handles PUT /v1/users/{id}. Password changes go through the auth
// endpoints; this route only edits profile fields and the role.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	targetID := chi.URLParam(r, "id")

	var req UpdateUserRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := h.repo.GetByID(r.Context(), targetID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	// An admin demoting themselves could lock everyone out.
	if actor.ID == targetID && types.UserRole(req.Role) != types.RoleAdmin {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionRole,
			"admins cannot demote their own account",
			nil,
		))
		return
	}

	user.FullName = req.FullName
	user.Email = req.Email
	user.Role = types.UserRole(req.Role)

	if err := h.repo.Update(r.Context(), user); err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityUserUpdated, "user", targetID, nil)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: user})
}

// Delete handles DELETE /v1/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	targetID := chi.URLParam(r, "id")

	if actor.ID == targetID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionRole,
			"admins cannot delete their own account",
			nil,
		))
		return
	}

	if err := h.repo.Delete(r.Context(), targetID); err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityUserDeleted, "user", targetID, nil)

	w.WriteHeader(http.StatusNoContent)
}
