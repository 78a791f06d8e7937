// Package handlers contains the HTTP handler implementations for the
// PharmStock API. Each handler declares the narrow service interfaces it
// consumes so tests can substitute fakes without touching the database.
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

// AuthService defines the account operations used by the auth handler.
// Mirrors the concrete auth.Service methods relevant to this handler.
type AuthService interface {
	Register(ctx context.Context, fullName, email, password string, role types.UserRole) (*types.User, error)
	Login(ctx context.Context, email, password string) (*types.User, string, error)
}

// ActivityRecorder appends an entry to the activity log. Shared by every
// handler that mutates state.
type ActivityRecorder interface {
	Create(ctx context.Context, entry *types.ActivityLog) error
}

// --- Request/Response Models ---

// RegisterRequest is the request body for POST /v1/auth/register.
type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=admin pharmacist"`
}

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token alongside the account.
type LoginResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

// --- Handler ---

// AuthHandler manages account registration and login.
type AuthHandler struct {
	svc       AuthService
	activity  ActivityRecorder
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the provided dependencies.
func NewAuthHandler(svc AuthService, activity ActivityRecorder, v *core.Validator, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{
		svc:       svc,
		activity:  activity,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the auth routes onto the provided router. Both
// endpoints are public; the auth middleware exempts the /auth prefix.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
	})
}

// HandleRegister handles POST /v1/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req.FullName, req.Email, req.Password, types.UserRole(req.Role))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, types.Actor{ID: user.ID, Name: user.FullName, Role: user.Role},
		types.ActivityUserRegistered, "user", user.ID, nil)

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: user})
}

// HandleLogin handles POST /v1/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: LoginResponse{Token: token, User: user},
	})
}

// recordActivity appends an activity log entry. Errors are logged but not
// propagated to avoid failing the primary operation.
func recordActivity(ctx context.Context, logger *slog.Logger, recorder ActivityRecorder, actor types.Actor, action, entity, entityID string, details map[string]any) {
	if recorder == nil {
		return
	}

	entry := &types.ActivityLog{
		UserID:   actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Details:  details,
	}

	if err := recorder.Create(ctx, entry); err != nil {
		logger.WarnContext(ctx, "failed to record activity",
			"action", action,
			"entity", entity,
			"entity_id", entityID,
			"error", err,
		)
	}
}
