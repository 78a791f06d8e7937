package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pharmstock/internal/core"
	"pharmstock/internal/types"
)

// --- Service Interfaces ---

// MedicineRepo defines the data access contract for medicine operations.
// Mirrors the concrete db.MedicineRepository methods used by this handler.
type MedicineRepo interface {
	List(ctx context.Context) ([]*types.Medicine, error)
	GetByID(ctx context.Context, id string) (*types.Medicine, error)
	Create(ctx context.Context, m *types.Medicine) error
	Update(ctx context.Context, m *types.Medicine) error
	Delete(ctx context.Context, id string) error
}

// InventoryChecker triggers a notification reconciliation pass after a
// medicine mutation so new alerts surface without waiting for the scheduler.
type InventoryChecker interface {
	Reconcile(ctx context.Context, now time.Time) ([]*types.Notification, error)
}

// --- Request Models ---

// MedicineRequest is the request body for POST /v1/medicines and
// PUT /v1/medicines/{id}.
type MedicineRequest struct {
	Name          string     `json:"name" validate:"required,min=1,max=200"`
	Category      string     `json:"category" validate:"required,min=1,max=100"`
	Price         float64    `json:"price" validate:"gte=0"`
	Dosage        string     `json:"dosage" validate:"max=100"`
	Manufacturer  string     `json:"manufacturer" validate:"max=200"`
	Quantity      int        `json:"quantity" validate:"gte=0"`
	StockQuantity int        `json:"stock_quantity" validate:"gte=0"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
}

// --- Handler ---

// MedicineHandler manages the medicine inventory CRUD surface.
type MedicineHandler struct {
	repo      MedicineRepo
	checker   InventoryChecker
	activity  ActivityRecorder
	validator *core.Validator
	logger    *slog.Logger
}

// NewMedicineHandler creates a new MedicineHandler with the provided
// dependencies. checker and activity may be nil.
func NewMedicineHandler(repo MedicineRepo, checker InventoryChecker, activity ActivityRecorder, v *core.Validator, l *slog.Logger) *MedicineHandler {
	if l == nil {
		l = slog.Default()
	}
	return &MedicineHandler{
		repo:      repo,
		checker:   checker,
		activity:  activity,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the medicine routes onto the provided router.
func (h *MedicineHandler) RegisterRoutes(r chi.Router) {
	r.Route("/medicines", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// List handles GET /v1/medicines.
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.repo.List(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: medicines})
}

// Get handles GET /v1/medicines/{id}.
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	medicine, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: medicine})
}

// Create handles POST /v1/medicines.
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())

	var req MedicineRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	medicine := &types.Medicine{
		ID:            "med_" + uuid.NewString(),
		Name:          req.Name,
		Category:      req.Category,
		Price:         req.Price,
		Dosage:        req.Dosage,
		Manufacturer:  req.Manufacturer,
		Quantity:      req.Quantity,
		StockQuantity: req.StockQuantity,
		ExpiryDate:    req.ExpiryDate,
	}

	if err := h.repo.Create(r.Context(), medicine); err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityMedicineCreated, "medicine", medicine.ID,
		map[string]any{"name": medicine.Name})

	h.reconcileAfterMutation(r.Context())

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: medicine})
}

// Update handles PUT /v1/medicines/{id}. The full record is replaced.
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())
	id := chi.URLParam(r, "id")

	var req MedicineRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	medicine, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	medicine.Name = req.Name
	medicine.Category = req.Category
	medicine.Price = req.Price
	medicine.Dosage = req.Dosage
	medicine.Manufacturer = req.Manufacturer
	medicine.Quantity = req.Quantity
	medicine.StockQuantity = req.StockQuantity
	medicine.ExpiryDate = req.ExpiryDate

	if err := h.repo.Update(r.Context(), medicine); err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityMedicineUpdated, "medicine", medicine.ID,
		map[string]any{"name": medicine.Name})

	h.reconcileAfterMutation(r.Context())

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: medicine})
}

// Delete handles DELETE /v1/medicines/{id}.
func (h *MedicineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := types.GetActor(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.repo.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	recordActivity(r.Context(), h.logger, h.activity, actor,
		types.ActivityMedicineDeleted, "medicine", id, nil)

	w.WriteHeader(http.StatusNoContent)
}

// reconcileAfterMutation runs a notification check so alerts raised by the
// mutation appear immediately. Failures are logged and never surfaced to the
// caller; the scheduler retries on its next tick anyway.
func (h *MedicineHandler) reconcileAfterMutation(ctx context.Context) {
	if h.checker == nil {
		return
	}

	if _, err := h.checker.Reconcile(ctx, time.Now().UTC()); err != nil {
		h.logger.WarnContext(ctx, "post-mutation notification check failed",
			"error", err,
		)
	}
}
