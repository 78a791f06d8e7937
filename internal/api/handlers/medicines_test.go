package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/types"
)

// =============================================================================
// Mock Implementations for Medicine Handler
// =============================================================================

type mockMedicineRepo struct {
	listFn    func(ctx context.Context) ([]*types.Medicine, error)
	getByIDFn func(ctx context.Context, id string) (*types.Medicine, error)
	createFn  func(ctx context.Context, m *types.Medicine) error
	updateFn  func(ctx context.Context, m *types.Medicine) error
	deleteFn  func(ctx context.Context, id string) error

	created *types.Medicine
	updated *types.Medicine
}

func (m *mockMedicineRepo) List(ctx context.Context) ([]*types.Medicine, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockMedicineRepo) GetByID(ctx context.Context, id string) (*types.Medicine, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundMedicine, "medicine not found", nil)
}

func (m *mockMedicineRepo) Create(ctx context.Context, med *types.Medicine) error {
	m.created = med
	if m.createFn != nil {
		return m.createFn(ctx, med)
	}
	return nil
}

func (m *mockMedicineRepo) Update(ctx context.Context, med *types.Medicine) error {
	m.updated = med
	if m.updateFn != nil {
		return m.updateFn(ctx, med)
	}
	return nil
}

func (m *mockMedicineRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockInventoryChecker struct {
	reconcileFn func(ctx context.Context, now time.Time) ([]*types.Notification, error)
	calls       int
}

func (m *mockInventoryChecker) Reconcile(ctx context.Context, now time.Time) ([]*types.Notification, error) {
	m.calls++
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx, now)
	}
	return nil, nil
}

func newTestMedicineHandler() (*MedicineHandler, *mockMedicineRepo, *mockInventoryChecker, *mockActivityRecorder) {
	repo := &mockMedicineRepo{}
	checker := &mockInventoryChecker{}
	activity := &mockActivityRecorder{}
	h := NewMedicineHandler(repo, checker, activity, testValidator(), testLogger())
	return h, repo, checker, activity
}

// =============================================================================
// Medicine Handler Tests
// =============================================================================

func TestMedicineHandler_List(t *testing.T) {
	h, repo, _, _ := newTestMedicineHandler()
	repo.listFn = func(ctx context.Context) ([]*types.Medicine, error) {
		return []*types.Medicine{
			{ID: "med_1", Name: "Aspirin"},
			{ID: "med_2", Name: "Ibuprofen"},
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/medicines", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.Medicine `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Aspirin", resp.Data[0].Name)
}

func TestMedicineHandler_Get_NotFound(t *testing.T) {
	h, _, _, _ := newTestMedicineHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/medicines/med_missing", nil)
	req = withURLParam(req, "id", "med_missing")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMedicineHandler_Create_Success(t *testing.T) {
	h, repo, checker, activity := newTestMedicineHandler()

	expiry := time.Now().UTC().Add(60 * 24 * time.Hour).Truncate(time.Second)
	body := jsonBody(t, MedicineRequest{
		Name:          "Amoxicillin",
		Category:      "antibiotic",
		Price:         12.5,
		StockQuantity: 80,
		ExpiryDate:    &expiry,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/medicines", body)
	req = req.WithContext(actorContext("user_1", types.RolePharmacist))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, repo.created)
	assert.NotEmpty(t, repo.created.ID)
	assert.Equal(t, "Amoxicillin", repo.created.Name)

	// Mutation triggers an immediate notification check.
	assert.Equal(t, 1, checker.calls)

	require.Len(t, activity.entries, 1)
	assert.Equal(t, types.ActivityMedicineCreated, activity.entries[0].Action)
	assert.Equal(t, "user_1", activity.entries[0].UserID)
}

func TestMedicineHandler_Create_ValidationFailure(t *testing.T) {
	h, repo, checker, _ := newTestMedicineHandler()

	body := jsonBody(t, MedicineRequest{Category: "antibiotic"})
	req := httptest.NewRequest(http.MethodPost, "/v1/medicines", body)
	req = req.WithContext(actorContext("user_1", types.RolePharmacist))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, repo.created)
	assert.Equal(t, 0, checker.calls)
}

func TestMedicineHandler_Create_ReconcileFailureDoesNotFailRequest(t *testing.T) {
	h, _, checker, _ := newTestMedicineHandler()
	checker.reconcileFn = func(ctx context.Context, now time.Time) ([]*types.Notification, error) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "scan failed", nil)
	}

	body := jsonBody(t, MedicineRequest{Name: "Amoxicillin", Category: "antibiotic"})
	req := httptest.NewRequest(http.MethodPost, "/v1/medicines", body)
	req = req.WithContext(actorContext("user_1", types.RolePharmacist))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMedicineHandler_Update_Success(t *testing.T) {
	h, repo, checker, _ := newTestMedicineHandler()
	repo.getByIDFn = func(ctx context.Context, id string) (*types.Medicine, error) {
		return &types.Medicine{ID: id, Name: "Old Name", StockQuantity: 100}, nil
	}

	body := jsonBody(t, MedicineRequest{
		Name:          "New Name",
		Category:      "analgesic",
		StockQuantity: 20,
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/medicines/med_1", body)
	req = withURLParam(req.WithContext(actorContext("user_1", types.RolePharmacist)), "id", "med_1")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, repo.updated)
	assert.Equal(t, "New Name", repo.updated.Name)
	assert.Equal(t, 20, repo.updated.StockQuantity)
	assert.Equal(t, 1, checker.calls)
}

func TestMedicineHandler_Update_NotFound(t *testing.T) {
	h, _, _, _ := newTestMedicineHandler()

	body := jsonBody(t, MedicineRequest{Name: "New Name", Category: "analgesic"})
	req := httptest.NewRequest(http.MethodPut, "/v1/medicines/med_missing", body)
	req = withURLParam(req.WithContext(actorContext("user_1", types.RolePharmacist)), "id", "med_missing")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMedicineHandler_Delete_Success(t *testing.T) {
	h, _, _, activity := newTestMedicineHandler()

	req := httptest.NewRequest(http.MethodDelete, "/v1/medicines/med_1", nil)
	req = withURLParam(req.WithContext(actorContext("user_1", types.RoleAdmin)), "id", "med_1")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, types.ActivityMedicineDeleted, activity.entries[0].Action)
}

func TestMedicineHandler_NilChecker_SkipsReconcile(t *testing.T) {
	repo := &mockMedicineRepo{}
	h := NewMedicineHandler(repo, nil, nil, testValidator(), testLogger())

	body := jsonBody(t, MedicineRequest{Name: "Amoxicillin", Category: "antibiotic"})
	req := httptest.NewRequest(http.MethodPost, "/v1/medicines", body)
	req = req.WithContext(actorContext("user_1", types.RolePharmacist))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}
