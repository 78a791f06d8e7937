package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/types"
)

// =============================================================================
// Mock Implementations for User Handler
// =============================================================================

type mockUserRepo struct {
	listFn    func(ctx context.Context) ([]*types.User, error)
	getByIDFn func(ctx context.Context, id string) (*types.User, error)
	updateFn  func(ctx context.Context, u *types.User) error
	deleteFn  func(ctx context.Context, id string) error

	updated   *types.User
	deletedID string
}

func (m *mockUserRepo) List(ctx context.Context) ([]*types.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*types.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
}

func (m *mockUserRepo) Update(ctx context.Context, u *types.User) error {
	m.updated = u
	if m.updateFn != nil {
		return m.updateFn(ctx, u)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func newTestUserHandler() (*UserHandler, *mockUserRepo, *mockActivityRecorder) {
	repo := &mockUserRepo{}
	activity := &mockActivityRecorder{}
	h := NewUserHandler(repo, activity, testValidator(), testLogger())
	return h, repo, activity
}

// =============================================================================
// User Handler Tests
// =============================================================================

func TestUserHandler_List_AdminOnly(t *testing.T) {
	h, repo, _ := newTestUserHandler()
	repo.listFn = func(ctx context.Context) ([]*types.User, error) {
		return []*types.User{{ID: "user_1", Email: "a@b.test"}}, nil
	}

	// Pharmacist is rejected.
	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req = req.WithContext(actorContext("user_2", types.RolePharmacist))
	rec := httptest.NewRecorder()

	h.List(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin succeeds.
	req = httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req = req.WithContext(actorContext("user_admin", types.RoleAdmin))
	rec = httptest.NewRecorder()

	h.List(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
}

func TestUserHandler_List_NoActor(t *testing.T) {
	h, _, _ := newTestUserHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandler_Get_Success(t *testing.T) {
	h, repo, _ := newTestUserHandler()
	repo.getByIDFn = func(ctx context.Context, id string) (*types.User, error) {
		return &types.User{ID: id, Email: "a@b.test", Role: types.RolePharmacist}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/user_1", nil)
	req = withURLParam(req.WithContext(actorContext("user_admin", types.RoleAdmin)), "id", "user_1")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUserHandler_Update_Success(t *testing.T) {
	h, repo, activity := newTestUserHandler()
	repo.getByIDFn = func(ctx context.Context, id string) (*types.User, error) {
		return &types.User{ID: id, FullName: "Old", Email: "old@b.test", Role: types.RolePharmacist}, nil
	}

	body := jsonBody(t, UpdateUserRequest{
		FullName: "New Name",
		Email:    "new@b.test",
		Role:     "admin",
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/users/user_1", body)
	req = withURLParam(req.WithContext(actorContext("user_admin", types.RoleAdmin)), "id", "user_1")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, repo.updated)
	assert.Equal(t, "New Name", repo.updated.FullName)
	assert.Equal(t, types.RoleAdmin, repo.updated.Role)

	require.Len(t, activity.entries, 1)
	assert.Equal(t, types.ActivityUserUpdated, activity.entries[0].Action)
}

func TestUserHandler_Update_SelfDemotionBlocked(t *testing.T) {
	h, repo, _ := newTestUserHandler()
	repo.getByIDFn = func(ctx context.Context, id string) (*types.User, error) {
		return &types.User{ID: id, FullName: "Admin", Email: "admin@b.test", Role: types.RoleAdmin}, nil
	}

	body := jsonBody(t, UpdateUserRequest{
		FullName: "Admin",
		Email:    "admin@b.test",
		Role:     "pharmacist",
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/users/user_admin", body)
	req = withURLParam(req.WithContext(actorContext("user_admin", types.RoleAdmin)), "id", "user_admin")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, repo.updated)
}

func TestUserHandler_Update_InvalidRole(t *testing.T) {
	h, _, _ := newTestUserHandler()

	body := jsonBody(t, UpdateUserRequest{
		FullName: "Name",
		Email:    "a@b.test",
		Role:     "superuser",
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/users/user_1", body)
	req = withURLParam(req.WithContext(actorContext("user_admin", types.RoleAdmin)), "id", "user_1")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandler_Delete_Success(t *testing.T) {
	h, repo, activity := newTestUserHandler()

	req := httptest.NewRequest(http.MethodDelete, "/v1/users/user_1", nil)
	req = withURLParam(req.WithContext(actorContext("user_admin", types.RoleAdmin)), "id", "user_1")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user_1", repo.deletedID)
	require.Len(t, activity.entries, 1)
	assert.Equal(t, types.ActivityUserDeleted, activity.entries[0].Action)
}

func TestUserHandler_Delete_SelfDeletionBlocked(t *testing.T) {
	h, repo, _ := newTestUserHandler()

	req := httptest.NewRequest(http.MethodDelete, "/v1/users/user_admin", nil)
	req = withURLParam(req.WithContext(actorContext("user_admin", types.RoleAdmin)), "id", "user_admin")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, repo.deletedID)
}
