package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pharmstock/internal/types"
)

// --- Mock UserStore ---

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*types.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Create(ctx context.Context, u *types.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// --- Mock PasswordHasher ---

type mockPasswordHasher struct {
	mock.Mock
}

func (m *mockPasswordHasher) CompareHashAndPassword(hashedPassword, password string) error {
	args := m.Called(hashedPassword, password)
	return args.Error(0)
}

func (m *mockPasswordHasher) GenerateFromPassword(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// --- Helpers ---

func testConfig() Config {
	return Config{
		JWTSecret: []byte("0123456789abcdef0123456789abcdef"),
		TokenTTL:  12 * time.Hour,
	}
}

func newTestService(store *mockUserStore, hasher PasswordHasher) *Service {
	s := NewService(store, testConfig(), nil)
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

func storedUser() *types.User {
	return &types.User{
		ID:           "user_1",
		FullName:     "Dana Reeves",
		Email:        "dana@pharmacy.test",
		PasswordHash: "$2a$12$storedhash",
		Role:         types.RolePharmacist,
	}
}

// --- Register ---

func TestRegister_HashesPasswordAndDefaultsRole(t *testing.T) {
	store := &mockUserStore{}
	hasher := &mockPasswordHasher{}
	hasher.On("GenerateFromPassword", "s3cret-pass").Return("hashed", nil)
	store.On("Create", mock.Anything, mock.MatchedBy(func(u *types.User) bool {
		return u.PasswordHash == "hashed" && u.Role == types.RolePharmacist && u.ID != ""
	})).Return(nil)

	svc := newTestService(store, hasher)
	u, err := svc.Register(context.Background(), "Dana Reeves", "dana@pharmacy.test", "s3cret-pass", "")

	require.NoError(t, err)
	assert.Equal(t, types.RolePharmacist, u.Role)
	assert.NotContains(t, u.PasswordHash, "s3cret-pass")
	store.AssertExpectations(t)
	hasher.AssertExpectations(t)
}

func TestRegister_InvalidRoleRejected(t *testing.T) {
	svc := newTestService(&mockUserStore{}, &mockPasswordHasher{})

	_, err := svc.Register(context.Background(), "Dana", "dana@pharmacy.test", "pw", "superuser")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidField, appErr.Code)
}

func TestRegister_DuplicateEmailPropagates(t *testing.T) {
	store := &mockUserStore{}
	hasher := &mockPasswordHasher{}
	hasher.On("GenerateFromPassword", mock.Anything).Return("hashed", nil)
	store.On("Create", mock.Anything, mock.Anything).
		Return(types.NewAppError(types.ErrCodeConflictEmail, "email already registered", nil))

	svc := newTestService(store, hasher)
	_, err := svc.Register(context.Background(), "Dana", "dana@pharmacy.test", "pw", types.RoleAdmin)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConflictEmail, appErr.Code)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	store := &mockUserStore{}
	hasher := &mockPasswordHasher{}
	u := storedUser()
	store.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	hasher.On("CompareHashAndPassword", u.PasswordHash, "correct-pw").Return(nil)
	store.On("TouchLastLogin", mock.Anything, u.ID, mock.Anything).Return(nil)

	svc := newTestService(store, hasher)
	got, token, err := svc.Login(context.Background(), u.Email, "correct-pw")

	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEmpty(t, token)
	require.NotNil(t, got.LastLoginAt)
}

func TestLogin_WrongPassword(t *testing.T) {
	store := &mockUserStore{}
	hasher := &mockPasswordHasher{}
	u := storedUser()
	store.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	hasher.On("CompareHashAndPassword", u.PasswordHash, "wrong").Return(errors.New("mismatch"))

	svc := newTestService(store, hasher)
	_, _, err := svc.Login(context.Background(), u.Email, "wrong")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthInvalidCreds, appErr.Code)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByEmail", mock.Anything, "nobody@pharmacy.test").
		Return(nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil))

	svc := newTestService(store, &mockPasswordHasher{})
	_, _, err := svc.Login(context.Background(), "nobody@pharmacy.test", "pw")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	// Same code as a wrong password so the endpoint doesn't leak which
	// emails exist.
	assert.Equal(t, types.ErrCodeAuthInvalidCreds, appErr.Code)
}

func TestLogin_TouchLastLoginFailureIsNonFatal(t *testing.T) {
	store := &mockUserStore{}
	hasher := &mockPasswordHasher{}
	u := storedUser()
	store.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	hasher.On("CompareHashAndPassword", mock.Anything, mock.Anything).Return(nil)
	store.On("TouchLastLogin", mock.Anything, u.ID, mock.Anything).Return(errors.New("db down"))

	svc := newTestService(store, hasher)
	_, token, err := svc.Login(context.Background(), u.Email, "correct-pw")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

// --- Tokens ---

func TestResolveToken_RoundTrip(t *testing.T) {
	store := &mockUserStore{}
	hasher := &mockPasswordHasher{}
	u := storedUser()
	store.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	hasher.On("CompareHashAndPassword", mock.Anything, mock.Anything).Return(nil)
	store.On("TouchLastLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(store, hasher)
	_, token, err := svc.Login(context.Background(), u.Email, "correct-pw")
	require.NoError(t, err)

	actor, err := svc.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor.ID)
	assert.Equal(t, u.FullName, actor.Name)
	assert.Equal(t, types.RolePharmacist, actor.Role)
}

func TestResolveToken_Garbage(t *testing.T) {
	svc := newTestService(&mockUserStore{}, nil)

	_, err := svc.ResolveToken("not-a-token")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestResolveToken_Expired(t *testing.T) {
	store := &mockUserStore{}
	svc := newTestService(store, nil)
	svc.cfg.TokenTTL = -time.Hour

	token, err := svc.issueToken(storedUser())
	require.NoError(t, err)

	_, err = svc.ResolveToken(token)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenExpired, appErr.Code)
}

func TestResolveToken_WrongKey(t *testing.T) {
	svc := newTestService(&mockUserStore{}, nil)
	token, err := svc.issueToken(storedUser())
	require.NoError(t, err)

	other := newTestService(&mockUserStore{}, nil)
	other.cfg.JWTSecret = []byte("ffffffffffffffffffffffffffffffff")

	_, err = other.ResolveToken(token)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := &bcryptHasher{}
	hash, err := h.GenerateFromPassword("s3cret-pass")
	require.NoError(t, err)

	assert.NoError(t, h.CompareHashAndPassword(hash, "s3cret-pass"))
	assert.Error(t, h.CompareHashAndPassword(hash, "wrong"))
}
