// Package auth implements account registration, credential verification, and
// bearer token handling for the pharmacy staff API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pharmstock/internal/types"
)

// bcryptCost is the bcrypt cost factor used for password hashing.
const bcryptCost = 12

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// bcryptHasher is the production implementation of PasswordHasher.
type bcryptHasher struct{}

func (b *bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b *bcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// UserStore defines the user persistence operations the auth service needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	Create(ctx context.Context, u *types.User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// Claims is the JWT payload issued at login.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds the token signing parameters.
type Config struct {
	JWTSecret []byte
	TokenTTL  time.Duration
}

// Service implements registration, login, and token resolution.
type Service struct {
	users  UserStore
	hasher PasswordHasher
	cfg    Config
	logger *slog.Logger
}

// NewService creates an auth Service using bcrypt for password hashing.
func NewService(users UserStore, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		hasher: &bcryptHasher{},
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates a new user account with a hashed password. Role defaults
// to pharmacist when unset.
func (s *Service) Register(ctx context.Context, fullName, email, password string, role types.UserRole) (*types.User, error) {
	if role == "" {
		role = types.RolePharmacist
	}
	if !role.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("unknown role %q", role), nil)
	}

	hash, err := s.hasher.GenerateFromPassword(password)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	u := &types.User{
		ID:           "user_" + uuid.NewString(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", u.ID,
		"role", string(u.Role),
	)

	return u, nil
}

// Login verifies the credentials and issues a signed bearer token. The error
// for an unknown email and a wrong password is identical so the endpoint does
// not leak which emails exist.
func (s *Service) Login(ctx context.Context, email, password string) (*types.User, string, error) {
	invalidCreds := types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			return nil, "", invalidCreds
		}
		return nil, "", err
	}

	if err := s.hasher.CompareHashAndPassword(u.PasswordHash, password); err != nil {
		return nil, "", invalidCreds
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to sign token", err)
	}

	now := time.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		// Non-fatal. The login succeeded.
		s.logger.ErrorContext(ctx, "failed to record last login",
			"user_id", u.ID,
			"error", err,
		)
	}
	u.LastLoginAt = &now

	s.logger.InfoContext(ctx, "user logged in",
		"user_id", u.ID,
	)

	return u, token, nil
}

// issueToken signs an HS256 JWT carrying the user's identity and role.
func (s *Service) issueToken(u *types.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Name: u.FullName,
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
}

// ResolveToken validates a bearer token and returns the actor it identifies.
func (s *Service) ResolveToken(tokenString string) (types.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.JWTSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenExpired, "token has expired", err)
		}
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is invalid", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is invalid", nil)
	}

	return types.Actor{
		ID:   claims.Subject,
		Name: claims.Name,
		Role: types.UserRole(claims.Role),
	}, nil
}
