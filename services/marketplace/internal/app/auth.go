package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/auth"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/store"
)

// SignUpInput registers a host or a provider.
type SignUpInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=120"`
	Role     string `json:"role" validate:"omitempty,oneof=host provider"`
}

// SignUp creates an account and opens a session. The first account ever
// created becomes admin.
func (a *App) SignUp(ctx context.Context, in SignUpInput) (domain.User, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return domain.User{}, "", err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, "", validation.Field("password", "password", err.Error())
	}
	_, exists, err := a.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return domain.User{}, "", storeErr("check email", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	role := domain.RoleHost
	if in.Role == string(domain.RoleProvider) {
		role = domain.RoleProvider
	}
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return domain.User{}, "", storeErr("count users", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           util.NewID(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, "", ErrEmailAlreadyExists
		}
		return domain.User{}, "", storeErr("create user", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, "", storeErr("fetch user", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, "", ErrUserDisabled
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout revokes the session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a bearer token to an active user.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil {
		if errors.Is(err, store.ErrTokenInvalid) || errors.Is(err, store.ErrTokenRevoked) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("verify session: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	user, found, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, storeErr("fetch user", err)
	}
	if !found || user.Status == domain.StatusDisabled {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}
