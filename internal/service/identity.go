// Package service implements the core operations behind the HTTP surface:
// identity and authorization, lot/spot registry management, spot allocation
// and billing, and the read-side statistics.
package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parklot/internal/domain"
	"parklot/internal/repo"
	"parklot/pkg/utils"
)

// IdentityService owns user records and every authorization decision. Guards
// are re-run here, just before state changes, so a caller bypassing the HTTP
// middleware still cannot escalate.
type IdentityService struct {
	users *repo.UserRepo
	log   *zap.Logger
}

func NewIdentityService(users *repo.UserRepo, log *zap.Logger) *IdentityService {
	return &IdentityService{users: users, log: log}
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=100"`
	Address  string `json:"address" binding:"omitempty,max=200"`
	PinCode  string `json:"pinCode" binding:"omitempty,max=20"`
}

// Register creates a regular user account. The admin role is never
// assignable through registration.
func (s *IdentityService) Register(in RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if name == "" || email == "" || len(in.Password) < 6 {
		return nil, fmt.Errorf("%w: name, email and a password of at least 6 characters are required", domain.ErrValidation)
	}

	existing, err := s.users.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email %q is already registered", domain.ErrValidation, email)
	}

	u := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: utils.HashPassword(in.Password),
		Address:      strings.TrimSpace(in.Address),
		PinCode:      strings.TrimSpace(in.PinCode),
	}
	if err := s.users.Create(u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Uint("user_id", u.ID), zap.String("email", u.Email))
	return u, nil
}

// Authenticate checks credentials and returns the user on success.
func (s *IdentityService) Authenticate(email, password string) (*domain.User, error) {
	u, err := s.users.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrAuth)
	}
	return u, nil
}

// RequireAdmin resolves the actor and fails unless they hold the admin flag.
func (s *IdentityService) RequireAdmin(actorID uint) (*domain.User, error) {
	u, err := s.users.FindByID(actorID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsAdmin {
		return nil, fmt.Errorf("%w: admin privileges required", domain.ErrAuth)
	}
	return u, nil
}

// RequireUser resolves the actor and fails for admin accounts; admins manage
// lots but do not hold reservations.
func (s *IdentityService) RequireUser(actorID uint) (*domain.User, error) {
	u, err := s.users.FindByID(actorID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: unknown user", domain.ErrAuth)
	}
	if u.IsAdmin {
		return nil, fmt.Errorf("%w: admin accounts cannot reserve spots", domain.ErrAuth)
	}
	return u, nil
}

// Bootstrap idempotently ensures the single admin account exists.
func (s *IdentityService) Bootstrap(email, name, password string) error {
	existing, err := s.users.FindByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	admin := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: utils.HashPassword(password),
		Address:      "Admin Office",
		PinCode:      "000000",
		IsAdmin:      true,
	}
	if err := s.users.Create(admin); err != nil {
		return err
	}
	s.log.Info("admin account bootstrapped", zap.String("email", email))
	return nil
}

// ListUsers returns non-admin accounts, newest first. Admin only.
func (s *IdentityService) ListUsers(actorID uint, offset, limit int) ([]domain.User, int64, error) {
	if _, err := s.RequireAdmin(actorID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.users.ListNonAdmin(offset, limit)
}

// SearchUsers matches non-admin accounts by name, email, address or PIN code.
func (s *IdentityService) SearchUsers(actorID uint, q string) ([]domain.User, error) {
	if _, err := s.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrValidation)
	}
	return s.users.Search(q, 50)
}

// GetUser is the admin-or-self read used by the per-user stats surface.
func (s *IdentityService) GetUser(actorID, userID uint) (*domain.User, error) {
	actor, err := s.users.FindByID(actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (!actor.IsAdmin && actor.ID != userID) {
		return nil, fmt.Errorf("%w: not allowed to view this user", domain.ErrAuth)
	}
	u, err := s.users.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
	}
	return u, nil
}
