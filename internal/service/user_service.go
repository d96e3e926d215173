package service

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/apierror"
)

type UserService struct {
	users  repository.UserStore
	hasher PasswordHasher
	audit  *AuditService
}

func NewUserService(users repository.UserStore, hasher PasswordHasher, audit *AuditService) *UserService {
	return &UserService{users: users, hasher: hasher, audit: audit}
}

func (s *UserService) List(ctx context.Context) ([]model.AuthUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.AuthUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

// Update applies the non-nil fields of req. Only admins may change a role.
func (s *UserService) Update(ctx context.Context, id int64, req model.UpdateUserRequest, caller model.AuthClaims, actor model.AuditActor) (model.AuthUser, error) {
	if req.Role != nil && !caller.IsAdmin() {
		return model.AuthUser{}, apierror.Forbidden("only admins can change roles")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.AuthUser{}, err
	}

	changed := make([]string, 0, 4)
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
		changed = append(changed, "name")
	}
	if req.Email != nil {
		user.Email = normalizeEmail(*req.Email)
		changed = append(changed, "email")
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return model.AuthUser{}, err
		}
		user.PasswordHash = hash
		changed = append(changed, "password")
	}
	if req.Role != nil {
		user.Role = *req.Role
		changed = append(changed, "role")
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		s.audit.Log(ctx, ActionUserUpdate, actor, model.AuditStatusFailure, userResource(id), map[string]any{"error": err.Error()})
		return model.AuthUser{}, err
	}

	s.audit.Log(ctx, ActionUserUpdate, actor, model.AuditStatusSuccess, userResource(id), map[string]any{"fields": changed})
	return updated.Public(), nil
}

func (s *UserService) Delete(ctx context.Context, id int64, caller model.AuthClaims, actor model.AuditActor) error {
	if caller.UserID == id {
		return apierror.BadRequest("you cannot delete your own account", "")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		s.audit.Log(ctx, ActionUserDelete, actor, model.AuditStatusFailure, userResource(id), map[string]any{"error": err.Error()})
		return err
	}

	s.audit.Log(ctx, ActionUserDelete, actor, model.AuditStatusSuccess, userResource(id), nil)
	return nil
}

// EnsureAdmin creates an admin account or, when the name is taken, promotes
// it and resets its password. Used by the create-admin command.
func (s *UserService) EnsureAdmin(ctx context.Context, name string, email string, password string) (model.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, err
	}

	existing, err := s.users.FindByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, model.ErrUserNotFound) {
		return s.users.Create(ctx, model.User{
			Name:         strings.TrimSpace(name),
			Email:        normalizeEmail(email),
			PasswordHash: hash,
			Role:         model.RoleAdmin,
		})
	}
	if err != nil {
		return model.User{}, err
	}

	existing.PasswordHash = hash
	existing.Role = model.RoleAdmin
	return s.users.Update(ctx, existing)
}
