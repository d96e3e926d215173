package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/util"
	"storefront/pkg/apierror"
)

const maxNameLength = 30

type AuthService struct {
	users     repository.UserStore
	tokens    *TokenService
	hasher    PasswordHasher
	audit     *AuditService
	dummyHash string
}

func NewAuthService(users repository.UserStore, tokens *TokenService, hasher PasswordHasher, audit *AuditService) (*AuthService, error) {
	// Compared against when the user does not exist so both failure paths
	// take one bcrypt comparison.
	dummyHash, err := hasher.Hash("dummy-Passw0rd!")
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &AuthService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		audit:     audit,
		dummyHash: dummyHash,
	}, nil
}

// Login verifies name and password. An unknown name, or an account without a
// password, fails with model.ErrUserNotFound; a wrong password with
// model.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, name string, password string, actor model.AuditActor) (model.User, model.TokenPair, error) {
	name = strings.TrimSpace(name)
	actor.Name = name

	user, err := s.users.FindByName(ctx, name)
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.TokenPair{}, err
	}

	if err != nil || user.PasswordHash == "" {
		s.hasher.Compare(password, s.dummyHash)
		s.audit.Log(ctx, ActionLogin, actor, model.AuditStatusFailure, "", map[string]any{"reason": "unknown user"})
		return model.User{}, model.TokenPair{}, apierror.Wrap(model.ErrUserNotFound, apierror.CodeNotFound, "user not found", http.StatusNotFound)
	}

	actor.UserID = user.ID
	actor.Role = user.Role

	if !s.hasher.Compare(password, user.PasswordHash) {
		s.audit.Log(ctx, ActionLogin, actor, model.AuditStatusFailure, userResource(user.ID), map[string]any{"reason": "wrong password"})
		return model.User{}, model.TokenPair{}, apierror.Wrap(model.ErrInvalidCredentials, apierror.CodeUnauthorized, "invalid credentials", http.StatusUnauthorized)
	}

	pair, err := s.tokens.IssuePair(claimsFor(user))
	if err != nil {
		return model.User{}, model.TokenPair{}, err
	}

	s.audit.Log(ctx, ActionLogin, actor, model.AuditStatusSuccess, userResource(user.ID), nil)
	return user, pair, nil
}

// Register creates an account. The requested role is honoured only when the
// caller is an authenticated admin; everyone else gets a plain user.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, caller *model.AuthClaims, actor model.AuditActor) (model.User, error) {
	role := model.RoleUser
	if caller != nil && caller.IsAdmin() && req.Role != "" {
		role = req.Role
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.users.Create(ctx, model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		s.audit.Log(ctx, ActionRegister, actor, model.AuditStatusFailure, "", map[string]any{"name": req.Name, "error": err.Error()})
		return model.User{}, err
	}

	s.audit.Log(ctx, ActionRegister, actor, model.AuditStatusSuccess, userResource(user.ID), map[string]any{"role": user.Role})
	return user, nil
}

// GoogleLogin signs in the account matching the verified Google email,
// creating it on first sight. New accounts have no password and the user role.
func (s *AuthService) GoogleLogin(ctx context.Context, profile model.GoogleProfile, actor model.AuditActor) (model.User, model.TokenPair, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return model.User{}, model.TokenPair{}, apierror.Wrap(model.ErrEmailMissing, apierror.CodeUnauthorized, "Google account has no email", http.StatusUnauthorized)
	}
	if !profile.EmailVerified {
		actor.Name = email
		s.audit.Log(ctx, ActionOAuthLogin, actor, model.AuditStatusFailure, "", map[string]any{"reason": "email not verified"})
		return model.User{}, model.TokenPair{}, apierror.Wrap(model.ErrEmailNotVerified, apierror.CodeUnauthorized, "Google email is not verified", http.StatusUnauthorized)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		user, err = s.createOAuthUser(ctx, email)
	}
	if err != nil {
		actor.Name = email
		s.audit.Log(ctx, ActionOAuthLogin, actor, model.AuditStatusFailure, "", map[string]any{"error": err.Error()})
		return model.User{}, model.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(claimsFor(user))
	if err != nil {
		return model.User{}, model.TokenPair{}, err
	}

	actor.UserID, actor.Name, actor.Role = user.ID, user.Name, user.Role
	s.audit.Log(ctx, ActionOAuthLogin, actor, model.AuditStatusSuccess, userResource(user.ID), nil)
	return user, pair, nil
}

func (s *AuthService) createOAuthUser(ctx context.Context, email string) (model.User, error) {
	candidate := model.User{
		Name:  util.UsernameFromEmail(email, maxNameLength),
		Email: email,
		Role:  model.RoleUser,
	}

	user, err := s.users.Create(ctx, candidate)
	if conflictOn(err, "name") {
		candidate.Name = util.WithRandomSuffix(candidate.Name, 4, maxNameLength)
		user, err = s.users.Create(ctx, candidate)
	}
	if conflictOn(err, "email") {
		// Created concurrently by another callback for the same account.
		return s.users.FindByEmail(ctx, email)
	}

	return user, err
}

func (s *AuthService) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return s.users.FindByID(ctx, id)
}

func claimsFor(user model.User) model.AuthClaims {
	return model.AuthClaims{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

func conflictOn(err error, field string) bool {
	var apiErr *apierror.APIError
	return errors.As(err, &apiErr) && apiErr.Code == apierror.CodeConflict && apiErr.Details == field
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userResource(id int64) string {
	return fmt.Sprintf("user:%d", id)
}
