package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/pkg/apierror"
)

// OAuthProvider is the external sign-in flow behind /auth/google.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (model.GoogleProfile, error)
}

type AuthHandler struct {
	service         *service.AuthService
	cookies         middleware.Cookies
	google          OAuthProvider
	successRedirect string
}

// NewAuthHandler wires the session endpoints. google may be nil, in which
// case the OAuth routes answer 503.
func NewAuthHandler(service *service.AuthService, cookies middleware.Cookies, google OAuthProvider, successRedirect string) *AuthHandler {
	return &AuthHandler{
		service:         service,
		cookies:         cookies,
		google:          google,
		successRedirect: successRedirect,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), payload, callerFromRequest(r), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User created successfully", user.Public(), nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, pair, err := h.service.Login(r.Context(), payload.Name, payload.Password, actorFromRequest(r))
	if err != nil {
		writeLoginError(w, err)
		return
	}

	h.cookies.SetAuthCookies(w, r, pair)
	writeSuccess(w, http.StatusOK, "User login successfully", model.LoginResult{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil)
}

// Logout only clears the cookies; sessions are not tracked server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearAuthCookies(w, r)
	writeSuccess(w, http.StatusOK, "User logout successfully", nil, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User retrieved successfully", user.Public(), nil)
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, apierror.Unavailable("Google sign-in"))
		return
	}

	state := uuid.NewString()
	h.cookies.SetStateCookie(w, r, state)
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, apierror.Unavailable("Google sign-in"))
		return
	}

	query := r.URL.Query()
	expected := middleware.CookieValue(r, middleware.StateCookie)
	h.cookies.ClearStateCookie(w, r)

	if reason := strings.TrimSpace(query.Get("error")); reason != "" {
		writeError(w, apierror.New(apierror.CodeUnauthorized, "Google authentication failed", reason, http.StatusUnauthorized))
		return
	}

	if expected == "" || query.Get("state") != expected {
		writeError(w, apierror.Unauthorized("invalid OAuth state"))
		return
	}

	profile, err := h.google.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}

	_, pair, err := h.service.GoogleLogin(r.Context(), profile, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookies.SetAuthCookies(w, r, pair)
	http.Redirect(w, r, h.successRedirect, http.StatusFound)
}
