package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/pkg/apierror"
)

type sessionChecker interface {
	Check(accessToken string, refreshToken string) (service.Decision, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	guard   sessionChecker
	cookies Cookies
	metrics *metrics.Metrics
}

func NewAuthMiddleware(guard sessionChecker, cookies Cookies, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{guard: guard, cookies: cookies, metrics: m}
}

// Session resolves the identity of the request from its cookies. Requests
// without a refresh cookie pass through anonymously; an invalid refresh
// cookie ends the request with 401.
func (m *AuthMiddleware) Session(next http.Handler) http.Handler {
	return m.session(next, false)
}

// OptionalSession is Session for public routes that only use the identity
// when there is one: an invalid refresh cookie makes the request anonymous
// instead of failing it.
func (m *AuthMiddleware) OptionalSession(next http.Handler) http.Handler {
	return m.session(next, true)
}

func (m *AuthMiddleware) session(next http.Handler, lenient bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := m.guard.Check(CookieValue(r, AccessCookie), CookieValue(r, RefreshCookie))
		m.metrics.SessionDecision(decision.Outcome)
		if err != nil {
			if lenient {
				slog.Debug("invalid refresh token ignored on public route",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", err)
				next.ServeHTTP(w, r)
				return
			}
			writeAPIError(w, asAPIError(err, apierror.Unauthorized("invalid refresh token")))
			return
		}

		if decision.Anonymous {
			next.ServeHTTP(w, r)
			return
		}

		if decision.StaleAccess != nil {
			attrs := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"user_id", decision.Claims.UserID,
				"error", decision.StaleAccess,
			}
			if service.IsExpired(decision.StaleAccess) {
				slog.Debug("access token expired, reissued from refresh token", attrs...)
			} else {
				slog.Warn("access token rejected, reissued from refresh token", attrs...)
			}
		}

		if decision.ReissuedAccess != "" {
			m.cookies.SetAccessCookie(w, r, decision.ReissuedAccess)
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), decision.Claims)))
	})
}

// RequireAuth rejects requests that reached it without an identity.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			writeAPIError(w, apierror.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles implies RequireAuth: anonymous callers get 401, callers with
// another role 403.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := toRoleSet(allowedRoles)

	return func(next http.Handler) http.Handler {
		return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if _, exists := roleSet[strings.ToLower(claims.Role)]; !exists {
				writeAPIError(w, apierror.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequireSelfOrRoles lets through the user whose id is the URL parameter
// param, and anyone holding one of allowedRoles.
func (m *AuthMiddleware) RequireSelfOrRoles(param string, allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := toRoleSet(allowedRoles)

	return func(next http.Handler) http.Handler {
		return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if _, exists := roleSet[strings.ToLower(claims.Role)]; exists {
				next.ServeHTTP(w, r)
				return
			}

			id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || id != claims.UserID {
				writeAPIError(w, apierror.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func WithClaims(ctx context.Context, claims model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(model.AuthClaims)
	return claims, ok
}

func toRoleSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return set
}
