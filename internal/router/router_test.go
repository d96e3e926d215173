package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/storage"
	"storefront/pkg/apierror"
)

const strongPassword = "Passw0rd!"

type fakePinger struct {
	err error
}

func (f fakePinger) Health(context.Context) error {
	return f.err
}

type testEnv struct {
	handler    http.Handler
	users      *repository.MockUserStore
	products   *repository.MockProductStore
	audit      *repository.MockAuditStore
	tokens     *service.TokenService
	hasher     *service.BcryptHasher
	uploadRoot string
}

func newTestEnv(t *testing.T, db handler.Pinger) *testEnv {
	t.Helper()

	uploadRoot := t.TempDir()
	store, err := storage.New(uploadRoot)
	require.NoError(t, err)

	cfg := &config.Config{
		RequestTimeout:       5 * time.Second,
		JWTAccessTTL:         15 * time.Minute,
		JWTRefreshTTL:        7 * 24 * time.Hour,
		CORSOrigins:          []string{"http://localhost:3000"},
		AuthRateLimitRPM:     1000,
		MaxUploadSize:        1 << 20,
		MaxImageSize:         256 << 10,
		MaxProductImages:     4,
		OAuthSuccessRedirect: "http://localhost:3000",
		MetricsEnabled:       true,
	}

	env := &testEnv{
		users:      &repository.MockUserStore{},
		products:   &repository.MockProductStore{},
		audit:      &repository.MockAuditStore{},
		tokens:     service.NewTokenService("access-secret", "refresh-secret", cfg.JWTAccessTTL, cfg.JWTRefreshTTL),
		hasher:     service.NewBcryptHasher(bcrypt.MinCost),
		uploadRoot: uploadRoot,
	}
	env.audit.On("Log", mock.Anything, mock.Anything).Return(nil).Maybe()

	m := metrics.New()
	auditService := service.NewAuditService(env.audit)
	authService, err := service.NewAuthService(env.users, env.tokens, env.hasher, auditService)
	require.NoError(t, err)
	images := service.NewImageService(store, cfg.MaxImageSize, m)
	cookies := middleware.Cookies{AccessTTL: cfg.JWTAccessTTL, RefreshTTL: cfg.JWTRefreshTTL}

	env.handler = New(cfg, middleware.NewAuthMiddleware(service.NewSessionGuard(env.tokens), cookies, m), Handlers{
		Auth:    handler.NewAuthHandler(authService, cookies, nil, cfg.OAuthSuccessRedirect),
		User:    handler.NewUserHandler(service.NewUserService(env.users, env.hasher, auditService)),
		Product: handler.NewProductHandler(service.NewProductService(env.products, images, auditService, cfg.MaxProductImages), cfg.MaxUploadSize),
		Audit:   handler.NewAuditHandler(auditService),
		Upload:  handler.NewUploadHandler(images),
		Health:  handler.NewHealthHandler(db),
	}, m)

	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// sessionFor returns a request carrying only the refresh cookie of claims.
func (e *testEnv) sessionFor(t *testing.T, req *http.Request, claims model.AuthClaims) *http.Request {
	t.Helper()
	pair, err := e.tokens.IssuePair(claims)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: pair.RefreshToken})
	return req
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func jsonRequest(t *testing.T, method string, target string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	admin = model.AuthClaims{UserID: 1, Name: "root", Email: "root@example.com", Role: model.RoleAdmin}
	alice = model.AuthClaims{UserID: 2, Name: "alice", Email: "alice@example.com", Role: model.RoleUser}
)

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := newTestEnv(t, fakePinger{}).do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = newTestEnv(t, fakePinger{err: errors.New("down")}).do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, apierror.CodeUnavailable, decode(t, rec).Error.Code)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	payload := map[string]string{"name": "bob_1", "email": "Bob@Example.com", "password": strongPassword, "role": "admin"}

	t.Run("anonymous caller always gets the user role", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Role == model.RoleUser && u.Email == "bob@example.com" && u.PasswordHash != strongPassword
		})).Return(model.User{ID: 5, Name: "bob_1", Email: "bob@example.com", Role: model.RoleUser}, nil).Once()

		rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/register", payload))
		require.Equal(t, http.StatusCreated, rec.Code)

		body := decode(t, rec)
		require.Equal(t, "User created successfully", body.Message)
		require.NotContains(t, string(body.Data), "password")
		env.users.AssertExpectations(t)
	})

	t.Run("admin caller may grant admin", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Role == model.RoleAdmin
		})).Return(model.User{ID: 6, Name: "bob_1", Role: model.RoleAdmin}, nil).Once()

		req := env.sessionFor(t, jsonRequest(t, http.MethodPost, "/api/v1/users/register", payload), admin)
		rec := env.do(t, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		env.users.AssertExpectations(t)
	})

	t.Run("stale refresh cookie does not block registration", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.users.On("Create", mock.Anything, mock.MatchedBy(func(u model.User) bool {
			return u.Role == model.RoleUser
		})).Return(model.User{ID: 7, Name: "bob_1", Email: "bob@example.com", Role: model.RoleUser}, nil).Once()

		req := jsonRequest(t, http.MethodPost, "/api/v1/users/register", payload)
		req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: "signed-with-an-old-secret"})
		rec := env.do(t, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		env.users.AssertExpectations(t)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.users.On("Create", mock.Anything, mock.Anything).
			Return(model.User{}, apierror.Conflict("email")).Once()

		rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/register", payload))
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "email already exists", decode(t, rec).Error.Message)
	})

	t.Run("weak password fails validation", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		weak := map[string]string{"name": "bob_1", "email": "bob@example.com", "password": "password"}

		rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/register", weak))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, apierror.CodeValidation, decode(t, rec).Error.Code)
		env.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	hash, err := env.hasher.Hash(strongPassword)
	require.NoError(t, err)

	env.users.On("FindByName", mock.Anything, "alice").
		Return(model.User{ID: 2, Name: "alice", Email: "alice@example.com", PasswordHash: hash, Role: model.RoleUser}, nil)
	env.users.On("FindByName", mock.Anything, "ghost").
		Return(model.User{}, apierror.Wrap(model.ErrUserNotFound, apierror.CodeNotFound, "User with name ghost not found", http.StatusNotFound))

	t.Run("success sets both cookies", func(t *testing.T) {
		rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/login", map[string]string{"name": "alice", "password": strongPassword}))
		require.Equal(t, http.StatusOK, rec.Code)

		access := cookieNamed(rec, middleware.AccessCookie)
		refresh := cookieNamed(rec, middleware.RefreshCookie)
		require.NotNil(t, access)
		require.NotNil(t, refresh)
		require.True(t, refresh.HttpOnly)

		var result model.LoginResult
		body := decode(t, rec)
		require.Equal(t, "User login successfully", body.Message)
		require.NoError(t, json.Unmarshal(body.Data, &result))
		require.Equal(t, int64(2), result.ID)
		require.Equal(t, access.Value, result.AccessToken)

		claims, err := env.tokens.VerifyAccess(result.AccessToken)
		require.NoError(t, err)
		require.Equal(t, alice, claims)
	})

	for name, payload := range map[string]map[string]string{
		"wrong password": {"name": "alice", "password": "Wr0ngPass!"},
		"unknown user":   {"name": "ghost", "password": strongPassword},
	} {
		t.Run(name+" is an opaque 401", func(t *testing.T) {
			rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/users/login", payload))
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Nil(t, cookieNamed(rec, middleware.RefreshCookie))

			body := decode(t, rec)
			require.Equal(t, apierror.CodeUnauthorized, body.Error.Code)
			require.Equal(t, "invalid credentials", body.Error.Message)
		})
	}
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	env.users.On("FindByID", mock.Anything, int64(2)).
		Return(model.User{ID: 2, Name: "alice", Email: "alice@example.com", Role: model.RoleUser}, nil)

	t.Run("me reissues the access cookie from the refresh cookie", func(t *testing.T) {
		req := env.sessionFor(t, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), alice)
		rec := env.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)

		access := cookieNamed(rec, middleware.AccessCookie)
		require.NotNil(t, access)
		claims, err := env.tokens.VerifyAccess(access.Value)
		require.NoError(t, err)
		require.Equal(t, alice, claims)

		var user model.AuthUser
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &user))
		require.Equal(t, "alice", user.Name)
	})

	t.Run("me without a session is 401", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "authentication required", decode(t, rec).Error.Message)
	})

	t.Run("forged refresh cookie is 401 without cookies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: "forged.token.value"})
		rec := env.do(t, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("logout expires both cookies", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, -1, cookieNamed(rec, middleware.AccessCookie).MaxAge)
		require.Equal(t, -1, cookieNamed(rec, middleware.RefreshCookie).MaxAge)
	})

	t.Run("google routes answer 503 when unconfigured", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestUserRoutesAreGuarded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	env.users.On("List", mock.Anything).Return([]model.User{{ID: 1, Name: "root", Role: model.RoleAdmin}}, nil)
	env.users.On("FindByID", mock.Anything, int64(2)).Return(model.User{ID: 2, Name: "alice", Role: model.RoleUser}, nil)
	env.users.On("Update", mock.Anything, mock.Anything).Return(model.User{ID: 2, Name: "alice2", Role: model.RoleUser}, nil)

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, env.sessionFor(t, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil), alice))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "insufficient permissions", decode(t, rec).Error.Message)

		rec = env.do(t, env.sessionFor(t, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil), admin))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("self update allowed, role change refused", func(t *testing.T) {
		req := env.sessionFor(t, jsonRequest(t, http.MethodPatch, "/api/v1/users/2", map[string]string{"name": "alice2"}), alice)
		require.Equal(t, http.StatusOK, env.do(t, req).Code)

		req = env.sessionFor(t, jsonRequest(t, http.MethodPatch, "/api/v1/users/2", map[string]string{"role": "admin"}), alice)
		require.Equal(t, http.StatusForbidden, env.do(t, req).Code)

		req = env.sessionFor(t, jsonRequest(t, http.MethodPatch, "/api/v1/users/1", map[string]string{"name": "mallory"}), alice)
		require.Equal(t, http.StatusForbidden, env.do(t, req).Code)
	})

	t.Run("admin cannot delete themself", func(t *testing.T) {
		req := env.sessionFor(t, httptest.NewRequest(http.MethodDelete, "/api/v1/users/1", nil), admin)
		rec := env.do(t, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		env.users.AssertNotCalled(t, "Delete", mock.Anything, int64(1))
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		env.users.On("FindByID", mock.Anything, int64(404)).
			Return(model.User{}, apierror.Wrap(model.ErrUserNotFound, apierror.CodeNotFound, "User with id 404 not found", http.StatusNotFound))

		rec := env.do(t, env.sessionFor(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/404", nil), admin))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "User with id 404 not found", decode(t, rec).Error.Message)
	})
}

func TestProducts(t *testing.T) {
	t.Parallel()

	t.Run("list renders absolute image urls", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.products.On("List", mock.Anything).Return([]model.Product{{ID: 1, Name: "Shirt", Images: []string{"/uploads/image/a.png"}}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.Host = "shop.example.com"
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := env.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var products []model.Product
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &products))
		require.Equal(t, []string{"https://shop.example.com/uploads/image/a.png"}, products[0].Images)
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.products.On("List", mock.Anything).Return([]model.Product{}, nil)

		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `[]`, string(decode(t, rec).Data))
	})

	t.Run("admin creates a product with an image", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.products.On("Create", mock.Anything, mock.MatchedBy(func(p model.Product) bool {
			return p.Name == "Linen shirt" && p.Quantity == 5 && p.IsAvailable &&
				len(p.Images) == 1 && strings.HasPrefix(p.Images[0], "/uploads/image/") &&
				p.DiscountedPrice != nil && *p.DiscountedPrice == 40
		})).Return(model.Product{ID: 9, Name: "Linen shirt", Images: []string{"/uploads/image/stored.png"}}, nil).Once()

		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		require.NoError(t, form.WriteField("product_name", "Linen shirt"))
		require.NoError(t, form.WriteField("product_description", "Breathable summer linen shirt"))
		require.NoError(t, form.WriteField("original_price", "50"))
		require.NoError(t, form.WriteField("discount_percentage", "20"))
		require.NoError(t, form.WriteField("sizes", `[{"size":"md","stock_quantity":2},{"size":"lg","stock_quantity":3}]`))
		part, err := form.CreateFormFile("images", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(pngBytes(t))
		require.NoError(t, err)
		require.NoError(t, form.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", &body)
		req.Header.Set("Content-Type", form.FormDataContentType())
		rec := env.do(t, env.sessionFor(t, req, admin))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		env.products.AssertExpectations(t)

		entries, err := os.ReadDir(filepath.Join(env.uploadRoot, "image"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("non admin cannot create", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		req := jsonRequest(t, http.MethodPost, "/api/v1/products", map[string]any{})
		require.Equal(t, http.StatusForbidden, env.do(t, env.sessionFor(t, req, alice)).Code)
	})

	t.Run("oversized body is 413", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})

		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("images", "huge.png")
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{0}, 2<<20))
		require.NoError(t, err)
		require.NoError(t, form.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/products", &body)
		req.Header.Set("Content-Type", form.FormDataContentType())
		rec := env.do(t, env.sessionFor(t, req, admin))
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("missing product is 404", func(t *testing.T) {
		env := newTestEnv(t, fakePinger{})
		env.products.On("FindByID", mock.Anything, int64(7)).
			Return(model.Product{}, apierror.Wrap(model.ErrProductNotFound, apierror.CodeNotFound, "Product with id 7 not found", http.StatusNotFound))

		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUploadsAreServed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	require.NoError(t, os.MkdirAll(filepath.Join(env.uploadRoot, "image"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.uploadRoot, "image", "1-000000001.png"), pngBytes(t), 0o644))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/uploads/image/1-000000001.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/uploads/image/missing.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `storefront_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestAuditRequiresAdmin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakePinger{})
	env.audit.On("Query", mock.Anything, mock.MatchedBy(func(q model.AuditQuery) bool {
		return q.Action == "auth.login" && q.Page == 2
	})).Return([]model.AuditEntry{{ID: 1, Action: "auth.login"}}, model.Meta{Page: 2, Limit: 50, Total: 51, TotalPages: 2}, nil)

	require.Equal(t, http.StatusForbidden, env.do(t, env.sessionFor(t, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil), alice)).Code)

	rec := env.do(t, env.sessionFor(t, httptest.NewRequest(http.MethodGet, "/api/v1/audit?action=auth.login&page=2", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 51, decode(t, rec).Meta.Total)
}
