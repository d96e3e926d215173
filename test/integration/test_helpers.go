//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repository"
	"storefront/internal/service"
)

const (
	adminName     = "root"
	adminPassword = "Adm1n$ecret"
	userPassword  = "Passw0rd!"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig(t *testing.T, databaseURL string) *config.Config {
	t.Helper()

	return &config.Config{
		RequestTimeout:   10 * time.Second,
		DatabaseURL:      databaseURL,
		JWTAccessSecret:  "integration-access",
		JWTRefreshSecret: "integration-refresh",
		JWTAccessTTL:     15 * time.Minute,
		JWTRefreshTTL:    24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		CORSOrigins:      []string{"http://localhost:3000"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
		UploadRoot:       t.TempDir(),
		MaxUploadSize:    4 << 20,
		MaxImageSize:     1 << 20,
		MaxProductImages: 4,
		MetricsEnabled:   true,
	}
}

// newServer starts the full application against TEST_DATABASE_URL on an
// emptied schema with one admin account.
func newServer(t *testing.T, mutate func(cfg *config.Config)) (*httptest.Server, *config.Config) {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE audit_entries, product_sizes, products, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	users := service.NewUserService(repository.NewUserRepository(db.Pool), service.NewBcryptHasher(bcrypt.MinCost), nil)
	_, err = users.EnsureAdmin(ctx, adminName, "root@example.com", adminPassword)
	require.NoError(t, err)

	cfg := testConfig(t, url)
	if mutate != nil {
		mutate(cfg)
	}

	h, err := app.NewHandler(cfg, db)
	require.NoError(t, err)

	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server, cfg
}

// newClient returns a client with its own cookie jar, i.e. its own session.
func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method string, url string, payload any) (*http.Response, envelope) {
	t.Helper()

	var body *bytes.Reader
	if payload == nil {
		body = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return do(t, client, req)
}

func do(t *testing.T, client *http.Client, req *http.Request) (*http.Response, envelope) {
	t.Helper()

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var parsed envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	}
	return resp, parsed
}

func login(t *testing.T, client *http.Client, baseURL string, name string, password string) {
	t.Helper()

	resp, body := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/users/login", map[string]string{
		"name":     name,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
}
