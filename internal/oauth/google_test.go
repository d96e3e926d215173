package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"storefront/pkg/apierror"
)

func TestAuthCodeURL(t *testing.T) {
	t.Parallel()

	p := NewGoogleProvider("client-id", "secret", "http://localhost:3000/api/v1/auth/google/callback")
	raw := p.AuthCodeURL("state-123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "state-123", q.Get("state"))
	require.Equal(t, "select_account", q.Get("prompt"))
	require.Equal(t, "client-id", q.Get("client_id"))
	require.Contains(t, q.Get("scope"), "email")
}

func TestExchangeFetchesProfile(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "good-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"email": "jane@gmail.com", "email_verified": true, "name": "Jane"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p := NewGoogleProvider("id", "secret", "http://localhost/callback")
	p.config.Endpoint = oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"}
	p.userInfoURL = server.URL + "/userinfo"

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, "jane@gmail.com", profile.Email)
	require.True(t, profile.EmailVerified)
}

func TestExchangeRejectsMissingCode(t *testing.T) {
	t.Parallel()

	p := NewGoogleProvider("id", "secret", "http://localhost/callback")
	_, err := p.Exchange(context.Background(), "")
	require.Equal(t, apierror.CodeBadRequest, apierror.CodeOf(err))
}
