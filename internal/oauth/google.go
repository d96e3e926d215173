package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"storefront/internal/model"
	"storefront/pkg/apierror"
)

const userInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider runs the authorization-code flow against Google and turns
// the result into a model.GoogleProfile.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID string, clientSecret string, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfoURL,
	}
}

// AuthCodeURL is where the browser is sent to pick an account.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the callback code for a token and fetches the profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (model.GoogleProfile, error) {
	if strings.TrimSpace(code) == "" {
		return model.GoogleProfile{}, apierror.BadRequest("missing authorization code", "")
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return model.GoogleProfile{}, apierror.Wrap(err, apierror.CodeUnauthorized, "Google authentication failed", http.StatusUnauthorized)
	}

	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return model.GoogleProfile{}, fmt.Errorf("build userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return model.GoogleProfile{}, apierror.Wrap(err, apierror.CodeUnavailable, "Google service is currently unavailable", http.StatusServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return model.GoogleProfile{}, apierror.New(apierror.CodeUnauthorized, "Google authentication failed",
			fmt.Sprintf("userinfo status %d", resp.StatusCode), http.StatusUnauthorized)
	}

	var profile model.GoogleProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return model.GoogleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}

	return profile, nil
}
