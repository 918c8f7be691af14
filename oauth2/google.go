// Package oauth2 holds the concrete OAuth2 provider implementations. They
// satisfy the cropauth.OAuthProvider contract: hand out a consent URL,
// exchange the callback code, and return a normalized ExternalIdentity.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rpratheek/cropauth"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Google implements cropauth.OAuthProvider against Google's OAuth2 endpoint.
type Google struct {
	config oauth2.Config
}

// NewGoogle builds a Google provider. Empty arguments fall back to the
// OAUTH2_GOOGLE_* environment variables.
func NewGoogle(clientID, clientSecret, callbackURL string) *Google {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackURL == "" {
		callbackURL = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	return &Google{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// FetchIdentity exchanges the authorization code and fetches the userinfo
// profile, reducing it to the display name and primary email.
func (g *Google) FetchIdentity(ctx context.Context, code string) (cropauth.ExternalIdentity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return cropauth.ExternalIdentity{}, fmt.Errorf("code exchange failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return cropauth.ExternalIdentity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return cropauth.ExternalIdentity{}, fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cropauth.ExternalIdentity{}, fmt.Errorf("failed reading user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return cropauth.ExternalIdentity{}, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return cropauth.ExternalIdentity{}, fmt.Errorf("failed decoding user info: %w", err)
	}

	return cropauth.ExternalIdentity{
		DisplayName: info.Name,
		Email:       info.Email,
	}, nil
}
