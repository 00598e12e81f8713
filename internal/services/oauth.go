package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/drivehub/backend/internal/config"
	"github.com/drivehub/backend/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Profile is the verified identity returned by the external provider.
type Profile struct {
	Email     string
	Name      string
	AvatarURL *string
}

// IdentityProvider exchanges an authorization code for a verified profile.
// Failures are opaque to callers: network and provider errors surface the
// same way.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	ExchangeCodeForProfile(ctx context.Context, code string) (*Profile, error)
}

type GoogleProvider struct {
	cfg *oauth2.Config
}

func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *GoogleProvider) ExchangeCodeForProfile(ctx context.Context, code string) (*Profile, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth_exchange_failed", map[string]interface{}{
			"provider": "google",
			"error":    err.Error(),
		})
		return nil, errors.New("failed to exchange code for token")
	}

	client := g.cfg.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google api returned status %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	if strings.TrimSpace(data.Email) == "" {
		return nil, errors.New("google profile has no email")
	}

	profile := &Profile{Email: data.Email, Name: data.Name}
	if data.Picture != "" {
		picture := data.Picture
		profile.AvatarURL = &picture
	}
	return profile, nil
}
