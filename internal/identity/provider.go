// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/lumenbase/accounts/internal/platform/config"
	"github.com/lumenbase/accounts/internal/platform/constants"
)

// # Provider Bridge

// Sentinel outcomes of a provider callback. These are expected, recoverable
// conditions: handlers redirect the browser back to the login page with an
// error query parameter instead of rendering a server fault.
var (
	ErrUnknownProvider = errors.New("unknown_provider")
	ErrNoEmail         = errors.New("no_email")
	ErrProviderFailed  = errors.New("oauth_failed")
)

// Profile is a provider-agnostic view of the signed-in user, already
// shaped for [Service.FindOrCreate].
type Profile struct {
	Email     string
	Name      string
	Username  string
	AvatarURL string
}

// ProviderBridge exchanges provider authorization codes for provider access
// tokens and normalizes provider profile data into the local shape.
//
// # Timeouts
//
// Every outbound call is bounded by constants.ProviderCallTimeout so a slow
// provider degrades into an oauth_failed outcome rather than a hung request.
type ProviderBridge struct {
	configs map[Kind]*oauth2.Config
}

// NewProviderBridge wires the configured identity providers. A provider with
// no client id configured is simply absent from the bridge.
func NewProviderBridge(cfg *config.Config) *ProviderBridge {
	configs := make(map[Kind]*oauth2.Config)

	if cfg.GitHubClientID != "" {
		configs[KindGitHub] = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			Endpoint:     endpoints.GitHub,
			RedirectURL:  cfg.PublicBaseURL + "/api/v1/auth/callback/github",
			Scopes:       []string{"read:user", "user:email"},
		}
	}

	if cfg.GoogleClientID != "" {
		configs[KindGoogle] = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  cfg.PublicBaseURL + "/api/v1/auth/callback/google",
			Scopes:       []string{"openid", "email", "profile"},
		}
	}

	return &ProviderBridge{configs: configs}
}

// Enabled reports whether the named provider is configured.
func (bridge *ProviderBridge) Enabled(provider string) bool {
	_, found := bridge.configs[KindForProvider(provider)]
	return found
}

/*
AuthURL builds the provider's authorization redirect for a sign-in attempt.

Parameters:
  - provider: string (route parameter, "github" | "google")
  - state: string (anti-CSRF value, verified on callback)

Returns:
  - string: Fully formed provider authorization URL
  - error: ErrUnknownProvider
*/
func (bridge *ProviderBridge) AuthURL(provider, state string) (string, error) {
	cfg, found := bridge.configs[KindForProvider(provider)]
	if !found {
		return "", ErrUnknownProvider
	}

	return cfg.AuthCodeURL(state), nil
}

/*
Exchange redeems a provider authorization code and fetches the profile.

Description: Performs the code-for-token exchange, then the profile fetch,
then (for providers that hide the public email) the secondary email-list
lookup selecting the entry marked primary.

Parameters:
  - callerContext: context.Context
  - provider: string
  - code: string

Returns:
  - *Profile: Normalized provider profile
  - error: ErrUnknownProvider, ErrNoEmail, or ErrProviderFailed (wrapped)
*/
func (bridge *ProviderBridge) Exchange(callerContext context.Context, provider, code string) (*Profile, error) {
	kind := KindForProvider(provider)
	cfg, found := bridge.configs[kind]
	if !found {
		return nil, ErrUnknownProvider
	}

	context, cancel := context.WithTimeout(callerContext, constants.ProviderCallTimeout)
	defer cancel()

	token, err := cfg.Exchange(context, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", ErrProviderFailed, err)
	}

	client := cfg.Client(context, token)

	switch kind {
	case KindGitHub:
		return fetchGitHubProfile(context, client)
	case KindGoogle:
		return fetchGoogleProfile(context, client)
	default:
		return nil, ErrUnknownProvider
	}
}

// # Provider Profile Fetchers

func fetchGitHubProfile(context context.Context, client *http.Client) (*Profile, error) {
	var raw struct {
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}

	if err := fetchJSON(context, client, "https://api.github.com/user", &raw); err != nil {
		return nil, fmt.Errorf("%w: profile fetch: %v", ErrProviderFailed, err)
	}

	email := raw.Email
	if email == "" {
		primary, err := fetchGitHubPrimaryEmail(context, client)
		if err != nil {
			return nil, err
		}
		email = primary
	}

	name := raw.Name
	if name == "" {
		name = raw.Login
	}

	return &Profile{
		Email:     email,
		Name:      name,
		Username:  raw.Login,
		AvatarURL: raw.AvatarURL,
	}, nil
}

// fetchGitHubPrimaryEmail queries the email-list endpoint for accounts whose
// public email is hidden, selecting the entry marked primary.
func fetchGitHubPrimaryEmail(context context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}

	if err := fetchJSON(context, client, "https://api.github.com/user/emails", &emails); err != nil {
		return "", fmt.Errorf("%w: email fetch: %v", ErrProviderFailed, err)
	}

	for _, entry := range emails {
		if entry.Primary && entry.Verified {
			return entry.Email, nil
		}
	}

	return "", ErrNoEmail
}

func fetchGoogleProfile(context context.Context, client *http.Client) (*Profile, error) {
	var raw struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}

	if err := fetchJSON(context, client, "https://www.googleapis.com/oauth2/v2/userinfo", &raw); err != nil {
		return nil, fmt.Errorf("%w: profile fetch: %v", ErrProviderFailed, err)
	}

	if raw.Email == "" {
		return nil, ErrNoEmail
	}

	return &Profile{
		Email:     raw.Email,
		Name:      raw.Name,
		Username:  raw.Email,
		AvatarURL: raw.Picture,
	}, nil
}

// fetchJSON performs one bounded GET and decodes the body into target.
func fetchJSON(context context.Context, client *http.Client, url string, target any) error {
	request, err := http.NewRequestWithContext(context, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, body)
	}

	return json.NewDecoder(response.Body).Decode(target)
}
