// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package client manages the registry of third-party applications allowed to
request delegated access to Lumenbase accounts.

Each registered application holds a public client id, a confidential secret
(stored hashed, server-only), an exact-match redirect allow-list, and a
security policy flag controlling whether PKCE is mandatory for its exchanges.

# Architecture

The entity carries the admission rules (redirect matching, secret checks,
suspension) as methods so the authorization server never reimplements them.
*/
package client

import (
	"time"

	"github.com/lumenbase/accounts/internal/platform/sec"
)

// # Application Status

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// # Domain Entity

// App represents a registered third-party application.
type App struct {
	ClientID         string    `json:"client_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Website          string    `json:"website,omitempty"`
	IconURL          string    `json:"icon_url,omitempty"`
	ClientSecretHash string    `json:"-"` // SHA-256 of the issued secret. Omitted for security.
	RedirectURIs     []string  `json:"redirect_uris"`
	RequirePKCE      bool      `json:"require_pkce"`
	Status           string    `json:"status"`
	TokensIssued     int64     `json:"tokens_issued"`
	ActiveTokens     int64     `json:"active_tokens"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsActive reports whether the application may obtain new tokens.
func (app *App) IsActive() bool {
	return app.Status == StatusActive
}

// AllowsRedirect reports whether the URI is on the application's allow-list.
// Matching is exact; partial or prefix matches open redirect attacks.
func (app *App) AllowsRedirect(redirectURI string) bool {
	for _, allowed := range app.RedirectURIs {
		if allowed == redirectURI {
			return true
		}
	}
	return false
}

// VerifySecret compares a presented client secret against the stored hash in
// constant time.
func (app *App) VerifySecret(clientSecret string) bool {
	if clientSecret == "" || app.ClientSecretHash == "" {
		return false
	}
	return sec.ConstantTimeEqual(sec.HashToken(clientSecret), app.ClientSecretHash)
}

// # Field Identifiers

const (
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
	FieldRedirectURI  = "redirect_uri"
	FieldScope        = "scope"
	FieldState        = "state"
	FieldGrantType    = "grant_type"
	FieldCode         = "code"
	FieldCodeVerifier = "code_verifier"
	FieldRefreshToken = "refresh_token"
)
