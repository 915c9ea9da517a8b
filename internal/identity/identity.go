// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package identity implements the credential and identity store.

It defines the core User entity with its linked sign-in method, bounded login
history, and account lifecycle, plus the bridge that normalizes external
identity providers into the same shape.

# Architecture

This layer is the "Truth" of the system for who a user is. Entities defined
here have no external dependencies; the authorization core consumes them
through a narrow directory interface rather than through this package's types.
*/
package identity

import (
	"time"

	"github.com/lumenbase/accounts/internal/platform/constants"
)

// # Identity Method Classes

// Kind names the authentication method class that is authoritative for an
// account. Exactly one class is authoritative at a time: linking a provider
// to a password account switches the class rather than adding a second one.
type Kind string

const (
	KindPassword Kind = "password"
	KindGitHub   Kind = "github"
	KindGoogle   Kind = "google"
)

// KindForProvider maps a provider route parameter to its identity class.
// Unknown providers return an empty Kind.
func KindForProvider(provider string) Kind {
	switch provider {
	case "github":
		return KindGitHub
	case "google":
		return KindGoogle
	default:
		return ""
	}
}

// # Domain Entities

// LinkedProfile carries provider-side profile data attached to an account
// when its identity class is a provider.
type LinkedProfile struct {
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	LinkedAt  time.Time `json:"linked_at"`
}

// LoginEntry is one element of the bounded login history window.
type LoginEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	IP        string    `json:"ip"`
}

// User represents a registered member of the Lumenbase platform.
type User struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"` // Unique, stored lowercase.
	PasswordHash  string         `json:"-"`     // Explicitly omitted from JSON for security.
	Kind          Kind           `json:"identity_kind"`
	LinkedProfile *LinkedProfile `json:"linked_profile,omitempty"`
	Role          string         `json:"role"`
	LoginHistory  []LoginEntry   `json:"-"` // Security-sensitive; exposed only through sessions risk data.
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// AppendLogin records one sign-in at the head of the login history and trims
// the window to the retention limit. Newest entries come first so the
// retained window is always the most recent logins.
func (user *User) AppendLogin(provider, ip string, now time.Time) {
	entry := LoginEntry{Timestamp: now, Provider: provider, IP: ip}
	user.LoginHistory = append([]LoginEntry{entry}, user.LoginHistory...)

	if len(user.LoginHistory) > constants.LoginHistoryLimit {
		user.LoginHistory = user.LoginHistory[:constants.LoginHistoryLimit]
	}
}

// KnownIPs returns the distinct IP addresses present in the login history,
// used by session risk scoring to flag sign-ins from unfamiliar networks.
func (user *User) KnownIPs() []string {
	seen := make(map[string]struct{}, len(user.LoginHistory))
	ips := make([]string, 0, len(user.LoginHistory))

	for _, entry := range user.LoginHistory {
		if entry.IP == "" {
			continue
		}
		if _, found := seen[entry.IP]; found {
			continue
		}
		seen[entry.IP] = struct{}{}
		ips = append(ips, entry.IP)
	}

	return ips
}

// # Field Identifiers

// Global field names for validation and identity mapping in this domain.
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldProvider     = "provider"
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldUser         = "user"
	FieldMessage      = "message"
)
