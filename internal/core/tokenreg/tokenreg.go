// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package tokenreg is the source of truth for which token pairs and sessions
are currently valid.

It tracks every issued access/refresh pair per user and application, drives
refresh-token rotation, and manages the bounded set of live browser and
desktop sessions with advisory risk scoring.

# Architecture

Signed tokens are a projection; this registry is the authority. A token that
verifies cryptographically but whose record is revoked here is dead. All
rotation and revocation paths go through atomic guarded updates so concurrent
refreshes from multiple devices serialize to one winner.
*/
package tokenreg

import (
	"time"
)

// # Domain Entities

// TokenRecord tracks one issued access/refresh pair.
type TokenRecord struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	ClientID         string     `json:"client_id"`
	Scopes           []string   `json:"scopes"`
	AccessTokenID    string     `json:"access_token_id"`
	RefreshTokenHash string     `json:"-"` // SHA-256 of the refresh token. Omitted for security.
	SessionID        string     `json:"session_id,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	Revoked          bool       `json:"revoked"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Active reports whether the record may still mint access tokens.
func (record *TokenRecord) Active() bool {
	return !record.Revoked && time.Now().Before(record.ExpiresAt)
}

// Session represents a live first-party login on one device or browser.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	TokenHash    string    `json:"-"` // SHA-256 of the opaque session token. Omitted for security.
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// SessionView is a session annotated for the management API.
type SessionView struct {
	Session
	Current   bool   `json:"current"`
	RiskLevel string `json:"risk_level"`
	RiskScore int    `json:"risk_score"`
}

// # Field Identifiers

const (
	FieldAction       = "action"
	FieldSessionToken = "session_token"
	FieldTerminateAll = "terminate_all"
	FieldTokenID      = "id"
	FieldUserID       = "user_id"
	FieldAppID        = "app_id"
	FieldMessage      = "message"
	FieldRevoked      = "revoked"
	FieldTerminated   = "terminated"
)
