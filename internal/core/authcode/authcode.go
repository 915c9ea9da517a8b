// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package authcode implements the short-lived authorization code store that
bridges the consent screen and the token endpoint.

A code binds a user, an application, the approved scopes, the redirect target,
and an optional PKCE challenge. Codes are single-use with a TTL of minutes;
redemption consumes the code atomically so two concurrent exchanges can never
both succeed.

# Architecture

Codes live in Redis only. The TTL is enforced by Redis itself, so there is no
sweep to run, and the atomic take (GETDEL) is the serialization point for the
double-redemption race.
*/
package authcode

import (
	"context"
	"errors"
	"time"
)

// # Domain Entity

// Code is the server-side state behind an opaque authorization code.
type Code struct {
	Code                string    `json:"code"`
	UserID              string    `json:"user_id"`
	ClientID            string    `json:"client_id"`
	Scopes              []string  `json:"scopes"`
	RedirectURI         string    `json:"redirect_uri"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	IssuedAt            time.Time `json:"issued_at"`
}

// HasChallenge reports whether the code carries a PKCE challenge.
func (code *Code) HasChallenge() bool {
	return code.CodeChallenge != ""
}

// # Redemption Failures

// These are expected protocol outcomes, not faults. The authorization server
// maps all of them onto the invalid_grant error vocabulary.
var (
	ErrCodeInvalid      = errors.New("authorization code is invalid or expired")
	ErrClientMismatch   = errors.New("authorization code was issued to a different client")
	ErrRedirectMismatch = errors.New("redirect uri does not match the authorization request")
	ErrPKCEFailed       = errors.New("code verifier does not match the challenge")
)

// # Volatile Data Access

// Store defines the contract for the single-use code storage.
type Store interface {

	/*
		Put stores a code with the given time to live.

		Parameters:
		  - context: context.Context
		  - code: *Code
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Put(context context.Context, code *Code, ttl time.Duration) error

	/*
		Take atomically retrieves and deletes a code. At most one caller ever
		receives a given code; all others get ErrCodeInvalid.

		Parameters:
		  - context: context.Context
		  - opaque: string

		Returns:
		  - *Code: The consumed code state
		  - error: ErrCodeInvalid or connectivity failures
	*/
	Take(context context.Context, opaque string) (*Code, error)
}
