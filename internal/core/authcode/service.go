// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package authcode

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/sec"
)

// # Service

// Service issues and redeems single-use authorization codes.
type Service struct {
	store Store
	ttl   time.Duration
}

// NewService constructs a new [Service] backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, ttl: constants.AuthCodeTTL}
}

// IssueInput carries everything a consent approval binds into a code.
type IssueInput struct {
	UserID              string
	ClientID            string
	Scopes              []string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
}

/*
Issue mints a new opaque authorization code at consent-approval time.

Parameters:
  - context: context.Context
  - input: IssueInput

Returns:
  - string: The opaque code to append to the redirect
  - error: Generation or storage failures
*/
func (service *Service) Issue(context context.Context, input IssueInput) (string, error) {

	// High-entropy opaque value. The code itself carries no information.
	opaque, err := sec.GenerateSecureToken(constants.AuthCodeLength)
	if err != nil {
		return "", fmt.Errorf("authcode_service_generate_failed: %w", err)
	}

	// Default the challenge method when a challenge arrives without one.
	method := input.CodeChallengeMethod
	if input.CodeChallenge != "" && method == "" {
		method = MethodPlain
	}

	code := &Code{
		Code:                opaque,
		UserID:              input.UserID,
		ClientID:            input.ClientID,
		Scopes:              input.Scopes,
		RedirectURI:         input.RedirectURI,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: method,
		IssuedAt:            time.Now(),
	}

	if err := service.store.Put(context, code, service.ttl); err != nil {
		return "", fmt.Errorf("authcode_service_store_failed: %w", err)
	}

	return opaque, nil
}

// RedeemInput carries the token endpoint's side of the exchange.
type RedeemInput struct {
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
}

/*
Redeem consumes a code and validates the exchange against the bound state.

Description: The code is consumed before validation, so a failed exchange
still burns it. This is deliberate replay protection: once presented, a code
is dead no matter what.

Parameters:
  - context: context.Context
  - input: RedeemInput

Returns:
  - *Code: The bound user, client, and scopes on success
  - error: ErrCodeInvalid, ErrClientMismatch, ErrRedirectMismatch, ErrPKCEFailed
*/
func (service *Service) Redeem(context context.Context, input RedeemInput) (*Code, error) {

	code, err := service.store.Take(context, input.Code)
	if err != nil {
		return nil, err
	}

	if code.ClientID != input.ClientID {
		return nil, ErrClientMismatch
	}

	if code.RedirectURI != input.RedirectURI {
		return nil, ErrRedirectMismatch
	}

	if code.HasChallenge() {
		if !VerifyPKCE(input.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod) {
			return nil, ErrPKCEFailed
		}
	} else if input.CodeVerifier != "" {
		// A verifier stands in for client authentication, but only against a
		// stored challenge. With nothing to verify it against, accepting one
		// would exchange a stolen code with no client authentication at all.
		return nil, ErrPKCEFailed
	}

	return code, nil
}
