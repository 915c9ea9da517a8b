// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package authcode_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbase/accounts/internal/core/authcode"
)

func newTestService(t *testing.T) *authcode.Service {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return authcode.NewService(authcode.NewRedisStore(client))
}

func issueTestCode(t *testing.T, service *authcode.Service, input authcode.IssueInput) string {
	t.Helper()

	opaque, err := service.Issue(context.Background(), input)
	require.NoError(t, err)
	require.NotEmpty(t, opaque)
	return opaque
}

/*
TestService_RedeemHappyPath verifies that a matching redemption returns the
bound user, client, and scopes.
*/
func TestService_RedeemHappyPath(t *testing.T) {
	service := newTestService(t)

	opaque := issueTestCode(t, service, authcode.IssueInput{
		UserID:      "user-1",
		ClientID:    "app-1",
		Scopes:      []string{"profile:read"},
		RedirectURI: "https://app.example.com/callback",
	})

	code, err := service.Redeem(context.Background(), authcode.RedeemInput{
		Code:        opaque,
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", code.UserID)
	assert.Equal(t, []string{"profile:read"}, code.Scopes)
}

/*
TestService_SingleUse verifies that redeeming the same code twice yields
exactly one success and one ErrCodeInvalid.
*/
func TestService_SingleUse(t *testing.T) {
	service := newTestService(t)

	opaque := issueTestCode(t, service, authcode.IssueInput{
		UserID:      "user-1",
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})

	input := authcode.RedeemInput{
		Code:        opaque,
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	}

	_, err := service.Redeem(context.Background(), input)
	require.NoError(t, err)

	_, err = service.Redeem(context.Background(), input)
	assert.ErrorIs(t, err, authcode.ErrCodeInvalid)
}

/*
TestService_BurnsOnMismatch verifies that a failed validation still consumes
the code: once presented, a code is dead no matter what.
*/
func TestService_BurnsOnMismatch(t *testing.T) {
	service := newTestService(t)

	opaque := issueTestCode(t, service, authcode.IssueInput{
		UserID:      "user-1",
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})

	// Wrong redirect target: validation fails after the code is taken.
	_, err := service.Redeem(context.Background(), authcode.RedeemInput{
		Code:        opaque,
		ClientID:    "app-1",
		RedirectURI: "https://evil.example.com/callback",
	})
	assert.ErrorIs(t, err, authcode.ErrRedirectMismatch)

	// The code must not be redeemable any more, even with correct parameters.
	_, err = service.Redeem(context.Background(), authcode.RedeemInput{
		Code:        opaque,
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})
	assert.ErrorIs(t, err, authcode.ErrCodeInvalid)
}

/*
TestService_ClientMismatch verifies that redemption requires the issuing
application's client id.
*/
func TestService_ClientMismatch(t *testing.T) {
	service := newTestService(t)

	opaque := issueTestCode(t, service, authcode.IssueInput{
		UserID:      "user-1",
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})

	_, err := service.Redeem(context.Background(), authcode.RedeemInput{
		Code:        opaque,
		ClientID:    "app-2",
		RedirectURI: "https://app.example.com/callback",
	})
	assert.ErrorIs(t, err, authcode.ErrClientMismatch)
}

/*
TestService_PKCE verifies the verifier checks for both challenge methods.
*/
func TestService_PKCE(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		challenge func(verifier string) string
		verifier  string
		redeemAs  string
		wantErr   error
	}{
		{
			name:      "s256_correct_verifier",
			method:    authcode.MethodS256,
			challenge: authcode.ChallengeS256,
			verifier:  "correct-horse-battery-staple",
			redeemAs:  "correct-horse-battery-staple",
		},
		{
			name:      "s256_wrong_verifier",
			method:    authcode.MethodS256,
			challenge: authcode.ChallengeS256,
			verifier:  "correct-horse-battery-staple",
			redeemAs:  "wrong-verifier",
			wantErr:   authcode.ErrPKCEFailed,
		},
		{
			name:      "plain_direct_equality",
			method:    authcode.MethodPlain,
			challenge: func(v string) string { return v },
			verifier:  "plain-challenge-value",
			redeemAs:  "plain-challenge-value",
		},
		{
			name:      "missing_verifier",
			method:    authcode.MethodS256,
			challenge: authcode.ChallengeS256,
			verifier:  "correct-horse-battery-staple",
			redeemAs:  "",
			wantErr:   authcode.ErrPKCEFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(t)

			opaque := issueTestCode(t, service, authcode.IssueInput{
				UserID:              "user-1",
				ClientID:            "app-1",
				RedirectURI:         "https://app.example.com/callback",
				CodeChallenge:       tt.challenge(tt.verifier),
				CodeChallengeMethod: tt.method,
			})

			_, err := service.Redeem(context.Background(), authcode.RedeemInput{
				Code:         opaque,
				ClientID:     "app-1",
				RedirectURI:  "https://app.example.com/callback",
				CodeVerifier: tt.redeemAs,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestService_VerifierWithoutChallenge verifies that a verifier presented
against a code issued with no challenge is rejected rather than waved
through unverified.
*/
func TestService_VerifierWithoutChallenge(t *testing.T) {
	service := newTestService(t)

	opaque := issueTestCode(t, service, authcode.IssueInput{
		UserID:      "user-1",
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})

	_, err := service.Redeem(context.Background(), authcode.RedeemInput{
		Code:         opaque,
		ClientID:     "app-1",
		RedirectURI:  "https://app.example.com/callback",
		CodeVerifier: "anything-at-all",
	})
	assert.ErrorIs(t, err, authcode.ErrPKCEFailed)
}

/*
TestService_Expiry verifies that codes vanish after their TTL.
*/
func TestService_Expiry(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	service := authcode.NewService(authcode.NewRedisStore(client))

	opaque := issueTestCode(t, service, authcode.IssueInput{
		UserID:      "user-1",
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})

	// Advance the store's clock past the code TTL.
	server.FastForward(11 * time.Minute)

	_, err := service.Redeem(context.Background(), authcode.RedeemInput{
		Code:        opaque,
		ClientID:    "app-1",
		RedirectURI: "https://app.example.com/callback",
	})
	assert.ErrorIs(t, err, authcode.ErrCodeInvalid)
}

/*
TestVerifyPKCE covers the raw verifier function's edge cases.
*/
func TestVerifyPKCE(t *testing.T) {
	challenge := authcode.ChallengeS256("verifier-value")

	assert.True(t, authcode.VerifyPKCE("verifier-value", challenge, authcode.MethodS256))
	assert.False(t, authcode.VerifyPKCE("other-value", challenge, authcode.MethodS256))
	assert.False(t, authcode.VerifyPKCE("", challenge, authcode.MethodS256))
	assert.False(t, authcode.VerifyPKCE("verifier-value", challenge, "unknown-method"))
	assert.True(t, authcode.VerifyPKCE("same", "same", authcode.MethodPlain))
	assert.False(t, authcode.VerifyPKCE("same", "different", authcode.MethodPlain))
}
