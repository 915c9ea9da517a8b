// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package authcode

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/lumenbase/accounts/internal/platform/sec"
)

// # PKCE (RFC 7636)

const (
	MethodS256  = "S256"
	MethodPlain = "plain"
)

/*
VerifyPKCE checks a code verifier against a stored challenge.

Description: For S256 the verifier must satisfy
base64url(sha256(verifier)) == challenge; for plain the verifier must equal
the challenge byte for byte. Unknown methods always fail.

Parameters:
  - verifier: string
  - challenge: string
  - method: string (MethodS256 | MethodPlain)

Returns:
  - bool: true only when the verifier reproduces the challenge
*/
func VerifyPKCE(verifier, challenge, method string) bool {
	if verifier == "" || challenge == "" {
		return false
	}

	switch method {
	case MethodS256:
		digest := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(digest[:])
		return sec.ConstantTimeEqual(computed, challenge)
	case MethodPlain:
		return sec.ConstantTimeEqual(verifier, challenge)
	default:
		return false
	}
}

// ChallengeS256 derives the S256 challenge for a verifier. Used by tests and
// by first-party desktop builds that generate their own verifier.
func ChallengeS256(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
