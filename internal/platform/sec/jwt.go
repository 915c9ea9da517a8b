// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via narrow interfaces.
package sec

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lumenbase/accounts/pkg/uuidv7"
)

// # Token Types

const (
	// TokenTypeAccess marks short-lived bearer tokens presented on API calls.
	TokenTypeAccess = "access"

	// TokenTypeRefresh marks long-lived tokens redeemable only at the token endpoint.
	TokenTypeRefresh = "refresh"
)

// AuthClaims represents the payload embedded inside a Lumenbase JWT.
//
// # Why custom claims?
//
// By embedding identity and authorization data directly inside the JWT,
// request handlers can enforce scope checks WITHOUT querying the database on
// every single API request. Tokens are a cached projection of the permission
// ledger at issuance time; revocation is handled by the token registry.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	Email     string   `json:"eml,omitempty"`
	Name      string   `json:"nam,omitempty"`
	Role      string   `json:"rol,omitempty"`
	Scopes    []string `json:"scp,omitempty"`
	TokenType string   `json:"tkt"`
	SessionID string   `json:"sid,omitempty"`

	// AccessTokenID links a refresh token to the access token it was issued
	// alongside, making rotation traceable.
	AccessTokenID string `json:"ati,omitempty"`
}

// UserID returns the token subject.
func (c *AuthClaims) UserID() string {
	return c.Subject
}

// ClientID returns the requesting application, carried in the audience claim.
func (c *AuthClaims) ClientID() string {
	if len(c.Audience) == 0 {
		return ""
	}
	return c.Audience[0]
}

// IsAdmin reports whether the token carries the admin role.
func (c *AuthClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// HasScope reports whether the token authorizes the given scope.
//
// # Admin Bypass
//
// Admin-role tokens pass every per-scope check; the admin role is derived
// from the injected [AdminPolicy] at issuance time.
func (c *AuthClaims) HasScope(scope string) bool {
	if c.IsAdmin() {
		return true
	}
	return slices.Contains(c.Scopes, scope)
}

// # Token Pairs

// TokenPair bundles a freshly issued access/refresh token set.
type TokenPair struct {
	AccessToken  string
	RefreshToken string

	// ExpiresIn is the access-token lifetime in seconds (OAuth wire format).
	ExpiresIn int64

	// SessionID is the shared session identifier embedded in both tokens.
	SessionID string

	// AccessTokenID is the 'jti' of the access token, referenced by the
	// refresh token for rotation traceability.
	AccessTokenID string
}

// RotatedAccess is the result of minting a new access token from a refresh token.
type RotatedAccess struct {
	AccessToken string
	ExpiresIn   int64
}

// # Token Service

// TokenService signs and verifies JWTs using HMAC-SHA256 with two
// independent secrets (access vs. refresh).
//
// # Design
//
// A refresh token signed with its own secret AND tagged with an explicit
// token-type claim cannot be replayed where an access token is expected,
// even if an implementation bug ever consulted the wrong secret.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	admins        *AdminPolicy
}

// NewTokenService creates a new TokenService.
//
// It fails fast on misconfiguration (empty or identical secrets) so that a
// broken deployment never silently signs tokens with a guessable key.
func NewTokenService(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration, admins *AdminPolicy) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("sec: token signing secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("sec: access and refresh secrets must be independent")
	}
	if admins == nil {
		admins = NewAdminPolicy(nil)
	}

	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		admins:        admins,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (service *TokenService) AccessTTL() time.Duration {
	return service.accessTTL
}

// RefreshTTL returns the configured refresh-token lifetime.
func (service *TokenService) RefreshTTL() time.Duration {
	return service.refreshTTL
}

// IssueAccessToken creates a signed access token for a user acting through
// the given client application.
//
// The role claim is derived from the injected [AdminPolicy] so the admin
// allow-list has exactly one source of truth.
func (service *TokenService) IssueAccessToken(userID, email, name, clientID string, scopes []string, sessionID string) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuidv7.New(),
			Subject:   userID,
			Audience:  jwt.ClaimStrings{clientID},
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.accessTTL)),
		},
		Email:     email,
		Name:      name,
		Role:      service.admins.RoleFor(email),
		Scopes:    scopes,
		TokenType: TokenTypeAccess,
		SessionID: sessionID,
	}

	return service.sign(claims, service.accessSecret)
}

// IssueRefreshToken creates a signed refresh token linked to the access token
// it was issued alongside.
func (service *TokenService) IssueRefreshToken(userID, clientID, accessTokenID, sessionID string) (string, error) {
	currentTime := time.Now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuidv7.New(),
			Subject:   userID,
			Audience:  jwt.ClaimStrings{clientID},
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.refreshTTL)),
		},
		TokenType:     TokenTypeRefresh,
		SessionID:     sessionID,
		AccessTokenID: accessTokenID,
	}

	return service.sign(claims, service.refreshSecret)
}

// IssuePair generates a shared session identifier, issues the access token,
// and issues a refresh token referencing it.
func (service *TokenService) IssuePair(userID, email, name, clientID string, scopes []string, sessionID string) (*TokenPair, error) {
	if sessionID == "" {
		sessionID = uuidv7.New()
	}

	accessToken, err := service.IssueAccessToken(userID, email, name, clientID, scopes, sessionID)
	if err != nil {
		return nil, err
	}

	// Extract the freshly minted access token's id to link the pair.
	accessClaims := service.VerifyAccessToken(accessToken)
	if accessClaims == nil {
		return nil, fmt.Errorf("sec: failed to read back issued access token")
	}

	refreshToken, err := service.IssueRefreshToken(userID, clientID, accessClaims.ID, sessionID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresIn:     int64(service.accessTTL.Seconds()),
		SessionID:     sessionID,
		AccessTokenID: accessClaims.ID,
	}, nil
}

// SessionClaims builds in-process claims for a cookie-session identity.
// No token is signed; the claims feed the same request-context plumbing as
// Bearer authentication so handlers never care which strategy resolved them.
func (service *TokenService) SessionClaims(userID, email, name, sessionID string) *AuthClaims {
	return &AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
			Issuer:  service.issuer,
		},
		Email:     email,
		Name:      name,
		Role:      service.admins.RoleFor(email),
		SessionID: sessionID,
	}
}

// VerifyAccessToken checks signature, issuer, expiry, and token type.
//
// It returns nil for any invalid token rather than an error: an invalid
// token is an expected, recoverable outcome that every caller handles the
// same way (respond 401 / invalid_grant), not a server fault.
func (service *TokenService) VerifyAccessToken(tokenString string) *AuthClaims {
	return service.verify(tokenString, service.accessSecret, TokenTypeAccess)
}

// VerifyRefreshToken checks signature, issuer, expiry, and token type.
//
// A valid ACCESS token presented here returns nil: the token-type claim is
// enforced even when the signature would verify under the other secret.
func (service *TokenService) VerifyRefreshToken(tokenString string) *AuthClaims {
	return service.verify(tokenString, service.refreshSecret, TokenTypeRefresh)
}

// Rotate verifies a refresh token and mints a new access token preserving the
// refresh token's subject, audience, and session linkage.
//
// Returns nil if the refresh token fails verification. Rotation of the
// refresh token itself (revocation of the superseded record) is owned by the
// token registry; this method only handles the cryptographic half.
func (service *TokenService) Rotate(refreshToken, email, name string, scopes []string) *RotatedAccess {
	claims := service.VerifyRefreshToken(refreshToken)
	if claims == nil {
		return nil
	}

	accessToken, err := service.IssueAccessToken(claims.Subject, email, name, claims.ClientID(), scopes, claims.SessionID)
	if err != nil {
		return nil
	}

	return &RotatedAccess{
		AccessToken: accessToken,
		ExpiresIn:   int64(service.accessTTL.Seconds()),
	}
}

// sign serializes and signs the claims with the given secret.
func (service *TokenService) sign(claims AuthClaims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// verify parses the token against the given secret and enforces issuer and
// token-type expectations. Any failure yields nil.
func (service *TokenService) verify(tokenString string, secret []byte, expectedType string) *AuthClaims {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(service.issuer))

	if err != nil {
		return nil
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil
	}

	// Reject a refresh token presented where an access token is expected
	// (and vice versa) even though its signature is valid.
	if claims.TokenType != expectedType {
		return nil
	}

	return claims
}
