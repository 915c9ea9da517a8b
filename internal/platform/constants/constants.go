// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Fixed-window budgets per route class plus burst protection.
  - Security: Token lifetimes, session caps, and risk-scoring weights.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "lumenbase-accounts"
	AppVersion = "0.3.0"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ProviderCallTimeout bounds outbound identity-provider calls (code exchange,
	// profile fetch) so a slow provider cannot hang a login request.
	ProviderCallTimeout = 10 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// RateLimitWindow is the fixed-window length for per-class request budgets.
	RateLimitWindow = 15 * time.Minute

	// RateLimitGeneral is the per-IP budget for general API routes per window.
	RateLimitGeneral = 100

	// RateLimitOAuth is the per-IP budget for OAuth endpoints per window.
	// Tighter than general: token and consent endpoints are attack surface.
	RateLimitOAuth = 50

	// RateLimitExternalAPI is the per-IP budget for registered-application
	// API routes per window. Looser: legitimate desktop clients poll these.
	RateLimitExternalAPI = 200

	// BurstRateLimitRPS is the requests per second allowed per IP by the
	// global token-bucket burst limiter (independent of windowed budgets).
	BurstRateLimitRPS = 25.0

	// BurstRateLimitSize is the maximum burst allowed by the token bucket.
	BurstRateLimitSize = 50

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication & Token Lifetimes

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "accounts.lumenbase.app"

	// AccessTokenTTL is the duration a JWT access token remains valid.
	AccessTokenTTL = 1 * time.Hour

	// RefreshTokenTTL is the duration a refresh token remains valid.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// AuthCodeTTL is the lifetime of a single-use authorization code.
	AuthCodeTTL = 10 * time.Minute

	// AuthCodeLength is the byte length of the random opaque code.
	AuthCodeLength = 32

	// TokenRefreshBuffer is how close to expiry a desktop client should treat
	// an access token as needing proactive refresh.
	TokenRefreshBuffer = 5 * time.Minute

	// SessionTokenLength is the byte length of the random opaque session token.
	SessionTokenLength = 32

	// SessionCap is the maximum number of concurrent active sessions per user.
	// The least-recently-active session is evicted on overflow.
	SessionCap = 10

	// SessionIdleTimeout marks a session stale on protected routes when its
	// last activity is older than this, forcing re-authentication. This is a
	// UX/security control distinct from token expiry.
	SessionIdleTimeout = 24 * time.Hour

	// LoginHistoryLimit bounds the per-user login history window.
	LoginHistoryLimit = 20

	// SessionCookieName is the name of the cookie that stores the session token.
	SessionCookieName = "lb_session"

	// OAuthStateCookieName stores the anti-CSRF state during provider sign-in.
	OAuthStateCookieName = "lb_oauth_state"

	// DesktopCallbackScheme is the custom URI scheme used by the Lumen Studio
	// desktop application for deep-link auth callbacks.
	DesktopCallbackScheme = "lumenstudio"

	// FirstPartyClientID is the audience stamped on token pairs issued to
	// Lumen Studio itself, as opposed to registered third-party applications.
	FirstPartyClientID = "lumen-studio"
)

// # Session Risk Scoring
//
// Advisory only: risk levels inform the security dashboard and alerting,
// they never block an operation by themselves.

const (
	// RiskSessionMaxAge adds weight when a session is older than this.
	RiskSessionMaxAge = 14 * 24 * time.Hour
	// RiskSessionAgeWeight is added when RiskSessionMaxAge is exceeded.
	RiskSessionAgeWeight = 20

	// RiskSessionMaxIdle adds weight when a session has been inactive longer.
	RiskSessionMaxIdle = 7 * 24 * time.Hour
	// RiskSessionIdleWeight is added when RiskSessionMaxIdle is exceeded.
	RiskSessionIdleWeight = 30

	// RiskUnknownIPWeight is added when the session IP does not appear in the
	// user's recent login history.
	RiskUnknownIPWeight = 25

	// RiskHighThreshold and RiskMediumThreshold bucket the summed score.
	RiskHighThreshold   = 50
	RiskMediumThreshold = 25
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderRetryAfter    = "Retry-After"
	HeaderAuthorization = "Authorization"

	// AuthSchemeBearer prefixes access tokens in the Authorization header.
	AuthSchemeBearer = "Bearer "
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
)

// # Database Schemas

const (
	SchemaUsers = "users"
	SchemaOAuth = "oauth"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixAuthCode  = "oauth:code:"
	RedisPrefixRateLimit = "rate:"
)
