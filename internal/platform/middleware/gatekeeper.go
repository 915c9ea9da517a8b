// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/ctxutil"
	"github.com/lumenbase/accounts/internal/platform/ratestore"
)

// # Route Classification

// RouteClass buckets requests for windowed rate limiting. Each class carries
// its own budget per window so that heavy third-party traffic cannot starve
// interactive users, and the token endpoints stay hard to brute-force.
type RouteClass string

const (
	ClassGeneral     RouteClass = "general"
	ClassOAuth       RouteClass = "oauth"
	ClassExternalAPI RouteClass = "external"
)

// Budget returns the number of requests the class allows per window.
func (class RouteClass) Budget() int64 {
	switch class {
	case ClassOAuth:
		return constants.RateLimitOAuth
	case ClassExternalAPI:
		return constants.RateLimitExternalAPI
	default:
		return constants.RateLimitGeneral
	}
}

// ClassifyRoute decides which budget a request draws from.
//
// Token and consent endpoints are the tightest class. Requests presenting a
// Bearer token are treated as third-party application traffic. Everything
// else, including cookie-session browser traffic, falls into the general class.
func ClassifyRoute(request *http.Request) RouteClass {
	path := request.URL.Path

	if strings.HasPrefix(path, "/api/v1/oauth/") {
		return ClassOAuth
	}

	if strings.HasPrefix(request.Header.Get(constants.HeaderAuthorization), constants.AuthSchemeBearer) {
		return ClassExternalAPI
	}

	return ClassGeneral
}

// # Session Freshness

// SessionFreshener is satisfied by the session registry. Touch records
// activity for the session and reports whether the session had already gone
// stale before this request arrived.
type SessionFreshener interface {
	Touch(ctx context.Context, sessionID, ip string) (stale bool, err error)
}

// # Gatekeeper

// Gatekeeper enforces the windowed per-class rate limits, keeps cookie
// sessions fresh, and flags suspicious traffic. It runs after Authenticate so
// that session identity is available from the request context.
type Gatekeeper struct {
	store     ratestore.Store
	freshener SessionFreshener
	logger    *slog.Logger
}

// NewGatekeeper wires the gatekeeper against a rate-limit store and the
// session registry. The freshener may be nil, in which case session staleness
// is not enforced here.
func NewGatekeeper(store ratestore.Store, freshener SessionFreshener, logger *slog.Logger) *Gatekeeper {
	return &Gatekeeper{
		store:     store,
		freshener: freshener,
		logger:    logger,
	}
}

// RateLimitByClass enforces the fixed-window budget for the request's class.
// Counters are keyed per client IP so one abusive address cannot consume the
// budget of others.
func (gatekeeper *Gatekeeper) RateLimitByClass() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			class := ClassifyRoute(request)
			key := string(class) + ":" + RealIP(request)

			count, resetIn, err := gatekeeper.store.Incr(request.Context(), key, constants.RateLimitWindow)
			if err != nil {
				// The limiter is advisory infrastructure. If the backing
				// store is unreachable we let the request through rather
				// than turning a cache outage into an API outage.
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "rate_limit_store_unavailable",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(writer, request)
				return
			}

			if count > class.Budget() {
				retryAfter := int64(resetIn.Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				writer.Header().Set(constants.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
				writeError(writer, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Rate limit exceeded for this endpoint class")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// SessionFreshness rejects cookie sessions that have been idle past the
// staleness window and records activity for the ones that have not. Bearer
// token requests pass through untouched; their lifetime is bounded by the
// token expiry instead.
func (gatekeeper *Gatekeeper) SessionFreshness() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			claims := ctxutil.GetAuthUser(request.Context())

			// Only cookie sessions participate in freshness tracking.
			if gatekeeper.freshener == nil || claims == nil || claims.SessionID == "" ||
				strings.HasPrefix(request.Header.Get(constants.HeaderAuthorization), constants.AuthSchemeBearer) {
				next.ServeHTTP(writer, request)
				return
			}

			stale, err := gatekeeper.freshener.Touch(request.Context(), claims.SessionID, RealIP(request))
			if err != nil {
				ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "session_touch_failed",
					slog.String("session_id", claims.SessionID),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(writer, request)
				return
			}

			if stale {
				writeError(writer, http.StatusUnauthorized, "SESSION_STALE", "Session expired due to inactivity, please sign in again")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Suspicious Traffic

var botSignatures = []string{"curl/", "python-requests", "go-http-client", "scrapy", "wget/"}

// FlagSuspicious logs requests that look automated or malformed. It never
// blocks: the signal feeds operator dashboards, and legitimate scripted
// clients exist.
func (gatekeeper *Gatekeeper) FlagSuspicious() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			userAgent := strings.ToLower(request.UserAgent())
			var reasons []string

			if userAgent == "" {
				reasons = append(reasons, "missing_user_agent")
			}

			for _, signature := range botSignatures {
				if strings.Contains(userAgent, signature) {
					reasons = append(reasons, "bot_user_agent")
					break
				}
			}

			if strings.Contains(request.URL.Path, "..") {
				reasons = append(reasons, "path_traversal_attempt")
			}

			if len(reasons) > 0 {
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "suspicious_request",
					slog.String("ip", RealIP(request)),
					slog.String("user_agent", request.UserAgent()),
					slog.Any("reasons", reasons),
				)
			}

			next.ServeHTTP(writer, request)
		})
	}
}
