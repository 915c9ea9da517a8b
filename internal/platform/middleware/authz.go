// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/ctxutil"
	"github.com/lumenbase/accounts/internal/platform/sec"
)

// # Identity Resolution

// IdentityResolver turns request credentials into verified claims. A resolver
// returns nil claims, not an error, when its credential type is absent or
// fails verification; errors are reserved for infrastructure faults such as
// an unreachable session store.
type IdentityResolver interface {
	Resolve(request *http.Request) (*sec.AuthClaims, error)
}

// BearerResolver authenticates requests carrying a signed access token in the
// Authorization header. This is the path third-party applications use.
type BearerResolver struct {
	tokens *sec.TokenService
}

func NewBearerResolver(tokens *sec.TokenService) *BearerResolver {
	return &BearerResolver{tokens: tokens}
}

func (resolver *BearerResolver) Resolve(request *http.Request) (*sec.AuthClaims, error) {
	header := request.Header.Get(constants.HeaderAuthorization)
	if !strings.HasPrefix(header, constants.AuthSchemeBearer) {
		return nil, nil
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(header, constants.AuthSchemeBearer))
	if tokenString == "" {
		return nil, nil
	}

	// Verification failures yield nil claims so the chain can fall through
	// to other resolvers or to an anonymous request.
	return resolver.tokens.VerifyAccessToken(tokenString), nil
}

// SessionSource resolves an opaque session cookie token to verified claims.
// The session registry implements it.
type SessionSource interface {
	ResolveSession(ctx context.Context, sessionToken string) (*sec.AuthClaims, error)
}

// SessionResolver authenticates first-party browser requests via the session
// cookie. This is the path the account dashboard and consent screens use.
type SessionResolver struct {
	sessions SessionSource
}

func NewSessionResolver(sessions SessionSource) *SessionResolver {
	return &SessionResolver{sessions: sessions}
}

func (resolver *SessionResolver) Resolve(request *http.Request) (*sec.AuthClaims, error) {
	cookie, err := request.Cookie(constants.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	return resolver.sessions.ResolveSession(request.Context(), cookie.Value)
}

// # Authentication Chain

// Authenticate tries each resolver in order and attaches the first verified
// identity to the request context. Anonymous requests pass through; route
// protection is the job of RequireAuth and friends.
func Authenticate(resolvers ...IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			for _, resolver := range resolvers {
				claims, err := resolver.Resolve(request)
				if err != nil {
					ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "identity_resolution_failed",
						"error", err.Error(),
					)
					writeError(writer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Unable to verify credentials")
					return
				}

				if claims != nil {
					ctx := ctxutil.WithAuthUser(request.Context(), claims)
					next.ServeHTTP(writer, request.WithContext(ctx))
					return
				}
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// # Access Guards

// RequireAuth rejects requests that carry no verified identity.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			if ctxutil.GetAuthUser(request.Context()) == nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireAdmin rejects authenticated requests whose identity lacks the admin
// role. It must run after RequireAuth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			claims := ctxutil.GetAuthUser(request.Context())
			if claims == nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !claims.IsAdmin() {
				writeError(writer, http.StatusForbidden, "FORBIDDEN", "Administrator access required")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// RequireScope rejects requests whose token was not granted the named scope.
// Admin identities pass every scope check.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			claims := ctxutil.GetAuthUser(request.Context())
			if claims == nil {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if !claims.HasScope(scope) {
				writeError(writer, http.StatusForbidden, "INSUFFICIENT_SCOPE", "Token lacks the required scope: "+scope)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// GetUser returns the verified claims for the request, or nil when anonymous.
func GetUser(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetAuthUser(request.Context())
}
