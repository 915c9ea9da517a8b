// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package tokenreg also exposes the account-facing session and token management
API.

# Endpoints

The handler is mounted under /api/v1/account and serves the security
dashboard of the Lumen Studio account pages: active sessions with risk
annotations, issued third-party tokens, and revocation actions.
*/
package tokenreg

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/middleware"
	requestutil "github.com/lumenbase/accounts/internal/platform/request"
	"github.com/lumenbase/accounts/internal/platform/respond"
	"github.com/lumenbase/accounts/internal/platform/validate"
	"github.com/lumenbase/accounts/pkg/pagination"
)

// # Definitions & Constructors

// Handler implements the session and token management HTTP endpoints.
type Handler struct {
	registry *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{registry: service}
}

// Routes returns a [chi.Router] with the account security endpoints.
//
// The account-deletion handler lives in the identity package; it is injected
// here so the whole /account surface shares one router and auth guard.
//
// # Endpoints
//   - DELETE /         : Account deletion cascade (injected handler).
//   - GET    /sessions : Active sessions with risk annotation.
//   - POST   /sessions : Session actions (refresh-session, create-session).
//   - DELETE /sessions : Terminate one session or all others.
//   - GET    /tokens   : Issued third-party tokens (admins may filter any user).
//   - POST   /tokens   : Revocation actions (revoke, revoke-all).
func (handler *Handler) Routes(deleteAccount http.HandlerFunc) chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())
		r.Delete("/", deleteAccount)
		r.Get("/sessions", handler.listSessions)
		r.Post("/sessions", handler.sessionAction)
		r.Delete("/sessions", handler.terminateSessions)
		r.Get("/tokens", handler.listTokens)
		r.Post("/tokens", handler.tokenAction)
	})

	return router
}

// # Request Payloads

type sessionActionRequest struct {
	Action       string `json:"action"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type terminateRequest struct {
	SessionToken string `json:"session_token,omitempty"`
	TerminateAll bool   `json:"terminate_all,omitempty"`
}

type tokenActionRequest struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	AppID  string `json:"app_id,omitempty"`
}

/*
ListSessions returns the caller's active sessions annotated with risk.

GET /api/v1/account/sessions

Response:
  - 200: []SessionView: Sessions newest-activity first, current one flagged
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) listSessions(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	views, err := handler.registry.ListSessions(request.Context(), claims.UserID(), claims.SessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, views)
}

/*
SessionAction dispatches session lifecycle actions.

POST /api/v1/account/sessions

Description: "refresh-session" rotates a refresh token into a new pair;
"create-session" establishes an additional first-party session (for device
handoff) and sets its cookie. Refresh is pinned to the first-party client
and to the signed-in user, so third-party or foreign tokens presented here
are rejected without being burned.

Request:
  - Body: sessionActionRequest (Action, RefreshToken?)

Response:
  - 200: Pair or session payload
  - 400: ErrInvalidJSON: Unknown action
  - 401: ErrUnauthorized: Refresh token invalid or rotated away
*/
func (handler *Handler) sessionAction(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input sessionActionRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	switch input.Action {
	case "refresh-session":
		if input.RefreshToken == "" {
			respond.Error(writer, request, validate.RequiredError("refresh_token", "is required"))
			return
		}

		pair, err := handler.registry.Refresh(request.Context(), input.RefreshToken, constants.FirstPartyClientID, claims.UserID())
		if err != nil {
			if errors.Is(err, ErrTokenInvalid) {
				respond.Error(writer, request, apperr.Unauthorized("Refresh token is invalid or expired"))
				return
			}
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, map[string]any{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_in":    pair.ExpiresIn,
		})

	case "create-session":
		started, err := handler.registry.StartSession(
			request.Context(),
			claims.UserID(),
			request.UserAgent(),
			middleware.RealIP(request),
		)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		http.SetCookie(writer, &http.Cookie{
			Name:     constants.SessionCookieName,
			Value:    started.SessionToken,
			Path:     "/",
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		respond.Created(writer, started.Session)

	default:
		respond.Error(writer, request, apperr.ValidationError("Unknown session action"))
	}
}

/*
TerminateSessions ends one session or all but the current one.

DELETE /api/v1/account/sessions

Request:
  - Body: terminateRequest (SessionToken | TerminateAll)

Response:
  - 200: Count of terminated sessions
  - 400: ErrInvalidJSON: Neither field supplied
*/
func (handler *Handler) terminateSessions(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input terminateRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	switch {
	case input.TerminateAll:
		// The requester's own session is excluded by id; it must survive.
		count, err := handler.registry.TerminateOthers(request.Context(), claims.UserID(), claims.SessionID)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, map[string]any{FieldTerminated: count})

	case input.SessionToken != "":
		if err := handler.registry.TerminateSession(request.Context(), input.SessionToken); err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, map[string]any{FieldTerminated: 1})

	default:
		respond.Error(writer, request, apperr.ValidationError("Provide session_token or terminate_all"))
	}
}

/*
ListTokens returns issued third-party tokens.

GET /api/v1/account/tokens?user_id=&app_id=&page=&limit=

Description: Non-admin callers are always restricted to their own tokens;
the user_id filter is only honored for admins.

Response:
  - 200: Paginated token records
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) listTokens(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	filter := TokenFilter{
		UserID:   request.URL.Query().Get(FieldUserID),
		ClientID: request.URL.Query().Get(FieldAppID),
	}

	if !claims.IsAdmin() {
		filter.UserID = claims.UserID()
	}

	params := pagination.FromRequest(request)
	records, total, err := handler.registry.ListTokens(request.Context(), filter, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, records, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
TokenAction dispatches revocation actions.

POST /api/v1/account/tokens

Description: "revoke" revokes one record by id; "revoke-all" bulk-revokes a
user's tokens, optionally narrowed to one application. Non-admins may only
act on their own tokens.

Request:
  - Body: tokenActionRequest (Action, ID?, UserID?, AppID?)

Response:
  - 200: Revocation result
  - 403: ErrForbidden: Cross-user action without admin role
*/
func (handler *Handler) tokenAction(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input tokenActionRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	targetUser := input.UserID
	if targetUser == "" {
		targetUser = claims.UserID()
	}
	if targetUser != claims.UserID() && !claims.IsAdmin() {
		respond.Error(writer, request, apperr.Forbidden("Cannot manage another user's tokens"))
		return
	}

	switch input.Action {
	case "revoke":
		if input.ID == "" {
			respond.Error(writer, request, validate.RequiredError(FieldTokenID, "is required"))
			return
		}
		// Admins revoke by id alone; everyone else must own the record.
		owner := claims.UserID()
		if claims.IsAdmin() {
			owner = ""
		}
		if err := handler.registry.RevokeToken(request.Context(), input.ID, owner); err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, map[string]any{FieldRevoked: 1})

	case "revoke-all":
		count, err := handler.registry.RevokeAll(request.Context(), targetUser, input.AppID)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.OK(writer, map[string]any{FieldRevoked: count})

	default:
		respond.Error(writer, request, apperr.ValidationError("Unknown token action"))
	}
}
