// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package authorize

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenbase/accounts/internal/platform/middleware"
	requestutil "github.com/lumenbase/accounts/internal/platform/request"
	"github.com/lumenbase/accounts/internal/platform/respond"
	"github.com/lumenbase/accounts/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authorization server's HTTP surface.
//
// # Scope
//
// Two audiences share this handler: the consent endpoints are browser-facing
// and session-authenticated, while the token endpoint is machine-facing and
// authenticates the application itself (secret or PKCE). Their error shapes
// differ accordingly: consent speaks the API envelope, the token endpoint
// speaks RFC 6749 wire JSON.
type Handler struct {
	authServer *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authServer: service}
}

// Routes returns a [chi.Router] with the authorization endpoints.
//
// # Endpoints
//   - GET  /consent : Consent screen context (requires session).
//   - POST /consent : Approve a scope subset, returns the code redirect.
//   - POST /token   : Token exchange (authorization_code | refresh_token).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())
		r.Get("/consent", handler.consentContext)
		r.Post("/consent", handler.approveConsent)
	})

	// Machine-facing; the request authenticates the application, not a user.
	router.Post("/token", handler.token)

	return router
}

// # Request Payloads

type approveRequest struct {
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri"`
	State               string   `json:"state"`
	ApprovedScopes      []string `json:"approved_scopes"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
}

/*
ConsentContext renders the consent screen state.

GET /api/v1/oauth/consent?client_id=&redirect_uri=&scope=&state=

Response:
  - 200: ConsentView: App display hints, requested/granted/missing scopes
  - 400: OAuthError: invalid_request or invalid_client
  - 401: ErrUnauthorized: No session
*/
func (handler *Handler) consentContext(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	query := request.URL.Query()
	view, oauthErr := handler.authServer.ConsentContext(
		request.Context(),
		claims.UserID(),
		query.Get("client_id"),
		query.Get("redirect_uri"),
		query.Get("scope"),
	)
	if oauthErr != nil {
		WriteOAuthError(writer, oauthErr)
		return
	}

	respond.OK(writer, view)
}

/*
ApproveConsent records the user's approval and returns the code redirect.

POST /api/v1/oauth/consent

Description: The user approves a subset of the requested scopes. On success
the response carries the redirect URL with code and state appended; denial
never reaches this endpoint (it is a client-side redirect with
error=access_denied).

Request:
  - Body: approveRequest

Response:
  - 200: {success, redirect_url}
  - 400: OAuthError: invalid_request or no approvable scopes
  - 401: ErrUnauthorized: No session
*/
func (handler *Handler) approveConsent(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input approveRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required("client_id", input.ClientID).
		Required("redirect_uri", input.RedirectURI).
		RedirectURI("redirect_uri", input.RedirectURI)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	redirectURL, oauthErr := handler.authServer.Approve(request.Context(), ApproveInput{
		UserID:              claims.UserID(),
		ActorIsAdmin:        claims.IsAdmin(),
		ClientID:            input.ClientID,
		RedirectURI:         input.RedirectURI,
		State:               input.State,
		ApprovedScopes:      input.ApprovedScopes,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: input.CodeChallengeMethod,
	})
	if oauthErr != nil {
		WriteOAuthError(writer, oauthErr)
		return
	}

	respond.OK(writer, map[string]any{
		"success":      true,
		"redirect_url": redirectURL,
	})
}

/*
Token implements the token endpoint for both grants.

POST /api/v1/oauth/token

Description: Accepts application/x-www-form-urlencoded bodies per RFC 6749.
Success and failure both use the RFC wire shape, never the API envelope.

Request:
  - Form: grant_type, client_id, plus per-grant fields (§ package doc)

Response:
  - 200: TokenResponse
  - 4xx/5xx: OAuthError per the standard vocabulary
*/
func (handler *Handler) token(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		WriteOAuthError(writer, NewOAuthError(ErrInvalidRequest, "Malformed request body"))
		return
	}

	form := request.PostForm
	response, oauthErr := handler.authServer.Exchange(request.Context(), ExchangeInput{
		GrantType:    form.Get("grant_type"),
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: form.Get("code_verifier"),
		RefreshToken: form.Get("refresh_token"),
	})
	if oauthErr != nil {
		WriteOAuthError(writer, oauthErr)
		return
	}

	respond.JSON(writer, http.StatusOK, response)
}
