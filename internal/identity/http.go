// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package identity

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenbase/accounts/internal/core/tokenreg"
	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/middleware"
	requestutil "github.com/lumenbase/accounts/internal/platform/request"
	"github.com/lumenbase/accounts/internal/platform/respond"
	"github.com/lumenbase/accounts/internal/platform/sec"
	"github.com/lumenbase/accounts/internal/platform/validate"
)

// # Definitions & Constructors

// loginErrorPath is where provider-side failures land. The page reads the
// error query parameter and renders it; the server never 500s on a
// recoverable provider outcome.
const loginErrorPath = "/login"

// Handler implements identity HTTP endpoints: registration, password login,
// provider sign-in, and account deletion.
type Handler struct {
	identityService *Service
	registry        *tokenreg.Service
	bridge          *ProviderBridge
}

// NewHandler constructs a new [Handler] with its service dependencies.
func NewHandler(service *Service, registry *tokenreg.Service, bridge *ProviderBridge) *Handler {
	return &Handler{
		identityService: service,
		registry:        registry,
		bridge:          bridge,
	}
}

// Routes returns a [chi.Router] configured with identity routes.
//
// # Endpoints
//   - POST /register            : Creates a new password-class account.
//   - POST /login               : Authenticates and returns first-party tokens.
//   - GET  /login/{provider}    : Starts a provider sign-in (redirect out).
//   - GET  /callback/{provider} : Provider callback, ends in a desktop deep link.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Get("/login/{provider}", handler.providerLogin)
	router.Get("/callback/{provider}", handler.providerCallback)

	return router
}

// # Request Payloads

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*
Register handles the creation of a new password-class account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Name, Email, Password)

Response:
  - 201: User: Created profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.identityService.Register(request.Context(), RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		IP:       middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials, starts a tracked browser session (cookie),
and issues a first-party access/refresh token pair.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Tokens plus the user profile
  - 401: ErrUnauthorized: Invalid credentials
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.identityService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
		IP:       middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, started, err := handler.establishSession(request, user)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	setSessionCookie(writer, started.SessionToken)

	respond.OK(writer, map[string]any{
		FieldAccessToken:  pair.AccessToken,
		FieldRefreshToken: pair.RefreshToken,
		FieldTokenType:    "Bearer",
		FieldExpiresIn:    pair.ExpiresIn,
		FieldUser:         user,
	})
}

/*
ProviderLogin starts a provider sign-in attempt.

GET /api/v1/auth/login/{provider}

Description: Generates an anti-CSRF state value, stores it in a short-lived
cookie, and redirects the browser to the provider's authorization page.

Response:
  - 302: Redirect to the provider
  - 404: ErrNotFound: Provider not configured
*/
func (handler *Handler) providerLogin(writer http.ResponseWriter, request *http.Request) {
	provider := chi.URLParam(request, FieldProvider)

	if !handler.bridge.Enabled(provider) {
		respond.Error(writer, request, apperr.NotFound("Provider"))
		return
	}

	state, err := sec.GenerateSecureToken(16)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.OAuthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((5 * time.Minute).Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	authURL, err := handler.bridge.AuthURL(provider, state)
	if err != nil {
		respond.Error(writer, request, apperr.NotFound("Provider"))
		return
	}

	http.Redirect(writer, request, authURL, http.StatusFound)
}

/*
ProviderCallback completes a provider sign-in attempt.

GET /api/v1/auth/callback/{provider}

Description: Validates state, exchanges the provider code, resolves the local
identity, starts a session, and hands tokens to the desktop application via
its custom URI scheme. Every provider-side failure redirects back to the
login page with an error query parameter.

Response:
  - 302: Deep link `lumenstudio://auth/callback?token=...&refreshToken=...`
  - 302: Login page with ?error= on any recoverable failure
*/
func (handler *Handler) providerCallback(writer http.ResponseWriter, request *http.Request) {
	provider := chi.URLParam(request, FieldProvider)
	query := request.URL.Query()

	// The provider reports denied consent and revoked apps through an error
	// parameter; that is an expected outcome, not a fault.
	if providerError := query.Get("error"); providerError != "" {
		redirectLoginError(writer, request, providerError)
		return
	}

	stateCookie, err := request.Cookie(constants.OAuthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != query.Get("state") {
		redirectLoginError(writer, request, "state_mismatch")
		return
	}
	clearCookie(writer, constants.OAuthStateCookieName)

	profile, err := handler.bridge.Exchange(request.Context(), provider, query.Get("code"))
	if err != nil {
		redirectLoginError(writer, request, callbackErrorCode(err))
		return
	}

	user, err := handler.identityService.FindOrCreate(request.Context(), FindOrCreateInput{
		Email:     profile.Email,
		Name:      profile.Name,
		Provider:  KindForProvider(provider),
		Username:  profile.Username,
		AvatarURL: profile.AvatarURL,
		IP:        middleware.RealIP(request),
	})
	if err != nil {
		redirectLoginError(writer, request, "oauth_failed")
		return
	}

	pair, started, err := handler.establishSession(request, user)
	if err != nil {
		redirectLoginError(writer, request, "oauth_failed")
		return
	}
	setSessionCookie(writer, started.SessionToken)

	// Hand the pair to Lumen Studio through its registered URI scheme. The
	// desktop client parses the query and refreshes proactively within the
	// expiry buffer.
	deepLink := constants.DesktopCallbackScheme + "://auth/callback?" + url.Values{
		"token":        {pair.AccessToken},
		"refreshToken": {pair.RefreshToken},
	}.Encode()

	http.Redirect(writer, request, deepLink, http.StatusFound)
}

/*
DeleteAccount permanently removes the authenticated user's account.

DELETE /api/v1/account

Description: Cascade-revokes sessions, token pairs, and permission grants,
then tombstones the identity record and clears the session cookie.

Response:
  - 204: No Content: Account removed
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) DeleteAccount(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.identityService.DeleteAccount(request.Context(), claims.UserID()); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearCookie(writer, constants.SessionCookieName)
	respond.NoContent(writer)
}

// # Session Helpers

// establishSession starts a tracked session and mints the first-party pair
// bound to it.
func (handler *Handler) establishSession(request *http.Request, user *User) (*sec.TokenPair, *tokenreg.StartedSession, error) {
	started, err := handler.registry.StartSession(
		request.Context(),
		user.ID,
		request.UserAgent(),
		middleware.RealIP(request),
	)
	if err != nil {
		return nil, nil, err
	}

	pair, err := handler.registry.IssueTokens(request.Context(), tokenreg.IssueInput{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ClientID:  constants.FirstPartyClientID,
		SessionID: started.Session.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	return pair, started, nil
}

func setSessionCookie(writer http.ResponseWriter, sessionToken string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		Expires:  time.Now().Add(constants.RefreshTokenTTL),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(writer http.ResponseWriter, name string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectLoginError(writer http.ResponseWriter, request *http.Request, code string) {
	http.Redirect(writer, request, loginErrorPath+"?error="+url.QueryEscape(code), http.StatusFound)
}

// callbackErrorCode maps bridge sentinels to login-page error codes.
func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoEmail):
		return "no_email"
	case errors.Is(err, ErrUnknownProvider):
		return "unknown_provider"
	default:
		return "oauth_failed"
	}
}
