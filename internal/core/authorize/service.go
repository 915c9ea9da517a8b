// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package authorize is the authorization server: it orchestrates the consent
flow and the two token-issuance grants on top of the application registry,
the code store, the permission ledger, and the token registry.

# State Machine

	consent-pending -> {approved, denied}
	code-issued     -> {redeemed, expired}
	token-issued    -> {active, revoked, expired}

Consent approval moves the ledger to approved and mints a single-use code;
the token endpoint redeems the code (or rotates a refresh token) into a
registered pair. Every negative branch speaks the RFC 6749 error vocabulary.
*/
package authorize

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/lumenbase/accounts/internal/core/authcode"
	"github.com/lumenbase/accounts/internal/core/client"
	"github.com/lumenbase/accounts/internal/core/grant"
	"github.com/lumenbase/accounts/internal/core/tokenreg"
	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/sec"
)

// # Service

// Service composes the authorization-core components.
type Service struct {
	apps      client.Repository
	codes     *authcode.Service
	registry  *tokenreg.Service
	grants    *grant.Service
	directory tokenreg.Directory
	logger    *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	apps client.Repository,
	codes *authcode.Service,
	registry *tokenreg.Service,
	grants *grant.Service,
	directory tokenreg.Directory,
	logger *slog.Logger,
) *Service {
	return &Service{
		apps:      apps,
		codes:     codes,
		registry:  registry,
		grants:    grants,
		directory: directory,
		logger:    logger,
	}
}

// # Consent Flow

// ConsentView is everything the consent screen needs to render.
type ConsentView struct {
	AppName         string                  `json:"app_name"`
	AppDescription  string                  `json:"app_description,omitempty"`
	AppWebsite      string                  `json:"app_website,omitempty"`
	AppIcon         string                  `json:"app_icon,omitempty"`
	RequestedScopes []grant.ScopeDefinition `json:"requested_scopes"`
	GrantedScopes   []string                `json:"granted_scopes"`
	MissingScopes   []string                `json:"missing_scopes"`
}

/*
ConsentContext resolves the consent screen state for an authorization request.

Description: Requested scopes already granted in the ledger are separated
from the ones still missing, so the screen only asks for the delta. Admin
gated and sensitive scopes are surfaced through their catalog definitions.

Parameters:
  - context: context.Context
  - userID: string
  - clientID: string
  - redirectURI: string
  - scopeRaw: string (space-delimited)

Returns:
  - *ConsentView: Render-ready consent state
  - *OAuthError: invalid_request, invalid_client, unauthorized_client, server_error
*/
func (service *Service) ConsentContext(context context.Context, userID, clientID, redirectURI, scopeRaw string) (*ConsentView, *OAuthError) {

	app, oauthErr := service.admitApp(context, clientID, redirectURI)
	if oauthErr != nil {
		return nil, oauthErr
	}

	requested := grant.ParseScopes(scopeRaw)
	if len(requested) == 0 {
		return nil, NewOAuthError(ErrInvalidRequest, "No valid scopes requested")
	}

	aggregate, err := service.grants.Ensure(context, clientID, userID, requested)
	if err != nil {
		return nil, service.internal(context, "consent_grant_ensure_failed", err)
	}

	view := &ConsentView{
		AppName:        app.Name,
		AppDescription: app.Description,
		AppWebsite:     app.Website,
		AppIcon:        app.IconURL,
		GrantedScopes:  aggregate.GrantedScopes(),
		MissingScopes:  aggregate.MissingScopes(requested),
	}

	for _, scope := range requested {
		if definition, known := grant.LookupScope(scope); known {
			view.RequestedScopes = append(view.RequestedScopes, definition)
		}
	}

	return view, nil
}

// ApproveInput carries a consent approval decision.
type ApproveInput struct {
	UserID              string
	ActorIsAdmin        bool
	ClientID            string
	RedirectURI         string
	State               string
	ApprovedScopes      []string
	CodeChallenge       string
	CodeChallengeMethod string
}

/*
Approve records the user's consent and mints a single-use authorization code.

Description: The ledger transition happens before the code exists, so a code
always points at an approved grant. The returned URL carries code and state
back to the application's redirect target.

Parameters:
  - context: context.Context
  - input: ApproveInput

Returns:
  - string: Redirect URL with code and state appended
  - *OAuthError: invalid_request, invalid_client, unauthorized_client, server_error
*/
func (service *Service) Approve(context context.Context, input ApproveInput) (string, *OAuthError) {

	if _, oauthErr := service.admitApp(context, input.ClientID, input.RedirectURI); oauthErr != nil {
		return "", oauthErr
	}

	granted, err := service.grants.ApproveScopes(context, grant.ApprovalInput{
		ClientID:       input.ClientID,
		UserID:         input.UserID,
		ApprovedScopes: input.ApprovedScopes,
		Actor:          input.UserID,
		ActorIsAdmin:   input.ActorIsAdmin,
	})
	if err != nil {
		return "", service.internal(context, "consent_approve_failed", err)
	}

	if len(granted) == 0 {
		return "", NewOAuthError(ErrInvalidRequest, "No approvable scopes selected")
	}

	code, err := service.codes.Issue(context, authcode.IssueInput{
		UserID:              input.UserID,
		ClientID:            input.ClientID,
		Scopes:              granted,
		RedirectURI:         input.RedirectURI,
		CodeChallenge:       input.CodeChallenge,
		CodeChallengeMethod: input.CodeChallengeMethod,
	})
	if err != nil {
		return "", service.internal(context, "consent_code_issue_failed", err)
	}

	return AppendQuery(input.RedirectURI, map[string]string{
		"code":  code,
		"state": input.State,
	}), nil
}

// DenyRedirect builds the redirect for a declined consent. No code is
// created; the application learns the outcome from the error parameter.
func DenyRedirect(redirectURI, state string) string {
	return AppendQuery(redirectURI, map[string]string{
		"error": ErrAccessDenied,
		"state": state,
	})
}

// # Token Endpoint

// ExchangeInput is the parsed token-endpoint request body.
type ExchangeInput struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
}

// TokenResponse is the RFC-shaped success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

/*
Exchange implements both token-issuance grants.

Parameters:
  - context: context.Context
  - input: ExchangeInput

Returns:
  - *TokenResponse: Issued pair in wire shape
  - *OAuthError: The full RFC vocabulary per branch
*/
func (service *Service) Exchange(context context.Context, input ExchangeInput) (*TokenResponse, *OAuthError) {
	switch input.GrantType {
	case "authorization_code":
		return service.exchangeCode(context, input)
	case "refresh_token":
		return service.exchangeRefresh(context, input)
	default:
		return nil, NewOAuthError(ErrUnsupportedGrantType, "Supported grant types: authorization_code, refresh_token")
	}
}

func (service *Service) exchangeCode(context context.Context, input ExchangeInput) (*TokenResponse, *OAuthError) {

	// ── 1. Required fields ──
	if input.ClientID == "" || input.Code == "" || input.RedirectURI == "" {
		return nil, NewOAuthError(ErrInvalidRequest, "client_id, code, and redirect_uri are required")
	}
	if input.ClientSecret == "" && input.CodeVerifier == "" {
		return nil, NewOAuthError(ErrInvalidRequest, "Either client_secret or code_verifier is required")
	}

	// ── 2. Application admission ──
	app, oauthErr := service.lookupApp(context, input.ClientID)
	if oauthErr != nil {
		return nil, oauthErr
	}
	if !app.IsActive() {
		return nil, NewOAuthError(ErrUnauthorizedClient, "Application is suspended")
	}

	// ── 3. Client authentication ──
	// A PKCE verifier stands in for the secret (public clients); redemption
	// rejects it unless the code was actually bound to a challenge. Without
	// one, the secret must match exactly, including for PKCE-required apps.
	if input.CodeVerifier == "" && !app.VerifySecret(input.ClientSecret) {
		return nil, NewOAuthError(ErrInvalidClient, "Client authentication failed")
	}

	// ── 4. Code redemption (single-use, PKCE checked inside) ──
	code, err := service.codes.Redeem(context, authcode.RedeemInput{
		Code:         input.Code,
		ClientID:     input.ClientID,
		RedirectURI:  input.RedirectURI,
		CodeVerifier: input.CodeVerifier,
	})
	if err != nil {
		switch {
		case errors.Is(err, authcode.ErrCodeInvalid),
			errors.Is(err, authcode.ErrClientMismatch),
			errors.Is(err, authcode.ErrRedirectMismatch),
			errors.Is(err, authcode.ErrPKCEFailed):
			return nil, NewOAuthError(ErrInvalidGrant, "Authorization code is invalid, expired, or mismatched")
		default:
			return nil, service.internal(context, "code_redemption_failed", err)
		}
	}

	// ── 5. Ledger check: consent may have been withdrawn since issuance ──
	allowed, err := service.grants.ScopesAllowed(context, input.ClientID, code.UserID, code.Scopes)
	if err != nil {
		return nil, service.internal(context, "ledger_check_failed", err)
	}
	if !allowed {
		return nil, NewOAuthError(ErrInvalidGrant, "Granted scopes are no longer authorized")
	}

	// ── 6. Token issuance ──
	entry, err := service.directory.DirectoryEntry(context, code.UserID)
	if err != nil {
		return nil, service.internal(context, "directory_lookup_failed", err)
	}

	pair, err := service.registry.IssueTokens(context, tokenreg.IssueInput{
		UserID:   code.UserID,
		Email:    entry.Email,
		Name:     entry.Name,
		ClientID: input.ClientID,
		Scopes:   code.Scopes,
	})
	if err != nil {
		return nil, service.internal(context, "token_issuance_failed", err)
	}

	return wireResponse(pair, code.Scopes), nil
}

func (service *Service) exchangeRefresh(context context.Context, input ExchangeInput) (*TokenResponse, *OAuthError) {

	// ── 1. Required fields: confidential-client flow, secret is mandatory ──
	if input.ClientID == "" || input.RefreshToken == "" || input.ClientSecret == "" {
		return nil, NewOAuthError(ErrInvalidRequest, "client_id, client_secret, and refresh_token are required")
	}

	// ── 2. Application admission ──
	app, oauthErr := service.lookupApp(context, input.ClientID)
	if oauthErr != nil {
		return nil, oauthErr
	}
	if !app.IsActive() {
		return nil, NewOAuthError(ErrUnauthorizedClient, "Application is suspended")
	}
	if !app.VerifySecret(input.ClientSecret) {
		return nil, NewOAuthError(ErrInvalidClient, "Client authentication failed")
	}

	// ── 3. Rotation: old revoked, new issued, original scopes preserved ──
	// The client authenticated by secret above; the record is pinned to it.
	pair, err := service.registry.Refresh(context, input.RefreshToken, input.ClientID, "")
	if err != nil {
		if errors.Is(err, tokenreg.ErrTokenInvalid) {
			return nil, NewOAuthError(ErrInvalidGrant, "Refresh token is invalid, expired, or revoked")
		}
		return nil, service.internal(context, "refresh_rotation_failed", err)
	}

	// The pair's scopes live on the registry record; rebuild the wire scope
	// string from the rotated access token's claims.
	scopes := service.scopesFromAccess(pair)

	return wireResponse(pair, scopes), nil
}

// # Internals

// admitApp resolves an application and validates its redirect allow-list.
func (service *Service) admitApp(context context.Context, clientID, redirectURI string) (*client.App, *OAuthError) {
	app, oauthErr := service.lookupApp(context, clientID)
	if oauthErr != nil {
		return nil, oauthErr
	}

	if !app.IsActive() {
		return nil, NewOAuthError(ErrUnauthorizedClient, "Application is suspended")
	}

	if !app.AllowsRedirect(redirectURI) {
		return nil, NewOAuthError(ErrInvalidRequest, "redirect_uri is not on the application's allow-list")
	}

	return app, nil
}

func (service *Service) lookupApp(context context.Context, clientID string) (*client.App, *OAuthError) {
	app, err := service.apps.FindByClientID(context, clientID)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, NewOAuthError(ErrInvalidClient, "Unknown client_id")
		}
		return nil, service.internal(context, "app_lookup_failed", err)
	}
	return app, nil
}

// internal logs the underlying fault and returns an opaque server_error.
func (service *Service) internal(context context.Context, event string, err error) *OAuthError {
	service.logger.ErrorContext(context, event, slog.String("error", err.Error()))
	return NewOAuthError(ErrServerError, "An unexpected error occurred")
}

func (service *Service) scopesFromAccess(pair *sec.TokenPair) []string {
	// IssuePair round-trips the access token internally, so verification here
	// cannot fail for a pair we just minted.
	if claims := service.registry.VerifyAccess(pair.AccessToken); claims != nil {
		return claims.Scopes
	}
	return nil
}

func wireResponse(pair *sec.TokenPair, scopes []string) *TokenResponse {
	return &TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
		RefreshToken: pair.RefreshToken,
		Scope:        grant.JoinScopes(scopes),
	}
}

// AppendQuery appends parameters to a redirect URI, tolerating custom URI
// schemes used by desktop callbacks.
func AppendQuery(redirectURI string, params map[string]string) string {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		// The URI was validated against the allow-list already; fall back to
		// naive concatenation rather than dropping the redirect.
		query := url.Values{}
		for key, value := range params {
			query.Set(key, value)
		}
		separator := "?"
		if containsQuery(redirectURI) {
			separator = "&"
		}
		return redirectURI + separator + query.Encode()
	}

	query := parsed.Query()
	for key, value := range params {
		if value != "" {
			query.Set(key, value)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func containsQuery(uri string) bool {
	for _, ch := range uri {
		if ch == '?' {
			return true
		}
	}
	return false
}
