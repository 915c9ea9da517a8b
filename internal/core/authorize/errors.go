// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package authorize

import (
	"encoding/json"
	"net/http"
)

// # OAuth Error Vocabulary (RFC 6749 §5.2)

// Error codes returned by the consent and token endpoints. These are wire
// protocol, not internal taxonomy: every negative branch of an exchange maps
// onto exactly one of them, and clients never see a bare 500.
const (
	ErrInvalidRequest       = "invalid_request"
	ErrInvalidClient        = "invalid_client"
	ErrInvalidGrant         = "invalid_grant"
	ErrUnauthorizedClient   = "unauthorized_client"
	ErrUnsupportedGrantType = "unsupported_grant_type"
	ErrAccessDenied         = "access_denied"
	ErrServerError          = "server_error"
)

// OAuthError is the structured {error, error_description} failure payload.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}

// NewOAuthError builds a protocol error with a client-safe description.
func NewOAuthError(code, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description}
}

// HTTPStatus maps the error code to its response status.
func (e *OAuthError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidClient:
		return http.StatusUnauthorized
	case ErrUnauthorizedClient:
		return http.StatusForbidden
	case ErrServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// WriteOAuthError renders the error in the RFC wire shape.
func WriteOAuthError(writer http.ResponseWriter, oauthError *OAuthError) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(oauthError.HTTPStatus())
	_ = json.NewEncoder(writer).Encode(oauthError)
}
