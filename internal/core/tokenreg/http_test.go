// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package tokenreg_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbase/accounts/internal/core/tokenreg"
	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/ctxutil"
	"github.com/lumenbase/accounts/internal/platform/sec"
	"github.com/lumenbase/accounts/pkg/pagination"
)

// # Harness

func newHandlerHarness(t *testing.T) (http.Handler, *registryHarness) {
	t.Helper()

	harness := newRegistryHarness(t, nil)
	handler := tokenreg.NewHandler(harness.service)

	deleteAccount := func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	}

	return handler.Routes(deleteAccount), harness
}

func signedInAs(userID string) *sec.AuthClaims {
	return &sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		TokenType:        sec.TokenTypeAccess,
	}
}

func doJSON(t *testing.T, router http.Handler, claims *sec.AuthClaims, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	request = request.WithContext(ctxutil.WithAuthUser(request.Context(), claims))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

// # Session Refresh

/*
TestHandler_SessionRefreshPinned verifies that the account refresh action
only rotates the caller's own first-party tokens: third-party tokens and
other users' tokens are rejected without being burned.
*/
func TestHandler_SessionRefreshPinned(t *testing.T) {
	router, harness := newHandlerHarness(t)

	thirdParty := issuePair(t, harness, "victim", "night-render", []string{"profile:read"})
	firstParty := issuePair(t, harness, "victim", constants.FirstPartyClientID, nil)
	own := issuePair(t, harness, "attacker", constants.FirstPartyClientID, nil)

	tests := []struct {
		name       string
		caller     string
		token      string
		wantStatus int
	}{
		{
			name:       "third_party_token_rejected",
			caller:     "attacker",
			token:      thirdParty.RefreshToken,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "foreign_first_party_token_rejected",
			caller:     "attacker",
			token:      firstParty.RefreshToken,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "own_first_party_token_rotates",
			caller:     "attacker",
			token:      own.RefreshToken,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"action":"refresh-session","refresh_token":"` + tt.token + `"}`
			recorder := doJSON(t, router, signedInAs(tt.caller), http.MethodPost, "/sessions", body)
			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}

	// Neither rejected attempt burned the victim's tokens.
	_, err := harness.service.Refresh(context.Background(), thirdParty.RefreshToken, "night-render", "victim")
	assert.NoError(t, err)
	_, err = harness.service.Refresh(context.Background(), firstParty.RefreshToken, constants.FirstPartyClientID, "victim")
	assert.NoError(t, err)
}

/*
TestHandler_SessionRefreshRequiresAuth verifies the guard in front of the
account surface.
*/
func TestHandler_SessionRefreshRequiresAuth(t *testing.T) {
	router, _ := newHandlerHarness(t)

	request := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"action":"refresh-session"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

// # Token Revocation

/*
TestHandler_TokenRevokeOwnership verifies that revoking a record by id is
restricted to its owner: another user's attempt is refused and leaves the
record live.
*/
func TestHandler_TokenRevokeOwnership(t *testing.T) {
	router, harness := newHandlerHarness(t)

	pair := issuePair(t, harness, "victim", "night-render", nil)
	records, _, err := harness.service.ListTokens(context.Background(), tokenreg.TokenFilter{UserID: "victim"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	body := `{"action":"revoke","id":"` + records[0].ID + `"}`

	recorder := doJSON(t, router, signedInAs("attacker"), http.MethodPost, "/tokens", body)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// The record survived and the victim's refresh token still rotates.
	assert.Equal(t, 1, harness.tokens.activeCount("victim", "night-render"))
	_, err = harness.service.Refresh(context.Background(), pair.RefreshToken, "night-render", "victim")
	require.NoError(t, err)

	// The owner revokes their rotated record.
	records, _, err = harness.service.ListTokens(context.Background(), tokenreg.TokenFilter{UserID: "victim"}, pagination.Params{})
	require.NoError(t, err)
	for _, record := range records {
		if !record.Active() {
			continue
		}
		body = `{"action":"revoke","id":"` + record.ID + `"}`
		recorder = doJSON(t, router, signedInAs("victim"), http.MethodPost, "/tokens", body)
		assert.Equal(t, http.StatusOK, recorder.Code)
	}
	assert.Equal(t, 0, harness.tokens.activeCount("victim", "night-render"))
}

/*
TestHandler_TokenRevokeAdmin verifies that the admin role may revoke any
record by id.
*/
func TestHandler_TokenRevokeAdmin(t *testing.T) {
	router, harness := newHandlerHarness(t)

	issuePair(t, harness, "victim", "night-render", nil)
	records, _, err := harness.service.ListTokens(context.Background(), tokenreg.TokenFilter{UserID: "victim"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	admin := signedInAs("root")
	admin.Role = sec.RoleAdmin

	body := `{"action":"revoke","id":"` + records[0].ID + `"}`
	recorder := doJSON(t, router, admin, http.MethodPost, "/tokens", body)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, harness.tokens.activeCount("victim", "night-render"))
}
