// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package tokenreg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/constants"
	"github.com/lumenbase/accounts/internal/platform/sec"
	"github.com/lumenbase/accounts/pkg/pagination"
	"github.com/lumenbase/accounts/pkg/uuidv7"
)

// # Contracts & Types

// AppCounter updates a registered application's token usage statistics.
// The client repository implements it.
type AppCounter interface {
	RecordIssuance(context context.Context, clientID string) error
	AdjustActiveTokens(context context.Context, clientID string, delta int64) error
}

// DirectoryEntry is the slice of identity data the registry needs when it
// rebuilds claims or scores sessions.
type DirectoryEntry struct {
	Email    string
	Name     string
	KnownIPs []string
}

// Directory resolves a user id into its directory entry. The identity
// service implements it.
type Directory interface {
	DirectoryEntry(context context.Context, userID string) (*DirectoryEntry, error)
}

// ErrTokenInvalid marks an expected refresh failure (unknown, expired, or
// already rotated token). The token endpoint maps it to invalid_grant.
var ErrTokenInvalid = errors.New("refresh token is invalid, expired, or revoked")

// Service orchestrates token pair issuance, rotation, revocation, and the
// lifecycle of first-party sessions.
type Service struct {
	tokens    TokenRepository
	sessions  SessionRepository
	codec     *sec.TokenService
	apps      AppCounter
	directory Directory
	logger    *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	tokens TokenRepository,
	sessions SessionRepository,
	codec *sec.TokenService,
	apps AppCounter,
	directory Directory,
	logger *slog.Logger,
) *Service {
	return &Service{
		tokens:    tokens,
		sessions:  sessions,
		codec:     codec,
		apps:      apps,
		directory: directory,
		logger:    logger,
	}
}

// # Token Pair Issuance

// IssueInput carries everything needed to mint and register a token pair.
type IssueInput struct {
	UserID    string
	Email     string
	Name      string
	ClientID  string
	Scopes    []string
	SessionID string
}

/*
IssueTokens mints a signed access/refresh pair and registers it.

Description: The signed pair is the cryptographic artifact; the registry
record is the revocable truth. Application usage counters are updated as a
non-fatal side effect.

Parameters:
  - context: context.Context
  - input: IssueInput

Returns:
  - *sec.TokenPair: Transport-ready pair
  - error: Signing or persistence failures
*/
func (service *Service) IssueTokens(context context.Context, input IssueInput) (*sec.TokenPair, error) {

	pair, err := service.codec.IssuePair(input.UserID, input.Email, input.Name, input.ClientID, input.Scopes, input.SessionID)
	if err != nil {
		return nil, fmt.Errorf("tokenreg_service_issue_pair_failed: %w", err)
	}

	record := &TokenRecord{
		ID:               uuidv7.New(),
		UserID:           input.UserID,
		ClientID:         input.ClientID,
		Scopes:           input.Scopes,
		AccessTokenID:    pair.AccessTokenID,
		RefreshTokenHash: sec.HashToken(pair.RefreshToken),
		SessionID:        pair.SessionID,
		ExpiresAt:        time.Now().Add(service.codec.RefreshTTL()),
	}

	if err := service.tokens.Create(context, record); err != nil {
		return nil, fmt.Errorf("tokenreg_service_record_failed: %w", err)
	}

	// Counter updates inform dashboards; their failure must not fail issuance.
	if err := service.apps.RecordIssuance(context, input.ClientID); err != nil {
		service.logger.WarnContext(context, "token_issuance_counter_failed",
			slog.String("client_id", input.ClientID),
			slog.String("error", err.Error()),
		)
	}

	return pair, nil
}

// # Refresh Rotation

/*
Refresh rotates a refresh token into a new pair.

Description: The presented token must verify cryptographically AND map to a
live registry record. The old record is revoked through a compare-and-set
before the new pair exists, so two devices racing on the same token produce
exactly one new pair and one ErrTokenInvalid. Scopes carry over unchanged.

The pins are the caller's authentication context: the token endpoint pins
the client it authenticated by secret, the account API pins the first-party
client AND the signed-in user. Pin failures reject before the rotation
guard, so presenting a foreign token never burns it.

Parameters:
  - context: context.Context
  - refreshToken: string
  - clientID: string (when non-empty, the record must belong to this client)
  - ownerID: string (when non-empty, the record must belong to this user)

Returns:
  - *sec.TokenPair: Replacement pair bound to the same session
  - error: ErrTokenInvalid or infrastructure failures
*/
func (service *Service) Refresh(context context.Context, refreshToken, clientID, ownerID string) (*sec.TokenPair, error) {

	// ── 1. Cryptographic half: signature, expiry, token type ──
	claims := service.codec.VerifyRefreshToken(refreshToken)
	if claims == nil {
		return nil, ErrTokenInvalid
	}

	// ── 2. Registry half: the record must still be live ──
	record, err := service.tokens.FindByRefreshHash(context, sec.HashToken(refreshToken))
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("tokenreg_service_refresh_lookup_failed: %w", err)
	}

	if clientID != "" && record.ClientID != clientID {
		return nil, ErrTokenInvalid
	}
	if ownerID != "" && record.UserID != ownerID {
		return nil, ErrTokenInvalid
	}

	// ── 3. Rotation guard: exactly one concurrent caller wins ──
	won, err := service.tokens.RevokeIfActive(context, record.ID)
	if err != nil {
		return nil, fmt.Errorf("tokenreg_service_rotation_guard_failed: %w", err)
	}
	if !won {
		return nil, ErrTokenInvalid
	}

	// ── 4. Mint the replacement pair on the same session ──
	entry, err := service.directory.DirectoryEntry(context, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("tokenreg_service_refresh_directory_failed: %w", err)
	}

	pair, err := service.codec.IssuePair(record.UserID, entry.Email, entry.Name, record.ClientID, record.Scopes, record.SessionID)
	if err != nil {
		return nil, fmt.Errorf("tokenreg_service_refresh_issue_failed: %w", err)
	}

	newRecord := &TokenRecord{
		ID:               uuidv7.New(),
		UserID:           record.UserID,
		ClientID:         record.ClientID,
		Scopes:           record.Scopes,
		AccessTokenID:    pair.AccessTokenID,
		RefreshTokenHash: sec.HashToken(pair.RefreshToken),
		SessionID:        record.SessionID,
		ExpiresAt:        time.Now().Add(service.codec.RefreshTTL()),
	}

	if err := service.tokens.Create(context, newRecord); err != nil {
		return nil, fmt.Errorf("tokenreg_service_refresh_record_failed: %w", err)
	}

	return pair, nil
}

// # Revocation

/*
RevokeAll bulk-revokes a user's active tokens, optionally narrowed to one
application, and reconciles every touched application's active-token gauge.

Parameters:
  - context: context.Context
  - userID: string
  - clientID: string (empty revokes across all applications)

Returns:
  - int64: Number of tokens revoked
  - error: Batch revocation failures
*/
func (service *Service) RevokeAll(context context.Context, userID, clientID string) (int64, error) {

	revokedByClient, err := service.tokens.RevokeAllForUser(context, userID, clientID)
	if err != nil {
		return 0, fmt.Errorf("tokenreg_service_revoke_all_failed: %w", err)
	}

	var total int64
	for client, count := range revokedByClient {
		total += count
		if err := service.apps.AdjustActiveTokens(context, client, -count); err != nil {
			service.logger.WarnContext(context, "token_revocation_counter_failed",
				slog.String("client_id", client),
				slog.String("error", err.Error()),
			)
		}
	}

	return total, nil
}

/*
RevokeToken revokes a single token record. Idempotent: revoking an already
revoked or unknown record is a no-op success.

Parameters:
  - context: context.Context
  - recordID: string
  - ownerID: string (when non-empty, the record must belong to this user)

Returns:
  - error: apperr.Forbidden when the record belongs to someone else,
    persistence failures otherwise
*/
func (service *Service) RevokeToken(context context.Context, recordID, ownerID string) error {

	record, err := service.tokens.FindByID(context, recordID)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil
		}
		return fmt.Errorf("tokenreg_service_revoke_lookup_failed: %w", err)
	}

	if ownerID != "" && record.UserID != ownerID {
		return apperr.Forbidden("Cannot manage another user's tokens")
	}

	won, err := service.tokens.RevokeIfActive(context, recordID)
	if err != nil {
		return fmt.Errorf("tokenreg_service_revoke_failed: %w", err)
	}

	if won {
		if err := service.apps.AdjustActiveTokens(context, record.ClientID, -1); err != nil {
			service.logger.WarnContext(context, "token_revocation_counter_failed",
				slog.String("client_id", record.ClientID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// VerifyAccess delegates to the codec. Exposed so orchestrators holding the
// registry do not also need the codec injected.
func (service *Service) VerifyAccess(accessToken string) *sec.AuthClaims {
	return service.codec.VerifyAccessToken(accessToken)
}

// ListTokens returns a page of token records matching the filter.
func (service *Service) ListTokens(context context.Context, filter TokenFilter, params pagination.Params) ([]*TokenRecord, int, error) {
	return service.tokens.List(context, filter, params)
}

// # First-Party Sessions

// StartedSession bundles the server-side session with the opaque token the
// client stores in its cookie. The token leaves the server exactly once.
type StartedSession struct {
	Session      *Session
	SessionToken string
}

/*
StartSession establishes a new first-party session for a login.

Description: Generates a high-entropy opaque token, persists only its hash,
and lets the store evict the least-recently-active session when the user is
over the concurrency cap.

Parameters:
  - context: context.Context
  - userID: string
  - userAgent: string
  - ip: string

Returns:
  - *StartedSession: Session plus the one-time plaintext token
  - error: Generation or persistence failures
*/
func (service *Service) StartSession(context context.Context, userID, userAgent, ip string) (*StartedSession, error) {

	token, err := sec.GenerateSecureToken(constants.SessionTokenLength)
	if err != nil {
		return nil, fmt.Errorf("tokenreg_service_session_token_failed: %w", err)
	}

	session := &Session{
		ID:        uuidv7.New(),
		UserID:    userID,
		TokenHash: sec.HashToken(token),
		UserAgent: userAgent,
		IPAddress: ip,
		IsActive:  true,
	}

	if err := service.sessions.Create(context, session, constants.SessionCap); err != nil {
		return nil, fmt.Errorf("tokenreg_service_session_create_failed: %w", err)
	}

	return &StartedSession{Session: session, SessionToken: token}, nil
}

/*
ResolveSession turns an opaque session token into verified claims.

Description: Implements the cookie-session identity strategy. The claims are
rebuilt from the directory on every resolution, so a role or email change
takes effect without reissuing the session.

Parameters:
  - context: context.Context
  - sessionToken: string

Returns:
  - *sec.AuthClaims: Claims for the session owner, nil when the token is unknown
  - error: Directory or storage infrastructure failures
*/
func (service *Service) ResolveSession(context context.Context, sessionToken string) (*sec.AuthClaims, error) {

	session, err := service.sessions.FindByTokenHash(context, sec.HashToken(sessionToken))
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tokenreg_service_resolve_session_failed: %w", err)
	}

	entry, err := service.directory.DirectoryEntry(context, session.UserID)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("tokenreg_service_resolve_directory_failed: %w", err)
	}

	return service.codec.SessionClaims(session.UserID, entry.Email, entry.Name, session.ID), nil
}

/*
Touch implements the gatekeeper's freshness contract.

Description: A session idle past the staleness window is deactivated and
reported stale, forcing re-authentication even though no token has expired.
Fresh sessions get their activity timestamp advanced.

Parameters:
  - context: context.Context
  - sessionID: string
  - ip: string

Returns:
  - bool: true when the session had gone stale
  - error: Persistence failures
*/
func (service *Service) Touch(context context.Context, sessionID, ip string) (bool, error) {

	session, err := service.sessions.FindByID(context, sessionID)
	if err != nil {
		if apperr.IsAppError(err) {
			return true, nil
		}
		return false, fmt.Errorf("tokenreg_service_touch_lookup_failed: %w", err)
	}

	if !session.IsActive {
		return true, nil
	}

	if time.Since(session.LastActiveAt) > constants.SessionIdleTimeout {
		if err := service.sessions.Deactivate(context, session.ID); err != nil {
			return true, fmt.Errorf("tokenreg_service_stale_deactivate_failed: %w", err)
		}
		return true, nil
	}

	if err := service.sessions.Touch(context, session.ID, ip); err != nil {
		return false, fmt.Errorf("tokenreg_service_touch_failed: %w", err)
	}

	return false, nil
}

/*
ListSessions returns the user's active sessions annotated with risk.

Description: "Current" is derived from the requester's own session id, never
from comparing a session against itself. Known IPs come from the user's
recent login history via the directory.

Parameters:
  - context: context.Context
  - userID: string
  - currentSessionID: string

Returns:
  - []*SessionView: Annotated sessions, most recently active first
  - error: Retrieval failures
*/
func (service *Service) ListSessions(context context.Context, userID, currentSessionID string) ([]*SessionView, error) {

	sessions, err := service.sessions.ListActive(context, userID)
	if err != nil {
		return nil, fmt.Errorf("tokenreg_service_list_sessions_failed: %w", err)
	}

	var knownIPs []string
	if entry, err := service.directory.DirectoryEntry(context, userID); err == nil {
		knownIPs = entry.KnownIPs
	}

	now := time.Now()
	views := make([]*SessionView, 0, len(sessions))
	for _, session := range sessions {
		score, level := ScoreSession(session, knownIPs, now)
		views = append(views, &SessionView{
			Session:   *session,
			Current:   session.ID == currentSessionID,
			RiskLevel: level,
			RiskScore: score,
		})
	}

	return views, nil
}

/*
TerminateSession deactivates the session matching an opaque token. Unknown
tokens are a no-op success (idempotent logout).

Parameters:
  - context: context.Context
  - sessionToken: string

Returns:
  - error: Persistence failures
*/
func (service *Service) TerminateSession(context context.Context, sessionToken string) error {

	session, err := service.sessions.FindByTokenHash(context, sec.HashToken(sessionToken))
	if err != nil {
		if apperr.IsAppError(err) {
			return nil
		}
		return fmt.Errorf("tokenreg_service_terminate_lookup_failed: %w", err)
	}

	if err := service.sessions.Deactivate(context, session.ID); err != nil {
		return fmt.Errorf("tokenreg_service_terminate_failed: %w", err)
	}

	return nil
}

/*
TerminateOthers deactivates every session for the user except the one making
the request.

Parameters:
  - context: context.Context
  - userID: string
  - currentSessionID: string

Returns:
  - int64: Number of sessions terminated
  - error: Persistence failures
*/
func (service *Service) TerminateOthers(context context.Context, userID, currentSessionID string) (int64, error) {
	count, err := service.sessions.DeactivateOthers(context, userID, currentSessionID)
	if err != nil {
		return 0, fmt.Errorf("tokenreg_service_terminate_others_failed: %w", err)
	}
	return count, nil
}

// # Cascading Cleanup

/*
PurgeForUser revokes every token and terminates every session for a user.
Used by the account-deletion cascade.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: First persistence failure encountered
*/
func (service *Service) PurgeForUser(context context.Context, userID string) error {

	// Route through RevokeAll so the application gauges are reconciled.
	if _, err := service.RevokeAll(context, userID, ""); err != nil {
		return fmt.Errorf("tokenreg_service_purge_tokens_failed: %w", err)
	}

	if _, err := service.sessions.DeactivateAll(context, userID); err != nil {
		return fmt.Errorf("tokenreg_service_purge_sessions_failed: %w", err)
	}

	return nil
}

/*
SweepExpired removes expired unrevoked token records. Idempotent and safe to
run on a ticker alongside normal traffic.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of purged records
  - error: Cleanup failures
*/
func (service *Service) SweepExpired(context context.Context) (int64, error) {
	return service.tokens.PurgeExpired(context)
}
