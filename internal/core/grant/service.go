// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package grant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumenbase/accounts/internal/platform/apperr"
)

// # Service

// Service orchestrates the permission ledger workflow.
type Service struct {
	store  Repository
	logger *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(store Repository, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

/*
Ensure returns the grant for an (application, user) pair, creating a pending
one on first request.

Parameters:
  - context: context.Context
  - clientID: string
  - userID: string
  - requestedScopes: []string

Returns:
  - *Grant: Existing or freshly created aggregate
  - error: Persistence failures
*/
func (service *Service) Ensure(context context.Context, clientID, userID string, requestedScopes []string) (*Grant, error) {

	aggregate, err := service.store.Find(context, clientID, userID)
	if err == nil {
		return aggregate, nil
	}
	if !apperr.IsAppError(err) {
		return nil, fmt.Errorf("grant_service_ensure_lookup_failed: %w", err)
	}

	aggregate = NewGrant(clientID, userID, requestedScopes)
	if err := service.store.Save(context, aggregate); err != nil {
		return nil, fmt.Errorf("grant_service_ensure_save_failed: %w", err)
	}

	return aggregate, nil
}

// ApprovalInput carries a consent decision into the ledger.
type ApprovalInput struct {
	ClientID       string
	UserID         string
	ApprovedScopes []string
	Actor          string
	ActorIsAdmin   bool
}

/*
ApproveScopes records a consent approval: the selected scopes are granted and
the grant transitions to approved.

Description: Admin-gated scopes are stripped from the approval unless the
actor holds the admin role; the user cannot self-grant them no matter what
the request claims.

Parameters:
  - context: context.Context
  - input: ApprovalInput

Returns:
  - []string: The scopes actually granted
  - error: Persistence failures
*/
func (service *Service) ApproveScopes(context context.Context, input ApprovalInput) ([]string, error) {

	aggregate, err := service.Ensure(context, input.ClientID, input.UserID, input.ApprovedScopes)
	if err != nil {
		return nil, err
	}

	var granted []string
	for _, scope := range input.ApprovedScopes {
		definition, known := LookupScope(scope)
		if !known {
			continue
		}
		if definition.RequiresAdminApproval && !input.ActorIsAdmin {
			service.logger.WarnContext(context, "admin_gated_scope_stripped",
				slog.String("scope", scope),
				slog.String("client_id", input.ClientID),
				slog.String("user_id", input.UserID),
			)
			continue
		}

		aggregate.GrantScope(scope, nil, input.Actor)
		granted = append(granted, scope)
	}

	aggregate.Approve(input.Actor)

	if err := service.store.Save(context, aggregate); err != nil {
		return nil, fmt.Errorf("grant_service_approve_save_failed: %w", err)
	}

	return granted, nil
}

/*
Deny records a consent denial.

Parameters:
  - context: context.Context
  - clientID: string
  - userID: string
  - reason: string
  - actor: string

Returns:
  - error: Persistence failures
*/
func (service *Service) Deny(context context.Context, clientID, userID, reason, actor string) error {

	aggregate, err := service.Ensure(context, clientID, userID, nil)
	if err != nil {
		return err
	}

	aggregate.Deny(reason, actor)

	if err := service.store.Save(context, aggregate); err != nil {
		return fmt.Errorf("grant_service_deny_save_failed: %w", err)
	}

	return nil
}

/*
RevokeScope withdraws a single scope from a grant.

Parameters:
  - context: context.Context
  - clientID: string
  - userID: string
  - scope: string
  - reason: string
  - actor: string

Returns:
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) RevokeScope(context context.Context, clientID, userID, scope, reason, actor string) error {

	aggregate, err := service.store.Find(context, clientID, userID)
	if err != nil {
		return err
	}

	aggregate.RevokeScope(scope, reason, actor)

	if err := service.store.Save(context, aggregate); err != nil {
		return fmt.Errorf("grant_service_revoke_scope_save_failed: %w", err)
	}

	return nil
}

/*
RevokeAll withdraws every scope and marks the grant revoked.

Parameters:
  - context: context.Context
  - clientID: string
  - userID: string
  - reason: string
  - actor: string

Returns:
  - error: apperr.NotFound or persistence failures
*/
func (service *Service) RevokeAll(context context.Context, clientID, userID, reason, actor string) error {

	aggregate, err := service.store.Find(context, clientID, userID)
	if err != nil {
		return err
	}

	aggregate.RevokeAll(reason, actor)

	if err := service.store.Save(context, aggregate); err != nil {
		return fmt.Errorf("grant_service_revoke_all_save_failed: %w", err)
	}

	return nil
}

/*
RecordUsage logs one scope exercise without blocking the caller.

Description: Usage recording is observability, not authorization. The write
runs on a detached context and any failure is logged, never surfaced as a
request error.

Parameters:
  - callerContext: context.Context (only its values are inherited)
  - clientID: string
  - userID: string
  - scope: string
*/
func (service *Service) RecordUsage(callerContext context.Context, clientID, userID, scope string) {

	// Detach from the request lifecycle so a fast client response does not
	// cancel the ledger write.
	background := context.WithoutCancel(callerContext)

	go func() {
		writeContext, cancel := context.WithTimeout(background, 5*time.Second)
		defer cancel()

		aggregate, err := service.store.Find(writeContext, clientID, userID)
		if err != nil {
			service.logger.WarnContext(writeContext, "usage_recording_lookup_failed",
				slog.String("client_id", clientID),
				slog.String("scope", scope),
				slog.String("error", err.Error()),
			)
			return
		}

		aggregate.RecordUse(scope)

		if err := service.store.Save(writeContext, aggregate); err != nil {
			service.logger.WarnContext(writeContext, "usage_recording_save_failed",
				slog.String("client_id", clientID),
				slog.String("scope", scope),
				slog.String("error", err.Error()),
			)
		}
	}()
}

/*
ScopesAllowed verifies the ledger still authorizes each scope for an
(application, user) pair right now.

Parameters:
  - context: context.Context
  - clientID: string
  - userID: string
  - scopes: []string

Returns:
  - bool: true only when every scope is currently allowed
  - error: Retrieval failures
*/
func (service *Service) ScopesAllowed(context context.Context, clientID, userID string, scopes []string) (bool, error) {

	aggregate, err := service.store.Find(context, clientID, userID)
	if err != nil {
		if apperr.IsAppError(err) {
			return false, nil
		}
		return false, fmt.Errorf("grant_service_scopes_allowed_failed: %w", err)
	}

	now := time.Now()
	for _, scope := range scopes {
		if !aggregate.ScopeAllowed(scope, now) {
			return false, nil
		}
	}

	return true, nil
}

// ListForUser returns every grant the user holds.
func (service *Service) ListForUser(context context.Context, userID string) ([]*Grant, error) {
	return service.store.ListForUser(context, userID)
}

// PurgeForUser removes every grant for a user. Used by the account-deletion
// cascade.
func (service *Service) PurgeForUser(context context.Context, userID string) error {
	if _, err := service.store.DeleteAllForUser(context, userID); err != nil {
		return fmt.Errorf("grant_service_purge_failed: %w", err)
	}
	return nil
}
