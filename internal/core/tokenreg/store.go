// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package tokenreg

import (
	"context"

	"github.com/lumenbase/accounts/pkg/pagination"
)

// # Token Data Access

// TokenFilter narrows token listings. Zero values mean "no filter".
type TokenFilter struct {
	UserID   string
	ClientID string
}

// TokenRepository defines the data access contract for issued token pairs.
type TokenRepository interface {

	/*
		Create persists a new token pair record.

		Parameters:
		  - context: context.Context
		  - record: *TokenRecord

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, record *TokenRecord) error

	/*
		FindByRefreshHash returns the non-revoked, unexpired record matching the
		refresh token hash.

		Parameters:
		  - context: context.Context
		  - refreshHash: string

		Returns:
		  - *TokenRecord: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByRefreshHash(context context.Context, refreshHash string) (*TokenRecord, error)

	/*
		FindByID returns the record with the given id regardless of state.

		Parameters:
		  - context: context.Context
		  - recordID: string

		Returns:
		  - *TokenRecord: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, recordID string) (*TokenRecord, error)

	/*
		RevokeIfActive marks a record revoked only if it is not revoked yet.
		The boolean reports whether this caller performed the transition, which
		makes it the serialization point for concurrent rotations.

		Parameters:
		  - context: context.Context
		  - recordID: string

		Returns:
		  - bool: true when this call won the transition
		  - error: Persistence failures
	*/
	RevokeIfActive(context context.Context, recordID string) (bool, error)

	/*
		RevokeAllForUser revokes every active record for a user, optionally
		narrowed to one application. The per-client counts let the service
		reconcile each touched application's active-token gauge.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - clientID: string (empty revokes across all applications)

		Returns:
		  - map[string]int64: Revoked record counts keyed by client id
		  - error: Batch revocation failures
	*/
	RevokeAllForUser(context context.Context, userID, clientID string) (map[string]int64, error)

	/*
		List returns token records matching the filter, newest first.

		Parameters:
		  - context: context.Context
		  - filter: TokenFilter
		  - params: pagination.Params

		Returns:
		  - []*TokenRecord: Page of records
		  - int: Total matching count
		  - error: Retrieval failures
	*/
	List(context context.Context, filter TokenFilter, params pagination.Params) ([]*TokenRecord, int, error)

	/*
		PurgeExpired physically removes unrevoked records past their expiry.
		Safe to run concurrently with normal traffic.

		Parameters:
		  - context: context.Context

		Returns:
		  - int64: Count of purged records
		  - error: Cleanup failures
	*/
	PurgeExpired(context context.Context) (int64, error)
}

// # Session Data Access

// SessionRepository defines the data access contract for live sessions.
type SessionRepository interface {

	/*
		Create persists a new session. The store enforces the per-user cap by
		deactivating the least-recently-active session when the cap is exceeded.

		Parameters:
		  - context: context.Context
		  - session: *Session
		  - cap: int

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session, cap int) error

	/*
		FindByTokenHash returns the active session matching the opaque token hash.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByTokenHash(context context.Context, tokenHash string) (*Session, error)

	/*
		FindByID returns the session with the given id, active or not.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, sessionID string) (*Session, error)

	/*
		ListActive returns all active sessions for a user, most recent first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Session: Active sessions
		  - error: Retrieval failures
	*/
	ListActive(context context.Context, userID string) ([]*Session, error)

	/*
		Touch updates the session's last-activity timestamp and IP.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - ip: string

		Returns:
		  - error: Persistence failures
	*/
	Touch(context context.Context, sessionID, ip string) error

	/*
		Deactivate marks one session inactive. Idempotent.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Persistence failures
	*/
	Deactivate(context context.Context, sessionID string) error

	/*
		DeactivateOthers marks every active session for the user inactive except
		the given one, returning the number terminated.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - currentSessionID: string

		Returns:
		  - int64: Count of terminated sessions
		  - error: Persistence failures
	*/
	DeactivateOthers(context context.Context, userID, currentSessionID string) (int64, error)

	/*
		DeactivateAll marks every active session for the user inactive.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int64: Count of terminated sessions
		  - error: Persistence failures
	*/
	DeactivateAll(context context.Context, userID string) (int64, error)
}
