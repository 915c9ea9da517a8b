// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package tokenreg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/pkg/pagination"
)

// # Token Repository

// PostgresTokenRepository implements the TokenRepository interface using pgx.
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new PostgreSQL implementation of TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

/*
Create persists a new token record into the oauth.token table.

Parameters:
  - context: context.Context
  - record: *TokenRecord

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresTokenRepository) Create(context context.Context, record *TokenRecord) error {
	const query = `
		INSERT INTO oauth.token (
			id, userid, clientid, scopes, accesstokenid, refreshtokenhash,
			sessionid, expiresat, revoked, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(context, query,
		record.ID,
		record.UserID,
		record.ClientID,
		record.Scopes,
		record.AccessTokenID,
		record.RefreshTokenHash,
		record.SessionID,
		record.ExpiresAt,
		record.Revoked,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_token_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByRefreshHash retrieves the live token record for a refresh token hash.

Description: Revoked and expired records are filtered at the query level, so
a hit is always rotatable (subject to the RevokeIfActive race guard).

Parameters:
  - context: context.Context
  - refreshHash: string

Returns:
  - *TokenRecord: Hydrated record
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresTokenRepository) FindByRefreshHash(context context.Context, refreshHash string) (*TokenRecord, error) {
	const query = `
		SELECT id, userid, clientid, scopes, accesstokenid, refreshtokenhash,
		       sessionid, expiresat, revoked, revokedat, createdat
		FROM oauth.token
		WHERE refreshtokenhash = $1 AND revoked = FALSE AND expiresat > NOW()`

	record := &TokenRecord{}
	err := repository.pool.QueryRow(context, query, refreshHash).Scan(
		&record.ID,
		&record.UserID,
		&record.ClientID,
		&record.Scopes,
		&record.AccessTokenID,
		&record.RefreshTokenHash,
		&record.SessionID,
		&record.ExpiresAt,
		&record.Revoked,
		&record.RevokedAt,
		&record.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Token")
		}
		return nil, fmt.Errorf("postgres_token_repo_find_failed: %w", err)
	}

	return record, nil
}

/*
FindByID retrieves a token record by its id regardless of state.

Parameters:
  - context: context.Context
  - recordID: string

Returns:
  - *TokenRecord: Hydrated record
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresTokenRepository) FindByID(context context.Context, recordID string) (*TokenRecord, error) {
	const query = `
		SELECT id, userid, clientid, scopes, accesstokenid, refreshtokenhash,
		       sessionid, expiresat, revoked, revokedat, createdat
		FROM oauth.token
		WHERE id = $1`

	record := &TokenRecord{}
	err := repository.pool.QueryRow(context, query, recordID).Scan(
		&record.ID,
		&record.UserID,
		&record.ClientID,
		&record.Scopes,
		&record.AccessTokenID,
		&record.RefreshTokenHash,
		&record.SessionID,
		&record.ExpiresAt,
		&record.Revoked,
		&record.RevokedAt,
		&record.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Token")
		}
		return nil, fmt.Errorf("postgres_token_repo_find_failed: %w", err)
	}

	return record, nil
}

/*
RevokeIfActive atomically transitions a record to revoked.

Description: The revoked = FALSE guard in the WHERE clause makes this a
compare-and-set. When two rotations race on the same refresh token, the row
count tells exactly one of them it won.

Parameters:
  - context: context.Context
  - recordID: string

Returns:
  - bool: true when this call performed the transition
  - error: Execution errors
*/
func (repository *PostgresTokenRepository) RevokeIfActive(context context.Context, recordID string) (bool, error) {
	const query = `
		UPDATE oauth.token
		SET revoked = TRUE, revokedat = $2
		WHERE id = $1 AND revoked = FALSE`

	tag, err := repository.pool.Exec(context, query, recordID, time.Now())
	if err != nil {
		return false, fmt.Errorf("postgres_token_repo_revoke_if_active_failed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

/*
RevokeAllForUser bulk-revokes active records for a user, optionally narrowed
to one application.

Description: The RETURNING clause surfaces which applications lost tokens so
the caller can reconcile each active-token gauge, not just a narrowed one.

Parameters:
  - context: context.Context
  - userID: string
  - clientID: string (empty means all applications)

Returns:
  - map[string]int64: Revoked record counts keyed by client id
  - error: Batch revocation failures
*/
func (repository *PostgresTokenRepository) RevokeAllForUser(context context.Context, userID, clientID string) (map[string]int64, error) {
	const query = `
		UPDATE oauth.token
		SET revoked = TRUE, revokedat = $3
		WHERE userid = $1 AND revoked = FALSE AND ($2 = '' OR clientid = $2)
		RETURNING clientid`

	rows, err := repository.pool.Query(context, query, userID, clientID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("postgres_token_repo_revoke_all_failed: %w", err)
	}
	defer rows.Close()

	revoked := make(map[string]int64)
	for rows.Next() {
		var client string
		if err := rows.Scan(&client); err != nil {
			return nil, fmt.Errorf("postgres_token_repo_revoke_all_scan_failed: %w", err)
		}
		revoked[client]++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_token_repo_revoke_all_rows_failed: %w", err)
	}

	return revoked, nil
}

/*
List returns a page of token records matching the filter, newest first.

Parameters:
  - context: context.Context
  - filter: TokenFilter
  - params: pagination.Params

Returns:
  - []*TokenRecord: Page of records
  - int: Total matching count
  - error: Retrieval failures
*/
func (repository *PostgresTokenRepository) List(context context.Context, filter TokenFilter, params pagination.Params) ([]*TokenRecord, int, error) {
	const countQuery = `
		SELECT COUNT(*)
		FROM oauth.token
		WHERE ($1 = '' OR userid = $1) AND ($2 = '' OR clientid = $2)`

	var total int
	if err := repository.pool.QueryRow(context, countQuery, filter.UserID, filter.ClientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_token_repo_count_failed: %w", err)
	}

	const query = `
		SELECT id, userid, clientid, scopes, accesstokenid, refreshtokenhash,
		       sessionid, expiresat, revoked, revokedat, createdat
		FROM oauth.token
		WHERE ($1 = '' OR userid = $1) AND ($2 = '' OR clientid = $2)
		ORDER BY createdat DESC
		LIMIT $3 OFFSET $4`

	rows, err := repository.pool.Query(context, query, filter.UserID, filter.ClientID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_token_repo_list_failed: %w", err)
	}
	defer rows.Close()

	records := make([]*TokenRecord, 0, params.Limit)
	for rows.Next() {
		record := &TokenRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.ClientID,
			&record.Scopes,
			&record.AccessTokenID,
			&record.RefreshTokenHash,
			&record.SessionID,
			&record.ExpiresAt,
			&record.Revoked,
			&record.RevokedAt,
			&record.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_token_repo_scan_failed: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_token_repo_rows_failed: %w", err)
	}

	return records, total, nil
}

/*
PurgeExpired physically removes unrevoked records past their expiry.

Description: Delete-if-expired is idempotent, so the sweep is safe to run
concurrently with normal traffic and with other sweep instances.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of purged records
  - error: Cleanup failures
*/
func (repository *PostgresTokenRepository) PurgeExpired(context context.Context) (int64, error) {
	const query = "DELETE FROM oauth.token WHERE expiresat <= NOW() AND revoked = FALSE"

	tag, err := repository.pool.Exec(context, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_token_repo_purge_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
Create persists a session and enforces the per-user concurrency cap.

Description: After the insert, any active sessions beyond the cap are
deactivated least-recently-active first. The transaction opens with a
per-user advisory lock, so two concurrent logins serialize and cannot both
pass the cap check at READ COMMITTED.

Parameters:
  - context: context.Context
  - session: *Session
  - cap: int

Returns:
  - error: Storage failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session, cap int) error {
	const insertQuery = `
		INSERT INTO users.session (
			id, userid, tokenhash, useragent, ipaddress, isactive, createdat, lastactiveat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	const evictQuery = `
		UPDATE users.session SET isactive = FALSE
		WHERE id IN (
			SELECT id FROM users.session
			WHERE userid = $1 AND isactive = TRUE
			ORDER BY lastactiveat DESC
			OFFSET $2
		)`

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActiveAt.IsZero() {
		session.LastActiveAt = now
	}

	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(context) }()

	// Held until commit; serializes insert+evict per user.
	const lockQuery = "SELECT pg_advisory_xact_lock(hashtext($1))"
	if _, err := transaction.Exec(context, lockQuery, session.UserID); err != nil {
		return fmt.Errorf("postgres_session_repo_lock_failed: %w", err)
	}

	_, err = transaction.Exec(context, insertQuery,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.IsActive,
		session.CreatedAt,
		session.LastActiveAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	if _, err := transaction.Exec(context, evictQuery, session.UserID, cap); err != nil {
		return fmt.Errorf("postgres_session_repo_evict_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_session_repo_commit_failed: %w", err)
	}

	return nil
}

/*
FindByTokenHash retrieves the active session matching the opaque token hash.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *Session: Hydrated session
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindByTokenHash(context context.Context, tokenHash string) (*Session, error) {
	const query = `
		SELECT id, userid, tokenhash, useragent, ipaddress, isactive, createdat, lastactiveat
		FROM users.session
		WHERE tokenhash = $1 AND isactive = TRUE`

	return repository.scanOne(context, query, tokenHash)
}

/*
FindByID retrieves a session by its id regardless of active state.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: Hydrated session
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindByID(context context.Context, sessionID string) (*Session, error) {
	const query = `
		SELECT id, userid, tokenhash, useragent, ipaddress, isactive, createdat, lastactiveat
		FROM users.session
		WHERE id = $1`

	return repository.scanOne(context, query, sessionID)
}

func (repository *PostgresSessionRepository) scanOne(context context.Context, query string, arg any) (*Session, error) {
	session := &Session{}
	err := repository.pool.QueryRow(context, query, arg).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.IsActive,
		&session.CreatedAt,
		&session.LastActiveAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
ListActive returns all active sessions for a user, most recent activity first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*Session: Active sessions
  - error: Retrieval failures
*/
func (repository *PostgresSessionRepository) ListActive(context context.Context, userID string) ([]*Session, error) {
	const query = `
		SELECT id, userid, tokenhash, useragent, ipaddress, isactive, createdat, lastactiveat
		FROM users.session
		WHERE userid = $1 AND isactive = TRUE
		ORDER BY lastactiveat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session := &Session{}
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.TokenHash,
			&session.UserAgent,
			&session.IPAddress,
			&session.IsActive,
			&session.CreatedAt,
			&session.LastActiveAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}

	return sessions, nil
}

/*
Touch updates the session's activity timestamp and last-seen IP.

Parameters:
  - context: context.Context
  - sessionID: string
  - ip: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) Touch(context context.Context, sessionID, ip string) error {
	const query = "UPDATE users.session SET lastactiveat = $2, ipaddress = $3 WHERE id = $1"

	_, err := repository.pool.Exec(context, query, sessionID, time.Now(), ip)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_touch_failed: %w", err)
	}

	return nil
}

/*
Deactivate marks one session inactive. Idempotent.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) Deactivate(context context.Context, sessionID string) error {
	const query = "UPDATE users.session SET isactive = FALSE WHERE id = $1"

	_, err := repository.pool.Exec(context, query, sessionID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_deactivate_failed: %w", err)
	}

	return nil
}

/*
DeactivateOthers terminates every active session for the user except one.

Description: The exclusion is by session id, never by token comparison, so
the caller's own session always survives.

Parameters:
  - context: context.Context
  - userID: string
  - currentSessionID: string

Returns:
  - int64: Number of sessions terminated
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) DeactivateOthers(context context.Context, userID, currentSessionID string) (int64, error) {
	const query = `
		UPDATE users.session SET isactive = FALSE
		WHERE userid = $1 AND id != $2 AND isactive = TRUE`

	tag, err := repository.pool.Exec(context, query, userID, currentSessionID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_deactivate_others_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
DeactivateAll terminates every active session for the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: Number of sessions terminated
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) DeactivateAll(context context.Context, userID string) (int64, error) {
	const query = "UPDATE users.session SET isactive = FALSE WHERE userid = $1 AND isactive = TRUE"

	tag, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_deactivate_all_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}
