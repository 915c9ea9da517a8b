// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package grant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenbase/accounts/internal/platform/apperr"
)

// # Ledger Repository

// PostgresRepository implements the Repository interface using pgx.
//
// The per-scope state and the audit log are stored as jsonb documents on the
// row; the workflow status and counters are plain columns so they stay
// filterable in SQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL implementation of the Repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

/*
Find retrieves the grant aggregate for an (application, user) pair.

Parameters:
  - context: context.Context
  - clientID: string
  - userID: string

Returns:
  - *Grant: Hydrated aggregate
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRepository) Find(context context.Context, clientID, userID string) (*Grant, error) {
	const query = `
		SELECT clientid, userid, status, scopes, totalrequests, audit, createdat, updatedat
		FROM oauth.grant
		WHERE clientid = $1 AND userid = $2`

	aggregate := &Grant{}
	err := repository.pool.QueryRow(context, query, clientID, userID).Scan(
		&aggregate.ClientID,
		&aggregate.UserID,
		&aggregate.Status,
		&aggregate.Scopes,
		&aggregate.TotalRequests,
		&aggregate.Audit,
		&aggregate.CreatedAt,
		&aggregate.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Grant")
		}
		return nil, fmt.Errorf("postgres_grant_repo_find_failed: %w", err)
	}

	return aggregate, nil
}

/*
Save upserts the aggregate keyed on (clientid, userid).

Parameters:
  - context: context.Context
  - aggregate: *Grant

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRepository) Save(context context.Context, aggregate *Grant) error {
	const query = `
		INSERT INTO oauth.grant (
			clientid, userid, status, scopes, totalrequests, audit, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (clientid, userid) DO UPDATE SET
			status = EXCLUDED.status,
			scopes = EXCLUDED.scopes,
			totalrequests = EXCLUDED.totalrequests,
			audit = EXCLUDED.audit,
			updatedat = EXCLUDED.updatedat`

	now := time.Now()
	if aggregate.CreatedAt.IsZero() {
		aggregate.CreatedAt = now
	}
	aggregate.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		aggregate.ClientID,
		aggregate.UserID,
		aggregate.Status,
		aggregate.Scopes,
		aggregate.TotalRequests,
		aggregate.Audit,
		aggregate.CreatedAt,
		aggregate.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_grant_repo_save_failed: %w", err)
	}

	return nil
}

/*
ListForUser returns every grant the user holds, most recently updated first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*Grant: Hydrated aggregates
  - error: Retrieval failures
*/
func (repository *PostgresRepository) ListForUser(context context.Context, userID string) ([]*Grant, error) {
	const query = `
		SELECT clientid, userid, status, scopes, totalrequests, audit, createdat, updatedat
		FROM oauth.grant
		WHERE userid = $1
		ORDER BY updatedat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_grant_repo_list_failed: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		aggregate := &Grant{}
		if err := rows.Scan(
			&aggregate.ClientID,
			&aggregate.UserID,
			&aggregate.Status,
			&aggregate.Scopes,
			&aggregate.TotalRequests,
			&aggregate.Audit,
			&aggregate.CreatedAt,
			&aggregate.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_grant_repo_scan_failed: %w", err)
		}
		grants = append(grants, aggregate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_grant_repo_rows_failed: %w", err)
	}

	return grants, nil
}

/*
DeleteAllForUser removes every grant row for the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int64: Number of removed grants
  - error: Deletion failures
*/
func (repository *PostgresRepository) DeleteAllForUser(context context.Context, userID string) (int64, error) {
	const query = "DELETE FROM oauth.grant WHERE userid = $1"

	tag, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return 0, fmt.Errorf("postgres_grant_repo_delete_all_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}
