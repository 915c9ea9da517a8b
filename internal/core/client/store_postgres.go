// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/dberr"
)

// # Application Repository

// PostgresRepository implements the Repository interface using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL implementation of the Repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

/*
Create persists a new application record into the oauth.client table.

Parameters:
  - context: context.Context
  - app: *App (Entity to persist)

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresRepository) Create(context context.Context, app *App) error {
	const query = `
		INSERT INTO oauth.client (
			clientid, name, description, website, iconurl, secrethash,
			redirecturis, requirepkce, status, tokensissued, activetokens,
			createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	now := time.Now()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		app.ClientID,
		app.Name,
		app.Description,
		app.Website,
		app.IconURL,
		app.ClientSecretHash,
		app.RedirectURIs,
		app.RequirePKCE,
		app.Status,
		app.TokensIssued,
		app.ActiveTokens,
		app.CreatedAt,
		app.UpdatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Client id is already registered")
		}
		return fmt.Errorf("postgres_client_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByClientID retrieves an application by its public client id.

Description: Primary lookup used by the authorization server for every
consent and token exchange.

Parameters:
  - context: context.Context
  - clientID: string

Returns:
  - *App: Hydrated application entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByClientID(context context.Context, clientID string) (*App, error) {
	const query = `
		SELECT clientid, name, description, website, iconurl, secrethash,
		       redirecturis, requirepkce, status, tokensissued, activetokens,
		       createdat, updatedat
		FROM oauth.client
		WHERE clientid = $1`

	app := &App{}
	err := repository.pool.QueryRow(context, query, clientID).Scan(
		&app.ClientID,
		&app.Name,
		&app.Description,
		&app.Website,
		&app.IconURL,
		&app.ClientSecretHash,
		&app.RedirectURIs,
		&app.RequirePKCE,
		&app.Status,
		&app.TokensIssued,
		&app.ActiveTokens,
		&app.CreatedAt,
		&app.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Application")
		}
		return nil, fmt.Errorf("postgres_client_repo_find_failed: %w", err)
	}

	return app, nil
}

/*
RecordIssuance increments both token counters for an application.

Parameters:
  - context: context.Context
  - clientID: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresRepository) RecordIssuance(context context.Context, clientID string) error {
	const query = `
		UPDATE oauth.client
		SET tokensissued = tokensissued + 1, activetokens = activetokens + 1, updatedat = $2
		WHERE clientid = $1`

	_, err := repository.pool.Exec(context, query, clientID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_client_repo_record_issuance_failed: %w", err)
	}

	return nil
}

/*
AdjustActiveTokens moves the active-token gauge by delta, clamped at zero.

Parameters:
  - context: context.Context
  - clientID: string
  - delta: int64

Returns:
  - error: Execution errors
*/
func (repository *PostgresRepository) AdjustActiveTokens(context context.Context, clientID string, delta int64) error {
	const query = `
		UPDATE oauth.client
		SET activetokens = GREATEST(activetokens + $2, 0), updatedat = $3
		WHERE clientid = $1`

	_, err := repository.pool.Exec(context, query, clientID, delta, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_client_repo_adjust_active_failed: %w", err)
	}

	return nil
}

/*
SetStatus transitions an application between active and suspended.

Parameters:
  - context: context.Context
  - clientID: string
  - status: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresRepository) SetStatus(context context.Context, clientID, status string) error {
	const query = "UPDATE oauth.client SET status = $2, updatedat = $3 WHERE clientid = $1"

	_, err := repository.pool.Exec(context, query, clientID, status, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_client_repo_set_status_failed: %w", err)
	}

	return nil
}
