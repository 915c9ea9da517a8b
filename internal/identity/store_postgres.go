// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package identity

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

// # Identity Repository (PostgreSQL)

// PostgresRepository implements the Repository interface using pgx.
//
// The linked profile and login history are stored as JSONB documents: they
// are always read and written as a whole alongside the owning row, never
// queried relationally.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL implementation of the Repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `
	id, name, email, passwordhash, identitykind, linkedprofile, role,
	loginhistory, createdat, updatedat`

/*
Create persists a new identity record into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr.Conflict on duplicate email, or database errors
*/
func (repository *PostgresRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (
			id, name, email, passwordhash, identitykind, linkedprofile, role,
			loginhistory, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Kind,
		user.LinkedProfile,
		user.Role,
		user.LoginHistory,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		// Two concurrent registrations can both pass the service-level email
		// check; the partial unique index is the real arbiter.
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Email is already registered")
		}
		return fmt.Errorf("postgres_identity_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves an identity record by primary key.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE id = $1 AND deletedat IS NULL`

	return repository.scanOne(context, query, id)
}

/*
FindByEmail retrieves an identity record by its unique email address.

Description: Lookup is byte-wise against the stored lowercase value, so
callers normalize the email before calling.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users.account
		WHERE email = $1 AND deletedat IS NULL`

	return repository.scanOne(context, query, email)
}

/*
Update persists mutable identity state back to the row.

Description: Writes name, identity class, linked profile, and the full login
history document; createdat and email are immutable after creation.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: apperr.NotFound if the row is gone, or database errors
*/
func (repository *PostgresRepository) Update(context context.Context, user *User) error {
	const query = `
		UPDATE users.account
		SET name = $2, passwordhash = $3, identitykind = $4, linkedprofile = $5,
		    loginhistory = $6, updatedat = $7
		WHERE id = $1 AND deletedat IS NULL`

	user.UpdatedAt = time.Now()

	tag, err := repository.pool.Exec(context, query,
		user.ID,
		user.Name,
		user.PasswordHash,
		user.Kind,
		user.LinkedProfile,
		user.LoginHistory,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_identity_repo_update_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

/*
SoftDelete tombstones an identity record.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) SoftDelete(context context.Context, id string) error {
	const query = `
		UPDATE users.account
		SET deletedat = NOW(), updatedat = NOW()
		WHERE id = $1 AND deletedat IS NULL`

	tag, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_identity_repo_delete_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

// scanOne runs a single-row query and hydrates one User.
func (repository *PostgresRepository) scanOne(context context.Context, query string, args ...any) (*User, error) {
	user := &User{}
	err := repository.pool.QueryRow(context, query, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Kind,
		&user.LinkedProfile,
		&user.Role,
		&user.LoginHistory,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_identity_repo_find_failed: %w", err)
	}

	return user, nil
}
