// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package identity

import "context"

// # Storage Contracts

// Repository defines the persistence contract for user identity records.
//
// Implementations map storage errors to [apperr.AppError] values so callers
// never see driver-level error types.
type Repository interface {

	/*
		Create persists a brand new identity record.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Constraint violations or connectivity errors
	*/
	Create(context context.Context, user *User) error

	/*
		FindByID resolves an identity record by primary key.

		Parameters:
		  - context: context.Context
		  - id: string (UUIDv7)

		Returns:
		  - *User: Hydrated entity including login history
		  - error: apperr.NotFound or database errors
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail resolves an identity record by its unique email.

		Description: Emails are stored lowercase; callers must normalize
		before lookup.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity including login history
		  - error: apperr.NotFound or database errors
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Update persists mutable identity state: name, identity class,
		linked profile, and login history.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.NotFound or database errors
	*/
	Update(context context.Context, user *User) error

	/*
		SoftDelete tombstones an identity record. The row is retained for
		audit purposes but excluded from every lookup.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: apperr.NotFound or database errors
	*/
	SoftDelete(context context.Context, id string) error
}
