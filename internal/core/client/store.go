// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package client

import "context"

// # Application Data Access

// Repository defines the data access contract for registered applications.
type Repository interface {

	/*
		FindByClientID returns the application with the given public client id.

		Parameters:
		  - context: context.Context
		  - clientID: string

		Returns:
		  - *App: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByClientID(context context.Context, clientID string) (*App, error)

	/*
		Create persists a newly registered application.

		Parameters:
		  - context: context.Context
		  - app: *App

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, app *App) error

	/*
		RecordIssuance increments the lifetime and active token counters after a
		successful token exchange.

		Parameters:
		  - context: context.Context
		  - clientID: string

		Returns:
		  - error: Persistence failures
	*/
	RecordIssuance(context context.Context, clientID string) error

	/*
		AdjustActiveTokens moves the active-token gauge by delta (negative on
		revocation). The gauge never drops below zero.

		Parameters:
		  - context: context.Context
		  - clientID: string
		  - delta: int64

		Returns:
		  - error: Persistence failures
	*/
	AdjustActiveTokens(context context.Context, clientID string, delta int64) error

	/*
		SetStatus transitions the application between active and suspended.

		Parameters:
		  - context: context.Context
		  - clientID: string
		  - status: string

		Returns:
		  - error: Persistence failures
	*/
	SetStatus(context context.Context, clientID, status string) error
}
