// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package grant

import "context"

// # Ledger Data Access

// Repository defines the data access contract for permission grants.
type Repository interface {

	/*
		Find returns the grant aggregate for an (application, user) pair.

		Parameters:
		  - context: context.Context
		  - clientID: string
		  - userID: string

		Returns:
		  - *Grant: Hydrated aggregate
		  - error: apperr.NotFound or database retrieval failures
	*/
	Find(context context.Context, clientID, userID string) (*Grant, error)

	/*
		Save upserts the full aggregate. The (clientid, userid) compound key
		makes the write idempotent.

		Parameters:
		  - context: context.Context
		  - aggregate: *Grant

		Returns:
		  - error: Persistence failures
	*/
	Save(context context.Context, aggregate *Grant) error

	/*
		ListForUser returns every grant a user holds, across applications.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Grant: Aggregates newest first
		  - error: Retrieval failures
	*/
	ListForUser(context context.Context, userID string) ([]*Grant, error)

	/*
		DeleteAllForUser removes every grant for a user. Used only by the
		account-deletion cascade.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int64: Count of removed grants
		  - error: Deletion failures
	*/
	DeleteAllForUser(context context.Context, userID string) (int64, error)
}
