// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumenbase/accounts/internal/core/tokenreg"
	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/sec"
	"github.com/lumenbase/accounts/pkg/uuidv7"
)

// # Contracts & Types

// Purger revokes everything a user holds in another subsystem. Used by the
// account-deletion cascade so this package does not depend on the concrete
// registry and ledger services.
type Purger interface {
	PurgeForUser(context context.Context, userID string) error
}

// Service implements identity use cases: registration, password login,
// provider-backed find-or-create, and the account-deletion cascade.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed by the security team.
type Service struct {
	users  Repository
	admins *sec.AdminPolicy
	tokens Purger
	grants Purger
	logger *slog.Logger
}

// NewService constructs a new [Service] with necessary dependencies.
// The purgers may be nil when the deletion cascade is not wired (tests).
func NewService(users Repository, admins *sec.AdminPolicy, tokens, grants Purger, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		admins: admins,
		tokens: tokens,
		grants: grants,
		logger: logger,
	}
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
// Uniqueness is byte-wise over this normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	IP       string
}

/*
Register validates, hashes, and persists a brand new password-class account.

Description: Deep-enrollment of a new member. The account's authoritative
identity class is "password"; a later provider sign-in with the same email
switches the class rather than creating a duplicate.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: Conflict (if the email exists) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	email := NormalizeEmail(input.Email)

	// Verify email uniqueness. Return a client-safe Conflict error.
	_, err := service.users.FindByEmail(context, email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("identity_service_hash_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuidv7.New(),
		Name:         input.Name,
		Email:        email,
		PasswordHash: hashedPassword,
		Kind:         KindPassword,
		Role:         service.admins.RoleFor(email),
	}
	user.AppendLogin(string(KindPassword), input.IP, time.Now())

	if err := service.users.Create(context, user); err != nil {
		return nil, fmt.Errorf("identity_service_register_failed: %w", err)
	}

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for a password authentication attempt.
type LoginInput struct {
	Email    string
	Password string
	IP       string
}

/*
Login validates password credentials and returns the authenticated identity.

Description: Verifies identity with constant-time password comparison and
appends one login-history entry. Session and token issuance belong to the
registry; this method only answers "who is this".

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *User: Authenticated entity
  - error: Unauthorized or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*User, error) {
	user, err := service.users.FindByEmail(context, NormalizeEmail(input.Email))

	// Generic message on every negative branch to prevent enumeration.
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Accounts whose authoritative class is a provider carry no password
	// hash, so this comparison also rejects the wrong method class.
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	user.AppendLogin(string(KindPassword), input.IP, time.Now())
	if err := service.users.Update(context, user); err != nil {
		// History is advisory; the login itself already succeeded.
		service.logger.Warn("login_history_update_failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// # Provider Sign-In

// FindOrCreateInput carries a normalized provider profile.
type FindOrCreateInput struct {
	Email     string
	Name      string
	Provider  Kind
	Username  string
	AvatarURL string
	IP        string
}

/*
FindOrCreate resolves a provider sign-in to a local identity record.

Description: If an account with the email exists, its provider linkage is
updated when it changed; otherwise a new record is created. Either path
appends one login-history entry trimmed to the retention window.

Parameters:
  - context: context.Context
  - input: FindOrCreateInput

Returns:
  - *User: Resolved entity
  - error: Storage errors
*/
func (service *Service) FindOrCreate(context context.Context, input FindOrCreateInput) (*User, error) {
	email := NormalizeEmail(input.Email)
	now := time.Now()

	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		if !apperr.IsAppError(err) {
			return nil, fmt.Errorf("identity_service_find_or_create_failed: %w", err)
		}

		// First sign-in through this provider: create the record.
		user = &User{
			ID:    uuidv7.New(),
			Name:  input.Name,
			Email: email,
			Kind:  input.Provider,
			Role:  service.admins.RoleFor(email),
			LinkedProfile: &LinkedProfile{
				Username:  input.Username,
				AvatarURL: input.AvatarURL,
				LinkedAt:  now,
			},
		}
		user.AppendLogin(string(input.Provider), input.IP, now)

		if err := service.users.Create(context, user); err != nil {
			return nil, fmt.Errorf("identity_service_provider_create_failed: %w", err)
		}

		return user, nil
	}

	// Existing account: switch the authoritative class if the user signed in
	// through a different provider than last time.
	if user.Kind != input.Provider {
		user.Kind = input.Provider
	}
	if user.LinkedProfile == nil || user.LinkedProfile.Username != input.Username {
		user.LinkedProfile = &LinkedProfile{
			Username:  input.Username,
			AvatarURL: input.AvatarURL,
			LinkedAt:  now,
		}
	}
	user.AppendLogin(string(input.Provider), input.IP, now)

	if err := service.users.Update(context, user); err != nil {
		return nil, fmt.Errorf("identity_service_provider_update_failed: %w", err)
	}

	return user, nil
}

// # Directory Lookups

// Directory adapts the identity store to the registry's directory contract.
// It is a separate type (rather than a method on [Service]) so the registry
// can be constructed before the service that depends on it.
type Directory struct {
	users Repository
}

// NewDirectory constructs a [Directory] over the identity repository.
func NewDirectory(users Repository) *Directory {
	return &Directory{users: users}
}

/*
DirectoryEntry resolves the identity facts the token registry needs when
minting claims or scoring session risk.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *tokenreg.DirectoryEntry: Email, display name, and known IPs
  - error: apperr.NotFound or database errors
*/
func (directory *Directory) DirectoryEntry(context context.Context, userID string) (*tokenreg.DirectoryEntry, error) {
	user, err := directory.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	return &tokenreg.DirectoryEntry{
		Email:    user.Email,
		Name:     user.Name,
		KnownIPs: user.KnownIPs(),
	}, nil
}

// FindByID exposes the raw identity record for handlers that render profiles.
func (service *Service) FindByID(context context.Context, userID string) (*User, error) {
	return service.users.FindByID(context, userID)
}

// # Account Lifecycle

/*
DeleteAccount removes an account and everything attached to it.

Description: Cascade order matters: sessions and token pairs are revoked
first, then permission grants, then the identity row is tombstoned. A
half-completed cascade leaves the account intact and retryable.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: apperr.NotFound or cascade failures
*/
func (service *Service) DeleteAccount(context context.Context, userID string) error {

	// Confirm the account exists before revoking anything.
	if _, err := service.users.FindByID(context, userID); err != nil {
		return err
	}

	if service.tokens != nil {
		if err := service.tokens.PurgeForUser(context, userID); err != nil {
			return fmt.Errorf("identity_service_delete_tokens_failed: %w", err)
		}
	}

	if service.grants != nil {
		if err := service.grants.PurgeForUser(context, userID); err != nil {
			return fmt.Errorf("identity_service_delete_grants_failed: %w", err)
		}
	}

	if err := service.users.SoftDelete(context, userID); err != nil {
		return fmt.Errorf("identity_service_delete_failed: %w", err)
	}

	service.logger.Info("account_deleted", slog.String("user_id", userID))
	return nil
}
