// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package identity_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbase/accounts/internal/identity"
	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/sec"
)

// # Fakes

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*identity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*identity.User)}
}

func (repo *fakeUserRepo) Create(_ context.Context, user *identity.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.users[user.ID] = user
	return nil
}

func (repo *fakeUserRepo) FindByID(_ context.Context, id string) (*identity.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	user, ok := repo.users[id]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return user, nil
}

func (repo *fakeUserRepo) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, user := range repo.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *fakeUserRepo) Update(_ context.Context, user *identity.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.users[user.ID]; !ok {
		return apperr.NotFound("User")
	}
	repo.users[user.ID] = user
	return nil
}

func (repo *fakeUserRepo) SoftDelete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.users[id]; !ok {
		return apperr.NotFound("User")
	}
	delete(repo.users, id)
	return nil
}

type recordingPurger struct {
	mu     sync.Mutex
	purged []string
}

func (purger *recordingPurger) PurgeForUser(_ context.Context, userID string) error {
	purger.mu.Lock()
	defer purger.mu.Unlock()
	purger.purged = append(purger.purged, userID)
	return nil
}

func newIdentityService(repo *fakeUserRepo, tokens, grants identity.Purger) *identity.Service {
	admins := sec.NewAdminPolicy([]string{"root@lumenbase.app"})
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return identity.NewService(repo, admins, tokens, grants, logger)
}

// # Registration

/*
TestService_Register verifies enrollment, role derivation, and the duplicate
email conflict.
*/
func TestService_Register(t *testing.T) {
	repo := newFakeUserRepo()
	service := newIdentityService(repo, nil, nil)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "Ada@Lumenbase.App",
		Password: "correct-horse-battery",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada@lumenbase.app", user.Email)
	assert.Equal(t, identity.KindPassword, user.Kind)
	assert.Equal(t, sec.RoleUser, user.Role)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash)
	require.Len(t, user.LoginHistory, 1)
	assert.Equal(t, "10.0.0.1", user.LoginHistory[0].IP)

	// The same email, differently cased, is a conflict.
	_, err = service.Register(context.Background(), identity.RegisterInput{
		Name:     "Imposter",
		Email:    "ADA@lumenbase.app",
		Password: "other-password",
	})
	require.Error(t, err)
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)

	// Allow-listed emails enroll as admin.
	admin, err := service.Register(context.Background(), identity.RegisterInput{
		Name:     "Root",
		Email:    "root@lumenbase.app",
		Password: "a-very-good-password",
	})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, admin.Role)
}

// # Password Login

/*
TestService_Login verifies credential checks and the uniform failure message.
*/
func TestService_Login(t *testing.T) {
	repo := newFakeUserRepo()
	service := newIdentityService(repo, nil, nil)

	registered, err := service.Register(context.Background(), identity.RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "ada@lumenbase.app",
		Password: "correct-horse-battery",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)

	// A provider-class account has no password hash and must reject password
	// login the same way a wrong password does.
	_, err = service.FindOrCreate(context.Background(), identity.FindOrCreateInput{
		Email:    "dev@github.example",
		Name:     "Dev",
		Provider: identity.KindGitHub,
		Username: "dev",
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantUser string
	}{
		{name: "valid", email: "ada@lumenbase.app", password: "correct-horse-battery", wantUser: registered.ID},
		{name: "mixed_case_email", email: "ADA@Lumenbase.App", password: "correct-horse-battery", wantUser: registered.ID},
		{name: "wrong_password", email: "ada@lumenbase.app", password: "wrong"},
		{name: "unknown_email", email: "ghost@lumenbase.app", password: "correct-horse-battery"},
		{name: "provider_class_account", email: "dev@github.example", password: "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := service.Login(context.Background(), identity.LoginInput{
				Email:    tt.email,
				Password: tt.password,
				IP:       "10.0.0.2",
			})

			if tt.wantUser == "" {
				require.Error(t, err)
				appErr := apperr.As(err)
				require.NotNil(t, appErr)
				// One message for every branch, so callers cannot probe which
				// emails exist.
				assert.Equal(t, "Invalid login credentials", appErr.Message)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, user.ID)
		})
	}
}

// # Provider Sign-In

/*
TestService_FindOrCreate verifies creation, class switching, and profile
refresh on the provider path.
*/
func TestService_FindOrCreate(t *testing.T) {
	repo := newFakeUserRepo()
	service := newIdentityService(repo, nil, nil)

	created, err := service.FindOrCreate(context.Background(), identity.FindOrCreateInput{
		Email:     "dev@example.com",
		Name:      "Dev",
		Provider:  identity.KindGitHub,
		Username:  "dev",
		AvatarURL: "https://avatars.example/dev.png",
		IP:        "10.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, identity.KindGitHub, created.Kind)
	require.NotNil(t, created.LinkedProfile)
	assert.Equal(t, "dev", created.LinkedProfile.Username)

	// Same email arriving through another provider switches the class, it
	// never creates a second account.
	switched, err := service.FindOrCreate(context.Background(), identity.FindOrCreateInput{
		Email:    "dev@example.com",
		Name:     "Dev",
		Provider: identity.KindGoogle,
		Username: "dev-google",
		IP:       "10.0.0.2",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, switched.ID)
	assert.Equal(t, identity.KindGoogle, switched.Kind)
	assert.Equal(t, "dev-google", switched.LinkedProfile.Username)
	assert.Len(t, switched.LoginHistory, 2)
}

/*
TestService_FindOrCreateClaimsPasswordAccount verifies that a provider
sign-in adopts an existing password account instead of duplicating it.
*/
func TestService_FindOrCreateClaimsPasswordAccount(t *testing.T) {
	repo := newFakeUserRepo()
	service := newIdentityService(repo, nil, nil)

	registered, err := service.Register(context.Background(), identity.RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "ada@lumenbase.app",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	resolved, err := service.FindOrCreate(context.Background(), identity.FindOrCreateInput{
		Email:    "ada@lumenbase.app",
		Name:     "Ada",
		Provider: identity.KindGitHub,
		Username: "ada",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resolved.ID)
	assert.Equal(t, identity.KindGitHub, resolved.Kind)
}

// # Directory

/*
TestDirectory_Entry verifies the adapter the token registry consumes.
*/
func TestDirectory_Entry(t *testing.T) {
	repo := newFakeUserRepo()
	service := newIdentityService(repo, nil, nil)
	directory := identity.NewDirectory(repo)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "ada@lumenbase.app",
		Password: "correct-horse-battery",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)

	entry, err := directory.DirectoryEntry(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@lumenbase.app", entry.Email)
	assert.Equal(t, "Ada Lovelace", entry.Name)
	assert.Equal(t, []string{"10.0.0.1"}, entry.KnownIPs)

	_, err = directory.DirectoryEntry(context.Background(), "no-such-user")
	assert.Error(t, err)
}

// # Account Lifecycle

/*
TestService_DeleteAccount verifies the cascade order and the missing-account
guard.
*/
func TestService_DeleteAccount(t *testing.T) {
	repo := newFakeUserRepo()
	tokens := &recordingPurger{}
	grants := &recordingPurger{}
	service := newIdentityService(repo, tokens, grants)

	user, err := service.Register(context.Background(), identity.RegisterInput{
		Name:     "Ada Lovelace",
		Email:    "ada@lumenbase.app",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	require.NoError(t, service.DeleteAccount(context.Background(), user.ID))

	assert.Equal(t, []string{user.ID}, tokens.purged)
	assert.Equal(t, []string{user.ID}, grants.purged)

	_, err = service.FindByID(context.Background(), user.ID)
	assert.Error(t, err)

	// Deleting an unknown account never triggers the purgers.
	require.Error(t, service.DeleteAccount(context.Background(), "no-such-user"))
	assert.Len(t, tokens.purged, 1)

	// The email is free for re-registration after deletion.
	_, err = service.Register(context.Background(), identity.RegisterInput{
		Name:     "Ada Again",
		Email:    "ada@lumenbase.app",
		Password: "a-new-password",
	})
	assert.NoError(t, err)
}
