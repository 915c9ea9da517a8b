// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package grant_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbase/accounts/internal/core/grant"
)

/*
TestNewGrant verifies the initial state of a freshly requested grant.
*/
func TestNewGrant(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read", "email:read"})

	assert.Equal(t, grant.StatusPending, aggregate.Status)
	assert.Len(t, aggregate.Scopes, 2)
	assert.Empty(t, aggregate.GrantedScopes())

	require.Len(t, aggregate.Audit, 1)
	assert.Equal(t, grant.AuditRequested, aggregate.Audit[0].Action)
	assert.Equal(t, "profile:read email:read", aggregate.Audit[0].Details)
}

/*
TestGrant_GrantScopeIdempotent verifies that re-granting a scope neither
mutates state nor pollutes the audit log.
*/
func TestGrant_GrantScopeIdempotent(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read"})

	aggregate.GrantScope("profile:read", nil, "user-1")
	auditLen := len(aggregate.Audit)
	firstGrantedAt := aggregate.Scopes[0].GrantedAt

	aggregate.GrantScope("profile:read", nil, "user-1")

	assert.Len(t, aggregate.Audit, auditLen)
	assert.Equal(t, firstGrantedAt, aggregate.Scopes[0].GrantedAt)
}

/*
TestGrant_GrantScopeUnrequested verifies that granting a scope that was never
requested adds it to the aggregate.
*/
func TestGrant_GrantScopeUnrequested(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read"})

	aggregate.GrantScope("projects:read", nil, "user-1")

	assert.ElementsMatch(t, []string{"projects:read"}, aggregate.GrantedScopes())
}

/*
TestGrant_ScopeAllowed verifies the three conditions gating scope exercise:
approval, grant, and expiry.
*/
func TestGrant_ScopeAllowed(t *testing.T) {
	now := time.Now()

	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read"})
	aggregate.GrantScope("profile:read", nil, "user-1")

	// Granted but not yet approved: not allowed.
	assert.False(t, aggregate.ScopeAllowed("profile:read", now))

	aggregate.Approve("user-1")
	assert.True(t, aggregate.ScopeAllowed("profile:read", now))

	// Never granted scope stays disallowed even after approval.
	assert.False(t, aggregate.ScopeAllowed("email:read", now))

	// An expired scope grant is dead.
	past := now.Add(-time.Hour)
	aggregate.Scopes[0].ExpiresAt = &past
	assert.False(t, aggregate.ScopeAllowed("profile:read", now))
}

/*
TestGrant_RevokeScope verifies that revoking one scope leaves the rest of the
grant intact.
*/
func TestGrant_RevokeScope(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read", "email:read"})
	aggregate.GrantScope("profile:read", nil, "user-1")
	aggregate.GrantScope("email:read", nil, "user-1")
	aggregate.Approve("user-1")

	aggregate.RevokeScope("email:read", "user request", "user-1")

	assert.Equal(t, grant.StatusApproved, aggregate.Status)
	assert.True(t, aggregate.ScopeAllowed("profile:read", time.Now()))
	assert.False(t, aggregate.ScopeAllowed("email:read", time.Now()))

	// Revoking an ungranted scope is a no-op with no audit entry.
	auditLen := len(aggregate.Audit)
	aggregate.RevokeScope("email:read", "again", "user-1")
	assert.Len(t, aggregate.Audit, auditLen)
}

/*
TestGrant_RevokeAll verifies the full-revocation transition.
*/
func TestGrant_RevokeAll(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read", "email:read"})
	aggregate.GrantScope("profile:read", nil, "user-1")
	aggregate.GrantScope("email:read", nil, "user-1")
	aggregate.Approve("user-1")

	aggregate.RevokeAll("app disconnected", "user-1")

	assert.Equal(t, grant.StatusRevoked, aggregate.Status)
	assert.Empty(t, aggregate.GrantedScopes())
	assert.False(t, aggregate.ScopeAllowed("profile:read", time.Now()))
}

/*
TestGrant_AuditTrail verifies that every transition appends and nothing ever
removes an entry.
*/
func TestGrant_AuditTrail(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read"})
	aggregate.GrantScope("profile:read", nil, "user-1")
	aggregate.Approve("user-1")
	aggregate.RecordUse("profile:read")
	aggregate.RevokeScope("profile:read", "cleanup", "admin@lumenbase.app")
	aggregate.Deny("policy", "admin@lumenbase.app")

	actions := make([]string, 0, len(aggregate.Audit))
	for _, entry := range aggregate.Audit {
		actions = append(actions, entry.Action)
	}

	assert.Equal(t, []string{
		grant.AuditRequested,
		grant.AuditGranted,
		grant.AuditApproved,
		grant.AuditUsed,
		grant.AuditRevoked,
		grant.AuditDenied,
	}, actions)
}

/*
TestGrant_RecordUse verifies usage counters on both the scope and the
aggregate.
*/
func TestGrant_RecordUse(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read"})
	aggregate.GrantScope("profile:read", nil, "user-1")

	aggregate.RecordUse("profile:read")
	aggregate.RecordUse("profile:read")
	aggregate.RecordUse("never-requested")

	assert.Equal(t, int64(2), aggregate.Scopes[0].UseCount)
	assert.Equal(t, int64(2), aggregate.TotalRequests)
	assert.NotNil(t, aggregate.Scopes[0].LastUsedAt)
}

/*
TestGrant_MissingScopes verifies the incremental-consent diff.
*/
func TestGrant_MissingScopes(t *testing.T) {
	aggregate := grant.NewGrant("app-1", "user-1", []string{"profile:read"})
	aggregate.GrantScope("profile:read", nil, "user-1")

	missing := aggregate.MissingScopes([]string{"profile:read", "email:read", "projects:read"})
	assert.Equal(t, []string{"email:read", "projects:read"}, missing)

	assert.Nil(t, aggregate.MissingScopes([]string{"profile:read"}))
}

/*
TestParseScopes verifies catalog filtering of the wire scope string.
*/
func TestParseScopes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "known_scopes", raw: "profile:read email:read", want: []string{"profile:read", "email:read"}},
		{name: "unknown_dropped", raw: "profile:read wildcard:* email:read", want: []string{"profile:read", "email:read"}},
		{name: "all_unknown", raw: "foo bar", want: nil},
		{name: "empty", raw: "", want: nil},
		{name: "extra_whitespace", raw: "  profile:read\t projects:write ", want: []string{"profile:read", "projects:write"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, grant.ParseScopes(tt.raw))
		})
	}
}
