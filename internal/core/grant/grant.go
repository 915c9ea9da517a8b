// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

/*
Package grant is the permission ledger: the authoritative record of what a
registered application may do on behalf of a user.

Tokens are a cached projection of this ledger at issuance time; the ledger
outlives any token. Each (application, user) pair holds one Grant aggregate
carrying per-scope state, an approval workflow, usage counters, and an
append-only audit log.

# Architecture

The aggregate exposes intent-named methods only. Callers never mutate fields
directly, which keeps every state transition audited and keeps the audit log
append-only by construction.
*/
package grant

import (
	"time"
)

// # Approval Workflow

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
	StatusRevoked  = "revoked"
)

// Audit actions recorded by the aggregate.
const (
	AuditRequested = "requested"
	AuditGranted   = "granted"
	AuditRevoked   = "revoked"
	AuditApproved  = "approved"
	AuditDenied    = "denied"
	AuditUsed      = "used"
)

// # Aggregate

// Conditions attach optional restrictions to a single scope grant.
type Conditions struct {
	AllowedIPs   []string `json:"allowed_ips,omitempty"`
	AllowedHours []int    `json:"allowed_hours,omitempty"` // Hours of day, UTC.
	RateLimit    int      `json:"rate_limit,omitempty"`    // Requests per window, 0 = unlimited.
}

// ScopeGrant is the per-scope state inside a Grant.
type ScopeGrant struct {
	Scope      string      `json:"scope"`
	Granted    bool        `json:"granted"`
	GrantedAt  *time.Time  `json:"granted_at,omitempty"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
	Conditions *Conditions `json:"conditions,omitempty"`
	UseCount   int64       `json:"use_count"`
	LastUsedAt *time.Time  `json:"last_used_at,omitempty"`
}

// AuditEntry is one immutable line of the grant's history.
type AuditEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Grant is the ledger aggregate for one (application, user) pair.
type Grant struct {
	ClientID      string        `json:"client_id"`
	UserID        string        `json:"user_id"`
	Status        string        `json:"status"`
	Scopes        []*ScopeGrant `json:"scopes"`
	TotalRequests int64         `json:"total_requests"`
	Audit         []AuditEntry  `json:"audit"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewGrant creates a pending grant recording the initially requested scopes.
func NewGrant(clientID, userID string, requestedScopes []string) *Grant {
	now := time.Now()
	aggregate := &Grant{
		ClientID:  clientID,
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, scope := range requestedScopes {
		aggregate.Scopes = append(aggregate.Scopes, &ScopeGrant{Scope: scope})
	}

	aggregate.appendAudit(AuditRequested, "", JoinScopes(requestedScopes))
	return aggregate
}

// # State Transitions

// GrantScope marks a scope granted. Idempotent: granting an already granted
// scope refreshes nothing and appends no audit entry.
func (aggregate *Grant) GrantScope(scope string, conditions *Conditions, actor string) {
	entry := aggregate.findScope(scope)
	if entry == nil {
		entry = &ScopeGrant{Scope: scope}
		aggregate.Scopes = append(aggregate.Scopes, entry)
	}

	if entry.Granted {
		return
	}

	now := time.Now()
	entry.Granted = true
	entry.GrantedAt = &now
	entry.Conditions = conditions
	aggregate.touch()
	aggregate.appendAudit(AuditGranted, actor, scope)
}

// RevokeScope withdraws one scope without destroying the whole grant.
func (aggregate *Grant) RevokeScope(scope, reason, actor string) {
	entry := aggregate.findScope(scope)
	if entry == nil || !entry.Granted {
		return
	}

	entry.Granted = false
	aggregate.touch()
	aggregate.appendAudit(AuditRevoked, actor, scope+": "+reason)
}

// Approve transitions the grant to approved.
func (aggregate *Grant) Approve(actor string) {
	aggregate.Status = StatusApproved
	aggregate.touch()
	aggregate.appendAudit(AuditApproved, actor, "")
}

// Deny transitions the grant to denied.
func (aggregate *Grant) Deny(reason, actor string) {
	aggregate.Status = StatusDenied
	aggregate.touch()
	aggregate.appendAudit(AuditDenied, actor, reason)
}

// RevokeAll withdraws every scope and marks the grant revoked.
func (aggregate *Grant) RevokeAll(reason, actor string) {
	for _, entry := range aggregate.Scopes {
		entry.Granted = false
	}
	aggregate.Status = StatusRevoked
	aggregate.touch()
	aggregate.appendAudit(AuditRevoked, actor, "all scopes: "+reason)
}

// RecordUse increments usage counters for one scope exercise.
func (aggregate *Grant) RecordUse(scope string) {
	entry := aggregate.findScope(scope)
	if entry == nil {
		return
	}

	now := time.Now()
	entry.UseCount++
	entry.LastUsedAt = &now
	aggregate.TotalRequests++
	aggregate.touch()
	aggregate.appendAudit(AuditUsed, "", scope)
}

// # Queries

// ScopeAllowed reports whether a token may exercise the scope right now:
// the grant must be approved and the scope granted and unexpired.
func (aggregate *Grant) ScopeAllowed(scope string, now time.Time) bool {
	if aggregate.Status != StatusApproved {
		return false
	}

	entry := aggregate.findScope(scope)
	if entry == nil || !entry.Granted {
		return false
	}

	if entry.ExpiresAt != nil && now.After(*entry.ExpiresAt) {
		return false
	}

	return true
}

// GrantedScopes returns the names of currently granted, unexpired scopes.
func (aggregate *Grant) GrantedScopes() []string {
	now := time.Now()
	var scopes []string
	for _, entry := range aggregate.Scopes {
		if entry.Granted && (entry.ExpiresAt == nil || now.Before(*entry.ExpiresAt)) {
			scopes = append(scopes, entry.Scope)
		}
	}
	return scopes
}

// MissingScopes returns the requested scopes not currently granted.
func (aggregate *Grant) MissingScopes(requested []string) []string {
	granted := make(map[string]bool)
	for _, scope := range aggregate.GrantedScopes() {
		granted[scope] = true
	}

	var missing []string
	for _, scope := range requested {
		if !granted[scope] {
			missing = append(missing, scope)
		}
	}
	return missing
}

// # Internals

func (aggregate *Grant) findScope(scope string) *ScopeGrant {
	for _, entry := range aggregate.Scopes {
		if entry.Scope == scope {
			return entry
		}
	}
	return nil
}

func (aggregate *Grant) touch() {
	aggregate.UpdatedAt = time.Now()
}

func (aggregate *Grant) appendAudit(action, actor, details string) {
	aggregate.Audit = append(aggregate.Audit, AuditEntry{
		Action:    action,
		Timestamp: time.Now(),
		Actor:     actor,
		Details:   details,
	})
}
