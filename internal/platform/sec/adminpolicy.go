// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package sec

import "strings"

// # User Roles

const (
	// Unrestricted system access, derived from the admin allow-list
	RoleAdmin = "admin"

	// Default role for every registered account
	RoleUser = "user"
)

// AdminPolicy is the single source of truth for the admin role.
//
// # Why injected?
//
// The admin allow-list used to be consulted in several modules; consolidating
// it into one injected component means role decisions are consistent
// everywhere and independently testable.
type AdminPolicy struct {
	emails map[string]struct{}
}

// NewAdminPolicy builds a policy from an email allow-list.
// Entries are matched case-insensitively.
func NewAdminPolicy(adminEmails []string) *AdminPolicy {
	emails := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		normalized := strings.ToLower(strings.TrimSpace(email))
		if normalized != "" {
			emails[normalized] = struct{}{}
		}
	}
	return &AdminPolicy{emails: emails}
}

// IsAdmin reports whether the email belongs to the admin allow-list.
func (policy *AdminPolicy) IsAdmin(email string) bool {
	_, found := policy.emails[strings.ToLower(strings.TrimSpace(email))]
	return found
}

// RoleFor returns the role string embedded into issued tokens.
func (policy *AdminPolicy) RoleFor(email string) string {
	if policy.IsAdmin(email) {
		return RoleAdmin
	}
	return RoleUser
}
