// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package grant

import "strings"

// # Scope Catalog

// ScopeDefinition describes one entry of the fixed scope catalog.
type ScopeDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Sensitive scopes are visually distinguished on the consent screen.
	Sensitive bool `json:"sensitive"`

	// RequiresAdminApproval blocks self-service approval; only an admin
	// actor can grant the scope.
	RequiresAdminApproval bool `json:"requires_admin_approval,omitempty"`
}

// Catalog is the fixed enumeration of scopes applications may request.
// Order matters: it is the display order on the consent screen.
var Catalog = []ScopeDefinition{
	{Name: "profile:read", Description: "Read your display name and avatar"},
	{Name: "profile:write", Description: "Update your profile information", Sensitive: true},
	{Name: "email:read", Description: "Read your email address", Sensitive: true},
	{Name: "projects:read", Description: "Read your Lumen Studio projects"},
	{Name: "projects:write", Description: "Create and modify your Lumen Studio projects", Sensitive: true},
	{Name: "admin:read", Description: "Read administrative account data", Sensitive: true, RequiresAdminApproval: true},
}

// LookupScope returns the catalog entry for a scope name.
func LookupScope(name string) (ScopeDefinition, bool) {
	for _, definition := range Catalog {
		if definition.Name == name {
			return definition, true
		}
	}
	return ScopeDefinition{}, false
}

// ParseScopes splits a space-delimited scope string and drops names that are
// not in the catalog. Unknown scopes are silently ignored rather than failing
// the whole request; an application asking for nothing valid ends up with an
// empty set, which the authorization server rejects.
func ParseScopes(raw string) []string {
	var scopes []string
	for _, name := range strings.Fields(raw) {
		if _, known := LookupScope(name); known {
			scopes = append(scopes, name)
		}
	}
	return scopes
}

// JoinScopes renders a scope set back into the wire format.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
