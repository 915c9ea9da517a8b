// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package tokenreg

import (
	"time"

	"github.com/lumenbase/accounts/internal/platform/constants"
)

// # Session Risk Scoring

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

/*
ScoreSession computes the advisory risk score and level for a session.

Description: Signals are additive. An old session scores for age, a dormant
one for inactivity, and one whose IP never appeared in the user's recent
login history scores for location novelty. The result informs dashboards and
alerting only; it never gates an operation on its own.

Parameters:
  - session: *Session
  - knownIPs: []string (IPs from the user's recent login history)
  - now: time.Time

Returns:
  - int: Accumulated score
  - string: RiskLow | RiskMedium | RiskHigh
*/
func ScoreSession(session *Session, knownIPs []string, now time.Time) (int, string) {
	score := 0

	if now.Sub(session.CreatedAt) > constants.RiskSessionMaxAge {
		score += constants.RiskSessionAgeWeight
	}

	if now.Sub(session.LastActiveAt) > constants.RiskSessionMaxIdle {
		score += constants.RiskSessionIdleWeight
	}

	if !ipKnown(session.IPAddress, knownIPs) {
		score += constants.RiskUnknownIPWeight
	}

	switch {
	case score >= constants.RiskHighThreshold:
		return score, RiskHigh
	case score >= constants.RiskMediumThreshold:
		return score, RiskMedium
	default:
		return score, RiskLow
	}
}

func ipKnown(ip string, knownIPs []string) bool {
	for _, known := range knownIPs {
		if known == ip {
			return true
		}
	}
	return false
}
