// Copyright (c) 2026 Lumenbase. All rights reserved.
// Author: platform@lumenbase.app

package tokenreg_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbase/accounts/internal/core/tokenreg"
	"github.com/lumenbase/accounts/internal/platform/apperr"
	"github.com/lumenbase/accounts/internal/platform/sec"
	"github.com/lumenbase/accounts/pkg/pagination"
)

// # Fakes

type fakeTokenRepo struct {
	mu      sync.Mutex
	records map[string]*tokenreg.TokenRecord
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{records: make(map[string]*tokenreg.TokenRecord)}
}

func (repo *fakeTokenRepo) Create(_ context.Context, record *tokenreg.TokenRecord) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	stored := *record
	stored.CreatedAt = time.Now()
	repo.records[record.ID] = &stored
	return nil
}

func (repo *fakeTokenRepo) FindByRefreshHash(_ context.Context, refreshHash string) (*tokenreg.TokenRecord, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, record := range repo.records {
		if record.RefreshTokenHash == refreshHash && record.Active() {
			copied := *record
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Token")
}

func (repo *fakeTokenRepo) FindByID(_ context.Context, recordID string) (*tokenreg.TokenRecord, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	record, ok := repo.records[recordID]
	if !ok {
		return nil, apperr.NotFound("Token")
	}
	copied := *record
	return &copied, nil
}

func (repo *fakeTokenRepo) RevokeIfActive(_ context.Context, recordID string) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	record, ok := repo.records[recordID]
	if !ok || record.Revoked {
		return false, nil
	}
	now := time.Now()
	record.Revoked = true
	record.RevokedAt = &now
	return true, nil
}

func (repo *fakeTokenRepo) RevokeAllForUser(_ context.Context, userID, clientID string) (map[string]int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	revoked := make(map[string]int64)
	now := time.Now()
	for _, record := range repo.records {
		if record.UserID != userID || record.Revoked {
			continue
		}
		if clientID != "" && record.ClientID != clientID {
			continue
		}
		record.Revoked = true
		record.RevokedAt = &now
		revoked[record.ClientID]++
	}
	return revoked, nil
}

func (repo *fakeTokenRepo) List(_ context.Context, filter tokenreg.TokenFilter, _ pagination.Params) ([]*tokenreg.TokenRecord, int, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var out []*tokenreg.TokenRecord
	for _, record := range repo.records {
		if filter.UserID != "" && record.UserID != filter.UserID {
			continue
		}
		if filter.ClientID != "" && record.ClientID != filter.ClientID {
			continue
		}
		copied := *record
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (repo *fakeTokenRepo) PurgeExpired(_ context.Context) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var count int64
	for id, record := range repo.records {
		if !record.Revoked && time.Now().After(record.ExpiresAt) {
			delete(repo.records, id)
			count++
		}
	}
	return count, nil
}

func (repo *fakeTokenRepo) activeCount(userID, clientID string) int {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	count := 0
	for _, record := range repo.records {
		if record.UserID == userID && record.ClientID == clientID && record.Active() {
			count++
		}
	}
	return count
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*tokenreg.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*tokenreg.Session)}
}

func (repo *fakeSessionRepo) Create(_ context.Context, session *tokenreg.Session, cap int) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	stored := *session
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.LastActiveAt.IsZero() {
		stored.LastActiveAt = now
	}
	repo.sessions[session.ID] = &stored

	// Enforce the concurrency cap the way the real store does: evict the
	// least-recently-active session when the new one pushes past the cap.
	active := repo.activeLocked(session.UserID)
	for len(active) > cap {
		oldest := active[len(active)-1]
		oldest.IsActive = false
		active = active[:len(active)-1]
	}
	return nil
}

func (repo *fakeSessionRepo) activeLocked(userID string) []*tokenreg.Session {
	var active []*tokenreg.Session
	for _, session := range repo.sessions {
		if session.UserID == userID && session.IsActive {
			active = append(active, session)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActiveAt.After(active[j].LastActiveAt)
	})
	return active
}

func (repo *fakeSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*tokenreg.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, session := range repo.sessions {
		if session.TokenHash == tokenHash && session.IsActive {
			copied := *session
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("Session")
}

func (repo *fakeSessionRepo) FindByID(_ context.Context, sessionID string) (*tokenreg.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	session, ok := repo.sessions[sessionID]
	if !ok {
		return nil, apperr.NotFound("Session")
	}
	copied := *session
	return &copied, nil
}

func (repo *fakeSessionRepo) ListActive(_ context.Context, userID string) ([]*tokenreg.Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	active := repo.activeLocked(userID)
	out := make([]*tokenreg.Session, 0, len(active))
	for _, session := range active {
		copied := *session
		out = append(out, &copied)
	}
	return out, nil
}

func (repo *fakeSessionRepo) Touch(_ context.Context, sessionID, ip string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.sessions[sessionID]; ok {
		session.LastActiveAt = time.Now()
		if ip != "" {
			session.IPAddress = ip
		}
	}
	return nil
}

func (repo *fakeSessionRepo) Deactivate(_ context.Context, sessionID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.sessions[sessionID]; ok {
		session.IsActive = false
	}
	return nil
}

func (repo *fakeSessionRepo) DeactivateOthers(_ context.Context, userID, currentSessionID string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var count int64
	for _, session := range repo.sessions {
		if session.UserID == userID && session.IsActive && session.ID != currentSessionID {
			session.IsActive = false
			count++
		}
	}
	return count, nil
}

func (repo *fakeSessionRepo) DeactivateAll(_ context.Context, userID string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var count int64
	for _, session := range repo.sessions {
		if session.UserID == userID && session.IsActive {
			session.IsActive = false
			count++
		}
	}
	return count, nil
}

func (repo *fakeSessionRepo) backdate(sessionID string, lastActive time.Time) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if session, ok := repo.sessions[sessionID]; ok {
		session.LastActiveAt = lastActive
	}
}

// fakeAppCounter tracks per-application active-token gauges the way the
// client repository does.
type fakeAppCounter struct {
	mu     sync.Mutex
	active map[string]int64
}

func newFakeAppCounter() *fakeAppCounter {
	return &fakeAppCounter{active: make(map[string]int64)}
}

func (counter *fakeAppCounter) RecordIssuance(_ context.Context, clientID string) error {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	counter.active[clientID]++
	return nil
}

func (counter *fakeAppCounter) AdjustActiveTokens(_ context.Context, clientID string, delta int64) error {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	counter.active[clientID] += delta
	return nil
}

func (counter *fakeAppCounter) gauge(clientID string) int64 {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	return counter.active[clientID]
}

type fakeDirectory struct {
	knownIPs []string
}

func (directory *fakeDirectory) DirectoryEntry(_ context.Context, userID string) (*tokenreg.DirectoryEntry, error) {
	return &tokenreg.DirectoryEntry{
		Email:    userID + "@lumenbase.app",
		Name:     "Test User",
		KnownIPs: directory.knownIPs,
	}, nil
}

// # Harness

type registryHarness struct {
	service  *tokenreg.Service
	tokens   *fakeTokenRepo
	sessions *fakeSessionRepo
	apps     *fakeAppCounter
}

func newRegistryHarness(t *testing.T, directory tokenreg.Directory) *registryHarness {
	t.Helper()

	codec, err := sec.NewTokenService(
		"access-secret-for-tests",
		"refresh-secret-for-tests",
		"accounts.test",
		time.Hour,
		30*24*time.Hour,
		sec.NewAdminPolicy(nil),
	)
	require.NoError(t, err)

	if directory == nil {
		directory = &fakeDirectory{}
	}

	tokens := newFakeTokenRepo()
	sessions := newFakeSessionRepo()
	apps := newFakeAppCounter()
	service := tokenreg.NewService(tokens, sessions, codec, apps, directory, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return &registryHarness{service: service, tokens: tokens, sessions: sessions, apps: apps}
}

func issuePair(t *testing.T, harness *registryHarness, userID, clientID string, scopes []string) *sec.TokenPair {
	t.Helper()
	pair, err := harness.service.IssueTokens(context.Background(), tokenreg.IssueInput{
		UserID:   userID,
		Email:    userID + "@lumenbase.app",
		Name:     "Test User",
		ClientID: clientID,
		Scopes:   scopes,
	})
	require.NoError(t, err)
	return pair
}

// # Refresh Rotation

/*
TestService_RefreshRotation verifies that rotation yields a working new pair
and permanently retires the presented token.
*/
func TestService_RefreshRotation(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	pair := issuePair(t, harness, "user-1", "app-1", []string{"profile:read"})

	rotated, err := harness.service.Refresh(context.Background(), pair.RefreshToken, "app-1", "")
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, pair.SessionID, rotated.SessionID)

	claims := harness.service.VerifyAccess(rotated.AccessToken)
	require.NotNil(t, claims)
	assert.Equal(t, "user-1", claims.UserID())
	assert.True(t, claims.HasScope("profile:read"))

	// The spent token must be dead: presenting it again is rejected.
	_, err = harness.service.Refresh(context.Background(), pair.RefreshToken, "app-1", "")
	assert.ErrorIs(t, err, tokenreg.ErrTokenInvalid)

	// The replacement still works.
	_, err = harness.service.Refresh(context.Background(), rotated.RefreshToken, "app-1", "")
	assert.NoError(t, err)
}

/*
TestService_RefreshClientPinning verifies that a refresh token only rotates
for the application it was issued to.
*/
func TestService_RefreshClientPinning(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	pair := issuePair(t, harness, "user-1", "app-1", nil)

	_, err := harness.service.Refresh(context.Background(), pair.RefreshToken, "app-2", "")
	assert.ErrorIs(t, err, tokenreg.ErrTokenInvalid)

	// The failed attempt must not have burned the record.
	_, err = harness.service.Refresh(context.Background(), pair.RefreshToken, "app-1", "")
	assert.NoError(t, err)
}

/*
TestService_RefreshOwnerPinning verifies that an owner-pinned rotation only
succeeds for the user the token was issued to, and that someone else's
attempt does not burn the record.
*/
func TestService_RefreshOwnerPinning(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	pair := issuePair(t, harness, "user-1", "app-1", nil)

	// A different signed-in user presenting the token is rejected.
	_, err := harness.service.Refresh(context.Background(), pair.RefreshToken, "app-1", "user-2")
	assert.ErrorIs(t, err, tokenreg.ErrTokenInvalid)

	// The owner's record survived the foreign attempt and still rotates.
	_, err = harness.service.Refresh(context.Background(), pair.RefreshToken, "app-1", "user-1")
	assert.NoError(t, err)
}

/*
TestService_RefreshGarbage verifies that malformed and foreign tokens are
rejected without reaching storage.
*/
func TestService_RefreshGarbage(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	pair := issuePair(t, harness, "user-1", "app-1", nil)

	tests := []struct {
		name  string
		token string
	}{
		{name: "not_a_token", token: "garbage"},
		{name: "access_token_as_refresh", token: pair.AccessToken},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := harness.service.Refresh(context.Background(), tt.token, "app-1", "")
			assert.ErrorIs(t, err, tokenreg.ErrTokenInvalid)
		})
	}
}

// # Revocation

/*
TestService_RevokeAllScopedToClient verifies that bulk revocation narrowed to
one application leaves the user's other applications untouched.
*/
func TestService_RevokeAllScopedToClient(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	issuePair(t, harness, "user-1", "app-1", nil)
	issuePair(t, harness, "user-1", "app-1", nil)
	other := issuePair(t, harness, "user-1", "app-2", nil)

	count, err := harness.service.RevokeAll(context.Background(), "user-1", "app-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Equal(t, 0, harness.tokens.activeCount("user-1", "app-1"))
	assert.Equal(t, 1, harness.tokens.activeCount("user-1", "app-2"))

	// The surviving application's refresh token still rotates.
	_, err = harness.service.Refresh(context.Background(), other.RefreshToken, "app-2", "")
	assert.NoError(t, err)
}

/*
TestService_RevokeTokenIdempotent verifies that revoking an already revoked
or unknown record is a no-op success.
*/
func TestService_RevokeTokenIdempotent(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	issuePair(t, harness, "user-1", "app-1", nil)

	records, _, err := harness.service.ListTokens(context.Background(), tokenreg.TokenFilter{UserID: "user-1"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, harness.service.RevokeToken(context.Background(), records[0].ID, "user-1"))
	require.NoError(t, harness.service.RevokeToken(context.Background(), records[0].ID, "user-1"))
	require.NoError(t, harness.service.RevokeToken(context.Background(), "no-such-record", "user-1"))
}

/*
TestService_RevokeTokenOwnership verifies that a non-admin can only revoke
records they own, while an unrestricted revoke reaches any record.
*/
func TestService_RevokeTokenOwnership(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	pair := issuePair(t, harness, "user-1", "app-1", nil)

	records, _, err := harness.service.ListTokens(context.Background(), tokenreg.TokenFilter{UserID: "user-1"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// A different owner is refused and the record stays live.
	err = harness.service.RevokeToken(context.Background(), records[0].ID, "user-2")
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "FORBIDDEN", ae.Code)
	assert.Equal(t, 1, harness.tokens.activeCount("user-1", "app-1"))

	// The owner's token was not burned by the refused attempt.
	_, err = harness.service.Refresh(context.Background(), pair.RefreshToken, "app-1", "user-1")
	require.NoError(t, err)

	// An unrestricted revoke (admin path) reaches the rotated record.
	records, _, err = harness.service.ListTokens(context.Background(), tokenreg.TokenFilter{UserID: "user-1"}, pagination.Params{})
	require.NoError(t, err)
	for _, record := range records {
		require.NoError(t, harness.service.RevokeToken(context.Background(), record.ID, ""))
	}
	assert.Equal(t, 0, harness.tokens.activeCount("user-1", "app-1"))
}

/*
TestService_GaugeReconciliation verifies that every revocation path settles
the per-application active-token gauges back to zero.
*/
func TestService_GaugeReconciliation(t *testing.T) {
	harness := newRegistryHarness(t, nil)
	issuePair(t, harness, "user-1", "app-1", nil)
	issuePair(t, harness, "user-1", "app-1", nil)
	issuePair(t, harness, "user-1", "app-2", nil)

	assert.Equal(t, int64(2), harness.apps.gauge("app-1"))
	assert.Equal(t, int64(1), harness.apps.gauge("app-2"))

	// A user-wide revoke must settle every touched application, not just one.
	count, err := harness.service.RevokeAll(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(0), harness.apps.gauge("app-1"))
	assert.Equal(t, int64(0), harness.apps.gauge("app-2"))

	// Single revoke decrements its application exactly once.
	issuePair(t, harness, "user-2", "app-1", nil)
	records, _, err := harness.service.ListTokens(context.Background(), tokenreg.TokenFilter{UserID: "user-2"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, harness.service.RevokeToken(context.Background(), records[0].ID, "user-2"))
	require.NoError(t, harness.service.RevokeToken(context.Background(), records[0].ID, "user-2"))
	assert.Equal(t, int64(0), harness.apps.gauge("app-1"))

	// The deletion cascade reconciles the same way.
	issuePair(t, harness, "user-3", "app-2", nil)
	require.NoError(t, harness.service.PurgeForUser(context.Background(), "user-3"))
	assert.Equal(t, int64(0), harness.apps.gauge("app-2"))
}

// # Sessions

/*
TestService_SessionCap verifies that an eleventh login evicts the least
recently active session instead of failing.
*/
func TestService_SessionCap(t *testing.T) {
	harness := newRegistryHarness(t, nil)

	var first *tokenreg.StartedSession
	for i := 0; i < 10; i++ {
		started, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
		require.NoError(t, err)
		if first == nil {
			first = started
		}
		// Stagger activity so eviction order is deterministic.
		harness.sessions.backdate(started.Session.ID, time.Now().Add(-time.Duration(10-i)*time.Minute))
	}

	_, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
	require.NoError(t, err)

	views, err := harness.service.ListSessions(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Len(t, views, 10)

	// The oldest session was the one evicted.
	for _, view := range views {
		assert.NotEqual(t, first.Session.ID, view.ID)
	}
}

/*
TestService_ResolveSession verifies opaque token resolution and its nil
result for unknown tokens.
*/
func TestService_ResolveSession(t *testing.T) {
	harness := newRegistryHarness(t, nil)

	started, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
	require.NoError(t, err)

	claims, err := harness.service.ResolveSession(context.Background(), started.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, started.Session.ID, claims.SessionID)

	claims, err = harness.service.ResolveSession(context.Background(), "unknown-token")
	require.NoError(t, err)
	assert.Nil(t, claims)
}

/*
TestService_TouchStaleness verifies the freshness contract: idle sessions go
stale and are deactivated, fresh ones get their activity advanced.
*/
func TestService_TouchStaleness(t *testing.T) {
	harness := newRegistryHarness(t, nil)

	started, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
	require.NoError(t, err)

	stale, err := harness.service.Touch(context.Background(), started.Session.ID, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, stale)

	refreshed, err := harness.sessions.FindByID(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", refreshed.IPAddress)

	// Past the idle window the session is reported stale and deactivated.
	harness.sessions.backdate(started.Session.ID, time.Now().Add(-25*time.Hour))
	stale, err = harness.service.Touch(context.Background(), started.Session.ID, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, stale)

	after, err := harness.sessions.FindByID(context.Background(), started.Session.ID)
	require.NoError(t, err)
	assert.False(t, after.IsActive)

	// Unknown sessions are stale by definition.
	stale, err = harness.service.Touch(context.Background(), "no-such-session", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, stale)
}

/*
TestService_ListSessionsAnnotations verifies the current-session flag and the
risk annotation for an unfamiliar IP.
*/
func TestService_ListSessionsAnnotations(t *testing.T) {
	directory := &fakeDirectory{knownIPs: []string{"10.0.0.1"}}
	harness := newRegistryHarness(t, directory)

	known, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
	require.NoError(t, err)
	stranger, err := harness.service.StartSession(context.Background(), "user-1", "Firefox", "203.0.113.9")
	require.NoError(t, err)

	views, err := harness.service.ListSessions(context.Background(), "user-1", known.Session.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := make(map[string]*tokenreg.SessionView, len(views))
	for _, view := range views {
		byID[view.ID] = view
	}

	assert.True(t, byID[known.Session.ID].Current)
	assert.False(t, byID[stranger.Session.ID].Current)
	assert.Equal(t, tokenreg.RiskLow, byID[known.Session.ID].RiskLevel)

	// A fresh session from an unseen IP scores for location novelty only.
	assert.Equal(t, tokenreg.RiskMedium, byID[stranger.Session.ID].RiskLevel)
	assert.Equal(t, 25, byID[stranger.Session.ID].RiskScore)
}

/*
TestService_TerminateOthers verifies that bulk termination spares the
requesting session.
*/
func TestService_TerminateOthers(t *testing.T) {
	harness := newRegistryHarness(t, nil)

	current, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := harness.service.StartSession(context.Background(), "user-1", "Firefox", "10.0.0.2")
		require.NoError(t, err)
	}

	count, err := harness.service.TerminateOthers(context.Background(), "user-1", current.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	views, err := harness.service.ListSessions(context.Background(), "user-1", current.Session.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Current)
}

/*
TestService_TerminateSessionIdempotent verifies that logout with an unknown
token is a silent success.
*/
func TestService_TerminateSessionIdempotent(t *testing.T) {
	harness := newRegistryHarness(t, nil)

	started, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, harness.service.TerminateSession(context.Background(), started.SessionToken))
	require.NoError(t, harness.service.TerminateSession(context.Background(), started.SessionToken))
	require.NoError(t, harness.service.TerminateSession(context.Background(), "never-issued"))

	claims, err := harness.service.ResolveSession(context.Background(), started.SessionToken)
	require.NoError(t, err)
	assert.Nil(t, claims)
}

// # Cascading Cleanup

/*
TestService_PurgeForUser verifies the account-deletion cascade: every token
revoked, every session terminated.
*/
func TestService_PurgeForUser(t *testing.T) {
	harness := newRegistryHarness(t, nil)

	issuePair(t, harness, "user-1", "app-1", nil)
	issuePair(t, harness, "user-1", "app-2", nil)
	started, err := harness.service.StartSession(context.Background(), "user-1", "Lumen Studio", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, harness.service.PurgeForUser(context.Background(), "user-1"))

	assert.Equal(t, 0, harness.tokens.activeCount("user-1", "app-1"))
	assert.Equal(t, 0, harness.tokens.activeCount("user-1", "app-2"))

	claims, err := harness.service.ResolveSession(context.Background(), started.SessionToken)
	require.NoError(t, err)
	assert.Nil(t, claims)
}
