package services

import (
	"context"
	"testing"
	"time"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *upstream, *memStore) {
	t.Helper()
	up := newUpstream(t)
	store := newMemStore()
	manager := NewSessionManager(up.client(), store, newConnectivityStub(true), nil, SessionConfig{
		CacheTTL:        DefaultCacheTTL,
		CacheMaxEntries: DefaultCacheMaxEntries,
		CacheMaxBytes:   DefaultCacheMaxBytes,
	})
	t.Cleanup(manager.Shutdown)
	return manager, up, store
}

func TestSessionManager_SessionsAreIndependent(t *testing.T) {
	manager, up, _ := newTestSessionManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := manager.Get(ctx, "session-a")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	again, _ := manager.Get(ctx, "session-a")
	if first != again {
		t.Fatal("Get should return the same service for a session")
	}
	second, _ := manager.Get(ctx, "session-b")

	if _, err := first.Lookup(ctx, "Gandalf", FetchOptions{}); err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if len(second.RecentSearches()) != 0 {
		t.Error("recent searches should not leak between sessions")
	}

	outcome, err := second.Lookup(ctx, "Gandalf", FetchOptions{})
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if outcome.FromCache {
		t.Error("caches should not be shared between sessions")
	}
	if up.Calls() != 2 {
		t.Errorf("calls = %d, want 2", up.Calls())
	}
	if manager.Count() != 2 {
		t.Errorf("count = %d, want 2", manager.Count())
	}

	if snapshot := manager.Metrics().GetSnapshot(); snapshot.SuccessfulLookups != 2 {
		t.Errorf("shared metrics successful lookups = %d, want 2", snapshot.SuccessfulLookups)
	}
}

func TestSessionManager_ReapIdleSkipsSubscribedSessions(t *testing.T) {
	manager, _, store := newTestSessionManager(t)
	ctx := context.Background()

	idle, _ := manager.Get(ctx, "idle")
	if _, err := idle.Lookup(ctx, "Gandalf", FetchOptions{}); err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	watched, _ := manager.Get(ctx, "watched")
	_, unsubscribe := watched.Subscribe()
	defer unsubscribe()

	if reaped := manager.ReapIdle(0); reaped != 1 {
		t.Fatalf("reaped = %d, want 1", reaped)
	}
	if _, exists := manager.Sessions()["watched"]; !exists {
		t.Error("session with subscribers must not be reaped")
	}
	if _, exists := manager.Sessions()["idle"]; exists {
		t.Error("idle session should be reaped")
	}

	if _, found, _ := store.Get(ctx, RecentSearchesKeyFor("idle")); !found {
		t.Fatal("reaped session should keep its persisted recent searches")
	}
	revived, _ := manager.Get(ctx, "idle")
	if recent := revived.RecentSearches(); len(recent) != 1 || recent[0].Name != "Gandalf" {
		t.Errorf("revived session recent searches = %v, want [Gandalf]", names(recent))
	}
}

func TestSessionManager_ReapIdleKeepsActiveSessions(t *testing.T) {
	manager, _, _ := newTestSessionManager(t)
	manager.Get(context.Background(), "active")

	if reaped := manager.ReapIdle(time.Hour); reaped != 0 {
		t.Errorf("reaped = %d, want 0", reaped)
	}
}

func TestSessionManager_PurgeExpiredAndShutdown(t *testing.T) {
	manager, _, _ := newTestSessionManager(t)
	ctx := context.Background()
	service, _ := manager.Get(ctx, "session")
	service.Lookup(ctx, "Gandalf", FetchOptions{})

	if removed := manager.PurgeExpired(ctx); removed != 0 {
		t.Errorf("fresh entries should not be purged, removed %d", removed)
	}

	manager.Shutdown()
	if manager.Count() != 0 {
		t.Errorf("count after Shutdown = %d, want 0", manager.Count())
	}
	if _, err := service.Lookup(ctx, "Gandalf", FetchOptions{}); err != ErrServiceStopped {
		t.Errorf("lookup after Shutdown error = %v, want ErrServiceStopped", err)
	}
}

func TestSessionManager_EmptyIDSelectsDefaultSession(t *testing.T) {
	manager, up, store := newTestSessionManager(t)
	ctx := context.Background()

	first, err := manager.Get(ctx, "")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	for i := 0; i < 5; i++ {
		service, _ := manager.Get(ctx, "")
		if service != first {
			t.Fatal("clients without a session id should share one service")
		}
		if _, err := service.Lookup(ctx, "Gandalf", FetchOptions{}); err != nil {
			t.Fatalf("lookup error: %v", err)
		}
	}

	if manager.Count() != 1 {
		t.Errorf("count = %d, want 1", manager.Count())
	}
	if _, exists := manager.Sessions()[DefaultSessionID]; !exists {
		t.Errorf("sessions = %v, want the default session", manager.Sessions())
	}
	if up.Calls() != 1 {
		t.Errorf("calls = %d, repeat lookups should share the default session cache", up.Calls())
	}
	if _, found, _ := store.Get(ctx, RecentSearchesKey); !found {
		t.Error("default session should persist recent searches under the shared key")
	}
}

func TestSessionManager_MaxSessionsEvictsLeastActive(t *testing.T) {
	up := newUpstream(t)
	manager := NewSessionManager(up.client(), newMemStore(), newConnectivityStub(true), nil, SessionConfig{
		CacheTTL:        DefaultCacheTTL,
		CacheMaxEntries: DefaultCacheMaxEntries,
		CacheMaxBytes:   DefaultCacheMaxBytes,
		MaxSessions:     3,
	})
	t.Cleanup(manager.Shutdown)
	ctx := context.Background()

	manager.Get(ctx, "")
	older, _ := manager.Get(ctx, "older")
	time.Sleep(2 * time.Millisecond)
	newer, _ := manager.Get(ctx, "newer")
	time.Sleep(2 * time.Millisecond)
	if _, err := older.Lookup(ctx, "Gandalf", FetchOptions{}); err != nil {
		t.Fatalf("lookup error: %v", err)
	}

	manager.Get(ctx, "latest")

	sessions := manager.Sessions()
	if len(sessions) != 3 {
		t.Fatalf("count = %d, want the cap of 3", len(sessions))
	}
	if _, exists := sessions["newer"]; exists {
		t.Error("least recently active session should be evicted")
	}
	for _, id := range []string{DefaultSessionID, "older", "latest"} {
		if _, exists := sessions[id]; !exists {
			t.Errorf("session %q should survive", id)
		}
	}
	if _, err := newer.Lookup(ctx, "Gandalf", FetchOptions{}); err != ErrServiceStopped {
		t.Errorf("evicted session lookup error = %v, want ErrServiceStopped", err)
	}
}

func TestSessionManager_DefaultMaxSessions(t *testing.T) {
	manager := NewSessionManager(nil, nil, nil, nil, SessionConfig{})
	t.Cleanup(manager.Shutdown)
	if manager.config.MaxSessions != DefaultMaxSessions {
		t.Errorf("max sessions = %d, want %d", manager.config.MaxSessions, DefaultMaxSessions)
	}
}
