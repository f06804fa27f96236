package services

import (
	"context"
	"sync"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultSessionID is shared by clients that do not send a session id
	DefaultSessionID   = "default"
	DefaultMaxSessions = 1000
)

// SessionConfig holds the settings every session's lookup service is built with
type SessionConfig struct {
	CacheTTL        time.Duration
	CacheMaxEntries int
	CacheMaxBytes   int64
	MinLoading      time.Duration
	// MaxSessions caps live sessions; the least recently active one is stopped to make room
	MaxSessions int
}

// SessionManager owns one CharacterLookupService per client session, so that
// concurrent clients never cancel each other's fetches.
type SessionManager struct {
	mutex        sync.Mutex
	sessions     map[string]*CharacterLookupService
	fetcher      CharacterFetcher
	store        shared.KeyValueStore
	connectivity shared.ConnectivityChecker
	metrics      *shared.LookupMetrics
	config       SessionConfig
	logger       *logrus.Entry
}

// NewSessionManager creates a manager; store may be nil to keep recent searches in memory
func NewSessionManager(fetcher CharacterFetcher, store shared.KeyValueStore, connectivity shared.ConnectivityChecker, metrics *shared.LookupMetrics, config SessionConfig) *SessionManager {
	if metrics == nil {
		metrics = shared.NewLookupMetrics()
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultMaxSessions
	}
	return &SessionManager{
		sessions:     make(map[string]*CharacterLookupService),
		fetcher:      fetcher,
		store:        store,
		connectivity: connectivity,
		metrics:      metrics,
		config:       config,
		logger:       logrus.WithField("component", "SessionManager"),
	}
}

// Get returns the service of sessionID, creating and starting it on first use.
// An empty id selects the shared default session.
func (m *SessionManager) Get(ctx context.Context, sessionID string) (*CharacterLookupService, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if service, exists := m.sessions[sessionID]; exists {
		return service, nil
	}

	if len(m.sessions) >= m.config.MaxSessions {
		m.evictLeastActiveLocked()
	}

	recentKey := RecentSearchesKeyFor(sessionID)
	if sessionID == DefaultSessionID {
		recentKey = RecentSearchesKey
	}

	service := NewCharacterLookupService(LookupDependencies{
		Fetcher:      m.fetcher,
		Cache:        NewCacheServiceWithConfig(m.config.CacheTTL, m.config.CacheMaxEntries, m.config.CacheMaxBytes),
		Recent:       NewRecentSearches(m.store, recentKey),
		Connectivity: m.connectivity,
		Metrics:      m.metrics,
		MinLoading:   m.config.MinLoading,
	})
	if err := service.Start(ctx); err != nil {
		return nil, err
	}
	m.sessions[sessionID] = service

	m.logger.WithFields(logrus.Fields{
		"session_id":      sessionID,
		"active_sessions": len(m.sessions),
	}).Debug("Started lookup session")
	return service, nil
}

// evictLeastActiveLocked stops the least recently active session other than the
// default one. Callers hold m.mutex.
func (m *SessionManager) evictLeastActiveLocked() {
	var (
		oldestID string
		oldest   *CharacterLookupService
	)
	for id, service := range m.sessions {
		if id == DefaultSessionID {
			continue
		}
		if oldest == nil || service.LastActivity().Before(oldest.LastActivity()) {
			oldestID, oldest = id, service
		}
	}
	if oldest == nil {
		return
	}

	delete(m.sessions, oldestID)
	oldest.Stop()
	m.logger.WithFields(logrus.Fields{
		"session_id":   oldestID,
		"max_sessions": m.config.MaxSessions,
	}).Info("Evicted least recently active lookup session")
}

// Sessions returns the currently active services keyed by session id
func (m *SessionManager) Sessions() map[string]*CharacterLookupService {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	out := make(map[string]*CharacterLookupService, len(m.sessions))
	for id, service := range m.sessions {
		out[id] = service
	}
	return out
}

// Count returns the number of active sessions
func (m *SessionManager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.sessions)
}

// ReapIdle stops sessions idle for longer than idleTimeout that have no subscribers.
// Their recent searches stay persisted and are reloaded on next use.
func (m *SessionManager) ReapIdle(idleTimeout time.Duration) int {
	cutoff := time.Now().Add(-idleTimeout)

	m.mutex.Lock()
	var idle []*CharacterLookupService
	for id, service := range m.sessions {
		if service.SubscriberCount() > 0 || service.LastActivity().After(cutoff) {
			continue
		}
		idle = append(idle, service)
		delete(m.sessions, id)
	}
	m.mutex.Unlock()

	for _, service := range idle {
		service.Stop()
	}
	if len(idle) > 0 {
		m.logger.WithField("reaped", len(idle)).Info("Stopped idle lookup sessions")
	}
	return len(idle)
}

// PurgeExpired purges expired cache entries of every session and returns the total removed
func (m *SessionManager) PurgeExpired(ctx context.Context) int {
	total := 0
	for id, service := range m.Sessions() {
		removed, err := service.PurgeExpired(ctx)
		if err != nil {
			m.logger.WithError(err).WithField("session_id", id).Debug("Skipped cache purge")
			continue
		}
		total += removed
	}
	return total
}

// Metrics returns the metrics shared by all sessions
func (m *SessionManager) Metrics() *shared.LookupMetrics {
	return m.metrics
}

// Shutdown stops every session
func (m *SessionManager) Shutdown() {
	m.mutex.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*CharacterLookupService)
	m.mutex.Unlock()

	for _, service := range sessions {
		service.Stop()
	}
	m.logger.WithField("sessions", len(sessions)).Info("Stopped all lookup sessions")
}
