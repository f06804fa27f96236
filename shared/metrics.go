package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LookupMetrics tracks character lookup outcomes, cache effectiveness and upstream latency
type LookupMetrics struct {
	mutex sync.RWMutex

	totalLookups       int64
	successfulLookups  int64
	failedLookups      int64
	cancelledLookups   int64
	cacheHits          int64
	cacheMisses        int64
	upstreamRequests   int64
	totalUpstreamTime  time.Duration
	maxUpstreamTime    time.Duration
	statusCodeCounts   map[int]int64
	errorCounts        map[ErrorCategory]int64
	recentSearchWrites int64
	lastUpdated        time.Time
}

// MetricsSnapshot is a point-in-time copy of LookupMetrics
type MetricsSnapshot struct {
	TotalLookups        int64                   `json:"total_lookups"`
	SuccessfulLookups   int64                   `json:"successful_lookups"`
	FailedLookups       int64                   `json:"failed_lookups"`
	CancelledLookups    int64                   `json:"cancelled_lookups"`
	CacheHits           int64                   `json:"cache_hits"`
	CacheMisses         int64                   `json:"cache_misses"`
	CacheHitRate        float64                 `json:"cache_hit_rate"`
	UpstreamRequests    int64                   `json:"upstream_requests"`
	AverageUpstreamTime time.Duration           `json:"average_upstream_time"`
	MaxUpstreamTime     time.Duration           `json:"max_upstream_time"`
	StatusCodeCounts    map[int]int64           `json:"status_code_counts"`
	ErrorCounts         map[ErrorCategory]int64 `json:"error_counts"`
	RecentSearchWrites  int64                   `json:"recent_search_writes"`
	LastUpdated         time.Time               `json:"last_updated"`
}

// NewLookupMetrics creates a new metrics tracker
func NewLookupMetrics() *LookupMetrics {
	return &LookupMetrics{
		statusCodeCounts: make(map[int]int64),
		errorCounts:      make(map[ErrorCategory]int64),
		lastUpdated:      time.Now(),
	}
}

// RecordLookup records the terminal outcome of one fetch
func (m *LookupMetrics) RecordLookup(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalLookups++
	if err == nil {
		m.successfulLookups++
	} else {
		m.failedLookups++
		if lookupErr, ok := AsLookupError(err); ok {
			m.errorCounts[lookupErr.Category]++
		}
	}
	m.lastUpdated = time.Now()
}

// RecordCancelled records a fetch superseded by a newer one
func (m *LookupMetrics) RecordCancelled() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cancelledLookups++
	m.lastUpdated = time.Now()
}

// RecordCacheResult records a cache lookup
func (m *LookupMetrics) RecordCacheResult(hit bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
	m.lastUpdated = time.Now()
}

// RecordUpstreamRequest records one outbound request; statusCode is 0 on transport errors
func (m *LookupMetrics) RecordUpstreamRequest(statusCode int, responseTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.upstreamRequests++
	m.totalUpstreamTime += responseTime
	if responseTime > m.maxUpstreamTime {
		m.maxUpstreamTime = responseTime
	}
	m.statusCodeCounts[statusCode]++
	m.lastUpdated = time.Now()
}

// RecordRecentSearchWrite records a persisted recent searches update
func (m *LookupMetrics) RecordRecentSearchWrite() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.recentSearchWrites++
	m.lastUpdated = time.Now()
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *LookupMetrics) GetSnapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	statusCodes := make(map[int]int64, len(m.statusCodeCounts))
	for k, v := range m.statusCodeCounts {
		statusCodes[k] = v
	}
	errorCounts := make(map[ErrorCategory]int64, len(m.errorCounts))
	for k, v := range m.errorCounts {
		errorCounts[k] = v
	}

	snapshot := MetricsSnapshot{
		TotalLookups:       m.totalLookups,
		SuccessfulLookups:  m.successfulLookups,
		FailedLookups:      m.failedLookups,
		CancelledLookups:   m.cancelledLookups,
		CacheHits:          m.cacheHits,
		CacheMisses:        m.cacheMisses,
		UpstreamRequests:   m.upstreamRequests,
		MaxUpstreamTime:    m.maxUpstreamTime,
		StatusCodeCounts:   statusCodes,
		ErrorCounts:        errorCounts,
		RecentSearchWrites: m.recentSearchWrites,
		LastUpdated:        m.lastUpdated,
	}
	if m.upstreamRequests > 0 {
		snapshot.AverageUpstreamTime = time.Duration(int64(m.totalUpstreamTime) / m.upstreamRequests)
	}
	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		snapshot.CacheHitRate = float64(m.cacheHits) / float64(lookups) * 100.0
	}
	return snapshot
}

// LogSummary logs a metrics summary
func (m *LookupMetrics) LogSummary() {
	snapshot := m.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"component":             "LookupMetrics",
		"total_lookups":         snapshot.TotalLookups,
		"successful_lookups":    snapshot.SuccessfulLookups,
		"failed_lookups":        snapshot.FailedLookups,
		"cancelled_lookups":     snapshot.CancelledLookups,
		"cache_hit_rate":        snapshot.CacheHitRate,
		"upstream_requests":     snapshot.UpstreamRequests,
		"average_upstream_time": snapshot.AverageUpstreamTime,
		"max_upstream_time":     snapshot.MaxUpstreamTime,
		"error_counts":          snapshot.ErrorCounts,
	}).Info("Lookup metrics summary")
}

// Reset resets all metrics to zero
func (m *LookupMetrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalLookups = 0
	m.successfulLookups = 0
	m.failedLookups = 0
	m.cancelledLookups = 0
	m.cacheHits = 0
	m.cacheMisses = 0
	m.upstreamRequests = 0
	m.totalUpstreamTime = 0
	m.maxUpstreamTime = 0
	m.statusCodeCounts = make(map[int]int64)
	m.errorCounts = make(map[ErrorCategory]int64)
	m.recentSearchWrites = 0
	m.lastUpdated = time.Now()

	logrus.WithField("component", "LookupMetrics").Info("Lookup metrics reset")
}
