package handlers

import (
	"database/sql"

	"github.com/dustin/go-humanize"
	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/gofiber/fiber/v2"
)

// PoolStatter exposes connection pool statistics
type PoolStatter interface {
	Stats() sql.DBStats
}

type MetricsHandler struct {
	Sessions *services.SessionManager
	Store    PoolStatter
}

func NewMetricsHandler(sessions *services.SessionManager, store PoolStatter) *MetricsHandler {
	return &MetricsHandler{Sessions: sessions, Store: store}
}

// GetMetrics returns lookup metrics, aggregated cache statistics and pool statistics
func (h *MetricsHandler) GetMetrics(c *fiber.Ctx) error {
	metrics := make(map[string]interface{})
	metrics["lookups"] = h.Sessions.Metrics().GetSnapshot()

	var totals services.CacheStats
	sessions := h.Sessions.Sessions()
	for _, service := range sessions {
		stats := service.CacheStats()
		totals.Entries += stats.Entries
		totals.Bytes += stats.Bytes
		totals.Hits += stats.Hits
		totals.Misses += stats.Misses
		totals.Evictions += stats.Evictions
		totals.Expirations += stats.Expirations
	}
	metrics["cache"] = map[string]interface{}{
		"sessions":    len(sessions),
		"entries":     totals.Entries,
		"bytes":       totals.Bytes,
		"size":        humanize.Bytes(uint64(totals.Bytes)),
		"hits":        totals.Hits,
		"misses":      totals.Misses,
		"evictions":   totals.Evictions,
		"expirations": totals.Expirations,
	}

	if h.Store != nil {
		dbStats := h.Store.Stats()
		metrics["database_stats"] = map[string]interface{}{
			"open_connections": dbStats.OpenConnections,
			"in_use":           dbStats.InUse,
			"idle":             dbStats.Idle,
			"wait_count":       dbStats.WaitCount,
			"wait_duration_ms": dbStats.WaitDuration.Milliseconds(),
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    metrics,
	})
}
