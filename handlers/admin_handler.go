package handlers

import (
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/jobs"
	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	Sessions   *services.SessionManager
	CleanupJob *jobs.CacheCleanupJob
	ProbeJob   *jobs.ConnectivityProbeJob
	ReaperJob  *jobs.SessionReaperJob
}

func NewAdminHandler(sessions *services.SessionManager, cleanupJob *jobs.CacheCleanupJob, probeJob *jobs.ConnectivityProbeJob, reaperJob *jobs.SessionReaperJob) *AdminHandler {
	return &AdminHandler{
		Sessions:   sessions,
		CleanupJob: cleanupJob,
		ProbeJob:   probeJob,
		ReaperJob:  reaperJob,
	}
}

// TriggerCachePurge manually runs the cache cleanup job
func (h *AdminHandler) TriggerCachePurge(c *fiber.Ctx) error {
	logrus.Info("Manual cache purge triggered via admin endpoint")

	startTime := time.Now()
	removed := h.CleanupJob.Run(c.UserContext())

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Cache cleanup job completed",
		"removed":   removed,
		"duration":  time.Since(startTime).String(),
		"timestamp": time.Now(),
	})
}

// TriggerConnectivityProbe manually probes the upstream
func (h *AdminHandler) TriggerConnectivityProbe(c *fiber.Ctx) error {
	logrus.Info("Manual connectivity probe triggered via admin endpoint")

	online := h.ProbeJob.Run(c.UserContext())
	return c.JSON(fiber.Map{
		"success":   true,
		"online":    online,
		"timestamp": time.Now(),
	})
}

// TriggerSessionReap manually stops idle sessions
func (h *AdminHandler) TriggerSessionReap(c *fiber.Ctx) error {
	reaped := h.ReaperJob.Run()
	return c.JSON(fiber.Map{
		"success":         true,
		"reaped":          reaped,
		"active_sessions": h.Sessions.Count(),
	})
}

// ResetMetrics zeroes the lookup metrics
func (h *AdminHandler) ResetMetrics(c *fiber.Ctx) error {
	h.Sessions.Metrics().Reset()
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Metrics reset",
	})
}
