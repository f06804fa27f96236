package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/sirupsen/logrus"
)

// CacheCleanupJob purges expired response cache entries of every lookup session
type CacheCleanupJob struct {
	Sessions *services.SessionManager
	Interval time.Duration
}

func NewCacheCleanupJob(sessions *services.SessionManager, interval time.Duration) *CacheCleanupJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CacheCleanupJob{Sessions: sessions, Interval: interval}
}

// Start runs the job on its interval until ctx is done
func (j *CacheCleanupJob) Start(ctx context.Context) error {
	logrus.WithField("interval", j.Interval).Info("Starting Cache Cleanup Job")
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *CacheCleanupJob) Run(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed := j.Sessions.PurgeExpired(ctx)
	logger := logrus.WithFields(logrus.Fields{
		"component": "CacheCleanupJob",
		"removed":   removed,
		"sessions":  j.Sessions.Count(),
	})
	for id, service := range j.Sessions.Sessions() {
		service.LogCacheStats(logger.WithField("session_id", id))
	}
	if removed > 0 {
		logger.Info("Cache Cleanup Job removed expired entries")
	} else {
		logger.Debug("Cache Cleanup Job completed")
	}
	return removed
}
