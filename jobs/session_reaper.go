package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/sirupsen/logrus"
)

// SessionReaperJob stops lookup sessions nobody has used for IdleTimeout
type SessionReaperJob struct {
	Sessions    *services.SessionManager
	IdleTimeout time.Duration
	Interval    time.Duration
}

func NewSessionReaperJob(sessions *services.SessionManager, idleTimeout time.Duration) *SessionReaperJob {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	interval := idleTimeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return &SessionReaperJob{Sessions: sessions, IdleTimeout: idleTimeout, Interval: interval}
}

func (j *SessionReaperJob) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"idle_timeout": j.IdleTimeout,
		"interval":     j.Interval,
	}).Info("Starting Session Reaper Job")
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Run()
		}
	}
}

func (j *SessionReaperJob) Run() int {
	return j.Sessions.ReapIdle(j.IdleTimeout)
}
