package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/sirupsen/logrus"
)

// ConnectivityProbeJob keeps the connectivity monitor's view of the upstream current
type ConnectivityProbeJob struct {
	Monitor  *shared.ConnectivityMonitor
	Interval time.Duration
}

func NewConnectivityProbeJob(monitor *shared.ConnectivityMonitor, interval time.Duration) *ConnectivityProbeJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ConnectivityProbeJob{Monitor: monitor, Interval: interval}
}

// Start probes once immediately, then on every tick until ctx is done
func (j *ConnectivityProbeJob) Start(ctx context.Context) error {
	logrus.WithField("interval", j.Interval).Info("Starting Connectivity Probe Job")
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *ConnectivityProbeJob) Run(ctx context.Context) bool {
	online := j.Monitor.Probe(ctx)
	logrus.WithFields(logrus.Fields{
		"component": "ConnectivityProbeJob",
		"online":    online,
	}).Debug("Connectivity probe completed")
	return online
}
