package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/shared"
)

// MetricsSummaryJob logs the lookup metrics summary on an interval
type MetricsSummaryJob struct {
	Metrics  *shared.LookupMetrics
	Interval time.Duration
}

func NewMetricsSummaryJob(metrics *shared.LookupMetrics, interval time.Duration) *MetricsSummaryJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &MetricsSummaryJob{Metrics: metrics, Interval: interval}
}

func (j *MetricsSummaryJob) Start(ctx context.Context) error {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.Metrics.LogSummary()
			return nil
		case <-ticker.C:
			j.Metrics.LogSummary()
		}
	}
}
