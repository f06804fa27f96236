package jobs

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/fenilmodi00/tibia-lookup-backend/shared"
)

func newSessions(t *testing.T) *services.SessionManager {
	t.Helper()
	sessions := services.NewSessionManager(nil, nil, nil, nil, services.SessionConfig{
		CacheTTL:        time.Minute,
		CacheMaxEntries: 10,
		CacheMaxBytes:   services.DefaultCacheMaxBytes,
	})
	t.Cleanup(sessions.Shutdown)
	return sessions
}

// startAndStop runs start until ctx is cancelled and fails if it does not return
func startAndStop(t *testing.T, start func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestCacheCleanupJob(t *testing.T) {
	sessions := newSessions(t)
	sessions.Get(context.Background(), "session")

	job := NewCacheCleanupJob(sessions, 0)
	if job.Interval != time.Minute {
		t.Errorf("default interval = %v", job.Interval)
	}
	if removed := job.Run(context.Background()); removed != 0 {
		t.Errorf("removed = %d from empty caches", removed)
	}
	startAndStop(t, job.Start)
}

func TestSessionReaperJob(t *testing.T) {
	sessions := newSessions(t)
	sessions.Get(context.Background(), "session")

	job := NewSessionReaperJob(sessions, time.Millisecond)
	if job.Interval != time.Minute {
		t.Errorf("interval = %v, want the one minute floor", job.Interval)
	}

	time.Sleep(5 * time.Millisecond)
	if reaped := job.Run(); reaped != 1 {
		t.Errorf("reaped = %d, want 1", reaped)
	}
	if sessions.Count() != 0 {
		t.Errorf("count = %d after reaping", sessions.Count())
	}
	startAndStop(t, job.Start)
}

func TestConnectivityProbeJob(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	monitor, err := shared.NewConnectivityMonitor("http://"+listener.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("NewConnectivityMonitor error: %v", err)
	}

	job := NewConnectivityProbeJob(monitor, time.Hour)
	if !job.Run(context.Background()) {
		t.Error("probe against a listening host should be online")
	}

	listener.Close()
	startAndStop(t, job.Start)
	if monitor.IsOnline() {
		t.Error("Start should probe immediately and record the host as offline")
	}
}

func TestMetricsSummaryJob(t *testing.T) {
	metrics := shared.NewLookupMetrics()
	job := NewMetricsSummaryJob(metrics, 0)
	if job.Interval != time.Hour {
		t.Errorf("default interval = %v", job.Interval)
	}
	startAndStop(t, job.Start)
}
