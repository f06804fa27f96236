package shared

import (
	"context"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnectivityChecker reports whether outbound requests are worth attempting
type ConnectivityChecker interface {
	IsOnline() bool
}

// ConnectivityMonitor tracks reachability of one upstream host by periodic TCP dials.
// It starts optimistic (online) until the first failed probe.
type ConnectivityMonitor struct {
	address   string
	timeout   time.Duration
	online    atomic.Bool
	lastProbe atomic.Int64
	dial      func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewConnectivityMonitor creates a monitor probing the host of baseURL
func NewConnectivityMonitor(baseURL string, timeout time.Duration) (*ConnectivityMonitor, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	port := parsed.Port()
	if port == "" {
		port = "443"
		if parsed.Scheme == "http" {
			port = "80"
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	monitor := &ConnectivityMonitor{
		address: net.JoinHostPort(parsed.Hostname(), port),
		timeout: timeout,
		dial:    (&net.Dialer{}).DialContext,
	}
	monitor.online.Store(true)
	return monitor, nil
}

// IsOnline returns the result of the most recent probe
func (m *ConnectivityMonitor) IsOnline() bool {
	return m.online.Load()
}

// SetOnline overrides the current state
func (m *ConnectivityMonitor) SetOnline(online bool) {
	m.online.Store(online)
}

// LastProbe returns when the last probe finished
func (m *ConnectivityMonitor) LastProbe() time.Time {
	nanos := m.lastProbe.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Probe dials the upstream host once and records the outcome
func (m *ConnectivityMonitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dial(ctx, "tcp", m.address)
	online := err == nil
	if conn != nil {
		conn.Close()
	}

	previous := m.online.Swap(online)
	m.lastProbe.Store(time.Now().UnixNano())

	if previous != online {
		logger := logrus.WithFields(logrus.Fields{
			"component": "ConnectivityMonitor",
			"address":   m.address,
		})
		if online {
			logger.Info("Upstream reachable again")
		} else {
			logger.WithError(err).Warn("Upstream unreachable")
		}
	}
	return online
}
