package shared

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// UserAgent identifies this service to upstream APIs
const UserAgent = "tibia-lookup-backend/1.0 (+https://tibiadata.com)"

// HTTPClientFactory creates HTTP clients with standardized timeout configuration
type HTTPClientFactory struct {
	mutex   sync.RWMutex
	clients map[string]*http.Client
}

// NewHTTPClientFactory creates a new HTTP client factory
func NewHTTPClientFactory() *HTTPClientFactory {
	return &HTTPClientFactory{
		clients: make(map[string]*http.Client),
	}
}

// CreateAPIClient returns a client whose dial and response-header phases are bounded by
// connectTimeout and whose whole exchange, body included, is bounded by requestTimeout.
// Clients are shared per timeout pair.
func (f *HTTPClientFactory) CreateAPIClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	clientKey := fmt.Sprintf("connect_%d_request_%d", connectTimeout.Milliseconds(), requestTimeout.Milliseconds())

	f.mutex.RLock()
	if client, exists := f.clients[clientKey]; exists {
		f.mutex.RUnlock()
		return client
	}
	f.mutex.RUnlock()

	client := &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			Proxy:       http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext,

			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,

			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: connectTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	f.mutex.Lock()
	if existing, exists := f.clients[clientKey]; exists {
		f.mutex.Unlock()
		return existing
	}
	f.clients[clientKey] = client
	f.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"component":       "HTTPClientFactory",
		"connect_timeout": connectTimeout,
		"request_timeout": requestTimeout,
		"client_key":      clientKey,
	}).Debug("Created new API HTTP client")

	return client
}

// SetJSONHeaders configures request headers for a JSON API call
func SetJSONHeaders(request *http.Request) {
	request.Header.Set("User-Agent", UserAgent)
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// CleanupHTTPClient closes idle connections held by client
func (f *HTTPClientFactory) CleanupHTTPClient(client *http.Client) {
	if client != nil && client.Transport != nil {
		if transport, ok := client.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}
}

// CleanupAllClients cleans up all cached HTTP clients
func (f *HTTPClientFactory) CleanupAllClients() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	for key, client := range f.clients {
		f.CleanupHTTPClient(client)
		delete(f.clients, key)
	}

	logrus.WithField("component", "HTTPClientFactory").Debug("Cleaned up all cached HTTP clients")
}
