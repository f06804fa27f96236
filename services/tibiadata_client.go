package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/models"
	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTibiaDataBaseURL = "https://api.tibiadata.com"
	maxResponseBytes        = 4 << 20
)

// CharacterFetcher retrieves one character from the upstream API
type CharacterFetcher interface {
	FetchCharacter(ctx context.Context, name string) (*models.CharacterResponse, error)
}

// TibiaDataClient performs character lookups against the TibiaData v4 API.
// Every failure it returns is a *shared.LookupError, except context cancellation,
// which is returned as ctx.Err().
type TibiaDataClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *shared.HTTPRequestRateLimiter
	metrics     *shared.LookupMetrics
	logger      *logrus.Entry
	now         func() time.Time
}

// NewTibiaDataClient creates a client. rateLimiter and metrics may be nil.
func NewTibiaDataClient(baseURL string, httpClient *http.Client, rateLimiter *shared.HTTPRequestRateLimiter, metrics *shared.LookupMetrics) *TibiaDataClient {
	if baseURL == "" {
		baseURL = DefaultTibiaDataBaseURL
	}
	if httpClient == nil {
		httpClient = shared.NewHTTPClientFactory().CreateAPIClient(0, 0)
	}
	if rateLimiter == nil {
		rateLimiter = shared.NewHTTPRequestRateLimiter(0)
	}
	return &TibiaDataClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		logger:      logrus.WithField("component", "TibiaDataClient"),
		now:         time.Now,
	}
}

// CharacterURL returns the lookup URL for a name, percent-encoded as one path segment
func (c *TibiaDataClient) CharacterURL(name string) string {
	return c.baseURL + "/v4/character/" + url.PathEscape(strings.TrimSpace(name))
}

// FetchCharacter issues exactly one GET for name and parses the result
func (c *TibiaDataClient) FetchCharacter(ctx context.Context, name string) (*models.CharacterResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, c.transportError(ctx, name, err)
	}

	endpoint := c.CharacterURL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, shared.NewConnectionError(name, "failed to build request", err)
	}
	shared.SetJSONHeaders(req)

	logger := c.logger.WithFields(logrus.Fields{
		"character_name": name,
		"url":            endpoint,
	})
	logger.Debug("Requesting character")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordRequest(0, time.Since(start))
		return nil, c.transportError(ctx, name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.recordRequest(resp.StatusCode, elapsed)
	if err != nil {
		return nil, c.transportError(ctx, name, err)
	}

	logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"response_time": elapsed,
		"bytes":         len(body),
	}).Debug("Received character response")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, shared.NewNotFoundError(name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, shared.NewServerError(name, resp.StatusCode)
	}

	return c.decode(name, body)
}

func (c *TibiaDataClient) decode(name string, body []byte) (*models.CharacterResponse, error) {
	var envelope characterEnvelope
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&envelope); err != nil {
		return nil, shared.NewDecodingError(name, decodeErrorPath(err), err)
	}

	response, err := envelope.toResponse(c.now())
	if err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			return nil, shared.NewDecodingError(name, fe.path, err)
		}
		return nil, shared.NewDecodingError(name, "", err)
	}
	return response, nil
}

// decodeErrorPath extracts the offending JSON path from a decoder error
func decodeErrorPath(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("$ (offset %d)", syntaxErr.Offset)
	}
	return "$"
}

func (c *TibiaDataClient) transportError(ctx context.Context, name string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return shared.NewConnectionError(name, "request timed out", err)
	}
	return shared.NewConnectionError(name, "request failed", err)
}

func (c *TibiaDataClient) recordRequest(statusCode int, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(statusCode, elapsed)
	}
}
