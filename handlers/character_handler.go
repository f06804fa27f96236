package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const streamHeartbeatInterval = 15 * time.Second

type CharacterHandler struct {
	Sessions *services.SessionManager
	Timeout  time.Duration
}

// NewCharacterHandler creates a handler waiting at most timeout for each lookup
func NewCharacterHandler(sessions *services.SessionManager, timeout time.Duration) *CharacterHandler {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &CharacterHandler{Sessions: sessions, Timeout: timeout}
}

// GetCharacter runs a lookup for :name and returns the resulting snapshot
func (h *CharacterHandler) GetCharacter(c *fiber.Ctx) error {
	name, err := characterNameParam(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid character name encoding",
		})
	}

	service, err := h.Sessions.Get(c.UserContext(), SessionID(c))
	if err != nil {
		return sessionError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.Timeout)
	defer cancel()

	outcome, err := service.Lookup(ctx, name, services.FetchOptions{Refresh: c.QueryBool("refresh")})
	return respondOutcome(c, outcome, err)
}

// GetState returns the session's current snapshot without fetching
func (h *CharacterHandler) GetState(c *fiber.Ctx) error {
	service, err := h.Sessions.Get(c.UserContext(), SessionID(c))
	if err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    service.Snapshot(),
	})
}

// StreamState streams every snapshot the session publishes as server-sent events
func (h *CharacterHandler) StreamState(c *fiber.Ctx) error {
	sessionID := SessionID(c)
	service, err := h.Sessions.Get(c.UserContext(), sessionID)
	if err != nil {
		return sessionError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	snapshots, unsubscribe := service.Subscribe()
	logger := logrus.WithFields(logrus.Fields{
		"component":  "CharacterHandler",
		"session_id": sessionID,
	})

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		logger.Debug("State stream opened")

		heartbeat := time.NewTicker(streamHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case snapshot, ok := <-snapshots:
				if !ok {
					logger.Debug("State stream closed by session")
					return
				}
				if err := writeSnapshotEvent(w, snapshot); err != nil {
					logger.WithError(err).Debug("State stream client went away")
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeSnapshotEvent(w *bufio.Writer, snapshot services.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// characterNameParam decodes a path segment; "+" is accepted for spaces
func characterNameParam(raw string) (string, error) {
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(name, "+", " "), nil
}

// respondOutcome writes the outcome of a lookup in the API envelope
func respondOutcome(c *fiber.Ctx, outcome services.Outcome, err error) error {
	if err == nil {
		return c.JSON(fiber.Map{
			"success":    true,
			"from_cache": outcome.FromCache,
			"data":       outcome.Snapshot,
		})
	}

	if lookupErr, ok := shared.AsLookupError(err); ok {
		return c.Status(lookupErr.HTTPStatus()).JSON(fiber.Map{
			"success":  false,
			"error":    lookupErr.UserMessage(),
			"category": lookupErr.Category,
			"data":     outcome.Snapshot,
		})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrFetchCancelled):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrRecentSearchNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrServiceStopped):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
