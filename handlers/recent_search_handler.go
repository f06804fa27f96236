package handlers

import (
	"context"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type RecentSearchHandler struct {
	Sessions *services.SessionManager
	Timeout  time.Duration
}

func NewRecentSearchHandler(sessions *services.SessionManager, timeout time.Duration) *RecentSearchHandler {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &RecentSearchHandler{Sessions: sessions, Timeout: timeout}
}

func (h *RecentSearchHandler) GetRecentSearches(c *fiber.Ctx) error {
	service, err := h.Sessions.Get(c.UserContext(), SessionID(c))
	if err != nil {
		return sessionError(c, err)
	}

	recent := service.RecentSearches()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    recent,
		"count":   len(recent),
	})
}

// ReplayRecentSearch looks up a recent search entry again without re-recording it
func (h *RecentSearchHandler) ReplayRecentSearch(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid recent search id",
		})
	}

	service, err := h.Sessions.Get(c.UserContext(), SessionID(c))
	if err != nil {
		return sessionError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.Timeout)
	defer cancel()

	outcome, err := services.Await(ctx, service.ReplayRecent(id))
	return respondOutcome(c, outcome, err)
}

func (h *RecentSearchHandler) ClearRecentSearches(c *fiber.Ctx) error {
	service, err := h.Sessions.Get(c.UserContext(), SessionID(c))
	if err != nil {
		return sessionError(c, err)
	}

	if err := service.ClearRecent(c.UserContext()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Recent searches cleared",
	})
}
