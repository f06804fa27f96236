package handlers

import (
	"github.com/fenilmodi00/tibia-lookup-backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	SessionHeader    = "X-Session-ID"
	sessionLocalsKey = "session_id"
)

// SessionMiddleware selects the lookup session of a request. A valid X-Session-ID
// header selects that session and is echoed back; requests without one share the
// default session.
func SessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := services.DefaultSessionID
		if parsed, err := uuid.Parse(c.Get(SessionHeader)); err == nil {
			sessionID = parsed.String()
			c.Set(SessionHeader, sessionID)
		}
		c.Locals(sessionLocalsKey, sessionID)
		return c.Next()
	}
}

// SessionID returns the id assigned by SessionMiddleware
func SessionID(c *fiber.Ctx) string {
	if id, ok := c.Locals(sessionLocalsKey).(string); ok {
		return id
	}
	return ""
}

func sessionError(c *fiber.Ctx, err error) error {
	logrus.WithError(err).WithField("session_id", SessionID(c)).Error("Failed to start lookup session")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Failed to start lookup session",
	})
}
