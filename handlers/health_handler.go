package handlers

import (
	"context"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/shared"
	"github.com/gofiber/fiber/v2"
)

// HealthChecker is implemented by the key-value store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	Store        HealthChecker
	Connectivity shared.ConnectivityChecker
}

func NewHealthHandler(store HealthChecker, connectivity shared.ConnectivityChecker) *HealthHandler {
	return &HealthHandler{Store: store, Connectivity: connectivity}
}

// Health reports service status. A failing store makes the service unhealthy;
// an unreachable upstream only degrades it, since cached lookups still work.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := "ok"
	httpStatus := fiber.StatusOK

	storeStatus := "ok"
	if h.Store != nil {
		if err := h.Store.HealthCheck(c.UserContext()); err != nil {
			storeStatus = err.Error()
			status = "unhealthy"
			httpStatus = fiber.StatusServiceUnavailable
		}
	}

	upstreamOnline := true
	if h.Connectivity != nil {
		upstreamOnline = h.Connectivity.IsOnline()
	}
	if !upstreamOnline && status == "ok" {
		status = "degraded"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":          status,
		"store":           storeStatus,
		"upstream_online": upstreamOnline,
		"timestamp":       time.Now().Unix(),
	})
}
