package handlers

import (
	"github.com/gofiber/fiber/v2"

	"memgate/internal/services"
)

// HealthHandler serves the health endpoint
type HealthHandler struct {
	healthService *services.HealthService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

// Check reports per-subsystem status. Always 200; callers read the body to
// decide how degraded the service is.
// GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(h.healthService.Check(c.Context()))
}
