package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"memgate/internal/models"
	"memgate/internal/services"
)

// HistoryHandler serves the audit log
type HistoryHandler struct {
	auditService *services.AuditService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(auditService *services.AuditService) *HistoryHandler {
	return &HistoryHandler{auditService: auditService}
}

// GetHistory returns audit entries newest first, filterable by owner and
// operation
// GET /history?user_id=&agent_id=&operation=&limit=
func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	if !h.auditService.Available() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Database not available",
		})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	filter := models.HistoryFilter{
		UserID:    c.Query("user_id"),
		AgentID:   c.Query("agent_id"),
		Operation: c.Query("operation"),
		Limit:     limit,
	}

	entries, err := h.auditService.History(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"history": entries,
		"count":   len(entries),
	})
}
