package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"memgate/internal/models"
	"memgate/internal/services"
)

// MemoryHandler handles the memory API endpoints
type MemoryHandler struct {
	memoryService *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memoryService *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// AddMemory stores a message batch in the memory tiers
// POST /memories/add
func (h *MemoryHandler) AddMemory(c *fiber.Ctx) error {
	var req models.AddMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "messages is required",
		})
	}

	result := h.memoryService.Add(c.Context(), req)

	return c.JSON(fiber.Map{
		"success":    true,
		"short_term": result.ShortTerm,
		"long_term":  result.LongTerm,
		"memory_key": result.MemoryKey,
		"result":     result.Result,
	})
}

// SearchMemories searches both tiers and returns merged results
// POST /memories/search
func (h *MemoryHandler) SearchMemories(c *fiber.Ctx) error {
	var req models.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}

	result := h.memoryService.Search(c.Context(), req)

	return c.JSON(fiber.Map{
		"memories": result.Memories,
		"count":    result.Count,
		"sources": fiber.Map{
			"short_term": result.Sources.ShortTerm,
			"long_term":  result.Sources.LongTerm,
		},
	})
}

// PromoteMemories moves eligible short-term entries to the long-term tier
// POST /memories/promote
func (h *MemoryHandler) PromoteMemories(c *fiber.Ctx) error {
	var req models.PromoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.memoryService.PromoteMemories(c.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrEngineUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Memory engine not available",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"promoted_count": result.PromotedCount,
		"failed_count":   result.FailedCount,
		"skipped_count":  result.SkippedCount,
		"promoted":       result.Promoted,
	})
}

// GetUserMemories returns all memories for a user across both tiers
// GET /memories/user/:id
func (h *MemoryHandler) GetUserMemories(c *fiber.Ctx) error {
	userID := c.Params("id")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 1000 {
		limit = 50
	}
	includeShortTerm := c.Query("include_short_term", "true") != "false"

	memories := h.memoryService.GetUserMemories(c.Context(), userID, limit, includeShortTerm)

	return c.JSON(fiber.Map{
		"memories": memories,
		"count":    len(memories),
	})
}

// GetAgentMemories returns an agent's long-term memories
// GET /memories/agent/:id
func (h *MemoryHandler) GetAgentMemories(c *fiber.Ctx) error {
	agentID := c.Params("id")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 1000 {
		limit = 50
	}

	memories, err := h.memoryService.GetAgentMemories(c.Context(), agentID, limit)
	if err != nil {
		if errors.Is(err, services.ErrEngineUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Memory engine not available",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"memories": memories,
		"count":    len(memories),
	})
}

// DeleteMemory removes a long-term memory by id
// DELETE /memories/:id
func (h *MemoryHandler) DeleteMemory(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.memoryService.Delete(c.Context(), id); err != nil {
		if errors.Is(err, services.ErrEngineUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Memory engine not available",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"deleted": id,
	})
}

// GetStats reports aggregate counts per tier
// GET /stats
func (h *MemoryHandler) GetStats(c *fiber.Ctx) error {
	return c.JSON(h.memoryService.Stats(c.Context()))
}
