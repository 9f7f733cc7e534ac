package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"memgate/internal/models"
	"memgate/internal/services"
)

// ProfileHandler handles user and agent profile endpoints
type ProfileHandler struct {
	profileService *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func profileError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrDatabaseUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Database not available",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Profile operation failed",
	})
}

// GetUserProfile returns a user profile, or exists:false when absent
// GET /profiles/user/:id
func (h *ProfileHandler) GetUserProfile(c *fiber.Ctx) error {
	userID := c.Params("id")

	profile, found, err := h.profileService.GetUserProfile(c.Context(), userID)
	if err != nil {
		return profileError(c, err)
	}
	if !found {
		return c.JSON(fiber.Map{
			"exists":  false,
			"user_id": userID,
		})
	}

	return c.JSON(fiber.Map{
		"exists":  true,
		"profile": profile,
	})
}

// UpsertUserProfile creates or updates a user profile
// PUT /profiles/user/:id
func (h *ProfileHandler) UpsertUserProfile(c *fiber.Ctx) error {
	userID := c.Params("id")

	var req models.UserProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.profileService.UpsertUserProfile(c.Context(), userID, req); err != nil {
		return profileError(c, err)
	}

	profile, _, err := h.profileService.GetUserProfile(c.Context(), userID)
	if err != nil {
		return profileError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": profile,
	})
}

// GetAgentProfile returns an agent profile, or exists:false when absent
// GET /profiles/agent/:id
func (h *ProfileHandler) GetAgentProfile(c *fiber.Ctx) error {
	agentID := c.Params("id")

	profile, found, err := h.profileService.GetAgentProfile(c.Context(), agentID)
	if err != nil {
		return profileError(c, err)
	}
	if !found {
		return c.JSON(fiber.Map{
			"exists":   false,
			"agent_id": agentID,
		})
	}

	return c.JSON(fiber.Map{
		"exists":  true,
		"profile": profile,
	})
}

// UpsertAgentProfile creates or updates an agent profile
// PUT /profiles/agent/:id
func (h *ProfileHandler) UpsertAgentProfile(c *fiber.Ctx) error {
	agentID := c.Params("id")

	var req models.AgentProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.profileService.UpsertAgentProfile(c.Context(), agentID, req); err != nil {
		return profileError(c, err)
	}

	profile, _, err := h.profileService.GetAgentProfile(c.Context(), agentID)
	if err != nil {
		return profileError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": profile,
	})
}
