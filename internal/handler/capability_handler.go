package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// CapabilityHandler reports which optional tables and columns the database has.
type CapabilityHandler struct {
	service service.CapabilityService
	logger  zerolog.Logger
}

// NewCapabilityHandler constructs the handler.
func NewCapabilityHandler(service service.CapabilityService, logger zerolog.Logger) *CapabilityHandler {
	return &CapabilityHandler{
		service: service,
		logger:  logger.With().Str("component", "capability_handler").Logger(),
	}
}

// Register attaches capability routes to the router group.
func (h *CapabilityHandler) Register(router fiber.Router) {
	router.Get("", h.snapshot)
	router.Post("/refresh", h.refresh)
}

func (h *CapabilityHandler) snapshot(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "capabilities resolved", h.service.Snapshot(c.UserContext()))
}

func (h *CapabilityHandler) refresh(c *fiber.Ctx) error {
	snapshot, err := h.service.Refresh(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, err, "capabilities", "failed to refresh capabilities")
	}
	return utils.SendSuccess(c, "capabilities refreshed", snapshot)
}
