package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// DashboardHandler serves the panel landing counts.
type DashboardHandler struct {
	service service.DashboardService
	logger  zerolog.Logger
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service service.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register attaches dashboard routes to the router group.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("", h.summary)
}

func (h *DashboardHandler) summary(c *fiber.Ctx) error {
	var query struct {
		Days int `query:"days"`
	}
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	summary, err := h.service.Summary(c.UserContext(), teacherIDFromContext(c), query.Days)
	if err != nil {
		return writeError(c, h.logger, err, "dashboard", "failed to load dashboard")
	}
	return utils.SendSuccess(c, "dashboard retrieved", summary)
}
