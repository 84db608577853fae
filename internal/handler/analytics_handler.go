package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// AnalyticsHandler serves the verdict blob behind the analytics visualization.
type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  zerolog.Logger
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(service service.AnalyticsService, logger zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger.With().Str("component", "analytics_handler").Logger(),
	}
}

// Register attaches analytics routes to the router group.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	router.Get("", h.summary)
}

func (h *AnalyticsHandler) summary(c *fiber.Ctx) error {
	var query dto.AnalyticsQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.Summary(c.UserContext(), teacherIDFromContext(c), query)
	if err != nil {
		return writeError(c, h.logger, err, "analytics", "failed to build analytics")
	}
	return utils.SendSuccess(c, "analytics generated", response)
}
