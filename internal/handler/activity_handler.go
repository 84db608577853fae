package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// ActivityHandler lists the authenticated teacher's own audit trail.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity routes to the router group.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var query struct {
		Page       int    `query:"page"`
		PerPage    int    `query:"per"`
		Action     string `query:"action"`
		EntityType string `query:"entity_type"`
		EntityID   uint   `query:"entity_id"`
		Days       int    `query:"days"`
	}
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	req := dto.ActivityListRequest{
		Page:       query.Page,
		PageSize:   query.PerPage,
		ActorID:    teacherIDFromContext(c),
		Action:     query.Action,
		EntityType: query.EntityType,
		Days:       query.Days,
	}
	if query.EntityID > 0 {
		req.EntityID = &query.EntityID
	}

	response, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return writeError(c, h.logger, err, "activity", "failed to list activity")
	}
	return utils.OK(c, response, "activity retrieved", response.Pagination)
}
