package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// SectionHandler exposes the section page.
type SectionHandler struct {
	service service.SectionService
	logger  zerolog.Logger
}

// NewSectionHandler constructs the handler.
func NewSectionHandler(service service.SectionService, logger zerolog.Logger) *SectionHandler {
	return &SectionHandler{
		service: service,
		logger:  logger.With().Str("component", "section_handler").Logger(),
	}
}

// Register attaches section routes to the router group.
func (h *SectionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.apply)
}

func (h *SectionHandler) list(c *fiber.Ctx) error {
	var query dto.SectionListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.List(c.UserContext(), teacherIDFromContext(c), query)
	if err != nil {
		return writeError(c, h.logger, err, "sections", "failed to list sections")
	}
	return utils.OK(c, response, "sections retrieved", response.Pagination)
}

func (h *SectionHandler) apply(c *fiber.Ctx) error {
	var payload dto.SectionActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Apply(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "sections", "failed to update sections")
	}
	if result.Action == "add" {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "section created", result)
	}
	return utils.SendSuccess(c, "section removed", result)
}
