package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// SubmissionHandler exposes the submission review page.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission routes to the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.manualCheck)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var query dto.SubmissionListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.List(c.UserContext(), teacherIDFromContext(c), query)
	if err != nil {
		return writeError(c, h.logger, err, "submissions", "failed to list submissions")
	}
	return utils.OK(c, response, "submissions retrieved", response.Pagination)
}

func (h *SubmissionHandler) manualCheck(c *fiber.Ctx) error {
	var payload dto.ManualCheckRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.ManualCheck(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "submissions", "failed to record manual check")
	}
	return utils.SendSuccess(c, "submission checked", result)
}
