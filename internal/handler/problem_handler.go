package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// ProblemHandler exposes the problem page and problem detail.
type ProblemHandler struct {
	service service.ProblemService
	logger  zerolog.Logger
}

// NewProblemHandler constructs the handler.
func NewProblemHandler(service service.ProblemService, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		service: service,
		logger:  logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register attaches problem routes to the router group.
func (h *ProblemHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.apply)
	router.Get("/:id", h.detail)
}

func (h *ProblemHandler) list(c *fiber.Ctx) error {
	var query dto.ProblemListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.List(c.UserContext(), teacherIDFromContext(c), query)
	if err != nil {
		return writeError(c, h.logger, err, "problems", "failed to list problems")
	}
	return utils.OK(c, response, "problems retrieved", response.Pagination)
}

func (h *ProblemHandler) detail(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	problem, err := h.service.Get(c.UserContext(), teacherIDFromContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err, "problems", "failed to load problem")
	}
	return utils.SendSuccess(c, "problem retrieved", problem)
}

func (h *ProblemHandler) apply(c *fiber.Ctx) error {
	var payload dto.ProblemActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Apply(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "problems", "failed to update problems")
	}
	if result.Action == "add" {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "problem created", result)
	}
	return utils.SendSuccess(c, "problem removed", result)
}
