package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

// archiveField is the multipart field carrying a hidden test-case archive.
const archiveField = "archive"

// TestHandler exposes the test page, per-test submissions and archive uploads.
type TestHandler struct {
	tests    service.TestService
	archives service.ArchiveService
	logger   zerolog.Logger
}

// NewTestHandler constructs the handler. archives may be nil, in which case the
// archive route is not registered.
func NewTestHandler(tests service.TestService, archives service.ArchiveService, logger zerolog.Logger) *TestHandler {
	return &TestHandler{
		tests:    tests,
		archives: archives,
		logger:   logger.With().Str("component", "test_handler").Logger(),
	}
}

// Register attaches test routes to the router group.
func (h *TestHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.apply)
	router.Get("/:id/submissions", h.submissions)
	router.Post("/:id/submissions", h.manualCheck)
	if h.archives != nil {
		router.Post("/:id/archive", h.uploadArchive)
	}
}

func (h *TestHandler) list(c *fiber.Ctx) error {
	var query dto.TestListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.tests.List(c.UserContext(), teacherIDFromContext(c), query)
	if err != nil {
		return writeError(c, h.logger, err, "tests", "failed to list tests")
	}
	return utils.OK(c, response, "tests retrieved", response.Pagination)
}

func (h *TestHandler) apply(c *fiber.Ctx) error {
	var payload dto.TestActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.tests.Apply(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return writeError(c, h.logger, err, "tests", "failed to update tests")
	}
	if result.Action == "add" {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "test created", result)
	}
	return utils.SendSuccess(c, "test removed", result)
}

func (h *TestHandler) submissions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var query dto.PageQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.tests.Submissions(c.UserContext(), teacherIDFromContext(c), id, query)
	if err != nil {
		return writeError(c, h.logger, err, "tests", "failed to list test submissions")
	}
	return utils.OK(c, response, "test submissions retrieved", response.Pagination)
}

func (h *TestHandler) manualCheck(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var payload dto.ManualCheckRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.tests.ManualCheck(c.UserContext(), activityActorFromContext(c), id, payload)
	if err != nil {
		return writeError(c, h.logger, err, "tests", "failed to record manual check")
	}
	return utils.SendSuccess(c, "test submission checked", result)
}

func (h *TestHandler) uploadArchive(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	file, err := c.FormFile(archiveField)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrArchiveMissing.Error())
	}

	result, err := h.archives.Store(c.UserContext(), activityActorFromContext(c), id, file)
	if err != nil {
		return writeError(c, h.logger, err, "tests", "failed to store archive")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "archive stored", result)
}
