package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/middleware"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
	"github.com/noah-isme/gema-teacher-panel/internal/utils"
)

func teacherIDFromContext(c *fiber.Ctx) uint {
	if id, ok := c.Locals(middleware.LocalUserID).(uint); ok {
		return id
	}
	return 0
}

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	role, _ := c.Locals(middleware.LocalUserRole).(string)
	return service.ActivityActor{
		ID:   teacherIDFromContext(c),
		Role: role,
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(name)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

// listingPath trims the request path back to the collection route of resource, e.g.
// /api/v1/teacher/tests/4/archive becomes /api/v1/teacher/tests.
func listingPath(c *fiber.Ctx, resource string) string {
	path := c.Path()
	marker := "/" + resource
	if idx := strings.Index(path, marker+"/"); idx >= 0 {
		return path[:idx+len(marker)]
	}
	return strings.TrimSuffix(path, "/")
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

// writeError answers a failed panel operation. Foreign or missing targets send the
// client back to the resource listing without acting.
func writeError(c *fiber.Ctx, logger zerolog.Logger, err error, resource, failure string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.Is(err, service.ErrNotOwned):
		return utils.SeeOther(c, listingPath(c, resource), err.Error())
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrScoreExceedsMax):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFeatureUnavailable):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrArchiveTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrArchiveType):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrArchiveMissing), errors.Is(err, service.ErrArchiveInvalid):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(failure)
		return utils.SendError(c, fiber.StatusInternalServerError, failure)
	}
}
