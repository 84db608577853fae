package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/models"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
)

// ActivityActor represents the authenticated teacher performing a panel action.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry is one panel mutation to be written to the audit trail.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder is the write side used by the mutating services.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService records and lists the teacher's audit trail.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	bounds qb.Bounds
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewActivityService constructs the audit trail service.
func NewActivityService(repo repository.ActivityLogRepository, bounds qb.Bounds, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		bounds: bounds,
		logger: logger.With().Str("component", "activity_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/activity"),
		now:    time.Now,
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	if action == "" {
		return dto.ActivityResponse{}, fmt.Errorf("action is required")
	}
	if entityType == "" {
		return dto.ActivityResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  normalizeRole(entry.ActorRole),
		Action:     action,
		EntityType: entityType,
		EntityID:   entry.EntityID,
		Metadata:   maskMetadata(entry.Metadata),
	}
	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", action).Uint("actor_id", entry.ActorID).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, err
	}
	return dto.NewActivityResponse(model), nil
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity.list")
	defer span.End()

	page := qb.Clamp(req.Page, req.PageSize, s.bounds)
	filter := repository.ActivityLogFilter{
		ActorID:    req.ActorID,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
		EntityID:   req.EntityID,
		Page:       page,
	}
	if req.Days > 0 {
		_, since := window(req.Days, req.Days, s.now())
		filter.Since = &since
	}
	span.SetAttributes(attribute.Int("activity.page", page.Number), attribute.Int("activity.page_size", page.Size))

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		failSpan(span, err, "list activity")
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewActivityResponse(entry))
	}
	return dto.ActivityListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, total)}, nil
}

// record writes an audit entry without failing the caller's operation.
func record(ctx context.Context, recorder ActivityRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record activity")
	}
}

var maskedMetadataKeys = []string{"email", "token", "password", "secret"}

func maskMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	masked := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		hidden := false
		for _, needle := range maskedMetadataKeys {
			if strings.Contains(lower, needle) {
				hidden = true
				break
			}
		}
		if hidden {
			masked[key] = "***"
			continue
		}
		masked[key] = value
	}
	return masked
}

func normalizeRole(role string) string {
	if r := strings.ToLower(strings.TrimSpace(role)); r != "" {
		return r
	}
	return "teacher"
}
