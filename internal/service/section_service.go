package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// SectionService lists and mutates the teacher's sections.
type SectionService interface {
	List(ctx context.Context, teacherID uint, query dto.SectionListQuery) (dto.SectionListResponse, error)
	Apply(ctx context.Context, actor ActivityActor, req dto.SectionActionRequest) (dto.SectionMutationResponse, error)
}

type sectionService struct {
	repo         repository.SectionRepository
	capabilities CapabilityService
	trimesters   normalize.TrimesterMapper
	bounds       qb.Bounds
	validator    *validator.Validate
	activity     ActivityRecorder
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// SectionServiceConfig carries the section service's tunables.
type SectionServiceConfig struct {
	Trimesters normalize.TrimesterMapper
	Bounds     qb.Bounds
}

// NewSectionService constructs the section service.
func NewSectionService(repo repository.SectionRepository, capabilities CapabilityService, cfg SectionServiceConfig, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) SectionService {
	return &sectionService{
		repo:         repo,
		capabilities: capabilities,
		trimesters:   cfg.Trimesters,
		bounds:       cfg.Bounds,
		validator:    validate,
		activity:     activity,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "section_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/section"),
		now:          time.Now,
	}
}

func sectionFields() []schema.Field {
	return schema.Join(schema.SectionFields(), schema.CourseFields())
}

func (s *sectionService) List(ctx context.Context, teacherID uint, query dto.SectionListQuery) (dto.SectionListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "sections.list")
	defer span.End()

	page := qb.Clamp(query.Page, query.PerPage, s.bounds)
	caps := s.capabilities.Resolve(ctx, sectionFields()...)
	filter := repository.SectionFilter{
		TrimesterValues: s.trimesters.RawValues(s.trimesters.Label(query.Trimester)),
		Year:            query.Year,
		CourseID:        query.CourseID,
		Search:          strings.TrimSpace(query.Search),
		Page:            page,
	}
	span.SetAttributes(
		attribute.Int64("sections.teacher_id", int64(teacherID)),
		attribute.Int("sections.page", page.Number),
		attribute.Int("sections.page_size", page.Size),
	)

	response := dto.SectionListResponse{
		Items:      []dto.SectionResponse{},
		Trimesters: s.trimesters.Labels(),
		Pagination: dto.NewPaginationMeta(page, 0),
	}

	views, total, err := s.repo.List(ctx, teacherID, caps, filter)
	if err != nil {
		s.logger.Warn().Err(err).Uint("teacher_id", teacherID).Msg("section listing degraded to empty")
		span.RecordError(err)
		return response, nil
	}

	for _, view := range views {
		view.Trimester = s.trimesters.Label(view.Trimester)
		response.Items = append(response.Items, dto.NewSectionResponse(view))
	}
	response.Pagination = dto.NewPaginationMeta(page, total)
	return response, nil
}

func (s *sectionService) Apply(ctx context.Context, actor ActivityActor, req dto.SectionActionRequest) (dto.SectionMutationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "sections.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("sections.action", req.Action),
		attribute.Int64("sections.teacher_id", int64(actor.ID)),
	)

	if err := s.validator.Struct(req); err != nil {
		failSpan(span, err, "validation_failed")
		return dto.SectionMutationResponse{}, err
	}

	caps := s.capabilities.Resolve(ctx, sectionFields()...)
	var (
		response dto.SectionMutationResponse
		err      error
	)
	switch req.Action {
	case "add":
		response, err = s.add(ctx, actor, caps, req)
	case "remove":
		response, err = s.remove(ctx, actor, caps, req.SectionID)
	default:
		err = invalidInput("unknown action %q", req.Action)
	}
	if err != nil {
		failSpan(span, err, "section_"+req.Action+"_failed")
		return dto.SectionMutationResponse{}, err
	}
	return response, nil
}

func (s *sectionService) add(ctx context.Context, actor ActivityActor, caps schema.Capabilities, req dto.SectionActionRequest) (dto.SectionMutationResponse, error) {
	label := strings.TrimSpace(s.sanitizer.Sanitize(req.Label))
	if label == "" {
		return dto.SectionMutationResponse{}, invalidInput("label is required")
	}

	trimester := ""
	if raw := strings.TrimSpace(req.Trimester); raw != "" {
		trimester = s.trimesters.Label(raw)
		if !s.isKnownTrimester(trimester) {
			return dto.SectionMutationResponse{}, invalidInput("unknown trimester %q", raw)
		}
	}
	var trimesterCode *int64
	if trimester != "" && caps.Numeric(schema.SectionTrimester) {
		code, ok := s.trimesters.Code(trimester)
		if !ok {
			return dto.SectionMutationResponse{}, invalidInput("trimester %q has no numeric code", trimester)
		}
		trimesterCode = &code
	}

	year := req.Year
	if year == 0 {
		year = s.now().Year()
	}

	exists, err := s.repo.CourseExists(ctx, caps, req.CourseID)
	if err != nil {
		return dto.SectionMutationResponse{}, featureError(err)
	}
	if !exists {
		return dto.SectionMutationResponse{}, invalidInput("course %d does not exist", req.CourseID)
	}

	id, err := s.repo.Create(ctx, actor.ID, caps, repository.NewSection{
		CourseID:      req.CourseID,
		Label:         label,
		Trimester:     trimester,
		TrimesterCode: trimesterCode,
		Year:          year,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("teacher_id", actor.ID).Msg("failed to create section")
		return dto.SectionMutationResponse{}, featureError(err)
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "section.created",
		EntityType: "section",
		EntityID:   &id,
		Metadata: map[string]interface{}{
			"course_id": req.CourseID,
			"label":     label,
			"trimester": trimester,
			"year":      year,
		},
	})
	return dto.SectionMutationResponse{Action: "add", SectionID: id}, nil
}

func (s *sectionService) remove(ctx context.Context, actor ActivityActor, caps schema.Capabilities, sectionID uint) (dto.SectionMutationResponse, error) {
	affected, err := s.repo.Delete(ctx, actor.ID, caps, sectionID)
	if err != nil {
		s.logger.Error().Err(err).Uint("section_id", sectionID).Msg("failed to delete section")
		return dto.SectionMutationResponse{}, featureError(err)
	}
	if affected == 0 {
		return dto.SectionMutationResponse{}, ErrNotOwned
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "section.deleted",
		EntityType: "section",
		EntityID:   &sectionID,
	})
	return dto.SectionMutationResponse{Action: "remove", SectionID: sectionID}, nil
}

func (s *sectionService) isKnownTrimester(label string) bool {
	for _, known := range s.trimesters.Labels() {
		if known == label {
			return true
		}
	}
	return false
}
