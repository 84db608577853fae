package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// ProblemService lists and mutates problems of the teacher's courses.
type ProblemService interface {
	List(ctx context.Context, teacherID uint, query dto.ProblemListQuery) (dto.ProblemListResponse, error)
	Get(ctx context.Context, teacherID, problemID uint) (dto.ProblemDetailResponse, error)
	Apply(ctx context.Context, actor ActivityActor, req dto.ProblemActionRequest) (dto.ProblemMutationResponse, error)
}

type problemService struct {
	repo         repository.ProblemRepository
	capabilities CapabilityService
	bounds       qb.Bounds
	validator    *validator.Validate
	activity     ActivityRecorder
	plain        *bluemonday.Policy
	rich         *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewProblemService constructs the problem service.
func NewProblemService(repo repository.ProblemRepository, capabilities CapabilityService, bounds qb.Bounds, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) ProblemService {
	return &problemService{
		repo:         repo,
		capabilities: capabilities,
		bounds:       bounds,
		validator:    validate,
		activity:     activity,
		plain:        bluemonday.StrictPolicy(),
		rich:         bluemonday.UGCPolicy(),
		logger:       logger.With().Str("component", "problem_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/problem"),
	}
}

func problemFields() []schema.Field {
	return schema.Join(schema.ProblemFields(), schema.SectionFields(), schema.CourseFields())
}

func (s *problemService) List(ctx context.Context, teacherID uint, query dto.ProblemListQuery) (dto.ProblemListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "problems.list")
	defer span.End()

	page := qb.Clamp(query.Page, query.PerPage, s.bounds)
	caps := s.capabilities.Resolve(ctx, problemFields()...)
	span.SetAttributes(
		attribute.Int64("problems.teacher_id", int64(teacherID)),
		attribute.Int("problems.page_size", page.Size),
	)

	response := dto.ProblemListResponse{
		Items:      []dto.ProblemResponse{},
		Pagination: dto.NewPaginationMeta(page, 0),
	}
	views, total, err := s.repo.List(ctx, teacherID, caps, repository.ProblemFilter{
		CourseID: query.CourseID,
		Search:   strings.TrimSpace(query.Search),
		Page:     page,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("teacher_id", teacherID).Msg("problem listing degraded to empty")
		span.RecordError(err)
		return response, nil
	}

	for _, view := range views {
		response.Items = append(response.Items, dto.NewProblemResponse(view))
	}
	response.Pagination = dto.NewPaginationMeta(page, total)
	return response, nil
}

func (s *problemService) Get(ctx context.Context, teacherID, problemID uint) (dto.ProblemDetailResponse, error) {
	ctx, span := s.tracer.Start(ctx, "problems.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("problems.id", int64(problemID)))

	caps := s.capabilities.Resolve(ctx, problemFields()...)
	view, err := s.repo.Get(ctx, teacherID, caps, problemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failSpan(span, err, "problem_not_found")
			return dto.ProblemDetailResponse{}, ErrNotOwned
		}
		failSpan(span, err, "problem_lookup_failed")
		return dto.ProblemDetailResponse{}, featureError(err)
	}
	return dto.NewProblemDetailResponse(view), nil
}

func (s *problemService) Apply(ctx context.Context, actor ActivityActor, req dto.ProblemActionRequest) (dto.ProblemMutationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "problems.apply")
	defer span.End()
	span.SetAttributes(attribute.String("problems.action", req.Action))

	if err := s.validator.Struct(req); err != nil {
		failSpan(span, err, "validation_failed")
		return dto.ProblemMutationResponse{}, err
	}

	caps := s.capabilities.Resolve(ctx, problemFields()...)
	var (
		response dto.ProblemMutationResponse
		err      error
	)
	switch req.Action {
	case "add":
		response, err = s.add(ctx, actor, caps, req)
	case "remove":
		response, err = s.remove(ctx, actor, caps, req.ProblemID)
	default:
		err = invalidInput("unknown action %q", req.Action)
	}
	if err != nil {
		failSpan(span, err, "problem_"+req.Action+"_failed")
		return dto.ProblemMutationResponse{}, err
	}
	return response, nil
}

func (s *problemService) add(ctx context.Context, actor ActivityActor, caps schema.Capabilities, req dto.ProblemActionRequest) (dto.ProblemMutationResponse, error) {
	title := strings.TrimSpace(s.plain.Sanitize(req.Title))
	if title == "" {
		return dto.ProblemMutationResponse{}, invalidInput("title is required")
	}

	owned, err := s.repo.OwnsCourse(ctx, actor.ID, caps, req.CourseID)
	if err != nil {
		return dto.ProblemMutationResponse{}, featureError(err)
	}
	if !owned {
		return dto.ProblemMutationResponse{}, ErrNotOwned
	}

	id, err := s.repo.Create(ctx, caps, repository.NewProblem{
		CourseID:     req.CourseID,
		Title:        title,
		Statement:    strings.TrimSpace(s.rich.Sanitize(req.Statement)),
		Difficulty:   strings.ToLower(strings.TrimSpace(s.plain.Sanitize(req.Difficulty))),
		Points:       req.Points,
		SampleInput:  req.SampleInput,
		SampleOutput: req.SampleOutput,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("course_id", req.CourseID).Msg("failed to create problem")
		return dto.ProblemMutationResponse{}, featureError(err)
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "problem.created",
		EntityType: "problem",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"course_id": req.CourseID, "title": title},
	})
	return dto.ProblemMutationResponse{Action: "add", ProblemID: id}, nil
}

func (s *problemService) remove(ctx context.Context, actor ActivityActor, caps schema.Capabilities, problemID uint) (dto.ProblemMutationResponse, error) {
	affected, err := s.repo.Delete(ctx, actor.ID, caps, problemID)
	if err != nil {
		s.logger.Error().Err(err).Uint("problem_id", problemID).Msg("failed to delete problem")
		return dto.ProblemMutationResponse{}, featureError(err)
	}
	if affected == 0 {
		return dto.ProblemMutationResponse{}, ErrNotOwned
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "problem.deleted",
		EntityType: "problem",
		EntityID:   &problemID,
	})
	return dto.ProblemMutationResponse{Action: "remove", ProblemID: problemID}, nil
}
