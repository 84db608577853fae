package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/observability"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// scoreEpsilon absorbs float noise when comparing a score with its maximum.
const scoreEpsilon = 1e-9

// SubmissionService lists submissions for review and records manual checks.
type SubmissionService interface {
	List(ctx context.Context, teacherID uint, query dto.SubmissionListQuery) (dto.SubmissionListResponse, error)
	ManualCheck(ctx context.Context, actor ActivityActor, req dto.ManualCheckRequest) (dto.ManualCheckResponse, error)
}

type submissionService struct {
	repo         repository.SubmissionRepository
	capabilities CapabilityService
	bounds       qb.Bounds
	validator    *validator.Validate
	activity     ActivityRecorder
	events       EventPublisher
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewSubmissionService constructs the submission review service.
func NewSubmissionService(repo repository.SubmissionRepository, capabilities CapabilityService, bounds qb.Bounds, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		repo:         repo,
		capabilities: capabilities,
		bounds:       bounds,
		validator:    validate,
		activity:     activity,
		events:       events,
		logger:       logger.With().Str("component", "submission_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/submission"),
		now:          time.Now,
	}
}

func submissionFields() []schema.Field {
	return schema.Join(schema.SubmissionFields(), schema.ProblemFields(), schema.SectionFields(), schema.UserFields())
}

func (s *submissionService) List(ctx context.Context, teacherID uint, query dto.SubmissionListQuery) (dto.SubmissionListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.list")
	defer span.End()

	page := qb.Clamp(query.Page, query.PerPage, s.bounds)
	days, since := window(query.Days, defaultWindowDays, s.now())
	caps := s.capabilities.Resolve(ctx, submissionFields()...)
	span.SetAttributes(
		attribute.Int64("submissions.teacher_id", int64(teacherID)),
		attribute.Int("submissions.days", days),
		attribute.Int("submissions.page_size", page.Size),
	)

	response := dto.SubmissionListResponse{
		Items:      []dto.SubmissionResponse{},
		Days:       days,
		Pagination: dto.NewPaginationMeta(page, 0),
	}
	views, total, err := s.repo.List(ctx, teacherID, caps, repository.SubmissionFilter{
		Since:     &since,
		CourseID:  query.CourseID,
		ProblemID: query.ProblemID,
		Status:    strings.TrimSpace(query.Status),
		Search:    strings.TrimSpace(query.Search),
		Page:      page,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("teacher_id", teacherID).Msg("submission listing degraded to empty")
		span.RecordError(err)
		return response, nil
	}

	for _, view := range views {
		response.Items = append(response.Items, dto.NewSubmissionResponse(view))
	}
	response.Pagination = dto.NewPaginationMeta(page, total)
	return response, nil
}

// ManualCheck stores the teacher's score and marks the submission Checked in a
// single statement; repeating it overwrites the score.
func (s *submissionService) ManualCheck(ctx context.Context, actor ActivityActor, req dto.ManualCheckRequest) (dto.ManualCheckResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.manual_check")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("submissions.id", int64(req.ID)),
		attribute.Int64("submissions.teacher_id", int64(actor.ID)),
	)

	if err := s.validator.Struct(req); err != nil {
		failSpan(span, err, "validation_failed")
		return dto.ManualCheckResponse{}, err
	}
	score := *req.Score

	caps := s.capabilities.Resolve(ctx, submissionFields()...)
	if !caps.Has(schema.SubmissionStatus) {
		err := featureError(repository.ErrCapabilityMissing)
		failSpan(span, err, "status_column_missing")
		return dto.ManualCheckResponse{}, err
	}

	view, err := s.repo.GetOwned(ctx, actor.ID, caps, req.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failSpan(span, err, "submission_not_owned")
			return dto.ManualCheckResponse{}, ErrNotOwned
		}
		failSpan(span, err, "submission_lookup_failed")
		return dto.ManualCheckResponse{}, featureError(err)
	}

	if view.MaxScore != nil && *view.MaxScore > 0 && score > *view.MaxScore+scoreEpsilon {
		failSpan(span, ErrScoreExceedsMax, "score_exceeds_max")
		return dto.ManualCheckResponse{}, invalidScore(*view.MaxScore)
	}

	checkedAt := s.now().UTC()
	affected, err := s.repo.MarkChecked(ctx, actor.ID, caps, repository.ManualCheck{
		ID:        req.ID,
		Score:     score,
		CheckedAt: checkedAt,
		CheckedBy: actor.ID,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", req.ID).Msg("failed to record manual check")
		failSpan(span, err, "manual_check_failed")
		return dto.ManualCheckResponse{}, featureError(err)
	}
	if affected == 0 {
		failSpan(span, ErrNotOwned, "submission_not_owned")
		return dto.ManualCheckResponse{}, ErrNotOwned
	}

	observability.ManualChecks().WithLabelValues("submission").Inc()
	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "submission.checked",
		EntityType: "submission",
		EntityID:   &req.ID,
		Metadata: map[string]interface{}{
			"problem_id": view.ProblemID,
			"user_id":    view.UserID,
			"score":      score,
		},
	})
	publish(ctx, s.events, s.logger, CheckedEvent{
		Kind:         "submission",
		SubmissionID: req.ID,
		TeacherID:    actor.ID,
		Score:        score,
		CheckedAt:    checkedAt,
	})
	span.SetAttributes(attribute.Float64("submissions.score", score))

	return dto.ManualCheckResponse{
		ID:        req.ID,
		Status:    models.SubmissionStatusChecked,
		Score:     score,
		CheckedAt: checkedAt,
	}, nil
}
