package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
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

// formTimeLayouts are accepted for start_time and end_time, in order.
var formTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TestService manages the teacher's tests and grades test submissions.
type TestService interface {
	List(ctx context.Context, teacherID uint, query dto.TestListQuery) (dto.TestListResponse, error)
	Apply(ctx context.Context, actor ActivityActor, req dto.TestActionRequest) (dto.TestMutationResponse, error)
	Submissions(ctx context.Context, teacherID, testID uint, query dto.PageQuery) (dto.TestSubmissionListResponse, error)
	ManualCheck(ctx context.Context, actor ActivityActor, testID uint, req dto.ManualCheckRequest) (dto.ManualCheckResponse, error)
}

type testService struct {
	repo         repository.TestRepository
	sections     repository.SectionRepository
	capabilities CapabilityService
	bounds       qb.Bounds
	validator    *validator.Validate
	activity     ActivityRecorder
	events       EventPublisher
	plain        *bluemonday.Policy
	rich         *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewTestService constructs the test service.
func NewTestService(repo repository.TestRepository, sections repository.SectionRepository, capabilities CapabilityService, bounds qb.Bounds, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) TestService {
	return &testService{
		repo:         repo,
		sections:     sections,
		capabilities: capabilities,
		bounds:       bounds,
		validator:    validate,
		activity:     activity,
		events:       events,
		plain:        bluemonday.StrictPolicy(),
		rich:         bluemonday.UGCPolicy(),
		logger:       logger.With().Str("component", "test_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/test"),
		now:          time.Now,
	}
}

func testFields() []schema.Field {
	return schema.Join(schema.TestFields(), schema.TestSubmissionFields(), schema.SectionFields(), schema.UserFields())
}

func (s *testService) List(ctx context.Context, teacherID uint, query dto.TestListQuery) (dto.TestListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tests.list")
	defer span.End()

	page := qb.Clamp(query.Page, query.PerPage, s.bounds)
	response := dto.TestListResponse{
		Items:      []dto.TestResponse{},
		Pagination: dto.NewPaginationMeta(page, 0),
	}

	caps := s.capabilities.Resolve(ctx, testFields()...)
	if !caps.HasTable(schema.TableTests) {
		span.SetAttributes(attribute.Bool("tests.available", false))
		return response, nil
	}

	views, total, err := s.repo.List(ctx, teacherID, caps, repository.TestFilter{SectionID: query.SectionID, Page: page})
	if err != nil {
		s.logger.Warn().Err(err).Uint("teacher_id", teacherID).Msg("test listing degraded to empty")
		span.RecordError(err)
		return response, nil
	}
	for _, view := range views {
		response.Items = append(response.Items, dto.NewTestResponse(view))
	}
	response.Pagination = dto.NewPaginationMeta(page, total)
	return response, nil
}

func (s *testService) Apply(ctx context.Context, actor ActivityActor, req dto.TestActionRequest) (dto.TestMutationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tests.apply")
	defer span.End()
	span.SetAttributes(attribute.String("tests.action", req.Action))

	if err := s.validator.Struct(req); err != nil {
		failSpan(span, err, "validation_failed")
		return dto.TestMutationResponse{}, err
	}

	caps := s.capabilities.Resolve(ctx, testFields()...)
	if !caps.HasTable(schema.TableTests) {
		err := featureError(repository.ErrCapabilityMissing)
		failSpan(span, err, "tests_table_missing")
		return dto.TestMutationResponse{}, err
	}

	var (
		response dto.TestMutationResponse
		err      error
	)
	switch req.Action {
	case "add":
		response, err = s.add(ctx, actor, caps, req)
	case "remove":
		response, err = s.remove(ctx, actor, caps, req.TestID)
	default:
		err = invalidInput("unknown action %q", req.Action)
	}
	if err != nil {
		failSpan(span, err, "test_"+req.Action+"_failed")
		return dto.TestMutationResponse{}, err
	}
	return response, nil
}

func (s *testService) add(ctx context.Context, actor ActivityActor, caps schema.Capabilities, req dto.TestActionRequest) (dto.TestMutationResponse, error) {
	title := strings.TrimSpace(s.plain.Sanitize(req.Title))
	if title == "" {
		return dto.TestMutationResponse{}, invalidInput("title is required")
	}
	start, err := parseFormTime("start_time", req.StartTime)
	if err != nil {
		return dto.TestMutationResponse{}, err
	}
	end, err := parseFormTime("end_time", req.EndTime)
	if err != nil {
		return dto.TestMutationResponse{}, err
	}
	if start != nil && end != nil && !end.After(*start) {
		return dto.TestMutationResponse{}, invalidInput("end_time must be after start_time")
	}

	owned, err := s.sections.Owns(ctx, actor.ID, caps, req.SectionID)
	if err != nil {
		return dto.TestMutationResponse{}, featureError(err)
	}
	if !owned {
		return dto.TestMutationResponse{}, ErrNotOwned
	}

	id, err := s.repo.Create(ctx, caps, repository.NewTest{
		SectionID:  req.SectionID,
		Title:      title,
		Question:   strings.TrimSpace(s.rich.Sanitize(req.Question)),
		TotalMarks: req.TotalMarks,
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("section_id", req.SectionID).Msg("failed to create test")
		return dto.TestMutationResponse{}, featureError(err)
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "test.created",
		EntityType: "test",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"sec_id": req.SectionID, "title": title},
	})
	return dto.TestMutationResponse{Action: "add", TestID: id}, nil
}

func (s *testService) remove(ctx context.Context, actor ActivityActor, caps schema.Capabilities, testID uint) (dto.TestMutationResponse, error) {
	affected, err := s.repo.Delete(ctx, actor.ID, caps, testID)
	if err != nil {
		s.logger.Error().Err(err).Uint("test_id", testID).Msg("failed to delete test")
		return dto.TestMutationResponse{}, featureError(err)
	}
	if affected == 0 {
		return dto.TestMutationResponse{}, ErrNotOwned
	}

	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "test.deleted",
		EntityType: "test",
		EntityID:   &testID,
	})
	return dto.TestMutationResponse{Action: "remove", TestID: testID}, nil
}

func (s *testService) ownedTest(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint) (models.TestView, error) {
	if !caps.HasTable(schema.TableTests) {
		return models.TestView{}, featureError(repository.ErrCapabilityMissing)
	}
	test, err := s.repo.GetOwned(ctx, teacherID, caps, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TestView{}, ErrNotOwned
		}
		return models.TestView{}, featureError(err)
	}
	return test, nil
}

func (s *testService) Submissions(ctx context.Context, teacherID, testID uint, query dto.PageQuery) (dto.TestSubmissionListResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tests.submissions")
	defer span.End()
	span.SetAttributes(attribute.Int64("tests.id", int64(testID)))

	caps := s.capabilities.Resolve(ctx, testFields()...)
	test, err := s.ownedTest(ctx, teacherID, caps, testID)
	if err != nil {
		failSpan(span, err, "test_lookup_failed")
		return dto.TestSubmissionListResponse{}, err
	}

	page := qb.Clamp(query.Page, query.PerPage, s.bounds)
	response := dto.TestSubmissionListResponse{
		Test:       dto.NewTestResponse(test),
		Items:      []dto.TestSubmissionResponse{},
		Pagination: dto.NewPaginationMeta(page, 0),
	}
	if !caps.HasTable(schema.TableTestSubmissions) {
		return response, nil
	}

	views, total, err := s.repo.ListSubmissions(ctx, teacherID, caps, testID, page)
	if err != nil {
		s.logger.Warn().Err(err).Uint("test_id", testID).Msg("test submission listing degraded to empty")
		span.RecordError(err)
		return response, nil
	}
	for _, view := range views {
		response.Items = append(response.Items, dto.NewTestSubmissionResponse(view))
	}
	response.Pagination = dto.NewPaginationMeta(page, total)
	return response, nil
}

func (s *testService) ManualCheck(ctx context.Context, actor ActivityActor, testID uint, req dto.ManualCheckRequest) (dto.ManualCheckResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tests.manual_check")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("tests.id", int64(testID)),
		attribute.Int64("tests.submission_id", int64(req.ID)),
	)

	if err := s.validator.Struct(req); err != nil {
		failSpan(span, err, "validation_failed")
		return dto.ManualCheckResponse{}, err
	}
	score := *req.Score

	caps := s.capabilities.Resolve(ctx, testFields()...)
	test, err := s.ownedTest(ctx, actor.ID, caps, testID)
	if err != nil {
		failSpan(span, err, "test_lookup_failed")
		return dto.ManualCheckResponse{}, err
	}
	if !caps.HasTable(schema.TableTestSubmissions) {
		err := featureError(repository.ErrCapabilityMissing)
		failSpan(span, err, "test_submissions_missing")
		return dto.ManualCheckResponse{}, err
	}
	if _, err := s.repo.GetSubmission(ctx, actor.ID, caps, testID, req.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			failSpan(span, err, "submission_not_owned")
			return dto.ManualCheckResponse{}, ErrNotOwned
		}
		failSpan(span, err, "submission_lookup_failed")
		return dto.ManualCheckResponse{}, featureError(err)
	}

	if test.TotalMarks != nil && *test.TotalMarks > 0 && score > *test.TotalMarks+scoreEpsilon {
		failSpan(span, ErrScoreExceedsMax, "score_exceeds_max")
		return dto.ManualCheckResponse{}, invalidScore(*test.TotalMarks)
	}

	checkedAt := s.now().UTC()
	affected, err := s.repo.MarkSubmissionChecked(ctx, actor.ID, caps, testID, repository.ManualCheck{
		ID:        req.ID,
		Score:     score,
		CheckedAt: checkedAt,
		CheckedBy: actor.ID,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("test_submission_id", req.ID).Msg("failed to record test check")
		failSpan(span, err, "manual_check_failed")
		return dto.ManualCheckResponse{}, featureError(err)
	}
	if affected == 0 {
		failSpan(span, ErrNotOwned, "submission_not_owned")
		return dto.ManualCheckResponse{}, ErrNotOwned
	}

	observability.ManualChecks().WithLabelValues("test").Inc()
	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "test_submission.checked",
		EntityType: "test_submission",
		EntityID:   &req.ID,
		Metadata:   map[string]interface{}{"test_id": testID, "score": score},
	})
	publish(ctx, s.events, s.logger, CheckedEvent{
		Kind:         "test",
		SubmissionID: req.ID,
		TestID:       testID,
		TeacherID:    actor.ID,
		Score:        score,
		CheckedAt:    checkedAt,
	})

	return dto.ManualCheckResponse{
		ID:        req.ID,
		Status:    models.SubmissionStatusChecked,
		Score:     score,
		CheckedAt: checkedAt,
	}, nil
}

func parseFormTime(name, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range formTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, invalidInput("%s is not a valid time", name)
}
