package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// DashboardService summarises a teacher's workload.
type DashboardService interface {
	Summary(ctx context.Context, teacherID uint, days int) (dto.DashboardResponse, error)
}

// DashboardRepositories groups the readers the dashboard counts from.
type DashboardRepositories struct {
	Sections    repository.SectionRepository
	Problems    repository.ProblemRepository
	Submissions repository.SubmissionRepository
	Tests       repository.TestRepository
}

type dashboardService struct {
	repos        DashboardRepositories
	capabilities CapabilityService
	defaultDays  int
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewDashboardService constructs the dashboard service. defaultDays is the
// submission window used when the request does not name one.
func NewDashboardService(repos DashboardRepositories, capabilities CapabilityService, defaultDays int, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		repos:        repos,
		capabilities: capabilities,
		defaultDays:  defaultDays,
		logger:       logger.With().Str("component", "dashboard_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/dashboard"),
		now:          time.Now,
	}
}

// Summary never fails on a statement error: each count falls back to zero.
func (s *dashboardService) Summary(ctx context.Context, teacherID uint, days int) (dto.DashboardResponse, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.summary")
	defer span.End()
	span.SetAttributes(attribute.Int64("dashboard.teacher_id", int64(teacherID)))

	days, since := window(days, s.defaultDays, s.now())
	caps := s.capabilities.Resolve(ctx, schema.AllFields()...)

	response := dto.DashboardResponse{
		Days:   days,
		Recent: []dto.SubmissionResponse{},
	}
	response.Sections = s.count(ctx, "sections", func() (int64, error) {
		return s.repos.Sections.CountSections(ctx, teacherID, caps)
	})
	response.Courses = s.count(ctx, "courses", func() (int64, error) {
		return s.repos.Sections.CountCourses(ctx, teacherID, caps)
	})
	response.Problems = s.count(ctx, "problems", func() (int64, error) {
		return s.repos.Problems.Count(ctx, teacherID, caps)
	})
	response.Submissions = s.count(ctx, "submissions", func() (int64, error) {
		return s.repos.Submissions.Count(ctx, teacherID, caps, &since)
	})

	if caps.Has(schema.SubmissionStatus) {
		pending := s.count(ctx, "pending_checks", func() (int64, error) {
			return s.repos.Submissions.CountPending(ctx, teacherID, caps)
		})
		response.PendingChecks = &pending
	}
	if caps.HasTable(schema.TableTests) && s.repos.Tests != nil {
		tests := s.count(ctx, "tests", func() (int64, error) {
			return s.repos.Tests.Count(ctx, teacherID, caps)
		})
		response.Tests = &tests
	}

	recent, _, err := s.repos.Submissions.List(ctx, teacherID, caps, repository.SubmissionFilter{
		Page: qb.Page{Number: 1, Size: recentSubmissionCap},
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("teacher_id", teacherID).Msg("recent submissions unavailable")
		span.RecordError(err)
	}
	for _, view := range recent {
		response.Recent = append(response.Recent, dto.NewSubmissionResponse(view))
	}

	return response, ctx.Err()
}

func (s *dashboardService) count(ctx context.Context, name string, fn func() (int64, error)) int64 {
	value, err := fn()
	if err != nil {
		s.logger.Warn().Err(err).Str("count", name).Msg("dashboard count unavailable, reporting zero")
		trace.SpanFromContext(ctx).RecordError(err)
		return 0
	}
	return value
}
