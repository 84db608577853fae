package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// AnalyticsService builds the per-course verdict aggregation behind the
// visualization.
type AnalyticsService interface {
	Summary(ctx context.Context, teacherID uint, query dto.AnalyticsQuery) (dto.AnalyticsResponse, error)
}

type analyticsService struct {
	repo         repository.AnalyticsRepository
	capabilities CapabilityService
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewAnalyticsService constructs the analytics service. A nil cache or non-positive
// TTL disables caching.
func NewAnalyticsService(repo repository.AnalyticsRepository, capabilities CapabilityService, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AnalyticsService {
	return &analyticsService{
		repo:         repo,
		capabilities: capabilities,
		cache:        cache,
		cacheTTL:     ttl,
		logger:       logger.With().Str("component", "analytics_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/analytics"),
		now:          time.Now,
	}
}

func analyticsCacheKey(teacherID uint, days int, courseID uint) string {
	return fmt.Sprintf("panel:analytics:%d:%d:%d", teacherID, days, courseID)
}

func (s *analyticsService) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

// Summary degrades to an empty aggregation when the statement fails.
func (s *analyticsService) Summary(ctx context.Context, teacherID uint, query dto.AnalyticsQuery) (dto.AnalyticsResponse, error) {
	days, since := window(query.Days, defaultWindowDays, s.now())
	cacheKey := analyticsCacheKey(teacherID, days, query.CourseID)

	ctx, span := s.tracer.Start(ctx, "analytics.aggregate")
	defer span.End()
	span.SetAttributes(attribute.String("analytics.cache_key", cacheKey))

	if s.cacheEnabled() {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.AnalyticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
			span.RecordError(err)
		}
	}

	caps := s.capabilities.Resolve(ctx, schema.Join(schema.SubmissionFields(), schema.ProblemFields(), schema.SectionFields(), schema.CourseFields())...)
	rows, err := s.repo.VerdictRows(ctx, teacherID, caps, repository.AnalyticsFilter{
		Since:    &since,
		CourseID: query.CourseID,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("teacher_id", teacherID).Msg("verdict aggregation degraded to empty")
		span.RecordError(err)
		rows = nil
	}

	response := dto.AnalyticsResponse{
		VerdictSummary: normalize.AggregateVerdicts(rows),
		Days:           days,
		CourseID:       query.CourseID,
	}
	span.SetAttributes(
		attribute.Int("analytics.groups", len(response.Groups)),
		attribute.Int64("analytics.grand_total", response.GrandTotal),
	)

	if s.cacheEnabled() && err == nil {
		if payload, marshalErr := json.Marshal(response); marshalErr == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store analytics cache")
			}
		}
	}

	return response, nil
}
