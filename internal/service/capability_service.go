package service

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// CacheInvalidator drops cached catalog answers.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CapabilityService resolves which optional tables and columns the live schema has.
// Every request resolves afresh; caching, if any, lives below the prober.
type CapabilityService interface {
	Resolve(ctx context.Context, fields ...schema.Field) schema.Capabilities
	Snapshot(ctx context.Context) schema.Snapshot
	Refresh(ctx context.Context) (schema.Snapshot, error)
}

type capabilityService struct {
	prober schema.Prober
	cache  CacheInvalidator
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewCapabilityService constructs the capability service. cache may be nil.
func NewCapabilityService(prober schema.Prober, cache CacheInvalidator, logger zerolog.Logger) CapabilityService {
	return &capabilityService{
		prober: prober,
		cache:  cache,
		logger: logger.With().Str("component", "capability_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/capability"),
	}
}

func (s *capabilityService) Resolve(ctx context.Context, fields ...schema.Field) schema.Capabilities {
	ctx, span := s.tracer.Start(ctx, "capabilities.resolve")
	defer span.End()

	caps := schema.Resolve(ctx, s.prober, fields...)
	span.SetAttributes(
		attribute.Int("capabilities.fields", len(fields)),
		attribute.Int("capabilities.missing", len(caps.Snapshot().Missing)),
	)
	return caps
}

func (s *capabilityService) Snapshot(ctx context.Context) schema.Snapshot {
	return s.Resolve(ctx, schema.AllFields()...).Snapshot()
}

func (s *capabilityService) Refresh(ctx context.Context) (schema.Snapshot, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to invalidate schema cache")
			return schema.Snapshot{}, err
		}
		s.logger.Info().Msg("schema cache invalidated")
	}
	return s.Snapshot(ctx), nil
}
