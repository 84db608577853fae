package schema

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-teacher-panel/internal/observability"
)

// Prober answers capability questions without ever failing: a lookup error is
// reported as "absent".
type Prober interface {
	HasTable(ctx context.Context, table string) bool
	HasColumn(ctx context.Context, table, column string) bool
	FirstColumn(ctx context.Context, table string, candidates ...string) (string, bool)
	Columns(ctx context.Context, table string, candidates ...string) ColumnTypes
}

type failSafeProber struct {
	catalog Catalog
	logger  zerolog.Logger
}

// NewProber wraps a catalog with the fail-safe policy.
func NewProber(catalog Catalog, logger zerolog.Logger) Prober {
	return &failSafeProber{
		catalog: catalog,
		logger:  logger.With().Str("component", "schema_prober").Logger(),
	}
}

func (p *failSafeProber) HasTable(ctx context.Context, table string) bool {
	ok, err := p.catalog.LookupTable(ctx, table)
	if err != nil {
		p.logger.Warn().Err(err).Str("table", table).Msg("table probe failed, treating as absent")
		observability.SchemaProbes().WithLabelValues("table", "error").Inc()
		return false
	}
	observability.SchemaProbes().WithLabelValues("table", outcome(ok)).Inc()
	return ok
}

func (p *failSafeProber) HasColumn(ctx context.Context, table, column string) bool {
	_, ok := p.FirstColumn(ctx, table, column)
	return ok
}

func (p *failSafeProber) FirstColumn(ctx context.Context, table string, candidates ...string) (string, bool) {
	found := p.Columns(ctx, table, candidates...)
	for _, candidate := range candidates {
		if found.Has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Columns looks up every candidate in one catalog round trip. A failed lookup
// yields an empty set.
func (p *failSafeProber) Columns(ctx context.Context, table string, candidates ...string) ColumnTypes {
	if len(candidates) == 0 {
		return ColumnTypes{}
	}
	found, err := p.catalog.LookupColumns(ctx, table, candidates)
	if err != nil {
		p.logger.Warn().Err(err).Str("table", table).Strs("candidates", candidates).Msg("column probe failed, treating as absent")
		observability.SchemaProbes().WithLabelValues("column", "error").Inc()
		return ColumnTypes{}
	}
	for _, candidate := range candidates {
		observability.SchemaProbes().WithLabelValues("column", outcome(found.Has(candidate))).Inc()
	}
	return found
}

func outcome(present bool) string {
	if present {
		return "present"
	}
	return "absent"
}
