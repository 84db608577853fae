package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "schema:"

// CachedCatalog keeps successful catalog answers in Redis for a short TTL.
// Failed lookups are never cached.
type CachedCatalog struct {
	next   Catalog
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedCatalog decorates next. With a nil client or a non-positive TTL every
// lookup goes straight to next.
func NewCachedCatalog(next Catalog, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedCatalog {
	return &CachedCatalog{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "schema_cache").Logger(),
	}
}

func (c *CachedCatalog) enabled() bool {
	return c.cache != nil && c.ttl > 0
}

// LookupTable implements Catalog.
func (c *CachedCatalog) LookupTable(ctx context.Context, table string) (bool, error) {
	if !c.enabled() {
		return c.next.LookupTable(ctx, table)
	}

	key := tableKey(table)
	cached, err := c.cache.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if err != redis.Nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to read schema cache")
	}

	ok, err := c.next.LookupTable(ctx, table)
	if err != nil {
		return false, err
	}
	if err := c.cache.Set(ctx, key, flag(ok), c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to store schema cache")
	}
	return ok, nil
}

// LookupColumns implements Catalog.
func (c *CachedCatalog) LookupColumns(ctx context.Context, table string, candidates []string) (ColumnTypes, error) {
	if !c.enabled() || len(candidates) == 0 {
		return c.next.LookupColumns(ctx, table, candidates)
	}

	keys := make([]string, len(candidates))
	for i, candidate := range candidates {
		keys[i] = columnKey(table, candidate)
	}

	values, err := c.cache.MGet(ctx, keys...).Result()
	if err == nil && allCached(values) {
		found := make(ColumnTypes, len(candidates))
		for i, candidate := range candidates {
			if dataType, ok := decodeColumn(values[i].(string)); ok {
				found[candidate] = dataType
			}
		}
		return found, nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("table", table).Msg("failed to read schema cache")
	}

	found, err := c.next.LookupColumns(ctx, table, candidates)
	if err != nil {
		return nil, err
	}

	pipe := c.cache.Pipeline()
	for i, candidate := range candidates {
		pipe.Set(ctx, keys[i], encodeColumn(found, candidate), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn().Err(err).Str("table", table).Msg("failed to store schema cache")
	}
	return found, nil
}

// Invalidate drops every cached answer, e.g. after a migration.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.cache.Scan(ctx, cursor, cacheKeyPrefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("scan schema cache: %w", err)
		}
		if len(keys) > 0 {
			if err := c.cache.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete schema cache: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func allCached(values []interface{}) bool {
	for _, v := range values {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

// Column entries are "0" when absent and "1:<data type>" when present.
func encodeColumn(found ColumnTypes, column string) string {
	dataType, ok := found[column]
	if !ok {
		return "0"
	}
	return "1:" + dataType
}

func decodeColumn(value string) (string, bool) {
	dataType, ok := strings.CutPrefix(value, "1:")
	return dataType, ok
}

func flag(ok bool) string {
	if ok {
		return "1"
	}
	return "0"
}

func tableKey(table string) string {
	return cacheKeyPrefix + "table:" + table
}

func columnKey(table, column string) string {
	return cacheKeyPrefix + "coltype:" + table + ":" + column
}
