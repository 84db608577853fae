package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
)

func TestAnalyticsServiceAggregatesAndCaches(t *testing.T) {
	db, _ := seedPanel(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewAnalyticsService(repository.NewAnalyticsRepository(db), capabilitiesFor(db), client, time.Minute, testLogger())
	ctx := context.Background()

	first, err := svc.Summary(ctx, teacherID, dto.AnalyticsQuery{})
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, 30, first.Days)
	require.Equal(t, int64(3), first.GrandTotal)
	require.Len(t, first.Groups, 2)
	require.Equal(t, "CSE101", first.Groups[0].Label)
	require.Equal(t, int64(1), first.Groups[0].Counts[normalize.AC])
	require.Equal(t, int64(1), first.Groups[0].Counts[normalize.WA])
	require.Equal(t, int64(1), first.Groups[1].Counts[normalize.MANUAL])
	require.Equal(t, first.GrandTotal, first.Totals.Total())
	require.True(t, mr.Exists(analyticsCacheKey(teacherID, 30, 0)))

	second, err := svc.Summary(ctx, teacherID, dto.AnalyticsQuery{})
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.GrandTotal, second.GrandTotal)

	week, err := svc.Summary(ctx, teacherID, dto.AnalyticsQuery{Days: 7})
	require.NoError(t, err)
	require.False(t, week.CacheHit)
	require.Equal(t, int64(2), week.GrandTotal)
}

func TestAnalyticsServiceWithoutVerdictColumn(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE sections (id INTEGER PRIMARY KEY, course_id INTEGER, teacher_id INTEGER)",
		"CREATE TABLE problems (id INTEGER PRIMARY KEY, course_id INTEGER)",
		"CREATE TABLE submissions (id INTEGER PRIMARY KEY, problem_id INTEGER)",
		"INSERT INTO sections (id, course_id, teacher_id) VALUES (1, 4, 7)",
		"INSERT INTO problems (id, course_id) VALUES (1, 4)",
		"INSERT INTO submissions (id, problem_id) VALUES (1, 1), (2, 1)",
	)
	svc := NewAnalyticsService(repository.NewAnalyticsRepository(db), capabilitiesFor(db), nil, time.Minute, testLogger())

	summary, err := svc.Summary(context.Background(), teacherID, dto.AnalyticsQuery{Days: 7})
	require.NoError(t, err)
	require.Len(t, summary.Groups, 1)
	require.Equal(t, "Course #4", summary.Groups[0].Label)
	require.Equal(t, int64(2), summary.Groups[0].Counts[normalize.MANUAL])
	require.Equal(t, int64(2), summary.GrandTotal)
}

func TestAnalyticsServiceDegradesWhenTablesMissing(t *testing.T) {
	db := openTestDB(t)
	svc := NewAnalyticsService(repository.NewAnalyticsRepository(db), capabilitiesFor(db), nil, 0, testLogger())

	summary, err := svc.Summary(context.Background(), teacherID, dto.AnalyticsQuery{})
	require.NoError(t, err)
	require.Empty(t, summary.Groups)
	require.Equal(t, int64(0), summary.GrandTotal)
	require.Len(t, summary.Categories, 6)
}
