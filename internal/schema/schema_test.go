package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSchemaDB(t *testing.T, ddl ...string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestSQLCatalogSQLite(t *testing.T) {
	db := setupSchemaDB(t, "CREATE TABLE submissions (id INTEGER PRIMARY KEY, problem_id INTEGER, result TEXT, created_at DATETIME)")
	catalog := NewSQLCatalog(db, DialectSQLite, "")
	ctx := context.Background()

	ok, err := catalog.LookupTable(ctx, "submissions")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = catalog.LookupTable(ctx, "tests")
	require.NoError(t, err)
	require.False(t, ok)

	found, err := catalog.LookupColumns(ctx, "submissions", []string{"verdict", "result", "created_at"})
	require.NoError(t, err)
	require.Equal(t, ColumnTypes{"result": "text", "created_at": "datetime"}, found)
}

func TestProberFirstColumnHonoursPreferenceOrder(t *testing.T) {
	db := setupSchemaDB(t, "CREATE TABLE submissions (id INTEGER PRIMARY KEY, submission_time DATETIME, created_at DATETIME)")
	prober := NewProber(NewSQLCatalog(db, DialectSQLite, ""), discardLogger())
	ctx := context.Background()

	column, ok := prober.FirstColumn(ctx, "submissions", "submitted_at", "created_at", "submission_time")
	require.True(t, ok)
	require.Equal(t, "created_at", column)

	_, ok = prober.FirstColumn(ctx, "submissions", "verdict", "result")
	require.False(t, ok)

	require.True(t, prober.HasColumn(ctx, "submissions", "id"))
	require.False(t, prober.HasColumn(ctx, "missing_table", "id"))
}

func TestProberTreatsLookupFailureAsAbsent(t *testing.T) {
	db := setupSchemaDB(t, "CREATE TABLE problems (id INTEGER PRIMARY KEY)")
	prober := NewProber(NewSQLCatalog(db, DialectSQLite, ""), discardLogger())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	ctx := context.Background()
	require.False(t, prober.HasTable(ctx, "problems"))
	require.False(t, prober.HasColumn(ctx, "problems", "id"))
}

func TestResolveCapabilities(t *testing.T) {
	db := setupSchemaDB(t,
		"CREATE TABLE submissions (id INTEGER PRIMARY KEY, problem_id INTEGER, student_id INTEGER, result TEXT, marks INTEGER)",
	)
	prober := NewProber(NewSQLCatalog(db, DialectSQLite, ""), discardLogger())

	caps := Resolve(context.Background(), prober, Join(SubmissionFields(), TestFields())...)

	column, ok := caps.Column(SubmissionVerdict)
	require.True(t, ok)
	require.Equal(t, "result", column)

	column, ok = caps.Column(SubmissionUser)
	require.True(t, ok)
	require.Equal(t, "student_id", column)

	require.False(t, caps.Has(SubmissionLanguage))
	require.False(t, caps.HasTable(TableTests))
	require.False(t, caps.Has(TestTitle))
	require.True(t, caps.HasAll(SubmissionID, SubmissionProblem))

	allow := caps.AllowList()
	require.True(t, allow["submissions"]["marks"])
	require.False(t, allow["submissions"]["verdict"])
	_, testsAllowed := allow["tests"]
	require.False(t, testsAllowed)

	snap := caps.Snapshot()
	require.Contains(t, snap.Missing, SubmissionLanguage.Name)
	require.Equal(t, "result", snap.Columns[SubmissionVerdict.Name])
}

func TestResolveLooksUpEachTableOnce(t *testing.T) {
	inner := &countingCatalog{
		tables: map[string]bool{TableSections: true, TableSubmissions: true},
		columns: map[string]map[string]bool{
			TableSections:    {"id": true, "teacher_id": true, "trimester": true},
			TableSubmissions: {"id": true, "result": true},
		},
	}
	prober := NewProber(inner, discardLogger())

	caps := Resolve(context.Background(), prober, AllFields()...)

	tables := map[string]bool{}
	for _, f := range AllFields() {
		tables[f.Table] = true
	}
	require.Equal(t, len(tables), inner.tableCalls)
	require.Equal(t, 2, inner.columnCalls)

	column, ok := caps.Column(SubmissionVerdict)
	require.True(t, ok)
	require.Equal(t, "result", column)
	require.True(t, caps.Has(SectionTeacher))
	require.False(t, caps.HasTable(TableProblems))
	require.False(t, caps.Has(ProblemTitle))
}

func TestResolveRecordsColumnTypes(t *testing.T) {
	db := setupSchemaDB(t, "CREATE TABLE sections (id INTEGER PRIMARY KEY, teacher_id INTEGER, trimester SMALLINT, year INTEGER)")
	prober := NewProber(NewSQLCatalog(db, DialectSQLite, ""), discardLogger())

	caps := Resolve(context.Background(), prober, SectionFields()...)
	require.True(t, caps.Numeric(SectionTrimester))

	db = setupSchemaDB(t, "CREATE TABLE sections (id INTEGER PRIMARY KEY, teacher_id INTEGER, trimester VARCHAR(16))")
	prober = NewProber(NewSQLCatalog(db, DialectSQLite, ""), discardLogger())

	caps = Resolve(context.Background(), prober, SectionFields()...)
	require.True(t, caps.Has(SectionTrimester))
	require.False(t, caps.Numeric(SectionTrimester))
	require.False(t, caps.Numeric(ProblemPoints))
}

func TestIsNumericType(t *testing.T) {
	for _, dataType := range []string{"integer", "SMALLINT", "bigint", "numeric(4,0)", "double precision", "real", "INT"} {
		require.True(t, IsNumericType(dataType), dataType)
	}
	for _, dataType := range []string{"text", "character varying", "varchar(16)", "", "datetime"} {
		require.False(t, IsNumericType(dataType), dataType)
	}
}

func TestCachedCatalogKeepsColumnTypes(t *testing.T) {
	_, client := newMiniredisClient(t)
	db := setupSchemaDB(t, "CREATE TABLE sections (id INTEGER PRIMARY KEY, trimester INTEGER)")
	cached := NewCachedCatalog(NewSQLCatalog(db, DialectSQLite, ""), client, time.Minute, discardLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		found, err := cached.LookupColumns(ctx, "sections", []string{"trimester", "term"})
		require.NoError(t, err)
		require.Equal(t, ColumnTypes{"trimester": "integer"}, found)
	}
}

func TestZeroCapabilitiesReportAbsent(t *testing.T) {
	var caps Capabilities
	require.False(t, caps.Has(ProblemTitle))
	require.False(t, caps.HasTable(TableProblems))
	require.Empty(t, caps.AllowList())
}

type countingCatalog struct {
	mu          sync.Mutex
	tables      map[string]bool
	columns     map[string]map[string]bool
	fail        bool
	tableCalls  int
	columnCalls int
}

func (c *countingCatalog) LookupTable(_ context.Context, table string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableCalls++
	if c.fail {
		return false, errors.New("catalog unavailable")
	}
	return c.tables[table], nil
}

func (c *countingCatalog) LookupColumns(_ context.Context, table string, candidates []string) (ColumnTypes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.columnCalls++
	if c.fail {
		return nil, errors.New("catalog unavailable")
	}
	found := ColumnTypes{}
	for _, candidate := range candidates {
		if c.columns[table][candidate] {
			found[candidate] = "text"
		}
	}
	return found, nil
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedCatalogServesRepeatLookupsFromRedis(t *testing.T) {
	_, client := newMiniredisClient(t)
	inner := &countingCatalog{
		tables:  map[string]bool{"problems": true},
		columns: map[string]map[string]bool{"problems": {"title": true}},
	}
	cached := NewCachedCatalog(inner, client, time.Minute, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := cached.LookupTable(ctx, "problems")
		require.NoError(t, err)
		require.True(t, ok)

		found, err := cached.LookupColumns(ctx, "problems", []string{"short_title", "title"})
		require.NoError(t, err)
		require.Equal(t, ColumnTypes{"title": "text"}, found)
	}

	require.Equal(t, 1, inner.tableCalls)
	require.Equal(t, 1, inner.columnCalls)

	require.NoError(t, cached.Invalidate(ctx))
	_, err := cached.LookupTable(ctx, "problems")
	require.NoError(t, err)
	require.Equal(t, 2, inner.tableCalls)
}

func TestCachedCatalogDoesNotCacheFailures(t *testing.T) {
	mr, client := newMiniredisClient(t)
	inner := &countingCatalog{fail: true}
	cached := NewCachedCatalog(inner, client, time.Minute, discardLogger())
	ctx := context.Background()

	_, err := cached.LookupTable(ctx, "problems")
	require.Error(t, err)
	require.False(t, mr.Exists(tableKey("problems")))

	inner.fail = false
	inner.tables = map[string]bool{"problems": true}
	ok, err := cached.LookupTable(ctx, "problems")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, inner.tableCalls)
}

func TestCachedCatalogExpiresEntries(t *testing.T) {
	mr, client := newMiniredisClient(t)
	inner := &countingCatalog{tables: map[string]bool{"tests": false}}
	cached := NewCachedCatalog(inner, client, 30*time.Second, discardLogger())
	ctx := context.Background()

	ok, err := cached.LookupTable(ctx, "tests")
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(time.Minute)
	inner.tables["tests"] = true

	ok, err = cached.LookupTable(ctx, "tests")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, inner.tableCalls)
}

func TestCachedCatalogWithoutRedisPassesThrough(t *testing.T) {
	inner := &countingCatalog{tables: map[string]bool{"tests": true}}
	cached := NewCachedCatalog(inner, nil, time.Minute, discardLogger())

	for i := 0; i < 2; i++ {
		ok, err := cached.LookupTable(context.Background(), "tests")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 2, inner.tableCalls)
	require.NoError(t, cached.Invalidate(context.Background()))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	require.Equal(t, DialectPostgres, d)

	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	require.Equal(t, DialectSQLite, d)

	_, err = ParseDialect("mysql")
	require.Error(t, err)
}
