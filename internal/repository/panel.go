package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// ErrCapabilityMissing reports that a column the operation cannot work without is
// absent from the live schema.
var ErrCapabilityMissing = errors.New("required column unavailable")

// columns resolves physical names for one statement and remembers which required
// fields were missing.
type columns struct {
	caps    schema.Capabilities
	missing []string
}

func newColumns(caps schema.Capabilities) *columns {
	return &columns{caps: caps}
}

func (c *columns) required(f schema.Field) string {
	if column, ok := c.caps.Column(f); ok {
		return column
	}
	c.missing = append(c.missing, f.Name)
	return ""
}

func (c *columns) optional(f schema.Field) (string, bool) {
	return c.caps.Column(f)
}

func (c *columns) err() error {
	if len(c.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCapabilityMissing, strings.Join(c.missing, ", "))
}

// selectOptional projects alias.f AS as, or the fallback literal when f is absent.
func (c *columns) selectOptional(q *qb.Query, alias string, f schema.Field, as string, fallback qb.Literal) *qb.Query {
	column, ok := c.optional(f)
	return q.SelectOptional(alias, column, ok, as, fallback)
}

func scanRows(ctx context.Context, db *gorm.DB, stmt qb.Statement) ([]normalize.Row, error) {
	var raw []map[string]interface{}
	if err := db.WithContext(ctx).Raw(stmt.SQL, stmt.Args()...).Scan(&raw).Error; err != nil {
		return nil, err
	}
	rows := make([]normalize.Row, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, normalize.Row(r))
	}
	return rows, nil
}

func scanCount(ctx context.Context, db *gorm.DB, stmt qb.Statement) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(stmt.SQL, stmt.Args()...).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func execStatement(ctx context.Context, db *gorm.DB, stmt qb.Statement) (int64, error) {
	result := db.WithContext(ctx).Exec(stmt.SQL, stmt.Args()...)
	return result.RowsAffected, result.Error
}

func insertReturningID(ctx context.Context, db *gorm.DB, stmt qb.Statement) (uint, error) {
	var id int64
	if err := db.WithContext(ctx).Raw(stmt.SQL, stmt.Args()...).Scan(&id).Error; err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("insert returned no id")
	}
	return uint(id), nil
}

func build(q interface{ Build() (qb.Statement, error) }) (qb.Statement, error) {
	stmt, err := q.Build()
	if err != nil {
		return qb.Statement{}, fmt.Errorf("build statement: %w", err)
	}
	return stmt, nil
}

// teacherCourseIDs selects the course ids the teacher holds sections for.
func teacherCourseIDs(c *columns, teacherID uint) *qb.Query {
	return qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableSections, "own_sec").
		SelectAs("own_sec."+c.required(schema.SectionCourse), "course_id").
		Filter(qb.F("own_sec."+c.required(schema.SectionTeacher), "=", qb.Uint(teacherID)))
}

// teacherSectionIDs selects the teacher's section ids.
func teacherSectionIDs(c *columns, teacherID uint) *qb.Query {
	return qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableSections, "own_sec").
		SelectAs("own_sec."+c.required(schema.SectionID), "id").
		Filter(qb.F("own_sec."+c.required(schema.SectionTeacher), "=", qb.Uint(teacherID)))
}

// teacherProblemIDs selects problems of the teacher's courses.
func teacherProblemIDs(c *columns, teacherID uint) *qb.Query {
	return qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableProblems, "own_p").
		SelectAs("own_p."+c.required(schema.ProblemID), "id").
		Filter(qb.InSubquery("own_p."+c.required(schema.ProblemCourse), teacherCourseIDs(c, teacherID)))
}

// teacherTestIDs selects tests of the teacher's sections.
func teacherTestIDs(c *columns, teacherID uint) *qb.Query {
	return qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableTests, "own_t").
		SelectAs("own_t."+c.required(schema.TestID), "id").
		Filter(qb.InSubquery("own_t."+c.required(schema.TestSection), teacherSectionIDs(c, teacherID)))
}

// searchAny matches text against every present column with OR. It returns nil when
// no column is available or text is blank.
func searchAny(text string, refs ...string) *qb.FilterGroup {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var items []interface{}
	for _, ref := range refs {
		if ref != "" {
			items = append(items, qb.Contains(ref, text))
		}
	}
	if len(items) == 0 {
		return nil
	}
	return qb.Or(items...)
}

func ref(alias, column string) string {
	if column == "" {
		return ""
	}
	return alias + "." + column
}

func optionalRef(c *columns, alias string, f schema.Field) string {
	column, _ := c.optional(f)
	return ref(alias, column)
}
