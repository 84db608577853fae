package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// ProblemFilter narrows the problem listing.
type ProblemFilter struct {
	CourseID uint
	Search   string
	Page     qb.Page
}

// NewProblem carries the values of a problem to create. Values for absent columns
// are dropped.
type NewProblem struct {
	CourseID     uint
	Title        string
	Statement    string
	Difficulty   string
	Points       *float64
	SampleInput  string
	SampleOutput string
}

// ProblemRepository reads and writes problems of the teacher's courses.
type ProblemRepository interface {
	List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter ProblemFilter) ([]models.ProblemView, int64, error)
	Get(ctx context.Context, teacherID uint, caps schema.Capabilities, problemID uint) (models.ProblemView, error)
	Count(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error)
	OwnsCourse(ctx context.Context, teacherID uint, caps schema.Capabilities, courseID uint) (bool, error)
	Create(ctx context.Context, caps schema.Capabilities, problem NewProblem) (uint, error)
	Delete(ctx context.Context, teacherID uint, caps schema.Capabilities, problemID uint) (int64, error)
}

type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository constructs the problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

func (r *problemRepository) baseQuery(c *columns, teacherID uint, withSamples bool) *qb.Query {
	q := qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableProblems, "p").
		SelectAs("p."+c.required(schema.ProblemID), "id").
		SelectAs("p."+c.required(schema.ProblemCourse), "course_id")
	c.selectOptional(q, "p", schema.ProblemTitle, "title", qb.EmptyString)
	c.selectOptional(q, "p", schema.ProblemStatement, "statement", qb.EmptyString)
	c.selectOptional(q, "p", schema.ProblemDifficulty, "difficulty", qb.EmptyString)
	c.selectOptional(q, "p", schema.ProblemPoints, "points", qb.Null)
	c.selectOptional(q, "p", schema.ProblemCreatedAt, "created_at", qb.Null)
	if withSamples {
		c.selectOptional(q, "p", schema.ProblemSampleInput, "sample_input", qb.EmptyString)
		c.selectOptional(q, "p", schema.ProblemSampleOutput, "sample_output", qb.EmptyString)
	}

	courseID, joinCourses := c.optional(schema.CourseID)
	q.JoinIf(joinCourses, "LEFT", schema.TableCourses, "c", "c."+courseID, "p."+c.required(schema.ProblemCourse))
	code, hasCode := c.optional(schema.CourseCode)
	q.SelectOptional("c", code, joinCourses && hasCode, "course_code", qb.EmptyString)

	return q.Filter(qb.InSubquery("p."+c.required(schema.ProblemCourse), teacherCourseIDs(c, teacherID)))
}

func (r *problemRepository) filtered(c *columns, teacherID uint, filter ProblemFilter) *qb.Query {
	q := r.baseQuery(c, teacherID, false)
	q.FilterIf(filter.CourseID > 0, qb.F("p."+c.required(schema.ProblemCourse), "=", qb.Uint(filter.CourseID)))
	q.Filter(searchAny(filter.Search,
		optionalRef(c, "p", schema.ProblemTitle),
		optionalRef(c, "p", schema.ProblemStatement),
	))
	return q
}

func (r *problemRepository) List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter ProblemFilter) ([]models.ProblemView, int64, error) {
	c := newColumns(caps)
	count := r.filtered(c, teacherID, filter).Count()
	q := r.filtered(c, teacherID, filter).
		OrderBy("p."+c.required(schema.ProblemID), "DESC").
		Page(filter.Page)
	if err := c.err(); err != nil {
		return nil, 0, err
	}

	countStmt, err := build(count)
	if err != nil {
		return nil, 0, err
	}
	total, err := scanCount(ctx, r.db, countStmt)
	if err != nil {
		return nil, 0, err
	}

	stmt, err := build(q)
	if err != nil {
		return nil, 0, err
	}
	rows, err := scanRows(ctx, r.db, stmt)
	if err != nil {
		return nil, 0, err
	}

	problems := make([]models.ProblemView, 0, len(rows))
	for _, row := range rows {
		problems = append(problems, problemFromRow(row))
	}
	return problems, total, nil
}

func (r *problemRepository) Get(ctx context.Context, teacherID uint, caps schema.Capabilities, problemID uint) (models.ProblemView, error) {
	c := newColumns(caps)
	q := r.baseQuery(c, teacherID, true).
		Filter(qb.F("p."+c.required(schema.ProblemID), "=", qb.Uint(problemID))).
		Limit(1)
	if err := c.err(); err != nil {
		return models.ProblemView{}, err
	}
	stmt, err := build(q)
	if err != nil {
		return models.ProblemView{}, err
	}
	rows, err := scanRows(ctx, r.db, stmt)
	if err != nil {
		return models.ProblemView{}, err
	}
	if len(rows) == 0 {
		return models.ProblemView{}, gorm.ErrRecordNotFound
	}
	return problemFromRow(rows[0]), nil
}

func problemFromRow(row normalize.Row) models.ProblemView {
	return models.ProblemView{
		ID:           row.Uint("id"),
		CourseID:     row.Uint("course_id"),
		CourseCode:   row.String("course_code"),
		Title:        row.String("title"),
		Statement:    row.String("statement"),
		Difficulty:   row.String("difficulty"),
		Points:       row.OptionalFloat("points"),
		SampleInput:  row.String("sample_input"),
		SampleOutput: row.String("sample_output"),
		CreatedAt:    row.OptionalTime("created_at"),
	}
}

func (r *problemRepository) Count(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error) {
	c := newColumns(caps)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableProblems, "p").
		Filter(qb.InSubquery("p."+c.required(schema.ProblemCourse), teacherCourseIDs(c, teacherID))).
		Count()
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return scanCount(ctx, r.db, stmt)
}

func (r *problemRepository) OwnsCourse(ctx context.Context, teacherID uint, caps schema.Capabilities, courseID uint) (bool, error) {
	c := newColumns(caps)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableSections, "sec").
		Filter(qb.F("sec."+c.required(schema.SectionCourse), "=", qb.Uint(courseID))).
		Filter(qb.F("sec."+c.required(schema.SectionTeacher), "=", qb.Uint(teacherID))).
		Count()
	if err := c.err(); err != nil {
		return false, err
	}
	stmt, err := build(q)
	if err != nil {
		return false, err
	}
	n, err := scanCount(ctx, r.db, stmt)
	return n > 0, err
}

func (r *problemRepository) Create(ctx context.Context, caps schema.Capabilities, problem NewProblem) (uint, error) {
	c := newColumns(caps)
	q := qb.Insert(schema.TableProblems).WithSchema(caps.AllowList()).
		Set(c.required(schema.ProblemCourse), qb.Uint(problem.CourseID)).
		Returning(c.required(schema.ProblemID))

	texts := []struct {
		field schema.Field
		value string
	}{
		{schema.ProblemTitle, problem.Title},
		{schema.ProblemStatement, problem.Statement},
		{schema.ProblemDifficulty, problem.Difficulty},
		{schema.ProblemSampleInput, problem.SampleInput},
		{schema.ProblemSampleOutput, problem.SampleOutput},
	}
	for _, t := range texts {
		if column, ok := c.optional(t.field); ok {
			q.Set(column, qb.String(t.value))
		}
	}
	if points, ok := c.optional(schema.ProblemPoints); ok && problem.Points != nil {
		q.Set(points, qb.Float(*problem.Points))
	}
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return insertReturningID(ctx, r.db, stmt)
}

func (r *problemRepository) Delete(ctx context.Context, teacherID uint, caps schema.Capabilities, problemID uint) (int64, error) {
	c := newColumns(caps)
	q := qb.Delete(schema.TableProblems).WithSchema(caps.AllowList()).
		Filter(qb.F(c.required(schema.ProblemID), "=", qb.Uint(problemID))).
		Filter(qb.InSubquery(c.required(schema.ProblemCourse), teacherCourseIDs(c, teacherID)))
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return execStatement(ctx, r.db, stmt)
}
