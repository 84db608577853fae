package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// SectionFilter narrows the teacher's section listing.
type SectionFilter struct {
	TrimesterValues []string
	Year            int
	CourseID        uint
	Search          string
	Page            qb.Page
}

// NewSection carries the values of a section to create. TrimesterCode is
// written instead of Trimester when the trimester column is numeric.
type NewSection struct {
	CourseID      uint
	Label         string
	Trimester     string
	TrimesterCode *int64
	Year          int
}

// SectionRepository reads and writes sections owned by a teacher.
type SectionRepository interface {
	List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter SectionFilter) ([]models.SectionView, int64, error)
	CountSections(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error)
	CountCourses(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error)
	CourseExists(ctx context.Context, caps schema.Capabilities, courseID uint) (bool, error)
	Owns(ctx context.Context, teacherID uint, caps schema.Capabilities, sectionID uint) (bool, error)
	Create(ctx context.Context, teacherID uint, caps schema.Capabilities, section NewSection) (uint, error)
	Delete(ctx context.Context, teacherID uint, caps schema.Capabilities, sectionID uint) (int64, error)
}

type sectionRepository struct {
	db *gorm.DB
}

// NewSectionRepository constructs the section repository.
func NewSectionRepository(db *gorm.DB) SectionRepository {
	return &sectionRepository{db: db}
}

func (r *sectionRepository) listQuery(c *columns, teacherID uint, filter SectionFilter) *qb.Query {
	q := qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableSections, "sec").
		SelectAs("sec."+c.required(schema.SectionID), "id").
		SelectAs("sec."+c.required(schema.SectionCourse), "course_id")
	c.selectOptional(q, "sec", schema.SectionLabel, "label", qb.EmptyString)
	c.selectOptional(q, "sec", schema.SectionTrimester, "trimester", qb.EmptyString)
	c.selectOptional(q, "sec", schema.SectionYear, "year", qb.Null)

	courseID, joinCourses := c.optional(schema.CourseID)
	q.JoinIf(joinCourses, "LEFT", schema.TableCourses, "c", "c."+courseID, "sec."+c.required(schema.SectionCourse))
	codeRef, titleRef := "", ""
	if joinCourses {
		c.selectOptional(q, "c", schema.CourseCode, "course_code", qb.EmptyString)
		c.selectOptional(q, "c", schema.CourseTitle, "course_title", qb.EmptyString)
		codeRef = optionalRef(c, "c", schema.CourseCode)
		titleRef = optionalRef(c, "c", schema.CourseTitle)
	} else {
		q.SelectOptional("c", "", false, "course_code", qb.EmptyString)
		q.SelectOptional("c", "", false, "course_title", qb.EmptyString)
	}

	q.Filter(qb.F("sec."+c.required(schema.SectionTeacher), "=", qb.Uint(teacherID)))

	trimester := optionalRef(c, "sec", schema.SectionTrimester)
	q.FilterIf(trimester != "" && len(filter.TrimesterValues) > 0, qb.InFolded(trimester, filter.TrimesterValues))
	year := optionalRef(c, "sec", schema.SectionYear)
	q.FilterIf(year != "" && filter.Year > 0, qb.F(year, "=", qb.Int(int64(filter.Year))))
	q.FilterIf(filter.CourseID > 0, qb.F("sec."+c.required(schema.SectionCourse), "=", qb.Uint(filter.CourseID)))
	q.Filter(searchAny(filter.Search, optionalRef(c, "sec", schema.SectionLabel), codeRef, titleRef))
	return q
}

func (r *sectionRepository) List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter SectionFilter) ([]models.SectionView, int64, error) {
	c := newColumns(caps)
	count := r.listQuery(c, teacherID, filter).Count()
	q := r.listQuery(c, teacherID, filter)
	if year := optionalRef(c, "sec", schema.SectionYear); year != "" {
		q.OrderBy(year, "DESC")
	}
	q.OrderBy("sec."+c.required(schema.SectionID), "DESC").Page(filter.Page)
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

	sections := make([]models.SectionView, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, sectionFromRow(row))
	}
	return sections, total, nil
}

func sectionFromRow(row normalize.Row) models.SectionView {
	return models.SectionView{
		ID:          row.Uint("id"),
		CourseID:    row.Uint("course_id"),
		CourseCode:  row.String("course_code"),
		CourseTitle: row.String("course_title"),
		Label:       row.String("label"),
		Trimester:   row.String("trimester"),
		Year:        row.Int64("year"),
	}
}

func (r *sectionRepository) CountSections(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error) {
	c := newColumns(caps)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableSections, "sec").
		Filter(qb.F("sec."+c.required(schema.SectionTeacher), "=", qb.Uint(teacherID))).
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

func (r *sectionRepository) CountCourses(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error) {
	c := newColumns(caps)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableSections, "sec").
		SelectAggregate(qb.CountDistinctOf("sec."+c.required(schema.SectionCourse)), "total").
		Filter(qb.F("sec."+c.required(schema.SectionTeacher), "=", qb.Uint(teacherID)))
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return scanCount(ctx, r.db, stmt)
}

func (r *sectionRepository) CourseExists(ctx context.Context, caps schema.Capabilities, courseID uint) (bool, error) {
	id, ok := caps.Column(schema.CourseID)
	if !ok {
		// Without a courses table the reference cannot be checked.
		return true, nil
	}
	stmt, err := build(qb.New().WithSchema(caps.AllowList()).
		From(schema.TableCourses, "c").
		Filter(qb.F("c."+id, "=", qb.Uint(courseID))).
		Count())
	if err != nil {
		return false, err
	}
	n, err := scanCount(ctx, r.db, stmt)
	return n > 0, err
}

func (r *sectionRepository) Owns(ctx context.Context, teacherID uint, caps schema.Capabilities, sectionID uint) (bool, error) {
	c := newColumns(caps)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableSections, "sec").
		Filter(qb.F("sec."+c.required(schema.SectionID), "=", qb.Uint(sectionID))).
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

func (r *sectionRepository) Create(ctx context.Context, teacherID uint, caps schema.Capabilities, section NewSection) (uint, error) {
	c := newColumns(caps)
	q := qb.Insert(schema.TableSections).WithSchema(caps.AllowList()).
		Set(c.required(schema.SectionTeacher), qb.Uint(teacherID)).
		Set(c.required(schema.SectionCourse), qb.Uint(section.CourseID)).
		Returning(c.required(schema.SectionID))
	if label, ok := c.optional(schema.SectionLabel); ok {
		q.Set(label, qb.String(section.Label))
	}
	if trimester, ok := c.optional(schema.SectionTrimester); ok {
		switch {
		case caps.Numeric(schema.SectionTrimester):
			if section.TrimesterCode != nil {
				q.Set(trimester, qb.Int(*section.TrimesterCode))
			}
		case section.Trimester != "":
			q.Set(trimester, qb.String(section.Trimester))
		}
	}
	if year, ok := c.optional(schema.SectionYear); ok && section.Year > 0 {
		q.Set(year, qb.Int(int64(section.Year)))
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

func (r *sectionRepository) Delete(ctx context.Context, teacherID uint, caps schema.Capabilities, sectionID uint) (int64, error) {
	c := newColumns(caps)
	q := qb.Delete(schema.TableSections).WithSchema(caps.AllowList()).
		Filter(qb.F(c.required(schema.SectionID), "=", qb.Uint(sectionID))).
		Filter(qb.F(c.required(schema.SectionTeacher), "=", qb.Uint(teacherID)))
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return execStatement(ctx, r.db, stmt)
}
