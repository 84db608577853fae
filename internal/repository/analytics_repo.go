package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// AnalyticsFilter narrows the verdict aggregation.
type AnalyticsFilter struct {
	Since    *time.Time
	CourseID uint
}

// AnalyticsRepository groups the teacher's submissions by course and raw verdict.
type AnalyticsRepository interface {
	VerdictRows(ctx context.Context, teacherID uint, caps schema.Capabilities, filter AnalyticsFilter) ([]normalize.VerdictRow, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository constructs the analytics repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

// VerdictRows returns one row per (course, stored verdict). Without a verdict
// column every row carries NULL and is later folded into MANUAL.
func (r *analyticsRepository) VerdictRows(ctx context.Context, teacherID uint, caps schema.Capabilities, filter AnalyticsFilter) ([]normalize.VerdictRow, error) {
	c := newColumns(caps)
	course := "p." + c.required(schema.ProblemCourse)

	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableSubmissions, "s").
		Join("INNER", schema.TableProblems, "p", "p."+c.required(schema.ProblemID), "s."+c.required(schema.SubmissionProblem)).
		SelectAs(course, "course_id").
		GroupBy(course)

	courseID, joinCourses := c.optional(schema.CourseID)
	q.JoinIf(joinCourses, "LEFT", schema.TableCourses, "c", "c."+courseID, course)
	for _, f := range []struct {
		field schema.Field
		as    string
	}{{schema.CourseCode, "course_code"}, {schema.CourseTitle, "course_title"}} {
		column, ok := c.optional(f.field)
		present := joinCourses && ok
		q.SelectOptional("c", column, present, f.as, qb.EmptyString)
		if present {
			q.GroupBy("c." + column)
		}
	}

	verdict := optionalRef(c, "s", schema.SubmissionVerdict)
	c.selectOptional(q, "s", schema.SubmissionVerdict, "verdict", qb.Null)
	if verdict != "" {
		q.GroupBy(verdict)
	}
	q.SelectAggregate(qb.CountAll(), "total")

	q.Filter(qb.InSubquery(course, teacherCourseIDs(c, teacherID)))
	if timeRef := optionalRef(c, "s", schema.SubmissionTime); timeRef != "" && filter.Since != nil {
		q.Filter(qb.F(timeRef, ">=", qb.Time(*filter.Since)))
	}
	q.FilterIf(filter.CourseID > 0, qb.F(course, "=", qb.Uint(filter.CourseID)))
	q.OrderBy(course, "ASC")

	if err := c.err(); err != nil {
		return nil, err
	}
	stmt, err := build(q)
	if err != nil {
		return nil, err
	}
	rows, err := scanRows(ctx, r.db, stmt)
	if err != nil {
		return nil, err
	}

	out := make([]normalize.VerdictRow, 0, len(rows))
	for _, row := range rows {
		id := row.Uint("course_id")
		label := row.String("course_code")
		if label == "" {
			label = row.String("course_title")
		}
		if label == "" {
			label = fmt.Sprintf("Course #%d", id)
		}
		out = append(out, normalize.VerdictRow{
			Key:     fmt.Sprintf("%d", id),
			Label:   label,
			Verdict: row["verdict"],
			Count:   row.Int64("total"),
		})
	}
	return out, nil
}
