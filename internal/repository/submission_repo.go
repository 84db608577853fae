package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

// SubmissionFilter narrows the review listing.
type SubmissionFilter struct {
	Since     *time.Time
	CourseID  uint
	ProblemID uint
	Status    string
	Search    string
	Page      qb.Page
}

// ManualCheck records a teacher's grade for a submission.
type ManualCheck struct {
	ID        uint
	Score     float64
	CheckedAt time.Time
	CheckedBy uint
}

// SubmissionRepository reads submissions to the teacher's problems and records
// manual checks.
type SubmissionRepository interface {
	List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter SubmissionFilter) ([]models.SubmissionView, int64, error)
	Count(ctx context.Context, teacherID uint, caps schema.Capabilities, since *time.Time) (int64, error)
	CountPending(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error)
	GetOwned(ctx context.Context, teacherID uint, caps schema.Capabilities, submissionID uint) (models.SubmissionView, error)
	MarkChecked(ctx context.Context, teacherID uint, caps schema.Capabilities, check ManualCheck) (int64, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository constructs the submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// pendingStatuses are the stored spellings of "awaiting manual check".
var pendingStatuses = []string{"Pending", "pending", "PENDING", "Manual", "manual", "MANUAL"}

func (r *submissionRepository) baseQuery(c *columns, teacherID uint) *qb.Query {
	problemID := c.required(schema.ProblemID)
	q := qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableSubmissions, "s").
		Join("INNER", schema.TableProblems, "p", "p."+problemID, "s."+c.required(schema.SubmissionProblem)).
		SelectAs("s."+c.required(schema.SubmissionID), "id").
		SelectAs("s."+c.required(schema.SubmissionProblem), "problem_id").
		SelectAs("p."+c.required(schema.ProblemCourse), "course_id")
	c.selectOptional(q, "p", schema.ProblemTitle, "problem_title", qb.EmptyString)
	c.selectOptional(q, "p", schema.ProblemPoints, "max_score", qb.Null)
	c.selectOptional(q, "s", schema.SubmissionUser, "user_id", qb.Null)
	c.selectOptional(q, "s", schema.SubmissionTime, "submitted_at", qb.Null)
	c.selectOptional(q, "s", schema.SubmissionStatus, "status", qb.EmptyString)
	c.selectOptional(q, "s", schema.SubmissionVerdict, "verdict", qb.EmptyString)
	c.selectOptional(q, "s", schema.SubmissionScore, "score", qb.Null)
	c.selectOptional(q, "s", schema.SubmissionLanguage, "language", qb.EmptyString)
	c.selectOptional(q, "s", schema.SubmissionMessage, "message", qb.EmptyString)
	c.selectOptional(q, "s", schema.SubmissionRuntime, "runtime_ms", qb.Null)
	c.selectOptional(q, "s", schema.SubmissionAnswer, "answer", qb.EmptyString)
	c.selectOptional(q, "s", schema.SubmissionCheckedAt, "checked_at", qb.Null)

	userCol, _ := c.optional(schema.SubmissionUser)
	userID, _ := c.optional(schema.UserID)
	q.JoinIf(joinsUsers(c), "LEFT", schema.TableUsers, "u", "u."+userID, "s."+userCol)
	name, hasName := c.optional(schema.UserName)
	q.SelectOptional("u", name, joinsUsers(c) && hasName, "user_name", qb.EmptyString)

	return q.Filter(qb.InSubquery("p."+c.required(schema.ProblemCourse), teacherCourseIDs(c, teacherID)))
}

// joinsUsers reports whether author names can be joined in.
func joinsUsers(c *columns) bool {
	_, hasUser := c.optional(schema.SubmissionUser)
	_, hasUsers := c.optional(schema.UserID)
	return hasUser && hasUsers
}

func (r *submissionRepository) filtered(c *columns, teacherID uint, filter SubmissionFilter) *qb.Query {
	q := r.baseQuery(c, teacherID)

	if timeRef := optionalRef(c, "s", schema.SubmissionTime); timeRef != "" && filter.Since != nil {
		q.Filter(qb.F(timeRef, ">=", qb.Time(*filter.Since)))
	}
	q.FilterIf(filter.CourseID > 0, qb.F("p."+c.required(schema.ProblemCourse), "=", qb.Uint(filter.CourseID)))
	q.FilterIf(filter.ProblemID > 0, qb.F("s."+c.required(schema.SubmissionProblem), "=", qb.Uint(filter.ProblemID)))
	if status := optionalRef(c, "s", schema.SubmissionStatus); status != "" && filter.Status != "" {
		q.Filter(qb.F(status, "=", qb.String(filter.Status)))
	}

	nameRef := ""
	if joinsUsers(c) {
		nameRef = optionalRef(c, "u", schema.UserName)
	}
	q.Filter(searchAny(filter.Search,
		nameRef,
		optionalRef(c, "p", schema.ProblemTitle),
		optionalRef(c, "s", schema.SubmissionAnswer),
	))
	return q
}

func (r *submissionRepository) List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter SubmissionFilter) ([]models.SubmissionView, int64, error) {
	c := newColumns(caps)
	count := r.filtered(c, teacherID, filter).Count()
	q := r.filtered(c, teacherID, filter)
	if timeRef := optionalRef(c, "s", schema.SubmissionTime); timeRef != "" {
		q.OrderBy(timeRef, "DESC")
	}
	q.OrderBy("s."+c.required(schema.SubmissionID), "DESC").Page(filter.Page)
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

	submissions := make([]models.SubmissionView, 0, len(rows))
	for _, row := range rows {
		submissions = append(submissions, submissionFromRow(row))
	}
	return submissions, total, nil
}

func submissionFromRow(row normalize.Row) models.SubmissionView {
	return models.SubmissionView{
		ID:           row.Uint("id"),
		ProblemID:    row.Uint("problem_id"),
		ProblemTitle: row.String("problem_title"),
		CourseID:     row.Uint("course_id"),
		UserID:       row.Uint("user_id"),
		UserName:     row.String("user_name"),
		SubmittedAt:  row.OptionalTime("submitted_at"),
		Status:       row.String("status"),
		Verdict:      row.String("verdict"),
		Score:        row.OptionalFloat("score"),
		MaxScore:     row.OptionalFloat("max_score"),
		Language:     row.String("language"),
		Message:      row.String("message"),
		RuntimeMs:    row.OptionalFloat("runtime_ms"),
		Answer:       row.String("answer"),
		CheckedAt:    row.OptionalTime("checked_at"),
	}
}

func (r *submissionRepository) Count(ctx context.Context, teacherID uint, caps schema.Capabilities, since *time.Time) (int64, error) {
	c := newColumns(caps)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableSubmissions, "s").
		Filter(qb.InSubquery("s."+c.required(schema.SubmissionProblem), teacherProblemIDs(c, teacherID))).
		Count()
	if timeRef := optionalRef(c, "s", schema.SubmissionTime); timeRef != "" && since != nil {
		q.Filter(qb.F(timeRef, ">=", qb.Time(*since)))
	}
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return scanCount(ctx, r.db, stmt)
}

// CountPending counts submissions awaiting a manual check. Without a status
// column the feature is unavailable.
func (r *submissionRepository) CountPending(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error) {
	c := newColumns(caps)
	status := c.required(schema.SubmissionStatus)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableSubmissions, "s").
		Filter(qb.InSubquery("s."+c.required(schema.SubmissionProblem), teacherProblemIDs(c, teacherID))).
		Filter(qb.In("s."+status, qb.Strings(pendingStatuses...))).
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

func (r *submissionRepository) GetOwned(ctx context.Context, teacherID uint, caps schema.Capabilities, submissionID uint) (models.SubmissionView, error) {
	c := newColumns(caps)
	q := r.baseQuery(c, teacherID).
		Filter(qb.F("s."+c.required(schema.SubmissionID), "=", qb.Uint(submissionID))).
		Limit(1)
	if err := c.err(); err != nil {
		return models.SubmissionView{}, err
	}
	stmt, err := build(q)
	if err != nil {
		return models.SubmissionView{}, err
	}
	rows, err := scanRows(ctx, r.db, stmt)
	if err != nil {
		return models.SubmissionView{}, err
	}
	if len(rows) == 0 {
		return models.SubmissionView{}, gorm.ErrRecordNotFound
	}
	return submissionFromRow(rows[0]), nil
}

// MarkChecked sets status Checked and the score in one statement, guarded by
// ownership. Repeating it rewrites the same row.
func (r *submissionRepository) MarkChecked(ctx context.Context, teacherID uint, caps schema.Capabilities, check ManualCheck) (int64, error) {
	c := newColumns(caps)
	q := qb.Update(schema.TableSubmissions).WithSchema(caps.AllowList()).
		Set(c.required(schema.SubmissionStatus), qb.String(models.SubmissionStatusChecked))
	if score, ok := c.optional(schema.SubmissionScore); ok {
		q.Set(score, qb.Float(check.Score))
	}
	if checkedAt, ok := c.optional(schema.SubmissionCheckedAt); ok {
		q.Set(checkedAt, qb.Time(check.CheckedAt))
	}
	if checkedBy, ok := c.optional(schema.SubmissionCheckedBy); ok && check.CheckedBy > 0 {
		q.Set(checkedBy, qb.Uint(check.CheckedBy))
	}
	q.Filter(qb.F(c.required(schema.SubmissionID), "=", qb.Uint(check.ID))).
		Filter(qb.InSubquery(c.required(schema.SubmissionProblem), teacherProblemIDs(c, teacherID)))
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return execStatement(ctx, r.db, stmt)
}
