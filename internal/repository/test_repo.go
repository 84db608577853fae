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

// TestFilter narrows the test listing.
type TestFilter struct {
	SectionID uint
	Page      qb.Page
}

// NewTest carries the values of a test to create.
type NewTest struct {
	SectionID  uint
	Title      string
	Question   string
	TotalMarks *float64
	StartTime  *time.Time
	EndTime    *time.Time
}

// TestRepository reads and writes tests of the teacher's sections together with
// their submissions.
type TestRepository interface {
	List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter TestFilter) ([]models.TestView, int64, error)
	Count(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error)
	GetOwned(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint) (models.TestView, error)
	Create(ctx context.Context, caps schema.Capabilities, test NewTest) (uint, error)
	Delete(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint) (int64, error)
	SetArchive(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint, url string) (int64, error)
	ListSubmissions(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint, page qb.Page) ([]models.TestSubmissionView, int64, error)
	GetSubmission(ctx context.Context, teacherID uint, caps schema.Capabilities, testID, submissionID uint) (models.TestSubmissionView, error)
	MarkSubmissionChecked(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint, check ManualCheck) (int64, error)
}

type testRepository struct {
	db *gorm.DB
}

// NewTestRepository constructs the test repository.
func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) baseQuery(c *columns, teacherID uint) *qb.Query {
	q := qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableTests, "t").
		Join("INNER", schema.TableSections, "sec", "sec."+c.required(schema.SectionID), "t."+c.required(schema.TestSection)).
		SelectAs("t."+c.required(schema.TestID), "id").
		SelectAs("t."+c.required(schema.TestSection), "section_id")
	c.selectOptional(q, "sec", schema.SectionLabel, "section_label", qb.EmptyString)
	c.selectOptional(q, "t", schema.TestTitle, "title", qb.EmptyString)
	c.selectOptional(q, "t", schema.TestQuestion, "question", qb.EmptyString)
	c.selectOptional(q, "t", schema.TestTotalMarks, "total_marks", qb.Null)
	c.selectOptional(q, "t", schema.TestStart, "start_time", qb.Null)
	c.selectOptional(q, "t", schema.TestEnd, "end_time", qb.Null)
	c.selectOptional(q, "t", schema.TestArchive, "archive_url", qb.EmptyString)
	return q.Filter(qb.F("sec."+c.required(schema.SectionTeacher), "=", qb.Uint(teacherID)))
}

func (r *testRepository) List(ctx context.Context, teacherID uint, caps schema.Capabilities, filter TestFilter) ([]models.TestView, int64, error) {
	c := newColumns(caps)
	filtered := func() *qb.Query {
		q := r.baseQuery(c, teacherID)
		return q.FilterIf(filter.SectionID > 0, qb.F("t."+c.required(schema.TestSection), "=", qb.Uint(filter.SectionID)))
	}
	count := filtered().Count()
	q := filtered()
	if start := optionalRef(c, "t", schema.TestStart); start != "" {
		q.OrderBy(start, "DESC")
	}
	q.OrderBy("t."+c.required(schema.TestID), "DESC").Page(filter.Page)
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
	tests := make([]models.TestView, 0, len(rows))
	for _, row := range rows {
		tests = append(tests, testFromRow(row))
	}
	return tests, total, nil
}

func testFromRow(row normalize.Row) models.TestView {
	return models.TestView{
		ID:           row.Uint("id"),
		SectionID:    row.Uint("section_id"),
		SectionLabel: row.String("section_label"),
		Title:        row.String("title"),
		Question:     row.String("question"),
		TotalMarks:   row.OptionalFloat("total_marks"),
		StartTime:    row.OptionalTime("start_time"),
		EndTime:      row.OptionalTime("end_time"),
		ArchiveURL:   row.String("archive_url"),
	}
}

func (r *testRepository) Count(ctx context.Context, teacherID uint, caps schema.Capabilities) (int64, error) {
	c := newColumns(caps)
	q := qb.New().WithSchema(caps.AllowList()).
		From(schema.TableTests, "t").
		Filter(qb.InSubquery("t."+c.required(schema.TestSection), teacherSectionIDs(c, teacherID))).
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

func (r *testRepository) GetOwned(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint) (models.TestView, error) {
	c := newColumns(caps)
	q := r.baseQuery(c, teacherID).
		Filter(qb.F("t."+c.required(schema.TestID), "=", qb.Uint(testID))).
		Limit(1)
	if err := c.err(); err != nil {
		return models.TestView{}, err
	}
	stmt, err := build(q)
	if err != nil {
		return models.TestView{}, err
	}
	rows, err := scanRows(ctx, r.db, stmt)
	if err != nil {
		return models.TestView{}, err
	}
	if len(rows) == 0 {
		return models.TestView{}, gorm.ErrRecordNotFound
	}
	return testFromRow(rows[0]), nil
}

func (r *testRepository) Create(ctx context.Context, caps schema.Capabilities, test NewTest) (uint, error) {
	c := newColumns(caps)
	q := qb.Insert(schema.TableTests).WithSchema(caps.AllowList()).
		Set(c.required(schema.TestSection), qb.Uint(test.SectionID)).
		Returning(c.required(schema.TestID))
	if title, ok := c.optional(schema.TestTitle); ok {
		q.Set(title, qb.String(test.Title))
	}
	if question, ok := c.optional(schema.TestQuestion); ok {
		q.Set(question, qb.String(test.Question))
	}
	if marks, ok := c.optional(schema.TestTotalMarks); ok && test.TotalMarks != nil {
		q.Set(marks, qb.Float(*test.TotalMarks))
	}
	if start, ok := c.optional(schema.TestStart); ok && test.StartTime != nil {
		q.Set(start, qb.Time(*test.StartTime))
	}
	if end, ok := c.optional(schema.TestEnd); ok && test.EndTime != nil {
		q.Set(end, qb.Time(*test.EndTime))
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

func (r *testRepository) Delete(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint) (int64, error) {
	c := newColumns(caps)
	q := qb.Delete(schema.TableTests).WithSchema(caps.AllowList()).
		Filter(qb.F(c.required(schema.TestID), "=", qb.Uint(testID))).
		Filter(qb.InSubquery(c.required(schema.TestSection), teacherSectionIDs(c, teacherID)))
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return execStatement(ctx, r.db, stmt)
}

func (r *testRepository) SetArchive(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint, url string) (int64, error) {
	c := newColumns(caps)
	q := qb.Update(schema.TableTests).WithSchema(caps.AllowList()).
		Set(c.required(schema.TestArchive), qb.String(url)).
		Filter(qb.F(c.required(schema.TestID), "=", qb.Uint(testID))).
		Filter(qb.InSubquery(c.required(schema.TestSection), teacherSectionIDs(c, teacherID)))
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return execStatement(ctx, r.db, stmt)
}

func (r *testRepository) submissionQuery(c *columns, teacherID, testID uint) *qb.Query {
	q := qb.New().WithSchema(c.caps.AllowList()).
		From(schema.TableTestSubmissions, "ts").
		SelectAs("ts."+c.required(schema.TestSubmissionID), "id").
		SelectAs("ts."+c.required(schema.TestSubmissionTest), "test_id")
	c.selectOptional(q, "ts", schema.TestSubmissionUser, "user_id", qb.Null)
	c.selectOptional(q, "ts", schema.TestSubmissionTime, "submitted_at", qb.Null)
	c.selectOptional(q, "ts", schema.TestSubmissionAnswer, "answer", qb.EmptyString)
	c.selectOptional(q, "ts", schema.TestSubmissionMarks, "marks", qb.Null)
	c.selectOptional(q, "ts", schema.TestSubmissionStatus, "status", qb.EmptyString)
	c.selectOptional(q, "ts", schema.TestSubmissionVerdict, "verdict", qb.EmptyString)
	c.selectOptional(q, "ts", schema.TestSubmissionMessage, "judge_message", qb.EmptyString)
	c.selectOptional(q, "ts", schema.TestSubmissionSource, "source_code", qb.EmptyString)
	c.selectOptional(q, "ts", schema.TestSubmissionLanguage, "language", qb.EmptyString)
	c.selectOptional(q, "ts", schema.TestSubmissionCheckedAt, "checked_at", qb.Null)

	userCol, hasUser := c.optional(schema.TestSubmissionUser)
	userID, hasUsers := c.optional(schema.UserID)
	joinUsers := hasUser && hasUsers
	q.JoinIf(joinUsers, "LEFT", schema.TableUsers, "u", "u."+userID, "ts."+userCol)
	name, hasName := c.optional(schema.UserName)
	q.SelectOptional("u", name, joinUsers && hasName, "user_name", qb.EmptyString)

	return q.
		Filter(qb.F("ts."+c.required(schema.TestSubmissionTest), "=", qb.Uint(testID))).
		Filter(qb.InSubquery("ts."+c.required(schema.TestSubmissionTest), teacherTestIDs(c, teacherID)))
}

func (r *testRepository) ListSubmissions(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint, page qb.Page) ([]models.TestSubmissionView, int64, error) {
	c := newColumns(caps)
	count := r.submissionQuery(c, teacherID, testID).Count()
	q := r.submissionQuery(c, teacherID, testID)
	if ts := optionalRef(c, "ts", schema.TestSubmissionTime); ts != "" {
		q.OrderBy(ts, "DESC")
	}
	q.OrderBy("ts."+c.required(schema.TestSubmissionID), "DESC").Page(page)
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
	submissions := make([]models.TestSubmissionView, 0, len(rows))
	for _, row := range rows {
		submissions = append(submissions, testSubmissionFromRow(row))
	}
	return submissions, total, nil
}

func testSubmissionFromRow(row normalize.Row) models.TestSubmissionView {
	return models.TestSubmissionView{
		ID:           row.Uint("id"),
		TestID:       row.Uint("test_id"),
		UserID:       row.Uint("user_id"),
		UserName:     row.String("user_name"),
		SubmittedAt:  row.OptionalTime("submitted_at"),
		Answer:       row.String("answer"),
		Marks:        row.OptionalFloat("marks"),
		Status:       row.String("status"),
		Verdict:      row.String("verdict"),
		JudgeMessage: row.String("judge_message"),
		SourceCode:   row.String("source_code"),
		Language:     row.String("language"),
		CheckedAt:    row.OptionalTime("checked_at"),
	}
}

func (r *testRepository) GetSubmission(ctx context.Context, teacherID uint, caps schema.Capabilities, testID, submissionID uint) (models.TestSubmissionView, error) {
	c := newColumns(caps)
	q := r.submissionQuery(c, teacherID, testID).
		Filter(qb.F("ts."+c.required(schema.TestSubmissionID), "=", qb.Uint(submissionID))).
		Limit(1)
	if err := c.err(); err != nil {
		return models.TestSubmissionView{}, err
	}
	stmt, err := build(q)
	if err != nil {
		return models.TestSubmissionView{}, err
	}
	rows, err := scanRows(ctx, r.db, stmt)
	if err != nil {
		return models.TestSubmissionView{}, err
	}
	if len(rows) == 0 {
		return models.TestSubmissionView{}, gorm.ErrRecordNotFound
	}
	return testSubmissionFromRow(rows[0]), nil
}

// MarkSubmissionChecked grades a test submission. Marks are stored when the column
// exists; status and checked_at likewise. At least one of marks or status is needed.
func (r *testRepository) MarkSubmissionChecked(ctx context.Context, teacherID uint, caps schema.Capabilities, testID uint, check ManualCheck) (int64, error) {
	c := newColumns(caps)
	q := qb.Update(schema.TableTestSubmissions).WithSchema(caps.AllowList())
	status, hasStatus := c.optional(schema.TestSubmissionStatus)
	marks, hasMarks := c.optional(schema.TestSubmissionMarks)
	if !hasStatus && !hasMarks {
		c.required(schema.TestSubmissionStatus)
	}
	q.SetIf(hasStatus, status, qb.String(models.SubmissionStatusChecked)).
		SetIf(hasMarks, marks, qb.Float(check.Score))
	if checkedAt, ok := c.optional(schema.TestSubmissionCheckedAt); ok {
		q.Set(checkedAt, qb.Time(check.CheckedAt))
	}
	q.Filter(qb.F(c.required(schema.TestSubmissionID), "=", qb.Uint(check.ID))).
		Filter(qb.F(c.required(schema.TestSubmissionTest), "=", qb.Uint(testID))).
		Filter(qb.InSubquery(c.required(schema.TestSubmissionTest), teacherTestIDs(c, teacherID)))
	if err := c.err(); err != nil {
		return 0, err
	}
	stmt, err := build(q)
	if err != nil {
		return 0, err
	}
	return execStatement(ctx, r.db, stmt)
}
