package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/models"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

const (
	teacherID    uint = 7
	otherTeacher uint = 9
)

var teacher = ActivityActor{ID: teacherID, Role: "teacher"}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func openTestDB(t *testing.T, ddl ...string) *gorm.DB {
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

func capabilitiesFor(db *gorm.DB) CapabilityService {
	prober := schema.NewProber(schema.NewSQLCatalog(db, schema.DialectSQLite, ""), testLogger())
	return NewCapabilityService(prober, nil, testLogger())
}

// seedPanel creates the full schema. Teacher 7 owns sections 1 and 2 (courses 1
// and 2) and test 1; teacher 9 owns section 3 (course 3).
func seedPanel(t *testing.T) (*gorm.DB, time.Time) {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(models.All()...))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.Create(&[]models.Course{
		{ID: 1, Code: "CSE101", Title: "Intro to Programming"},
		{ID: 2, Code: "CSE220", Title: "Data Structures"},
		{ID: 3, Code: "CSE330", Title: "Numerical Methods"},
	}).Error)
	require.NoError(t, db.Create(&[]models.Section{
		{ID: 1, CourseID: 1, TeacherID: teacherID, Label: "A1", Trimester: "0", Year: 2024},
		{ID: 2, CourseID: 2, TeacherID: teacherID, Label: "B2", Trimester: "spring", Year: 2025},
		{ID: 3, CourseID: 3, TeacherID: otherTeacher, Label: "C3", Trimester: "3", Year: 2024},
	}).Error)
	require.NoError(t, db.Create(&[]models.User{
		{ID: 100, Name: "Alice Rahman"},
		{ID: 101, Name: "Bob Karim"},
	}).Error)
	require.NoError(t, db.Create(&[]models.Problem{
		{ID: 1, CourseID: 1, Title: "Two Sum", Statement: "Return indices of two numbers.", Points: 10},
		{ID: 2, CourseID: 2, Title: "Tree Height", Points: 0},
		{ID: 3, CourseID: 3, Title: "Bisection", Points: 5},
	}).Error)
	require.NoError(t, db.Create(&[]models.Submission{
		{ID: 1, ProblemID: 1, UserID: 100, SubmittedAt: now.Add(-time.Hour), Status: "Pending", Verdict: "AC"},
		{ID: 2, ProblemID: 1, UserID: 101, SubmittedAt: now.Add(-2 * time.Hour), Status: "Pending", Verdict: "WA"},
		{ID: 3, ProblemID: 2, UserID: 100, SubmittedAt: now.Add(-10 * 24 * time.Hour), Status: "Checked", Verdict: "weird", Score: pointer.Float64(15)},
		{ID: 4, ProblemID: 3, UserID: 101, SubmittedAt: now.Add(-time.Hour), Status: "Pending", Verdict: "AC"},
	}).Error)
	require.NoError(t, db.Create(&[]models.Test{
		{ID: 1, SectionID: 1, Title: "Midterm", TotalMarks: 20},
		{ID: 2, SectionID: 3, Title: "Quiz", TotalMarks: 10},
	}).Error)
	require.NoError(t, db.Create(&[]models.TestSubmission{
		{ID: 1, TestID: 1, UserID: 100, SubmittedAt: now.Add(-time.Hour), Answer: "42", Status: "Pending"},
		{ID: 2, TestID: 2, UserID: 101, SubmittedAt: now.Add(-time.Hour), Answer: "7", Status: "Pending"},
	}).Error)
	return db, now
}

type recordedActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (r *recordedActivity) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{Action: entry.Action}, nil
}

func (r *recordedActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type recordedEvents struct {
	mu     sync.Mutex
	events []CheckedEvent
}

func (r *recordedEvents) PublishChecked(ctx context.Context, event CheckedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

var testBounds = qb.DefaultBounds
