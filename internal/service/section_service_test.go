package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
)

func newSectionServiceForTest(t *testing.T) (SectionService, *recordedActivity, func(id uint) (string, string)) {
	t.Helper()
	db, _ := seedPanel(t)
	activity := &recordedActivity{}
	svc := NewSectionService(
		repository.NewSectionRepository(db),
		capabilitiesFor(db),
		SectionServiceConfig{Trimesters: normalize.NewTrimesterMapper(nil), Bounds: testBounds},
		testValidator(),
		activity,
		testLogger(),
	)
	lookup := func(id uint) (string, string) {
		var row struct {
			Label     string
			Trimester string
		}
		require.NoError(t, db.Raw("SELECT label, trimester FROM sections WHERE id = ?", id).Scan(&row).Error)
		return row.Label, row.Trimester
	}
	return svc, activity, lookup
}

func TestSectionServiceListCanonicalisesTrimesterAndClampsPage(t *testing.T) {
	svc, _, _ := newSectionServiceForTest(t)
	ctx := context.Background()

	list, err := svc.List(ctx, teacherID, dto.SectionListQuery{PerPage: 3})
	require.NoError(t, err)
	require.Equal(t, 5, list.Pagination.PageSize)
	require.Equal(t, int64(2), list.Pagination.TotalItems)
	require.Len(t, list.Items, 2)
	require.Equal(t, []string{"Spring", "Summer", "Fall"}, list.Trimesters)

	byLabel := map[string]string{}
	for _, item := range list.Items {
		byLabel[item.Label] = item.Trimester
	}
	require.Equal(t, "Fall", byLabel["A1"])
	require.Equal(t, "Spring", byLabel["B2"])

	list, err = svc.List(ctx, teacherID, dto.SectionListQuery{Trimester: "fall", PerPage: 1000})
	require.NoError(t, err)
	require.Equal(t, 50, list.Pagination.PageSize)
	require.Len(t, list.Items, 1)
	require.Equal(t, "A1", list.Items[0].Label)

	list, err = svc.List(ctx, teacherID, dto.SectionListQuery{Trimester: "1"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, "B2", list.Items[0].Label)
}

func TestSectionServiceAddSanitisesAndRecords(t *testing.T) {
	svc, activity, lookup := newSectionServiceForTest(t)

	result, err := svc.Apply(context.Background(), teacher, dto.SectionActionRequest{
		Action:    "add",
		CourseID:  3,
		Label:     "<b>D4</b>",
		Trimester: "summer",
		Year:      2025,
	})
	require.NoError(t, err)
	require.NotZero(t, result.SectionID)

	label, trimester := lookup(result.SectionID)
	require.Equal(t, "D4", label)
	require.Equal(t, "Summer", trimester)
	require.Equal(t, []string{"section.created"}, activity.actions())
}

func TestSectionServiceAddRejectsInvalidInput(t *testing.T) {
	svc, activity, _ := newSectionServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "add", CourseID: 1, Label: "X", Trimester: "Winter"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "add", CourseID: 99, Label: "X"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "add", CourseID: 1})
	require.Error(t, err)

	_, err = svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "archive"})
	require.Error(t, err)
	require.Empty(t, activity.actions())
}

func TestSectionServiceRemoveRequiresOwnership(t *testing.T) {
	svc, activity, _ := newSectionServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "remove", SectionID: 3})
	require.ErrorIs(t, err, ErrNotOwned)

	result, err := svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "remove", SectionID: 2})
	require.NoError(t, err)
	require.Equal(t, uint(2), result.SectionID)
	require.Equal(t, []string{"section.deleted"}, activity.actions())

	_, err = svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "remove", SectionID: 2})
	require.ErrorIs(t, err, ErrNotOwned)
}

func TestSectionServiceAddWritesNumericTrimesterCode(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE sections (id INTEGER PRIMARY KEY, course_id INTEGER, teacher_id INTEGER, label TEXT, trimester INTEGER, year INTEGER)",
		"INSERT INTO sections (id, course_id, teacher_id, label, trimester, year) VALUES (1, 1, 7, 'A1', 0, 2024)",
	)
	svc := NewSectionService(
		repository.NewSectionRepository(db),
		capabilitiesFor(db),
		SectionServiceConfig{Trimesters: normalize.NewTrimesterMapper(nil), Bounds: testBounds},
		testValidator(),
		&recordedActivity{},
		testLogger(),
	)
	ctx := context.Background()

	result, err := svc.Apply(ctx, teacher, dto.SectionActionRequest{Action: "add", CourseID: 1, Label: "B2", Trimester: " FALL", Year: 2025})
	require.NoError(t, err)

	var code int64
	require.NoError(t, db.Raw("SELECT trimester FROM sections WHERE id = ?", result.SectionID).Scan(&code).Error)
	require.Equal(t, int64(3), code)

	list, err := svc.List(ctx, teacherID, dto.SectionListQuery{Trimester: "fall"})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	for _, item := range list.Items {
		require.Equal(t, "Fall", item.Trimester)
	}
}
