package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
)

type storageStub struct {
	name     string
	uploaded bytes.Buffer
	err      error
}

func (s *storageStub) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.name = name
	s.uploaded.Reset()
	if _, err := s.uploaded.ReadFrom(reader); err != nil {
		return "", err
	}
	return "https://cdn.example.com/" + name, nil
}

func newArchiveServiceForTest(db *gorm.DB, storage FileStorage, maxBytes int64) (ArchiveService, *recordedActivity) {
	activity := &recordedActivity{}
	svc := NewArchiveService(repository.NewTestRepository(db), capabilitiesFor(db), storage, activity, maxBytes, testLogger())
	return svc, activity
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	for name, content := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"archive\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["archive"]
	require.Len(t, files, 1)
	return files[0]
}

func TestArchiveServiceStoresValidArchive(t *testing.T) {
	db, _ := seedPanel(t)
	storage := &storageStub{}
	svc, activity := newArchiveServiceForTest(db, storage, 1<<20)

	payload := buildZip(t, map[string]string{
		"cases/1.in":  "1 2\n",
		"cases/1.out": "3\n",
	})
	resp, err := svc.Store(context.Background(), teacher, 1, buildFileHeader(t, "Hidden Cases.zip", payload))
	require.NoError(t, err)

	require.Equal(t, "test-1-hidden-cases.zip", resp.FileName)
	require.Equal(t, "test-1-hidden-cases.zip", storage.name)
	require.Equal(t, payload, storage.uploaded.Bytes())
	require.Equal(t, 2, resp.Entries)
	require.Len(t, resp.Checksum, 64)
	require.True(t, resp.Persisted)

	var stored models.Test
	require.NoError(t, db.First(&stored, 1).Error)
	require.Equal(t, resp.URL, stored.HiddenArchiveURL)
	require.Equal(t, []string{"test.archive_uploaded"}, activity.actions())
}

func TestArchiveServiceRejectsInvalidPayloads(t *testing.T) {
	db, _ := seedPanel(t)
	svc, activity := newArchiveServiceForTest(db, &storageStub{}, 1<<20)
	ctx := context.Background()

	cases := []struct {
		name    string
		payload []byte
		want    error
	}{
		{name: "plain text", payload: []byte("definitely not a zip"), want: ErrArchiveType},
		{name: "parent traversal", payload: buildZip(t, map[string]string{"../escape.txt": "x"}), want: ErrArchiveInvalid},
		{name: "absolute path", payload: buildZip(t, map[string]string{"/etc/passwd": "x"}), want: ErrArchiveInvalid},
		{name: "only directories", payload: buildZip(t, map[string]string{"cases/": ""}), want: ErrArchiveInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Store(ctx, teacher, 1, buildFileHeader(t, "cases.zip", tc.payload))
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, activity.actions())
}

func TestArchiveServiceEnforcesLimitsAndOwnership(t *testing.T) {
	db, _ := seedPanel(t)
	ctx := context.Background()
	payload := buildZip(t, map[string]string{"1.in": "1\n"})

	small, _ := newArchiveServiceForTest(db, &storageStub{}, 16)
	_, err := small.Store(ctx, teacher, 1, buildFileHeader(t, "cases.zip", payload))
	require.ErrorIs(t, err, ErrArchiveTooLarge)

	svc, _ := newArchiveServiceForTest(db, &storageStub{}, 1<<20)
	_, err = svc.Store(ctx, teacher, 2, buildFileHeader(t, "cases.zip", payload))
	require.ErrorIs(t, err, ErrNotOwned)

	_, err = svc.Store(ctx, teacher, 1, nil)
	require.ErrorIs(t, err, ErrArchiveMissing)

	unconfigured, _ := newArchiveServiceForTest(db, nil, 1<<20)
	_, err = unconfigured.Store(ctx, teacher, 1, buildFileHeader(t, "cases.zip", payload))
	require.ErrorIs(t, err, ErrFeatureUnavailable)

	failing, _ := newArchiveServiceForTest(db, &storageStub{err: errors.New("cdn down")}, 1<<20)
	_, err = failing.Store(ctx, teacher, 1, buildFileHeader(t, "cases.zip", payload))
	require.EqualError(t, err, "cdn down")
}

func TestArchiveServiceWithoutArchiveColumn(t *testing.T) {
	db := openTestDB(t,
		"CREATE TABLE sections (id INTEGER PRIMARY KEY, course_id INTEGER, teacher_id INTEGER)",
		"CREATE TABLE tests (id INTEGER PRIMARY KEY, section_id INTEGER, title TEXT)",
		"INSERT INTO sections (id, course_id, teacher_id) VALUES (1, 1, 7)",
		"INSERT INTO tests (id, section_id, title) VALUES (1, 1, 'Lab')",
	)
	storage := &storageStub{}
	svc, _ := newArchiveServiceForTest(db, storage, 1<<20)

	resp, err := svc.Store(context.Background(), teacher, 1, buildFileHeader(t, "lab.zip", buildZip(t, map[string]string{"a.in": "1"})))
	require.NoError(t, err)
	require.False(t, resp.Persisted)
	require.NotEmpty(t, resp.URL)
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "week-3_cases.zip", sanitizeFileName("Week 3_cases.ZIP"))
	require.Equal(t, "cases.zip", sanitizeFileName("../...zip"))
	require.Equal(t, "passwd.zip", sanitizeFileName("/etc/passwd"))
}
