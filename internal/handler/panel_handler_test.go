package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-teacher-panel/internal/config"
	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/handler"
	"github.com/noah-isme/gema-teacher-panel/internal/middleware"
	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
	qb "github.com/noah-isme/gema-teacher-panel/internal/querybuilder"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
	"github.com/noah-isme/gema-teacher-panel/internal/service"
)

const panelPrefix = "/api/v1/teacher"

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Details map[string]string `json:"details"`
	Message string            `json:"message"`
}

func panelApp(register func(group fiber.Router)) *fiber.App {
	app := fiber.New()
	group := app.Group(panelPrefix, func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, uint(7))
		c.Locals(middleware.LocalUserRole, "teacher")
		return c.Next()
	})
	register(group)
	return app
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func openSectionDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, db.AutoMigrate(&models.Course{}, &models.Section{}))
	require.NoError(t, db.Create(&models.Course{ID: 1, Code: "CSE101", Title: "Intro"}).Error)
	sections := make([]models.Section, 0, 8)
	for i := 1; i <= 8; i++ {
		sections = append(sections, models.Section{ID: uint(i), CourseID: 1, TeacherID: 7, Label: fmt.Sprintf("S%d", i), Trimester: "1", Year: 2025})
	}
	require.NoError(t, db.Create(&sections).Error)
	return db
}

func TestSectionHandlerClampsPageSize(t *testing.T) {
	db := openSectionDB(t)
	prober := schema.NewProber(schema.NewSQLCatalog(db, schema.DialectSQLite, ""), zerolog.Nop())
	svc := service.NewSectionService(
		repository.NewSectionRepository(db),
		service.NewCapabilityService(prober, nil, zerolog.Nop()),
		service.SectionServiceConfig{Trimesters: normalize.NewTrimesterMapper(nil), Bounds: qb.DefaultBounds},
		validator.New(),
		nil,
		zerolog.Nop(),
	)
	app := panelApp(func(group fiber.Router) {
		handler.NewSectionHandler(svc, zerolog.Nop()).Register(group.Group("/sections"))
	})

	for per, want := range map[string]int{"3": 5, "1000": 50} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, panelPrefix+"/sections?per="+per, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body envelope
		decodeResponse(t, resp, &body)
		var meta dto.PaginationMeta
		require.NoError(t, json.Unmarshal(body.Meta, &meta))
		require.Equal(t, want, meta.PageSize, "per=%s", per)
		require.Equal(t, int64(8), meta.TotalItems)

		var data dto.SectionListResponse
		require.NoError(t, json.Unmarshal(body.Data, &data))
		require.Equal(t, normalize.Spring, data.Items[0].Trimester)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, panelPrefix+"/sections?per=abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type stubSubmissionService struct {
	lastCheck dto.ManualCheckRequest
	lastActor service.ActivityActor
	err       error
}

func (s *stubSubmissionService) List(ctx context.Context, teacherID uint, query dto.SubmissionListQuery) (dto.SubmissionListResponse, error) {
	return dto.SubmissionListResponse{Items: []dto.SubmissionResponse{}}, s.err
}

func (s *stubSubmissionService) ManualCheck(ctx context.Context, actor service.ActivityActor, req dto.ManualCheckRequest) (dto.ManualCheckResponse, error) {
	s.lastCheck = req
	s.lastActor = actor
	if s.err != nil {
		return dto.ManualCheckResponse{}, s.err
	}
	return dto.ManualCheckResponse{ID: req.ID, Status: models.SubmissionStatusChecked, Score: *req.Score}, nil
}

func submissionApp(svc service.SubmissionService) *fiber.App {
	return panelApp(func(group fiber.Router) {
		handler.NewSubmissionHandler(svc, zerolog.Nop()).Register(group.Group("/submissions"))
	})
}

func TestSubmissionHandlerManualCheck(t *testing.T) {
	svc := &stubSubmissionService{}
	resp := postForm(t, submissionApp(svc), panelPrefix+"/submissions", url.Values{
		"action": {"manual_check"},
		"id":     {"12"},
		"score":  {"7.5"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope
	decodeResponse(t, resp, &body)
	require.Equal(t, "submission checked", body.Message)
	require.Equal(t, uint(12), svc.lastCheck.ID)
	require.NotNil(t, svc.lastCheck.Score)
	require.Equal(t, 7.5, *svc.lastCheck.Score)
	require.Equal(t, uint(7), svc.lastActor.ID)
}

func TestSubmissionHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not owned", err: service.ErrNotOwned, status: fiber.StatusSeeOther},
		{name: "score too high", err: fmt.Errorf("%w: maximum is 10", service.ErrScoreExceedsMax), status: fiber.StatusBadRequest},
		{name: "missing column", err: fmt.Errorf("%w: submissions.status", service.ErrFeatureUnavailable), status: fiber.StatusConflict},
		{name: "unexpected", err: errors.New("connection reset"), status: fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postForm(t, submissionApp(&stubSubmissionService{err: tc.err}), panelPrefix+"/submissions", url.Values{
				"action": {"manual_check"},
				"id":     {"3"},
				"score":  {"4"},
			})
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.status == fiber.StatusSeeOther {
				require.Equal(t, panelPrefix+"/submissions", resp.Header.Get("Location"))
			}
		})
	}
}

func TestSubmissionHandlerValidationDetails(t *testing.T) {
	validate := validator.New()
	err := validate.Struct(dto.ManualCheckRequest{Action: "manual_check", ID: 1})
	require.Error(t, err)

	resp := postForm(t, submissionApp(&stubSubmissionService{err: err}), panelPrefix+"/submissions", url.Values{
		"action": {"manual_check"},
		"id":     {"1"},
		"score":  {"1"},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body envelope
	decodeResponse(t, resp, &body)
	require.Equal(t, "validation failed", body.Message)
	require.Equal(t, "required", body.Details["Score"])
}

type stubProblemService struct {
	err error
}

func (s stubProblemService) List(ctx context.Context, teacherID uint, query dto.ProblemListQuery) (dto.ProblemListResponse, error) {
	return dto.ProblemListResponse{}, s.err
}

func (s stubProblemService) Get(ctx context.Context, teacherID, problemID uint) (dto.ProblemDetailResponse, error) {
	if s.err != nil {
		return dto.ProblemDetailResponse{}, s.err
	}
	return dto.ProblemDetailResponse{ProblemResponse: dto.ProblemResponse{ID: problemID, Title: "Two Sum"}}, nil
}

func (s stubProblemService) Apply(ctx context.Context, actor service.ActivityActor, req dto.ProblemActionRequest) (dto.ProblemMutationResponse, error) {
	return dto.ProblemMutationResponse{Action: req.Action}, s.err
}

func TestProblemHandlerDetail(t *testing.T) {
	app := panelApp(func(group fiber.Router) {
		handler.NewProblemHandler(stubProblemService{}, zerolog.Nop()).Register(group.Group("/problems"))
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, panelPrefix+"/problems/4", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, panelPrefix+"/problems/zero", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	foreign := panelApp(func(group fiber.Router) {
		handler.NewProblemHandler(stubProblemService{err: service.ErrNotOwned}, zerolog.Nop()).Register(group.Group("/problems"))
	})
	resp, err = foreign.Test(httptest.NewRequest(http.MethodGet, panelPrefix+"/problems/4", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	require.Equal(t, panelPrefix+"/problems", resp.Header.Get("Location"))
}

type stubArchiveService struct {
	size int64
	err  error
}

func (s *stubArchiveService) Store(ctx context.Context, actor service.ActivityActor, testID uint, file *multipart.FileHeader) (dto.ArchiveResponse, error) {
	if s.err != nil {
		return dto.ArchiveResponse{}, s.err
	}
	s.size = file.Size
	return dto.ArchiveResponse{TestID: testID, FileName: file.Filename, SizeBytes: file.Size}, nil
}

func archiveRequest(t *testing.T, field string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "cases.zip")
	require.NoError(t, err)
	_, err = part.Write([]byte("PK\x03\x04"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, panelPrefix+"/tests/3/archive", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestTestHandlerArchiveUpload(t *testing.T) {
	archives := &stubArchiveService{}
	app := panelApp(func(group fiber.Router) {
		handler.NewTestHandler(nil, archives, zerolog.Nop()).Register(group.Group("/tests"))
	})

	resp, err := app.Test(archiveRequest(t, "archive"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, int64(4), archives.size)

	resp, err = app.Test(archiveRequest(t, "file"))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	for err, status := range map[error]int{
		service.ErrArchiveTooLarge: fiber.StatusRequestEntityTooLarge,
		service.ErrArchiveType:     fiber.StatusUnsupportedMediaType,
		service.ErrArchiveInvalid:  fiber.StatusBadRequest,
		service.ErrNotOwned:        fiber.StatusSeeOther,
	} {
		failing := panelApp(func(group fiber.Router) {
			handler.NewTestHandler(nil, &stubArchiveService{err: err}, zerolog.Nop()).Register(group.Group("/tests"))
		})
		resp, reqErr := failing.Test(archiveRequest(t, "archive"))
		require.NoError(t, reqErr)
		require.Equal(t, status, resp.StatusCode, err.Error())
		if status == fiber.StatusSeeOther {
			require.Equal(t, panelPrefix+"/tests", resp.Header.Get("Location"))
		}
	}
}

type stubAnalyticsService struct {
	response dto.AnalyticsResponse
	query    dto.AnalyticsQuery
}

func (s *stubAnalyticsService) Summary(ctx context.Context, teacherID uint, query dto.AnalyticsQuery) (dto.AnalyticsResponse, error) {
	s.query = query
	return s.response, nil
}

func TestAnalyticsHandlerContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "analytics.schema.json"))
	require.NoError(t, err)
	contract, err := jsonschema.NewCompiler().Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	svc := &stubAnalyticsService{response: dto.AnalyticsResponse{
		VerdictSummary: normalize.AggregateVerdicts([]normalize.VerdictRow{
			{Key: "1", Label: "CSE101", Verdict: "AC", Count: 4},
			{Key: "1", Label: "CSE101", Verdict: "PE", Count: 1},
			{Key: "2", Label: "CSE220", Verdict: nil, Count: 2},
		}),
		Days:     30,
		CourseID: 1,
	}}
	app := panelApp(func(group fiber.Router) {
		handler.NewAnalyticsHandler(svc, zerolog.Nop()).Register(group.Group("/analytics"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, panelPrefix+"/analytics?days=30&course_id=1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, 30, svc.query.Days)
	require.Equal(t, uint(1), svc.query.CourseID)

	var payload interface{}
	decodeResponse(t, resp, &payload)
	require.NoError(t, contract.Validate(payload))
}

func TestHealthCheckReportsDependencies(t *testing.T) {
	cfg := config.Config{AppName: "Teacher Panel", AppEnv: "test"}

	app := fiber.New()
	app.Get("/ok", handler.HealthCheck(cfg, map[string]handler.Pinger{
		"database": func(context.Context) error { return nil },
	}))
	app.Get("/degraded", handler.HealthCheck(cfg, map[string]handler.Pinger{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/degraded", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Data handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "degraded", body.Data.Status)
	require.Equal(t, "ok", body.Data.Checks["database"])
}
