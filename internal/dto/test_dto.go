package dto

import (
	"time"

	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
)

// TestListQuery holds the test listing filters.
type TestListQuery struct {
	SectionID uint `query:"sec_id"`
	Page      int  `query:"page"`
	PerPage   int  `query:"per"`
}

// TestActionRequest is the POST form of the test page. Times accept RFC 3339 or
// the HTML datetime-local layout.
type TestActionRequest struct {
	Action     string   `json:"action" form:"action" validate:"required,oneof=add remove"`
	TestID     uint     `json:"test_id" form:"test_id" validate:"required_if=Action remove"`
	SectionID  uint     `json:"sec_id" form:"sec_id" validate:"required_if=Action add"`
	Title      string   `json:"title" form:"title" validate:"required_if=Action add,max=200"`
	Question   string   `json:"question" form:"question" validate:"max=20000"`
	TotalMarks *float64 `json:"total_marks" form:"total_marks" validate:"omitempty,gte=0"`
	StartTime  string   `json:"start_time" form:"start_time"`
	EndTime    string   `json:"end_time" form:"end_time"`
}

// TestResponse serializes a test.
type TestResponse struct {
	ID           uint       `json:"id"`
	SectionID    uint       `json:"sec_id"`
	SectionLabel string     `json:"section_label"`
	Title        string     `json:"title"`
	Question     string     `json:"question"`
	TotalMarks   *float64   `json:"total_marks"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	ArchiveURL   string     `json:"archive_url"`
}

// TestListResponse wraps a page of tests.
type TestListResponse struct {
	Items      []TestResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// TestMutationResponse reports the outcome of an add/remove action.
type TestMutationResponse struct {
	Action string `json:"action"`
	TestID uint   `json:"test_id"`
}

// TestSubmissionResponse serializes a student's answer to a test.
type TestSubmissionResponse struct {
	ID           uint              `json:"id"`
	TestID       uint              `json:"test_id"`
	UserID       uint              `json:"user_id"`
	UserName     string            `json:"user_name"`
	SubmittedAt  *time.Time        `json:"submitted_at"`
	Answer       string            `json:"answer"`
	Marks        *float64          `json:"marks"`
	Status       string            `json:"status"`
	Verdict      string            `json:"verdict"`
	Category     normalize.Verdict `json:"category"`
	JudgeMessage string            `json:"judge_message"`
	SourceCode   string            `json:"source_code"`
	Language     string            `json:"language"`
	CheckedAt    *time.Time        `json:"checked_at"`
}

// TestSubmissionListResponse wraps a page of test submissions.
type TestSubmissionListResponse struct {
	Test       TestResponse             `json:"test"`
	Items      []TestSubmissionResponse `json:"items"`
	Pagination PaginationMeta           `json:"pagination"`
}

// ArchiveResponse describes a stored hidden test-case archive.
type ArchiveResponse struct {
	TestID    uint   `json:"test_id"`
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
	Entries   int    `json:"entries"`
	Checksum  string `json:"checksum"`
	Persisted bool   `json:"persisted"`
}

// NewTestResponse converts a test view.
func NewTestResponse(view models.TestView) TestResponse {
	return TestResponse{
		ID:           view.ID,
		SectionID:    view.SectionID,
		SectionLabel: view.SectionLabel,
		Title:        view.Title,
		Question:     view.Question,
		TotalMarks:   view.TotalMarks,
		StartTime:    view.StartTime,
		EndTime:      view.EndTime,
		ArchiveURL:   view.ArchiveURL,
	}
}

// NewTestSubmissionResponse converts a test submission view.
func NewTestSubmissionResponse(view models.TestSubmissionView) TestSubmissionResponse {
	return TestSubmissionResponse{
		ID:           view.ID,
		TestID:       view.TestID,
		UserID:       view.UserID,
		UserName:     view.UserName,
		SubmittedAt:  view.SubmittedAt,
		Answer:       view.Answer,
		Marks:        view.Marks,
		Status:       view.Status,
		Verdict:      view.Verdict,
		Category:     normalize.Classify(view.Verdict),
		JudgeMessage: view.JudgeMessage,
		SourceCode:   view.SourceCode,
		Language:     view.Language,
		CheckedAt:    view.CheckedAt,
	}
}
