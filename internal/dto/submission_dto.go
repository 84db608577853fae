package dto

import (
	"time"

	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
)

// SubmissionListQuery holds the review listing filters.
type SubmissionListQuery struct {
	Days      int    `query:"days"`
	CourseID  uint   `query:"course_id"`
	ProblemID uint   `query:"problem_id"`
	Status    string `query:"status"`
	Search    string `query:"q"`
	Page      int    `query:"page"`
	PerPage   int    `query:"per"`
}

// ManualCheckRequest is the manual_check POST form shared by problem and test
// submissions.
type ManualCheckRequest struct {
	Action string   `json:"action" form:"action" validate:"required,eq=manual_check"`
	ID     uint     `json:"id" form:"id" validate:"required"`
	Score  *float64 `json:"score" form:"score" validate:"required,gte=0"`
}

// SubmissionResponse serializes a submission for review.
type SubmissionResponse struct {
	ID            uint              `json:"id"`
	ProblemID     uint              `json:"problem_id"`
	ProblemTitle  string            `json:"problem_title"`
	CourseID      uint              `json:"course_id"`
	UserID        uint              `json:"user_id"`
	UserName      string            `json:"user_name"`
	SubmittedAt   *time.Time        `json:"submitted_at"`
	Status        string            `json:"status"`
	Verdict       string            `json:"verdict"`
	Category      normalize.Verdict `json:"category"`
	Score         *float64          `json:"score"`
	MaxScore      *float64          `json:"max_score"`
	Language      string            `json:"language"`
	Message       string            `json:"message"`
	RuntimeMs     *float64          `json:"runtime_ms"`
	AnswerExcerpt string            `json:"answer_excerpt"`
	CheckedAt     *time.Time        `json:"checked_at"`
}

// SubmissionListResponse wraps a page of submissions.
type SubmissionListResponse struct {
	Items      []SubmissionResponse `json:"items"`
	Days       int                  `json:"days"`
	Pagination PaginationMeta       `json:"pagination"`
}

// ManualCheckResponse reports the stored grade.
type ManualCheckResponse struct {
	ID        uint      `json:"id"`
	Status    string    `json:"status"`
	Score     float64   `json:"score"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewSubmissionResponse converts a submission view.
func NewSubmissionResponse(view models.SubmissionView) SubmissionResponse {
	return SubmissionResponse{
		ID:            view.ID,
		ProblemID:     view.ProblemID,
		ProblemTitle:  view.ProblemTitle,
		CourseID:      view.CourseID,
		UserID:        view.UserID,
		UserName:      view.UserName,
		SubmittedAt:   view.SubmittedAt,
		Status:        view.Status,
		Verdict:       view.Verdict,
		Category:      normalize.Classify(view.Verdict),
		Score:         view.Score,
		MaxScore:      view.MaxScore,
		Language:      view.Language,
		Message:       view.Message,
		RuntimeMs:     view.RuntimeMs,
		AnswerExcerpt: normalize.Excerpt(view.Answer, excerptLength),
		CheckedAt:     view.CheckedAt,
	}
}
