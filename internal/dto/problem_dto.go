package dto

import (
	"time"

	"github.com/noah-isme/gema-teacher-panel/internal/models"
	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
)

// excerptLength bounds statement previews in list views.
const excerptLength = 160

// ProblemListQuery holds the problem listing filters.
type ProblemListQuery struct {
	CourseID uint   `query:"course_id"`
	Search   string `query:"q"`
	Page     int    `query:"page"`
	PerPage  int    `query:"per"`
}

// ProblemActionRequest is the POST form of the problem page.
type ProblemActionRequest struct {
	Action       string   `json:"action" form:"action" validate:"required,oneof=add remove"`
	ProblemID    uint     `json:"problem_id" form:"problem_id" validate:"required_if=Action remove"`
	CourseID     uint     `json:"course_id" form:"course_id" validate:"required_if=Action add"`
	Title        string   `json:"title" form:"title" validate:"required_if=Action add,max=200"`
	Statement    string   `json:"statement" form:"statement" validate:"max=20000"`
	Difficulty   string   `json:"difficulty" form:"difficulty" validate:"max=32"`
	Points       *float64 `json:"points" form:"points" validate:"omitempty,gte=0"`
	SampleInput  string   `json:"sample_input" form:"sample_input" validate:"max=5000"`
	SampleOutput string   `json:"sample_output" form:"sample_output" validate:"max=5000"`
}

// ProblemResponse is the list shape of a problem.
type ProblemResponse struct {
	ID         uint       `json:"id"`
	CourseID   uint       `json:"course_id"`
	CourseCode string     `json:"course_code"`
	Title      string     `json:"title"`
	Excerpt    string     `json:"excerpt"`
	Difficulty string     `json:"difficulty"`
	Points     *float64   `json:"points"`
	CreatedAt  *time.Time `json:"created_at"`
}

// ProblemSample is the first worked example of a problem.
type ProblemSample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ProblemDetailResponse adds the full statement and sample to the list shape.
type ProblemDetailResponse struct {
	ProblemResponse
	Statement string         `json:"statement"`
	Sample    *ProblemSample `json:"sample"`
}

// ProblemListResponse wraps a page of problems.
type ProblemListResponse struct {
	Items      []ProblemResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// ProblemMutationResponse reports the outcome of an add/remove action.
type ProblemMutationResponse struct {
	Action    string `json:"action"`
	ProblemID uint   `json:"problem_id"`
}

// NewProblemResponse converts a problem view into its list shape.
func NewProblemResponse(view models.ProblemView) ProblemResponse {
	return ProblemResponse{
		ID:         view.ID,
		CourseID:   view.CourseID,
		CourseCode: view.CourseCode,
		Title:      view.Title,
		Excerpt:    normalize.Excerpt(view.Statement, excerptLength),
		Difficulty: view.Difficulty,
		Points:     view.Points,
		CreatedAt:  view.CreatedAt,
	}
}

// NewProblemDetailResponse converts a problem view into its detail shape.
func NewProblemDetailResponse(view models.ProblemView) ProblemDetailResponse {
	detail := ProblemDetailResponse{
		ProblemResponse: NewProblemResponse(view),
		Statement:       view.Statement,
	}
	if view.SampleInput != "" || view.SampleOutput != "" {
		detail.Sample = &ProblemSample{Input: view.SampleInput, Output: view.SampleOutput}
	}
	return detail
}
