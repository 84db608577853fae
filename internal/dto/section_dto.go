package dto

import "github.com/noah-isme/gema-teacher-panel/internal/models"

// SectionListQuery holds the section listing filters.
type SectionListQuery struct {
	Trimester string `query:"tri"`
	Year      int    `query:"year"`
	CourseID  uint   `query:"course_id"`
	Search    string `query:"q"`
	Page      int    `query:"page"`
	PerPage   int    `query:"per"`
}

// SectionActionRequest is the POST form of the section page.
type SectionActionRequest struct {
	Action    string `json:"action" form:"action" validate:"required,oneof=add remove"`
	SectionID uint   `json:"sec_id" form:"sec_id" validate:"required_if=Action remove"`
	CourseID  uint   `json:"course_id" form:"course_id" validate:"required_if=Action add"`
	Label     string `json:"label" form:"label" validate:"required_if=Action add,max=64"`
	Trimester string `json:"trimester" form:"trimester" validate:"max=16"`
	Year      int    `json:"year" form:"year" validate:"omitempty,min=1900,max=2200"`
}

// SectionResponse serializes a section row.
type SectionResponse struct {
	ID          uint   `json:"id"`
	CourseID    uint   `json:"course_id"`
	CourseCode  string `json:"course_code"`
	CourseTitle string `json:"course_title"`
	Label       string `json:"label"`
	Trimester   string `json:"trimester"`
	Year        int64  `json:"year"`
}

// SectionListResponse wraps a page of sections.
type SectionListResponse struct {
	Items      []SectionResponse `json:"items"`
	Trimesters []string          `json:"trimesters"`
	Pagination PaginationMeta    `json:"pagination"`
}

// SectionMutationResponse reports the outcome of an add/remove action.
type SectionMutationResponse struct {
	Action    string `json:"action"`
	SectionID uint   `json:"sec_id"`
}

// NewSectionResponse converts a section view. The trimester is expected to be
// canonicalised by the caller.
func NewSectionResponse(view models.SectionView) SectionResponse {
	return SectionResponse{
		ID:          view.ID,
		CourseID:    view.CourseID,
		CourseCode:  view.CourseCode,
		CourseTitle: view.CourseTitle,
		Label:       view.Label,
		Trimester:   view.Trimester,
		Year:        view.Year,
	}
}
