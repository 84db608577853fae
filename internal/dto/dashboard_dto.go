package dto

import "github.com/noah-isme/gema-teacher-panel/internal/normalize"

// DashboardResponse summarises the teacher's workload. Counts backed by an absent
// table or column are null.
type DashboardResponse struct {
	Days          int                  `json:"days"`
	Sections      int64                `json:"sections"`
	Courses       int64                `json:"courses"`
	Problems      int64                `json:"problems"`
	Submissions   int64                `json:"submissions"`
	PendingChecks *int64               `json:"pending_checks"`
	Tests         *int64               `json:"tests"`
	Recent        []SubmissionResponse `json:"recent"`
}

// AnalyticsQuery holds the analytics filters.
type AnalyticsQuery struct {
	Days     int  `query:"days"`
	CourseID uint `query:"course_id"`
}

// AnalyticsResponse is the data blob consumed by the verdict visualization.
type AnalyticsResponse struct {
	normalize.VerdictSummary
	Days     int  `json:"days"`
	CourseID uint `json:"course_id,omitempty"`
	CacheHit bool `json:"cache_hit"`
}
