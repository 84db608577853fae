package models

import "time"

// Problem is a judged exercise attached to a course.
type Problem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseID     uint      `gorm:"index;not null" json:"course_id"`
	Title        string    `gorm:"size:255" json:"title"`
	Statement    string    `gorm:"type:text" json:"statement"`
	Difficulty   string    `gorm:"size:32" json:"difficulty"`
	Points       float64   `json:"points"`
	SampleInput  string    `gorm:"type:text" json:"sample_input"`
	SampleOutput string    `gorm:"type:text" json:"sample_output"`
	CreatedAt    time.Time `json:"created_at"`
}

// Submission is a student's attempt at a problem.
type Submission struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProblemID   uint       `gorm:"index;not null" json:"problem_id"`
	UserID      uint       `gorm:"index" json:"user_id"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Status      string     `gorm:"size:32" json:"status"`
	Verdict     string     `gorm:"size:16" json:"verdict"`
	Score       *float64   `json:"score"`
	Language    string     `gorm:"size:32" json:"language"`
	Message     string     `gorm:"type:text" json:"message"`
	RuntimeMs   *int64     `json:"runtime_ms"`
	Answer      string     `gorm:"type:text" json:"answer"`
	CheckedAt   *time.Time `json:"checked_at"`
	CheckedBy   *uint      `json:"checked_by"`
}

const (
	// SubmissionStatusPending marks a submission awaiting a manual check.
	SubmissionStatusPending = "Pending"
	// SubmissionStatusChecked marks a submission checked by a teacher.
	SubmissionStatusChecked = "Checked"
)
