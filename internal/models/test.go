package models

import "time"

// Test is a timed written assessment for a section, optionally backed by a hidden
// test-case archive.
type Test struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SectionID        uint       `gorm:"index;not null" json:"section_id"`
	Title            string     `gorm:"size:255" json:"title"`
	Question         string     `gorm:"type:text" json:"question"`
	TotalMarks       float64    `json:"total_marks"`
	StartTime        *time.Time `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
	HiddenArchiveURL string     `gorm:"size:512" json:"hidden_archive_url"`
}

// TestSubmission is one student's answer to a test.
type TestSubmission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TestID       uint       `gorm:"index;not null" json:"test_id"`
	UserID       uint       `gorm:"index" json:"user_id"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Answer       string     `gorm:"type:text" json:"answer"`
	Marks        *float64   `json:"marks"`
	Status       string     `gorm:"size:32" json:"status"`
	Verdict      string     `gorm:"size:16" json:"verdict"`
	JudgeMessage string     `gorm:"type:text" json:"judge_message"`
	SourceCode   string     `gorm:"type:text" json:"source_code"`
	Language     string     `gorm:"size:32" json:"language"`
	CheckedAt    *time.Time `json:"checked_at"`
}
