package models

import "time"

// The view types below are read shapes assembled from schema-dependent queries.
// Fields backed by an absent column hold their zero value.

// SectionView is a section row with its course.
type SectionView struct {
	ID          uint
	CourseID    uint
	CourseCode  string
	CourseTitle string
	Label       string
	Trimester   string
	Year        int64
}

// ProblemView is a problem row.
type ProblemView struct {
	ID           uint
	CourseID     uint
	CourseCode   string
	Title        string
	Statement    string
	Difficulty   string
	Points       *float64
	SampleInput  string
	SampleOutput string
	CreatedAt    *time.Time
}

// SubmissionView is a submission row with its problem and author.
type SubmissionView struct {
	ID           uint
	ProblemID    uint
	ProblemTitle string
	CourseID     uint
	UserID       uint
	UserName     string
	SubmittedAt  *time.Time
	Status       string
	Verdict      string
	Score        *float64
	MaxScore     *float64
	Language     string
	Message      string
	RuntimeMs    *float64
	Answer       string
	CheckedAt    *time.Time
}

// TestView is a test row with its section.
type TestView struct {
	ID           uint
	SectionID    uint
	SectionLabel string
	Title        string
	Question     string
	TotalMarks   *float64
	StartTime    *time.Time
	EndTime      *time.Time
	ArchiveURL   string
}

// TestSubmissionView is a student's test answer.
type TestSubmissionView struct {
	ID           uint
	TestID       uint
	UserID       uint
	UserName     string
	SubmittedAt  *time.Time
	Answer       string
	Marks        *float64
	Status       string
	Verdict      string
	JudgeMessage string
	SourceCode   string
	Language     string
	CheckedAt    *time.Time
}
