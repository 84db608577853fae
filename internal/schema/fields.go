package schema

// Tables probed by the panel.
const (
	TableCourses         = "courses"
	TableSections        = "sections"
	TableProblems        = "problems"
	TableSubmissions     = "submissions"
	TableUsers           = "users"
	TableTests           = "tests"
	TableTestSubmissions = "test_submissions"
)

func field(table, name string, candidates ...string) Field {
	return Field{Name: table + "." + name, Table: table, Candidates: candidates}
}

// Courses.
var (
	CourseID    = field(TableCourses, "id", "id")
	CourseCode  = field(TableCourses, "code", "code", "course_code", "short_name")
	CourseTitle = field(TableCourses, "title", "title", "name")
)

// Sections.
var (
	SectionID        = field(TableSections, "id", "id")
	SectionTeacher   = field(TableSections, "teacher", "teacher_id", "instructor_id")
	SectionCourse    = field(TableSections, "course", "course_id")
	SectionLabel     = field(TableSections, "label", "label", "section_name", "name")
	SectionTrimester = field(TableSections, "trimester", "trimester", "term", "semester")
	SectionYear      = field(TableSections, "year", "year", "academic_year")
)

// Problems.
var (
	ProblemID           = field(TableProblems, "id", "id")
	ProblemCourse       = field(TableProblems, "course", "course_id")
	ProblemTitle        = field(TableProblems, "title", "title", "short_title", "name")
	ProblemStatement    = field(TableProblems, "statement", "statement", "description", "body")
	ProblemDifficulty   = field(TableProblems, "difficulty", "difficulty", "level")
	ProblemPoints       = field(TableProblems, "points", "points", "max_score")
	ProblemSampleInput  = field(TableProblems, "sample_input", "sample_input")
	ProblemSampleOutput = field(TableProblems, "sample_output", "sample_output")
	ProblemCreatedAt    = field(TableProblems, "created_at", "created_at")
)

// Submissions.
var (
	SubmissionID        = field(TableSubmissions, "id", "id")
	SubmissionProblem   = field(TableSubmissions, "problem", "problem_id")
	SubmissionUser      = field(TableSubmissions, "user", "user_id", "student_id")
	SubmissionTime      = field(TableSubmissions, "time", "submitted_at", "created_at", "submission_time")
	SubmissionStatus    = field(TableSubmissions, "status", "status")
	SubmissionVerdict   = field(TableSubmissions, "verdict", "verdict", "result")
	SubmissionScore     = field(TableSubmissions, "score", "score", "marks")
	SubmissionLanguage  = field(TableSubmissions, "language", "language", "lang")
	SubmissionMessage   = field(TableSubmissions, "message", "message", "judge_message", "feedback")
	SubmissionRuntime   = field(TableSubmissions, "runtime", "runtime_ms", "runtime", "exec_time")
	SubmissionAnswer    = field(TableSubmissions, "answer", "answer", "source_code", "code")
	SubmissionCheckedAt = field(TableSubmissions, "checked_at", "checked_at")
	SubmissionCheckedBy = field(TableSubmissions, "checked_by", "checked_by")
)

// Users.
var (
	UserID   = field(TableUsers, "id", "id")
	UserName = field(TableUsers, "name", "name", "full_name", "username")
)

// Tests.
var (
	TestID         = field(TableTests, "id", "id")
	TestSection    = field(TableTests, "section", "section_id")
	TestTitle      = field(TableTests, "title", "title", "name")
	TestQuestion   = field(TableTests, "question", "question", "description")
	TestTotalMarks = field(TableTests, "total_marks", "total_marks", "marks", "max_marks")
	TestStart      = field(TableTests, "start", "start_time", "starts_at", "start_at", "open_at")
	TestEnd        = field(TableTests, "end", "end_time", "ends_at", "end_at", "close_at")
	TestArchive    = field(TableTests, "archive", "hidden_archive_url", "archive_url")
)

// Test submissions.
var (
	TestSubmissionID        = field(TableTestSubmissions, "id", "id")
	TestSubmissionTest      = field(TableTestSubmissions, "test", "test_id")
	TestSubmissionUser      = field(TableTestSubmissions, "user", "user_id", "student_id")
	TestSubmissionTime      = field(TableTestSubmissions, "time", "submitted_at", "created_at")
	TestSubmissionAnswer    = field(TableTestSubmissions, "answer", "answer", "answer_text")
	TestSubmissionMarks     = field(TableTestSubmissions, "marks", "marks", "score")
	TestSubmissionStatus    = field(TableTestSubmissions, "status", "status")
	TestSubmissionVerdict   = field(TableTestSubmissions, "verdict", "verdict")
	TestSubmissionMessage   = field(TableTestSubmissions, "judge_message", "judge_message", "message")
	TestSubmissionSource    = field(TableTestSubmissions, "source", "source_code", "code")
	TestSubmissionLanguage  = field(TableTestSubmissions, "language", "language", "lang")
	TestSubmissionCheckedAt = field(TableTestSubmissions, "checked_at", "checked_at")
)

// CourseFields lists every course field.
func CourseFields() []Field {
	return []Field{CourseID, CourseCode, CourseTitle}
}

// SectionFields lists every section field.
func SectionFields() []Field {
	return []Field{SectionID, SectionTeacher, SectionCourse, SectionLabel, SectionTrimester, SectionYear}
}

// ProblemFields lists every problem field.
func ProblemFields() []Field {
	return []Field{ProblemID, ProblemCourse, ProblemTitle, ProblemStatement, ProblemDifficulty, ProblemPoints, ProblemSampleInput, ProblemSampleOutput, ProblemCreatedAt}
}

// SubmissionFields lists every submission field.
func SubmissionFields() []Field {
	return []Field{SubmissionID, SubmissionProblem, SubmissionUser, SubmissionTime, SubmissionStatus, SubmissionVerdict, SubmissionScore, SubmissionLanguage, SubmissionMessage, SubmissionRuntime, SubmissionAnswer, SubmissionCheckedAt, SubmissionCheckedBy}
}

// UserFields lists every user field.
func UserFields() []Field {
	return []Field{UserID, UserName}
}

// TestFields lists every test field.
func TestFields() []Field {
	return []Field{TestID, TestSection, TestTitle, TestQuestion, TestTotalMarks, TestStart, TestEnd, TestArchive}
}

// TestSubmissionFields lists every test submission field.
func TestSubmissionFields() []Field {
	return []Field{TestSubmissionID, TestSubmissionTest, TestSubmissionUser, TestSubmissionTime, TestSubmissionAnswer, TestSubmissionMarks, TestSubmissionStatus, TestSubmissionVerdict, TestSubmissionMessage, TestSubmissionSource, TestSubmissionLanguage, TestSubmissionCheckedAt}
}

// Join concatenates field lists.
func Join(lists ...[]Field) []Field {
	var all []Field
	for _, l := range lists {
		all = append(all, l...)
	}
	return all
}

// AllFields lists every field the panel knows about.
func AllFields() []Field {
	return Join(CourseFields(), SectionFields(), ProblemFields(), SubmissionFields(), UserFields(), TestFields(), TestSubmissionFields())
}
