package models

import "time"

// Course is a catalogue entry that sections are opened for.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:32;not null" json:"code"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Section is one teacher's offering of a course in a trimester. Trimester is stored
// free-form: numeric codes on older rows, labels on newer ones.
type Section struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	TeacherID uint      `gorm:"index;not null" json:"teacher_id"`
	Label     string    `gorm:"size:64" json:"label"`
	Trimester string    `gorm:"size:16" json:"trimester"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a student or staff account.
type User struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:255" json:"name"`
	Email string `gorm:"size:255" json:"email"`
	Role  string `gorm:"size:32" json:"role"`
}
