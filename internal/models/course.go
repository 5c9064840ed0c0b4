package models

import "time"

// Course represents a taught course owned by a faculty member.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	FacultyID uint      `gorm:"not null;index" json:"faculty_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enrollment links a student to a course. One row per (course, student) pair.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_course_student" json:"course_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_enrollment_course_student" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
