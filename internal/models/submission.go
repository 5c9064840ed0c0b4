package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission states. Lateness is tracked on IsLate; the "late" status mirrors it
// for callers that only look at Status.
const (
	SubmissionStatusDraft       = "draft"
	SubmissionStatusSubmitted   = "submitted"
	SubmissionStatusLate        = "late"
	SubmissionStatusGraded      = "graded"
	SubmissionStatusIncomplete  = "incomplete"
	SubmissionStatusResubmitted = "resubmitted"
)

// Letter grade thresholds, applied to the derived percentage.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
	GradeF = "F"
)

// Submission is one student's work on one assignment. Exactly one row exists per
// (student, assignment) pair; a resubmission mutates the row and bumps Attempt.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"student_id"`
	CourseID     uint       `gorm:"not null;index" json:"course_id"`
	Answers      []Answer   `gorm:"constraint:OnDelete:CASCADE" json:"answers"`
	Status       string     `gorm:"size:32;not null;default:draft" json:"status"`
	Attempt      int        `gorm:"not null;default:0" json:"attempt"`
	IsLate       bool       `gorm:"not null" json:"is_late"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	// RawScore is the grader's input before any late penalty. Score is what the
	// student earns after the penalty; Percentage and Grade derive from it.
	RawScore         float64    `gorm:"not null" json:"raw_score"`
	Score            float64    `gorm:"not null" json:"score"`
	MaxScore         float64    `gorm:"not null" json:"max_score"`
	Percentage       float64    `gorm:"not null" json:"percentage"`
	Grade            string     `gorm:"size:2" json:"grade"`
	Feedback         string     `gorm:"type:text" json:"feedback"`
	GradedBy         *uint      `json:"graded_by"`
	GradedAt         *time.Time `json:"graded_at"`
	PlagiarismScore  *float64   `json:"plagiarism_score"`
	PlagiarismReport string     `gorm:"type:text" json:"plagiarism_report"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Assignment       Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student          Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// Answer is one response on a submission. It is a tagged union keyed on Type:
// multiple-choice uses SelectedOptionID, true-false uses BoolValue, text kinds
// use TextValue, file-upload uses Attachments.
type Answer struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SubmissionID     uint           `gorm:"not null;index" json:"submission_id"`
	QuestionID       uint           `gorm:"not null" json:"question_id"`
	Type             string         `gorm:"size:32;not null" json:"type"`
	SelectedOptionID *uint          `json:"selected_option_id"`
	BoolValue        *bool          `json:"bool_value"`
	TextValue        string         `gorm:"type:text" json:"text_value"`
	Attachments      datatypes.JSON `gorm:"type:json" json:"attachments"`
	TimeSpent        int            `gorm:"not null;default:0" json:"time_spent"`
	Position         int            `gorm:"not null" json:"position"`
}

// FileMetadata describes a persisted attachment. The portal never stores file
// bytes, only what the storage collaborator reports back.
type FileMetadata struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// SubmissionGradeHistory records each grading pass over a submission.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	RawScore     float64   `gorm:"not null" json:"raw_score"`
	Score        float64   `gorm:"not null" json:"score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// CountsTowardAnalytics reports whether the submission is visible to rollups.
func (s Submission) CountsTowardAnalytics() bool {
	return s.Status != SubmissionStatusDraft
}

// LetterGrade maps a percentage to its letter grade.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return GradeA
	case percentage >= 80:
		return GradeB
	case percentage >= 70:
		return GradeC
	case percentage >= 60:
		return GradeD
	default:
		return GradeF
	}
}
