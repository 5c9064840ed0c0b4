package models

import "time"

// Assignment lifecycle states. Students only see published assignments.
const (
	AssignmentStatusDraft     = "draft"
	AssignmentStatusPublished = "published"
	AssignmentStatusClosed    = "closed"
	AssignmentStatusArchived  = "archived"
)

// Assignment kinds supported by the portal.
const (
	AssignmentTypeAssignment = "assignment"
	AssignmentTypeQuiz       = "quiz"
	AssignmentTypeExam       = "exam"
	AssignmentTypeProject    = "project"
	AssignmentTypeHomework   = "homework"
	AssignmentTypeLab        = "lab"
)

// Question kinds. Only multiple-choice questions are auto-gradable.
const (
	QuestionTypeMultipleChoice = "multiple-choice"
	QuestionTypeTrueFalse      = "true-false"
	QuestionTypeShortAnswer    = "short-answer"
	QuestionTypeEssay          = "essay"
	QuestionTypeFileUpload     = "file-upload"
	QuestionTypeCode           = "code"
)

// Assignment represents a gradable unit of work within a course.
type Assignment struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	CourseID      uint               `gorm:"not null;index" json:"course_id"`
	FacultyID     uint               `gorm:"not null;index" json:"faculty_id"`
	Title         string             `gorm:"size:255;not null" json:"title"`
	Description   string             `gorm:"type:text" json:"description"`
	Type          string             `gorm:"size:32;not null;default:assignment" json:"type"`
	Instructions  string             `gorm:"type:text" json:"instructions"`
	Status        string             `gorm:"size:32;not null;default:draft" json:"status"`
	DueDate       time.Time          `gorm:"not null" json:"due_date"`
	AvailableFrom *time.Time         `json:"available_from"`
	TimeLimit     *int               `json:"time_limit"`
	Attempts      int                `gorm:"not null;default:1" json:"attempts"`
	TotalPoints   float64            `gorm:"not null" json:"total_points"`
	Settings      AssignmentSettings `gorm:"embedded;embeddedPrefix:setting_" json:"settings"`
	Questions     []Question         `gorm:"constraint:OnDelete:CASCADE" json:"questions"`
	Rubric        []RubricCriterion  `gorm:"constraint:OnDelete:CASCADE" json:"rubric"`
	Submissions   []Submission       `gorm:"constraint:OnDelete:CASCADE" json:"submissions,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// AssignmentSettings holds the grading and submission policy for an assignment.
type AssignmentSettings struct {
	AllowLateSubmissions bool    `json:"allow_late_submissions"`
	LatePenalty          float64 `gorm:"not null;default:0" json:"late_penalty"`
	AllowResubmission    bool    `json:"allow_resubmission"`
	AutoGrade            bool    `json:"auto_grade"`
	RequireFileUpload    bool    `json:"require_file_upload"`
	AllowedFileTypes     string  `gorm:"size:512" json:"allowed_file_types"`
	MaxFileSize          int64   `json:"max_file_size"`
}

// Question is one item on an assignment. Multiple-choice questions carry options.
type Question struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	AssignmentID uint             `gorm:"not null;index" json:"assignment_id"`
	Type         string           `gorm:"size:32;not null" json:"type"`
	Prompt       string           `gorm:"type:text;not null" json:"prompt"`
	Points       float64          `gorm:"not null" json:"points"`
	Position     int              `gorm:"not null" json:"position"`
	Options      []QuestionOption `gorm:"constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

// QuestionOption is one selectable choice on a multiple-choice question.
type QuestionOption struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Text       string `gorm:"size:1024;not null" json:"text"`
	IsCorrect  bool   `gorm:"not null" json:"is_correct"`
}

// RubricCriterion is one named, point-weighted grading criterion.
// The assignment's TotalPoints must equal the sum of criterion points.
type RubricCriterion struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	AssignmentID uint    `gorm:"not null;index" json:"assignment_id"`
	Name         string  `gorm:"size:255;not null" json:"name"`
	Description  string  `gorm:"type:text" json:"description"`
	Points       float64 `gorm:"not null" json:"points"`
	Weight       float64 `gorm:"not null;default:0" json:"weight"`
	Position     int     `gorm:"not null" json:"position"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// IsPublished reports whether students may currently submit to the assignment.
func (a Assignment) IsPublished() bool {
	return a.Status == AssignmentStatusPublished
}

// QuestionByID finds a question on the assignment by its identifier.
func (a Assignment) QuestionByID(id uint) (Question, bool) {
	for _, question := range a.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// CorrectOption returns the option flagged correct, if any.
func (q Question) CorrectOption() (QuestionOption, bool) {
	for _, option := range q.Options {
		if option.IsCorrect {
			return option, true
		}
	}
	return QuestionOption{}, false
}
