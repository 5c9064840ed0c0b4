package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/campus-core-api/internal/models"
)

// AnswerInput is one answer in a submit payload. Exactly one value field is
// expected depending on the question type.
type AnswerInput struct {
	QuestionID       uint   `json:"question_id" validate:"required,gt=0"`
	Type             string `json:"type" validate:"required,oneof=multiple-choice true-false short-answer essay file-upload code"`
	SelectedOptionID *uint  `json:"selected_option_id" validate:"omitempty,gt=0"`
	BoolValue        *bool  `json:"bool_value"`
	TextValue        string `json:"text_value"`
	TimeSpent        int    `json:"time_spent" validate:"gte=0"`
}

// SubmitRequest is the student payload for creating or updating a submission.
type SubmitRequest struct {
	StudentID uint          `json:"student_id" validate:"required,gt=0"`
	Answers   []AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uint   `query:"assignment_id"`
	CourseID     *uint   `query:"course_id"`
	StudentID    *uint   `query:"student_id"`
	Status       *string `query:"status" validate:"omitempty,oneof=draft submitted late graded incomplete resubmitted"`
}

// AnswerResponse serializes one recorded answer.
type AnswerResponse struct {
	ID               uint                  `json:"id"`
	QuestionID       uint                  `json:"question_id"`
	Type             string                `json:"type"`
	SelectedOptionID *uint                 `json:"selected_option_id,omitempty"`
	BoolValue        *bool                 `json:"bool_value,omitempty"`
	TextValue        string                `json:"text_value,omitempty"`
	Attachments      []models.FileMetadata `json:"attachments,omitempty"`
	TimeSpent        int                   `json:"time_spent"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID               uint             `json:"id"`
	AssignmentID     uint             `json:"assignment_id"`
	StudentID        uint             `json:"student_id"`
	CourseID         uint             `json:"course_id"`
	Status           string           `json:"status"`
	Attempt          int              `json:"attempt"`
	IsLate           bool             `json:"is_late"`
	SubmittedAt      *time.Time       `json:"submitted_at"`
	RawScore         float64          `json:"raw_score"`
	Score            float64          `json:"score"`
	MaxScore         float64          `json:"max_score"`
	Percentage       float64          `json:"percentage"`
	Grade            string           `json:"grade"`
	Feedback         string           `json:"feedback"`
	GradedBy         *uint            `json:"graded_by"`
	GradedAt         *time.Time       `json:"graded_at"`
	PlagiarismScore  *float64         `json:"plagiarism_score,omitempty"`
	PlagiarismReport string           `json:"plagiarism_report,omitempty"`
	Answers          []AnswerResponse `json:"answers"`
	Assignment       AssignmentLite   `json:"assignment"`
	Student          StudentLite      `json:"student"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:               model.ID,
		AssignmentID:     model.AssignmentID,
		StudentID:        model.StudentID,
		CourseID:         model.CourseID,
		Status:           model.Status,
		Attempt:          model.Attempt,
		IsLate:           model.IsLate,
		SubmittedAt:      model.SubmittedAt,
		RawScore:         model.RawScore,
		Score:            model.Score,
		MaxScore:         model.MaxScore,
		Percentage:       model.Percentage,
		Grade:            model.Grade,
		Feedback:         model.Feedback,
		GradedBy:         model.GradedBy,
		GradedAt:         model.GradedAt,
		PlagiarismScore:  model.PlagiarismScore,
		PlagiarismReport: model.PlagiarismReport,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}

	answers := make([]AnswerResponse, 0, len(model.Answers))
	for _, answer := range model.Answers {
		item := AnswerResponse{
			ID:               answer.ID,
			QuestionID:       answer.QuestionID,
			Type:             answer.Type,
			SelectedOptionID: answer.SelectedOptionID,
			BoolValue:        answer.BoolValue,
			TextValue:        answer.TextValue,
			TimeSpent:        answer.TimeSpent,
		}
		if len(answer.Attachments) > 0 {
			var files []models.FileMetadata
			if err := json.Unmarshal(answer.Attachments, &files); err == nil {
				item.Attachments = files
			}
		}
		answers = append(answers, item)
	}
	response.Answers = answers

	if model.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:          model.Assignment.ID,
			Title:       model.Assignment.Title,
			DueDate:     model.Assignment.DueDate,
			TotalPoints: model.Assignment.TotalPoints,
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Email: model.Student.Email,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
