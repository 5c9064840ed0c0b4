package dto

import (
	"time"

	"github.com/noah-isme/campus-core-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// QuestionOptionInput is one choice of a multiple-choice question.
type QuestionOptionInput struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionInput defines one question on an assignment.
type QuestionInput struct {
	Type    string                `json:"type" validate:"required,oneof=multiple-choice true-false short-answer essay file-upload code"`
	Prompt  string                `json:"prompt" validate:"required"`
	Points  float64               `json:"points" validate:"gte=0"`
	Options []QuestionOptionInput `json:"options" validate:"omitempty,dive"`
}

// RubricCriterionInput defines one rubric criterion.
type RubricCriterionInput struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Points      float64 `json:"points" validate:"gte=0"`
	Weight      float64 `json:"weight" validate:"gte=0,lte=100"`
}

// AssignmentSettingsInput carries the submission and grading policy.
type AssignmentSettingsInput struct {
	AllowLateSubmissions bool    `json:"allow_late_submissions"`
	LatePenalty          float64 `json:"late_penalty" validate:"gte=0,lte=100"`
	AllowResubmission    bool    `json:"allow_resubmission"`
	AutoGrade            bool    `json:"auto_grade"`
	RequireFileUpload    bool    `json:"require_file_upload"`
	AllowedFileTypes     string  `json:"allowed_file_types"`
	MaxFileSize          int64   `json:"max_file_size" validate:"gte=0"`
}

// AssignmentCreateRequest is the faculty payload for defining an assignment.
type AssignmentCreateRequest struct {
	CourseID      uint                    `json:"course_id" validate:"required,gt=0"`
	Title         string                  `json:"title" validate:"required,min=3,max=255"`
	Description   string                  `json:"description"`
	Type          string                  `json:"type" validate:"omitempty,oneof=assignment quiz exam project homework lab"`
	Instructions  string                  `json:"instructions"`
	DueDate       time.Time               `json:"due_date" validate:"required"`
	AvailableFrom *time.Time              `json:"available_from"`
	TimeLimit     *int                    `json:"time_limit" validate:"omitempty,gt=0"`
	Attempts      int                     `json:"attempts" validate:"omitempty,gte=1,lte=10"`
	Questions     []QuestionInput         `json:"questions" validate:"omitempty,dive"`
	Rubric        []RubricCriterionInput  `json:"rubric" validate:"required,min=1,dive"`
	Settings      AssignmentSettingsInput `json:"settings"`
}

// AssignmentUpdateRequest mutates an existing assignment definition.
type AssignmentUpdateRequest struct {
	Title         *string                  `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string                  `json:"description"`
	Instructions  *string                  `json:"instructions"`
	DueDate       *time.Time               `json:"due_date"`
	AvailableFrom *time.Time               `json:"available_from"`
	TimeLimit     *int                     `json:"time_limit" validate:"omitempty,gt=0"`
	Attempts      *int                     `json:"attempts" validate:"omitempty,gte=1,lte=10"`
	Questions     []QuestionInput          `json:"questions" validate:"omitempty,dive"`
	Rubric        []RubricCriterionInput   `json:"rubric" validate:"omitempty,min=1,dive"`
	Settings      *AssignmentSettingsInput `json:"settings"`
}

// AssignmentFilter describes query filters for listing assignments.
type AssignmentFilter struct {
	CourseID *uint   `query:"course_id"`
	Status   *string `query:"status" validate:"omitempty,oneof=draft published closed archived"`
	Search   string  `query:"search"`
	Sort     string  `query:"sort"`
	Page     int     `query:"page" validate:"omitempty,gte=1"`
	PageSize int     `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// QuestionOptionResponse serializes one multiple-choice option.
type QuestionOptionResponse struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionResponse serializes one assignment question.
type QuestionResponse struct {
	ID      uint                     `json:"id"`
	Type    string                   `json:"type"`
	Prompt  string                   `json:"prompt"`
	Points  float64                  `json:"points"`
	Options []QuestionOptionResponse `json:"options,omitempty"`
}

// RubricCriterionResponse serializes one rubric criterion.
type RubricCriterionResponse struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Points      float64 `json:"points"`
	Weight      float64 `json:"weight"`
}

// AssignmentResponse is returned to API clients when viewing assignments.
type AssignmentResponse struct {
	ID            uint                      `json:"id"`
	CourseID      uint                      `json:"course_id"`
	FacultyID     uint                      `json:"faculty_id"`
	Title         string                    `json:"title"`
	Description   string                    `json:"description"`
	Type          string                    `json:"type"`
	Instructions  string                    `json:"instructions"`
	Status        string                    `json:"status"`
	DueDate       time.Time                 `json:"due_date"`
	AvailableFrom *time.Time                `json:"available_from"`
	TimeLimit     *int                      `json:"time_limit"`
	Attempts      int                       `json:"attempts"`
	TotalPoints   float64                   `json:"total_points"`
	Settings      models.AssignmentSettings `json:"settings"`
	Questions     []QuestionResponse        `json:"questions"`
	Rubric        []RubricCriterionResponse `json:"rubric"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// AssignmentListResponse wraps a paginated assignment listing.
type AssignmentListResponse struct {
	Items      []AssignmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	DueDate     time.Time `json:"due_date"`
	TotalPoints float64   `json:"total_points"`
}

// NewAssignmentResponse converts an Assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	questions := make([]QuestionResponse, 0, len(model.Questions))
	for _, question := range model.Questions {
		q := QuestionResponse{
			ID:     question.ID,
			Type:   question.Type,
			Prompt: question.Prompt,
			Points: question.Points,
		}
		for _, option := range question.Options {
			q.Options = append(q.Options, QuestionOptionResponse{
				ID:        option.ID,
				Text:      option.Text,
				IsCorrect: option.IsCorrect,
			})
		}
		questions = append(questions, q)
	}

	rubric := make([]RubricCriterionResponse, 0, len(model.Rubric))
	for _, criterion := range model.Rubric {
		rubric = append(rubric, RubricCriterionResponse{
			ID:          criterion.ID,
			Name:        criterion.Name,
			Description: criterion.Description,
			Points:      criterion.Points,
			Weight:      criterion.Weight,
		})
	}

	return AssignmentResponse{
		ID:            model.ID,
		CourseID:      model.CourseID,
		FacultyID:     model.FacultyID,
		Title:         model.Title,
		Description:   model.Description,
		Type:          model.Type,
		Instructions:  model.Instructions,
		Status:        model.Status,
		DueDate:       model.DueDate,
		AvailableFrom: model.AvailableFrom,
		TimeLimit:     model.TimeLimit,
		Attempts:      model.Attempts,
		TotalPoints:   model.TotalPoints,
		Settings:      model.Settings,
		Questions:     questions,
		Rubric:        rubric,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts assignment models into DTOs.
func NewAssignmentResponseSlice(items []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(items))
	for _, assignment := range items {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}
