package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
)

// ErrInvalidStatusChange indicates a lifecycle transition the state machine
// does not allow.
var ErrInvalidStatusChange = errors.New("invalid assignment status transition")

// AssignmentService manages assignment definitions and their lifecycle:
// draft, published, closed, archived.
type AssignmentService interface {
	List(ctx context.Context, filter dto.AssignmentFilter) (dto.AssignmentListResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	ChangeStatus(ctx context.Context, id uint, status string, actor ActivityActor) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	roster      repository.RosterRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService constructs an AssignmentService instance.
func NewAssignmentService(assignments repository.AssignmentRepository, roster repository.RosterRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		roster:      roster,
		validator:   validate,
		activity:    activity,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, filter dto.AssignmentFilter) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	repoFilter := repository.AssignmentFilter{
		CourseID: filter.CourseID,
		Status:   filter.Status,
		Search:   filter.Search,
		Sort:     filter.Sort,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}

	assignments, total, err := s.assignments.List(ctx, repoFilter)
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(filter.Page, 1),
		PageSize:   filter.PageSize,
		TotalItems: total,
		TotalPages: 1,
	}
	if filter.PageSize > 0 {
		pagination.TotalPages = int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	}

	return dto.AssignmentListResponse{
		Items:      dto.NewAssignmentResponseSlice(assignments),
		Pagination: pagination,
	}, nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if _, err := s.roster.GetCourse(ctx, payload.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrCourseNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	rubric := rubricFromInput(payload.Rubric)
	questions := questionsFromInput(payload.Questions)
	totalPoints := RubricTotal(rubric)

	if err := ValidateRubric(rubric, totalPoints); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := ValidateQuestions(questions); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignmentType := payload.Type
	if assignmentType == "" {
		assignmentType = models.AssignmentTypeAssignment
	}
	attempts := payload.Attempts
	if attempts == 0 {
		attempts = 1
	}

	assignment := models.Assignment{
		CourseID:      payload.CourseID,
		FacultyID:     actor.ID,
		Title:         payload.Title,
		Description:   s.sanitizer.Sanitize(payload.Description),
		Type:          assignmentType,
		Instructions:  s.sanitizer.Sanitize(payload.Instructions),
		Status:        models.AssignmentStatusDraft,
		DueDate:       payload.DueDate,
		AvailableFrom: payload.AvailableFrom,
		TimeLimit:     payload.TimeLimit,
		Attempts:      attempts,
		TotalPoints:   totalPoints,
		Settings: models.AssignmentSettings{
			AllowLateSubmissions: payload.Settings.AllowLateSubmissions,
			LatePenalty:          payload.Settings.LatePenalty,
			AllowResubmission:    payload.Settings.AllowResubmission,
			AutoGrade:            payload.Settings.AutoGrade,
			RequireFileUpload:    payload.Settings.RequireFileUpload,
			AllowedFileTypes:     payload.Settings.AllowedFileTypes,
			MaxFileSize:          payload.Settings.MaxFileSize,
		},
		Questions: questions,
		Rubric:    rubric,
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, &DatabaseError{Op: "assignment create", Err: err}
	}

	s.recordAssignmentActivity(ctx, actor, assignment, "assignment.created")
	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("course_id", assignment.CourseID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.getOwned(ctx, id, actor)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.Title != nil {
		assignment.Title = *payload.Title
	}
	if payload.Description != nil {
		assignment.Description = s.sanitizer.Sanitize(*payload.Description)
	}
	if payload.Instructions != nil {
		assignment.Instructions = s.sanitizer.Sanitize(*payload.Instructions)
	}
	if payload.DueDate != nil {
		assignment.DueDate = *payload.DueDate
	}
	if payload.AvailableFrom != nil {
		assignment.AvailableFrom = payload.AvailableFrom
	}
	if payload.TimeLimit != nil {
		assignment.TimeLimit = payload.TimeLimit
	}
	if payload.Attempts != nil {
		assignment.Attempts = *payload.Attempts
	}
	if payload.Settings != nil {
		assignment.Settings = models.AssignmentSettings{
			AllowLateSubmissions: payload.Settings.AllowLateSubmissions,
			LatePenalty:          payload.Settings.LatePenalty,
			AllowResubmission:    payload.Settings.AllowResubmission,
			AutoGrade:            payload.Settings.AutoGrade,
			RequireFileUpload:    payload.Settings.RequireFileUpload,
			AllowedFileTypes:     payload.Settings.AllowedFileTypes,
			MaxFileSize:          payload.Settings.MaxFileSize,
		}
	}
	if payload.Questions != nil {
		assignment.Questions = questionsFromInput(payload.Questions)
	}
	if payload.Rubric != nil {
		assignment.Rubric = rubricFromInput(payload.Rubric)
		assignment.TotalPoints = RubricTotal(assignment.Rubric)
	}

	if err := ValidateRubric(assignment.Rubric, assignment.TotalPoints); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := ValidateQuestions(assignment.Questions); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, &DatabaseError{Op: "assignment update", Err: err}
	}

	updated, err := s.assignments.GetByID(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.recordAssignmentActivity(ctx, actor, updated, "assignment.updated")

	return dto.NewAssignmentResponse(updated), nil
}

// assignmentTransitions is the lifecycle state machine. Draft work can be
// published, published work closed, and closed work archived or reopened.
var assignmentTransitions = map[string][]string{
	models.AssignmentStatusDraft:     {models.AssignmentStatusPublished},
	models.AssignmentStatusPublished: {models.AssignmentStatusClosed},
	models.AssignmentStatusClosed:    {models.AssignmentStatusArchived, models.AssignmentStatusPublished},
	models.AssignmentStatusArchived:  {},
}

func (s *assignmentService) ChangeStatus(ctx context.Context, id uint, status string, actor ActivityActor) (dto.AssignmentResponse, error) {
	assignment, err := s.getOwned(ctx, id, actor)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	allowed := false
	for _, next := range assignmentTransitions[assignment.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return dto.AssignmentResponse{}, ErrInvalidStatusChange
	}

	if err := s.assignments.UpdateStatus(ctx, assignment.ID, status); err != nil {
		return dto.AssignmentResponse{}, &DatabaseError{Op: "assignment status update", Err: err}
	}

	assignment.Status = status
	s.recordAssignmentActivity(ctx, actor, assignment, "assignment."+status)

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	if assignment.FacultyID != actor.ID && actor.Role != "admin" {
		return ErrNotOwner
	}

	if err := s.assignments.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return &DatabaseError{Op: "assignment delete", Err: err}
	}

	s.recordAssignmentActivity(ctx, actor, assignment, "assignment.deleted")

	return nil
}

func (s *assignmentService) getOwned(ctx context.Context, id uint, actor ActivityActor) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	if assignment.FacultyID != actor.ID {
		return models.Assignment{}, ErrNotOwner
	}

	return assignment, nil
}

func (s *assignmentService) recordAssignmentActivity(ctx context.Context, actor ActivityActor, assignment models.Assignment, action string) {
	if s.activity == nil {
		return
	}

	entityID := assignment.ID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "assignment",
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"assignment_id": assignment.ID,
			"course_id":     assignment.CourseID,
			"status":        assignment.Status,
		},
	})
}

func rubricFromInput(inputs []dto.RubricCriterionInput) []models.RubricCriterion {
	criteria := make([]models.RubricCriterion, 0, len(inputs))
	for i, input := range inputs {
		criteria = append(criteria, models.RubricCriterion{
			Name:        input.Name,
			Description: input.Description,
			Points:      input.Points,
			Weight:      input.Weight,
			Position:    i,
		})
	}
	return criteria
}

func questionsFromInput(inputs []dto.QuestionInput) []models.Question {
	questions := make([]models.Question, 0, len(inputs))
	for i, input := range inputs {
		question := models.Question{
			Type:     input.Type,
			Prompt:   input.Prompt,
			Points:   input.Points,
			Position: i,
		}
		for _, option := range input.Options {
			question.Options = append(question.Options, models.QuestionOption{
				Text:      option.Text,
				IsCorrect: option.IsCorrect,
			})
		}
		questions = append(questions, question)
	}
	return questions
}
