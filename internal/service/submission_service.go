package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
	"github.com/noah-isme/campus-core-api/pkg/ai"
)

// SubmissionService owns the lifecycle of student submissions: creation,
// answer recording, attempt counting, and status transitions.
type SubmissionService interface {
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	CreateOrUpdate(ctx context.Context, assignmentID uint, payload dto.SubmitRequest, files []*multipart.FileHeader) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	roster      repository.RosterRepository
	grading     GradingService
	storage     FileStorage
	screener    ai.Screener
	events      SubmissionEvents
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. The screener
// is optional; when nil, essay answers simply are not screened.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	roster repository.RosterRepository,
	grading GradingService,
	storage FileStorage,
	screener ai.Screener,
	events SubmissionEvents,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		assignments: assignments,
		roster:      roster,
		grading:     grading,
		storage:     storage,
		screener:    screener,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.SubmissionFilter{
		AssignmentID: filter.AssignmentID,
		CourseID:     filter.CourseID,
		StudentID:    filter.StudentID,
		Status:       filter.Status,
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// CreateOrUpdate records a student's submission to a published assignment.
// Exactly one submission row exists per (student, assignment) pair; submitting
// again mutates that row and consumes one attempt.
func (s *submissionService) CreateOrUpdate(ctx context.Context, assignmentID uint, payload dto.SubmitRequest, files []*multipart.FileHeader) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !assignment.IsPublished() {
		return dto.SubmissionResponse{}, ErrAssignmentNotOpen
	}

	enrolled, err := s.roster.IsEnrolled(ctx, assignment.CourseID, payload.StudentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !enrolled {
		return dto.SubmissionResponse{}, ErrNotEnrolled
	}

	now := s.now()
	isLate := assignment.IsPastDue(now)
	if isLate && !assignment.Settings.AllowLateSubmissions {
		return dto.SubmissionResponse{}, ErrDeadlinePassed
	}

	if assignment.Settings.RequireFileUpload && len(files) == 0 {
		return dto.SubmissionResponse{}, &InputError{Msg: "assignment requires a file upload"}
	}

	answers, err := s.buildAnswers(ctx, assignment, payload.Answers, files)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	var saved models.Submission
	err = s.submissions.InTx(ctx, func(repo repository.SubmissionRepository) error {
		existing, lookupErr := repo.GetByAssignmentAndStudent(ctx, assignment.ID, payload.StudentID)
		switch {
		case lookupErr == nil:
			if existing.Status == models.SubmissionStatusSubmitted || existing.Status == models.SubmissionStatusGraded ||
				existing.Status == models.SubmissionStatusLate || existing.Status == models.SubmissionStatusResubmitted {
				if !assignment.Settings.AllowResubmission {
					return ErrResubmissionNotAllowed
				}
				if existing.Attempt >= assignment.Attempts {
					return ErrAttemptLimitReached
				}
			}

			existing.Attempt++
			existing.SubmittedAt = &now
			existing.IsLate = isLate
			existing.Status = submissionStatus(isLate, existing.Attempt)
			// The previous grade was earned on answers that no longer
			// exist, so the row reads ungraded until a regrade. The
			// grade history keeps the old scores.
			existing.RawScore = 0
			existing.Score = 0
			existing.Percentage = 0
			existing.Grade = ""
			existing.Feedback = ""
			existing.GradedBy = nil
			existing.GradedAt = nil
			if err := repo.Update(ctx, &existing); err != nil {
				return &DatabaseError{Op: "submission update", Err: err}
			}
			if err := repo.ReplaceAnswers(ctx, existing.ID, answers); err != nil {
				return &DatabaseError{Op: "answer replace", Err: err}
			}
			existing.Answers = answers
			saved = existing
			return nil

		case errors.Is(lookupErr, gorm.ErrRecordNotFound):
			submission := models.Submission{
				AssignmentID: assignment.ID,
				StudentID:    payload.StudentID,
				CourseID:     assignment.CourseID,
				Answers:      answers,
				Status:       submissionStatus(isLate, 1),
				Attempt:      1,
				IsLate:       isLate,
				SubmittedAt:  &now,
				// MaxScore is captured here so later rubric edits never
				// change an already-recorded submission's percentage base.
				MaxScore: assignment.TotalPoints,
			}
			if err := repo.Create(ctx, &submission); err != nil {
				return &DatabaseError{Op: "submission create", Err: err}
			}
			saved = submission
			return nil

		default:
			return lookupErr
		}
	})
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.screenEssayAnswers(ctx, assignment, &saved)

	if assignment.Settings.AutoGrade {
		response, gradeErr := s.grading.AutoGradeMultipleChoice(ctx, saved.ID)
		if gradeErr != nil {
			s.logger.Warn().Err(gradeErr).Uint("submission_id", saved.ID).Msg("auto-grading failed, submission left ungraded")
		} else {
			return response, nil
		}
	}

	if s.events != nil {
		s.events.SubmissionsChanged(ctx, assignment.CourseID, assignment.ID)
	}

	created, err := s.submissions.GetByID(ctx, saved.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", created.ID).
		Uint("assignment_id", assignment.ID).
		Int("attempt", created.Attempt).
		Bool("is_late", created.IsLate).
		Msg("submission recorded")

	return dto.NewSubmissionResponse(created), nil
}

// buildAnswers converts the payload into answer rows, checking each answer
// against its question and pushing any uploaded files to external storage.
func (s *submissionService) buildAnswers(ctx context.Context, assignment models.Assignment, inputs []dto.AnswerInput, files []*multipart.FileHeader) ([]models.Answer, error) {
	var attachments []models.FileMetadata
	for _, file := range files {
		metadata, err := s.storeAttachment(ctx, assignment, file)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, metadata)
	}

	answers := make([]models.Answer, 0, len(inputs))
	for i, input := range inputs {
		question, ok := assignment.QuestionByID(input.QuestionID)
		if !ok {
			return nil, &InputError{Msg: fmt.Sprintf("answer %d references an unknown question", i+1)}
		}
		if question.Type != input.Type {
			return nil, &InputError{Msg: fmt.Sprintf("answer %d type %q does not match question type %q", i+1, input.Type, question.Type)}
		}

		answer := models.Answer{
			QuestionID:       input.QuestionID,
			Type:             input.Type,
			SelectedOptionID: input.SelectedOptionID,
			BoolValue:        input.BoolValue,
			TextValue:        s.sanitizer.Sanitize(input.TextValue),
			TimeSpent:        input.TimeSpent,
			Position:         i,
		}

		if input.Type == models.QuestionTypeFileUpload && len(attachments) > 0 {
			encoded, err := json.Marshal(attachments)
			if err != nil {
				return nil, fmt.Errorf("failed to encode attachment metadata: %w", err)
			}
			answer.Attachments = datatypes.JSON(encoded)
		}

		answers = append(answers, answer)
	}

	return answers, nil
}

func (s *submissionService) storeAttachment(ctx context.Context, assignment models.Assignment, file *multipart.FileHeader) (models.FileMetadata, error) {
	if assignment.Settings.MaxFileSize > 0 && file.Size > assignment.Settings.MaxFileSize {
		return models.FileMetadata{}, &InputError{Msg: fmt.Sprintf("file %q exceeds the maximum size of %d bytes", file.Filename, assignment.Settings.MaxFileSize)}
	}

	reader, err := file.Open()
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("failed to detect file type: %w", err)
	}
	if err := checkFileType(mime.String(), assignment.Settings.AllowedFileTypes); err != nil {
		return models.FileMetadata{}, err
	}

	if _, err := reader.Seek(0, 0); err != nil {
		return models.FileMetadata{}, fmt.Errorf("failed to rewind file: %w", err)
	}

	metadata, err := s.storage.Store(ctx, file.Filename, file.Size, mime.String(), reader)
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("failed to store file: %w", err)
	}

	return metadata, nil
}

func checkFileType(detected, allowed string) error {
	if strings.TrimSpace(allowed) == "" {
		return nil
	}

	for _, entry := range strings.Split(allowed, ",") {
		if strings.EqualFold(strings.TrimSpace(entry), detected) {
			return nil
		}
	}

	return &InputError{Msg: fmt.Sprintf("unsupported file type: %s", detected)}
}

// screenEssayAnswers runs the optional plagiarism screener over essay answers
// and stores the worst score. Failures are logged, never fatal: screening is
// advisory metadata, not part of the grading contract.
func (s *submissionService) screenEssayAnswers(ctx context.Context, assignment models.Assignment, submission *models.Submission) {
	if s.screener == nil {
		return
	}

	var worst *ai.ScreenResult
	for _, answer := range submission.Answers {
		if answer.Type != models.QuestionTypeEssay || strings.TrimSpace(answer.TextValue) == "" {
			continue
		}

		question, _ := assignment.QuestionByID(answer.QuestionID)
		result, err := s.screener.Screen(ctx, ai.ScreenInput{
			AssignmentTitle: assignment.Title,
			QuestionPrompt:  question.Prompt,
			AnswerText:      answer.TextValue,
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("plagiarism screening failed")
			continue
		}
		if worst == nil || result.Score > worst.Score {
			worst = &result
		}
	}

	if worst == nil {
		return
	}

	submission.PlagiarismScore = &worst.Score
	submission.PlagiarismReport = worst.Report
	if err := s.submissions.Update(ctx, submission); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist plagiarism result")
	}
}

func submissionStatus(isLate bool, attempt int) string {
	if isLate {
		return models.SubmissionStatusLate
	}
	if attempt > 1 {
		return models.SubmissionStatusResubmitted
	}
	return models.SubmissionStatusSubmitted
}
