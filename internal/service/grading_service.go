package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/observability"
	"github.com/noah-isme/campus-core-api/internal/repository"
)

const scoreEpsilon = 1e-6

// GradeApplier applies one grade against a repository handle. The bulk
// importer calls it with a transaction-bound repository so every row of an
// import commits or rolls back together.
type GradeApplier interface {
	ApplyGrade(ctx context.Context, repo repository.SubmissionRepository, submissionID uint, rawScore float64, feedback string, gradedBy *uint) (models.Submission, error)
}

// GradingService computes scores for submissions: manual entry, automatic
// multiple-choice grading, and the percentage/letter derivations.
type GradingService interface {
	GradeApplier
	GradeManually(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	AutoGradeMultipleChoice(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      SubmissionEvents
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(submissions repository.SubmissionRepository, validate *validator.Validate, activity ActivityRecorder, events SubmissionEvents, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissions,
		validator:   validate,
		activity:    activity,
		events:      events,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) GradeManually(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/campus-core-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.manual")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	feedback := s.sanitizer.Sanitize(strings.TrimSpace(payload.Feedback))
	gradedBy := actor.ID

	var graded models.Submission
	err := s.submissions.InTx(ctx, func(repo repository.SubmissionRepository) error {
		var applyErr error
		graded, applyErr = s.ApplyGrade(ctx, repo, submissionID, payload.Score, feedback, &gradedBy)
		return applyErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_failed")
		observability.GradingOutcomes().WithLabelValues("manual", "error").Inc()
		return dto.SubmissionResponse{}, err
	}

	observability.GradingOutcomes().WithLabelValues("manual", "ok").Inc()
	span.SetAttributes(
		attribute.Float64("grading.score", graded.Score),
		attribute.String("grading.grade", graded.Grade),
	)

	s.recordGradeActivity(ctx, actor, graded, "submission.graded")
	if s.events != nil {
		s.events.SubmissionsChanged(ctx, graded.CourseID, graded.AssignmentID)
	}

	return dto.NewSubmissionResponse(graded), nil
}

// ApplyGrade validates the raw score against the captured max score, applies
// the late penalty once, derives percentage and letter grade, and persists the
// result. It is deliberately free of event and audit side effects so callers
// can batch it inside a transaction.
func (s *gradingService) ApplyGrade(ctx context.Context, repo repository.SubmissionRepository, submissionID uint, rawScore float64, feedback string, gradedBy *uint) (models.Submission, error) {
	submission, err := repo.GetByIDForUpdate(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, &DatabaseError{Op: "submission lookup", Err: err}
	}

	if rawScore < 0 || rawScore > submission.MaxScore+scoreEpsilon {
		return models.Submission{}, ErrScoreOutOfRange
	}

	// Regrading with an identical raw score and feedback is a no-op beyond
	// refreshing the grader identity, so the penalty can never compound.
	identical := submission.IsGraded() &&
		math.Abs(submission.RawScore-rawScore) < scoreEpsilon &&
		strings.TrimSpace(submission.Feedback) == feedback
	if identical && gradedBy != nil && submission.GradedBy != nil && *submission.GradedBy == *gradedBy {
		return submission, nil
	}

	s.finalizeScore(&submission, rawScore)
	submission.Feedback = feedback
	submission.GradedBy = gradedBy
	gradedAt := s.now()
	submission.GradedAt = &gradedAt
	submission.Status = models.SubmissionStatusGraded

	if err := repo.Update(ctx, &submission); err != nil {
		return models.Submission{}, &DatabaseError{Op: "grade update", Err: err}
	}

	history := models.SubmissionGradeHistory{
		SubmissionID: submission.ID,
		RawScore:     submission.RawScore,
		Score:        submission.Score,
		Feedback:     feedback,
		GradedAt:     gradedAt,
	}
	if gradedBy != nil {
		history.GradedBy = *gradedBy
	}
	if err := repo.CreateHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist grading history")
	}

	return submission, nil
}

func (s *gradingService) AutoGradeMultipleChoice(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/campus-core-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.auto_mc")
	span.SetAttributes(attribute.Int64("grading.submission_id", int64(submissionID)))
	defer span.End()

	var graded models.Submission
	err := s.submissions.InTx(ctx, func(repo repository.SubmissionRepository) error {
		submission, err := repo.GetByIDForUpdate(ctx, submissionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return &DatabaseError{Op: "submission lookup", Err: err}
		}

		// Only multiple-choice answers are scored here. Free-response and
		// file-upload questions stay at zero until a human grades them, even
		// when auto-grading is enabled for the assignment.
		raw := scoreMultipleChoice(submission.Assignment, submission.Answers)

		s.finalizeScore(&submission, raw)
		gradedAt := s.now()
		submission.GradedAt = &gradedAt
		submission.GradedBy = nil
		submission.Status = models.SubmissionStatusGraded

		if err := repo.Update(ctx, &submission); err != nil {
			return &DatabaseError{Op: "auto-grade update", Err: err}
		}

		history := models.SubmissionGradeHistory{
			SubmissionID: submission.ID,
			RawScore:     submission.RawScore,
			Score:        submission.Score,
			GradedAt:     gradedAt,
		}
		if err := repo.CreateHistory(ctx, &history); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist grading history")
		}

		graded = submission
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auto_grade_failed")
		observability.GradingOutcomes().WithLabelValues("auto", "error").Inc()
		return dto.SubmissionResponse{}, err
	}

	observability.GradingOutcomes().WithLabelValues("auto", "ok").Inc()
	span.SetAttributes(
		attribute.Float64("grading.score", graded.Score),
		attribute.String("grading.grade", graded.Grade),
	)

	if s.events != nil {
		s.events.SubmissionsChanged(ctx, graded.CourseID, graded.AssignmentID)
	}

	return dto.NewSubmissionResponse(graded), nil
}

// finalizeScore sets RawScore, the penalised Score, and the derived percentage
// and letter grade. The late penalty multiplies the raw score exactly once.
func (s *gradingService) finalizeScore(submission *models.Submission, rawScore float64) {
	submission.RawScore = rawScore

	effective := rawScore
	settings := submission.Assignment.Settings
	if submission.IsLate && settings.AllowLateSubmissions && settings.LatePenalty > 0 {
		effective = rawScore * (1 - settings.LatePenalty/100)
	}
	submission.Score = effective

	if submission.MaxScore > 0 {
		submission.Percentage = submission.Score / submission.MaxScore * 100
	} else {
		submission.Percentage = 0
	}
	submission.Grade = models.LetterGrade(submission.Percentage)
}

func scoreMultipleChoice(assignment models.Assignment, answers []models.Answer) float64 {
	total := 0.0
	for _, answer := range answers {
		if answer.Type != models.QuestionTypeMultipleChoice || answer.SelectedOptionID == nil {
			continue
		}

		question, ok := assignment.QuestionByID(answer.QuestionID)
		if !ok || question.Type != models.QuestionTypeMultipleChoice {
			continue
		}

		correct, ok := question.CorrectOption()
		if ok && correct.ID == *answer.SelectedOptionID {
			total += question.Points
		}
	}
	return total
}

func (s *gradingService) recordGradeActivity(ctx context.Context, actor ActivityActor, submission models.Submission, action string) {
	if s.activity == nil {
		return
	}

	metadata := map[string]interface{}{
		"submission_id": submission.ID,
		"assignment_id": submission.AssignmentID,
		"student_id":    submission.StudentID,
		"raw_score":     submission.RawScore,
		"score":         submission.Score,
		"grade":         submission.Grade,
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "submission",
		EntityID:   &submission.ID,
		Metadata:   metadata,
	})
}
