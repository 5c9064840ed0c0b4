package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

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
	"github.com/noah-isme/campus-core-api/pkg/gradesheet"
)

// BulkGradeService ingests a parsed grade sheet for one assignment. Processing
// is validate-all-then-commit-all: one bad row rejects the entire import so an
// operator typo can never leave an assignment half graded.
type BulkGradeService interface {
	Import(ctx context.Context, assignmentID uint, rows []gradesheet.Row, actor ActivityActor) (dto.BulkGradeResult, error)
}

type bulkGradeService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	roster      repository.RosterRepository
	applier     GradeApplier
	activity    ActivityRecorder
	events      SubmissionEvents
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewBulkGradeService constructs the bulk grade importer.
func NewBulkGradeService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	roster repository.RosterRepository,
	applier GradeApplier,
	activity ActivityRecorder,
	events SubmissionEvents,
	logger zerolog.Logger,
) BulkGradeService {
	return &bulkGradeService{
		submissions: submissions,
		assignments: assignments,
		roster:      roster,
		applier:     applier,
		activity:    activity,
		events:      events,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "bulk_grade_service").Logger(),
	}
}

type validatedRow struct {
	submissionID uint
	score        float64
	feedback     string
}

func (s *bulkGradeService) Import(ctx context.Context, assignmentID uint, rows []gradesheet.Row, actor ActivityActor) (dto.BulkGradeResult, error) {
	tracer := otel.Tracer("github.com/noah-isme/campus-core-api/internal/service/bulk_grade")
	ctx, span := tracer.Start(ctx, "grading.bulk_import")
	span.SetAttributes(
		attribute.Int64("import.assignment_id", int64(assignmentID)),
		attribute.Int("import.row_count", len(rows)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		observability.BulkImportDuration().Observe(time.Since(start).Seconds())
	}()

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assignment_not_found")
			return dto.BulkGradeResult{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		return dto.BulkGradeResult{}, err
	}

	if len(rows) == 0 {
		return dto.BulkGradeResult{}, &BulkValidationError{Rows: []string{"grade sheet contains no rows"}}
	}

	validated, rowErrors := s.validateRows(ctx, assignment, rows)
	if len(rowErrors) > 0 {
		span.SetAttributes(attribute.Int("import.invalid_rows", len(rowErrors)))
		span.SetStatus(codes.Error, "validation_failed")
		observability.BulkImportRows().WithLabelValues("rejected").Add(float64(len(rows)))
		return dto.BulkGradeResult{GradedCount: 0, Errors: rowErrors}, &BulkValidationError{Rows: rowErrors}
	}

	// Every row passed validation; apply them in one transaction so either
	// all grades persist or none do.
	gradedBy := actor.ID
	err = s.submissions.InTx(ctx, func(repo repository.SubmissionRepository) error {
		for _, row := range validated {
			if _, applyErr := s.applier.ApplyGrade(ctx, repo, row.submissionID, row.score, row.feedback, &gradedBy); applyErr != nil {
				return applyErr
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit_failed")
		observability.BulkImportRows().WithLabelValues("failed").Add(float64(len(rows)))
		var dbErr *DatabaseError
		if errors.As(err, &dbErr) {
			return dto.BulkGradeResult{}, err
		}
		return dto.BulkGradeResult{}, &DatabaseError{Op: "bulk grade commit", Err: err}
	}

	observability.BulkImportRows().WithLabelValues("applied").Add(float64(len(validated)))
	span.SetAttributes(attribute.Int("import.graded_count", len(validated)))

	if s.activity != nil {
		entityID := assignment.ID
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "grades.imported",
			EntityType: "assignment",
			EntityID:   &entityID,
			Metadata: map[string]interface{}{
				"assignment_id": assignment.ID,
				"graded_count":  len(validated),
			},
		})
	}

	if s.events != nil {
		s.events.SubmissionsChanged(ctx, assignment.CourseID, assignment.ID)
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Int("graded_count", len(validated)).
		Msg("bulk grade import applied")

	return dto.BulkGradeResult{GradedCount: len(validated)}, nil
}

// validateRows checks every row independently and accumulates errors instead
// of stopping at the first failure, so the operator sees the full defect list.
func (s *bulkGradeService) validateRows(ctx context.Context, assignment models.Assignment, rows []gradesheet.Row) ([]validatedRow, []string) {
	var validated []validatedRow
	var rowErrors []string

	for i, row := range rows {
		rowNum := i + 1

		studentID, err := strconv.ParseUint(strings.TrimSpace(row.StudentID), 10, 64)
		if err != nil || studentID == 0 {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Invalid student id %q", rowNum, row.StudentID))
			continue
		}

		score, err := strconv.ParseFloat(strings.TrimSpace(row.Score), 64)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Score %q is not a number", rowNum, row.Score))
			continue
		}
		if score < 0 || score > assignment.TotalPoints {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Score must be between 0 and %g", rowNum, assignment.TotalPoints))
			continue
		}

		enrolled, err := s.roster.IsEnrolled(ctx, assignment.CourseID, uint(studentID))
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Failed to verify enrollment for student %d", rowNum, studentID))
			continue
		}
		if !enrolled {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Student %d is not enrolled in the course", rowNum, studentID))
			continue
		}

		submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignment.ID, uint(studentID))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rowErrors = append(rowErrors, fmt.Sprintf("Row %d: No submission found for student %d", rowNum, studentID))
			} else {
				rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Failed to load submission for student %d", rowNum, studentID))
			}
			continue
		}

		// A submission keeps the point total it was recorded against, so a
		// rubric edit can leave its ceiling below the assignment's current
		// total. Check the row against the ceiling ApplyGrade will enforce.
		if score > submission.MaxScore+scoreEpsilon {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: Score must be between 0 and %g for student %d", rowNum, submission.MaxScore, studentID))
			continue
		}

		validated = append(validated, validatedRow{
			submissionID: submission.ID,
			score:        score,
			feedback:     s.sanitizer.Sanitize(strings.TrimSpace(row.Feedback)),
		})
	}

	return validated, rowErrors
}
