package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campus-core-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	AssignmentID *uint
	CourseID     *uint
	StudentID    *uint
	Status       *string
}

// SubmissionRepository defines data operations for submissions. The unique
// (assignment_id, student_id) index makes the one-row-per-pair rule a storage
// guarantee rather than application bookkeeping.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	// GetByIDForUpdate locks the row for the duration of the surrounding
	// transaction so concurrent graders cannot interleave.
	GetByIDForUpdate(ctx context.Context, id uint) (models.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	ReplaceAnswers(ctx context.Context, submissionID uint, answers []models.Answer) error
	CreateHistory(ctx context.Context, history *models.SubmissionGradeHistory) error
	// InTx runs fn against a repository bound to a single database transaction.
	// Any error rolls back every write made inside fn.
	InTx(ctx context.Context, fn func(repo SubmissionRepository) error) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Assignment").
		Preload("Assignment.Questions").
		Preload("Assignment.Questions.Options").
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByIDForUpdate(ctx context.Context, id uint) (models.Submission, error) {
	query := r.baseQuery(ctx)

	// SQLite locks the whole database per transaction and rejects FOR UPDATE.
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "submissions"}})
	}

	var submission models.Submission
	if err := query.First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Answers", "Assignment", "Student").Save(submission).Error
}

func (r *submissionRepository) ReplaceAnswers(ctx context.Context, submissionID uint, answers []models.Answer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", submissionID).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].ID = 0
			answers[i].SubmissionID = submissionID
			answers[i].Position = i
		}
		if len(answers) == 0 {
			return nil
		}
		return tx.Create(&answers).Error
	})
}

func (r *submissionRepository) CreateHistory(ctx context.Context, history *models.SubmissionGradeHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

func (r *submissionRepository) InTx(ctx context.Context, fn func(repo SubmissionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&submissionRepository{db: tx})
	})
}
