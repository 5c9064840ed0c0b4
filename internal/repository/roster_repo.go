package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/campus-core-api/internal/models"
)

// RosterRepository exposes course enrollment lookups. It is the boundary the
// grading engine uses to answer "who is in this course" and "how many".
type RosterRepository interface {
	CountEnrolled(ctx context.Context, courseID uint) (int64, error)
	ListEnrolledStudentIDs(ctx context.Context, courseID uint) ([]uint, error)
	IsEnrolled(ctx context.Context, courseID, studentID uint) (bool, error)
	GetCourse(ctx context.Context, courseID uint) (models.Course, error)
}

type rosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository constructs the roster repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) CountEnrolled(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

func (r *rosterRepository) ListEnrolledStudentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *rosterRepository) IsEnrolled(ctx context.Context, courseID, studentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Where("student_id = ?", studentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *rosterRepository) GetCourse(ctx context.Context, courseID uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}
