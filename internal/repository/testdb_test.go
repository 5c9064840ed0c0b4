package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/campus-core-api/internal/models"
)

// setupTestDB opens a per-test in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Course{},
		&models.Enrollment{},
		&models.Student{},
		&models.Assignment{},
		&models.Question{},
		&models.QuestionOption{},
		&models.RubricCriterion{},
		&models.Submission{},
		&models.Answer{},
		&models.SubmissionGradeHistory{},
		&models.ActivityLog{},
	))

	return db
}

func seedCourse(t *testing.T, db *gorm.DB, code string) models.Course {
	t.Helper()

	course := models.Course{Code: code, Title: "Seeded Course", FacultyID: 9}
	require.NoError(t, db.Create(&course).Error)
	return course
}

func seedStudent(t *testing.T, db *gorm.DB, name string) models.Student {
	t.Helper()

	student := models.Student{Name: name, Email: strings.ToLower(name) + "@example.edu"}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedAssignment(t *testing.T, db *gorm.DB, courseID uint, title string) models.Assignment {
	t.Helper()

	assignment := models.Assignment{
		CourseID:    courseID,
		FacultyID:   9,
		Title:       title,
		Type:        models.AssignmentTypeAssignment,
		Status:      models.AssignmentStatusPublished,
		DueDate:     time.Now().Add(48 * time.Hour),
		Attempts:    2,
		TotalPoints: 100,
		Rubric: []models.RubricCriterion{
			{Name: "Correctness", Points: 100, Weight: 100, Position: 0},
		},
	}
	require.NoError(t, db.Create(&assignment).Error)
	return assignment
}
