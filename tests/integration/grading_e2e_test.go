package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/campus-core-api/internal/config"
	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/handler"
	"github.com/noah-isme/campus-core-api/internal/middleware"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
	"github.com/noah-isme/campus-core-api/internal/router"
	"github.com/noah-isme/campus-core-api/internal/service"
)

type integrationStorage struct{}

func (integrationStorage) Store(_ context.Context, filename string, size int64, mimeType string, _ io.Reader) (models.FileMetadata, error) {
	return models.FileMetadata{
		Filename: filename,
		URL:      "https://files.test/" + filename,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

func setupGradingApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Course{}, &models.Enrollment{}, &models.Student{},
		&models.Assignment{}, &models.Question{}, &models.QuestionOption{}, &models.RubricCriterion{},
		&models.Submission{}, &models.Answer{}, &models.SubmissionGradeHistory{},
		&models.ActivityLog{},
	))

	redisServer := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	log := zerolog.New(io.Discard)

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, log)
	events := service.NewSubmissionEvents(nil, "", cache, log)
	gradingService := service.NewGradingService(submissionRepo, validate, activityService, events, log)
	assignmentService := service.NewAssignmentService(assignmentRepo, rosterRepo, validate, activityService, log)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, rosterRepo, gradingService, integrationStorage{}, nil, events, validate, log)
	bulkService := service.NewBulkGradeService(submissionRepo, assignmentRepo, rosterRepo, gradingService, activityService, events, log)
	analyticsService := service.NewAnalyticsService(submissionRepo, assignmentRepo, rosterRepo, cache, time.Minute, log)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &log})

	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, log),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, log),
		GradingHandler:    handler.NewGradingHandler(gradingService, bulkService, log),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, log),
		ActivityHandler:   handler.NewActivityHandler(activityService, log),
		JWTMiddleware: func(c *fiber.Ctx) error {
			role := c.Get("X-Test-Role")
			if role == "" {
				role = "student"
			}
			userID, _ := strconv.Atoi(c.Get("X-Test-User"))
			if userID == 0 {
				userID = 101
			}
			c.Locals("user_id", uint(userID))
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return app, db
}

func seedRoster(t *testing.T, db *gorm.DB) models.Course {
	t.Helper()

	course := models.Course{Code: "CS-101", Title: "Intro to Computing", FacultyID: 9}
	require.NoError(t, db.Create(&course).Error)

	for id, name := range map[uint]string{101: "Jamie", 102: "Casey"} {
		require.NoError(t, db.Create(&models.Student{ID: id, Name: name, Email: fmt.Sprintf("student%d@example.edu", id)}).Error)
		require.NoError(t, db.Create(&models.Enrollment{CourseID: course.ID, StudentID: id}).Error)
	}

	return course
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}, userID int, role string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", strconv.Itoa(userID))
	req.Header.Set("X-Test-Role", role)

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func TestAssignmentGradingEndToEnd(t *testing.T) {
	app, db := setupGradingApp(t)
	course := seedRoster(t, db)

	// Step 1: faculty creates the assignment.
	createResp := doJSON(t, app, http.MethodPost, "/api/v1/assignments", map[string]interface{}{
		"course_id":   course.ID,
		"title":       "Case Study Analysis",
		"description": "Analyze the assigned case study",
		"due_date":    time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"rubric": []map[string]interface{}{
			{"name": "Analysis", "points": 60, "weight": 60},
			{"name": "Writing", "points": 40, "weight": 40},
		},
		"questions": []map[string]interface{}{
			{"type": "essay", "prompt": "Summarize the core issue", "points": 100},
		},
	}, 9, "faculty")
	require.Equal(t, fiber.StatusCreated, createResp.StatusCode)

	var created struct {
		Success bool                   `json:"success"`
		Data    dto.AssignmentResponse `json:"data"`
	}
	decode(t, createResp, &created)
	require.True(t, created.Success)
	require.Equal(t, "draft", created.Data.Status)
	require.InDelta(t, 100.0, created.Data.TotalPoints, 1e-9)

	assignmentID := int(created.Data.ID)
	questionID := created.Data.Questions[0].ID

	// Step 2: students cannot submit until the assignment is published.
	submitPayload := map[string]interface{}{
		"student_id": 101,
		"answers": []map[string]interface{}{
			{"question_id": questionID, "type": "essay", "text_value": "The core issue is scaling."},
		},
	}
	earlyResp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/assignments/%d/submit", assignmentID), submitPayload, 101, "student")
	require.Equal(t, fiber.StatusBadRequest, earlyResp.StatusCode)
	earlyResp.Body.Close()

	publishResp := doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/assignments/%d/status", assignmentID),
		map[string]interface{}{"status": "published"}, 9, "faculty")
	require.Equal(t, fiber.StatusOK, publishResp.StatusCode)
	publishResp.Body.Close()

	// Step 3: both students submit.
	submitResp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/assignments/%d/submit", assignmentID), submitPayload, 101, "student")
	require.Equal(t, fiber.StatusCreated, submitResp.StatusCode)

	var submitted struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decode(t, submitResp, &submitted)
	require.True(t, submitted.Success)
	require.Equal(t, "submitted", submitted.Data.Status)
	require.Equal(t, 1, submitted.Data.Attempt)

	otherResp := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v1/assignments/%d/submit", assignmentID), map[string]interface{}{
		"student_id": 102,
		"answers": []map[string]interface{}{
			{"question_id": questionID, "type": "essay", "text_value": "Throughput is the bottleneck."},
		},
	}, 102, "student")
	require.Equal(t, fiber.StatusCreated, otherResp.StatusCode)
	otherResp.Body.Close()

	// Step 4: faculty grades the first submission manually.
	gradeResp := doJSON(t, app, http.MethodPut,
		fmt.Sprintf("/api/v1/assignments/%d/submissions/%d/grade", assignmentID, submitted.Data.ID),
		map[string]interface{}{"score": 85, "feedback": "Strong analysis"}, 9, "faculty")
	require.Equal(t, fiber.StatusOK, gradeResp.StatusCode)

	var graded struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decode(t, gradeResp, &graded)
	require.True(t, graded.Success)
	require.Equal(t, "graded", graded.Data.Status)
	require.InDelta(t, 85.0, graded.Data.Score, 1e-6)
	require.Equal(t, "B", graded.Data.Grade)
	require.Equal(t, "Strong analysis", graded.Data.Feedback)

	// Step 5: students cannot grade.
	forbidden := doJSON(t, app, http.MethodPut,
		fmt.Sprintf("/api/v1/assignments/%d/submissions/%d/grade", assignmentID, submitted.Data.ID),
		map[string]interface{}{"score": 100}, 101, "student")
	require.Equal(t, fiber.StatusForbidden, forbidden.StatusCode)
	forbidden.Body.Close()

	// Step 6: faculty bulk imports the remaining grades.
	var sheet bytes.Buffer
	writer := multipart.NewWriter(&sheet)
	part, err := writer.CreateFormFile("grades", "grades.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("student_id,score,feedback\n102,95,Excellent work\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	bulkReq := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/assignments/%d/bulk-grade", assignmentID), &sheet)
	bulkReq.Header.Set("Content-Type", writer.FormDataContentType())
	bulkReq.Header.Set("X-Test-User", "9")
	bulkReq.Header.Set("X-Test-Role", "faculty")
	bulkResp, err := app.Test(bulkReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, bulkResp.StatusCode)

	var bulk struct {
		Success bool                `json:"success"`
		Data    dto.BulkGradeResult `json:"data"`
	}
	decode(t, bulkResp, &bulk)
	require.True(t, bulk.Success)
	require.Equal(t, 1, bulk.Data.GradedCount)

	// Step 7: faculty reads the assignment rollup.
	statsResp := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/analytics/assignments/%d", assignmentID), nil, 9, "faculty")
	require.Equal(t, fiber.StatusOK, statsResp.StatusCode)

	var stats struct {
		Success bool                        `json:"success"`
		Data    dto.AssignmentStatsResponse `json:"data"`
	}
	decode(t, statsResp, &stats)
	require.True(t, stats.Success)
	require.Equal(t, int64(2), stats.Data.TotalSubmissions)
	require.Equal(t, int64(2), stats.Data.GradedSubmissions)
	require.InDelta(t, 90.0, stats.Data.AverageScore, 1e-6)
	require.InDelta(t, 100.0, stats.Data.CompletionRate, 1e-6)
	require.Equal(t, int64(1), stats.Data.GradeDistribution["A"])
	require.Equal(t, int64(1), stats.Data.GradeDistribution["B"])

	// Step 8: students only see their own submissions.
	listResp := doJSON(t, app, http.MethodGet, "/api/v1/submissions", nil, 101, "student")
	require.Equal(t, fiber.StatusOK, listResp.StatusCode)

	var listing struct {
		Success bool                     `json:"success"`
		Data    []dto.SubmissionResponse `json:"data"`
	}
	decode(t, listResp, &listing)
	require.True(t, listing.Success)
	require.Len(t, listing.Data, 1)
	require.Equal(t, uint(101), listing.Data[0].StudentID)
}
