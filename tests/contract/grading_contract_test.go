package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/handler"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
	"github.com/noah-isme/campus-core-api/internal/service"
	"github.com/noah-isme/campus-core-api/pkg/gradesheet"
)

type stubGradingService struct{}

func (stubGradingService) GradeManually(context.Context, uint, dto.GradeSubmissionRequest, service.ActivityActor) (dto.SubmissionResponse, error) {
	return dto.SubmissionResponse{}, nil
}

func (stubGradingService) AutoGradeMultipleChoice(context.Context, uint) (dto.SubmissionResponse, error) {
	return dto.SubmissionResponse{}, nil
}

func (stubGradingService) ApplyGrade(context.Context, repository.SubmissionRepository, uint, float64, string, *uint) (models.Submission, error) {
	return models.Submission{}, nil
}

type stubBulkGradeService struct {
	result dto.BulkGradeResult
	err    error
}

func (s stubBulkGradeService) Import(context.Context, uint, []gradesheet.Row, service.ActivityActor) (dto.BulkGradeResult, error) {
	return s.result, s.err
}

func bulkGradeSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "bulk_grade.schema.json"))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func bulkGradeRequest(t *testing.T, sheet string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("grades", "grades.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(sheet))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments/10/bulk-grade", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newBulkGradeApp(bulk service.BulkGradeService) *fiber.App {
	gradingHandler := handler.NewGradingHandler(stubGradingService{}, bulk, zerolog.Nop())

	app := fiber.New()
	gradingHandler.Register(app.Group("/api/v1/assignments"))
	return app
}

func TestBulkGradeSuccessContract(t *testing.T) {
	schema := bulkGradeSchema(t)
	app := newBulkGradeApp(stubBulkGradeService{result: dto.BulkGradeResult{GradedCount: 3}})

	resp, err := app.Test(bulkGradeRequest(t, "student_id,score\n101,88\n102,74\n103,91\n"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestBulkGradeRejectionContract(t *testing.T) {
	schema := bulkGradeSchema(t)
	app := newBulkGradeApp(stubBulkGradeService{
		err: &service.BulkValidationError{Rows: []string{
			"Row 2: Score must be between 0 and 100",
			"Row 3: No submission found for student 104",
		}},
	})

	resp, err := app.Test(bulkGradeRequest(t, "student_id,score\n101,88\n102,150\n104,70\n"))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
