package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/service"
	"github.com/noah-isme/campus-core-api/internal/utils"
	"github.com/noah-isme/campus-core-api/pkg/gradesheet"
)

// GradingHandler wires manual grading and bulk import HTTP routes.
type GradingHandler struct {
	grading service.GradingService
	bulk    service.BulkGradeService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(grading service.GradingService, bulk service.BulkGradeService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading: grading,
		bulk:    bulk,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group. The group is
// expected to be mounted under /assignments with the faculty role guard.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Put("/:id/submissions/:subId/grade", h.grade)
	router.Post("/:id/bulk-grade", h.bulkGrade)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	if _, err := parseUintParam(c, "id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	submissionID, err := parseUintParam(c, "subId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.grading.GradeManually(c.Context(), submissionID, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

// bulkGrade accepts a multipart form with a "grades" CSV file of
// student_id,score,feedback rows. The import is all-or-nothing.
func (h *GradingHandler) bulkGrade(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	fileHeader, err := c.FormFile("grades")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "grades file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "failed to open grades file")
	}
	defer file.Close()

	rows, err := gradesheet.Parse(file)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid grades file")
	}

	result, err := h.bulk.Import(c.Context(), assignmentID, rows, activityActorFromContext(c))
	if err != nil {
		var bulkErr *service.BulkValidationError
		if errors.As(err, &bulkErr) {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "grade import rejected", bulkErr.Rows)
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grades imported", result)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrScoreOutOfRange),
		errors.Is(err, service.ErrNotGradable):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isInputError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
