package handler

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-core-api/internal/dto"
	"github.com/noah-isme/campus-core-api/internal/service"
	"github.com/noah-isme/campus-core-api/internal/utils"
)

// SubmissionHandler wires submission HTTP routes.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(svc service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: svc,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group. The group is
// expected to be mounted under /assignments.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/:id/submit", h.submit)
	router.Get("/:id/submissions", h.listForAssignment)
}

// RegisterSubmissions attaches the standalone submission read endpoints.
func (h *SubmissionHandler) RegisterSubmissions(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

// submit accepts either a JSON body or a multipart form with a "payload" JSON
// field plus "files" attachments for file-upload questions.
func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload, files, err := parseSubmitRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	// Students may only submit as themselves; the token identity wins.
	if role := userRoleFromContext(c); role == "student" {
		payload.StudentID = userIDFromContext(c)
	}

	submission, err := h.service.CreateOrUpdate(c.Context(), assignmentID, payload, files)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", submission)
}

func (h *SubmissionHandler) listForAssignment(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var filter dto.SubmissionFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	filter.AssignmentID = &assignmentID

	// Students only ever see their own submissions.
	if role := userRoleFromContext(c); role == "student" {
		studentID := userIDFromContext(c)
		filter.StudentID = &studentID
	}

	submissions, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var filter dto.SubmissionFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	// Students only ever see their own submissions.
	if role := userRoleFromContext(c); role == "student" {
		studentID := userIDFromContext(c)
		filter.StudentID = &studentID
	}

	submissions, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	if role := userRoleFromContext(c); role == "student" && submission.StudentID != userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func parseSubmitRequest(c *fiber.Ctx) (dto.SubmitRequest, []*multipart.FileHeader, error) {
	var payload dto.SubmitRequest

	contentType := string(c.Request().Header.ContentType())
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		raw := c.FormValue("payload")
		if raw == "" {
			return payload, nil, errors.New("payload field is required")
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return payload, nil, errors.New("invalid payload JSON")
		}

		form, err := c.MultipartForm()
		if err != nil {
			return payload, nil, errors.New("invalid multipart form")
		}
		return payload, form.File["files"], nil
	}

	if err := c.BodyParser(&payload); err != nil {
		return payload, nil, errors.New("invalid request body")
	}
	return payload, nil, nil
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrAttemptLimitReached):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAssignmentNotOpen),
		errors.Is(err, service.ErrDeadlinePassed),
		errors.Is(err, service.ErrNotEnrolled),
		errors.Is(err, service.ErrResubmissionNotAllowed):
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
