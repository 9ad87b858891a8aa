package http

import (
	"strconv"
	"time"

	"audience_server/core/domain"
	"audience_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Standardized Response Helpers
// =============================================================================

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse sends a standardized JSON success response
func SuccessResponse(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusOK, data)
}

// CreatedResponse sends a standardized 201 response
func CreatedResponse(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusCreated, data)
}

// AcceptedResponse sends a standardized 202 response
func AcceptedResponse(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusAccepted, data)
}

func respond(c *fiber.Ctx, status int, data any) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// ParamID parses a positive int64 path parameter.
func ParamID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInput(name, "must be a positive integer")
	}
	return id, nil
}

// QueryBool parses a boolean query parameter
func QueryBool(c *fiber.Ctx, key string) bool {
	val := c.Query(key)
	return val == "true" || val == "1"
}

// criteriaBody decodes criteria strictly so unknown keys are rejected.
func criteriaBody(raw []byte) (*domain.SegmentCriteria, error) {
	criteria, err := domain.ParseSegmentCriteria(raw)
	if err != nil {
		return nil, apperr.ValidationFailed(err.Error())
	}
	return &criteria, nil
}
