package http

import (
	"audience_server/core/domain"
	"audience_server/core/port/in"
	"audience_server/infra/middleware"
	"audience_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// SegmentHandler handles segment, refresh and suggestion requests.
type SegmentHandler struct {
	service      in.SegmentationService
	suggestLimit fiber.Handler
}

// NewSegmentHandler creates a new segment handler.
func NewSegmentHandler(service in.SegmentationService) *SegmentHandler {
	return &SegmentHandler{service: service}
}

// WithSuggestionLimit guards the suggestion endpoint with limit.
func (h *SegmentHandler) WithSuggestionLimit(limit fiber.Handler) *SegmentHandler {
	h.suggestLimit = limit
	return h
}

// Register registers segment routes.
func (h *SegmentHandler) Register(router fiber.Router) {
	segments := router.Group("/segments")

	segments.Post("/", h.CreateSegment)
	segments.Get("/", h.ListSegments)
	segments.Post("/preview", h.PreviewCriteria)

	// Refresh
	segments.Post("/refresh", h.Refresh)
	segments.Get("/refresh/runs", h.ListRefreshRuns)

	// Suggestions
	if h.suggestLimit != nil {
		segments.Post("/suggestions", h.suggestLimit, h.Suggest)
	} else {
		segments.Post("/suggestions", h.Suggest)
	}

	segments.Get("/:id", h.GetSegment)
	segments.Post("/:id/apply", h.ApplySegment)
}

type createSegmentBody struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Criteria    json.RawMessage `json:"criteria"`
	AIGenerated bool            `json:"ai_generated"`
}

// CreateSegment creates a segment and applies it immediately.
func (h *SegmentHandler) CreateSegment(c *fiber.Ctx) error {
	var body createSegmentBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	req := &in.CreateSegmentRequest{
		Name:        body.Name,
		Description: body.Description,
		AIGenerated: body.AIGenerated,
	}
	if len(body.Criteria) > 0 {
		criteria, err := criteriaBody(body.Criteria)
		if err != nil {
			return err
		}
		req.Criteria = criteria
	}

	segment, err := h.service.CreateSegment(c.UserContext(), req)
	if err != nil {
		return err
	}
	return CreatedResponse(c, segment)
}

// ListSegments returns every segment with its live member count.
func (h *SegmentHandler) ListSegments(c *fiber.Ctx) error {
	segments, err := h.service.ListSegments(c.UserContext())
	if err != nil {
		return err
	}
	return SuccessResponse(c, segments)
}

// GetSegment returns one segment and a page of its members.
func (h *SegmentHandler) GetSegment(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return err
	}

	detail, err := h.service.GetSegment(c.UserContext(), id, c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return SuccessResponse(c, detail)
}

// ApplySegment re-evaluates one segment against the population.
func (h *SegmentHandler) ApplySegment(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.service.ApplySegment(c.UserContext(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// PreviewCriteria counts matches for a criteria body without persisting.
func (h *SegmentHandler) PreviewCriteria(c *fiber.Ctx) error {
	criteria, err := criteriaBody(c.Body())
	if err != nil {
		return err
	}

	result, err := h.service.PreviewCriteria(c.UserContext(), *criteria)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// Refresh runs a full refresh pass, or enqueues one with ?async=true.
func (h *SegmentHandler) Refresh(c *fiber.Ctx) error {
	if QueryBool(c, "async") {
		jobID, err := h.service.EnqueueRefresh(c.UserContext(), middleware.Subject(c))
		if err != nil {
			return err
		}
		return AcceptedResponse(c, fiber.Map{"job_id": jobID})
	}

	results, err := h.service.RefreshSegmentation(c.UserContext(), domain.TriggerAPI)
	if err != nil {
		return err
	}
	return SuccessResponse(c, fiber.Map{
		"segments": results,
		"total":    len(results),
	})
}

// ListRefreshRuns returns the recent refresh history.
func (h *SegmentHandler) ListRefreshRuns(c *fiber.Ctx) error {
	runs, err := h.service.ListRefreshRuns(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return SuccessResponse(c, runs)
}

// Suggest returns AI-proposed segments for review.
func (h *SegmentHandler) Suggest(c *fiber.Ctx) error {
	suggestions, err := h.service.AnalyzeForSegmentSuggestions(c.UserContext())
	if err != nil {
		return err
	}
	return SuccessResponse(c, suggestions)
}
