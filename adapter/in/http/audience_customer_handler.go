package http

import (
	"audience_server/core/port/in"
	"audience_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// CustomerHandler handles customer and engagement requests.
type CustomerHandler struct {
	service in.CustomerService
}

// NewCustomerHandler creates a new customer handler.
func NewCustomerHandler(service in.CustomerService) *CustomerHandler {
	return &CustomerHandler{service: service}
}

// Register registers customer routes.
func (h *CustomerHandler) Register(router fiber.Router) {
	customers := router.Group("/customers")

	customers.Post("/", h.CreateCustomer)
	customers.Post("/engagement/recalculate", h.RecalculateEngagement)
	customers.Get("/:id", h.GetCustomer)
}

func (h *CustomerHandler) CreateCustomer(c *fiber.Ctx) error {
	var req in.CreateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	customer, err := h.service.CreateCustomer(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return CreatedResponse(c, customer)
}

func (h *CustomerHandler) GetCustomer(c *fiber.Ctx) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return err
	}

	customer, err := h.service.GetCustomer(c.UserContext(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, customer)
}

// RecalculateEngagement rescores every customer.
func (h *CustomerHandler) RecalculateEngagement(c *fiber.Ctx) error {
	updated, err := h.service.CalculateEngagementForAll(c.UserContext())
	if err != nil {
		return err
	}
	return SuccessResponse(c, fiber.Map{"customers_updated": updated})
}
