package handlers

import (
	"adforge/internal/models"
	"adforge/internal/services/order"
	"adforge/internal/services/spend"
	"adforge/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	orderService order.Service
	spendService *spend.Service
}

func NewOrderHandler(orderService order.Service, spendService *spend.Service) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		spendService: spendService,
	}
}

type createOrderRequest struct {
	ToolType    string      `json:"tool_type" validate:"required,max=64"`
	Input       models.JSON `json:"input"`
	Cost        int64       `json:"cost" validate:"required,min=1"`
	Description string      `json:"description" validate:"max=500"`
	Count       int         `json:"count" validate:"min=0,max=100"`
}

// CreateOrder creates an order and charges it. A rejected charge still
// returns the failed order next to the error.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var req createOrderRequest
	if ok, err := utils.ParseAndValidate(c, &req); !ok {
		return err
	}

	o, err := h.spendService.Spend(c.UserContext(), spend.Request{
		UserID:      claims.UserID,
		ToolType:    req.ToolType,
		Input:       req.Input,
		Cost:        req.Cost,
		Description: req.Description,
		Count:       req.Count,
	})
	if err != nil {
		if o != nil {
			c.Set("X-Order-ID", o.ID)
		}
		return respondError(c, err)
	}

	return utils.Created(c, fiber.Map{
		"order": o,
	})
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	p := utils.GetPagination(c, 1, order.DefaultListLimit)
	orders, err := h.orderService.GetUserOrders(c.UserContext(), claims.UserID, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	total, err := h.orderService.CountUserOrders(c.UserContext(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}
	p.SetTotal(total)

	return utils.Success(c, utils.NewPaginatedResponse(orders, p))
}

// GetOrder returns one of the caller's orders. Other users' orders look
// missing.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	o, err := h.orderService.GetOrderByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if o.UserID != claims.UserID && claims.Role != models.RoleAdmin {
		return utils.NotFound(c, "order not found")
	}

	return utils.Success(c, fiber.Map{
		"order": o,
	})
}
