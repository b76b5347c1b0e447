package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/checkout"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// CheckoutHandler places orders and serves a customer's order history.
// Every route requires an authenticated customer.
type CheckoutHandler struct {
	BaseHandler
	checkout *checkout.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(svc *checkout.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc}
}

// PlaceOrder turns the customer's cart into an order. The amount is the
// cart total; clients retrying a request send the same Idempotency-Key.
//
//	POST /checkout
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadBinding(c, err)
		return
	}

	receipt, err := h.checkout.PlaceOrder(c.Request.Context(), checkout.PlaceOrderRequest{
		Owner:          middleware.GetOwner(c),
		Currency:       req.Currency,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: c.GetHeader(middleware.HeaderIdempotencyKey),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receipt)
}

// ListOrders returns the customer's orders, newest first
//
//	GET /orders
func (h *CheckoutHandler) ListOrders(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadBinding(c, err)
		return
	}
	customerID, _ := middleware.GetOwner(c).CustomerID()

	page, err := h.checkout.ListOrders(c.Request.Context(), customerID, req.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// GetOrder returns one of the customer's orders
//
//	GET /orders/:id
func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	orderID, err := pathID(c, "id", "order_id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	customerID, _ := middleware.GetOwner(c).CustomerID()

	receipt, err := h.checkout.GetOrder(c.Request.Context(), customerID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}
