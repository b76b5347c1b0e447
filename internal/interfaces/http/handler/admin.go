package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	appcart "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/application/checkout"
	"github.com/storefront/backend/internal/domain/validation"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// AdminHandler exposes cart maintenance and order administration.
// Routes are guarded by the admin token middleware.
type AdminHandler struct {
	BaseHandler
	integrity *appcart.IntegrityService
	checkout  *checkout.CheckoutService
	now       func() time.Time
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(integrity *appcart.IntegrityService, svc *checkout.CheckoutService) *AdminHandler {
	return &AdminHandler{integrity: integrity, checkout: svc, now: time.Now}
}

// VerifyCart audits the cart of one owner
//
//	GET /admin/carts/integrity?customer_id=|ip_address=
func (h *AdminHandler) VerifyCart(c *gin.Context) {
	owner, err := validation.UserIdentification(c.Query("customer_id"), c.Query("ip_address"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	report, err := h.integrity.Verify(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// RepairCart runs the selected repairs on one owner's cart. Each repair
// reports its own outcome; the response is 200 even when one failed.
//
//	POST /admin/carts/repair
func (h *AdminHandler) RepairCart(c *gin.Context) {
	var req dto.RepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadBinding(c, err)
		return
	}
	owner, err := validation.UserIdentification(req.CustomerID, req.IPAddress)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	report, err := h.integrity.Fix(c.Request.Context(), owner, req.Options())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// CleanupStaleGuests deletes guest lines older than the configured TTL
//
//	POST /admin/carts/cleanup
func (h *AdminHandler) CleanupStaleGuests(c *gin.Context) {
	n, err := h.integrity.CleanupStaleGuests(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.CleanupResponse{Removed: n, RanAt: h.now().UTC()})
}

// UpdateOrderStatus moves an order to a new status
//
//	PUT /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := pathID(c, "id", "order_id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadBinding(c, err)
		return
	}
	if err := h.checkout.UpdateOrderStatus(c.Request.Context(), orderID, req.Status); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"order_id": orderID, "status": req.Status})
}
