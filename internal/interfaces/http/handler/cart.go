package handler

import (
	"github.com/gin-gonic/gin"
	appcart "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/domain/validation"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// CartHandler serves the cart of the current owner. Guests and customers
// use the same routes; the identity middleware decides whose cart it is.
type CartHandler struct {
	BaseHandler
	carts *appcart.CartService
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts *appcart.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// GetCart returns the priced cart
//
//	GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	snap, err := h.carts.GetCart(c.Request.Context(), middleware.GetOwner(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewCartResponse(snap))
}

// AddItem adds a product to the cart; an existing line is incremented
//
//	POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadBinding(c, err)
		return
	}

	customerID, ip := ownerFields(middleware.GetOwner(c))
	in, err := validation.ValidateAddToCart(validation.AddToCartInput{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		CustomerID: customerID,
		IPAddress:  ip,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	line, err := h.carts.AddToCart(c.Request.Context(), in.ProductID, in.Quantity, in.Owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, line)
}

// GetItem returns one cart line
//
//	GET /cart/items/:product_id
func (h *CartHandler) GetItem(c *gin.Context) {
	productID, err := validation.ProductID(c.Param("product_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	line, err := h.carts.GetLine(c.Request.Context(), productID, middleware.GetOwner(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, line)
}

// UpdateItem sets the quantity of a line. Zero removes it.
//
//	PUT /cart/items/:product_id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, err := validation.ProductID(c.Param("product_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req dto.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadBinding(c, err)
		return
	}
	qty, err := validation.Quantity(req.Quantity, validation.QuantityOptions{AllowZero: true})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	line, err := h.carts.UpdateQuantity(c.Request.Context(), productID, qty, middleware.GetOwner(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if line == nil {
		h.Success(c, dto.RemovedResponse{Removed: 1})
		return
	}
	h.Success(c, line)
}

// RemoveItem deletes one line. Removing an absent line is not an error.
//
//	DELETE /cart/items/:product_id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, err := validation.ProductID(c.Param("product_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	n, err := h.carts.RemoveFromCart(c.Request.Context(), productID, middleware.GetOwner(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.RemovedResponse{Removed: n})
}

// EmptyCart deletes every line
//
//	DELETE /cart
func (h *CartHandler) EmptyCart(c *gin.Context) {
	n, err := h.carts.EmptyCart(c.Request.Context(), middleware.GetOwner(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.RemovedResponse{Removed: n})
}

// TransferGuestCart moves the guest cart of the caller's address into the
// authenticated customer's cart. Clients call it right after login.
//
//	POST /cart/transfer
func (h *CartHandler) TransferGuestCart(c *gin.Context) {
	owner := middleware.GetOwner(c)
	customerID, _ := owner.CustomerID()

	report, err := h.carts.TransferGuestCart(c.Request.Context(), middleware.GetClientIP(c), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	snap, err := h.carts.GetCart(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.TransferResponse{
		Report:  report,
		Partial: report.Partial(),
		Cart:    dto.NewCartResponse(snap),
	})
}
