package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// ProductListRequest holds the catalog browse query parameters
type ProductListRequest struct {
	dto.ListRequest
	CategoryID *int64 `form:"category_id" binding:"omitempty,min=1"`
	BrandID    *int64 `form:"brand_id" binding:"omitempty,min=1"`
}

// CatalogHandler serves read-only product browsing
type CatalogHandler struct {
	BaseHandler
	products *appcatalog.ProductService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(products *appcatalog.ProductService) *CatalogHandler {
	return &CatalogHandler{products: products}
}

// ListProducts returns a page of products
//
//	GET /products?search=&category_id=&brand_id=&page=&page_size=
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var req ProductListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadBinding(c, err)
		return
	}

	page, err := h.products.ListProducts(c.Request.Context(), appcatalog.ProductQuery{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Search:     req.Search,
		CategoryID: req.CategoryID,
		BrandID:    req.BrandID,
		OrderBy:    req.OrderBy,
		OrderDir:   req.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// GetProduct returns one product
//
//	GET /products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, err := pathID(c, "id", "product_id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}
