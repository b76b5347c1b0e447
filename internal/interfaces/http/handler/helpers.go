package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
)

// pathID parses a positive integer path parameter
func pathID(c *gin.Context, param, field string) (int64, error) {
	raw := c.Param(param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(field, "must be a positive integer", raw)
	}
	return id, nil
}

// ownerFields splits an owner back into the raw identity fields the
// validation layer accepts
func ownerFields(owner cart.Owner) (customerID, ip any) {
	if id, ok := owner.CustomerID(); ok {
		return id, nil
	}
	if addr, ok := owner.IPAddress(); ok {
		return nil, addr
	}
	return nil, nil
}
