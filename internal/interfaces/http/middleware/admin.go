package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// AdminToken guards maintenance endpoints with a shared secret sent in
// the X-Admin-Token header. An empty token disables the endpoints.
func AdminToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			abort(c, http.StatusForbidden, dto.KindForbidden, "admin API is disabled")
			return
		}
		got := c.GetHeader(HeaderAdminToken)
		if got == "" {
			abort(c, http.StatusUnauthorized, dto.KindUnauthorized, "admin token required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			abort(c, http.StatusForbidden, dto.KindForbidden, "invalid admin token")
			return
		}
		c.Next()
	}
}
