package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// AuthHandler handles session endpoints of authenticated customers.
// Tokens are issued by the identity provider (or cartctl in development).
type AuthHandler struct {
	BaseHandler
	revocations auth.RevocationList
	now         func() time.Time
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(revocations auth.RevocationList) *AuthHandler {
	return &AuthHandler{revocations: revocations, now: time.Now}
}

// MeResponse describes the authenticated customer
type MeResponse struct {
	CustomerID int64     `json:"customer_id"`
	Email      string    `json:"email,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Me returns the identity carried by the bearer token
//
//	GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.KindUnauthorized, "login required")
		return
	}
	resp := MeResponse{CustomerID: claims.CustomerID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	h.Success(c, resp)
}

// Logout revokes the bearer token until it would have expired
//
//	POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.KindUnauthorized, "login required")
		return
	}

	now := h.now()
	ttl := claims.RemainingTTL(now)
	if ttl > 0 && claims.ID != "" {
		if err := h.revocations.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
			logger.L(c.Request.Context()).Error("Failed to revoke token",
				zap.String("jti", claims.ID),
				zap.Error(err),
			)
			h.Error(c, http.StatusServiceUnavailable, string(shared.KindConnectionLost), "logout is temporarily unavailable")
			return
		}
	}
	h.Success(c, dto.LogoutResponse{RevokedUntil: now.Add(ttl).UTC()})
}
