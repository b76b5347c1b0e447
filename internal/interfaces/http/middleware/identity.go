package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/validation"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Identity context keys
const (
	OwnerKey      = "cart_owner"
	ClaimsKey     = "jwt_claims"
	ClientIPKey   = "client_ip"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// IdentityConfig holds configuration for the identity middleware
type IdentityConfig struct {
	// Tokens validates bearer tokens. Required.
	Tokens *auth.TokenService
	// Revocations is optional; logged out tokens are rejected when set.
	Revocations auth.RevocationList
	Logger      *zap.Logger
}

// Identity resolves the cart owner of every request.
// A valid bearer token makes the caller a customer; no token makes the
// caller a guest keyed by client IP. A token that is present but invalid
// is rejected rather than downgraded to a guest.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		ip, err := validation.IPAddress(c.ClientIP())
		if err != nil {
			abort(c, http.StatusBadRequest, dto.KindBadRequest, "unrecognised client address")
			return
		}
		c.Set(ClientIPKey, ip)

		owner := cart.GuestOwner(ip)

		if header := c.GetHeader(AuthHeaderKey); header != "" {
			claims, err := authenticate(c, cfg, header)
			if err != nil {
				log.Warn("Authentication failed",
					zap.Error(err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
				)
				abort(c, http.StatusUnauthorized, dto.KindUnauthorized, authErrorMessage(err))
				return
			}
			c.Set(ClaimsKey, claims)
			owner = claims.Owner()
		}

		c.Set(OwnerKey, owner)
		c.Request = c.Request.WithContext(logger.WithOwner(c.Request.Context(), owner.String()))
		c.Next()
	}
}

func authenticate(c *gin.Context, cfg IdentityConfig, header string) (*auth.Claims, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return nil, auth.ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return nil, auth.ErrInvalidToken
	}

	claims, err := cfg.Tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	if cfg.Revocations != nil && claims.ID != "" {
		revoked, err := cfg.Revocations.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			// Fail open: a revocation store outage must not log every customer out
			logger.L(c.Request.Context()).Error("Failed to check token revocation",
				zap.String("jti", claims.ID),
				zap.Error(err),
			)
		} else if revoked {
			return nil, auth.ErrTokenRevoked
		}
	}
	return claims, nil
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "token is not yet valid"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "token has been revoked"
	case errors.Is(err, auth.ErrMissingCustomerID), errors.Is(err, auth.ErrInvalidClaims):
		return "token claims are invalid"
	default:
		return "invalid token"
	}
}

// RequireCustomer rejects guests. It must run after Identity.
func RequireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetOwner(c).IsCustomer() {
			abort(c, http.StatusUnauthorized, dto.KindUnauthorized, "login required")
			return
		}
		c.Next()
	}
}

// GetOwner returns the owner resolved by Identity, or the zero Owner
func GetOwner(c *gin.Context) cart.Owner {
	if v, ok := c.Get(OwnerKey); ok {
		if owner, ok := v.(cart.Owner); ok {
			return owner
		}
	}
	return cart.Owner{}
}

// GetClaims returns the token claims of a customer request, or nil for guests
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetClientIP returns the validated client address
func GetClientIP(c *gin.Context) string {
	return c.GetString(ClientIPKey)
}
