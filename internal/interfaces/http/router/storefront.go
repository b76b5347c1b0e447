package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	appcart "github.com/storefront/backend/internal/application/cart"
	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/application/checkout"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Dependencies is everything the storefront API is built from
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Version string

	Carts     *appcart.CartService
	Integrity *appcart.IntegrityService
	Checkout  *checkout.CheckoutService
	Products  *appcatalog.ProductService

	Tokens      *auth.TokenService
	Revocations auth.RevocationList

	// Optional
	Meter        metric.Meter
	ReadyChecks  map[string]handler.Pinger
	TraceEnabled bool
}

// NewStorefrontEngine builds the gin engine with the middleware chain and
// every storefront route.
func NewStorefrontEngine(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	middleware.SetupValidator()

	httpMetrics, err := middleware.HTTPMetrics(deps.Meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.App.Name,
			Enabled:     deps.TraceEnabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.Secure(),
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	engine.NoRoute(func(c *gin.Context) {
		resp := dto.NewErrorResponse(dto.KindRouteNotFound, "route not found")
		resp.Error.RequestID = middleware.GetRequestID(c)
		c.JSON(http.StatusNotFound, resp)
	})

	system := handler.NewSystemHandler(cfg.App.Name, deps.Version, deps.ReadyChecks)
	engine.GET("/health", system.Health)
	engine.GET("/ready", system.Ready)

	identity := middleware.Identity(middleware.IdentityConfig{
		Tokens:      deps.Tokens,
		Revocations: deps.Revocations,
		Logger:      log,
	})

	r := NewRouter(engine)
	r.Register(systemRoutes(system))
	r.Register(catalogRoutes(handler.NewCatalogHandler(deps.Products), httpMetrics))
	r.Register(cartRoutes(handler.NewCartHandler(deps.Carts), identity, httpMetrics))
	r.Register(checkoutRoutes(handler.NewCheckoutHandler(deps.Checkout), identity, httpMetrics))
	r.Register(authRoutes(handler.NewAuthHandler(deps.Revocations), identity, httpMetrics))
	r.Register(adminRoutes(
		handler.NewAdminHandler(deps.Integrity, deps.Checkout),
		middleware.AdminToken(cfg.HTTP.AdminToken),
		httpMetrics,
	))
	r.Setup()

	return engine, nil
}

func systemRoutes(h *handler.SystemHandler) *DomainGroup {
	return NewDomainGroup("system", "/system").
		GET("/info", h.GetSystemInfo)
}

func catalogRoutes(h *handler.CatalogHandler, metrics gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("catalog", "/products").Use(metrics).
		GET("", h.ListProducts).
		GET("/:id", h.GetProduct)
}

func cartRoutes(h *handler.CartHandler, identity, metrics gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("cart", "/cart").Use(identity, middleware.SpanEnricher(), metrics).
		GET("", h.GetCart).
		DELETE("", h.EmptyCart).
		POST("/items", h.AddItem).
		GET("/items/:product_id", h.GetItem).
		PUT("/items/:product_id", h.UpdateItem).
		DELETE("/items/:product_id", h.RemoveItem)
	g.POST("/transfer", middleware.RequireCustomer(), h.TransferGuestCart)
	return g
}

func checkoutRoutes(h *handler.CheckoutHandler, identity, metrics gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("checkout", "").
		Use(identity, middleware.SpanEnricher(), metrics, middleware.RequireCustomer())
	g.POST("/checkout", h.PlaceOrder)
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)
	return g
}

func authRoutes(h *handler.AuthHandler, identity, metrics gin.HandlerFunc) *DomainGroup {
	return NewDomainGroup("auth", "/auth").
		Use(identity, metrics, middleware.RequireCustomer()).
		GET("/me", h.Me).
		POST("/logout", h.Logout)
}

func adminRoutes(h *handler.AdminHandler, guard, metrics gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("admin", "/admin").Use(guard, metrics)
	g.Group("carts", "/carts").
		GET("/integrity", h.VerifyCart).
		POST("/repair", h.RepairCart).
		POST("/cleanup", h.CleanupStaleGuests)
	g.Group("orders", "/orders").
		PUT("/:id/status", h.UpdateOrderStatus)
	return g
}
