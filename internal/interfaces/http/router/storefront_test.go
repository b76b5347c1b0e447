package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	appcart "github.com/storefront/backend/internal/application/cart"
	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/application/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "admin-secret"

type storefrontFixture struct {
	engine *gin.Engine
	tokens *auth.TokenService
}

func newStorefrontFixture(t *testing.T) *storefrontFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.AutoMigrate())

	db := database.DB
	require.NoError(t, db.Create(&models.CategoryModel{ID: 1, Title: "Apparel"}).Error)
	require.NoError(t, db.Create(&models.BrandModel{ID: 1, Title: "Acme"}).Error)
	category, brand := int64(1), int64(1)
	require.NoError(t, db.Create(&[]models.ProductModel{
		{ID: 1, Title: "Blue Shirt", Price: decimal.RequireFromString("19.99"), Image: "shirt.png", CategoryID: &category, BrandID: &brand},
		{ID: 2, Title: "Alpha Hat", Price: decimal.RequireFromString("5.50"), Image: "hat.png"},
	}).Error)

	carts := persistence.NewGormCartRepository(db)
	integrityRepo := persistence.NewGormCartIntegrityRepository(db)
	orders := persistence.NewGormOrderRepository(db, order.NewInvoiceGenerator())
	products := persistence.NewGormProductRepository(db)

	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokenService(config.JWTConfig{
		Secret:                "test-secret-with-enough-length-123456",
		AccessTokenExpiration: time.Hour,
		Issuer:                "storefront",
	})

	engine, err := NewStorefrontEngine(Dependencies{
		Config: &config.Config{
			App:  config.AppConfig{Name: "storefront-test"},
			HTTP: config.HTTPConfig{AdminToken: testAdminToken, MaxBodySize: 1 << 20},
		},
		Version:   "test",
		Carts:     appcart.NewCartService(carts, products),
		Integrity: appcart.NewIntegrityService(integrityRepo),
		Checkout: checkout.NewCheckoutService(orders, carts, integrityRepo,
			checkout.WithIdempotency(store, shared.DefaultIdempotencyConfig()),
		),
		Products:    appcatalog.NewProductService(products),
		Tokens:      tokens,
		Revocations: auth.NewInMemoryRevocationList(),
		ReadyChecks: map[string]handler.Pinger{"database": database},
	})
	require.NoError(t, err)

	return &storefrontFixture{engine: engine, tokens: tokens}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (f *storefrontFixture) do(t *testing.T, r request) (int, apiResponse) {
	t.Helper()
	var body bytes.Buffer
	if r.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(r.body))
	}
	req := httptest.NewRequest(r.method, r.path, &body)
	req.RemoteAddr = "192.0.2.10:4000"
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (f *storefrontFixture) token(t *testing.T, customerID int64) string {
	t.Helper()
	issued, err := f.tokens.Issue(customerID, fmt.Sprintf("c%d@example.com", customerID))
	require.NoError(t, err)
	return issued.Token
}

func decodeData(t *testing.T, resp apiResponse, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func TestStorefront_GuestCartToOrder(t *testing.T) {
	f := newStorefrontFixture(t)
	token := f.token(t, 42)

	code, resp := f.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items",
		body: map[string]any{"product_id": 1, "quantity": 2}})
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, resp.Success)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/cart"})
	require.Equal(t, http.StatusOK, code)
	var guestCart struct {
		ItemCount int    `json:"item_count"`
		Total     string `json:"total"`
		Owner     struct {
			Type      string `json:"type"`
			IPAddress string `json:"ip_address"`
		} `json:"owner"`
	}
	decodeData(t, resp, &guestCart)
	assert.Equal(t, 2, guestCart.ItemCount)
	assert.Equal(t, "39.98", guestCart.Total)
	assert.Equal(t, "guest", guestCart.Owner.Type)
	assert.Equal(t, "192.0.2.10", guestCart.Owner.IPAddress)

	// checkout needs a customer
	code, resp = f.do(t, request{method: http.MethodPost, path: "/api/v1/checkout",
		body: map[string]any{"payment_method": "credit_card"}})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", resp.Error.Kind)

	code, resp = f.do(t, request{method: http.MethodPost, path: "/api/v1/cart/transfer", token: token})
	require.Equal(t, http.StatusOK, code)
	var transfer struct {
		Report struct {
			Moved  int `json:"moved"`
			Merged int `json:"merged"`
		} `json:"report"`
		Partial bool `json:"partial"`
		Cart    struct {
			ItemCount int `json:"item_count"`
		} `json:"cart"`
	}
	decodeData(t, resp, &transfer)
	assert.Equal(t, 1, transfer.Report.Moved)
	assert.False(t, transfer.Partial)
	assert.Equal(t, 2, transfer.Cart.ItemCount)

	checkoutReq := request{
		method:  http.MethodPost,
		path:    "/api/v1/checkout",
		body:    map[string]any{"payment_method": "credit_card"},
		token:   token,
		headers: map[string]string{"Idempotency-Key": "k1"},
	}
	code, resp = f.do(t, checkoutReq)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	var receipt struct {
		Order struct {
			ID         int64  `json:"order_id"`
			CustomerID int64  `json:"customer_id"`
			InvoiceNo  int64  `json:"invoice_no"`
			Status     string `json:"order_status"`
		} `json:"order"`
		Lines []struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		} `json:"lines"`
		Payment struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"payment"`
	}
	decodeData(t, resp, &receipt)
	assert.Equal(t, int64(42), receipt.Order.CustomerID)
	assert.NotZero(t, receipt.Order.InvoiceNo)
	assert.Equal(t, "pending", receipt.Order.Status)
	require.Len(t, receipt.Lines, 1)
	assert.Equal(t, 2, receipt.Lines[0].Quantity)
	assert.Equal(t, "39.98", receipt.Payment.Amount)
	assert.Equal(t, "USD", receipt.Payment.Currency)

	code, resp = f.do(t, checkoutReq)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_entry", resp.Error.Kind)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/cart", token: token})
	require.Equal(t, http.StatusOK, code)
	var customerCart struct {
		ItemCount int `json:"item_count"`
	}
	decodeData(t, resp, &customerCart)
	assert.Zero(t, customerCart.ItemCount)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/orders", token: token})
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)

	orderPath := fmt.Sprintf("/api/v1/orders/%d", receipt.Order.ID)
	code, _ = f.do(t, request{method: http.MethodGet, path: orderPath, token: token})
	assert.Equal(t, http.StatusOK, code)

	// another customer cannot see the order
	code, resp = f.do(t, request{method: http.MethodGet, path: orderPath, token: f.token(t, 7)})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", resp.Error.Kind)

	statusPath := fmt.Sprintf("/api/v1/admin/orders/%d/status", receipt.Order.ID)
	code, _ = f.do(t, request{method: http.MethodPut, path: statusPath, body: map[string]any{"status": "shipped"}})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.do(t, request{method: http.MethodPut, path: statusPath,
		body:    map[string]any{"status": "shipped"},
		headers: map[string]string{"X-Admin-Token": testAdminToken}})
	assert.Equal(t, http.StatusOK, code)

	code, resp = f.do(t, request{method: http.MethodPut, path: statusPath,
		body:    map[string]any{"status": "lost"},
		headers: map[string]string{"X-Admin-Token": testAdminToken}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", resp.Error.Kind)
}

func TestStorefront_CartValidation(t *testing.T) {
	f := newStorefrontFixture(t)

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"quantity too large", map[string]any{"product_id": 1, "quantity": 1000}, http.StatusBadRequest, "validation_error"},
		{"non numeric product", map[string]any{"product_id": "abc", "quantity": 1}, http.StatusBadRequest, "validation_error"},
		{"unknown product", map[string]any{"product_id": 999, "quantity": 1}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := f.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: tt.body})
			assert.Equal(t, tt.status, code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, resp.Error.Kind)
		})
	}

	// missing quantity defaults to one
	code, _ := f.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: map[string]any{"product_id": "2"}})
	require.Equal(t, http.StatusCreated, code)

	code, resp := f.do(t, request{method: http.MethodPut, path: "/api/v1/cart/items/2", body: map[string]any{"quantity": 0}})
	require.Equal(t, http.StatusOK, code)
	var removed struct {
		Removed int64 `json:"removed"`
	}
	decodeData(t, resp, &removed)
	assert.Equal(t, int64(1), removed.Removed)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/cart/items/2"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", resp.Error.Kind)
}

func TestStorefront_AdminIntegrity(t *testing.T) {
	f := newStorefrontFixture(t)
	admin := map[string]string{"X-Admin-Token": testAdminToken}

	code, _ := f.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: map[string]any{"product_id": 1, "quantity": 3}})
	require.Equal(t, http.StatusCreated, code)

	code, resp := f.do(t, request{method: http.MethodGet, path: "/api/v1/admin/carts/integrity?ip_address=192.0.2.10", headers: admin})
	require.Equal(t, http.StatusOK, code)
	var report struct {
		Status      string `json:"status"`
		TotalIssues int    `json:"total_issues"`
	}
	decodeData(t, resp, &report)
	assert.Equal(t, "healthy", report.Status)
	assert.Zero(t, report.TotalIssues)

	code, resp = f.do(t, request{method: http.MethodPost, path: "/api/v1/admin/carts/repair",
		body: map[string]any{"ip_address": "192.0.2.10"}, headers: admin})
	require.Equal(t, http.StatusOK, code)
	var repair struct {
		Results []struct {
			Type    string `json:"type"`
			Success bool   `json:"success"`
		} `json:"results"`
	}
	decodeData(t, resp, &repair)
	assert.Len(t, repair.Results, 3)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/admin/carts/integrity", headers: admin})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", resp.Error.Kind)

	code, _ = f.do(t, request{method: http.MethodPost, path: "/api/v1/admin/carts/cleanup", headers: admin})
	assert.Equal(t, http.StatusOK, code)
}

func TestStorefront_Logout(t *testing.T) {
	f := newStorefrontFixture(t)
	token := f.token(t, 5)

	code, resp := f.do(t, request{method: http.MethodGet, path: "/api/v1/auth/me", token: token})
	require.Equal(t, http.StatusOK, code)
	var me handler.MeResponse
	decodeData(t, resp, &me)
	assert.Equal(t, int64(5), me.CustomerID)

	code, _ = f.do(t, request{method: http.MethodPost, path: "/api/v1/auth/logout", token: token})
	require.Equal(t, http.StatusOK, code)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/auth/me", token: token})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", resp.Error.Kind)
}

func TestStorefront_CatalogAndSystem(t *testing.T) {
	f := newStorefrontFixture(t)

	code, resp := f.do(t, request{method: http.MethodGet, path: "/api/v1/products?order_by=title"})
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/products/1"})
	require.Equal(t, http.StatusOK, code)
	var product struct {
		Title string `json:"title"`
	}
	decodeData(t, resp, &product)
	assert.Equal(t, "Blue Shirt", product.Title)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/products/x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", resp.Error.Kind)

	code, _ = f.do(t, request{method: http.MethodGet, path: "/ready"})
	assert.Equal(t, http.StatusOK, code)

	code, resp = f.do(t, request{method: http.MethodGet, path: "/api/v1/nope"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "route_not_found", resp.Error.Kind)
}
