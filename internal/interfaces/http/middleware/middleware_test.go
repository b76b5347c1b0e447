package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("generates a uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		_, err := uuid.Parse(w.Body.String())
		assert.NoError(t, err)
		assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))
	})

	t.Run("reuses the client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Body.String())
	})

	t.Run("replaces oversized ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", MaxRequestIDLength+1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		_, err := uuid.Parse(w.Body.String())
		assert.NoError(t, err)
	})
}

func TestCORSWithConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://shop.example"}

	r := gin.New()
	r.Use(CORSWithConfig(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://shop.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderIdempotencyKey)
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight ends with 204", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://shop.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.NotEmpty(t, w.Header().Get("Access-Control-Max-Age"))
	})
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), BodyLimit(16))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 32))))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.KindRequestTooLarge, resp.Error.Kind)
	assert.NotEmpty(t, resp.Error.RequestID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	assert.Equal(t, http.StatusOK, w.Code)
}

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) error { return nil }
func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func newTokens() *auth.TokenService {
	return auth.NewTokenService(config.JWTConfig{
		Secret:                "test-secret-that-is-long-enough-32b",
		AccessTokenExpiration: time.Hour,
		Issuer:                "storefront",
	})
}

func identityRouter(cfg IdentityConfig, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Identity(cfg))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"owner": GetOwner(c).String(), "ip": GetClientIP(c)})
	})
	r.GET("/", handlers...)
	return r
}

func TestIdentity(t *testing.T) {
	tokens := newTokens()
	revocations := auth.NewInMemoryRevocationList()
	r := identityRouter(IdentityConfig{Tokens: tokens, Revocations: revocations})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(AuthHeaderKey, header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("anonymous callers are guests keyed by IP", func(t *testing.T) {
		w := call("")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"owner":"guest:192.0.2.1","ip":"192.0.2.1"}`, w.Body.String())
	})

	t.Run("valid token makes a customer", func(t *testing.T) {
		issued, err := tokens.Issue(42, "ada@example.com")
		require.NoError(t, err)
		w := call("Bearer " + issued.Token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"owner":"customer:42"`)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		w := call("Bearer not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.KindUnauthorized, resp.Error.Kind)
		assert.Equal(t, "invalid token", resp.Error.Message)
	})

	t.Run("wrong scheme is rejected", func(t *testing.T) {
		w := call("Basic Zm9vOmJhcg==")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token is rejected", func(t *testing.T) {
		issued, err := tokens.Issue(7, "")
		require.NoError(t, err)
		claims, err := tokens.Validate(issued.Token)
		require.NoError(t, err)
		require.NoError(t, revocations.Revoke(context.Background(), claims.ID, time.Hour))

		w := call("Bearer " + issued.Token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "token has been revoked", decode(t, w).Error.Message)
	})

	t.Run("revocation outage fails open", func(t *testing.T) {
		r := identityRouter(IdentityConfig{Tokens: tokens, Revocations: failingRevocations{}})
		issued, err := tokens.Issue(9, "")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderKey, "Bearer "+issued.Token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "customer:9")
	})
}

func TestRequireCustomer(t *testing.T) {
	tokens := newTokens()
	r := identityRouter(IdentityConfig{Tokens: tokens}, RequireCustomer())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "login required", decode(t, w).Error.Message)

	issued, err := tokens.Issue(3, "")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(AuthHeaderKey, "Bearer "+issued.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetOwner_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, cart.Owner{}, GetOwner(c))
	assert.Nil(t, GetClaims(c))
}

func TestAdminToken(t *testing.T) {
	build := func(token string) *gin.Engine {
		r := gin.New()
		r.Use(AdminToken(token))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	call := func(r *gin.Engine, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set(HeaderAdminToken, token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, call(build(""), "anything"))

	r := build("s3cret")
	assert.Equal(t, http.StatusUnauthorized, call(r, ""))
	assert.Equal(t, http.StatusForbidden, call(r, "wrong"))
	assert.Equal(t, http.StatusOK, call(r, "s3cret"))
}

func TestBindingError(t *testing.T) {
	SetupValidator()

	type body struct {
		Status   string `json:"status" binding:"required"`
		Currency string `json:"currency" binding:"omitempty,len=3"`
	}

	bind := func(payload string) error {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		c.Request.Header.Set("Content-Type", "application/json")
		var b body
		return c.ShouldBindJSON(&b)
	}

	err := BindingError(bind(`{"currency":"EURO"}`))
	de := shared.AsDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, shared.KindValidation, de.Kind)
	require.Len(t, de.Errors, 2)
	assert.Equal(t, "status", de.Errors[0].Field)
	assert.Equal(t, "is required", de.Errors[0].Reason)
	assert.Equal(t, "currency", de.Errors[1].Field)

	err = BindingError(bind(`{not json`))
	f, ok := shared.AsDomainError(err).Field()
	require.True(t, ok)
	assert.Equal(t, "body", f.Field)
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	mw, err := HTTPMetrics(provider.Meter("test"))
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID(), Identity(IdentityConfig{Tokens: newTokens()}), mw)
	r.GET("/cart", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 3 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cart", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			for _, p := range m.Data.(metricdata.Sum[int64]).DataPoints {
				route, _ := p.Attributes.Value("http.route")
				owner, _ := p.Attributes.Value("owner_type")
				counts[route.AsString()+"|"+owner.AsString()] += p.Value
			}
		}
	}
	assert.Equal(t, int64(3), counts["/cart|guest"])
	assert.Equal(t, int64(1), counts["unmatched|guest"])

	t.Run("nil meter is a no-op", func(t *testing.T) {
		mw, err := HTTPMetrics(nil)
		require.NoError(t, err)
		assert.NotNil(t, mw)
	})
}

func TestStatusGroup(t *testing.T) {
	assert.Equal(t, "2xx", StatusGroup(201))
	assert.Equal(t, "4xx", StatusGroup(422))
	assert.Equal(t, "5xx", StatusGroup(503))
}

func TestSpanErrorMarker(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "request")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, SpanErrorMarker())
	r.GET("/fail", func(c *gin.Context) {
		c.Set(ErrorKindKey, string(shared.KindDeadlock))
		c.Status(http.StatusServiceUnavailable)
	})
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("error.kind", "deadlock"))
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}
