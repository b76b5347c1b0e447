package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, Config{Enabled: false, ServiceName: "storefront"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestConfigMapping(t *testing.T) {
	tel := config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		SamplingRatio:     0.5,
		ServiceName:       "shop",
		DBTraceEnabled:    true,
		MetricsEnabled:    true,
		MetricsInterval:   time.Minute,
	}

	assert.Equal(t, Config{Enabled: true, CollectorEndpoint: "otel:4317", SamplingRatio: 0.5, ServiceName: "shop"}, ConfigFrom(tel))
	assert.Equal(t, time.Minute, MetricsConfigFrom(tel).ExportInterval)
	assert.True(t, MetricsConfigFrom(tel).Enabled)

	dbCfg := DBTracingConfigFrom(tel, config.DatabaseConfig{Driver: config.DriverMySQL})
	assert.True(t, dbCfg.Enabled)
	assert.Equal(t, "mysql", dbCfg.DBSystem)
	assert.Equal(t, "postgresql", DBTracingConfigFrom(tel, config.DatabaseConfig{Driver: config.DriverPostgres}).DBSystem)

	tel.Enabled = false
	assert.False(t, DBTracingConfigFrom(tel, config.DatabaseConfig{}).Enabled)
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOn")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOff")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

// collect returns the int64 sum data points of the named metric
func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints
			case metricdata.Gauge[int64]:
				return data.DataPoints
			}
		}
	}
	return nil
}

func pointWith(points []metricdata.DataPoint[int64], key attribute.Key, value string) (metricdata.DataPoint[int64], bool) {
	for _, p := range points {
		if v, ok := p.Attributes.Value(key); ok && v.AsString() == value {
			return p, true
		}
	}
	return metricdata.DataPoint[int64]{}, false
}

type fakeHealth struct {
	health CartHealth
	err    error
}

func (f fakeHealth) CartHealth(context.Context) (CartHealth, error) {
	return f.health, f.err
}

func newTestMetrics(t *testing.T, provider CartHealthProvider) (*StorefrontMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewStorefrontMetrics(StorefrontMetricsConfig{
		Meter:          mp.Meter("test"),
		Logger:         zaptest.NewLogger(t),
		HealthProvider: provider,
	})
	require.NoError(t, err)
	return m, reader
}

func TestNewStorefrontMetrics_NilMeter(t *testing.T) {
	m, err := NewStorefrontMetrics(StorefrontMetricsConfig{})
	assert.Nil(t, m)
	assert.EqualError(t, err, "NewStorefrontMetrics: meter cannot be nil")
}

func TestStorefrontMetrics_RecordCheckout(t *testing.T) {
	m, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	m.RecordCheckout(ctx, "card", "USD", decimal.RequireFromString("43.23"), 20*time.Millisecond, nil)
	m.RecordCheckout(ctx, "card", "USD", decimal.RequireFromString("10.00"), 20*time.Millisecond, nil)
	m.RecordCheckout(ctx, "simulated_failure", "USD", decimal.RequireFromString("5.00"), time.Millisecond,
		shared.NewValidationError("payment_method", "payment declined", "simulated_failure"))

	checkouts := collect(t, reader, "storefront_checkout_total")
	success, ok := pointWith(checkouts, AttrOutcome, OutcomeSuccess)
	require.True(t, ok)
	assert.Equal(t, int64(2), success.Value)

	failure, ok := pointWith(checkouts, AttrErrorKind, string(shared.KindValidation))
	require.True(t, ok)
	assert.Equal(t, int64(1), failure.Value)

	amounts := collect(t, reader, "storefront_order_amount_total")
	require.Len(t, amounts, 1)
	assert.Equal(t, int64(5323), amounts[0].Value)
}

func TestStorefrontMetrics_RecordCartTransfer(t *testing.T) {
	m, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	m.RecordCartTransfer(ctx, 3, 0, nil)
	m.RecordCartTransfer(ctx, 1, 2, nil)
	m.RecordCartTransfer(ctx, 0, 2, errors.New("transfer failed"))

	transfers := collect(t, reader, "storefront_cart_transfer_total")
	for outcome, want := range map[string]int64{OutcomeSuccess: 1, OutcomePartial: 1, OutcomeFailure: 1} {
		p, ok := pointWith(transfers, AttrOutcome, outcome)
		require.True(t, ok, outcome)
		assert.Equal(t, want, p.Value, outcome)
	}

	failed := collect(t, reader, "storefront_cart_transfer_failed_lines_total")
	require.Len(t, failed, 1)
	assert.Equal(t, int64(4), failed[0].Value)
}

func TestStorefrontMetrics_Maintenance(t *testing.T) {
	m, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	m.RecordRepair(ctx, TriggerAPI, "orphaned_products", 2)
	m.RecordRepair(ctx, TriggerAPI, "orphaned_products", 0)
	m.RecordStaleGuestCleanup(ctx, TriggerCLI, 7)

	repaired := collect(t, reader, "storefront_cart_repaired_lines_total")
	require.Len(t, repaired, 1)
	assert.Equal(t, int64(2), repaired[0].Value)

	stale := collect(t, reader, "storefront_cart_stale_guest_lines_removed_total")
	p, ok := pointWith(stale, AttrTrigger, TriggerCLI)
	require.True(t, ok)
	assert.Equal(t, int64(7), p.Value)
}

func TestStorefrontMetrics_PeriodicCollection(t *testing.T) {
	m, reader := newTestMetrics(t, fakeHealth{health: CartHealth{OrphanedLines: 2, InvalidLines: 1, GuestLines: 9}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.StartPeriodicCollection(ctx, time.Hour)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return len(collect(t, reader, "storefront_cart_guest_lines")) == 1
	}, time.Second, 10*time.Millisecond)

	issues := collect(t, reader, "storefront_cart_integrity_issues")
	p, ok := pointWith(issues, AttrIssueType, "orphaned_products")
	require.True(t, ok)
	assert.Equal(t, int64(2), p.Value)

	m.Stop()
	m.Stop()
}

func TestStorefrontMetrics_CollectErrorIsLogged(t *testing.T) {
	m, reader := newTestMetrics(t, fakeHealth{err: errors.New("db down")})
	m.collectCartHealth(context.Background())
	assert.Empty(t, collect(t, reader, "storefront_cart_guest_lines"))
}

func newTracedSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE cart_details (id INTEGER PRIMARY KEY, product_id INTEGER, customer_id INTEGER, ip_address TEXT, quantity INTEGER)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE products (product_id INTEGER PRIMARY KEY)`).Error)
	return db
}

func TestDBTracingPlugin_Callbacks(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db := newTracedSQLite(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond, DBSystem: "sqlite"}, zap.NewNop())
	require.NoError(t, plugin.RegisterCallbacks(db))

	t.Run("slow query is annotated", func(t *testing.T) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "query")
		var n int64
		require.NoError(t, db.WithContext(ctx).Table("cart_details").Count(&n).Error)
		span.End()

		ended := recorder.Ended()
		last := ended[len(ended)-1]
		assert.Contains(t, last.Attributes(), attribute.Bool("db.slow_query", true))
		assert.Contains(t, last.Attributes(), attribute.String("db.sql.table", "cart_details"))
	})

	t.Run("errors mark the span", func(t *testing.T) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "broken")
		err := db.WithContext(ctx).Exec("DELETE FROM missing_table WHERE id = 1").Error
		span.End()
		require.Error(t, err)

		ended := recorder.Ended()
		assert.Equal(t, codes.Error, ended[len(ended)-1].Status().Code)
	})
}

func TestDBTracingPlugin_RegisterOtelGorm(t *testing.T) {
	db := newTracedSQLite(t)
	assert.NoError(t, NewDBTracingPlugin(DBTracingConfig{Enabled: false}, zap.NewNop()).RegisterOtelGorm(db))
	assert.NoError(t, NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop()).RegisterOtelGorm(db))

	var n int64
	assert.NoError(t, db.Table("products").Count(&n).Error)
}

func TestGormCartHealthProvider(t *testing.T) {
	db := newTracedSQLite(t)
	require.NoError(t, db.Exec(`INSERT INTO products (product_id) VALUES (1), (2)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO cart_details (product_id, customer_id, ip_address, quantity) VALUES
		(1, 7, '', 2),
		(1, 7, '', 3),
		(2, 7, '', 0),
		(99, NULL, '10.0.0.1', 1),
		(2, NULL, '10.0.0.1', 1500)`).Error)

	h, err := NewGormCartHealthProvider(db).CartHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CartHealth{OrphanedLines: 1, InvalidLines: 2, DuplicateGroups: 1, GuestLines: 2}, h)
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "checkout.place_order")

	SetAttributes(span, SpanAttrCustomerID, int64(7), SpanAttrLineCount, 3, 42, "skipped")
	AddEvent(span, "invoice_reserved", SpanAttrInvoiceNo, int64(1700000001234))
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Contains(t, ended[0].Attributes(), attribute.Int64(SpanAttrCustomerID, 7))
	assert.Contains(t, ended[0].Attributes(), attribute.Int(SpanAttrLineCount, 3))
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.Len(t, ended[0].Events(), 2) // event + recorded error
	assert.Equal(t, "invoice_reserved", ended[0].Events()[0].Name)

	assert.Empty(t, GetTraceID(context.Background()))
	ctx, s := StartServiceSpan(context.Background(), "cart", "transfer", WithAttribute("x", "y"))
	defer s.End()
	_ = ctx
}
