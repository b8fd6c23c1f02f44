package telemetry_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/erp/mall-admin/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:     false,
		ServiceName: "test-console",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestStartSpan_RecordsAttributesAndErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, span := telemetry.StartSpan(context.Background(), "cache.fetch",
		telemetry.WithAttribute(telemetry.SpanAttrCacheKey, "brands?pageNum=1"),
		telemetry.WithAttribute(telemetry.SpanAttrGeneration, uint64(3)),
	)
	telemetry.RecordError(span, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "cache.fetch", ended[0].Name())
	assert.Len(t, ended[0].Attributes(), 2)
	assert.Equal(t, "boom", ended[0].Status().Description)
}

func TestMetrics_Record(t *testing.T) {
	m := telemetry.NewMetrics()

	m.RecordRequest("GET", "/brand/list", telemetry.OutcomeOK, 20*time.Millisecond)
	m.RecordRequest("GET", "/brand/list", telemetry.OutcomeOK, 30*time.Millisecond)
	m.RecordRequest("POST", "/brand/update/showStatus", telemetry.OutcomeBusiness, time.Millisecond)
	m.RecordAuthExpiry()
	m.RecordCacheLookup(telemetry.LookupShared)

	series, err := testutil.GatherAndCount(m.Registry(), telemetry.MetricHTTPRequestsTotal)
	require.NoError(t, err)
	assert.Equal(t, 2, series)

	expected := `
# HELP mall_admin_auth_expiry_total Times the session-expired flow cleared the session
# TYPE mall_admin_auth_expiry_total counter
mall_admin_auth_expiry_total 1
# HELP mall_admin_cache_lookups_total Query cache lookups by result
# TYPE mall_admin_cache_lookups_total counter
mall_admin_cache_lookups_total{result="shared"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		telemetry.MetricAuthExpiryTotal, telemetry.MetricCacheLookupsTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/x", telemetry.OutcomeOK, time.Millisecond)
		m.RecordAuthExpiry()
		m.RecordCacheLookup(telemetry.LookupHit)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Serve(t *testing.T) {
	m := telemetry.NewMetrics()
	m.RecordAuthExpiry()

	addr, err := m.Serve("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	_, err = m.Serve("127.0.0.1:0")
	assert.Error(t, err)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), telemetry.MetricAuthExpiryTotal)
}
