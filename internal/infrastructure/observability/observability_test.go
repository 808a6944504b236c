package observability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestSeverityMapping(t *testing.T) {
	assert.Equal(t, otellog.SeverityDebug, severity(zerolog.DebugLevel))
	assert.Equal(t, otellog.SeverityInfo, severity(zerolog.InfoLevel))
	assert.Equal(t, otellog.SeverityWarn, severity(zerolog.WarnLevel))
	assert.Equal(t, otellog.SeverityError, severity(zerolog.ErrorLevel))
	assert.Equal(t, otellog.SeverityFatal, severity(zerolog.PanicLevel))
}

func TestInitMetrics_NoopProvider(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, metrics, "GET", "GET /api/v1/pg/{id}", 200, 10*time.Millisecond)
		RecordCacheHit(ctx, metrics, "listing")
		RecordCacheMiss(ctx, metrics, "listing")
		RecordImageUpload(ctx, metrics, "success")
		RecordAuthEvent(ctx, metrics, "login")
	})
}

func TestRecorders_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRequestMetric(context.Background(), nil, "GET", "/", 200, time.Millisecond)
		RecordDBMetric(context.Background(), nil, "select", time.Millisecond)
	})
}

func TestLoggerFromContext_NoSpan(t *testing.T) {
	InitLogger("test", "production")
	logger := LoggerFromContext(context.Background())
	require.NotNil(t, logger)
}
