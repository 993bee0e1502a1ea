package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger(&buf, "info", "json").Info("run complete", "groups", 3)
		assert.Contains(t, buf.String(), `"msg":"run complete"`)
		assert.Contains(t, buf.String(), `"groups":3`)
		assert.Contains(t, buf.String(), `"service":"climate-stats-etl"`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger(&buf, "info", "text").Info("run complete", "groups", 3)
		assert.Contains(t, buf.String(), "msg=\"run complete\"")
		assert.Contains(t, buf.String(), "groups=3")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(&buf, "warn", "json")
		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	for _, c := range m.Collectors() {
		require.NoError(t, reg.Register(c))
	}

	m.ObservationsRead.Add(5)
	m.DegradedFields.WithLabelValues("csv").Inc()

	assert.InDelta(t, 5.0, testutil.ToFloat64(m.ObservationsRead), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.DegradedFields.WithLabelValues("csv")), 0)
}

func TestMetrics_Push(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetricsForTesting()
	m.GroupsSummarized.Add(2)

	require.NoError(t, m.Push(context.Background(), srv.URL, "climate-etl"))
	assert.Equal(t, "/metrics/job/climate-etl", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestMetrics_PushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewMetricsForTesting().Push(context.Background(), srv.URL, "climate-etl")

	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "push metrics:"))
}
