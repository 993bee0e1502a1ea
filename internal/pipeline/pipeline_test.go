package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
	"github.com/couchcryptid/climate-stats-etl/internal/observability"
	"github.com/couchcryptid/climate-stats-etl/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	batch domain.ObservationBatch
	err   error
}

func (m *mockExtractor) Extract(_ context.Context) (domain.ObservationBatch, error) {
	return m.batch, m.err
}

type mockLoader struct {
	format string
	issues []domain.FieldIssue
	err    error
	tables []domain.SummaryTable
}

func (m *mockLoader) Load(_ context.Context, table domain.SummaryTable) (domain.OutputReport, error) {
	if m.err != nil {
		return domain.OutputReport{}, m.err
	}
	m.tables = append(m.tables, table)
	return domain.OutputReport{
		Format:   m.format,
		Target:   "mem://" + m.format,
		Rows:     len(table.Rows),
		Degraded: m.issues,
	}, nil
}

// cancelingLoader cancels the run the first time it is called.
type cancelingLoader struct {
	cancel context.CancelFunc
	mockLoader
}

func (c *cancelingLoader) Load(ctx context.Context, table domain.SummaryTable) (domain.OutputReport, error) {
	c.cancel()
	return c.mockLoader.Load(ctx, table)
}

func newTestMetrics() *observability.Metrics {
	// Use unregistered metrics to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func observation(country string, year int, temp float64) domain.Observation {
	return domain.Observation{
		Country:     country,
		Date:        time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC),
		Temperature: temp,
	}
}

func defaultOptions(t *testing.T) pipeline.Options {
	t.Helper()
	return pipeline.Options{Quality: domain.DefaultQualityBounds}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	ext := &mockExtractor{batch: domain.ObservationBatch{
		Rows: []domain.Observation{
			observation("US", 1990, 0),
			observation("US", 1991, 10),
			observation("FR", 1991, 500), // rejected by quality control
			observation("DE", 1980, 5),   // filtered by year
		},
		Skipped: 2,
	}}
	csvLoader := &mockLoader{format: "csv"}
	jsonLoader := &mockLoader{format: "json"}
	metrics := newTestMetrics()

	start, end := 1985, 2000
	spec, err := domain.NewFilterSpec(nil, &start, &end)
	require.NoError(t, err)
	opts := defaultOptions(t)
	opts.Filter = spec
	opts.Mode = domain.Aggregated

	p := pipeline.New(ext, pipeline.NewAggregator(2, 3.0), []pipeline.Loader{csvLoader, jsonLoader}, opts, slog.Default(), metrics)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, rep.RowsRead)
	assert.Equal(t, 2, rep.RowsSkipped)
	assert.Equal(t, 1, rep.RowsRejected)
	assert.Equal(t, 2, rep.RowsRetained)
	assert.Equal(t, 1, rep.Groups)
	require.Len(t, rep.Outputs, 2)
	assert.Equal(t, "csv", rep.Outputs[0].Format)
	assert.Equal(t, "json", rep.Outputs[1].Format)

	require.Len(t, csvLoader.tables, 1)
	table := csvLoader.tables[0]
	require.Len(t, table.Rows, 1)
	s := table.Rows[0]
	assert.Equal(t, domain.AllKey, s.Key)
	assert.Equal(t, uint64(2), s.Count)
	assert.Equal(t, 5.0, s.Mean)
	assert.Equal(t, 5.0, s.Median)
	assert.Equal(t, fixed, table.GeneratedAt)
	assert.Equal(t, jsonLoader.tables[0], table, "every loader sees the same table")

	stages := make([]string, 0, len(rep.Stages))
	for _, st := range rep.Stages {
		stages = append(stages, st.Stage)
	}
	assert.Equal(t, []string{"extract", "clean", "filter", "convert", "aggregate", "load"}, stages)

	assert.InDelta(t, 6.0, testutil.ToFloat64(metrics.ObservationsRead), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.ObservationsRejected), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.ObservationsRetained), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.OutputsWritten.WithLabelValues("csv")), 0)
	assert.InDelta(t, float64(fixed.Unix()), testutil.ToFloat64(metrics.LastSuccess), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ConvertsUnits(t *testing.T) {
	ext := &mockExtractor{batch: domain.ObservationBatch{Rows: []domain.Observation{
		observation("US", 2000, 0),
		observation("US", 2001, 50),
	}}}
	ldr := &mockLoader{format: "csv"}
	opts := defaultOptions(t)
	opts.Unit = domain.Fahrenheit

	p := pipeline.New(ext, pipeline.NewAggregator(1, 3.0), []pipeline.Loader{ldr}, opts, slog.Default(), newTestMetrics())

	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Table.Rows, 1)
	s := rep.Table.Rows[0]
	assert.Equal(t, domain.CountryKey("US"), s.Key)
	assert.Equal(t, domain.Fahrenheit, s.Unit)
	assert.Equal(t, domain.Fahrenheit, rep.Table.Unit)
	assert.Equal(t, uint64(2), s.Count)
	assert.InDelta(t, 32.0, s.Min, 1e-9)
	assert.InDelta(t, 122.0, s.Max, 1e-9)
}

func TestPipeline_Run_EmptySelectionStillLoads(t *testing.T) {
	ext := &mockExtractor{batch: domain.ObservationBatch{Rows: []domain.Observation{
		observation("US", 2001, 10),
	}}}
	ldr := &mockLoader{format: "csv"}
	spec, err := domain.NewFilterSpec([]string{"FR"}, nil, nil)
	require.NoError(t, err)
	opts := defaultOptions(t)
	opts.Filter = spec

	p := pipeline.New(ext, pipeline.NewAggregator(4, 3.0), []pipeline.Loader{ldr}, opts, slog.Default(), newTestMetrics())

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Groups)
	require.Len(t, ldr.tables, 1)
	assert.Empty(t, ldr.tables[0].Rows)
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	ext := &mockExtractor{err: domain.ReadError("read parquet", errors.New("bad magic"))}
	ldr := &mockLoader{format: "csv"}
	metrics := newTestMetrics()

	p := pipeline.New(ext, pipeline.NewAggregator(1, 3.0), []pipeline.Loader{ldr}, defaultOptions(t), slog.Default(), metrics)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRead)
	assert.Empty(t, ldr.tables)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.LastSuccess), 0)
}

func TestPipeline_Run_LoadErrorStopsLaterLoaders(t *testing.T) {
	ext := &mockExtractor{batch: domain.ObservationBatch{Rows: []domain.Observation{observation("US", 2000, 1)}}}
	failing := &mockLoader{format: "csv", err: domain.IOError("write csv", errors.New("read-only file system"))}
	after := &mockLoader{format: "json"}

	p := pipeline.New(ext, pipeline.NewAggregator(1, 3.0), []pipeline.Loader{failing, after}, defaultOptions(t), slog.Default(), newTestMetrics())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.Empty(t, after.tables)
}

func TestPipeline_Run_CountsDegradedFields(t *testing.T) {
	ext := &mockExtractor{batch: domain.ObservationBatch{Rows: []domain.Observation{observation("US", 2000, 1)}}}
	ldr := &mockLoader{format: "json", issues: []domain.FieldIssue{{Key: "US", Field: "mean"}, {Key: "US", Field: "p95"}}}
	metrics := newTestMetrics()

	p := pipeline.New(ext, pipeline.NewAggregator(1, 3.0), []pipeline.Loader{ldr}, defaultOptions(t), slog.Default(), metrics)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Degraded)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.DegradedFields.WithLabelValues("json")), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{batch: domain.ObservationBatch{Rows: []domain.Observation{observation("US", 2000, 1)}}}
	ldr := &mockLoader{format: "csv"}

	p := pipeline.New(ext, pipeline.NewAggregator(1, 3.0), []pipeline.Loader{ldr}, defaultOptions(t), slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ldr.tables)
}

func TestPipeline_Run_CancelBetweenLoaders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ext := &mockExtractor{batch: domain.ObservationBatch{Rows: []domain.Observation{observation("US", 2000, 1)}}}
	first := &cancelingLoader{cancel: cancel, mockLoader: mockLoader{format: "csv"}}
	second := &mockLoader{format: "json"}

	p := pipeline.New(ext, pipeline.NewAggregator(1, 3.0), []pipeline.Loader{first, second}, defaultOptions(t), slog.Default(), newTestMetrics())

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, first.tables, 1)
	assert.Empty(t, second.tables)
}
