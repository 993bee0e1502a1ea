package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
	"github.com/couchcryptid/climate-stats-etl/internal/observability"
)

// Extractor reads the full input into memory.
type Extractor interface {
	Extract(ctx context.Context) (domain.ObservationBatch, error)
}

// Loader writes a summary table to one destination.
type Loader interface {
	Load(ctx context.Context, table domain.SummaryTable) (domain.OutputReport, error)
}

// Options are the per-run transform settings.
type Options struct {
	Quality domain.QualityBounds
	Filter  domain.FilterSpec
	Unit    domain.Unit
	Mode    domain.Mode
}

// Stage names, used as metric labels and report keys.
const (
	StageExtract   = "extract"
	StageClean     = "clean"
	StageFilter    = "filter"
	StageConvert   = "convert"
	StageAggregate = "aggregate"
	StageLoad      = "load"
)

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Report summarizes a completed run.
type Report struct {
	RowsRead     int
	RowsSkipped  int // undecodable rows dropped by the reader
	RowsRejected int // failed quality control
	RowsRetained int // reached the aggregator
	Groups       int
	Outliers     uint64
	Degraded     int
	Outputs      []domain.OutputReport
	Stages       []StageTiming
	Table        domain.SummaryTable
}

// Pipeline runs one read, transform, aggregate, write pass.
type Pipeline struct {
	extractor  Extractor
	aggregator *Aggregator
	loaders    []Loader
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, a *Aggregator, loaders []Loader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:  e,
		aggregator: a,
		loaders:    loaders,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes every stage once. Cancellation is honoured between stages; a
// fatal error from any stage aborts the run and is returned unchanged in kind.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	p.logger.Info("pipeline started",
		"mode", p.opts.Mode.String(),
		"unit", p.opts.Unit.String(),
		"workers", p.aggregator.Workers(),
		"loaders", len(p.loaders),
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var rep Report

	var batch domain.ObservationBatch
	err := p.stage(ctx, &rep, StageExtract, func() error {
		var err error
		batch, err = p.extractor.Extract(ctx)
		return err
	})
	if err != nil {
		return rep, err
	}
	rep.RowsRead = len(batch.Rows) + batch.Skipped
	rep.RowsSkipped = batch.Skipped
	p.metrics.ObservationsRead.Add(float64(rep.RowsRead))

	rows := batch.Rows
	if err := p.stage(ctx, &rep, StageClean, func() error {
		var rejected int
		rows, rejected = domain.Clean(rows, p.opts.Quality)
		rep.RowsRejected = rejected
		return nil
	}); err != nil {
		return rep, err
	}
	p.metrics.ObservationsRejected.Add(float64(rep.RowsSkipped + rep.RowsRejected))

	if err := p.stage(ctx, &rep, StageFilter, func() error {
		rows = domain.Filter(rows, p.opts.Filter)
		return nil
	}); err != nil {
		return rep, err
	}
	rep.RowsRetained = len(rows)
	p.metrics.ObservationsRetained.Add(float64(rep.RowsRetained))

	if err := p.stage(ctx, &rep, StageConvert, func() error {
		rows = domain.ConvertAll(rows, p.opts.Unit)
		return nil
	}); err != nil {
		return rep, err
	}

	if err := p.stage(ctx, &rep, StageAggregate, func() error {
		summaries := p.aggregator.Aggregate(rows, p.opts.Mode)
		rep.Table = domain.NewSummaryTable(summaries, p.opts.Mode, p.opts.Unit, p.aggregator.threshold)
		return nil
	}); err != nil {
		return rep, err
	}
	rep.Groups = len(rep.Table.Rows)
	for _, s := range rep.Table.Rows {
		rep.Outliers += s.OutlierCount
	}
	p.metrics.GroupsSummarized.Add(float64(rep.Groups))
	p.metrics.OutliersDetected.Add(float64(rep.Outliers))

	if err := p.stage(ctx, &rep, StageLoad, func() error {
		return p.load(ctx, &rep)
	}); err != nil {
		return rep, err
	}

	p.metrics.LastSuccess.Set(float64(domain.Now().Unix()))
	p.logReport(rep)
	return rep, nil
}

// stage times fn and records it, after checking for cancellation.
func (p *Pipeline) stage(ctx context.Context, rep *Report, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		p.logger.Info("pipeline stopping", "stage", name, "reason", err)
		return fmt.Errorf("%s: %w", name, err)
	}

	start := domain.Now()
	err := fn()
	elapsed := domain.Since(start)

	rep.Stages = append(rep.Stages, StageTiming{Stage: name, Duration: elapsed})
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	p.logger.Debug("stage finished", "stage", name, "duration", elapsed)

	if err != nil {
		p.logger.Error("stage failed", "stage", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *Pipeline) load(ctx context.Context, rep *Report) error {
	for _, l := range p.loaders {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := l.Load(ctx, rep.Table)
		if err != nil {
			return err
		}
		rep.Outputs = append(rep.Outputs, out)
		rep.Degraded += len(out.Degraded)
		p.metrics.OutputsWritten.WithLabelValues(out.Format).Inc()
		p.metrics.DegradedFields.WithLabelValues(out.Format).Add(float64(len(out.Degraded)))
		p.logger.Info("output written",
			"format", out.Format,
			"target", out.Target,
			"rows", out.Rows,
			"bytes", out.Bytes,
			"degraded_fields", len(out.Degraded),
		)
	}
	return nil
}

func (p *Pipeline) logReport(rep Report) {
	attrs := []any{
		"rows_read", rep.RowsRead,
		"rows_skipped", rep.RowsSkipped,
		"rows_rejected", rep.RowsRejected,
		"rows_retained", rep.RowsRetained,
		"groups", rep.Groups,
		"outliers", rep.Outliers,
		"degraded_fields", rep.Degraded,
		"outputs", len(rep.Outputs),
	}
	for _, st := range rep.Stages {
		attrs = append(attrs, st.Stage+"_duration", st.Duration)
	}
	p.logger.Info("pipeline finished", attrs...)
}
