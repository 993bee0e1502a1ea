package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-stats-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/climate-stats-etl/internal/adapter/file"
	kafkaadapter "github.com/couchcryptid/climate-stats-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-stats-etl/internal/adapter/parquetfile"
	"github.com/couchcryptid/climate-stats-etl/internal/config"
	"github.com/couchcryptid/climate-stats-etl/internal/domain"
	"github.com/couchcryptid/climate-stats-etl/internal/observability"
	"github.com/couchcryptid/climate-stats-etl/internal/pipeline"
)

// newMetrics is replaced in tests, where the default registry is shared.
var newMetrics = observability.NewMetrics

type runFlags struct {
	profile     string
	input       string
	inputFormat string
	output      string
	formats     []string
	countries   []string
	startYear   int
	endYear     int
	unit        string
	threshold   float64
	aggregate   bool
	timestamp   bool
	publish     bool
	debug       bool
	workers     int
}

func newRunCmd() *cobra.Command {
	var fl runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Run reads the input, summarizes it and writes every requested output.

Settings come from an optional YAML profile (--config); any flag given on the
command line overrides the profile. Process settings such as LOG_LEVEL,
WORKERS, KAFKA_BROKERS and PUSHGATEWAY_URL are read from the environment or
a .env file.

Examples:
  climate-etl run --input daily.parquet --format all
  climate-etl run --input daily.csv --countries US,FR --start-year 1990 --end-year 2000 --unit fahrenheit
  climate-etl run --config profile.yaml --aggregate --timestamp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc, err := resolveRunConfig(cmd, &fl)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return domain.ConfigError("load environment", err)
			}
			if fl.debug {
				cfg.LogLevel = "debug"
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = fl.workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, cfg, rc)
		},
	}

	fl.bind(cmd)
	return cmd
}

func (fl *runFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&fl.profile, "config", "c", "", "YAML run profile")
	f.StringVarP(&fl.input, "input", "i", "", "input observations file (.parquet or .csv)")
	f.StringVar(&fl.inputFormat, "input-format", "", "input format: parquet or csv (default from extension)")
	f.StringVarP(&fl.output, "output", "o", "", "output base path (default \"summary\")")
	f.StringSliceVarP(&fl.formats, "format", "f", nil, "output format: csv, json, parquet, sqlite or all (repeatable)")
	f.StringSliceVar(&fl.countries, "countries", nil, "ISO alpha-2 country codes to keep (default all)")
	f.IntVar(&fl.startYear, "start-year", 0, "first year to keep, inclusive")
	f.IntVar(&fl.endYear, "end-year", 0, "last year to keep, inclusive")
	f.StringVarP(&fl.unit, "unit", "u", "", "output unit: celsius, fahrenheit or kelvin")
	f.Float64Var(&fl.threshold, "threshold", 0, "outlier threshold in standard deviations")
	f.BoolVar(&fl.aggregate, "aggregate", false, "summarize all countries as one group")
	f.BoolVar(&fl.timestamp, "timestamp", false, "append a UTC timestamp to output file names")
	f.BoolVar(&fl.publish, "publish", false, "also publish summaries to KAFKA_BROKERS")
	f.BoolVar(&fl.debug, "debug", false, "log at debug level")
	f.IntVar(&fl.workers, "workers", 0, "aggregation workers (default WORKERS or CPU count)")
}

// resolveRunConfig loads the profile, if any, and applies the flags the user
// actually set on top of it.
func resolveRunConfig(cmd *cobra.Command, fl *runFlags) (config.RunConfig, error) {
	rc := config.DefaultRunConfig()
	if fl.profile != "" {
		var err error
		if rc, err = config.LoadProfile(fl.profile); err != nil {
			return config.RunConfig{}, err
		}
	}

	set := cmd.Flags().Changed
	if set("input") {
		rc.Input = fl.input
	}
	if set("input-format") {
		rc.InputFormat = fl.inputFormat
	}
	if set("output") {
		rc.Output = fl.output
	}
	if set("format") {
		rc.Formats = fl.formats
	}
	if set("countries") {
		rc.Countries = fl.countries
	}
	if set("start-year") {
		y := fl.startYear
		rc.StartYear = &y
	}
	if set("end-year") {
		y := fl.endYear
		rc.EndYear = &y
	}
	if set("unit") {
		rc.Unit = fl.unit
	}
	if set("threshold") {
		rc.Threshold = fl.threshold
	}
	if set("aggregate") {
		rc.Aggregate = fl.aggregate
	}
	if set("timestamp") {
		rc.Timestamp = fl.timestamp
	}
	if set("publish") {
		rc.Publish = fl.publish
	}

	if err := rc.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return rc, nil
}

func runPipeline(ctx context.Context, cfg *config.Config, rc config.RunConfig) error {
	logger := observability.NewLogger(cfg)
	metrics := newMetrics()

	if rc.Publish && !cfg.PublishEnabled() {
		return domain.ConfigError("publish", errors.New("KAFKA_BROKERS is required with --publish"))
	}

	unit, err := rc.TargetUnit()
	if err != nil {
		return err
	}
	filter, err := rc.FilterSpec()
	if err != nil {
		return err
	}

	loaders, err := fileLoaders(rc, logger)
	if err != nil {
		return err
	}
	var publisher *kafkaadapter.Publisher
	if rc.Publish {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		loaders = append(loaders, publisher)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSummaryTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(
		extractor(rc, logger),
		pipeline.NewAggregator(cfg.Workers, rc.Threshold),
		loaders,
		pipeline.Options{
			Quality: rc.QualityBounds(),
			Filter:  filter,
			Unit:    unit,
			Mode:    rc.Mode(),
		},
		logger,
		metrics,
	)

	_, runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(shutdownCtx, cfg.PushgatewayURL, cfg.PushgatewayJob); err != nil {
			logger.Error("metrics push error", "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	return runErr
}

func extractor(rc config.RunConfig, logger *slog.Logger) pipeline.Extractor {
	if rc.ResolvedInputFormat() == "csv" {
		return csvfile.NewReader(rc.Input, csvfile.Columns(rc.Columns), logger)
	}
	return parquetfile.NewReader(rc.Input, parquetfile.Columns(rc.Columns), logger)
}

// fileLoaders returns one writer per requested format. All of them share the
// same timestamp so a run's files sort together.
func fileLoaders(rc config.RunConfig, logger *slog.Logger) ([]pipeline.Loader, error) {
	var stamp time.Time
	if rc.Timestamp {
		stamp = domain.Now()
	}

	names := rc.OutputFormats()
	loaders := make([]pipeline.Loader, 0, len(names)+1)
	for _, name := range names {
		f, err := file.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, file.NewWriter(f, file.Path(rc.Output, f, stamp), logger))
	}
	return loaders, nil
}
