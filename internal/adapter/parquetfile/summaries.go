package parquetfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"
	"github.com/fraugster/parquet-go/parquetschema"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// summarySchema gives each statistic its own typed column. Statistics are
// optional so a non-finite value can be stored as null.
const summarySchema = `message stat_summary {
	required binary key (STRING);
	required int64 count;
	optional double min;
	optional double max;
	optional double mean;
	optional double median;
	optional double p25;
	optional double p75;
	optional double p90;
	optional double p95;
	required int64 outlier_count;
	required binary unit (STRING);
}`

// File-level key/value metadata.
const (
	metaMode        = "climate.mode"
	metaUnit        = "climate.unit"
	metaThreshold   = "climate.outlier_threshold"
	metaGeneratedAt = "climate.generated_at"
)

var summarySchemaDef = mustParseSchema(summarySchema)

func mustParseSchema(s string) *parquetschema.SchemaDefinition {
	sd, err := parquetschema.ParseSchemaDefinition(s)
	if err != nil {
		panic(fmt.Sprintf("parse summary schema: %v", err))
	}
	return sd
}

// WriteSummaries encodes table with one row per summary, in table order.
// Statistics are rounded to domain.Precision decimals; non-finite statistics
// are written as null and returned as issues.
func WriteSummaries(w io.Writer, table domain.SummaryTable) ([]domain.FieldIssue, error) {
	fw := goparquet.NewFileWriter(w,
		goparquet.WithSchemaDefinition(summarySchemaDef),
		goparquet.WithCompressionCodec(parquet.CompressionCodec_SNAPPY),
		goparquet.WithCreator("climate-stats-etl"),
		goparquet.WithMetaData(map[string]string{
			metaMode:        table.Mode.String(),
			metaUnit:        table.Unit.String(),
			metaThreshold:   strconv.FormatFloat(table.Threshold, 'g', -1, 64),
			metaGeneratedAt: table.GeneratedAt.Format(time.RFC3339),
		}),
	)

	var issues []domain.FieldIssue
	for _, s := range table.Rows {
		rec := map[string]any{
			domain.ColKey:          []byte(s.Key.String()),
			domain.ColCount:        int64(s.Count),
			domain.ColOutlierCount: int64(s.OutlierCount),
			domain.ColUnit:         []byte(s.Unit.String()),
		}
		for _, f := range s.StatFields() {
			if domain.Finite(f.Value) {
				rec[f.Name] = domain.Round(f.Value)
			}
		}
		issues = append(issues, s.NonFinite()...)

		if err := fw.AddData(rec); err != nil {
			return issues, domain.EncodingError("write parquet", fmt.Errorf("key %s: %w", s.Key, err))
		}
	}

	if err := fw.Close(); err != nil {
		return issues, domain.IOError("write parquet", err)
	}
	return issues, nil
}

// ReadSummaries decodes a file produced by WriteSummaries. Null statistics
// come back as NaN.
func ReadSummaries(rs io.ReadSeeker) (domain.SummaryTable, error) {
	fr, err := goparquet.NewFileReader(rs)
	if err != nil {
		return domain.SummaryTable{}, domain.ReadError("read parquet summaries", err)
	}

	var table domain.SummaryTable
	meta := fr.MetaData()
	if u, err := domain.ParseUnit(meta[metaUnit]); err == nil {
		table.Unit = u
	}
	table.Mode = domain.ModeFor(meta[metaMode] == domain.Aggregated.String())
	if v, err := strconv.ParseFloat(meta[metaThreshold], 64); err == nil {
		table.Threshold = v
	}
	if ts, err := time.Parse(time.RFC3339, meta[metaGeneratedAt]); err == nil {
		table.GeneratedAt = ts
	}

	for {
		row, err := fr.NextRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.SummaryTable{}, domain.ReadError("read parquet summaries", err)
		}

		s := domain.StatSummary{
			Key:              domain.ParseKey(stringValue(row[domain.ColKey])),
			Count:            uint64(intValue(row[domain.ColCount])),
			OutlierCount:     uint64(intValue(row[domain.ColOutlierCount])),
			OutlierThreshold: table.Threshold,
		}
		unit, err := domain.ParseUnit(stringValue(row[domain.ColUnit]))
		if err != nil {
			return domain.SummaryTable{}, domain.ReadError("read parquet summaries", err)
		}
		s.Unit = unit
		for _, f := range s.StatFields() {
			v, ok := row[f.Name].(float64)
			if !ok {
				v = math.NaN()
			}
			s.SetStat(f.Name, v)
		}
		table.Rows = append(table.Rows, s)
	}
	return table, nil
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	default:
		return 0
	}
}
