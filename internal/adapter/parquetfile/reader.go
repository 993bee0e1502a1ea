// Package parquetfile reads observation datasets and reads and writes summary
// tables in the Parquet columnar format.
package parquetfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	goparquet "github.com/fraugster/parquet-go"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// Columns names the source columns for each observation field.
type Columns struct {
	Date        string
	Country     string
	Temperature string
}

// DefaultColumns matches the published daily weather dataset.
var DefaultColumns = Columns{
	Date:        "date",
	Country:     "country_alpha2",
	Temperature: "temp_mean_c_approx",
}

// ctxCheckEvery bounds how many rows are decoded between cancellation checks.
const ctxCheckEvery = 1 << 16

// Reader extracts observations from a Parquet file.
type Reader struct {
	path    string
	columns Columns
	logger  *slog.Logger
}

// NewReader creates a Reader for the file at path.
func NewReader(path string, columns Columns, logger *slog.Logger) *Reader {
	return &Reader{path: path, columns: columns, logger: logger}
}

// Extract decodes every row. Rows whose date cannot be parsed or whose country
// is reserved are skipped and counted; a missing temperature becomes NaN so
// quality control drops it.
func (r *Reader) Extract(ctx context.Context) (domain.ObservationBatch, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return domain.ObservationBatch{}, domain.ReadError("open parquet", err)
	}
	defer f.Close()

	batch, err := ReadObservations(ctx, f, r.columns)
	if err != nil {
		return domain.ObservationBatch{}, err
	}
	r.logger.Info("observations read",
		"path", r.path,
		"rows", len(batch.Rows),
		"skipped", batch.Skipped,
	)
	return batch, nil
}

// ReadObservations decodes observations from a Parquet stream. Columns other
// than the three named in cols are copied into Observation.Extra.
func ReadObservations(ctx context.Context, rs io.ReadSeeker, cols Columns) (domain.ObservationBatch, error) {
	fr, err := goparquet.NewFileReader(rs)
	if err != nil {
		return domain.ObservationBatch{}, domain.ReadError("read parquet", err)
	}

	sd := fr.GetSchemaDefinition()
	for _, name := range []string{cols.Date, cols.Country, cols.Temperature} {
		if sd.SubSchema(name) == nil {
			return domain.ObservationBatch{}, domain.ReadError("read parquet", fmt.Errorf("missing column %q", name))
		}
	}

	batch := domain.ObservationBatch{Rows: make([]domain.Observation, 0, fr.NumRows())}
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return domain.ObservationBatch{}, err
			}
		}

		row, err := fr.NextRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.ObservationBatch{}, domain.ReadError("read parquet", fmt.Errorf("row %d: %w", n, err))
		}

		date, ok := dateValue(row[cols.Date])
		country := domain.NormalizeCountry(stringValue(row[cols.Country]))
		if !ok || domain.ReservedCountry(country) {
			batch.Skipped++
			continue
		}
		batch.Rows = append(batch.Rows, domain.Observation{
			Country:     country,
			Date:        date,
			Temperature: floatValue(row[cols.Temperature]),
			Unit:        domain.Celsius,
			Extra:       extraValues(row, cols),
		})
	}
	return batch, nil
}

// extraValues returns the row's unnamed columns, or nil when there are none.
// Byte arrays are returned as strings.
func extraValues(row map[string]any, cols Columns) map[string]any {
	var extra map[string]any
	for name, v := range row {
		if name == cols.Date || name == cols.Country || name == cols.Temperature {
			continue
		}
		if extra == nil {
			extra = make(map[string]any, len(row))
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		extra[name] = v
	}
	return extra
}

func stringValue(v any) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	default:
		return ""
	}
}

// dateValue accepts a YYYY-MM-DD string or a DATE (days since the Unix epoch).
func dateValue(v any) (time.Time, bool) {
	switch d := v.(type) {
	case []byte, string:
		t, err := domain.ParseDate(stringValue(d))
		return t, err == nil
	case int32:
		return time.Unix(0, 0).UTC().AddDate(0, 0, int(d)), true
	default:
		return time.Time{}, false
	}
}

func floatValue(v any) float64 {
	switch f := v.(type) {
	case float64:
		return f
	case float32:
		return float64(f)
	case int32:
		return float64(f)
	case int64:
		return float64(f)
	default:
		return math.NaN()
	}
}
