// Package csvfile reads observation datasets and reads and writes summary
// tables as comma-separated text with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// Columns names the source columns for each observation field.
type Columns struct {
	Date        string
	Country     string
	Temperature string
}

// Reader extracts observations from a CSV file.
type Reader struct {
	path    string
	columns Columns
	logger  *slog.Logger
}

// NewReader creates a Reader for the file at path.
func NewReader(path string, columns Columns, logger *slog.Logger) *Reader {
	return &Reader{path: path, columns: columns, logger: logger}
}

// Extract decodes every row of the file.
func (r *Reader) Extract(ctx context.Context) (domain.ObservationBatch, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return domain.ObservationBatch{}, domain.ReadError("open csv", err)
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

// ReadObservations decodes observations located by header name. Rows with an
// unparsable date or a reserved country are skipped and counted; an empty or
// unparsable temperature becomes NaN. Other columns are kept as strings in
// Observation.Extra.
func ReadObservations(ctx context.Context, r io.Reader, cols Columns) (domain.ObservationBatch, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return domain.ObservationBatch{}, domain.ReadError("read csv", fmt.Errorf("read header: %w", err))
	}
	idx, err := columnIndex(header, cols.Date, cols.Country, cols.Temperature)
	if err != nil {
		return domain.ObservationBatch{}, domain.ReadError("read csv", err)
	}
	dateCol, countryCol, tempCol := idx[0], idx[1], idx[2]

	// header is overwritten by the next Read, so names are copied here.
	extraCols := make(map[int]string)
	for i, h := range header {
		if i != dateCol && i != countryCol && i != tempCol {
			extraCols[i] = strings.TrimSpace(h)
		}
	}

	var batch domain.ObservationBatch
	for line := 2; ; line++ {
		if line%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return domain.ObservationBatch{}, err
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.ObservationBatch{}, domain.ReadError("read csv", err)
		}

		date, err := domain.ParseDate(rec[dateCol])
		country := domain.NormalizeCountry(rec[countryCol])
		if err != nil || domain.ReservedCountry(country) {
			batch.Skipped++
			continue
		}
		temp, err := strconv.ParseFloat(strings.TrimSpace(rec[tempCol]), 64)
		if err != nil {
			temp = math.NaN()
		}

		var extra map[string]any
		if len(extraCols) > 0 {
			extra = make(map[string]any, len(extraCols))
			for i, name := range extraCols {
				extra[name] = rec[i]
			}
		}
		batch.Rows = append(batch.Rows, domain.Observation{
			Country:     country,
			Date:        date,
			Temperature: temp,
			Unit:        domain.Celsius,
			Extra:       extra,
		})
	}
	return batch, nil
}

func columnIndex(header []string, names ...string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	out := make([]int, len(names))
	for i, name := range names {
		p, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		out[i] = p
	}
	return out, nil
}

// WriteSummaries writes the header and one row per summary. Statistics use
// domain.Precision fixed decimals; non-finite statistics are written as an
// empty cell and returned as issues. An empty table yields a header-only file.
func WriteSummaries(w io.Writer, table domain.SummaryTable) ([]domain.FieldIssue, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.SummaryColumns); err != nil {
		return nil, domain.IOError("write csv", err)
	}

	var issues []domain.FieldIssue
	rec := make([]string, 0, len(domain.SummaryColumns))
	for _, s := range table.Rows {
		rec = rec[:0]
		rec = append(rec, s.Key.String(), strconv.FormatUint(s.Count, 10))
		for _, f := range s.StatFields() {
			if domain.Finite(f.Value) {
				rec = append(rec, domain.FormatStat(f.Value))
			} else {
				rec = append(rec, "")
			}
		}
		rec = append(rec, strconv.FormatUint(s.OutlierCount, 10), s.Unit.String())
		issues = append(issues, s.NonFinite()...)

		if err := cw.Write(rec); err != nil {
			return issues, domain.IOError("write csv", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return issues, domain.IOError("write csv", err)
	}
	return issues, nil
}

// ReadSummaries parses a file produced by WriteSummaries. Empty statistic
// cells come back as NaN. The table mode is Aggregated when the only key is ALL.
func ReadSummaries(r io.Reader) (domain.SummaryTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(domain.SummaryColumns)

	header, err := cr.Read()
	if err != nil {
		return domain.SummaryTable{}, domain.ReadError("read csv summaries", fmt.Errorf("read header: %w", err))
	}
	idx, err := columnIndex(header, domain.SummaryColumns...)
	if err != nil {
		return domain.SummaryTable{}, domain.ReadError("read csv summaries", err)
	}
	col := make(map[string]int, len(idx))
	for i, name := range domain.SummaryColumns {
		col[name] = idx[i]
	}

	var table domain.SummaryTable
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.SummaryTable{}, domain.ReadError("read csv summaries", err)
		}

		s, err := parseSummary(rec, col)
		if err != nil {
			return domain.SummaryTable{}, domain.ReadError("read csv summaries", err)
		}
		table.Rows = append(table.Rows, s)
	}

	if len(table.Rows) > 0 {
		table.Unit = table.Rows[0].Unit
	}
	if len(table.Rows) == 1 && table.Rows[0].Key.IsAll() {
		table.Mode = domain.Aggregated
	}
	return table, nil
}

func parseSummary(rec []string, col map[string]int) (domain.StatSummary, error) {
	s := domain.StatSummary{Key: domain.ParseKey(rec[col[domain.ColKey]])}

	var err error
	if s.Count, err = strconv.ParseUint(rec[col[domain.ColCount]], 10, 64); err != nil {
		return s, fmt.Errorf("key %s: count: %w", s.Key, err)
	}
	if s.OutlierCount, err = strconv.ParseUint(rec[col[domain.ColOutlierCount]], 10, 64); err != nil {
		return s, fmt.Errorf("key %s: outlier_count: %w", s.Key, err)
	}
	if s.Unit, err = domain.ParseUnit(rec[col[domain.ColUnit]]); err != nil {
		return s, fmt.Errorf("key %s: %w", s.Key, err)
	}

	for _, f := range s.StatFields() {
		cell := rec[col[f.Name]]
		if cell == "" {
			s.SetStat(f.Name, math.NaN())
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return s, fmt.Errorf("key %s: %s: %w", s.Key, f.Name, err)
		}
		s.SetStat(f.Name, v)
	}
	return s, nil
}
