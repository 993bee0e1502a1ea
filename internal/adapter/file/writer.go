// Package file writes summary tables to disk in any supported format. Every
// output is written to a temporary file in the destination directory and
// renamed into place, so a destination holds either a complete file or none.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/climate-stats-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/climate-stats-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/climate-stats-etl/internal/adapter/parquetfile"
	"github.com/couchcryptid/climate-stats-etl/internal/adapter/sqlitedb"
	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// Format is an output encoding.
type Format string

const (
	CSV     Format = "csv"
	JSON    Format = "json"
	Parquet Format = "parquet"
	SQLite  Format = "sqlite"
)

// Formats lists every supported format.
var Formats = []Format{CSV, JSON, Parquet, SQLite}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", domain.ConfigError("parse format", fmt.Errorf("unknown output format %q", s))
}

// Ext returns the file extension, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Path derives an output path from a base path. A base that already carries
// the format's extension is kept; otherwise the extension is appended. When
// stamp is non-zero a UTC timestamp suffix is inserted before the extension.
func Path(base string, f Format, stamp time.Time) string {
	base = strings.TrimSuffix(base, f.Ext())
	if !stamp.IsZero() {
		base += "-" + stamp.UTC().Format("20060102T150405Z")
	}
	return base + f.Ext()
}

// Writer serializes summary tables to one destination.
type Writer struct {
	format Format
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer for format at path.
func NewWriter(format Format, path string, logger *slog.Logger) *Writer {
	return &Writer{format: format, path: path, logger: logger}
}

// Path returns the destination path.
func (w *Writer) Path() string { return w.path }

// Load writes table and commits the file. Degraded fields are logged and
// reported; the file is still committed.
func (w *Writer) Load(ctx context.Context, table domain.SummaryTable) (domain.OutputReport, error) {
	issues, size, err := w.commit(ctx, table)
	if err != nil {
		return domain.OutputReport{}, err
	}

	for _, is := range issues {
		w.logger.Warn("statistic written as missing value",
			"format", string(w.format),
			"path", w.path,
			"key", is.Key,
			"field", is.Field,
			"value", is.Value,
		)
	}

	return domain.OutputReport{
		Format:   string(w.format),
		Target:   w.path,
		Rows:     len(table.Rows),
		Bytes:    size,
		Degraded: issues,
	}, nil
}

func (w *Writer) commit(ctx context.Context, table domain.SummaryTable) ([]domain.FieldIssue, int64, error) {
	op := "write " + string(w.format)

	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return nil, 0, domain.IOError(op, err)
	}
	tmpName := tmp.Name()
	committed := false
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, 0, domain.IOError(op, err)
	}
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	issues, err := w.encode(ctx, tmp, table)
	if err != nil {
		return nil, 0, err
	}

	info, err := os.Stat(tmpName)
	if err != nil {
		return nil, 0, domain.IOError(op, err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return nil, 0, domain.IOError(op, err)
	}
	committed = true
	return issues, info.Size(), nil
}

// encode writes table into tmp and closes it.
func (w *Writer) encode(ctx context.Context, tmp *os.File, table domain.SummaryTable) ([]domain.FieldIssue, error) {
	op := "write " + string(w.format)

	var (
		issues []domain.FieldIssue
		err    error
	)
	switch w.format {
	case CSV:
		issues, err = csvfile.WriteSummaries(tmp, table)
	case JSON:
		issues, err = jsonfile.WriteSummaries(tmp, table)
	case Parquet:
		issues, err = parquetfile.WriteSummaries(tmp, table)
	case SQLite:
		// The database engine opens the file itself.
		if err := tmp.Close(); err != nil {
			return nil, domain.IOError(op, err)
		}
		return sqlitedb.WriteSummaries(ctx, tmp.Name(), table)
	default:
		return nil, domain.ConfigError(op, fmt.Errorf("unknown output format %q", w.format))
	}
	if err != nil {
		return issues, err
	}

	if err := tmp.Sync(); err != nil {
		return issues, domain.IOError(op, err)
	}
	if err := tmp.Close(); err != nil {
		return issues, domain.IOError(op, err)
	}
	return issues, nil
}

// ReadSummaries decodes a summary file of any format, picked by extension.
func ReadSummaries(ctx context.Context, path string) (domain.SummaryTable, error) {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return domain.SummaryTable{}, err
	}
	if f == SQLite {
		if _, err := os.Stat(path); err != nil {
			return domain.SummaryTable{}, domain.ReadError("read sqlite summaries", err)
		}
		return sqlitedb.ReadSummaries(ctx, path)
	}

	fh, err := os.Open(path)
	if err != nil {
		return domain.SummaryTable{}, domain.ReadError("read "+string(f)+" summaries", err)
	}
	defer fh.Close()

	switch f {
	case CSV:
		return csvfile.ReadSummaries(fh)
	case JSON:
		return jsonfile.ReadSummaries(fh)
	default:
		return parquetfile.ReadSummaries(fh)
	}
}
