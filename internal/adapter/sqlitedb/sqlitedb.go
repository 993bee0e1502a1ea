// Package sqlitedb stores summary tables in a self-contained SQLite database.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

const schema = `
CREATE TABLE stat_summaries (
    position INTEGER NOT NULL,
    key TEXT PRIMARY KEY,
    count INTEGER NOT NULL,
    min REAL,
    max REAL,
    mean REAL,
    median REAL,
    p25 REAL,
    p75 REAL,
    p90 REAL,
    p95 REAL,
    outlier_count INTEGER NOT NULL,
    unit TEXT NOT NULL
);

CREATE TABLE run_metadata (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const insertSummary = `
INSERT INTO stat_summaries (position, key, count, min, max, mean, median, p25, p75, p90, p95, outlier_count, unit)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// WriteSummaries creates the schema in the database at path and inserts one
// row per summary in a single transaction. Non-finite statistics are stored
// as NULL and returned as issues. path should name a new or empty file.
func WriteSummaries(ctx context.Context, path string, table domain.SummaryTable) ([]domain.FieldIssue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.IOError("open sqlite", err)
	}
	defer db.Close()

	issues, err := writeSummaries(ctx, db, table)
	if err != nil {
		return issues, err
	}
	if err := db.Close(); err != nil {
		return issues, domain.IOError("close sqlite", err)
	}
	return issues, nil
}

func writeSummaries(ctx context.Context, db *sql.DB, table domain.SummaryTable) ([]domain.FieldIssue, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.IOError("begin sqlite transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return nil, domain.IOError("create sqlite schema", err)
	}

	meta := map[string]string{
		"mode":              table.Mode.String(),
		"unit":              table.Unit.String(),
		"outlier_threshold": strconv.FormatFloat(table.Threshold, 'g', -1, 64),
		"generated_at":      table.GeneratedAt.Format(time.RFC3339),
	}
	for name, value := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO run_metadata (name, value) VALUES (?, ?)`, name, value); err != nil {
			return nil, domain.IOError("write sqlite metadata", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertSummary)
	if err != nil {
		return nil, domain.IOError("prepare sqlite insert", err)
	}
	defer stmt.Close()

	var issues []domain.FieldIssue
	for i, s := range table.Rows {
		args := make([]any, 0, len(domain.SummaryColumns)+1)
		args = append(args, i, s.Key.String(), int64(s.Count))
		for _, f := range s.StatFields() {
			args = append(args, sql.NullFloat64{Float64: domain.Round(f.Value), Valid: domain.Finite(f.Value)})
		}
		args = append(args, int64(s.OutlierCount), s.Unit.String())
		issues = append(issues, s.NonFinite()...)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return issues, domain.IOError("insert sqlite summary", fmt.Errorf("key %s: %w", s.Key, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return issues, domain.IOError("commit sqlite transaction", err)
	}
	return issues, nil
}

// ReadSummaries loads a database produced by WriteSummaries. NULL statistics
// come back as NaN.
func ReadSummaries(ctx context.Context, path string) (domain.SummaryTable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return domain.SummaryTable{}, domain.ReadError("open sqlite", err)
	}
	defer db.Close()

	var table domain.SummaryTable
	if err := readMetadata(ctx, db, &table); err != nil {
		return domain.SummaryTable{}, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT key, count, min, max, mean, median, p25, p75, p90, p95, outlier_count, unit
FROM stat_summaries ORDER BY position`)
	if err != nil {
		return domain.SummaryTable{}, domain.ReadError("query sqlite summaries", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key, unit    string
			count, outls int64
			stats        [8]sql.NullFloat64
		)
		if err := rows.Scan(&key, &count,
			&stats[0], &stats[1], &stats[2], &stats[3], &stats[4], &stats[5], &stats[6], &stats[7],
			&outls, &unit); err != nil {
			return domain.SummaryTable{}, domain.ReadError("scan sqlite summary", err)
		}

		u, err := domain.ParseUnit(unit)
		if err != nil {
			return domain.SummaryTable{}, domain.ReadError("scan sqlite summary", err)
		}
		s := domain.StatSummary{
			Key:              domain.ParseKey(key),
			Count:            uint64(count),
			OutlierCount:     uint64(outls),
			OutlierThreshold: table.Threshold,
			Unit:             u,
		}
		for i, f := range s.StatFields() {
			v := math.NaN()
			if stats[i].Valid {
				v = stats[i].Float64
			}
			s.SetStat(f.Name, v)
		}
		table.Rows = append(table.Rows, s)
	}
	if err := rows.Err(); err != nil {
		return domain.SummaryTable{}, domain.ReadError("query sqlite summaries", err)
	}
	return table, nil
}

func readMetadata(ctx context.Context, db *sql.DB, table *domain.SummaryTable) error {
	rows, err := db.QueryContext(ctx, `SELECT name, value FROM run_metadata`)
	if err != nil {
		return domain.ReadError("query sqlite metadata", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return domain.ReadError("scan sqlite metadata", err)
		}
		switch name {
		case "mode":
			table.Mode = domain.ModeFor(value == domain.Aggregated.String())
		case "unit":
			if u, err := domain.ParseUnit(value); err == nil {
				table.Unit = u
			}
		case "outlier_threshold":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				table.Threshold = v
			}
		case "generated_at":
			if ts, err := time.Parse(time.RFC3339, value); err == nil {
				table.GeneratedAt = ts
			}
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ReadError("query sqlite metadata", err)
	}
	return nil
}
