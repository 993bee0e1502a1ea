// Command validate cross-checks the summary files written by one climate-etl
// run. It verifies that every format holds the same keys in the same order,
// that statistics agree at output precision, and that each summary satisfies
// the statistical ordering invariants.
//
// Usage:
//
//	go run ./cmd/validate summary.csv summary.json summary.parquet summary.sqlite
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/climate-stats-etl/internal/adapter/file"
	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type source struct {
	path  string
	table domain.SummaryTable
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: validate FILE [FILE...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(context.Background(), flag.Args()))
}

func run(ctx context.Context, paths []string) int {
	fmt.Println("=== Climate Summary Validation ===")
	fmt.Println()

	sources := make([]source, 0, len(paths))
	for _, p := range paths {
		table, err := file.ReadSummaries(ctx, p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", p, err)
			return 1
		}
		sources = append(sources, source{path: p, table: table})
	}

	phases := []*phase{
		validateKeyOrder(sources),
		validateParity(sources),
		validateInvariants(sources),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, s := range sources {
		fmt.Printf("%-12s %d summaries (%s, %s)\n", filepath.Ext(s.path), len(s.table.Rows), s.table.Unit, s.table.Mode)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateKeyOrder checks that every file lists the same keys, in ascending
// order, as the first file.
func validateKeyOrder(sources []source) *phase {
	p := &phase{name: "Phase 1: Keys and order"}
	ref := sources[0]

	for _, s := range sources {
		for i := 1; i < len(s.table.Rows); i++ {
			if s.table.Rows[i-1].Key.Compare(s.table.Rows[i].Key) >= 0 {
				p.errorf("%s: row %d key %s not after %s", s.path, i, s.table.Rows[i].Key, s.table.Rows[i-1].Key)
			}
		}
		if s.path == ref.path {
			continue
		}
		if len(s.table.Rows) != len(ref.table.Rows) {
			p.errorf("%s: %d rows, %s has %d", s.path, len(s.table.Rows), ref.path, len(ref.table.Rows))
			continue
		}
		for i := range s.table.Rows {
			if s.table.Rows[i].Key != ref.table.Rows[i].Key {
				p.errorf("%s: row %d key %s, %s has %s", s.path, i, s.table.Rows[i].Key, ref.path, ref.table.Rows[i].Key)
			}
		}
	}
	return p
}

// validateParity compares every statistic against the first file after
// formatting both at output precision. Missing values must be missing in both.
func validateParity(sources []source) *phase {
	p := &phase{name: "Phase 2: Numeric parity (4 decimals)"}
	ref := sources[0]
	want := ref.table.Map()

	for _, s := range sources[1:] {
		for _, got := range s.table.Rows {
			w, ok := want[got.Key]
			if !ok {
				continue
			}
			if got.Count != w.Count {
				p.errorf("%s: %s count %d, want %d", s.path, got.Key, got.Count, w.Count)
			}
			if got.OutlierCount != w.OutlierCount {
				p.errorf("%s: %s outlier_count %d, want %d", s.path, got.Key, got.OutlierCount, w.OutlierCount)
			}
			if got.Unit != w.Unit {
				p.errorf("%s: %s unit %s, want %s", s.path, got.Key, got.Unit, w.Unit)
			}
			wf := w.StatFields()
			for i, f := range got.StatFields() {
				if a, b := formatCell(f.Value), formatCell(wf[i].Value); a != b {
					p.errorf("%s: %s %s = %q, %s has %q", s.path, got.Key, f.Name, a, ref.path, b)
				}
			}
		}
	}
	return p
}

func formatCell(v float64) string {
	if !domain.Finite(v) {
		return ""
	}
	return domain.FormatStat(v)
}

// validateInvariants checks min <= p25 <= median <= p75 <= p90 <= p95 <= max,
// min <= mean <= max and outlier_count <= count for every summary.
func validateInvariants(sources []source) *phase {
	p := &phase{name: "Phase 3: Ordering invariants"}

	for _, s := range sources {
		for _, sm := range s.table.Rows {
			if sm.OutlierCount > sm.Count {
				p.errorf("%s: %s outlier_count %d exceeds count %d", s.path, sm.Key, sm.OutlierCount, sm.Count)
			}
			if sm.Count == 0 {
				continue
			}

			chain := []domain.StatField{
				{Name: domain.ColMin, Value: sm.Min},
				{Name: domain.ColP25, Value: sm.Percentiles.P25},
				{Name: domain.ColMedian, Value: sm.Median},
				{Name: domain.ColP75, Value: sm.Percentiles.P75},
				{Name: domain.ColP90, Value: sm.Percentiles.P90},
				{Name: domain.ColP95, Value: sm.Percentiles.P95},
				{Name: domain.ColMax, Value: sm.Max},
			}
			for i := 1; i < len(chain); i++ {
				lo, hi := chain[i-1], chain[i]
				if domain.Finite(lo.Value) && domain.Finite(hi.Value) && lo.Value > hi.Value {
					p.errorf("%s: %s %s %v > %s %v", s.path, sm.Key, lo.Name, lo.Value, hi.Name, hi.Value)
				}
			}
			if domain.Finite(sm.Mean) && (sm.Mean < sm.Min || sm.Mean > sm.Max) {
				p.errorf("%s: %s mean %v outside [%v, %v]", s.path, sm.Key, sm.Mean, sm.Min, sm.Max)
			}
		}
	}
	return p
}
