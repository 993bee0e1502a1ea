// Package jsonfile reads and writes summary tables as a JSON array.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// record is the wire shape of one summary. Statistics are json.Number so they
// keep exactly domain.Precision decimals; nil is the missing sentinel.
type record struct {
	Key          string       `json:"key"`
	Count        uint64       `json:"count"`
	Min          *json.Number `json:"min"`
	Max          *json.Number `json:"max"`
	Mean         *json.Number `json:"mean"`
	Median       *json.Number `json:"median"`
	P25          *json.Number `json:"p25"`
	P75          *json.Number `json:"p75"`
	P90          *json.Number `json:"p90"`
	P95          *json.Number `json:"p95"`
	OutlierCount uint64       `json:"outlier_count"`
	Unit         string       `json:"unit"`
}

func (r *record) stats() [8]**json.Number {
	return [8]**json.Number{&r.Min, &r.Max, &r.Mean, &r.Median, &r.P25, &r.P75, &r.P90, &r.P95}
}

func toRecord(s domain.StatSummary) record {
	r := record{
		Key:          s.Key.String(),
		Count:        s.Count,
		OutlierCount: s.OutlierCount,
		Unit:         s.Unit.String(),
	}
	slots := r.stats()
	for i, f := range s.StatFields() {
		if !domain.Finite(f.Value) {
			continue
		}
		n := json.Number(domain.FormatStat(f.Value))
		*slots[i] = &n
	}
	return r
}

// WriteSummaries writes table as an indented JSON array, one object per
// summary in table order. Non-finite statistics are written as null and
// returned as issues. An empty table yields [].
func WriteSummaries(w io.Writer, table domain.SummaryTable) ([]domain.FieldIssue, error) {
	records := make([]record, 0, len(table.Rows))
	var issues []domain.FieldIssue
	for _, s := range table.Rows {
		records = append(records, toRecord(s))
		issues = append(issues, s.NonFinite()...)
	}

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return issues, domain.EncodingError("write json", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return issues, domain.IOError("write json", err)
	}
	return issues, nil
}

// ReadSummaries parses a file produced by WriteSummaries. Null statistics
// come back as NaN. The table mode is Aggregated when the only key is ALL.
func ReadSummaries(r io.Reader) (domain.SummaryTable, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var records []record
	if err := dec.Decode(&records); err != nil {
		return domain.SummaryTable{}, domain.ReadError("read json summaries", err)
	}

	table := domain.SummaryTable{Rows: make([]domain.StatSummary, 0, len(records))}
	for _, rec := range records {
		s, err := fromRecord(rec)
		if err != nil {
			return domain.SummaryTable{}, domain.ReadError("read json summaries", err)
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

func fromRecord(rec record) (domain.StatSummary, error) {
	unit, err := domain.ParseUnit(rec.Unit)
	if err != nil {
		return domain.StatSummary{}, fmt.Errorf("key %s: %w", rec.Key, err)
	}
	s := domain.StatSummary{
		Key:          domain.ParseKey(rec.Key),
		Count:        rec.Count,
		OutlierCount: rec.OutlierCount,
		Unit:         unit,
	}

	slots := rec.stats()
	for i, f := range s.StatFields() {
		n := *slots[i]
		if n == nil {
			s.SetStat(f.Name, math.NaN())
			continue
		}
		v, err := n.Float64()
		if err != nil {
			return domain.StatSummary{}, fmt.Errorf("key %s: %s: %w", rec.Key, f.Name, err)
		}
		s.SetStat(f.Name, v)
	}
	return s, nil
}

// MarshalSummary encodes one summary as a compact JSON object in the same
// shape WriteSummaries uses for each array element.
func MarshalSummary(s domain.StatSummary) ([]byte, []domain.FieldIssue, error) {
	b, err := json.Marshal(toRecord(s))
	if err != nil {
		return nil, nil, domain.EncodingError("marshal summary", err)
	}
	return b, s.NonFinite(), nil
}
