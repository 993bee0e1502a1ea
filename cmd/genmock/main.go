// Command genmock writes a deterministic synthetic daily-temperature Parquet
// file in the source dataset layout, for local runs and tests. With -csv it
// instead converts an observation CSV to Parquet.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/daily.parquet
//	go run ./cmd/genmock -out data/mock/daily.parquet -countries US,FR -start 2000 -end 2004
//	go run ./cmd/genmock -csv data/daily.csv -out data/daily.parquet
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/climate-stats-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/climate-stats-etl/internal/adapter/parquetfile"
	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// climate is a country's mean and seasonal swing in Celsius. Southern
// hemisphere countries have a negative swing.
type climate struct {
	mean  float64
	swing float64
}

var climates = map[string]climate{
	"AU": {18, -6},
	"BR": {24, -3},
	"DE": {9, 9},
	"FR": {12, 8},
	"IN": {25, 5},
	"JP": {15, 10},
	"NO": {3, 9},
	"US": {13, 11},
	"ZA": {17, -5},
}

type genConfig struct {
	countries []string
	start     int
	end       int
	seed      uint64
	// every nth row gets a missing reading, and every (n*7)th an implausible one
	corruptEvery int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output Parquet path")
	csvIn := flag.String("csv", "", "convert this observation CSV instead of generating")
	countries := flag.String("countries", "AU,BR,DE,FR,IN,JP,NO,US,ZA", "comma-separated country codes")
	start := flag.Int("start", 1990, "first year")
	end := flag.Int("end", 1999, "last year")
	seed := flag.Uint64("seed", 42, "random seed")
	corrupt := flag.Int("corrupt-every", 97, "insert a missing reading every n rows, 0 to disable")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	var rows []domain.Observation
	if *csvIn != "" {
		batch, err := readCSV(*csvIn)
		if err != nil {
			return fmt.Errorf("processing %s: %w", *csvIn, err)
		}
		rows = batch.Rows
		log.Printf("%s: %d rows, %d skipped", *csvIn, len(batch.Rows), batch.Skipped)
	} else {
		if *start > *end {
			return fmt.Errorf("start year %d is after end year %d", *start, *end)
		}
		rows = generate(genConfig{
			countries:    strings.Split(*countries, ","),
			start:        *start,
			end:          *end,
			seed:         *seed,
			corruptEvery: *corrupt,
		})
	}

	if err := writeParquet(*out, rows); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	log.Printf("wrote %d observations: %s", len(rows), *out)
	return nil
}

func readCSV(path string) (domain.ObservationBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ObservationBatch{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return csvfile.ReadObservations(context.Background(), f, csvfile.Columns(parquetfile.DefaultColumns))
}

func writeParquet(path string, rows []domain.Observation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := parquetfile.WriteObservations(f, rows, parquetfile.DefaultColumns); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// generate returns one observation per country per day, ordered by date then
// country. The same config always yields the same rows.
func generate(cfg genConfig) []domain.Observation {
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15)) //nolint:gosec // fixture data

	first := time.Date(cfg.start, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(cfg.end, time.December, 31, 0, 0, 0, 0, time.UTC)

	var rows []domain.Observation //nolint:prealloc // size depends on leap years
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		season := math.Cos(2 * math.Pi * float64(d.YearDay()-200) / 365.25)
		for _, code := range cfg.countries {
			code = domain.NormalizeCountry(code)
			c, ok := climates[code]
			if !ok {
				c = climate{mean: 15, swing: 8}
			}
			temp := c.mean + c.swing*season + rng.NormFloat64()*3

			n := len(rows) + 1
			switch {
			case cfg.corruptEvery <= 0:
			case n%(cfg.corruptEvery*7) == 0:
				temp = 150
			case n%cfg.corruptEvery == 0:
				temp = math.NaN()
			}
			rows = append(rows, domain.Observation{Date: d, Country: code, Temperature: math.Round(temp*100) / 100})
		}
	}
	return rows
}
