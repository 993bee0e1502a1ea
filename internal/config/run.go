package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// FormatAll expands to every file format.
const FormatAll = "all"

// FileFormats lists the file output formats in the order they are written.
var FileFormats = []string{"csv", "json", "parquet", "sqlite"}

// Columns names the input columns holding each observation field.
type Columns struct {
	Date        string `yaml:"date" validate:"required"`
	Country     string `yaml:"country" validate:"required"`
	Temperature string `yaml:"temperature" validate:"required"`
}

// Quality is the plausible reading range in Celsius.
type Quality struct {
	MinC float64 `yaml:"min_c" validate:"ltfield=MaxC"`
	MaxC float64 `yaml:"max_c"`
}

// RunConfig describes one ETL invocation. It is loaded from an optional YAML
// profile and then overridden by command-line flags.
type RunConfig struct {
	Input       string   `yaml:"input" validate:"required"`
	InputFormat string   `yaml:"input_format" validate:"omitempty,oneof=parquet csv"`
	Output      string   `yaml:"output" validate:"required"`
	Formats     []string `yaml:"formats" validate:"required,min=1,dive,oneof=csv json parquet sqlite all"`
	Countries   []string `yaml:"countries" validate:"omitempty,dive,required"`
	StartYear   *int     `yaml:"start_year"`
	EndYear     *int     `yaml:"end_year"`
	Unit        string   `yaml:"unit"`
	Threshold   float64  `yaml:"threshold" validate:"gt=0"`
	Aggregate   bool     `yaml:"aggregate"`
	Timestamp   bool     `yaml:"timestamp"`
	Publish     bool     `yaml:"publish"`
	Columns     Columns  `yaml:"columns"`
	Quality     Quality  `yaml:"quality"`
}

// DefaultRunConfig returns the settings used when neither a profile nor a
// flag sets a field.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Output:    "summary",
		Formats:   []string{"csv"},
		Unit:      "celsius",
		Threshold: domain.DefaultOutlierThreshold,
		Columns: Columns{
			Date:        "date",
			Country:     "country_alpha2",
			Temperature: "temp_mean_c_approx",
		},
		Quality: Quality{
			MinC: domain.DefaultQualityBounds.MinC,
			MaxC: domain.DefaultQualityBounds.MaxC,
		},
	}
}

// LoadProfile reads a YAML run profile on top of the defaults. Unknown keys
// are rejected.
func LoadProfile(path string) (RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return RunConfig{}, domain.ConfigError("load profile", err)
	}
	defer f.Close()

	return decodeProfile(f)
}

func decodeProfile(r io.Reader) (RunConfig, error) {
	rc := DefaultRunConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rc); err != nil {
		if errors.Is(err, io.EOF) {
			return DefaultRunConfig(), nil
		}
		return RunConfig{}, domain.ConfigError("load profile", fmt.Errorf("decode yaml: %w", err))
	}
	return rc, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules. Every failure is a
// domain config error.
func (rc RunConfig) Validate() error {
	if err := validate.Struct(rc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return domain.ConfigError("validate run config", describe(verrs))
		}
		return domain.ConfigError("validate run config", err)
	}
	if _, err := rc.TargetUnit(); err != nil {
		return err
	}
	if _, err := rc.FilterSpec(); err != nil {
		return err
	}
	return nil
}

func describe(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// FilterSpec builds the row filter from countries and the year range.
func (rc RunConfig) FilterSpec() (domain.FilterSpec, error) {
	return domain.NewFilterSpec(rc.Countries, rc.StartYear, rc.EndYear)
}

// TargetUnit parses Unit.
func (rc RunConfig) TargetUnit() (domain.Unit, error) {
	u, err := domain.ParseUnit(rc.Unit)
	if err != nil {
		return domain.Celsius, domain.ConfigError("parse unit", err)
	}
	return u, nil
}

// Mode returns the grouping mode.
func (rc RunConfig) Mode() domain.Mode {
	return domain.ModeFor(rc.Aggregate)
}

// QualityBounds returns the quality control range.
func (rc RunConfig) QualityBounds() domain.QualityBounds {
	return domain.QualityBounds{MinC: rc.Quality.MinC, MaxC: rc.Quality.MaxC}
}

// OutputFormats expands "all" and removes duplicates, returning formats in
// FileFormats order.
func (rc RunConfig) OutputFormats() []string {
	want := make(map[string]bool, len(rc.Formats))
	for _, f := range rc.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == FormatAll {
			for _, ff := range FileFormats {
				want[ff] = true
			}
			continue
		}
		want[f] = true
	}

	out := make([]string, 0, len(want))
	for _, f := range FileFormats {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}

// ResolvedInputFormat returns InputFormat, or infers it from the input file
// extension.
func (rc RunConfig) ResolvedInputFormat() string {
	if rc.InputFormat != "" {
		return rc.InputFormat
	}
	if strings.HasSuffix(strings.ToLower(rc.Input), ".csv") {
		return "csv"
	}
	return "parquet"
}
