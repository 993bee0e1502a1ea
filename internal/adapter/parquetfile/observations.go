package parquetfile

import (
	"fmt"
	"io"
	"math"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/parquet"
	"github.com/fraugster/parquet-go/parquetschema"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

const observationSchema = `message observation {
	required binary %s (STRING);
	required binary %s (STRING);
	optional double %s;
}`

// WriteObservations encodes rows in the source dataset layout, with dates as
// YYYY-MM-DD strings and temperatures in Celsius. NaN temperatures are
// written as null.
func WriteObservations(w io.Writer, rows []domain.Observation, cols Columns) error {
	sd, err := parquetschema.ParseSchemaDefinition(fmt.Sprintf(observationSchema, cols.Date, cols.Country, cols.Temperature))
	if err != nil {
		return fmt.Errorf("parse observation schema: %w", err)
	}

	fw := goparquet.NewFileWriter(w,
		goparquet.WithSchemaDefinition(sd),
		goparquet.WithCompressionCodec(parquet.CompressionCodec_SNAPPY),
		goparquet.WithCreator("climate-stats-etl"),
	)

	for i, o := range rows {
		rec := map[string]any{
			cols.Date:    []byte(o.Date.Format(domain.DateLayout)),
			cols.Country: []byte(o.Country),
		}
		if c := domain.ToCelsius(o.Temperature, o.Unit); !math.IsNaN(c) {
			rec[cols.Temperature] = c
		}
		if err := fw.AddData(rec); err != nil {
			return domain.EncodingError("write parquet", fmt.Errorf("row %d: %w", i, err))
		}
	}

	if err := fw.Close(); err != nil {
		return domain.IOError("write parquet", err)
	}
	return nil
}
