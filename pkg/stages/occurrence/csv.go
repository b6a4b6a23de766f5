package occurrence

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// CSVConfig configures the CSV occurrence loader.
type CSVConfig struct {
	// Path of the CSV file. The header must name a longitude and a latitude
	// column; value and type columns are optional and default to 1/presence.
	Path string
}

// CSV loads occurrence records from a local CSV file. Recognised header
// names (case-insensitive): lon/longitude, lat/latitude, value, type.
type CSV struct {
	cfg CSVConfig
}

// NewCSV constructs the stage.
func NewCSV(cfg CSVConfig) *CSV {
	return &CSV{cfg: cfg}
}

func (c *CSV) Name() string { return "csv" }

// Fetch parses the file and returns the records lying within the extent.
func (c *CSV) Fetch(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(c.cfg.Path)
	if err != nil {
		return nil, errors.New(err).Component("occurrence").Category(errors.CategoryFileIO).Build()
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(err).Component("occurrence").Category(errors.CategoryFileParsing).Build()
	}
	if len(rows) < 2 {
		return nil, errors.Newf("%s has no data rows", c.cfg.Path).
			Component("occurrence").
			Category(errors.CategoryFileParsing).
			Build()
	}

	lonCol, latCol, valueCol, typeCol := -1, -1, -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "lon", "longitude":
			lonCol = i
		case "lat", "latitude":
			latCol = i
		case "value":
			valueCol = i
		case "type":
			typeCol = i
		}
	}
	if lonCol < 0 || latCol < 0 {
		return nil, errors.Newf("%s header %v lacks longitude/latitude columns", c.cfg.Path, rows[0]).
			Component("occurrence").
			Category(errors.CategoryFileParsing).
			Build()
	}

	table := frame.NewOccurrenceTable(len(rows) - 1)
	for i, row := range rows[1:] {
		lon, err := strconv.ParseFloat(row[lonCol], 64)
		if err != nil {
			return nil, rowErr(c.cfg.Path, i+2, "longitude", row[lonCol])
		}
		lat, err := strconv.ParseFloat(row[latCol], 64)
		if err != nil {
			return nil, rowErr(c.cfg.Path, i+2, "latitude", row[latCol])
		}

		record := frame.Record{Value: 1, Type: frame.TypePresence, Lon: lon, Lat: lat}
		if valueCol >= 0 {
			record.Value, err = strconv.ParseFloat(row[valueCol], 64)
			if err != nil {
				return nil, rowErr(c.cfg.Path, i+2, "value", row[valueCol])
			}
		}
		if typeCol >= 0 {
			record.Type = strings.TrimSpace(row[typeCol])
		}

		if extent.Contains(record.Lon, record.Lat) {
			table.Append(record)
		}
	}
	return table, nil
}

func rowErr(path string, line int, column, value string) error {
	return errors.Newf("%s line %d: invalid %s %q", path, line, column, value).
		Component("occurrence").
		Category(errors.CategoryFileParsing).
		Build()
}

// Source returns the stage's literal source form.
func (c *CSV) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/occurrence",
		},
		Decl: fmt.Sprintf(`func newOccurrenceStage() stage.Occurrence {
	return occurrence.NewCSV(occurrence.CSVConfig{Path: %q})
}`, c.cfg.Path),
	}, nil
}
