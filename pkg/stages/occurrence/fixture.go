// Package occurrence provides the built-in occurrence stage implementations:
// a GBIF API client, a CSV loader, and a deterministic in-memory fixture.
package occurrence

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// Fixture is a deterministic occurrence stage returning a fixed set of
// records, filtered to the requested extent. Intended for tests, examples
// and reproducibility checks.
type Fixture struct {
	records []frame.Record
}

// NewFixture constructs the stage from a literal record set.
func NewFixture(records []frame.Record) *Fixture {
	return &Fixture{records: slices.Clone(records)}
}

func (f *Fixture) Name() string { return "fixture" }

// Fetch returns the fixture records lying within the extent, in input order.
func (f *Fixture) Fetch(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := frame.NewOccurrenceTable(len(f.records))
	for _, r := range f.records {
		if extent.Contains(r.Lon, r.Lat) {
			table.Append(r)
		}
	}
	return table, nil
}

// Source returns the stage's literal source form with every record baked in.
func (f *Fixture) Source() (stage.SourceForm, error) {
	rows := make([]string, len(f.records))
	for i, r := range f.records {
		rows[i] = fmt.Sprintf("\t\t{Value: %v, Type: %q, Lon: %v, Lat: %v},", r.Value, r.Type, r.Lon, r.Lat)
	}
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/frame",
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/occurrence",
		},
		Decl: fmt.Sprintf(`func newOccurrenceStage() stage.Occurrence {
	return occurrence.NewFixture([]frame.Record{
%s
	})
}`, strings.Join(rows, "\n")),
	}, nil
}
