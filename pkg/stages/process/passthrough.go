package process

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/raster"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// PassthroughConfig configures the presence/absence processor.
type PassthroughConfig struct {
	// Seed drives fold assignment.
	Seed int64
	// HoldoutFraction, when in (0, 1), assigns roughly that share of rows
	// to a held-out fold 0, the rest to fold 1. Mutually exclusive with
	// Folds.
	HoldoutFraction float64
	// Folds > 1 adds a k-fold column; otherwise every row is fold 1.
	Folds int
}

// Passthrough handles occurrence tables that already carry both positive and
// negative records: it attaches covariate columns without generating any new
// rows.
type Passthrough struct {
	cfg PassthroughConfig
}

// NewPassthrough constructs the stage, filling config defaults.
func NewPassthrough(cfg PassthroughConfig) *Passthrough {
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return &Passthrough{cfg: cfg}
}

func (p *Passthrough) Name() string { return "passthrough" }

// Process attaches covariates to every row, preserving row order.
func (p *Passthrough) Process(ctx context.Context, occurrences *frame.OccurrenceTable, covariates *raster.Surface) (*frame.SampleTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	supported := []string{frame.TypePresence, frame.TypeAbsence, frame.TypeBackground}
	if err := stage.RequireTypes(stage.KindProcess, occurrences.Types(), supported); err != nil {
		return nil, err
	}

	table := frame.NewSampleTable(covariates.LayerNames())
	for i := range occurrences.Rows {
		r := occurrences.Rows[i]
		covs, err := covariates.ValuesAt(r.Lon, r.Lat)
		if err != nil {
			return nil, err
		}
		if err := table.AppendRow(r, covs); err != nil {
			return nil, err
		}
	}

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	folds := make([]int, table.Len())
	switch {
	case p.cfg.HoldoutFraction > 0 && p.cfg.HoldoutFraction < 1:
		held := 0
		for i := range folds {
			if rng.Float64() < p.cfg.HoldoutFraction {
				folds[i] = 0
				held++
			} else {
				folds[i] = 1
			}
		}
		// Both partitions must be non-empty for the split to mean anything.
		if len(folds) > 1 {
			if held == 0 {
				folds[0] = 0
			} else if held == len(folds) {
				folds[len(folds)-1] = 1
			}
		}
	default:
		folds = assignFolds(table.Len(), p.cfg.Folds, rng)
	}
	if err := table.SetFolds(folds); err != nil {
		return nil, err
	}
	return table, nil
}

// Source returns the stage's literal source form.
func (p *Passthrough) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/process",
		},
		Decl: fmt.Sprintf(`func newProcessStage() stage.Process {
	return process.NewPassthrough(process.PassthroughConfig{Seed: %d, HoldoutFraction: %v, Folds: %d})
}`, p.cfg.Seed, p.cfg.HoldoutFraction, p.cfg.Folds),
	}, nil
}
