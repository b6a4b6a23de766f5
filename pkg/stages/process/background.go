// Package process provides the built-in process stage implementations:
// pseudo-absence background sampling for presence-only data and a
// pass-through processor for presence/absence data.
package process

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/raster"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// BackgroundConfig configures the background-point sampler.
type BackgroundConfig struct {
	// Count is the number of background points sampled; default 100.
	Count int
	// Seed drives the sampler; runs with equal seeds are identical.
	Seed int64
	// Folds > 1 adds a k-fold cross-validation column; otherwise every row
	// is labelled fold 1.
	Folds int
}

// DefaultBackgroundConfig returns the default sampler configuration.
func DefaultBackgroundConfig() BackgroundConfig {
	return BackgroundConfig{Count: 100, Seed: 1}
}

// Background is a presence-only process stage: it keeps the occurrence rows
// in input order, appends uniformly sampled background points within the
// covariate surface's extent, and attaches covariate columns to every row.
// Background points falling on NODATA cells are dropped, so up to Count
// points are added.
type Background struct {
	cfg BackgroundConfig
}

// NewBackground constructs the stage, filling config defaults.
func NewBackground(cfg BackgroundConfig) *Background {
	def := DefaultBackgroundConfig()
	if cfg.Count <= 0 {
		cfg.Count = def.Count
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Background{cfg: cfg}
}

func (b *Background) Name() string { return "background" }

// Process builds the sample table. Occurrence tables containing anything but
// presence records are outside this stage's capability and fail with an
// unsupported-data-kind error.
func (b *Background) Process(ctx context.Context, occurrences *frame.OccurrenceTable, covariates *raster.Surface) (*frame.SampleTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := stage.RequireTypes(stage.KindProcess, occurrences.Types(), []string{frame.TypePresence}); err != nil {
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

	extent := covariates.Extent()
	rng := rand.New(rand.NewSource(b.cfg.Seed))
	for i := 0; i < b.cfg.Count; i++ {
		lon := extent.West + rng.Float64()*extent.Width()
		lat := extent.South + rng.Float64()*extent.Height()
		covs, err := covariates.ValuesAt(lon, lat)
		if err != nil {
			return nil, err
		}
		if hasNaN(covs) {
			continue
		}
		r := frame.Record{Value: 0, Type: frame.TypeBackground, Lon: lon, Lat: lat}
		if err := table.AppendRow(r, covs); err != nil {
			return nil, err
		}
	}

	if err := table.SetFolds(assignFolds(table.Len(), b.cfg.Folds, rng)); err != nil {
		return nil, err
	}
	return table, nil
}

// Source returns the stage's literal source form with the effective
// configuration baked in.
func (b *Background) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/process",
		},
		Decl: fmt.Sprintf(`func newProcessStage() stage.Process {
	return process.NewBackground(process.BackgroundConfig{Count: %d, Seed: %d, Folds: %d})
}`, b.cfg.Count, b.cfg.Seed, b.cfg.Folds),
	}, nil
}

// assignFolds labels rows 1..k at random, or all 1 when k < 2.
func assignFolds(n, k int, rng *rand.Rand) []int {
	folds := make([]int, n)
	for i := range folds {
		if k > 1 {
			folds[i] = 1 + rng.Intn(k)
		} else {
			folds[i] = 1
		}
	}
	return folds
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
