package model

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// Bioclim fits a BIOCLIM rectilinear envelope from presence records alone.
// The score for a cell is the smallest two-tailed percentile of its covariate
// values within the presence distribution, so cells near the centre of the
// envelope score close to 1 and cells outside any covariate's observed range
// score 0. Background rows are accepted as input but do not shape the
// envelope.
type Bioclim struct{}

// NewBioclim constructs the stage.
func NewBioclim() *Bioclim {
	return &Bioclim{}
}

func (b *Bioclim) Name() string { return "bioclim" }

// Fit builds the per-covariate presence envelope.
func (b *Bioclim) Fit(ctx context.Context, samples *frame.SampleTable) (stage.FittedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := stage.RequireTypes(stage.KindModel, samples.Types(),
		[]string{frame.TypePresence, frame.TypeBackground}); err != nil {
		return nil, err
	}

	p := len(samples.CovariateNames)
	envelope := make([][]float64, p)
	for i := range samples.Rows {
		if samples.Rows[i].Type != frame.TypePresence {
			continue
		}
		for j, v := range samples.Covariates[i] {
			if math.IsNaN(v) {
				return nil, fitErr("bioclim", fmt.Sprintf("row %d covariate %q is NaN", i, samples.CovariateNames[j]))
			}
			envelope[j] = append(envelope[j], v)
		}
	}
	if len(envelope) == 0 || len(envelope[0]) == 0 {
		return nil, fitErr("bioclim", "no presence records to build an envelope from")
	}
	for j := range envelope {
		sort.Float64s(envelope[j])
	}

	return &bioclimModel{envelope: envelope}, nil
}

// Source returns the stage's literal source form.
func (b *Bioclim) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/model",
		},
		Decl: `func newModelStage() stage.Model {
	return model.NewBioclim()
}`,
	}, nil
}

// bioclimModel holds one sorted presence sample per covariate column.
type bioclimModel struct {
	envelope [][]float64
}

// Predict scores each row as the minimum two-tailed envelope percentile
// across covariates. Rows containing NaN yield NaN.
func (m *bioclimModel) Predict(covariates [][]float64) ([]float64, error) {
	out := make([]float64, len(covariates))
	for i, row := range covariates {
		if len(row) != len(m.envelope) {
			return nil, errors.Newf("row %d has %d covariates, envelope has %d",
				i, len(row), len(m.envelope)).
				Component("model").
				Category(errors.CategoryPrediction).
				Build()
		}
		score := 1.0
		nan := false
		for j, v := range row {
			if math.IsNaN(v) {
				nan = true
				break
			}
			score = math.Min(score, tailScore(m.envelope[j], v))
		}
		if nan {
			out[i] = math.NaN()
			continue
		}
		out[i] = score
	}
	return out, nil
}

// tailScore is 2*min(F(v), 1-F(v)) over the sorted presence values, 0 when v
// falls outside the observed range.
func tailScore(sorted []float64, v float64) float64 {
	if v < sorted[0] || v > sorted[len(sorted)-1] {
		return 0
	}
	n := float64(len(sorted))
	below := float64(sort.SearchFloat64s(sorted, v)) / n
	above := float64(len(sorted)-sort.Search(len(sorted), func(i int) bool { return sorted[i] > v })) / n
	return 2 * math.Min(1-above, 1-below)
}
