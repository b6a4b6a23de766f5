// Package mapper provides the built-in map stage: evaluating a fitted model
// over every cell of a covariate surface.
package mapper

import (
	"context"
	"math"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/raster"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// Predict renders a fitted model over the full covariate grid. Cells with any
// NODATA covariate carry NaN in the output.
type Predict struct{}

// NewPredict constructs the stage.
func NewPredict() *Predict {
	return &Predict{}
}

func (p *Predict) Name() string { return "predict" }

// Map scores every cell in one batched Predict call, preserving the grid's
// spatial arrangement.
func (p *Predict) Map(ctx context.Context, model stage.FittedModel, covariates *raster.Surface) (*raster.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, cols := covariates.Dims()
	batch := make([][]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			batch = append(batch, covariates.CellValues(r, c))
		}
	}

	scores, err := model.Predict(batch)
	if err != nil {
		return nil, errors.New(err).
			Component("mapper").
			Category(errors.CategoryPrediction).
			Context("cells", rows*cols).
			Build()
	}
	if len(scores) != rows*cols {
		return nil, errors.Newf("model returned %d scores for %d cells", len(scores), rows*cols).
			Component("mapper").
			Category(errors.CategoryPrediction).
			Build()
	}

	pred := raster.NewPrediction(covariates)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := scores[r*cols+c]
			if hasNaN(batch[r*cols+c]) {
				v = math.NaN()
			}
			pred.Set(r, c, v)
		}
	}
	return pred, nil
}

// Source returns the stage's literal source form.
func (p *Predict) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/mapper",
		},
		Decl: `func newMapStage() stage.Mapper {
	return mapper.NewPredict()
}`,
	}, nil
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
