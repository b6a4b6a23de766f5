package mapper

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
)

// meanModel scores each cell as the mean of its covariate values.
type meanModel struct{}

func (meanModel) Predict(covariates [][]float64) ([]float64, error) {
	out := make([]float64, len(covariates))
	for i, row := range covariates {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		out[i] = sum / float64(len(row))
	}
	return out, nil
}

func testSurface(t *testing.T) *raster.Surface {
	t.Helper()
	extent := geo.Extent{West: 0, East: 4, South: 0, North: 4}
	s, err := raster.NewSurface(extent, 4, 4, []string{"a", "b"})
	require.NoError(t, err)
	rows, cols := s.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			require.NoError(t, s.Set("a", r, c, float64(r)))
			require.NoError(t, s.Set("b", r, c, float64(c)))
		}
	}
	return s
}

func TestPredict_Map(t *testing.T) {
	surface := testSurface(t)

	pred, err := NewPredict().Map(context.Background(), meanModel{}, surface)
	require.NoError(t, err)

	pr, pc := pred.Dims()
	sr, sc := surface.Dims()
	assert.Equal(t, sr, pr)
	assert.Equal(t, sc, pc)
	assert.Equal(t, surface.Extent(), pred.Extent())

	assert.Equal(t, 0.0, pred.At(0, 0))
	assert.Equal(t, 2.0, pred.At(1, 3))
	assert.Equal(t, 3.0, pred.At(3, 3))
}

func TestPredict_NaNPropagates(t *testing.T) {
	surface := testSurface(t)
	require.NoError(t, surface.Set("a", 2, 2, math.NaN()))

	pred, err := NewPredict().Map(context.Background(), meanModel{}, surface)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(pred.At(2, 2)))
	assert.False(t, math.IsNaN(pred.At(0, 0)))
}

func TestPredict_Source(t *testing.T) {
	form, err := NewPredict().Source()
	require.NoError(t, err)
	assert.Contains(t, form.Decl, "func newMapStage() stage.Mapper {")
	assert.Contains(t, form.Imports, "github.com/nicheflow/nicheflow/pkg/stages/mapper")
}
