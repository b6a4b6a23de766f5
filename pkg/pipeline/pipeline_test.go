package pipeline

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
	"github.com/nicheflow/nicheflow/pkg/reproduce"
	"github.com/nicheflow/nicheflow/pkg/stage"
	"github.com/nicheflow/nicheflow/pkg/stages/covariate"
	"github.com/nicheflow/nicheflow/pkg/stages/mapper"
	"github.com/nicheflow/nicheflow/pkg/stages/model"
	"github.com/nicheflow/nicheflow/pkg/stages/occurrence"
	"github.com/nicheflow/nicheflow/pkg/stages/process"
)

var testExtent = geo.Extent{West: -10, East: 10, South: 45, North: 65}

// easternPresences returns presence records clustered in the eastern half of
// the test extent, so a longitude gradient carries real signal.
func easternPresences() []frame.Record {
	return []frame.Record{
		{Value: 1, Type: frame.TypePresence, Lon: 4, Lat: 50},
		{Value: 1, Type: frame.TypePresence, Lon: 5, Lat: 55},
		{Value: 1, Type: frame.TypePresence, Lon: 6, Lat: 60},
		{Value: 1, Type: frame.TypePresence, Lon: 7, Lat: 52},
		{Value: 1, Type: frame.TypePresence, Lon: 8, Lat: 58},
		{Value: 1, Type: frame.TypePresence, Lon: 9, Lat: 63},
	}
}

func builtinSet() stage.Set {
	return stage.Set{
		Occurrence: occurrence.NewFixture(easternPresences()),
		Covariate:  covariate.NewGradient(covariate.GradientConfig{Rows: 16, Cols: 16}),
		Process:    process.NewBackground(process.BackgroundConfig{Count: 50, Seed: 3}),
		Model:      model.NewLogistic(model.LogisticConfig{}),
		Mapper:     mapper.NewPredict(),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	result, err := Run(context.Background(), testExtent, builtinSet())
	require.NoError(t, err)

	assert.Equal(t, testExtent, result.Extent)
	assert.Equal(t, 6, result.Occurrence.Len())
	assert.Equal(t, testExtent, result.Covariates.Extent())
	assert.Equal(t, 56, result.Samples.Len(), "6 presences plus 50 background points")
	require.NotNil(t, result.Model)

	pr, pc := result.Prediction.Dims()
	sr, sc := result.Covariates.Dims()
	assert.Equal(t, sr, pr)
	assert.Equal(t, sc, pc)

	// The reproduction script is captured as part of every successful run.
	assert.Contains(t, result.Script, "package main")
	assert.Contains(t, result.Script, "func runPipeline(")
	for _, kind := range []stage.Kind{stage.KindOccurrence, stage.KindCovariate, stage.KindProcess, stage.KindModel, stage.KindMap} {
		assert.Contains(t, result.Script, "func "+reproduce.ConstructorName(kind)+"(")
	}
	assert.Contains(t, result.Script, "var extent = "+testExtent.GoLiteral())
}

func TestRun_Idempotent(t *testing.T) {
	first, err := Run(context.Background(), testExtent, builtinSet())
	require.NoError(t, err)
	second, err := Run(context.Background(), testExtent, builtinSet())
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first.Samples, second.Samples))
	assert.True(t, first.Prediction.Equal(second.Prediction))
	assert.Equal(t, first.Script, second.Script)
}

func TestRun_StageFailureAnnotated(t *testing.T) {
	set := builtinSet()
	set.Occurrence = stage.NewOccurrenceFunc("boom", stage.SourceForm{},
		func(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error) {
			return nil, stderrors.New("upstream service down")
		})

	result, err := Run(context.Background(), testExtent, set)
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrStageFailed)
	assert.Contains(t, err.Error(), `occurrence stage "boom"`)
	assert.Contains(t, err.Error(), "upstream service down")
}

func TestRun_UnsupportedDataKeepsCategory(t *testing.T) {
	set := builtinSet()
	set.Occurrence = occurrence.NewFixture([]frame.Record{
		{Value: 1, Type: frame.TypePresence, Lon: 1, Lat: 50},
		{Value: 0, Type: frame.TypeAbsence, Lon: 2, Lat: 51},
	})

	result, err := Run(context.Background(), testExtent, set)
	assert.Nil(t, result)
	require.ErrorIs(t, err, stage.ErrUnsupportedDataKind)
	assert.True(t, errors.IsCategory(err, errors.CategoryUnsupportedData))
}

func TestRun_RecorderFailureFailsRun(t *testing.T) {
	set := builtinSet()
	set.Mapper = stage.NewMapperFunc("anonymous", stage.SourceForm{},
		func(ctx context.Context, m stage.FittedModel, covariates *raster.Surface) (*raster.Prediction, error) {
			return mapper.NewPredict().Map(ctx, m, covariates)
		})

	result, err := Run(context.Background(), testExtent, set)
	assert.Nil(t, result, "a run that cannot be recorded yields no partial result")
	require.ErrorIs(t, err, reproduce.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), `map stage "anonymous"`)
}

func TestRun_NilStageRejected(t *testing.T) {
	set := builtinSet()
	set.Model = nil

	result, err := Run(context.Background(), testExtent, set)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestRun_InvalidExtentRejected(t *testing.T) {
	bad := geo.Extent{West: 10, East: -10, South: 45, North: 65}
	result, err := Run(context.Background(), bad, builtinSet())
	assert.Nil(t, result)
	require.Error(t, err)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, testExtent, builtinSet())
	assert.Nil(t, result)
	require.ErrorIs(t, err, context.Canceled)
}
