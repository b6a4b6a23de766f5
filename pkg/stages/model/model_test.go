package model

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// separableSamples builds a one-covariate table where value tracks x > 0.5
// with a clean margin, so logistic regression must separate it.
func separableSamples(t *testing.T) *frame.SampleTable {
	t.Helper()
	samples := frame.NewSampleTable([]string{"x"})
	for i := 0; i < 20; i++ {
		x := float64(i) / 19
		rec := frame.Record{Type: frame.TypeAbsence, Lon: x, Lat: 50}
		if x > 0.5 {
			rec.Value = 1
			rec.Type = frame.TypePresence
		}
		require.NoError(t, samples.AppendRow(rec, []float64{x}))
	}
	return samples
}

func TestLogistic_FitSeparable(t *testing.T) {
	l := NewLogistic(LogisticConfig{})
	fitted, err := l.Fit(context.Background(), separableSamples(t))
	require.NoError(t, err)

	preds, err := fitted.Predict([][]float64{{0.05}, {0.5}, {0.95}})
	require.NoError(t, err)
	assert.Less(t, preds[0], 0.1, "deep in the absence range")
	assert.Greater(t, preds[2], 0.9, "deep in the presence range")
	assert.Less(t, preds[0], preds[1])
	assert.Less(t, preds[1], preds[2])
}

func TestLogistic_BackgroundAsZero(t *testing.T) {
	samples := frame.NewSampleTable([]string{"x"})
	for i := 0; i < 10; i++ {
		x := float64(i)
		require.NoError(t, samples.AppendRow(frame.Record{Value: 1, Type: frame.TypePresence, Lon: x, Lat: 50}, []float64{x + 10}))
		require.NoError(t, samples.AppendRow(frame.Record{Value: 0, Type: frame.TypeBackground, Lon: x, Lat: 50}, []float64{x}))
	}

	l := NewLogistic(LogisticConfig{})
	fitted, err := l.Fit(context.Background(), samples)
	require.NoError(t, err)

	preds, err := fitted.Predict([][]float64{{2}, {17}})
	require.NoError(t, err)
	assert.Less(t, preds[0], preds[1], "background rows anchor the low end")
}

func TestLogistic_SingleClass(t *testing.T) {
	samples := frame.NewSampleTable([]string{"x"})
	for i := 0; i < 5; i++ {
		require.NoError(t, samples.AppendRow(frame.Record{Value: 1, Type: frame.TypePresence, Lon: 0, Lat: 50}, []float64{float64(i)}))
	}

	l := NewLogistic(LogisticConfig{})
	_, err := l.Fit(context.Background(), samples)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelFit))
}

func TestLogistic_UnknownTypeRejected(t *testing.T) {
	samples := frame.NewSampleTable([]string{"x"})
	require.NoError(t, samples.AppendRow(frame.Record{Value: 1, Type: "sighting", Lon: 0, Lat: 50}, []float64{1}))

	l := NewLogistic(LogisticConfig{})
	_, err := l.Fit(context.Background(), samples)
	require.ErrorIs(t, err, stage.ErrUnsupportedDataKind)
}

func TestLogistic_PredictNaN(t *testing.T) {
	l := NewLogistic(LogisticConfig{})
	fitted, err := l.Fit(context.Background(), separableSamples(t))
	require.NoError(t, err)

	preds, err := fitted.Predict([][]float64{{math.NaN()}, {0.9}})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(preds[0]))
	assert.False(t, math.IsNaN(preds[1]))
}

func TestLogistic_PredictWidthMismatch(t *testing.T) {
	l := NewLogistic(LogisticConfig{})
	fitted, err := l.Fit(context.Background(), separableSamples(t))
	require.NoError(t, err)

	_, err = fitted.Predict([][]float64{{1, 2}})
	require.Error(t, err)
}

func TestLogistic_Source(t *testing.T) {
	l := NewLogistic(LogisticConfig{MaxIter: 50})
	form, err := l.Source()
	require.NoError(t, err)
	assert.Contains(t, form.Decl, "func newModelStage() stage.Model {")
	assert.Contains(t, form.Decl, "MaxIter: 50")
	assert.Contains(t, form.Imports, "github.com/nicheflow/nicheflow/pkg/stages/model")
}

func bioclimSamples(t *testing.T) *frame.SampleTable {
	t.Helper()
	samples := frame.NewSampleTable([]string{"temp"})
	for _, v := range []float64{10, 12, 14, 16, 18, 20} {
		require.NoError(t, samples.AppendRow(frame.Record{Value: 1, Type: frame.TypePresence, Lon: v, Lat: 50}, []float64{v}))
	}
	return samples
}

func TestBioclim_EnvelopeScores(t *testing.T) {
	b := NewBioclim()
	fitted, err := b.Fit(context.Background(), bioclimSamples(t))
	require.NoError(t, err)

	preds, err := fitted.Predict([][]float64{{15}, {10}, {5}, {25}})
	require.NoError(t, err)

	assert.Greater(t, preds[0], preds[1], "centre of the envelope beats the edge")
	assert.Greater(t, preds[1], 0.0)
	assert.Equal(t, 0.0, preds[2], "below the observed range")
	assert.Equal(t, 0.0, preds[3], "above the observed range")
}

func TestBioclim_BackgroundIgnored(t *testing.T) {
	samples := bioclimSamples(t)
	require.NoError(t, samples.AppendRow(frame.Record{Value: 0, Type: frame.TypeBackground, Lon: 100, Lat: 50}, []float64{100}))

	b := NewBioclim()
	fitted, err := b.Fit(context.Background(), samples)
	require.NoError(t, err)

	preds, err := fitted.Predict([][]float64{{100}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, preds[0], "background rows do not widen the envelope")
}

func TestBioclim_AbsenceRejected(t *testing.T) {
	samples := bioclimSamples(t)
	require.NoError(t, samples.AppendRow(frame.Record{Value: 0, Type: frame.TypeAbsence, Lon: 0, Lat: 50}, []float64{0}))

	b := NewBioclim()
	_, err := b.Fit(context.Background(), samples)
	require.ErrorIs(t, err, stage.ErrUnsupportedDataKind)
}

func TestBioclim_NoPresences(t *testing.T) {
	samples := frame.NewSampleTable([]string{"temp"})
	require.NoError(t, samples.AppendRow(frame.Record{Value: 0, Type: frame.TypeBackground, Lon: 0, Lat: 50}, []float64{1}))

	b := NewBioclim()
	_, err := b.Fit(context.Background(), samples)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelFit))
}

func TestBioclim_PredictNaN(t *testing.T) {
	b := NewBioclim()
	fitted, err := b.Fit(context.Background(), bioclimSamples(t))
	require.NoError(t, err)

	preds, err := fitted.Predict([][]float64{{math.NaN()}})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(preds[0]))
}
