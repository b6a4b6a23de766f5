// Package pipeline composes one implementation per stage kind into a
// complete SDM analysis, executed strictly in dependency order.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/internal/logging"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
	"github.com/nicheflow/nicheflow/pkg/reproduce"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// ErrStageFailed is the sentinel wrapped around any stage-internal failure.
var ErrStageFailed = stderrors.New("stage execution failed")

// Result is the combined output of one pipeline run. It is owned exclusively
// by the caller; the executor retains no reference after returning.
type Result struct {
	Extent     geo.Extent
	Occurrence *frame.OccurrenceTable
	Covariates *raster.Surface
	Samples    *frame.SampleTable
	Model      stage.FittedModel
	Prediction *raster.Prediction
	Script     string
}

// Run invokes the five stages in dependency order, threading each stage's
// output into the next stage's declared inputs and validating every stage
// contract along the way. Any failure propagates immediately, annotated with
// the stage kind that failed; no partial Result is ever returned. Inputs are
// never mutated.
//
// After the map stage completes, the reproduction recorder captures the
// whole invocation into Result.Script.
func Run(ctx context.Context, extent geo.Extent, set stage.Set) (*Result, error) {
	logger := logging.ForService("pipeline")
	started := time.Now()

	if err := extent.Validate(); err != nil {
		return nil, err
	}
	if set.Occurrence == nil || set.Covariate == nil || set.Process == nil || set.Model == nil || set.Mapper == nil {
		return nil, errors.Newf("pipeline requires one implementation per stage kind").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	logger.Info("pipeline run starting",
		"extent", extent.String(),
		"occurrence", set.Occurrence.Name(),
		"covariate", set.Covariate.Name(),
		"process", set.Process.Name(),
		"model", set.Model.Name(),
		"map", set.Mapper.Name())

	occurrences, err := set.Occurrence.Fetch(ctx, extent)
	if err != nil {
		return nil, stageFailure(stage.KindOccurrence, set.Occurrence.Name(), err)
	}
	if err := stage.ValidateOccurrence(extent, occurrences); err != nil {
		return nil, err
	}

	covariates, err := set.Covariate.Fetch(ctx, extent)
	if err != nil {
		return nil, stageFailure(stage.KindCovariate, set.Covariate.Name(), err)
	}
	if err := stage.ValidateCovariate(extent, covariates); err != nil {
		return nil, err
	}

	samples, err := set.Process.Process(ctx, occurrences, covariates)
	if err != nil {
		return nil, stageFailure(stage.KindProcess, set.Process.Name(), err)
	}
	if err := stage.ValidateSamples(samples, covariates); err != nil {
		return nil, err
	}

	model, err := set.Model.Fit(ctx, samples)
	if err != nil {
		return nil, stageFailure(stage.KindModel, set.Model.Name(), err)
	}

	prediction, err := set.Mapper.Map(ctx, model, covariates)
	if err != nil {
		return nil, stageFailure(stage.KindMap, set.Mapper.Name(), err)
	}
	if err := stage.ValidatePrediction(prediction, covariates); err != nil {
		return nil, err
	}

	script, err := reproduce.Record(orchestrationSource(), extent, invocationExpression(), set)
	if err != nil {
		return nil, err
	}

	logger.Info("pipeline run complete",
		"rows", samples.Len(),
		"duration_ms", time.Since(started).Milliseconds())

	return &Result{
		Extent:     extent,
		Occurrence: occurrences,
		Covariates: covariates,
		Samples:    samples,
		Model:      model,
		Prediction: prediction,
		Script:     script,
	}, nil
}

// stageFailure wraps a stage-internal failure with the originating stage
// kind, leaving the underlying error content unchanged. Errors already typed
// as unsupported-data-kind keep their category.
func stageFailure(kind stage.Kind, name string, err error) error {
	category := errors.CategoryStageExecution
	if errors.Is(err, stage.ErrUnsupportedDataKind) {
		category = errors.CategoryUnsupportedData
	}
	return errors.New(fmt.Errorf("%w: %s stage %q: %w", ErrStageFailed, kind, name, err)).
		Component("pipeline").
		Category(category).
		StageContext(string(kind), name).
		Build()
}
