package stage

import (
	"context"

	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
)

// The Func adapters wrap plain functions as stages. They carry an optional
// source form supplied at construction; pass a zero SourceForm for stages
// that should not be reproducible (Source then returns ErrNoSource).

// OccurrenceFunc adapts a function to the Occurrence contract.
type OccurrenceFunc struct {
	name   string
	source SourceForm
	fn     func(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error)
}

// NewOccurrenceFunc wraps fn as an occurrence stage.
func NewOccurrenceFunc(name string, source SourceForm, fn func(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error)) *OccurrenceFunc {
	return &OccurrenceFunc{name: name, source: source, fn: fn}
}

func (s *OccurrenceFunc) Name() string { return s.name }

func (s *OccurrenceFunc) Fetch(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error) {
	return s.fn(ctx, extent)
}

func (s *OccurrenceFunc) Source() (SourceForm, error) {
	if s.source.Decl == "" {
		return SourceForm{}, ErrNoSource
	}
	return s.source, nil
}

// CovariateFunc adapts a function to the Covariate contract.
type CovariateFunc struct {
	name   string
	source SourceForm
	fn     func(ctx context.Context, extent geo.Extent) (*raster.Surface, error)
}

// NewCovariateFunc wraps fn as a covariate stage.
func NewCovariateFunc(name string, source SourceForm, fn func(ctx context.Context, extent geo.Extent) (*raster.Surface, error)) *CovariateFunc {
	return &CovariateFunc{name: name, source: source, fn: fn}
}

func (s *CovariateFunc) Name() string { return s.name }

func (s *CovariateFunc) Fetch(ctx context.Context, extent geo.Extent) (*raster.Surface, error) {
	return s.fn(ctx, extent)
}

func (s *CovariateFunc) Source() (SourceForm, error) {
	if s.source.Decl == "" {
		return SourceForm{}, ErrNoSource
	}
	return s.source, nil
}

// ProcessFunc adapts a function to the Process contract.
type ProcessFunc struct {
	name   string
	source SourceForm
	fn     func(ctx context.Context, occurrences *frame.OccurrenceTable, covariates *raster.Surface) (*frame.SampleTable, error)
}

// NewProcessFunc wraps fn as a process stage.
func NewProcessFunc(name string, source SourceForm, fn func(ctx context.Context, occurrences *frame.OccurrenceTable, covariates *raster.Surface) (*frame.SampleTable, error)) *ProcessFunc {
	return &ProcessFunc{name: name, source: source, fn: fn}
}

func (s *ProcessFunc) Name() string { return s.name }

func (s *ProcessFunc) Process(ctx context.Context, occurrences *frame.OccurrenceTable, covariates *raster.Surface) (*frame.SampleTable, error) {
	return s.fn(ctx, occurrences, covariates)
}

func (s *ProcessFunc) Source() (SourceForm, error) {
	if s.source.Decl == "" {
		return SourceForm{}, ErrNoSource
	}
	return s.source, nil
}

// ModelFunc adapts a function to the Model contract.
type ModelFunc struct {
	name   string
	source SourceForm
	fn     func(ctx context.Context, samples *frame.SampleTable) (FittedModel, error)
}

// NewModelFunc wraps fn as a model stage.
func NewModelFunc(name string, source SourceForm, fn func(ctx context.Context, samples *frame.SampleTable) (FittedModel, error)) *ModelFunc {
	return &ModelFunc{name: name, source: source, fn: fn}
}

func (s *ModelFunc) Name() string { return s.name }

func (s *ModelFunc) Fit(ctx context.Context, samples *frame.SampleTable) (FittedModel, error) {
	return s.fn(ctx, samples)
}

func (s *ModelFunc) Source() (SourceForm, error) {
	if s.source.Decl == "" {
		return SourceForm{}, ErrNoSource
	}
	return s.source, nil
}

// MapperFunc adapts a function to the Mapper contract.
type MapperFunc struct {
	name   string
	source SourceForm
	fn     func(ctx context.Context, model FittedModel, covariates *raster.Surface) (*raster.Prediction, error)
}

// NewMapperFunc wraps fn as a map stage.
func NewMapperFunc(name string, source SourceForm, fn func(ctx context.Context, model FittedModel, covariates *raster.Surface) (*raster.Prediction, error)) *MapperFunc {
	return &MapperFunc{name: name, source: source, fn: fn}
}

func (s *MapperFunc) Name() string { return s.name }

func (s *MapperFunc) Map(ctx context.Context, model FittedModel, covariates *raster.Surface) (*raster.Prediction, error) {
	return s.fn(ctx, model, covariates)
}

func (s *MapperFunc) Source() (SourceForm, error) {
	if s.source.Decl == "" {
		return SourceForm{}, ErrNoSource
	}
	return s.source, nil
}

// PredictFunc adapts a plain function to the FittedModel capability set.
type PredictFunc func(covariates [][]float64) ([]float64, error)

func (f PredictFunc) Predict(covariates [][]float64) ([]float64, error) {
	return f(covariates)
}
