// Package stage defines the protocol contracts the five pipeline stage kinds
// must honor, plus the validation the executor applies to stage output.
// Concrete implementations live in internal/stages; callers select one per
// kind at composition time, there is no registry in the core.
package stage

import (
	"context"
	stderrors "errors"

	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
)

// ErrUnsupportedDataKind is the sentinel wrapped by every stage that receives
// data outside its declared capability.
var ErrUnsupportedDataKind = stderrors.New("unsupported data kind")

// ErrNoSource is returned by Source when an implementation carries no
// retrievable source form.
var ErrNoSource = stderrors.New("no source form available")

// Kind identifies one of the five stage kinds.
type Kind string

const (
	KindOccurrence Kind = "occurrence"
	KindCovariate  Kind = "covariate"
	KindProcess    Kind = "process"
	KindModel      Kind = "model"
	KindMap        Kind = "map"
)

// FittedModel is the opaque handle produced by a model stage. Its only
// required capability is predicting from covariate rows.
type FittedModel interface {
	// Predict returns one score per input row. Each row holds covariate
	// values in the sample table's covariate column order.
	Predict(covariates [][]float64) ([]float64, error)
}

// Occurrence retrieves observation records for an extent.
type Occurrence interface {
	Name() string
	Fetch(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error)
}

// Covariate retrieves a multi-layer covariate surface for an extent.
type Covariate interface {
	Name() string
	Fetch(ctx context.Context, extent geo.Extent) (*raster.Surface, error)
}

// Process combines occurrences with covariates into a sample table.
type Process interface {
	Name() string
	Process(ctx context.Context, occurrences *frame.OccurrenceTable, covariates *raster.Surface) (*frame.SampleTable, error)
}

// Model fits a predictive model to a sample table.
type Model interface {
	Name() string
	Fit(ctx context.Context, samples *frame.SampleTable) (FittedModel, error)
}

// Mapper renders a fitted model over a covariate surface.
type Mapper interface {
	Name() string
	Map(ctx context.Context, model FittedModel, covariates *raster.Surface) (*raster.Prediction, error)
}

// Set holds one caller-selected implementation per stage kind.
type Set struct {
	Occurrence Occurrence
	Covariate  Covariate
	Process    Process
	Model      Model
	Mapper     Mapper
}

// SourceForm is the literal source representation of a stage implementation:
// a self-contained Go declaration plus the package paths it depends on. It is
// captured at construction time, never re-derived from runtime state.
type SourceForm struct {
	Imports []string
	Decl    string
}

// Sourcer is the capability the reproduction recorder requires: a stage
// carries its own literal source form.
type Sourcer interface {
	// Source returns the stage's source form. Implementations without a
	// retrievable source return ErrNoSource.
	Source() (SourceForm, error)
}
