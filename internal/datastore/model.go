package datastore

import (
	"math"
	"time"

	"github.com/nicheflow/nicheflow/pkg/geo"
)

// PipelineRun is the persisted record of one completed pipeline run: the
// extent, the stage selection, the evaluation metrics and the paths of the
// written artifacts.
type PipelineRun struct {
	ID          string `gorm:"primaryKey"`
	StartedAt   time.Time
	CompletedAt time.Time

	West  float64
	East  float64
	South float64
	North float64

	OccurrenceStage string
	CovariateStage  string
	ProcessStage    string
	ModelStage      string
	MapStage        string

	Rows int

	// Metrics are nullable: an evaluation may be disabled or undefined
	// (single-class data yields NaN, stored as NULL).
	AUC               *float64
	Kappa             *float64
	Omission          *float64
	Sensitivity       *float64
	Specificity       *float64
	ProportionCorrect *float64

	ScriptPath     string
	PredictionPath string
}

// Extent reconstructs the run's analysis extent.
func (r *PipelineRun) Extent() geo.Extent {
	return geo.Extent{West: r.West, East: r.East, South: r.South, North: r.North}
}

// SetExtent flattens an extent into the run record.
func (r *PipelineRun) SetExtent(extent geo.Extent) {
	r.West, r.East, r.South, r.North = extent.West, extent.East, extent.South, extent.North
}

// Metric converts an evaluation value to its stored form, mapping NaN to
// NULL.
func Metric(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
