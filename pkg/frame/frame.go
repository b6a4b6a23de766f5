// Package frame holds the tabular data types threaded between pipeline
// stages: occurrence tables and covariate-extended sample tables.
package frame

import (
	"slices"

	"github.com/nicheflow/nicheflow/internal/errors"
)

// Occurrence record types.
const (
	TypePresence   = "presence"
	TypeAbsence    = "absence"
	TypeBackground = "background"
)

// KnownType reports whether t is one of the three recognised record types.
func KnownType(t string) bool {
	return t == TypePresence || t == TypeAbsence || t == TypeBackground
}

// Record is one observation row: a numeric value (1=presence, 0=absence, or a
// non-negative count), a categorical type label, and a location.
type Record struct {
	Value float64
	Type  string
	Lon   float64
	Lat   float64
}

// OccurrenceTable is an ordered collection of observation records with a
// fixed column set {value, type, lon, lat}.
type OccurrenceTable struct {
	Rows []Record
}

// NewOccurrenceTable returns a table pre-sized for n rows.
func NewOccurrenceTable(n int) *OccurrenceTable {
	return &OccurrenceTable{Rows: make([]Record, 0, n)}
}

// Append adds a record to the end of the table.
func (t *OccurrenceTable) Append(r Record) {
	t.Rows = append(t.Rows, r)
}

// Len returns the number of rows.
func (t *OccurrenceTable) Len() int {
	return len(t.Rows)
}

// Types returns the distinct record types present, in first-seen order.
func (t *OccurrenceTable) Types() []string {
	var seen []string
	for i := range t.Rows {
		if !slices.Contains(seen, t.Rows[i].Type) {
			seen = append(seen, t.Rows[i].Type)
		}
	}
	return seen
}

// CountType returns the number of rows carrying the given type label.
func (t *OccurrenceTable) CountType(typ string) int {
	n := 0
	for i := range t.Rows {
		if t.Rows[i].Type == typ {
			n++
		}
	}
	return n
}

// SampleTable is an OccurrenceTable extended with one covariate column per
// surface layer and an optional cross-validation fold column. Columns 1-4 are
// always {value, type, lon, lat}; covariate columns align 1:1 with the
// covariate surface's layer names in surface order.
type SampleTable struct {
	Rows           []Record
	CovariateNames []string
	Covariates     [][]float64 // row-major; Covariates[i] aligns with Rows[i]
	Folds          []int       // nil when no fold column is present
}

// NewSampleTable returns an empty sample table with the given covariate
// column names.
func NewSampleTable(covariateNames []string) *SampleTable {
	return &SampleTable{CovariateNames: slices.Clone(covariateNames)}
}

// AppendRow adds a record together with its covariate values. The value
// count must match the covariate column count.
func (t *SampleTable) AppendRow(r Record, covariates []float64) error {
	if len(covariates) != len(t.CovariateNames) {
		return errors.Newf("row has %d covariate values, table has %d covariate columns",
			len(covariates), len(t.CovariateNames)).
			Component("frame").
			Category(errors.CategoryValidation).
			Build()
	}
	t.Rows = append(t.Rows, r)
	t.Covariates = append(t.Covariates, slices.Clone(covariates))
	return nil
}

// Len returns the number of rows.
func (t *SampleTable) Len() int {
	return len(t.Rows)
}

// HasFolds reports whether a fold column is present.
func (t *SampleTable) HasFolds() bool {
	return t.Folds != nil
}

// SetFolds attaches a fold column. The length must match the row count.
func (t *SampleTable) SetFolds(folds []int) error {
	if len(folds) != len(t.Rows) {
		return errors.Newf("fold column has %d entries for %d rows", len(folds), len(t.Rows)).
			Component("frame").
			Category(errors.CategoryValidation).
			Build()
	}
	t.Folds = slices.Clone(folds)
	return nil
}

// Values returns the value column.
func (t *SampleTable) Values() []float64 {
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Rows[i].Value
	}
	return out
}

// Types returns the distinct record types present, in first-seen order.
func (t *SampleTable) Types() []string {
	var seen []string
	for i := range t.Rows {
		if !slices.Contains(seen, t.Rows[i].Type) {
			seen = append(seen, t.Rows[i].Type)
		}
	}
	return seen
}

// FoldScheme describes the shape of the fold column for evaluation purposes.
type FoldScheme int

const (
	// FoldsAbsent means no fold column is attached.
	FoldsAbsent FoldScheme = iota
	// FoldsNone means every row is labelled fold 1: no cross-validation.
	FoldsNone
	// FoldsHoldout means folds are restricted to {0, 1}: a single holdout
	// split where fold 0 is the held-out partition.
	FoldsHoldout
	// FoldsKFold means folds are all >= 1 with more than one distinct label.
	FoldsKFold
	// FoldsInvalid means the column mixes fold 0 with labels above 1, or
	// contains negative labels. No evaluation scheme is defined for it.
	FoldsInvalid
)

// Scheme classifies the fold column.
func (t *SampleTable) Scheme() FoldScheme {
	if t.Folds == nil {
		return FoldsAbsent
	}
	hasZero := false
	maxFold := 0
	distinct := map[int]bool{}
	for _, f := range t.Folds {
		if f < 0 {
			return FoldsInvalid
		}
		distinct[f] = true
		if f == 0 {
			hasZero = true
		}
		if f > maxFold {
			maxFold = f
		}
	}
	switch {
	case hasZero && maxFold > 1:
		return FoldsInvalid
	case hasZero:
		return FoldsHoldout
	case len(distinct) == 1:
		// All folds share one positive label; by convention that label is 1.
		return FoldsNone
	default:
		return FoldsKFold
	}
}
