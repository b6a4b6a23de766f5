package stage

import (
	"fmt"
	"slices"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
)

// Contract validation. The executor runs these checks against each stage's
// output; violations surface as typed failures, never silent coercion.

// ValidateOccurrence checks the occurrence contract: every row lies within
// the requested extent and carries a non-empty type label.
func ValidateOccurrence(extent geo.Extent, table *frame.OccurrenceTable) error {
	if table == nil {
		return contractErr(KindOccurrence, "stage returned no table")
	}
	for i := range table.Rows {
		r := &table.Rows[i]
		if r.Type == "" {
			return contractErr(KindOccurrence, fmt.Sprintf("row %d has an empty type label", i))
		}
		if !extent.Contains(r.Lon, r.Lat) {
			return contractErr(KindOccurrence, fmt.Sprintf("row %d at (%.4f, %.4f) outside %s", i, r.Lon, r.Lat, extent))
		}
	}
	return nil
}

// ValidateCovariate checks the covariate contract: the surface's spatial
// extent equals the requested extent.
func ValidateCovariate(extent geo.Extent, surface *raster.Surface) error {
	if surface == nil {
		return contractErr(KindCovariate, "stage returned no surface")
	}
	if surface.Extent() != extent {
		return contractErr(KindCovariate, fmt.Sprintf("surface %s does not match requested %s", surface.Extent(), extent))
	}
	return nil
}

// ValidateSamples checks the process contract: covariate columns align 1:1
// with the surface's layer names in surface order.
func ValidateSamples(samples *frame.SampleTable, surface *raster.Surface) error {
	if samples == nil {
		return contractErr(KindProcess, "stage returned no sample table")
	}
	if !slices.Equal(samples.CovariateNames, surface.LayerNames()) {
		return contractErr(KindProcess, fmt.Sprintf("sample table covariate columns %v do not match surface layers %v",
			samples.CovariateNames, surface.LayerNames()))
	}
	return nil
}

// ValidatePrediction checks the map contract: predictions cover every cell of
// the input surface in the same spatial arrangement.
func ValidatePrediction(prediction *raster.Prediction, surface *raster.Surface) error {
	if prediction == nil {
		return contractErr(KindMap, "stage returned no prediction")
	}
	pr, pc := prediction.Dims()
	sr, sc := surface.Dims()
	if pr != sr || pc != sc || prediction.Extent() != surface.Extent() {
		return contractErr(KindMap, fmt.Sprintf("prediction shape %dx%d %s does not match surface %dx%d %s",
			pr, pc, prediction.Extent(), sr, sc, surface.Extent()))
	}
	return nil
}

// RequireTypes fails with an unsupported-data-kind error when the table
// contains type labels outside the supported set. Stage implementations call
// this to declare their capability up front, before any partial processing.
func RequireTypes(kind Kind, types, supported []string) error {
	for _, typ := range types {
		if !slices.Contains(supported, typ) {
			return errors.New(fmt.Errorf("%w: %s stage cannot handle %q records (supported: %v)",
				ErrUnsupportedDataKind, kind, typ, supported)).
				Component(string(kind)).
				Category(errors.CategoryUnsupportedData).
				Context("stage", string(kind)).
				Context("type", typ).
				Build()
		}
	}
	return nil
}

// RequireKnownTypes restricts a model stage's input to the three recognised
// record types {presence, absence, background}.
func RequireKnownTypes(types []string) error {
	return RequireTypes(KindModel, types, []string{frame.TypePresence, frame.TypeAbsence, frame.TypeBackground})
}

func contractErr(kind Kind, msg string) error {
	return errors.Newf("%s contract violated: %s", kind, msg).
		Component("stage").
		Category(errors.CategoryValidation).
		Context("stage", string(kind)).
		Build()
}
