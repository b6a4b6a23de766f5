package conf

import (
	"slices"

	"github.com/nicheflow/nicheflow/internal/errors"
)

// Selectable stage implementation names per kind.
var (
	OccurrenceStageNames = []string{"csv", "gbif"}
	CovariateStageNames  = []string{"gradient", "asciigrid"}
	ProcessStageNames    = []string{"background", "passthrough"}
	ModelStageNames      = []string{"logistic", "bioclim"}
	MapStageNames        = []string{"predict"}
)

// ValidateSettings checks the loaded settings for structural errors: an
// inverted or out-of-range extent, unknown stage names, and missing options
// the selected stages require.
func ValidateSettings(s *Settings) error {
	if s.Extent.West >= s.Extent.East || s.Extent.South >= s.Extent.North {
		return configErr("extent bounds are inverted or empty: west=%g east=%g south=%g north=%g",
			s.Extent.West, s.Extent.East, s.Extent.South, s.Extent.North)
	}
	if s.Extent.West < -180 || s.Extent.East > 180 || s.Extent.South < -90 || s.Extent.North > 90 {
		return configErr("extent bounds outside valid coordinate range")
	}

	if err := validateStageName("occurrence", s.Stages.Occurrence.Name, OccurrenceStageNames); err != nil {
		return err
	}
	if err := validateStageName("covariate", s.Stages.Covariate.Name, CovariateStageNames); err != nil {
		return err
	}
	if err := validateStageName("process", s.Stages.Process.Name, ProcessStageNames); err != nil {
		return err
	}
	if err := validateStageName("model", s.Stages.Model.Name, ModelStageNames); err != nil {
		return err
	}
	if err := validateStageName("map", s.Stages.Map.Name, MapStageNames); err != nil {
		return err
	}

	switch s.Stages.Occurrence.Name {
	case "csv":
		if s.Stages.Occurrence.CSV.Path == "" {
			return configErr("csv occurrence stage requires stages.occurrence.csv.path")
		}
	case "gbif":
		if s.Stages.Occurrence.GBIF.Species == "" {
			return configErr("gbif occurrence stage requires stages.occurrence.gbif.species")
		}
	}
	if s.Stages.Covariate.Name == "asciigrid" && len(s.Stages.Covariate.ASCIIGrid.Files) == 0 {
		return configErr("asciigrid covariate stage requires stages.covariate.asciigrid.files")
	}

	if s.Evaluation.Threshold < 0 || s.Evaluation.Threshold > 1 {
		return configErr("evaluation.threshold must be between 0 and 1")
	}
	if s.Datastore.Enabled && s.Datastore.Path == "" {
		return configErr("datastore.path must be set when the datastore is enabled")
	}

	return nil
}

func validateStageName(kind, name string, known []string) error {
	if !slices.Contains(known, name) {
		return configErr("unknown %s stage %q (available: %v)", kind, name, known)
	}
	return nil
}

func configErr(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}
