// Package registry maps configured stage names to built-in stage
// implementations. Stage selection stays the caller's responsibility; the
// registry is a convenience for the CLI, not a plugin system.
package registry

import (
	"sort"

	"github.com/nicheflow/nicheflow/internal/conf"
	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/stage"
	"github.com/nicheflow/nicheflow/pkg/stages/covariate"
	"github.com/nicheflow/nicheflow/pkg/stages/mapper"
	"github.com/nicheflow/nicheflow/pkg/stages/model"
	"github.com/nicheflow/nicheflow/pkg/stages/occurrence"
	"github.com/nicheflow/nicheflow/pkg/stages/process"
)

// Entry describes one built-in stage implementation.
type Entry struct {
	Kind        stage.Kind
	Name        string
	Description string
}

// Builtins returns the built-in stage catalog in pipeline order.
func Builtins() []Entry {
	return []Entry{
		{stage.KindOccurrence, "csv", "read occurrence records from a CSV file"},
		{stage.KindOccurrence, "gbif", "fetch occurrence records from the GBIF occurrence API"},
		{stage.KindCovariate, "gradient", "generate a deterministic synthetic gradient surface"},
		{stage.KindCovariate, "asciigrid", "load covariate layers from ESRI ASCII grid files"},
		{stage.KindProcess, "background", "attach covariates and sample background points (presence-only)"},
		{stage.KindProcess, "passthrough", "attach covariates, optionally with a holdout split"},
		{stage.KindModel, "logistic", "logistic regression fitted by reweighted least squares"},
		{stage.KindModel, "bioclim", "BIOCLIM rectilinear envelope score (presence-only)"},
		{stage.KindMap, "predict", "evaluate the fitted model over every grid cell"},
	}
}

// BuildSet assembles a stage set from validated settings. An unknown stage
// name yields a configuration error; ValidateSettings normally catches those
// first.
func BuildSet(settings *conf.Settings) (stage.Set, error) {
	var set stage.Set

	switch name := settings.Stages.Occurrence.Name; name {
	case "csv":
		set.Occurrence = occurrence.NewCSV(occurrence.CSVConfig{
			Path: settings.Stages.Occurrence.CSV.Path,
		})
	case "gbif":
		set.Occurrence = occurrence.NewGBIF(occurrence.GBIFConfig{
			Species:  settings.Stages.Occurrence.GBIF.Species,
			BaseURL:  settings.Stages.Occurrence.GBIF.BaseURL,
			PageSize: settings.Stages.Occurrence.GBIF.PageSize,
			MaxPages: settings.Stages.Occurrence.GBIF.MaxPages,
		})
	default:
		return stage.Set{}, unknownStage(stage.KindOccurrence, name)
	}

	switch name := settings.Stages.Covariate.Name; name {
	case "gradient":
		set.Covariate = covariate.NewGradient(covariate.GradientConfig{
			Layers: settings.Stages.Covariate.Gradient.Layers,
			Rows:   settings.Stages.Covariate.Gradient.Rows,
			Cols:   settings.Stages.Covariate.Gradient.Cols,
		})
	case "asciigrid":
		set.Covariate = covariate.NewASCIIGrid(covariate.ASCIIGridConfig{
			Files: layerFiles(settings.Stages.Covariate.ASCIIGrid.Files),
		})
	default:
		return stage.Set{}, unknownStage(stage.KindCovariate, name)
	}

	switch name := settings.Stages.Process.Name; name {
	case "background":
		set.Process = process.NewBackground(process.BackgroundConfig{
			Count: settings.Stages.Process.Background.Count,
			Seed:  settings.Stages.Process.Seed,
			Folds: settings.Stages.Process.Background.Folds,
		})
	case "passthrough":
		set.Process = process.NewPassthrough(process.PassthroughConfig{
			Seed:            settings.Stages.Process.Seed,
			HoldoutFraction: settings.Stages.Process.Passthrough.HoldoutFraction,
			Folds:           settings.Stages.Process.Passthrough.Folds,
		})
	default:
		return stage.Set{}, unknownStage(stage.KindProcess, name)
	}

	switch name := settings.Stages.Model.Name; name {
	case "logistic":
		set.Model = model.NewLogistic(model.LogisticConfig{
			MaxIter: settings.Stages.Model.Logistic.MaxIter,
			Tol:     settings.Stages.Model.Logistic.Tol,
		})
	case "bioclim":
		set.Model = model.NewBioclim()
	default:
		return stage.Set{}, unknownStage(stage.KindModel, name)
	}

	switch name := settings.Stages.Map.Name; name {
	case "predict":
		set.Mapper = mapper.NewPredict()
	default:
		return stage.Set{}, unknownStage(stage.KindMap, name)
	}

	return set, nil
}

// layerFiles orders the configured layer map by name so the surface layer
// order is stable across runs.
func layerFiles(files map[string]string) []covariate.LayerFile {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]covariate.LayerFile, 0, len(names))
	for _, name := range names {
		out = append(out, covariate.LayerFile{Name: name, Path: files[name]})
	}
	return out
}

func unknownStage(kind stage.Kind, name string) error {
	return errors.Newf("unknown %s stage %q", kind, name).
		Component("registry").
		Category(errors.CategoryConfiguration).
		Context("stage", string(kind)).
		Build()
}
