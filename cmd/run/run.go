// Package run implements the subcommand that executes one configured
// pipeline run and writes its artifacts.
package run

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nicheflow/nicheflow/internal/conf"
	"github.com/nicheflow/nicheflow/internal/datastore"
	"github.com/nicheflow/nicheflow/internal/logging"
	"github.com/nicheflow/nicheflow/internal/registry"
	"github.com/nicheflow/nicheflow/pkg/evaluate"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/pipeline"
)

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the configured pipeline",
		Long:  "Run the five configured stages over the configured extent, write the prediction grid and the reproduction script, and record the run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(settings)
		},
	}

	setupFlags(cmd, settings)
	return cmd
}

// setupFlags configures flags specific to the run command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().StringVar(&settings.Stages.Occurrence.Name, "occurrence", viper.GetString("stages.occurrence.name"), "Occurrence stage name")
	cmd.Flags().StringVar(&settings.Stages.Occurrence.GBIF.Species, "species", viper.GetString("stages.occurrence.gbif.species"), "Scientific name for the gbif occurrence stage")
	cmd.Flags().StringVar(&settings.Stages.Occurrence.CSV.Path, "csv", viper.GetString("stages.occurrence.csv.path"), "Input path for the csv occurrence stage")
	cmd.Flags().StringVar(&settings.Stages.Covariate.Name, "covariate", viper.GetString("stages.covariate.name"), "Covariate stage name")
	cmd.Flags().StringVar(&settings.Stages.Process.Name, "process", viper.GetString("stages.process.name"), "Process stage name")
	cmd.Flags().Int64Var(&settings.Stages.Process.Seed, "seed", viper.GetInt64("stages.process.seed"), "Random seed for the process stage")
	cmd.Flags().StringVar(&settings.Stages.Model.Name, "model", viper.GetString("stages.model.name"), "Model stage name")
	cmd.Flags().StringVar(&settings.Output.ScriptPath, "script", viper.GetString("output.scriptpath"), "Output path for the reproduction script")
	cmd.Flags().StringVar(&settings.Output.PredictionPath, "prediction", viper.GetString("output.predictionpath"), "Output path for the prediction ASCII grid")
	cmd.Flags().Float64Var(&settings.Evaluation.Threshold, "threshold", viper.GetFloat64("evaluation.threshold"), "Presence threshold for evaluation (0 uses the mean observed value)")

	// Bind each flag to its settings key so flag overrides survive the
	// config resync in the root command's PersistentPreRunE.
	bindings := map[string]string{
		"stages.occurrence.name":         "occurrence",
		"stages.occurrence.gbif.species": "species",
		"stages.occurrence.csv.path":     "csv",
		"stages.covariate.name":          "covariate",
		"stages.process.name":            "process",
		"stages.process.seed":            "seed",
		"stages.model.name":              "model",
		"output.scriptpath":              "script",
		"output.predictionpath":          "prediction",
		"evaluation.threshold":           "threshold",
	}
	for key, flag := range bindings {
		cobra.CheckErr(viper.BindPFlag(key, cmd.Flags().Lookup(flag)))
	}
}

func execute(settings *conf.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.ForService("run")
	extent := geo.Extent{
		West:  settings.Extent.West,
		East:  settings.Extent.East,
		South: settings.Extent.South,
		North: settings.Extent.North,
	}

	set, err := registry.BuildSet(settings)
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := pipeline.Run(ctx, extent, set)
	if err != nil {
		return err
	}

	if err := writeArtifacts(settings, result); err != nil {
		return err
	}

	record := &datastore.PipelineRun{
		StartedAt:       started,
		CompletedAt:     time.Now(),
		OccurrenceStage: set.Occurrence.Name(),
		CovariateStage:  set.Covariate.Name(),
		ProcessStage:    set.Process.Name(),
		ModelStage:      set.Model.Name(),
		MapStage:        set.Mapper.Name(),
		Rows:            result.Samples.Len(),
		ScriptPath:      settings.Output.ScriptPath,
		PredictionPath:  settings.Output.PredictionPath,
	}
	record.SetExtent(extent)

	if settings.Evaluation.Enabled {
		bundle, err := evaluateRun(settings, result)
		if err != nil {
			return err
		}
		record.AUC = datastore.Metric(bundle.AUC)
		record.Kappa = datastore.Metric(bundle.Kappa)
		record.Omission = datastore.Metric(bundle.Omission)
		record.Sensitivity = datastore.Metric(bundle.Sensitivity)
		record.Specificity = datastore.Metric(bundle.Specificity)
		record.ProportionCorrect = datastore.Metric(bundle.ProportionCorrect)

		fmt.Printf("Model performance over %d sample rows:\n", result.Samples.Len())
		for _, name := range []string{"auc", "kappa", "omissions", "sensitivity", "specificity", "proportionCorrect"} {
			fmt.Printf("  %-18s %.4f\n", name, bundle.Map()[name])
		}
	}

	if settings.Datastore.Enabled {
		store := datastore.New(settings)
		if err := store.Open(); err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(record); err != nil {
			return err
		}
		fmt.Printf("Recorded run %s\n", record.ID)
	}

	logger.Info("run finished",
		"rows", result.Samples.Len(),
		"duration_ms", time.Since(started).Milliseconds())
	return nil
}

// evaluateRun scores the fitted model on the run's own sample rows.
func evaluateRun(settings *conf.Settings, result *pipeline.Result) (evaluate.Bundle, error) {
	predictions, err := result.Model.Predict(result.Samples.Covariates)
	if err != nil {
		return evaluate.Bundle{}, err
	}

	var threshold *float64
	if settings.Evaluation.Threshold > 0 && !math.IsNaN(settings.Evaluation.Threshold) {
		threshold = &settings.Evaluation.Threshold
	}
	return evaluate.Evaluate(result.Samples, predictions, threshold)
}

// writeArtifacts writes the reproduction script and the prediction grid.
func writeArtifacts(settings *conf.Settings, result *pipeline.Result) error {
	if path := settings.Output.ScriptPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(result.Script), 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote reproduction script to %s\n", path)
	}

	if path := settings.Output.PredictionPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := result.Prediction.WriteASCIIGrid(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Wrote prediction grid to %s\n", path)
	}
	return nil
}
