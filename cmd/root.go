// Package cmd assembles the nicheflow command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nicheflow/nicheflow/cmd/modules"
	"github.com/nicheflow/nicheflow/cmd/run"
	"github.com/nicheflow/nicheflow/cmd/runs"
	"github.com/nicheflow/nicheflow/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nicheflow",
		Short: "nicheflow species distribution modelling pipeline",
		Long:  "Compose occurrence, covariate, process, model and map stages into a reproducible species distribution analysis.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		run.Command(settings),
		modules.Command(),
		runs.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Sync flag overrides back into the settings struct so command-line
		// arguments take precedence over the config file.
		if err := viper.Unmarshal(settings); err != nil {
			return fmt.Errorf("error applying flag overrides: %w", err)
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines the global flags shared by all subcommands.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64Var(&settings.Extent.West, "west", viper.GetFloat64("extent.west"), "Western extent bound in decimal degrees")
	rootCmd.PersistentFlags().Float64Var(&settings.Extent.East, "east", viper.GetFloat64("extent.east"), "Eastern extent bound in decimal degrees")
	rootCmd.PersistentFlags().Float64Var(&settings.Extent.South, "south", viper.GetFloat64("extent.south"), "Southern extent bound in decimal degrees")
	rootCmd.PersistentFlags().Float64Var(&settings.Extent.North, "north", viper.GetFloat64("extent.north"), "Northern extent bound in decimal degrees")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("extent.west", rootCmd.PersistentFlags().Lookup("west")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("extent.east", rootCmd.PersistentFlags().Lookup("east")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("extent.south", rootCmd.PersistentFlags().Lookup("south")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("extent.north", rootCmd.PersistentFlags().Lookup("north")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
