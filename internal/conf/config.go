// Package conf defines the viper-backed application settings: the analysis
// extent, the stage selection with per-stage options, and the output and
// persistence paths.
package conf

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// Settings mirrors the config.yaml layout. Flags bound through viper
// override file values, which override the defaults in defaults.go.
type Settings struct {
	Debug bool `yaml:"debug"`

	Extent ExtentSettings `yaml:"extent"`
	Stages StagesSettings `yaml:"stages"`
	Output OutputSettings `yaml:"output"`

	Evaluation EvaluationSettings `yaml:"evaluation"`
	Datastore  DatastoreSettings  `yaml:"datastore"`
}

// ExtentSettings holds the analysis extent in decimal degrees.
type ExtentSettings struct {
	West  float64 `yaml:"west"`
	East  float64 `yaml:"east"`
	South float64 `yaml:"south"`
	North float64 `yaml:"north"`
}

// StagesSettings selects one implementation per stage kind by name and
// carries the options of every selectable implementation. Only the options
// of the selected implementation are read.
type StagesSettings struct {
	Occurrence OccurrenceStageSettings `yaml:"occurrence"`
	Covariate  CovariateStageSettings  `yaml:"covariate"`
	Process    ProcessStageSettings    `yaml:"process"`
	Model      ModelStageSettings      `yaml:"model"`
	Map        MapStageSettings        `yaml:"map"`
}

// OccurrenceStageSettings selects and configures the occurrence stage.
type OccurrenceStageSettings struct {
	Name string `yaml:"name"` // csv or gbif

	CSV struct {
		Path string `yaml:"path"`
	} `yaml:"csv"`

	GBIF struct {
		Species  string `yaml:"species"`
		BaseURL  string `yaml:"baseurl"`
		PageSize int    `yaml:"pagesize"`
		MaxPages int    `yaml:"maxpages"`
	} `yaml:"gbif"`
}

// CovariateStageSettings selects and configures the covariate stage.
type CovariateStageSettings struct {
	Name string `yaml:"name"` // gradient or asciigrid

	Gradient struct {
		Layers []string `yaml:"layers"`
		Rows   int      `yaml:"rows"`
		Cols   int      `yaml:"cols"`
	} `yaml:"gradient"`

	ASCIIGrid struct {
		// Files maps layer names to ESRI ASCII grid paths.
		Files map[string]string `yaml:"files"`
	} `yaml:"asciigrid"`
}

// ProcessStageSettings selects and configures the process stage.
type ProcessStageSettings struct {
	Name string `yaml:"name"` // background or passthrough
	Seed int64  `yaml:"seed"`

	Background struct {
		Count int `yaml:"count"`
		Folds int `yaml:"folds"`
	} `yaml:"background"`

	Passthrough struct {
		HoldoutFraction float64 `yaml:"holdoutfraction"`
		Folds           int     `yaml:"folds"`
	} `yaml:"passthrough"`
}

// ModelStageSettings selects and configures the model stage.
type ModelStageSettings struct {
	Name string `yaml:"name"` // logistic or bioclim

	Logistic struct {
		MaxIter int     `yaml:"maxiter"`
		Tol     float64 `yaml:"tol"`
	} `yaml:"logistic"`
}

// MapStageSettings selects the map stage.
type MapStageSettings struct {
	Name string `yaml:"name"` // predict
}

// OutputSettings holds the artifact paths written after a successful run.
type OutputSettings struct {
	ScriptPath     string `yaml:"scriptpath"`
	PredictionPath string `yaml:"predictionpath"`
}

// EvaluationSettings controls the post-run performance evaluation.
type EvaluationSettings struct {
	Enabled bool `yaml:"enabled"`
	// Threshold is the presence/absence cut. Zero selects the default,
	// the mean of the observed values.
	Threshold float64 `yaml:"threshold"`
}

// DatastoreSettings controls run persistence.
type DatastoreSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load initializes viper, reads the configuration file if one exists, and
// unmarshals it into a validated Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the most recently loaded settings instance, or nil
// when Load has not been called.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper sets config discovery and defaults. A missing config file is not
// an error; the defaults stand.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	for _, path := range configPaths() {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

func configPaths() []string {
	return []string{".", "$HOME/.config/nicheflow", "/etc/nicheflow"}
}
