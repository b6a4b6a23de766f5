package conf

import "github.com/spf13/viper"

// setDefaultConfig sets default values for all configuration parameters.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("extent.west", -10.0)
	viper.SetDefault("extent.east", 10.0)
	viper.SetDefault("extent.south", 45.0)
	viper.SetDefault("extent.north", 65.0)

	viper.SetDefault("stages.occurrence.name", "csv")
	viper.SetDefault("stages.occurrence.csv.path", "occurrences.csv")
	viper.SetDefault("stages.occurrence.gbif.species", "")
	viper.SetDefault("stages.occurrence.gbif.baseurl", "https://api.gbif.org/v1")
	viper.SetDefault("stages.occurrence.gbif.pagesize", 300)
	viper.SetDefault("stages.occurrence.gbif.maxpages", 10)

	viper.SetDefault("stages.covariate.name", "gradient")
	viper.SetDefault("stages.covariate.gradient.layers", []string{"lon_gradient", "lat_gradient"})
	viper.SetDefault("stages.covariate.gradient.rows", 32)
	viper.SetDefault("stages.covariate.gradient.cols", 32)

	viper.SetDefault("stages.process.name", "background")
	viper.SetDefault("stages.process.seed", 1)
	viper.SetDefault("stages.process.background.count", 100)
	viper.SetDefault("stages.process.background.folds", 0)
	viper.SetDefault("stages.process.passthrough.holdoutfraction", 0.0)
	viper.SetDefault("stages.process.passthrough.folds", 0)

	viper.SetDefault("stages.model.name", "logistic")
	viper.SetDefault("stages.model.logistic.maxiter", 25)
	viper.SetDefault("stages.model.logistic.tol", 1e-8)

	viper.SetDefault("stages.map.name", "predict")

	viper.SetDefault("output.scriptpath", "output/reproduce.go.txt")
	viper.SetDefault("output.predictionpath", "output/prediction.asc")

	viper.SetDefault("evaluation.enabled", true)
	viper.SetDefault("evaluation.threshold", 0.0)

	viper.SetDefault("datastore.enabled", true)
	viper.SetDefault("datastore.path", "nicheflow.db")
}
