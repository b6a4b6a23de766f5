package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicheflow/nicheflow/internal/conf"
	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

func validSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Stages.Occurrence.Name = "csv"
	s.Stages.Occurrence.CSV.Path = "occ.csv"
	s.Stages.Covariate.Name = "gradient"
	s.Stages.Process.Name = "background"
	s.Stages.Process.Background.Count = 50
	s.Stages.Model.Name = "logistic"
	s.Stages.Map.Name = "predict"
	return s
}

func TestBuildSet(t *testing.T) {
	set, err := BuildSet(validSettings())
	require.NoError(t, err)

	assert.Equal(t, "csv", set.Occurrence.Name())
	assert.Equal(t, "gradient", set.Covariate.Name())
	assert.Equal(t, "background", set.Process.Name())
	assert.Equal(t, "logistic", set.Model.Name())
	assert.Equal(t, "predict", set.Mapper.Name())
}

func TestBuildSet_AllSelectable(t *testing.T) {
	s := validSettings()
	s.Stages.Occurrence.Name = "gbif"
	s.Stages.Occurrence.GBIF.Species = "Loxia scotica"
	s.Stages.Covariate.Name = "asciigrid"
	s.Stages.Covariate.ASCIIGrid.Files = map[string]string{"bio1": "bio1.asc", "bio12": "bio12.asc"}
	s.Stages.Process.Name = "passthrough"
	s.Stages.Model.Name = "bioclim"

	set, err := BuildSet(s)
	require.NoError(t, err)
	assert.Equal(t, "gbif", set.Occurrence.Name())
	assert.Equal(t, "asciigrid", set.Covariate.Name())
	assert.Equal(t, "passthrough", set.Process.Name())
	assert.Equal(t, "bioclim", set.Model.Name())
}

func TestBuildSet_UnknownName(t *testing.T) {
	s := validSettings()
	s.Stages.Model.Name = "maxent"

	_, err := BuildSet(s)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "maxent")
}

func TestBuiltins_CoverEveryKind(t *testing.T) {
	kinds := map[stage.Kind]int{}
	for _, e := range Builtins() {
		kinds[e.Kind]++
		assert.NotEmpty(t, e.Name)
		assert.NotEmpty(t, e.Description)
	}
	for _, kind := range []stage.Kind{stage.KindOccurrence, stage.KindCovariate, stage.KindProcess, stage.KindModel, stage.KindMap} {
		assert.GreaterOrEqual(t, kinds[kind], 1, "kind %s has no builtin", kind)
	}
}
