package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccurrenceTable_TypesAndCounts(t *testing.T) {
	table := NewOccurrenceTable(4)
	table.Append(Record{Value: 1, Type: TypePresence, Lon: 0, Lat: 50})
	table.Append(Record{Value: 1, Type: TypePresence, Lon: 1, Lat: 51})
	table.Append(Record{Value: 0, Type: TypeAbsence, Lon: 2, Lat: 52})
	table.Append(Record{Value: 0, Type: TypeBackground, Lon: 3, Lat: 53})

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, []string{TypePresence, TypeAbsence, TypeBackground}, table.Types())
	assert.Equal(t, 2, table.CountType(TypePresence))
	assert.Equal(t, 1, table.CountType(TypeBackground))
}

func TestSampleTable_AppendRow(t *testing.T) {
	table := NewSampleTable([]string{"bio1", "bio12"})

	err := table.AppendRow(Record{Value: 1, Type: TypePresence, Lon: 0, Lat: 50}, []float64{10.5, 800})
	require.NoError(t, err)

	err = table.AppendRow(Record{Value: 0, Type: TypeBackground, Lon: 1, Lat: 51}, []float64{9.0})
	require.Error(t, err, "covariate count mismatch must be rejected")

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, []float64{1}, table.Values())
}

func TestSampleTable_AppendRow_ClonesCovariates(t *testing.T) {
	table := NewSampleTable([]string{"bio1"})
	covs := []float64{5}
	require.NoError(t, table.AppendRow(Record{Value: 1, Type: TypePresence}, covs))

	covs[0] = 99
	assert.Equal(t, 5.0, table.Covariates[0][0])
}

func TestSampleTable_SetFolds(t *testing.T) {
	table := NewSampleTable(nil)
	require.NoError(t, table.AppendRow(Record{Value: 1, Type: TypePresence}, nil))
	require.NoError(t, table.AppendRow(Record{Value: 0, Type: TypeAbsence}, nil))

	assert.False(t, table.HasFolds())
	require.Error(t, table.SetFolds([]int{1}))
	require.NoError(t, table.SetFolds([]int{1, 2}))
	assert.True(t, table.HasFolds())
}

func TestSampleTable_Scheme(t *testing.T) {
	tests := []struct {
		name  string
		folds []int
		want  FoldScheme
	}{
		{"absent", nil, FoldsAbsent},
		{"all ones", []int{1, 1, 1}, FoldsNone},
		{"holdout", []int{0, 1, 1}, FoldsHoldout},
		{"k-fold", []int{1, 2, 3}, FoldsKFold},
		{"zero mixed with k-fold labels", []int{0, 2, 3}, FoldsInvalid},
		{"negative label", []int{-1, 1, 2}, FoldsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewSampleTable(nil)
			for range tt.folds {
				require.NoError(t, table.AppendRow(Record{Value: 1, Type: TypePresence}, nil))
			}
			if tt.folds != nil {
				require.NoError(t, table.SetFolds(tt.folds))
			}
			assert.Equal(t, tt.want, table.Scheme())
		})
	}
}
