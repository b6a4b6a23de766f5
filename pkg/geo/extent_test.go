package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicheflow/nicheflow/internal/errors"
)

func TestNewExtent(t *testing.T) {
	tests := []struct {
		name    string
		bounds  [4]float64 // west, east, south, north
		wantErr bool
	}{
		{"valid", [4]float64{-10, 10, 45, 65}, false},
		{"whole world", [4]float64{-180, 180, -90, 90}, false},
		{"west >= east", [4]float64{10, -10, 45, 65}, true},
		{"south >= north", [4]float64{-10, 10, 65, 45}, true},
		{"longitude out of range", [4]float64{-190, 10, 45, 65}, true},
		{"latitude out of range", [4]float64{-10, 10, 45, 95}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewExtent(tt.bounds[0], tt.bounds[1], tt.bounds[2], tt.bounds[3])
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bounds[0], e.West)
			assert.Equal(t, tt.bounds[3], e.North)
		})
	}
}

func TestExtent_Contains(t *testing.T) {
	e := Extent{West: -10, East: 10, South: 45, North: 65}

	assert.True(t, e.Contains(0, 55))
	assert.True(t, e.Contains(-10, 45), "bounds are inclusive")
	assert.True(t, e.Contains(10, 65), "bounds are inclusive")
	assert.False(t, e.Contains(-10.001, 55))
	assert.False(t, e.Contains(0, 65.001))
}

func TestExtent_Spans(t *testing.T) {
	e := Extent{West: -10, East: 10, South: 45, North: 65}
	assert.InDelta(t, 20.0, e.Width(), 1e-12)
	assert.InDelta(t, 20.0, e.Height(), 1e-12)
}

func TestExtent_GoLiteral(t *testing.T) {
	e := Extent{West: -10, East: 10, South: 45, North: 65}
	assert.Equal(t, "geo.Extent{West: -10, East: 10, South: 45, North: 65}", e.GoLiteral())
}
