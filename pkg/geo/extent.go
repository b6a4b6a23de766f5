// Package geo provides the rectangular geographic extent used to bound an
// analysis region.
package geo

import (
	"fmt"

	"github.com/nicheflow/nicheflow/internal/errors"
)

// Extent is a rectangular geographic bounding region in decimal degrees.
// It is a value type: construct once, pass by value, never mutate.
type Extent struct {
	West  float64
	East  float64
	South float64
	North float64
}

// NewExtent constructs a validated extent from ordered bounds
// (west, east, south, north).
func NewExtent(west, east, south, north float64) (Extent, error) {
	e := Extent{West: west, East: east, South: south, North: north}
	if err := e.Validate(); err != nil {
		return Extent{}, err
	}
	return e, nil
}

// Validate checks bound ordering and coordinate ranges.
func (e Extent) Validate() error {
	switch {
	case e.West >= e.East:
		return errors.Newf("extent west bound %.4f must be less than east bound %.4f", e.West, e.East).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	case e.South >= e.North:
		return errors.Newf("extent south bound %.4f must be less than north bound %.4f", e.South, e.North).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	case e.West < -180 || e.East > 180:
		return errors.Newf("extent longitude bounds [%.4f, %.4f] outside [-180, 180]", e.West, e.East).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	case e.South < -90 || e.North > 90:
		return errors.Newf("extent latitude bounds [%.4f, %.4f] outside [-90, 90]", e.South, e.North).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Contains reports whether the point lies within the extent, bounds inclusive.
func (e Extent) Contains(lon, lat float64) bool {
	return lon >= e.West && lon <= e.East && lat >= e.South && lat <= e.North
}

// Width returns the longitudinal span in degrees.
func (e Extent) Width() float64 {
	return e.East - e.West
}

// Height returns the latitudinal span in degrees.
func (e Extent) Height() float64 {
	return e.North - e.South
}

func (e Extent) String() string {
	return fmt.Sprintf("extent(W%.4f E%.4f S%.4f N%.4f)", e.West, e.East, e.South, e.North)
}

// GoLiteral renders the extent as a Go composite literal, used when emitting
// reproduction scripts.
func (e Extent) GoLiteral() string {
	return fmt.Sprintf("geo.Extent{West: %v, East: %v, South: %v, North: %v}", e.West, e.East, e.South, e.North)
}
