// Package raster provides the gridded spatial types used by covariate and
// map stages: multi-layer covariate surfaces and single-layer prediction
// surfaces. Grids are stored row-major with row 0 at the northern edge.
package raster

import (
	"fmt"
	"io"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/geo"
)

// Surface is a gridded multi-layer raster keyed by layer name. Its spatial
// extent always matches the extent it was requested for.
type Surface struct {
	extent geo.Extent
	rows   int
	cols   int
	names  []string
	layers []*mat.Dense
}

// NewSurface constructs a surface with the given shape and zero-valued
// layers, one per name in order.
func NewSurface(extent geo.Extent, rows, cols int, names []string) (*Surface, error) {
	if err := extent.Validate(); err != nil {
		return nil, err
	}
	if rows < 1 || cols < 1 {
		return nil, errors.Newf("surface shape %dx%d must have at least one cell", rows, cols).
			Component("raster").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(names) == 0 {
		return nil, errors.Newf("surface requires at least one layer name").
			Component("raster").
			Category(errors.CategoryValidation).
			Build()
	}
	s := &Surface{
		extent: extent,
		rows:   rows,
		cols:   cols,
		names:  slices.Clone(names),
		layers: make([]*mat.Dense, len(names)),
	}
	for i := range s.layers {
		s.layers[i] = mat.NewDense(rows, cols, nil)
	}
	return s, nil
}

// Extent returns the surface's spatial extent.
func (s *Surface) Extent() geo.Extent {
	return s.extent
}

// Dims returns the grid shape as (rows, cols).
func (s *Surface) Dims() (rows, cols int) {
	return s.rows, s.cols
}

// LayerNames returns the ordered layer names.
func (s *Surface) LayerNames() []string {
	return slices.Clone(s.names)
}

// LayerIndex returns the position of the named layer, or -1.
func (s *Surface) LayerIndex(name string) int {
	return slices.Index(s.names, name)
}

// Set writes a cell value on the named layer.
func (s *Surface) Set(name string, row, col int, v float64) error {
	i := s.LayerIndex(name)
	if i < 0 {
		return errors.Newf("surface has no layer %q", name).
			Component("raster").
			Category(errors.CategoryValidation).
			Build()
	}
	s.layers[i].Set(row, col, v)
	return nil
}

// At reads a cell value from the named layer.
func (s *Surface) At(name string, row, col int) (float64, error) {
	i := s.LayerIndex(name)
	if i < 0 {
		return 0, errors.Newf("surface has no layer %q", name).
			Component("raster").
			Category(errors.CategoryValidation).
			Build()
	}
	return s.layers[i].At(row, col), nil
}

// CellAt returns the grid cell containing the given location, or an error if
// the location lies outside the surface extent.
func (s *Surface) CellAt(lon, lat float64) (row, col int, err error) {
	if !s.extent.Contains(lon, lat) {
		return 0, 0, errors.Newf("location (%.4f, %.4f) outside %s", lon, lat, s.extent).
			Component("raster").
			Category(errors.CategoryValidation).
			Build()
	}
	col = int((lon - s.extent.West) / s.extent.Width() * float64(s.cols))
	if col == s.cols {
		col = s.cols - 1 // eastern edge is inclusive
	}
	// Row 0 is the northern edge.
	row = int((s.extent.North - lat) / s.extent.Height() * float64(s.rows))
	if row == s.rows {
		row = s.rows - 1
	}
	return row, col, nil
}

// CellCenter returns the geographic centre of a grid cell.
func (s *Surface) CellCenter(row, col int) (lon, lat float64) {
	lon = s.extent.West + (float64(col)+0.5)/float64(s.cols)*s.extent.Width()
	lat = s.extent.North - (float64(row)+0.5)/float64(s.rows)*s.extent.Height()
	return lon, lat
}

// ValuesAt looks up all layer values at a location, in layer order.
func (s *Surface) ValuesAt(lon, lat float64) ([]float64, error) {
	row, col, err := s.CellAt(lon, lat)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(s.layers))
	for i := range s.layers {
		out[i] = s.layers[i].At(row, col)
	}
	return out, nil
}

// CellValues returns all layer values of a grid cell, in layer order.
func (s *Surface) CellValues(row, col int) []float64 {
	out := make([]float64, len(s.layers))
	for i := range s.layers {
		out[i] = s.layers[i].At(row, col)
	}
	return out
}

// Prediction is a single-layer raster holding per-cell model output. It
// shares the spatial shape of the covariate surface it was predicted from.
type Prediction struct {
	extent geo.Extent
	rows   int
	cols   int
	grid   *mat.Dense
}

// NewPrediction constructs a zero-valued prediction raster matching the
// shape of the given surface.
func NewPrediction(s *Surface) *Prediction {
	rows, cols := s.Dims()
	return &Prediction{
		extent: s.Extent(),
		rows:   rows,
		cols:   cols,
		grid:   mat.NewDense(rows, cols, nil),
	}
}

// Extent returns the prediction's spatial extent.
func (p *Prediction) Extent() geo.Extent {
	return p.extent
}

// Dims returns the grid shape as (rows, cols).
func (p *Prediction) Dims() (rows, cols int) {
	return p.rows, p.cols
}

// Set writes a cell value.
func (p *Prediction) Set(row, col int, v float64) {
	p.grid.Set(row, col, v)
}

// At reads a cell value.
func (p *Prediction) At(row, col int) float64 {
	return p.grid.At(row, col)
}

// Equal reports whether two predictions have identical shape, extent and
// cell values. NaN cells compare equal to NaN.
func (p *Prediction) Equal(q *Prediction) bool {
	if p.extent != q.extent || p.rows != q.rows || p.cols != q.cols {
		return false
	}
	for r := 0; r < p.rows; r++ {
		for c := 0; c < p.cols; c++ {
			a, b := p.grid.At(r, c), q.grid.At(r, c)
			if math.IsNaN(a) && math.IsNaN(b) {
				continue
			}
			if a != b {
				return false
			}
		}
	}
	return true
}

// WriteASCIIGrid writes the prediction in ESRI ASCII grid format. NaN cells
// are written as the NODATA value -9999.
func (p *Prediction) WriteASCIIGrid(w io.Writer) error {
	cellsize := p.extent.Width() / float64(p.cols)
	header := fmt.Sprintf("ncols %d\nnrows %d\nxllcorner %v\nyllcorner %v\ncellsize %v\nNODATA_value -9999\n",
		p.cols, p.rows, p.extent.West, p.extent.South, cellsize)
	if _, err := io.WriteString(w, header); err != nil {
		return errors.New(err).Component("raster").Category(errors.CategoryFileIO).Build()
	}
	for r := 0; r < p.rows; r++ {
		for c := 0; c < p.cols; c++ {
			v := p.grid.At(r, c)
			sep := " "
			if c == 0 {
				sep = ""
			}
			var cell string
			if math.IsNaN(v) {
				cell = "-9999"
			} else {
				cell = fmt.Sprintf("%g", v)
			}
			if _, err := io.WriteString(w, sep+cell); err != nil {
				return errors.New(err).Component("raster").Category(errors.CategoryFileIO).Build()
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return errors.New(err).Component("raster").Category(errors.CategoryFileIO).Build()
		}
	}
	return nil
}
