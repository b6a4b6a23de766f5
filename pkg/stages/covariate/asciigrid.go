package covariate

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// LayerFile names one raster layer and the ESRI ASCII grid file backing it.
type LayerFile struct {
	Name string
	Path string
}

// ASCIIGridConfig configures the local grid loader.
type ASCIIGridConfig struct {
	// Files are loaded in order; their order defines the layer order.
	Files []LayerFile
}

// ASCIIGrid loads covariate layers from local ESRI ASCII grid files. All
// files must share one shape, and that shape must cover exactly the
// requested extent.
type ASCIIGrid struct {
	cfg ASCIIGridConfig
}

// NewASCIIGrid constructs the stage.
func NewASCIIGrid(cfg ASCIIGridConfig) *ASCIIGrid {
	return &ASCIIGrid{cfg: cfg}
}

func (a *ASCIIGrid) Name() string { return "asciigrid" }

// Fetch loads every configured layer and assembles the surface.
func (a *ASCIIGrid) Fetch(ctx context.Context, extent geo.Extent) (*raster.Surface, error) {
	if len(a.cfg.Files) == 0 {
		return nil, errors.Newf("asciigrid stage has no layer files configured").
			Component("covariate").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var surface *raster.Surface
	for _, lf := range a.cfg.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		grid, err := a.loadFile(lf.Path)
		if err != nil {
			return nil, err
		}

		if err := checkCoverage(lf, grid, extent); err != nil {
			return nil, err
		}

		if surface == nil {
			names := make([]string, len(a.cfg.Files))
			for i, f := range a.cfg.Files {
				names[i] = f.Name
			}
			surface, err = raster.NewSurface(extent, grid.Rows, grid.Cols, names)
			if err != nil {
				return nil, err
			}
		} else if sr, sc := surface.Dims(); sr != grid.Rows || sc != grid.Cols {
			return nil, errors.Newf("layer %q shape %dx%d differs from first layer %dx%d",
				lf.Name, grid.Rows, grid.Cols, sr, sc).
				Component("covariate").
				Category(errors.CategoryValidation).
				Build()
		}

		for r := 0; r < grid.Rows; r++ {
			for c := 0; c < grid.Cols; c++ {
				if err := surface.Set(lf.Name, r, c, grid.Values[r][c]); err != nil {
					return nil, err
				}
			}
		}
	}
	return surface, nil
}

func (a *ASCIIGrid) loadFile(path string) (*raster.ASCIIGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).Component("covariate").Category(errors.CategoryFileIO).Build()
	}
	defer f.Close()
	return raster.ParseASCIIGrid(f)
}

// checkCoverage verifies the grid covers exactly the requested extent.
func checkCoverage(lf LayerFile, grid *raster.ASCIIGrid, extent geo.Extent) error {
	const eps = 1e-9
	east := grid.XLL + float64(grid.Cols)*grid.CellSize
	north := grid.YLL + float64(grid.Rows)*grid.CellSize
	if math.Abs(grid.XLL-extent.West) > eps ||
		math.Abs(grid.YLL-extent.South) > eps ||
		math.Abs(east-extent.East) > eps ||
		math.Abs(north-extent.North) > eps {
		return errors.Newf("layer %q covers (W%g E%g S%g N%g), analysis requires %s",
			lf.Name, grid.XLL, east, grid.YLL, north, extent).
			Component("covariate").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Source returns the stage's literal source form.
func (a *ASCIIGrid) Source() (stage.SourceForm, error) {
	files := make([]string, len(a.cfg.Files))
	for i, f := range a.cfg.Files {
		files[i] = fmt.Sprintf("{Name: %q, Path: %q}", f.Name, f.Path)
	}
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/covariate",
		},
		Decl: fmt.Sprintf(`func newCovariateStage() stage.Covariate {
	return covariate.NewASCIIGrid(covariate.ASCIIGridConfig{Files: []covariate.LayerFile{%s}})
}`, strings.Join(files, ", ")),
	}, nil
}
