// Package covariate provides the built-in covariate stage implementations:
// a deterministic synthetic gradient surface and an ESRI ASCII grid loader.
package covariate

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/raster"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// GradientConfig configures the synthetic gradient surface.
type GradientConfig struct {
	// Layers are the layer names to generate, in order.
	Layers []string
	// Rows and Cols set the grid resolution.
	Rows int
	Cols int
}

// DefaultGradientConfig returns the default gradient configuration.
func DefaultGradientConfig() GradientConfig {
	return GradientConfig{
		Layers: []string{"lon_gradient", "lat_gradient"},
		Rows:   32,
		Cols:   32,
	}
}

// Gradient generates a deterministic multi-layer surface from smooth spatial
// gradients. Useful for tests, examples and method comparisons where real
// climate data would add noise without insight.
type Gradient struct {
	cfg GradientConfig
}

// NewGradient constructs the stage, filling config defaults.
func NewGradient(cfg GradientConfig) *Gradient {
	def := DefaultGradientConfig()
	if len(cfg.Layers) == 0 {
		cfg.Layers = def.Layers
	}
	if cfg.Rows < 1 {
		cfg.Rows = def.Rows
	}
	if cfg.Cols < 1 {
		cfg.Cols = def.Cols
	}
	return &Gradient{cfg: cfg}
}

func (g *Gradient) Name() string { return "gradient" }

// Fetch generates the surface for the requested extent. Layer 0 follows the
// normalised longitude, layer 1 the normalised latitude, and further layers
// smooth trigonometric combinations of both.
func (g *Gradient) Fetch(ctx context.Context, extent geo.Extent) (*raster.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := raster.NewSurface(extent, g.cfg.Rows, g.cfg.Cols, g.cfg.Layers)
	if err != nil {
		return nil, err
	}

	for li, layer := range g.cfg.Layers {
		for r := 0; r < g.cfg.Rows; r++ {
			for c := 0; c < g.cfg.Cols; c++ {
				lon, lat := s.CellCenter(r, c)
				u := (lon - extent.West) / extent.Width()
				v := (lat - extent.South) / extent.Height()
				var value float64
				switch li {
				case 0:
					value = u
				case 1:
					value = v
				default:
					value = 0.5 + 0.5*math.Sin(float64(li)*math.Pi*u)*math.Cos(float64(li)*math.Pi*v)
				}
				if err := s.Set(layer, r, c, value); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

// Source returns the stage's literal source form with the effective
// configuration baked in.
func (g *Gradient) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/covariate",
		},
		Decl: fmt.Sprintf(`func newCovariateStage() stage.Covariate {
	return covariate.NewGradient(covariate.GradientConfig{Layers: %#v, Rows: %d, Cols: %d})
}`, g.cfg.Layers, g.cfg.Rows, g.cfg.Cols),
	}, nil
}

// Layers returns the configured layer names.
func (g *Gradient) Layers() []string {
	return slices.Clone(g.cfg.Layers)
}
