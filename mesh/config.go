package mesh

import (
	"fmt"
	"math"
)

// Defaults for the optional Config fields.
const (
	DefaultInitialCondition = "hammer"
	DefaultEccentricity     = 0.081819 // WGS-84
)

// Config carries everything the engine needs, supplied once at construction.
// It is passed by value and never mutated, so several meshes with different
// parameters can run in the same process.
type Config struct {
	// Resolution is the number of grid nodes from the equator to a pole.
	// The cell grid is 2*Resolution rows by 4*Resolution columns.
	Resolution int

	// InitialCondition names the projection used to place the vertices on
	// the plane before relaxation begins: "hammer" or "sinusoidal".
	// Empty means DefaultInitialCondition.
	InitialCondition string

	// Lambda and Mu are the Lamé parameters shared by every element.
	Lambda, Mu float64

	// Strength is the principal stress an element must exceed before it is a
	// tear candidate. It is scaled per cell by the weight grid.
	Strength float64

	// Precision is the absolute energy decrease below which a relaxation
	// step counts as converged.
	Precision float64

	// TearLength is the total geographic length of tearing Rupture may open.
	TearLength float64

	// Eccentricity of the reference spheroid. Leave zero for
	// DefaultEccentricity (WGS-84).
	Eccentricity float64

	// Weights biases the energy of each cell's elements and their tear
	// strength; Scales resizes each cell's undeformed frame. Both are
	// [2*Resolution][4*Resolution] grids, row 0 at the south. Nil means
	// uniform.
	Weights, Scales [][]float64
}

func (c *Config) applyDefaults() {
	if c.InitialCondition == "" {
		c.InitialCondition = DefaultInitialCondition
	}
	if c.Eccentricity == 0 {
		c.Eccentricity = DefaultEccentricity
	}
}

func (c Config) validate() error {
	if c.Resolution < 1 {
		return fmt.Errorf("%w: resolution %d", ErrConfig, c.Resolution)
	}
	if c.Lambda < 0 || math.IsNaN(c.Lambda) || math.IsInf(c.Lambda, 0) {
		return fmt.Errorf("%w: lambda = %g", ErrConfig, c.Lambda)
	}
	if c.Mu <= 0 || math.IsNaN(c.Mu) || math.IsInf(c.Mu, 0) {
		return fmt.Errorf("%w: mu = %g", ErrConfig, c.Mu)
	}
	if c.Strength <= 0 || math.IsNaN(c.Strength) {
		return fmt.Errorf("%w: strength = %g", ErrConfig, c.Strength)
	}
	if c.Precision <= 0 || math.IsNaN(c.Precision) || math.IsInf(c.Precision, 0) {
		return fmt.Errorf("%w: precision = %g", ErrConfig, c.Precision)
	}
	if c.TearLength < 0 || math.IsNaN(c.TearLength) {
		return fmt.Errorf("%w: tear length = %g", ErrConfig, c.TearLength)
	}
	if c.Eccentricity < 0 || c.Eccentricity >= 1 {
		return fmt.Errorf("%w: eccentricity = %g", ErrConfig, c.Eccentricity)
	}
	if err := c.validateGrid("weights", c.Weights); err != nil {
		return err
	}
	return c.validateGrid("scales", c.Scales)
}

func (c Config) validateGrid(name string, grid [][]float64) error {
	if grid == nil {
		return nil
	}
	if len(grid) != 2*c.Resolution {
		return fmt.Errorf("%w: %s grid has %d rows, want %d", ErrConfig, name, len(grid), 2*c.Resolution)
	}
	for i, row := range grid {
		if len(row) != 4*c.Resolution {
			return fmt.Errorf("%w: %s grid row %d has %d columns, want %d",
				ErrConfig, name, i, len(row), 4*c.Resolution)
		}
		for j, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
				return fmt.Errorf("%w: %s[%d][%d] = %g", ErrConfig, name, i, j, x)
			}
		}
	}
	return nil
}

// cell reads a grid value, treating a nil grid as uniformly one.
func cell(grid [][]float64, i, j int) float64 {
	if grid == nil {
		return 1
	}
	return grid[i][j]
}
