package mesh

import (
	"fmt"
	"math"
)

// A projection places an undeformed spherical coordinate on the plane. It is
// only used to pose the initial condition; relaxation takes over from there.
type projection func(phi, lam float64) (x, y float64)

// projectionByName resolves an initial-condition name. Every supported
// projection maps the poles to points and the antimeridian to the boundary,
// matching the cut topology of the generated grid.
func projectionByName(name string) (projection, error) {
	switch name {
	case "hammer":
		return hammer, nil
	case "sinusoidal":
		return sinusoidal, nil
	default:
		return nil, fmt.Errorf("%w: unknown initial condition %q", ErrConfig, name)
	}
}

func hammer(phi, lam float64) (x, y float64) {
	z := math.Sqrt(1 + math.Cos(phi)*math.Cos(lam/2))
	x = 2 * math.Sqrt2 * math.Cos(phi) * math.Sin(lam/2) / z
	y = math.Sqrt2 * math.Sin(phi) / z
	return x, y
}

func sinusoidal(phi, lam float64) (x, y float64) {
	return lam * math.Cos(phi), phi
}
