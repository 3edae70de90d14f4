// Package imgutil turns raster images into the per-cell weight and scale
// grids the mesh consumes. Rasters are grayscale TIFFs in equirectangular
// layout, north at the top; grids come out 2*res rows by 4*res columns with
// row 0 at the south, matching the mesh cell layout.
package imgutil

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"
)

// ErrRaster is returned when a raster cannot be decoded or does not fit the
// requested grid.
var ErrRaster = errors.New("imgutil: unusable raster")

// Uniform returns a grid of ones at the given mesh resolution.
func Uniform(res int) [][]float64 {
	grid := make([][]float64, 2*res)
	for i := range grid {
		grid[i] = make([]float64, 4*res)
		for j := range grid[i] {
			grid[i][j] = 1
		}
	}
	return grid
}

// Standardised rescales a grid to unit mean, weighting each cell by the
// spherical area its latitude band covers. Scale grids must be standardised
// so they resize regions relative to each other without inflating the whole
// map.
func Standardised(grid [][]float64) [][]float64 {
	rows := len(grid)
	var sum, totalWeight float64
	for i, row := range grid {
		phi := -math.Pi/2 + (float64(i)+0.5)*math.Pi/float64(rows)
		w := math.Cos(phi)
		for _, x := range row {
			sum += w * x
			totalWeight += w
		}
	}
	mean := sum / totalWeight
	out := make([][]float64, rows)
	for i, row := range grid {
		out[i] = make([]float64, len(row))
		for j, x := range row {
			out[i][j] = x / mean
		}
	}
	return out
}

// LoadTIFFData reads a grayscale TIFF from disk and box-averages it onto the
// mesh cell grid. Pixel values are normalized to [0, 1], optionally
// log-compressed with the given base (a base of 1 or less means linear), and
// affinely mapped onto [min, max]. Passing min > max inverts the raster,
// which is how a topography raster becomes an ocean weighting.
func LoadTIFFData(path string, res int, logBase, max, min float64) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRaster, err)
	}
	defer f.Close()
	return ReadTIFFData(f, res, logBase, max, min)
}

// ReadTIFFData is LoadTIFFData for an already-open stream.
func ReadTIFFData(r io.Reader, res int, logBase, max, min float64) ([][]float64, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRaster, err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	rows, cols := 2*res, 4*res
	if width < cols || height < rows {
		return nil, fmt.Errorf("%w: %dx%d raster is smaller than the %dx%d grid",
			ErrRaster, width, height, cols, rows)
	}

	grid := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		grid[i] = make([]float64, cols)
		// Grid row 0 is the southernmost band; image row 0 is the north.
		yLo := bounds.Min.Y + (rows-1-i)*height/rows
		yHi := bounds.Min.Y + (rows-i)*height/rows
		for j := 0; j < cols; j++ {
			xLo := bounds.Min.X + j*width/cols
			xHi := bounds.Min.X + (j+1)*width/cols
			var sum float64
			for y := yLo; y < yHi; y++ {
				for x := xLo; x < xHi; x++ {
					g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
					sum += float64(g.Y) / math.MaxUint16
				}
			}
			v := sum / float64((yHi-yLo)*(xHi-xLo))
			if logBase > 1 {
				v = math.Log(1+(logBase-1)*v) / math.Log(logBase)
			}
			grid[i][j] = min + (max-min)*v
		}
	}
	return grid, nil
}
