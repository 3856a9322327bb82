package mgrid

import(
	"fmt"
	"math"
)

// A Grid is one plane of raster samples (one band of one scene), at a
// fixed ground resolution. Values are stored row-major; reflectance
// bands hold native sensor values in [0,10000].
type Grid struct {
	resolution float64 // ground units per pixel edge
	stride     int
	values     []float64
}

func NewGrid(w, h int, resolution float64) *Grid {
	return &Grid{
		resolution: resolution,
		stride:     w,
		values:     make([]float64, w*h),
	}
}

func (g *Grid)NewFromThis() *Grid            { return NewGrid(g.Dx(), g.Dy(), g.resolution) }
func (g *Grid)Set(x, y int, v float64)       { g.values[g.stride*y + x] = v }
func (g *Grid)Get(x, y int) float64          { return g.values[g.stride*y + x] }
func (g *Grid)Dx() int                       { return g.stride }
func (g *Grid)Dy() int                       { return len(g.values) / g.stride }
func (g *Grid)Resolution() float64           { return g.resolution }

func (g1 *Grid)Clone() *Grid {
	g2 := &Grid{resolution: g1.resolution, stride: g1.stride, values: make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return g2
}

func (g *Grid)Fill(v float64) {
	for i := range g.values {
		g.values[i] = v
	}
}

// Equal is a bit-exact comparison, used to verify pass-through paths.
func (g1 *Grid)Equal(g2 *Grid) bool {
	if g1.stride != g2.stride || len(g1.values) != len(g2.values) {
		return false
	}
	for i := range g1.values {
		if g1.values[i] != g2.values[i] {
			return false
		}
	}
	return true
}

// Map applies f to every sample, returning a new grid.
func (g1 *Grid)Map(f func(v float64) float64) *Grid {
	g2 := g1.NewFromThis()
	for i, v := range g1.values {
		g2.values[i] = f(v)
	}
	return g2
}

// Resample returns the grid re-projected onto a different ground
// resolution. Coarsening averages the contributing samples; refining
// copies each value into the covering block. Resolutions are assumed
// to be integer multiples of each other, which holds for all the
// working resolutions the pipeline picks.
func (g1 *Grid)Resample(targetRes float64) *Grid {
	if targetRes == g1.resolution {
		return g1.Clone()
	}

	if targetRes > g1.resolution {
		k := int(math.Round(targetRes / g1.resolution))
		w := (g1.Dx() + k - 1) / k
		h := (g1.Dy() + k - 1) / k
		g2 := NewGrid(w, h, targetRes)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sum, n := 0.0, 0
				for dy := 0; dy < k; dy++ {
					for dx := 0; dx < k; dx++ {
						sx, sy := x*k+dx, y*k+dy
						if sx < g1.Dx() && sy < g1.Dy() {
							sum += g1.Get(sx, sy)
							n++
						}
					}
				}
				g2.Set(x, y, sum/float64(n))
			}
		}
		return g2
	}

	k := int(math.Round(g1.resolution / targetRes))
	w := g1.Dx() * k
	h := g1.Dy() * k
	g2 := NewGrid(w, h, targetRes)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g2.Set(x, y, g1.Get(x/k, y/k))
		}
	}
	return g2
}

// CircularMean smooths the grid with a flat circular kernel of the
// given pixel radius, run for the given number of iterations. Kernel
// samples falling off the edge are dropped rather than mirrored.
func (g1 *Grid)CircularMean(radiusPx int, iterations int) *Grid {
	offsets := kernelOffsets(radiusPx)
	src := g1
	for it := 0; it < iterations; it++ {
		dst := src.NewFromThis()
		for y := 0; y < src.Dy(); y++ {
			for x := 0; x < src.Dx(); x++ {
				sum, n := 0.0, 0
				for _, o := range offsets {
					sx, sy := x+o[0], y+o[1]
					if sx >= 0 && sx < src.Dx() && sy >= 0 && sy < src.Dy() {
						sum += src.Get(sx, sy)
						n++
					}
				}
				dst.Set(x, y, sum/float64(n))
			}
		}
		src = dst
	}
	if src == g1 {
		return g1.Clone()
	}
	return src
}

func (g *Grid)Stats() string {
	min, max := math.MaxFloat64, -math.MaxFloat64
	for _, v := range g.values {
		if v > max { max = v }
		if v < min { min = v }
	}
	return fmt.Sprintf("grid[%dx%d @%.0f, vals{%f,%f}]", g.Dx(), g.Dy(), g.resolution, min, max)
}

// kernelOffsets lists the (dx,dy) pairs inside a circle of the given
// pixel radius, centre included.
func kernelOffsets(radiusPx int) [][2]int {
	offsets := [][2]int{}
	r2 := radiusPx * radiusPx
	for dy := -radiusPx; dy <= radiusPx; dy++ {
		for dx := -radiusPx; dx <= radiusPx; dx++ {
			if dx*dx+dy*dy <= r2 {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo { return lo }
	if v > hi { return hi }
	return v
}

// WorkingResolution picks the ground resolution for a morphological
// operation so that `radius` spans about four working pixels, rounded
// to the nearest 10 ground units and never finer than 20. Finer
// resolutions make the morphology disproportionately expensive on
// large exports without improving the mask.
func WorkingResolution(radius float64) float64 {
	res := math.Round(radius/4.0/10.0) * 10.0
	if res < 20 {
		res = 20
	}
	return res
}
