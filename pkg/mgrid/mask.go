package mgrid

import(
	"fmt"
	"math"
)

// A Mask is a boolean plane over the same kind of pixel grid as a
// Grid. True marks pixels that are cloud/shadow (or more generally,
// pixels selected by whatever test built the mask).
type Mask struct {
	resolution float64
	stride     int
	values     []bool
}

func NewMask(w, h int, resolution float64) *Mask {
	return &Mask{
		resolution: resolution,
		stride:     w,
		values:     make([]bool, w*h),
	}
}

func (m *Mask)NewFromThis() *Mask      { return NewMask(m.Dx(), m.Dy(), m.resolution) }
func (m *Mask)Set(x, y int, v bool)    { m.values[m.stride*y + x] = v }
func (m *Mask)Get(x, y int) bool       { return m.values[m.stride*y + x] }
func (m *Mask)Dx() int                 { return m.stride }
func (m *Mask)Dy() int                 { return len(m.values) / m.stride }
func (m *Mask)Resolution() float64     { return m.resolution }

func (m1 *Mask)Clone() *Mask {
	m2 := &Mask{resolution: m1.resolution, stride: m1.stride, values: make([]bool, len(m1.values))}
	copy(m2.values, m1.values)
	return m2
}

func (m *Mask)Count() int {
	n := 0
	for _, v := range m.values {
		if v { n++ }
	}
	return n
}

func (m *Mask)Fraction() float64 { return float64(m.Count()) / float64(len(m.values)) }

func (m1 *Mask)mustMatch(m2 *Mask, op string) {
	if m1.stride != m2.stride || len(m1.values) != len(m2.values) {
		panic(fmt.Sprintf("mask %s: grids differ, %dx%d vs %dx%d", op, m1.Dx(), m1.Dy(), m2.Dx(), m2.Dy()))
	}
}

func (m1 *Mask)Or(m2 *Mask) *Mask {
	m1.mustMatch(m2, "or")
	m3 := m1.NewFromThis()
	for i := range m1.values {
		m3.values[i] = m1.values[i] || m2.values[i]
	}
	return m3
}

func (m1 *Mask)And(m2 *Mask) *Mask {
	m1.mustMatch(m2, "and")
	m3 := m1.NewFromThis()
	for i := range m1.values {
		m3.values[i] = m1.values[i] && m2.values[i]
	}
	return m3
}

func (m1 *Mask)Not() *Mask {
	m2 := m1.NewFromThis()
	for i := range m1.values {
		m2.values[i] = !m1.values[i]
	}
	return m2
}

// Threshold builds a mask that is true wherever the grid meets or
// exceeds `min`.
func Threshold(g *Grid, min float64) *Mask {
	m := NewMask(g.Dx(), g.Dy(), g.Resolution())
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			m.Set(x, y, g.Get(x, y) >= min)
		}
	}
	return m
}

// ThresholdBelow is true wherever the grid is strictly below `max`
// (the "dark pixel" test).
func ThresholdBelow(g *Grid, max float64) *Mask {
	m := NewMask(g.Dx(), g.Dy(), g.Resolution())
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			m.Set(x, y, g.Get(x, y) < max)
		}
	}
	return m
}

// Erode shrinks true-regions by the given pixel radius: a pixel
// survives only if every pixel within the radius is true. Regions
// smaller than the radius vanish entirely.
func (m1 *Mask)Erode(radiusPx int) *Mask {
	if radiusPx <= 0 {
		return m1.Clone()
	}
	offsets := kernelOffsets(radiusPx)
	m2 := m1.NewFromThis()
	for y := 0; y < m1.Dy(); y++ {
		for x := 0; x < m1.Dx(); x++ {
			keep := m1.Get(x, y)
			for _, o := range offsets {
				if !keep {
					break
				}
				sx, sy := x+o[0], y+o[1]
				if sx < 0 || sx >= m1.Dx() || sy < 0 || sy >= m1.Dy() {
					continue
				}
				if !m1.Get(sx, sy) {
					keep = false
				}
			}
			m2.Set(x, y, keep)
		}
	}
	return m2
}

// Dilate grows true-regions by the given pixel radius.
func (m1 *Mask)Dilate(radiusPx int) *Mask {
	if radiusPx <= 0 {
		return m1.Clone()
	}
	offsets := kernelOffsets(radiusPx)
	m2 := m1.NewFromThis()
	for y := 0; y < m1.Dy(); y++ {
		for x := 0; x < m1.Dx(); x++ {
			hit := false
			for _, o := range offsets {
				sx, sy := x+o[0], y+o[1]
				if sx < 0 || sx >= m1.Dx() || sy < 0 || sy >= m1.Dy() {
					continue
				}
				if m1.Get(sx, sy) {
					hit = true
					break
				}
			}
			m2.Set(x, y, hit)
		}
	}
	return m2
}

// ProjectAlongBearing extends every true pixel along a compass-style
// bearing (degrees anticlockwise from grid east, y axis pointing
// down) out to the given pixel distance. It is a directional
// dilation: the result is the OR of the mask shifted one pixel at a
// time along the bearing. There is no standard-library equivalent of
// this distance-transform-along-a-bearing, so it is built directly.
func (m1 *Mask)ProjectAlongBearing(bearingDeg float64, distancePx float64) *Mask {
	rad := bearingDeg * math.Pi / 180.0
	ux, uy := math.Cos(rad), -math.Sin(rad)

	m2 := m1.Clone()
	for step := 1; float64(step) <= distancePx; step++ {
		dx := int(math.Round(ux * float64(step)))
		dy := int(math.Round(uy * float64(step)))
		for y := 0; y < m1.Dy(); y++ {
			for x := 0; x < m1.Dx(); x++ {
				if !m1.Get(x, y) {
					continue
				}
				tx, ty := x+dx, y+dy
				if tx >= 0 && tx < m1.Dx() && ty >= 0 && ty < m1.Dy() {
					m2.Set(tx, ty, true)
				}
			}
		}
	}
	return m2
}

// Resample re-projects the mask onto another ground resolution.
// Coarsening keeps a pixel true if *any* contributing pixel was true,
// so no cloud pixel is lost on the way down; refining copies values
// into the covering block.
func (m1 *Mask)Resample(targetRes float64) *Mask {
	if targetRes == m1.resolution {
		return m1.Clone()
	}

	if targetRes > m1.resolution {
		k := int(math.Round(targetRes / m1.resolution))
		w := (m1.Dx() + k - 1) / k
		h := (m1.Dy() + k - 1) / k
		m2 := NewMask(w, h, targetRes)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				hit := false
				for dy := 0; dy < k && !hit; dy++ {
					for dx := 0; dx < k; dx++ {
						sx, sy := x*k+dx, y*k+dy
						if sx < m1.Dx() && sy < m1.Dy() && m1.Get(sx, sy) {
							hit = true
							break
						}
					}
				}
				m2.Set(x, y, hit)
			}
		}
		return m2
	}

	k := int(math.Round(m1.resolution / targetRes))
	m2 := NewMask(m1.Dx()*k, m1.Dy()*k, targetRes)
	for y := 0; y < m2.Dy(); y++ {
		for x := 0; x < m2.Dx(); x++ {
			m2.Set(x, y, m1.Get(x/k, y/k))
		}
	}
	return m2
}

// ResampleTo is Resample followed by a crop/pad to exactly w x h, for
// round-trips through a coarser working resolution where the ceiling
// division would otherwise leave the grid a pixel or two off.
func (m1 *Mask)ResampleTo(targetRes float64, w, h int) *Mask {
	m2 := m1.Resample(targetRes)
	if m2.Dx() == w && m2.Dy() == h {
		return m2
	}
	m3 := NewMask(w, h, targetRes)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < m2.Dx() && y < m2.Dy() {
				m3.Set(x, y, m2.Get(x, y))
			}
		}
	}
	return m3
}

func (m *Mask)Stats() string {
	return fmt.Sprintf("mask[%dx%d @%.0f, %.1f%% set]", m.Dx(), m.Dy(), m.resolution, m.Fraction()*100.0)
}
