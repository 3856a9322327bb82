package mtile

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/openreef/s2mosaic/pkg/mgrid"
)

var (
	ErrBandMissing    = errors.New("tile is missing an expected band")
	ErrGridMismatch   = errors.New("tiles in one stack have mismatched grids")
	ErrNoCloudData    = errors.New("no companion cloud-probability layer for acquisition")
	ErrEmptyFootprint = errors.New("tile-code lookup yielded no footprint")
)

// A Tile is one satellite scene: named bands over a shared pixel
// grid, a per-pixel validity mask, and the scalar metadata the
// pipeline needs. Tiles are read-only once built; pipeline stages
// derive new tiles rather than mutating.
type Tile struct {
	ID              string // immutable original acquisition id, survives collection merges
	BandOrder       []string
	Bands           map[string]*mgrid.Grid
	Valid           *mgrid.Mask
	SolarAzimuthDeg float64
	AcquiredAt      time.Time
}

func NewTile(id string, w, h int, resolution float64) *Tile {
	valid := mgrid.NewMask(w, h, resolution)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			valid.Set(x, y, true)
		}
	}
	return &Tile{
		ID:        id,
		BandOrder: []string{},
		Bands:     map[string]*mgrid.Grid{},
		Valid:     valid,
	}
}

func (t *Tile)String() string {
	return fmt.Sprintf("%s: %d bands, %dx%d", t.ID, len(t.BandOrder), t.Dx(), t.Dy())
}

func (t *Tile)Dx() int { return t.Valid.Dx() }
func (t *Tile)Dy() int { return t.Valid.Dy() }
func (t *Tile)Resolution() float64 { return t.Valid.Resolution() }

func (t *Tile)Band(name string) (*mgrid.Grid, error) {
	g, ok := t.Bands[name]
	if !ok {
		return nil, errors.Wrapf(ErrBandMissing, "tile %s band %s", t.ID, name)
	}
	return g, nil
}

func (t *Tile)HasBand(name string) bool {
	_, ok := t.Bands[name]
	return ok
}

// AddBand attaches a band plane. The grid dimensions must match the
// tile; this is the invariant every stage relies on.
func (t *Tile)AddBand(name string, g *mgrid.Grid) error {
	if g.Dx() != t.Dx() || g.Dy() != t.Dy() {
		return errors.Wrapf(ErrGridMismatch, "band %s is %dx%d, tile %s is %dx%d",
			name, g.Dx(), g.Dy(), t.ID, t.Dx(), t.Dy())
	}
	if _, exists := t.Bands[name]; !exists {
		t.BandOrder = append(t.BandOrder, name)
	}
	t.Bands[name] = g
	return nil
}

// WithBands returns a copy of the tile with the named bands replaced.
// Unmodified planes are shared with the source tile, which is safe
// because tiles are never mutated in place.
func (t *Tile)WithBands(replacements map[string]*mgrid.Grid) *Tile {
	t2 := &Tile{
		ID:              t.ID,
		BandOrder:       append([]string{}, t.BandOrder...),
		Bands:           map[string]*mgrid.Grid{},
		Valid:           t.Valid,
		SolarAzimuthDeg: t.SolarAzimuthDeg,
		AcquiredAt:      t.AcquiredAt,
	}
	for name, g := range t.Bands {
		t2.Bands[name] = g
	}
	for name, g := range replacements {
		if _, exists := t2.Bands[name]; !exists {
			t2.BandOrder = append(t2.BandOrder, name)
		}
		t2.Bands[name] = g
	}
	return t2
}

// WithValid returns a copy of the tile with a different validity mask.
func (t *Tile)WithValid(valid *mgrid.Mask) *Tile {
	t2 := t.WithBands(nil)
	t2.Valid = valid
	return t2
}

// A Collection is an ordered set of tiles covering one ground
// footprint. Order is irrelevant to the median reduction but decides
// naming (earliest/latest acquisition).
type Collection struct {
	Tiles []*Tile
}

func NewCollection() *Collection { return &Collection{Tiles: []*Tile{}} }

func (c *Collection)Add(t *Tile) { c.Tiles = append(c.Tiles, t) }

func (c *Collection)Len() int { return len(c.Tiles) }

func (c *Collection)IDs() []string {
	ids := make([]string, 0, len(c.Tiles))
	for _, t := range c.Tiles {
		ids = append(ids, t.ID)
	}
	return ids
}

// Validate enforces the stack invariant: every tile shares the grid
// shape and resolution of the first.
func (c *Collection)Validate() error {
	if len(c.Tiles) == 0 {
		return nil
	}
	base := c.Tiles[0]
	for _, t := range c.Tiles[1:] {
		if t.Dx() != base.Dx() || t.Dy() != base.Dy() || t.Resolution() != base.Resolution() {
			return errors.Wrapf(ErrGridMismatch, "tile %s is %dx%d@%.0f, stack base %s is %dx%d@%.0f",
				t.ID, t.Dx(), t.Dy(), t.Resolution(), base.ID, base.Dx(), base.Dy(), base.Resolution())
		}
	}
	return nil
}
