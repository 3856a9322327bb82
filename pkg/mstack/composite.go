package mstack

import(
	"context"
	"log"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/openreef/s2mosaic/pkg/mgrid"
	"github.com/openreef/s2mosaic/pkg/mtile"
)

var (
	ErrNoImages = errors.New("zero images available for footprint")
)

// CompositeBands is the fixed output schema, in source sensor band
// order. It is declared explicitly (rather than inferred from the
// reduction) so downstream grading can assume fixed band identities
// whether or not masking ran.
var CompositeBands = []string{
	"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8", "B8A", "B9", "B10", "B11", "B12",
}

// CloudMaskBand trails the schema when masking was applied; it holds
// the masked-sample fraction scaled to the reflectance range, so it
// exports through the same quantizer as everything else.
const CloudMaskBand = "cloudmask"

// Composite reduces a same-footprint collection to one tile.
//
// With applyMask set (multi-image collections), each tile's combined
// cloud/shadow mask invalidates its pixels and the stack reduces per
// band, per pixel, to the median of the valid samples. A tile whose
// probability layer is missing fails the whole footprint: silently
// compositing an unmasked frame into a masked stack degrades output
// with no visible error.
//
// Without it (single-image collections) the one tile passes through
// under the same band schema, minus the cloudmask band. The two paths
// deliberately produce different schemas; unifying them would change
// output band layout.
func Composite(ctx context.Context, coll *mtile.Collection, applyMask bool, catalog mtile.ProbabilityCatalog, tuning Tuning) (*mtile.Tile, error) {
	if coll.Len() == 0 {
		return nil, ErrNoImages
	}
	if err := coll.Validate(); err != nil {
		return nil, err
	}

	if !applyMask {
		return renameOnly(coll.Tiles[0])
	}

	base := coll.Tiles[0]
	w, h := base.Dx(), base.Dy()
	res := base.Resolution()

	// Per-tile validity after cloud/shadow masking.
	valids := make([]*mgrid.Mask, coll.Len())
	for i, t := range coll.Tiles {
		prob, err := catalog.CloudProbability(ctx, t.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "footprint stack tile %d", i)
		}
		mask, err := CombinedCloudShadowMask(t, prob, tuning)
		if err != nil {
			return nil, err
		}
		valids[i] = t.Valid.And(mask.Not())
	}

	out := mtile.NewTile(base.ID, w, h, res)
	out.SolarAzimuthDeg = base.SolarAzimuthDeg
	out.AcquiredAt = base.AcquiredAt

	samples := make([]float64, 0, coll.Len())
	for _, band := range CompositeBands {
		srcs := make([]*mgrid.Grid, coll.Len())
		for i, t := range coll.Tiles {
			g, err := t.Band(band)
			if err != nil {
				return nil, err
			}
			srcs[i] = g
		}

		g := mgrid.NewGrid(w, h, res)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				samples = samples[:0]
				for i := range srcs {
					if valids[i].Get(x, y) {
						samples = append(samples, srcs[i].Get(x, y))
					}
				}
				if len(samples) == 0 {
					out.Valid.Set(x, y, false)
					continue
				}
				sort.Float64s(samples)
				g.Set(x, y, median(samples))
			}
		}
		if err := out.AddBand(band, g); err != nil {
			return nil, err
		}
	}

	cm := mgrid.NewGrid(w, h, res)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			masked := 0
			for i := range valids {
				if !valids[i].Get(x, y) {
					masked++
				}
			}
			cm.Set(x, y, 10000.0*float64(masked)/float64(coll.Len()))
		}
	}
	if err := out.AddBand(CloudMaskBand, cm); err != nil {
		return nil, err
	}

	log.Printf("composite: %d tiles reduced, %.1f%% pixels valid\n", coll.Len(), out.Valid.Fraction()*100)
	return out, nil
}

// median of sorted samples. Even counts average the two middle
// samples; stat.Quantile's empirical cumulant would pick the lower
// one, darkening every pixel of a 2- or 4-image stack.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// renameOnly is the single-image fast path: same fixed schema, source
// planes shared bit-identically, no cloudmask band.
func renameOnly(t *mtile.Tile) (*mtile.Tile, error) {
	out := mtile.NewTile(t.ID, t.Dx(), t.Dy(), t.Resolution())
	out.SolarAzimuthDeg = t.SolarAzimuthDeg
	out.AcquiredAt = t.AcquiredAt
	out.Valid = t.Valid

	for _, band := range CompositeBands {
		g, err := t.Band(band)
		if err != nil {
			return nil, err
		}
		if err := out.AddBand(band, g); err != nil {
			return nil, err
		}
	}
	return out, nil
}
