package mstack

import(
	"log"

	"github.com/openreef/s2mosaic/pkg/mgrid"
	"github.com/openreef/s2mosaic/pkg/mtile"
)

const swirBand = "B11"

// RemoveSunGlint subtracts a NIR-derived glint+haze estimate from the
// visible bands, returning a new tile. All other bands pass through
// untouched.
//
// The estimate is dampened in very shallow water, where SWIR still
// partially senses the bottom and the raw NIR reading would
// over-correct. Over land (bright in NIR) the estimate is replaced by
// a flat atmospheric offset so land isn't darkened.
//
// Known limitation, kept on purpose: clouds are extremely bright in
// NIR, so cloud edges can go dark from over-subtraction. The cloud
// mask removes those pixels anyway.
func RemoveSunGlint(tile *mtile.Tile, tuning Tuning) (*mtile.Tile, error) {
	nir, err := tile.Band(nirBand)
	if err != nil {
		return nil, err
	}
	swir, err := tile.Band(swirBand)
	if err != nil {
		return nil, err
	}

	// Glint estimate per pixel, shared across the visible bands.
	glint := nir.NewFromThis()
	for y := 0; y < nir.Dy(); y++ {
		for x := 0; x < nir.Dx(); x++ {
			n := nir.Get(x, y)
			if n > tuning.LandNIRThreshold {
				glint.Set(x, y, tuning.LandAtmosOffset)
				continue
			}
			shallow := mgrid.Clamp((n-swir.Get(x, y))-tuning.ShallowOffset, 0, 10000)
			glint.Set(x, y, n-shallow)
		}
	}

	replacements := map[string]*mgrid.Grid{}
	for band, scale := range tuning.GlintScale {
		src, err := tile.Band(band)
		if err != nil {
			return nil, err
		}
		dst := src.NewFromThis()
		for y := 0; y < src.Dy(); y++ {
			for x := 0; x < src.Dx(); x++ {
				dst.Set(x, y, mgrid.Clamp(src.Get(x, y)-scale*glint.Get(x, y), 0, 10000))
			}
		}
		replacements[band] = dst
	}

	log.Printf("tile %s: sun glint removed from %d visible bands\n", tile.ID, len(replacements))
	return tile.WithBands(replacements), nil
}
