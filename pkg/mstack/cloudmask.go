package mstack

import(
	"fmt"
	"log"
	"strings"

	"github.com/skypies/util/histogram"

	"github.com/openreef/s2mosaic/pkg/mgrid"
	"github.com/openreef/s2mosaic/pkg/mtile"
)

// The near-infrared band driving the dark-pixel shadow test.
const nirBand = "B8"

// EstimateCloudShadowMask turns a cloud-probability layer into a
// combined cloud+shadow mask for one tile:
//
//  1. threshold the probability layer;
//  2. optionally erode-then-dilate at a working resolution, removing
//     cloud fragments smaller than the erosion radius while restoring
//     the size of survivors;
//  3. project the cloud mask away from the sun to catch shadows;
//  4. on land, keep only projected pixels that are dark in NIR. On
//     water nearly everything is dark in NIR, so there the projection
//     itself is the effective shadow mask;
//  5. buffer the result to absorb imperfect boundaries.
func EstimateCloudShadowMask(tile *mtile.Tile, prob *mgrid.Grid, pass MaskPass, tuning Tuning) (*mgrid.Mask, error) {
	w, h := tile.Dx(), tile.Dy()
	res := tile.Resolution()

	clouds := mgrid.Threshold(prob, pass.ProbThreshold)

	if pass.ErosionRadiusM > 0 {
		workRes := mgrid.WorkingResolution(pass.ErosionRadiusM)
		radiusPx := int(pass.ErosionRadiusM / workRes)
		work := clouds.Resample(workRes)
		work = work.Erode(radiusPx)   // order matters: erode first,
		work = work.Dilate(radiusPx)  // then dilate, never the reverse
		clouds = work.ResampleTo(res, w, h)
	}

	// Shadows point away from the sun.
	bearing := 90.0 - tile.SolarAzimuthDeg
	distPx := pass.ShadowDistanceM / tuning.ShadowWorkResM
	projected := clouds.Resample(tuning.ShadowWorkResM).
		ProjectAlongBearing(bearing, distPx).
		ResampleTo(res, w, h)

	nir, err := tile.Band(nirBand)
	if err != nil {
		return nil, err
	}
	dark := mgrid.ThresholdBelow(nir, tuning.DarkPixelNIRMax)
	shadows := dark.And(projected)

	mask := clouds.Or(shadows)

	if pass.BufferM > 0 {
		workRes := mgrid.WorkingResolution(pass.BufferM)
		bufPx := int(pass.BufferM / workRes)
		mask = mask.Resample(workRes).Dilate(bufPx).ResampleTo(res, w, h)
	}

	return mask, nil
}

// CombinedCloudShadowMask ORs the low-cloud and high-cloud passes.
func CombinedCloudShadowMask(tile *mtile.Tile, prob *mgrid.Grid, tuning Tuning) (*mgrid.Mask, error) {
	logProbHistogram(tile.ID, prob)

	low, err := EstimateCloudShadowMask(tile, prob, tuning.LowCloud, tuning)
	if err != nil {
		return nil, err
	}
	high, err := EstimateCloudShadowMask(tile, prob, tuning.HighCloud, tuning)
	if err != nil {
		return nil, err
	}

	mask := low.Or(high)
	log.Printf("tile %s: cloud/shadow %s (low %.1f%%, high %.1f%%)\n",
		tile.ID, mask.Stats(), low.Fraction()*100, high.Fraction()*100)
	return mask, nil
}

// logProbHistogram summarizes the probability layer's distribution,
// which is the quickest way to spot a miscalibrated threshold.
func logProbHistogram(id string, prob *mgrid.Grid) {
	hist := histogram.Histogram{NumBuckets: 20, ValMin: 0, ValMax: 100}
	for y := 0; y < prob.Dy(); y++ {
		for x := 0; x < prob.Dx(); x++ {
			hist.Add(histogram.ScalarVal(int(prob.Get(x, y))))
		}
	}
	log.Printf("tile %s: cloud probability %s\n", id, hist)
}

// DumpMasks writes the intermediate masks for one tile as annotated
// PNGs, for eyeballing threshold changes.
func DumpMasks(tile *mtile.Tile, prob *mgrid.Grid, tuning Tuning, dir string) {
	stem := strings.ReplaceAll(tile.ID, "/", "_") // one set of dumps per tile
	if err := prob.DumpPNG(fmt.Sprintf("%s prob", tile.ID), fmt.Sprintf("%s/%s-prob.png", dir, stem)); err != nil {
		log.Printf("mask dump failed: %v\n", err)
		return
	}
	for _, pass := range []struct {
		name string
		p    MaskPass
	}{{"low", tuning.LowCloud}, {"high", tuning.HighCloud}} {
		m, err := EstimateCloudShadowMask(tile, prob, pass.p, tuning)
		if err != nil {
			log.Printf("mask dump (%s) failed: %v\n", pass.name, err)
			continue
		}
		m.DumpPNG(fmt.Sprintf("%s %s", tile.ID, pass.name), fmt.Sprintf("%s/%s-mask-%s.png", dir, stem, pass.name))
	}
}
