package mstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveSunGlintOverWater(t *testing.T) {
	tile := testTile(t, "a", 2, 2, 600)
	// NIR 500, SWIR 300: shallow proxy clamps to 0, so the full NIR
	// reading is treated as glint.
	for _, b := range []string{"B8"} {
		g, _ := tile.Band(b)
		g.Fill(500)
	}
	g, _ := tile.Band("B11")
	g.Fill(300)

	out, err := RemoveSunGlint(tile, DefaultTuning())
	require.NoError(t, err)

	b4, _ := out.Band("B4")
	assert.Equal(t, 100.0, b4.Get(0, 0), "red takes the full 500 correction")
	b3, _ := out.Band("B3")
	assert.Equal(t, 150.0, b3.Get(0, 0), "green scaled by 0.9")
	b2, _ := out.Band("B2")
	assert.Equal(t, 225.0, b2.Get(0, 0), "blue scaled by 0.75")
	b1, _ := out.Band("B1")
	assert.Equal(t, 350.0, b1.Get(0, 0), "coastal scaled by 0.5")
}

func TestRemoveSunGlintShallowWaterDampening(t *testing.T) {
	tile := testTile(t, "a", 2, 2, 600)
	// NIR 800, SWIR 100: the bottom still shows in NIR but not SWIR.
	// proxy = clamp((800-100)-200) = 500, so glint = 300 instead of 800.
	g, _ := tile.Band("B8")
	g.Fill(800)
	g, _ = tile.Band("B11")
	g.Fill(100)

	out, err := RemoveSunGlint(tile, DefaultTuning())
	require.NoError(t, err)

	b4, _ := out.Band("B4")
	assert.Equal(t, 300.0, b4.Get(0, 0), "600 - 1.0*300")
}

func TestRemoveSunGlintOverLand(t *testing.T) {
	tile := testTile(t, "a", 2, 2, 4000)
	// NIR 5000 is land: the computed estimate would darken it badly,
	// so only the flat atmospheric offset applies.
	g, _ := tile.Band("B8")
	g.Fill(5000)

	out, err := RemoveSunGlint(tile, DefaultTuning())
	require.NoError(t, err)

	b4, _ := out.Band("B4")
	assert.Equal(t, 4000.0-280.0, b4.Get(0, 0))
}

func TestRemoveSunGlintClampsAtZero(t *testing.T) {
	tile := testTile(t, "a", 2, 2, 100)
	g, _ := tile.Band("B8")
	g.Fill(900)
	g, _ = tile.Band("B11")
	g.Fill(900)
	// proxy clamps to 0, glint = 900, corrections exceed every band value

	out, err := RemoveSunGlint(tile, DefaultTuning())
	require.NoError(t, err)
	b4, _ := out.Band("B4")
	assert.Equal(t, 0.0, b4.Get(0, 0))
}

func TestRemoveSunGlintLeavesOtherBandsAlone(t *testing.T) {
	tile := testTile(t, "a", 2, 2, 600)

	out, err := RemoveSunGlint(tile, DefaultTuning())
	require.NoError(t, err)

	for _, band := range []string{"B5", "B6", "B7", "B8", "B8A", "B9", "B10", "B11", "B12"} {
		src, _ := tile.Band(band)
		got, _ := out.Band(band)
		assert.Same(t, src, got, "band %s passes through unmodified", band)
	}

	// And the input tile's visible bands are untouched: a new tile
	// came back.
	b4, _ := tile.Band("B4")
	assert.Equal(t, 600.0, b4.Get(0, 0))
}

func TestRemoveSunGlintNeedsNIRAndSWIR(t *testing.T) {
	tile := testTile(t, "a", 2, 2, 600)
	delete(tile.Bands, "B11")
	_, err := RemoveSunGlint(tile, DefaultTuning())
	assert.Error(t, err)
}
