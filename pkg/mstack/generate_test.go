package mstack

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openreef/s2mosaic/pkg/mtile"
)

func testBatch(t *testing.T, dir string, styles []string, tiles ...*mtile.Tile) *Batch {
	t.Helper()
	cfg := NewConfiguration()
	cfg.Rendering.Basename = "Test"
	cfg.Rendering.OutputDir = dir
	cfg.Rendering.Styles = styles
	require.NoError(t, cfg.FinalizeConfiguration())

	coll := mtile.NewCollection()
	for _, tile := range tiles {
		coll.Add(tile)
	}
	return &Batch{
		Config:  cfg,
		Catalog: clearCatalog(tiles...),
		Jobs:    []Job{{Footprint: "55KDV", Collection: coll}},
	}
}

// One bad style must not abort its siblings: the valid style still
// writes its output, the unknown one reports an error.
func TestGenerateStyleBulkhead(t *testing.T) {
	dir := t.TempDir()
	tile := testTile(t, "SENSOR/20170812T003031_20170812T003034_T55KDV", 4, 4, 1000)
	b := testBatch(t, dir, []string{"Foo", "TrueColour"}, tile)

	results := b.Generate(context.Background())
	require.Len(t, results, 2)

	byStyle := map[string]Result{}
	for _, r := range results {
		byStyle[r.Style] = r
	}

	require.ErrorIs(t, byStyle["Foo"].Err, ErrUnknownStyle)
	require.NoError(t, byStyle["TrueColour"].Err)

	_, err := os.Stat(filepath.Join(dir, "Test_TrueColour_55KDV_201708-n1.png"))
	assert.NoError(t, err, "valid sibling still produced output")
	matches, _ := filepath.Glob(filepath.Join(dir, "*Foo*"))
	assert.Empty(t, matches, "unknown style produced no output")
}

// A footprint whose probability data is missing fails alone; the
// other footprint in the batch completes.
func TestGenerateFootprintBulkhead(t *testing.T) {
	dir := t.TempDir()

	good1 := testTile(t, "SENSOR/20170812T003031_20170812T003034_T55KDV", 4, 4, 1000)
	good2 := testTile(t, "SENSOR/20170901T003031_20170901T003034_T55KDV", 4, 4, 2000)
	bad1 := testTile(t, "SENSOR/20170812T003031_20170812T003034_T55KEV", 4, 4, 1000)
	bad2 := testTile(t, "SENSOR/20170901T003031_20170901T003034_T55KEV", 4, 4, 2000)

	cfg := NewConfiguration()
	cfg.Rendering.Basename = "Test"
	cfg.Rendering.OutputDir = dir
	cfg.Rendering.Styles = []string{"TrueColour"}
	require.NoError(t, cfg.FinalizeConfiguration())

	goodColl := mtile.NewCollection()
	goodColl.Add(good1)
	goodColl.Add(good2)
	badColl := mtile.NewCollection()
	badColl.Add(bad1)
	badColl.Add(bad2)

	b := &Batch{
		Config:  cfg,
		Catalog: clearCatalog(good1, good2), // nothing for the KEV tiles
		Jobs: []Job{
			{Footprint: "55KDV", Collection: goodColl},
			{Footprint: "55KEV", Collection: badColl},
		},
	}

	results := b.Generate(context.Background())
	require.Len(t, results, 2)

	byFoot := map[string]Result{}
	for _, r := range results {
		byFoot[r.Footprint] = r
	}
	require.ErrorIs(t, byFoot["55KEV"].Err, mtile.ErrNoCloudData)
	require.NoError(t, byFoot["55KDV"].Err)
	assert.NotEmpty(t, byFoot["55KDV"].Filename)
}

func TestGenerateDateFilter(t *testing.T) {
	dir := t.TempDir()
	tile := testTile(t, "SENSOR/20170812T003031_20170812T003034_T55KDV", 4, 4, 1000)
	tile.AcquiredAt = mustTime(t, tile.ID)

	b := testBatch(t, dir, []string{"TrueColour"}, tile)
	b.Config.Rendering.DateFrom = "2018-01-01"

	results := b.Generate(context.Background())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrNoImages)
}

func TestGenerateIncludeMaskWritesCompanion(t *testing.T) {
	dir := t.TempDir()
	t1 := testTile(t, "SENSOR/20170812T003031_20170812T003034_T55KDV", 4, 4, 1000)
	t2 := testTile(t, "SENSOR/20170901T003031_20170901T003034_T55KDV", 4, 4, 2000)

	b := testBatch(t, dir, []string{"TrueColour"}, t1, t2)
	b.Config.Rendering.IncludeMask = true

	results := b.Generate(context.Background())
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	_, err := os.Stat(filepath.Join(dir, "Test_TrueColour_55KDV_201708-201709-n2_cloudmask.png"))
	assert.NoError(t, err, "companion mask band written for the masked stack")
}

func TestGenerateMaxCloudFilter(t *testing.T) {
	dir := t.TempDir()
	clear := testTile(t, "SENSOR/20170812T003031_20170812T003034_T55KDV", 4, 4, 1000)
	cloudy := testTile(t, "SENSOR/20170901T003031_20170901T003034_T55KDV", 4, 4, 2000)

	b := testBatch(t, dir, []string{"TrueColour"}, clear, cloudy)
	overcast := b.Catalog.(stubCatalog)[cloudy.ID]
	overcast.Fill(90)
	b.Config.Rendering.MaxCloudPct = 50

	results := b.Generate(context.Background())
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	// Only the clear acquisition survives the filter: single-image
	// naming, no masking path.
	_, err := os.Stat(filepath.Join(dir, "Test_TrueColour_55KDV_201708-n1.png"))
	assert.NoError(t, err)
}

func mustTime(t *testing.T, id string) time.Time {
	t.Helper()
	at, err := mtile.AcquisitionTime(id)
	require.NoError(t, err)
	return at
}
