package mstack

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/openreef/s2mosaic/pkg/mgrid"
	"github.com/openreef/s2mosaic/pkg/mtile"
)

// testTile builds a tile carrying the full composite band schema,
// every band filled with the same value.
func testTile(t *testing.T, id string, w, h int, fill float64) *mtile.Tile {
	t.Helper()
	tile := mtile.NewTile(id, w, h, 10)
	for _, band := range CompositeBands {
		g := mgrid.NewGrid(w, h, 10)
		g.Fill(fill)
		require.NoError(t, tile.AddBand(band, g))
	}
	return tile
}

func setBand(t *testing.T, tile *mtile.Tile, band string, x, y int, v float64) {
	t.Helper()
	g, err := tile.Band(band)
	require.NoError(t, err)
	g.Set(x, y, v)
}

// stubCatalog is an in-memory ProbabilityCatalog.
type stubCatalog map[string]*mgrid.Grid

func (c stubCatalog)CloudProbability(ctx context.Context, id string) (*mgrid.Grid, error) {
	g, ok := c[id]
	if !ok {
		return nil, errors.Wrapf(mtile.ErrNoCloudData, "id %s", id)
	}
	return g, nil
}

// clearCatalog serves an all-zero probability layer for every listed
// tile, so masking runs but nothing gets masked.
func clearCatalog(tiles ...*mtile.Tile) stubCatalog {
	c := stubCatalog{}
	for _, t := range tiles {
		c[t.ID] = mgrid.NewGrid(t.Dx(), t.Dy(), t.Resolution())
	}
	return c
}
