package mtile

import (
	"context"
	"image"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v2"

	"github.com/openreef/s2mosaic/pkg/mgrid"
)

// Tiles live on disk as one 16-bit grayscale TIFF per band, under a
// directory named for the (slash-escaped) acquisition id, plus a
// small meta.yaml sidecar:
//
//	<root>/<id>/B1.tif ... B12.tif
//	<root>/<id>/meta.yaml
type tileMeta struct {
	SolarAzimuthDeg float64
	ResolutionM     float64
}

// LoadTile reads every band TIFF in the tile's directory. Acquisition
// time comes from the identifier; when the identifier carries no
// timestamp we fall back to the EXIF DateTime of the first band file.
func LoadTile(root, id string) (*Tile, error) {
	dir := filepath.Join(root, escapeID(id))

	contents, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "readdir %s", dir)
	}

	meta := tileMeta{ResolutionM: 10}
	if b, err := ioutil.ReadFile(filepath.Join(dir, "meta.yaml")); err == nil {
		if err := yaml.Unmarshal(b, &meta); err != nil {
			return nil, errors.Wrapf(err, "meta parse %s", dir)
		}
	}

	var t *Tile
	firstBandFile := ""
	for _, item := range contents {
		name := item.Name()
		if strings.ToLower(filepath.Ext(name)) != ".tif" {
			continue
		}
		band := strings.TrimSuffix(name, filepath.Ext(name))

		g, err := loadBandTIFF(filepath.Join(dir, name), meta.ResolutionM)
		if err != nil {
			return nil, err
		}

		if t == nil {
			t = NewTile(id, g.Dx(), g.Dy(), meta.ResolutionM)
			t.SolarAzimuthDeg = meta.SolarAzimuthDeg
			firstBandFile = filepath.Join(dir, name)
		}
		if err := t.AddBand(band, g); err != nil {
			return nil, err
		}
	}
	if t == nil {
		return nil, errors.Errorf("no band TIFFs in %s", dir)
	}

	if at, err := AcquisitionTime(id); err == nil {
		t.AcquiredAt = at
	} else if at, err2 := exifDateTime(firstBandFile); err2 == nil {
		log.Printf("tile %s: no timestamp in identifier, using EXIF DateTime %s\n", id, at)
		t.AcquiredAt = at
	} else {
		return nil, errors.Wrapf(err, "tile %s has no usable acquisition time", id)
	}

	return t, nil
}

func loadBandTIFF(filename string, resolution float64) (*mgrid.Grid, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open+r %s", filename)
	}
	defer reader.Close()

	img, err := tiff.Decode(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "tiff decode %s", filename)
	}

	return gridFromImage(img, resolution), nil
}

func gridFromImage(img image.Image, resolution float64) *mgrid.Grid {
	b := img.Bounds()
	g := mgrid.NewGrid(b.Dx(), b.Dy(), resolution)

	switch im := img.(type) {
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g.Set(x, y, float64(im.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	default:
		// 8-bit or RGB bands get their 16-bit luminance; reflectance
		// scale is preserved either way since bands are written Gray16.
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				g.Set(x, y, float64(r))
			}
		}
	}
	return g
}

func exifDateTime(filename string) (at time.Time, err error) {
	reader, err := os.Open(filename)
	if err != nil {
		return at, errors.Wrapf(err, "open+r exif %s", filename)
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return at, errors.Wrapf(err, "exif parse %s", filename)
	}
	dt, err := ex.DateTime()
	if err != nil {
		return at, errors.Wrapf(err, "exif DateTime %s", filename)
	}
	return dt, nil
}

// Identifiers contain "/", which we flatten for on-disk directories.
func escapeID(id string) string { return strings.ReplaceAll(id, "/", "_") }

// A ProbabilityCatalog is the boundary to the external companion
// catalog of cloud-probability layers, joined to tiles by immutable
// original acquisition id.
type ProbabilityCatalog interface {
	CloudProbability(ctx context.Context, id string) (*mgrid.Grid, error)
}

// DirCatalog serves probability layers from <root>/<id>.tif, each a
// single-band raster of per-pixel cloud probability 0-100.
type DirCatalog struct {
	Root string
}

func (c DirCatalog)CloudProbability(ctx context.Context, id string) (*mgrid.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filename := filepath.Join(c.Root, escapeID(id)+".tif")
	if _, err := os.Stat(filename); err != nil {
		return nil, errors.Wrapf(ErrNoCloudData, "id %s (%v)", id, err)
	}
	// Probabilities are stored at tile resolution; sidecar-free.
	return loadBandTIFF(filename, 10)
}
