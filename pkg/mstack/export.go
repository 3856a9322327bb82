package mstack

import(
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/openreef/s2mosaic/pkg/mgrid"
)

// Quantize maps a graded 0-1 value onto the 8-bit export range 1-255.
// Zero is reserved exclusively for no-data, so output files need no
// separate alpha or no-data band.
func Quantize(v float64) uint8 {
	return uint8(mgrid.Clamp(v, 0, 1)*254.0) + 1
}

// ToImage renders a graded image into an 8-bit stdlib image. Mono
// becomes Gray, three channels become RGBA with an opaque alpha.
// No-data pixels quantize to 0 on every channel.
func (gi *GradedImage)ToImage() image.Image {
	w, h := gi.Valid.Dx(), gi.Valid.Dy()

	if len(gi.Channels) == 1 {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if gi.Valid.Get(x, y) {
					img.SetGray(x, y, color.Gray{Quantize(gi.Channels[0].Get(x, y))})
				}
			}
		}
		return img
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !gi.Valid.Get(x, y) {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 0xff})
				continue
			}
			img.SetRGBA(x, y, color.RGBA{
				Quantize(gi.Channels[0].Get(x, y)),
				Quantize(gi.Channels[1].Get(x, y)),
				Quantize(gi.Channels[2].Get(x, y)),
				0xff,
			})
		}
	}
	return img
}

// MaskImage renders the carried-through cloudmask band as a companion
// 8-bit single-band image, or nil when the grade carried none.
func (gi *GradedImage)MaskImage() image.Image {
	if gi.CloudMask == nil {
		return nil
	}
	w, h := gi.Valid.Dx(), gi.Valid.Dy()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if gi.Valid.Get(x, y) {
				img.SetGray(x, y, color.Gray{Quantize(gi.CloudMask.Get(x, y))})
			}
		}
	}
	return img
}

func WritePNG(img image.Image, filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "open+w %s", filename)
	}
	defer writer.Close()
	return png.Encode(writer, img)
}

func WriteTIFF(img image.Image, filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "open+w %s", filename)
	}
	defer writer.Close()
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate})
}

// WriteGraded writes the graded image, plus its companion mask file
// when one was carried through, in the configured format.
func (gi *GradedImage)WriteGraded(basename, format string) error {
	write := WritePNG
	if format == "tif" {
		write = WriteTIFF
	}

	if err := write(gi.ToImage(), basename+"."+format); err != nil {
		return err
	}
	if maskImg := gi.MaskImage(); maskImg != nil {
		return write(maskImg, basename+"_cloudmask."+format)
	}
	return nil
}
