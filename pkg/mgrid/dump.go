package mgrid

import(
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
	"golang.org/x/image/draw"
)

const dumpMaxWidth = 1200

// DumpPNG saves a simple grayscale rendering of the grid, normalized
// to its own value range and gamma-scaled to look normal for human
// vision. Only used for debugging masking runs.
func (g *Grid)DumpPNG(title, filename string) error {
	min, max := 1000000.0, -1000000.0
	for _, v := range g.values {
		if v > max { max = v }
		if v < min { min = v }
	}
	if max <= min {
		max = min + 1
	}

	img := image.NewRGBA64(image.Rectangle{Max: image.Point{g.Dx(), g.Dy()}})
	for y := 0; y < g.Dy(); y++ {
		for x := 0; x < g.Dx(); x++ {
			gray := gammaExpand((g.Get(x, y) - min) / (max - min))
			c := uint16(gray * 65535.0)
			img.Set(x, y, color.RGBA64{c, c, c, 0xFFFF})
		}
	}

	return annotateAndSave(img, title, filename)
}

// DumpPNG saves the mask as white-on-black.
func (m *Mask)DumpPNG(title, filename string) error {
	img := image.NewRGBA64(image.Rectangle{Max: image.Point{m.Dx(), m.Dy()}})
	for y := 0; y < m.Dy(); y++ {
		for x := 0; x < m.Dx(); x++ {
			var c uint16
			if m.Get(x, y) {
				c = 0xFFFF
			}
			img.Set(x, y, color.RGBA64{c, c, c, 0xFFFF})
		}
	}
	return annotateAndSave(img, title, filename)
}

func annotateAndSave(img image.Image, title, filename string) error {
	// Coarse working-resolution masks come out tiny; scale them up to
	// something viewable before annotating.
	b := img.Bounds()
	if b.Dx() < dumpMaxWidth/4 {
		k := dumpMaxWidth / 4 / b.Dx()
		scaled := image.NewRGBA64(image.Rect(0, 0, b.Dx()*k, b.Dy()*k))
		draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
		img = scaled
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0, 0)
	dc.DrawString(title, 20, 20)
	return dc.SavePNG(filename)
}

// sRGB-ish gamma, linear toe. Only used to make the dumps readable;
// not part of the export path.
func gammaExpand(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}
