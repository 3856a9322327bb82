package mstack

import(
	"log"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/openreef/s2mosaic/pkg/mgrid"
	"github.com/openreef/s2mosaic/pkg/mtile"
)

var (
	ErrUnknownStyle = errors.New("no colour grade style with that name")
)

// A ChannelCurve grades one source band into one output channel:
// scale to 0-1, optionally smooth, then stretch through the contrast
// curve clamp((v-min)/(max-min),0,1)^(1/gamma).
type ChannelCurve struct {
	Band            string
	Min, Max        float64
	Gamma           float64
	SmoothRadiusPx  int
	SmoothIters     int
}

// A GradeRecipe is one named contrast-enhancement style. Three
// channels make an RGB image, one makes a mono image. With Diff set,
// the first two channels' bands are smoothed and differenced and the
// first channel's curve grades the difference (mono output).
type GradeRecipe struct {
	Channels []ChannelCurve
	Diff     bool
	Ramp   []string // optional hex colour stops for mono styles
}

// The named styles and their tuned defaults. Empirically fitted;
// overridable per deployment through Configuration.Grades.
var builtinGrades = map[string]GradeRecipe{
	// Widest dynamic range, least clipping.
	"TrueColour": {Channels: []ChannelCurve{
		{Band: "B4", Min: 0, Max: 0.30, Gamma: 2.2},
		{Band: "B3", Min: 0, Max: 0.31, Gamma: 2.2},
		{Band: "B2", Min: 0, Max: 0.33, Gamma: 2.2},
	}},
	// Tighter range; red carries only shallow signal so it is de-emphasized.
	"DeepMarine": {Channels: []ChannelCurve{
		{Band: "B4", Min: 0.008, Max: 0.120, Gamma: 2.0},
		{Band: "B3", Min: 0.015, Max: 0.095, Gamma: 2.0},
		{Band: "B2", Min: 0.035, Max: 0.100, Gamma: 2.0},
	}},
	// Best deep-feature contrast in clear water.
	"DeepFalse": {Channels: []ChannelCurve{
		{Band: "B3", Min: 0.033, Max: 0.235, Gamma: 2.3},
		{Band: "B2", Min: 0.067, Max: 0.235, Gamma: 2.5},
		{Band: "B1", Min: 0.101, Max: 0.237, Gamma: 2.7},
	}},
	// Highlights dry and very shallow areas.
	"Shallow": {Channels: []ChannelCurve{
		{Band: "B11", Min: 0.01, Max: 0.45, Gamma: 1.8},
		{Band: "B8", Min: 0.01, Max: 0.45, Gamma: 1.8},
		{Band: "B5", Min: 0.01, Max: 0.45, Gamma: 1.8},
	}},
	// Near-binary reef-top mask: heavy smoothing then a razor-thin stretch.
	"ReefTop": {Channels: []ChannelCurve{
		{Band: "B4", Min: 0.020, Max: 0.021, Gamma: 1.0, SmoothRadiusPx: 10, SmoothIters: 4},
	}},
	// Experimental grayscale difference of smoothed green and blue.
	"DeepFeature": {Diff: true, Channels: []ChannelCurve{
		{Band: "B3", Min: 0, Max: 0.04, Gamma: 1.0, SmoothRadiusPx: 40, SmoothIters: 4},
		{Band: "B2", Min: 0, Max: 0.04, Gamma: 1.0, SmoothRadiusPx: 40, SmoothIters: 4},
	}},
}

// A GradedImage is a display/export-ready raster: 1 or 3 channels of
// 0-1 values, the composite's validity mask, and optionally the
// cloudmask band carried through unchanged (still 0-1 scale).
type GradedImage struct {
	Style      string
	Channels []*mgrid.Grid
	Valid      *mgrid.Mask
	CloudMask  *mgrid.Grid
}

// ContrastCurve saturates to 0 at min and 1 at max and is monotone
// non-decreasing in between.
func ContrastCurve(v, min, max, gamma float64) float64 {
	return math.Pow(mgrid.Clamp((v-min)/(max-min), 0, 1), 1.0/gamma)
}

// RecipeFor resolves a style name, letting configured recipes shadow
// the builtin ones. Unknown names are an invalid-configuration error
// for the caller to report; they never abort the batch.
func (c Configuration)RecipeFor(style string) (GradeRecipe, error) {
	if r, ok := c.Grades[style]; ok {
		return r, nil
	}
	if r, ok := builtinGrades[style]; ok {
		return r, nil
	}
	return GradeRecipe{}, errors.Wrapf(ErrUnknownStyle, "style %q", style)
}

// Grade applies a named style to a composite tile.
func Grade(composite *mtile.Tile, style string, includeMask bool, cfg Configuration) (*GradedImage, error) {
	recipe, err := cfg.RecipeFor(style)
	if err != nil {
		return nil, err
	}

	out := &GradedImage{Style: style, Valid: composite.Valid}

	if recipe.Diff {
		if len(recipe.Channels) != 2 {
			return nil, errors.Wrapf(ErrUnknownStyle, "style %q: diff recipe needs 2 channels, has %d", style, len(recipe.Channels))
		}
		a, err := gradeInput(composite, recipe.Channels[0])
		if err != nil {
			return nil, err
		}
		b, err := gradeInput(composite, recipe.Channels[1])
		if err != nil {
			return nil, err
		}
		cv := recipe.Channels[0]
		g := a.NewFromThis()
		for y := 0; y < a.Dy(); y++ {
			for x := 0; x < a.Dx(); x++ {
				g.Set(x, y, ContrastCurve(a.Get(x, y)-b.Get(x, y), cv.Min, cv.Max, cv.Gamma))
			}
		}
		out.Channels = []*mgrid.Grid{g}
	} else {
		for _, cv := range recipe.Channels {
			in, err := gradeInput(composite, cv)
			if err != nil {
				return nil, err
			}
			g := in.Map(func(v float64) float64 { return ContrastCurve(v, cv.Min, cv.Max, cv.Gamma) })
			out.Channels = append(out.Channels, g)
		}
	}

	if len(out.Channels) == 1 && len(recipe.Ramp) >= 2 {
		if err := out.applyRamp(recipe.Ramp); err != nil {
			return nil, err
		}
	}

	if includeMask && composite.HasBand(CloudMaskBand) {
		cm, _ := composite.Band(CloudMaskBand)
		out.CloudMask = cm.Map(func(v float64) float64 { return v / 10000.0 })
	}

	log.Printf("graded %s: %d channels\n", style, len(out.Channels))
	return out, nil
}

// gradeInput pulls a band, scales it to 0-1 and runs any smoothing
// the channel asks for.
func gradeInput(composite *mtile.Tile, cv ChannelCurve) (*mgrid.Grid, error) {
	src, err := composite.Band(cv.Band)
	if err != nil {
		return nil, err
	}
	g := src.Map(func(v float64) float64 { return v / 10000.0 })
	if cv.SmoothRadiusPx > 0 && cv.SmoothIters > 0 {
		g = g.CircularMean(cv.SmoothRadiusPx, cv.SmoothIters)
	}
	return g, nil
}

// applyRamp turns a mono image into RGB by blending between hex
// colour stops in Lab space, evenly spaced over 0-1.
func (gi *GradedImage)applyRamp(stops []string) error {
	cols := make([]colorful.Color, len(stops))
	for i, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			return errors.Wrapf(err, "ramp stop %q", s)
		}
		cols[i] = c
	}

	mono := gi.Channels[0]
	r, g, b := mono.NewFromThis(), mono.NewFromThis(), mono.NewFromThis()
	n := len(cols) - 1
	for y := 0; y < mono.Dy(); y++ {
		for x := 0; x < mono.Dx(); x++ {
			v := mgrid.Clamp(mono.Get(x, y), 0, 1) * float64(n)
			i := int(v)
			if i >= n {
				i = n - 1
			}
			c := cols[i].BlendLab(cols[i+1], v-float64(i)).Clamped()
			r.Set(x, y, c.R)
			g.Set(x, y, c.G)
			b.Set(x, y, c.B)
		}
	}
	gi.Channels = []*mgrid.Grid{r, g, b}
	return nil
}
