package mstack

import(
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

/* Example config file ...

rendering:
  basename: CoralSea
  outputdir: out
  styles: [TrueColour, DeepFalse]
  format: png
  includemask: true
  workers: 4

tuning:
  lowcloud:  {probthreshold: 35, erosionradiusm: 0,   shadowdistancem: 400,  bufferm: 100}
  highcloud: {probthreshold: 80, erosionradiusm: 300, shadowdistancem: 1500, bufferm: 300}

*/

type RenderOptions struct {
	Basename     string
	OutputDir    string
	Styles     []string
	Format       string  // png or tif
	IncludeMask  bool
	Workers      int
	DumpMasks    bool    // write working masks as annotated PNGs

	// Catalog-side filters, consumed as plain parameters
	MaxCloudPct  float64
	MinImages    int
	DateFrom     string
	DateTo       string
}

// A MaskPass is one invocation of the cloud/shadow mask estimator.
// Two passes run per tile: a low pass for small clouds with short
// shadows, a high pass for tall clouds with long ones.
type MaskPass struct {
	ProbThreshold    float64 // percent, applied to the probability layer
	ErosionRadiusM   float64 // 0 skips erosion/dilation entirely
	ShadowDistanceM  float64
	BufferM          float64
}

// Tuning carries every empirically fitted constant in the pipeline.
// These are named configuration, not magic numbers: deployments tune
// them, but the defaults below reproduce existing output bit-exactly.
type Tuning struct {
	LowCloud         MaskPass
	HighCloud        MaskPass

	DarkPixelNIRMax  float64 // NIR below this counts as "dark" (shadow on land)
	ShadowWorkResM   float64 // fixed coarse resolution for shadow projection

	ShallowOffset    float64 // subtracted from NIR-SWIR before clamping
	LandNIRThreshold float64 // NIR above this is land, not glinted water
	LandAtmosOffset  float64 // flat haze offset applied over land
	GlintScale       map[string]float64 // per-visible-band correction strength
}

func DefaultTuning() Tuning {
	return Tuning{
		LowCloud:  MaskPass{ProbThreshold: 35, ErosionRadiusM: 0, ShadowDistanceM: 400, BufferM: 100},
		HighCloud: MaskPass{ProbThreshold: 80, ErosionRadiusM: 300, ShadowDistanceM: 1500, BufferM: 300},

		DarkPixelNIRMax: 350,
		ShadowWorkResM:  100,

		ShallowOffset:    200,
		LandNIRThreshold: 1000,
		LandAtmosOffset:  280,
		GlintScale: map[string]float64{
			"B1": 0.50,
			"B2": 0.75,
			"B3": 0.90,
			"B4": 1.00, // red takes the full-strength correction
		},
	}
}

type Configuration struct {
	Rendering  RenderOptions
	Tuning     Tuning
	Grades     map[string]GradeRecipe // overrides/additions to the named styles
}

func NewConfiguration() Configuration {
	return Configuration{
		Rendering: RenderOptions{
			Basename:  "composite",
			OutputDir: ".",
			Styles:    []string{"TrueColour"},
			Format:    "png",
			Workers:   4,
			MinImages: 1,
		},
		Tuning: DefaultTuning(),
		Grades: map[string]GradeRecipe{},
	}
}

func LoadConfiguration(filename string) (Configuration, error) {
	c := NewConfiguration()

	contents, err := ioutil.ReadFile(filename)
	if err != nil {
		return c, errors.Wrapf(err, "config read %s", filename)
	}
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, errors.Wrapf(err, "config parse %s", filename)
	}

	return c, c.FinalizeConfiguration()
}

// FinalizeConfiguration does sanity checks and other post-processing.
// Style names are *not* resolved here: an unknown style must only
// fail its own grading run, not the whole configuration.
func (c *Configuration)FinalizeConfiguration() error {
	if c.Rendering.Workers < 1 {
		c.Rendering.Workers = 1
	}
	switch c.Rendering.Format {
	case "", "png":
		c.Rendering.Format = "png"
	case "tif", "tiff":
		c.Rendering.Format = "tif"
	default:
		return errors.Errorf("no output format named '%s'", c.Rendering.Format)
	}
	if len(c.Rendering.Styles) == 0 {
		return errors.New("style list must be a non-empty sequence")
	}
	return nil
}
