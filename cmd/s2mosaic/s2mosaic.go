package main

import(
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/openreef/s2mosaic/pkg/mstack"
	"github.com/openreef/s2mosaic/pkg/mtile"
)

var(
	fConfigFilename string
	fBasename       string
	fOutputDir      string
	fStyles         string
	fFormat         string
	fIncludeMask    bool
	fWorkers        int
	fTilesDir       string
	fProbDir        string
	fGazetteer      string
	fDateFrom       string
	fDateTo         string
	fMinImages      int
	fDumpMasks      bool
)

func init() {
	flag.StringVar(&fConfigFilename, "c", "", "YAML configuration file")
	flag.StringVar(&fBasename, "o", "", "basename for output images")
	flag.StringVar(&fOutputDir, "out", "", "output directory")
	flag.StringVar(&fStyles, "styles", "", "comma separated colour grade styles")
	flag.StringVar(&fFormat, "format", "", "output format (png or tif)")
	flag.BoolVar(&fIncludeMask, "mask", false, "write the companion cloudmask band")
	flag.IntVar(&fWorkers, "workers", 0, "parallel workers")
	flag.StringVar(&fTilesDir, "tiles", "tiles", "directory of tile band TIFFs")
	flag.StringVar(&fProbDir, "probs", "probs", "directory of cloud-probability TIFFs")
	flag.StringVar(&fGazetteer, "gazetteer", "", "extra footprint gazetteer YAML")
	flag.StringVar(&fDateFrom, "from", "", "earliest acquisition date (YYYY-MM-DD)")
	flag.StringVar(&fDateTo, "to", "", "latest acquisition date (YYYY-MM-DD)")
	flag.IntVar(&fMinImages, "minimages", 0, "skip footprints with fewer images")
	flag.BoolVar(&fDumpMasks, "dumpmasks", false, "dump intermediate masks as PNGs")
}

func main() {
	flag.Parse()
	log.Printf("Starting\n")

	cfg := mstack.NewConfiguration()
	if fConfigFilename != "" {
		var err error
		if cfg, err = mstack.LoadConfiguration(fConfigFilename); err != nil {
			log.Fatal(err)
		}
	}

	// Override the config file with command line args, if relevant
	if fBasename != ""  { cfg.Rendering.Basename = fBasename }
	if fOutputDir != "" { cfg.Rendering.OutputDir = fOutputDir }
	if fStyles != ""    { cfg.Rendering.Styles = strings.Split(fStyles, ",") }
	if fFormat != ""    { cfg.Rendering.Format = fFormat }
	if fWorkers > 0     { cfg.Rendering.Workers = fWorkers }
	if fDateFrom != ""  { cfg.Rendering.DateFrom = fDateFrom }
	if fDateTo != ""    { cfg.Rendering.DateTo = fDateTo }
	if fMinImages > 0   { cfg.Rendering.MinImages = fMinImages }

	// Just set the bool vars
	cfg.Rendering.IncludeMask = fIncludeMask
	cfg.Rendering.DumpMasks = fDumpMasks

	if err := cfg.FinalizeConfiguration(); err != nil {
		log.Fatalf("configuration: %v\n", err)
	}

	ids := flag.Args()
	if len(ids) == 0 {
		log.Fatalf("no acquisition identifiers given\n")
	}

	resolver := mtile.NewGeometryResolver()
	if fGazetteer != "" {
		if err := resolver.LoadGazetteer(fGazetteer); err != nil {
			log.Fatal(err)
		}
	}

	jobs, skipped := buildJobs(resolver, fTilesDir, ids)
	if len(jobs) == 0 {
		log.Fatalf("no loadable footprints\n")
	}

	batch := &mstack.Batch{
		Config:  cfg,
		Catalog: mtile.DirCatalog{Root: fProbDir},
		Jobs:    jobs,
	}
	results := batch.Generate(context.Background())

	failed := skipped
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Printf("done: %d results, %d failed, %d footprints skipped\n", len(results), failed, skipped)
	if failed > 0 {
		os.Exit(1)
	}
}

// buildJobs groups the given acquisition ids by tile code, loads each
// group's tiles, and checks every footprint actually resolves before
// any pixels are touched. Failures are isolated the same way the
// pipeline isolates them: a bad identifier or unloadable tile poisons
// only its own footprint, which is skipped with a log line, and the
// rest carry on.
func buildJobs(resolver *mtile.GeometryResolver, tilesDir string, ids []string) ([]mstack.Job, int) {
	byCode := map[string]*mtile.Collection{}
	order := []string{}
	poisoned := map[string]bool{}
	skipped := 0

	for _, id := range ids {
		code, err := mtile.TileCode(id)
		if err != nil {
			log.Printf("skipping %s: %v\n", id, err)
			skipped++
			continue
		}
		if byCode[code] == nil {
			byCode[code] = mtile.NewCollection()
			order = append(order, code)
		}
		t, err := mtile.LoadTile(tilesDir, id)
		if err != nil {
			// A partial stack would silently change the composite, so
			// one unloadable tile drops the whole footprint.
			log.Printf("footprint %s: %v\n", code, err)
			poisoned[code] = true
			continue
		}
		byCode[code].Add(t)
	}

	jobs := []mstack.Job{}
	for _, code := range order {
		if poisoned[code] {
			log.Printf("footprint %s skipped: unloadable tiles\n", code)
			skipped++
			continue
		}
		bound, err := resolver.Footprint(code)
		if err != nil {
			log.Printf("footprint %s skipped: %v\n", code, err)
			skipped++
			continue
		}
		log.Printf("footprint %s: %d images, bound %v\n", code, byCode[code].Len(), bound)
		jobs = append(jobs, mstack.Job{Footprint: code, Collection: byCode[code]})
	}
	return jobs, skipped
}
