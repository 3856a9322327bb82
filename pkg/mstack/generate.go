package mstack

import(
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openreef/s2mosaic/pkg/mtile"
)

// A Job is one footprint's worth of work: every acquisition covering
// one grid cell, to be reduced to one composite and graded once per
// requested style.
type Job struct {
	Footprint  string
	Collection *mtile.Collection
}

// A Result records the outcome of one unit of work. Failures are
// bulkheaded per footprint and per style: a bad tile or style never
// aborts its siblings.
type Result struct {
	Footprint string
	Style     string
	Filename  string
	Err       error
}

type Batch struct {
	Config   Configuration
	Catalog  mtile.ProbabilityCatalog
	Jobs   []Job

	mu      sync.Mutex
	results []Result
}

func (b *Batch)record(r Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Err != nil {
		log.Printf("FAILED %s/%s: %v\n", r.Footprint, r.Style, r.Err)
	}
	b.results = append(b.results, r)
}

// Generate runs the whole batch. Footprints are independent and run
// across a bounded worker pool; within one footprint, per-tile
// correction parallelizes the same way, then the median reduction
// sees all tiles at once, then styles grade in parallel off the
// shared composite. Workers always return nil to the group: errors
// land in Results, not in the group, so one failure cannot cancel the
// rest of the batch.
func (b *Batch)Generate(ctx context.Context) []Result {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Config.Rendering.Workers)

	for _, job := range b.Jobs {
		job := job
		g.Go(func() error {
			b.runJob(ctx, job)
			return nil
		})
	}
	g.Wait()

	return b.results
}

func (b *Batch)runJob(ctx context.Context, job Job) {
	coll, err := b.filter(job.Collection)
	if err != nil {
		b.record(Result{Footprint: job.Footprint, Err: err})
		return
	}

	if b.Config.Rendering.MaxCloudPct > 0 {
		if coll, err = b.dropCloudy(ctx, coll); err != nil {
			b.record(Result{Footprint: job.Footprint, Err: err})
			return
		}
	}

	// Per-tile glint correction is a pure function of the tile; fan out.
	corrected := make([]*mtile.Tile, coll.Len())
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(b.Config.Rendering.Workers)
	for i, t := range coll.Tiles {
		i, t := i, t
		g.Go(func() error {
			t2, err := RemoveSunGlint(t, b.Config.Tuning)
			if err != nil {
				return err
			}
			corrected[i] = t2
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.record(Result{Footprint: job.Footprint, Err: err})
		return
	}

	stack := &mtile.Collection{Tiles: corrected}

	if b.Config.Rendering.DumpMasks {
		for _, t := range stack.Tiles {
			if prob, err := b.Catalog.CloudProbability(ctx, t.ID); err == nil {
				DumpMasks(t, prob, b.Config.Tuning, b.Config.Rendering.OutputDir)
			}
		}
	}

	applyMask := stack.Len() > 1
	composite, err := Composite(ctx, stack, applyMask, b.Catalog, b.Config.Tuning)
	if err != nil {
		b.record(Result{Footprint: job.Footprint, Err: err})
		return
	}

	// Styles are independent reads of the composite.
	sg, _ := errgroup.WithContext(ctx)
	sg.SetLimit(b.Config.Rendering.Workers)
	for _, style := range b.Config.Rendering.Styles {
		style := style
		sg.Go(func() error {
			b.runStyle(job, stack, composite, style)
			return nil
		})
	}
	sg.Wait()
}

func (b *Batch)runStyle(job Job, stack *mtile.Collection, composite *mtile.Tile, style string) {
	res := Result{Footprint: job.Footprint, Style: style}

	graded, err := Grade(composite, style, b.Config.Rendering.IncludeMask, b.Config)
	if err != nil {
		res.Err = err
		b.record(res)
		return
	}

	name, err := OutputName(b.Config.Rendering.Basename, style, stack.IDs())
	if err != nil {
		res.Err = err
		b.record(res)
		return
	}

	base := filepath.Join(b.Config.Rendering.OutputDir, name)
	if err := graded.WriteGraded(base, b.Config.Rendering.Format); err != nil {
		res.Err = err
		b.record(res)
		return
	}

	res.Filename = base + "." + b.Config.Rendering.Format
	log.Printf("wrote %s\n", res.Filename)
	b.record(res)
}

// filter applies the external catalog-style filters the CLI passes
// through: date range and minimum image count.
func (b *Batch)filter(coll *mtile.Collection) (*mtile.Collection, error) {
	from, to := time.Time{}, time.Time{}
	if s := b.Config.Rendering.DateFrom; s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, err
		}
		from = t
	}
	if s := b.Config.Rendering.DateTo; s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, err
		}
		to = t
	}

	out := mtile.NewCollection()
	for _, t := range coll.Tiles {
		if !from.IsZero() && t.AcquiredAt.Before(from) {
			continue
		}
		if !to.IsZero() && t.AcquiredAt.After(to) {
			continue
		}
		out.Add(t)
	}

	if out.Len() == 0 || out.Len() < b.Config.Rendering.MinImages {
		return nil, ErrNoImages
	}
	return out, nil
}

// dropCloudy excludes acquisitions whose scene-wide mean cloud
// probability exceeds the configured ceiling, the same filter the
// external catalog applies on its cloud-cover metadata. Tiles with no
// probability layer are kept; the compositor reports those properly.
func (b *Batch)dropCloudy(ctx context.Context, coll *mtile.Collection) (*mtile.Collection, error) {
	out := mtile.NewCollection()
	for _, t := range coll.Tiles {
		prob, err := b.Catalog.CloudProbability(ctx, t.ID)
		if err != nil {
			out.Add(t)
			continue
		}
		sum := 0.0
		for y := 0; y < prob.Dy(); y++ {
			for x := 0; x < prob.Dx(); x++ {
				sum += prob.Get(x, y)
			}
		}
		mean := sum / float64(prob.Dx()*prob.Dy())
		if mean > b.Config.Rendering.MaxCloudPct {
			log.Printf("tile %s: %.1f%% mean cloud, over the %.1f%% ceiling, dropped\n",
				t.ID, mean, b.Config.Rendering.MaxCloudPct)
			continue
		}
		out.Add(t)
	}
	if out.Len() == 0 || out.Len() < b.Config.Rendering.MinImages {
		return nil, ErrNoImages
	}
	return out, nil
}
