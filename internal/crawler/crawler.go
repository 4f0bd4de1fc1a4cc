// Package crawler performs the batch backfill sweep: walk the camera upload
// tree in deterministic order and run every artifact through the pipeline.
package crawler

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sentrycam/sentrycam/internal/foscam"
	"github.com/sentrycam/sentrycam/internal/pipeline"
)

// Options narrow a sweep.
type Options struct {
	// Limit stops after this many files (0 = no limit).
	Limit int
	// Kinds restricts to "snap" and/or "record" (empty = both).
	Kinds []string
	// Cameras restricts to "location" or "location/device" entries.
	Cameras []string
}

// Report summarizes one sweep.
type Report struct {
	Seen                int
	ProcessedOK         int
	Unanalyzable        int
	SkippedKnown        int
	SkippedUnrecognized int
	Failed              int

	FailureSamples []string
	Elapsed        time.Duration
}

const maxFailureSamples = 10

// Crawler walks the upload tree and feeds the processor.
type Crawler struct {
	Root    string
	Proc    *pipeline.Processor
	Workers int
}

type camera struct {
	location string
	device   string
}

type candidate struct {
	path string
	name string
	ts   time.Time
	ok   bool
}

// Run sweeps the tree. Enumeration order is stable: cameras by location then
// device name, files oldest first, unparseable filenames last by name.
func (c *Crawler) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()

	cameras, err := c.discoverCameras(opts.Cameras)
	if err != nil {
		return nil, err
	}
	log.Printf("[Crawler] discovered %d camera directories under %s", len(cameras), c.Root)

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []string{foscam.KindSnap, foscam.KindRecord}
	}

	var paths []string
	for _, cam := range cameras {
		// snap and record candidates merge into one timestamp order per
		// camera; a morning recording sorts before an afternoon snapshot.
		var cands []candidate
		for _, kind := range kinds {
			files, err := c.listFiles(cam, kind)
			if err != nil {
				log.Printf("[Crawler] Warning: listing %s/%s/%s: %v", cam.location, cam.device, kind, err)
				continue
			}
			cands = append(cands, files...)
		}
		sortCandidates(cands)
		for _, f := range cands {
			paths = append(paths, f.path)
		}
	}
	if opts.Limit > 0 && len(paths) > opts.Limit {
		paths = paths[:opts.Limit]
	}

	report := &Report{Seen: len(paths)}

	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		done  int
		queue = make(chan string)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				outcome, _ := c.Proc.Process(ctx, pipeline.Item{Path: path, Source: "crawler"})

				mu.Lock()
				report.count(outcome, path)
				done++
				if done%10 == 0 {
					log.Printf("[Crawler] progress: %d/%d files", done, report.Seen)
				}
				mu.Unlock()
			}
		}()
	}

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		queue <- path
	}
	close(queue)
	wg.Wait()

	report.Elapsed = time.Since(start)
	log.Printf("[Crawler] sweep complete: %d seen, %d ok, %d unanalyzable, %d known, %d unrecognized, %d failed in %s",
		report.Seen, report.ProcessedOK, report.Unanalyzable, report.SkippedKnown,
		report.SkippedUnrecognized, report.Failed, report.Elapsed.Round(time.Millisecond))

	return report, ctx.Err()
}

func (r *Report) count(outcome, path string) {
	switch outcome {
	case pipeline.OutcomeIngested:
		r.ProcessedOK++
	case pipeline.OutcomeIngestedUnanalyzable:
		r.Unanalyzable++
	case pipeline.OutcomeSkippedKnown:
		r.SkippedKnown++
	case pipeline.OutcomeSkippedUnrecognized:
		r.SkippedUnrecognized++
	default:
		r.Failed++
		if len(r.FailureSamples) < maxFailureSamples {
			r.FailureSamples = append(r.FailureSamples, path)
		}
	}
}

// discoverCameras finds location/device directories whose device name carries
// a recognized camera prefix.
func (c *Crawler) discoverCameras(filter []string) ([]camera, error) {
	locations, err := os.ReadDir(c.Root)
	if err != nil {
		return nil, err
	}

	var out []camera
	for _, loc := range locations {
		if !loc.IsDir() {
			continue
		}

		devices, err := os.ReadDir(filepath.Join(c.Root, loc.Name()))
		if err != nil {
			log.Printf("[Crawler] Warning: reading %s: %v", loc.Name(), err)
			continue
		}
		for _, dev := range devices {
			if !dev.IsDir() || !foscam.IsCameraDevice(dev.Name()) {
				continue
			}
			cam := camera{location: loc.Name(), device: dev.Name()}
			if matchesFilter(cam, filter) {
				out = append(out, cam)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].location != out[j].location {
			return out[i].location < out[j].location
		}
		return out[i].device < out[j].device
	})
	return out, nil
}

func matchesFilter(cam camera, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == cam.location || f == cam.location+"/"+cam.device {
			return true
		}
	}
	return false
}

// listFiles enumerates one kind directory without ordering; the caller sorts
// the merged snap and record candidates together.
func (c *Crawler) listFiles(cam camera, kind string) ([]candidate, error) {
	dir := filepath.Join(c.Root, cam.location, cam.device, kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []candidate
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		cand := candidate{path: filepath.Join(dir, e.Name()), name: e.Name()}
		if info, err := foscam.ParseFilename(e.Name(), kind); err == nil && info.TimestampOK {
			cand.ts = info.Timestamp
			cand.ok = true
		}
		files = append(files, cand)
	}
	return files, nil
}

// sortCandidates orders by parsed timestamp ascending, unparseable names
// last by name.
func sortCandidates(files []candidate) {
	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.ok && b.ok:
			if !a.ts.Equal(b.ts) {
				return a.ts.Before(b.ts)
			}
			return a.name < b.name
		case a.ok:
			return true
		case b.ok:
			return false
		default:
			return a.name < b.name
		}
	})
}
