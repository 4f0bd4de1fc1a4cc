package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"

	"github.com/sentrycam/sentrycam/internal/config"
	"github.com/sentrycam/sentrycam/internal/crawler"
	"github.com/sentrycam/sentrycam/internal/data"
	"github.com/sentrycam/sentrycam/internal/describe"
	"github.com/sentrycam/sentrycam/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "config/default.yaml", "Path to config file")
	root := flag.String("root", "", "Override the upload root to sweep")
	limit := flag.Int("limit", 0, "Stop after this many files (0 = all)")
	cameras := flag.String("cameras", "", "Comma-separated location or location/device filters")
	kinds := flag.String("kinds", "", "Comma-separated artifact kinds: snap,record")
	workers := flag.Int("workers", 0, "Worker count override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}
	if *root == "" {
		*root = cfg.FoscamRoot
	}
	if *workers <= 0 {
		*workers = cfg.WorkerCount
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}

	emitters := pipeline.MultiEmitter{pipeline.LogEmitter{}}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Printf("[Crawler] Warning: NATS connect failed, events log-only: %v", err)
		} else {
			defer nc.Close()
			emitters = append(emitters, pipeline.NewNATSEmitter(nc, cfg.NATSSubject, 3))
		}
	}

	var describer describe.Describer
	if cfg.VisionURL != "" {
		describer = describe.NewRemote(cfg.VisionURL, cfg.ImageTimeout(), cfg.VideoTimeout())
	} else {
		describer = describe.NewHeuristic()
		log.Println("[Crawler] no vision service configured, using heuristic describer")
	}

	proc := &pipeline.Processor{
		Store:         &pipeline.SQLStore{DB: db},
		Describer:     describer,
		Emitter:       emitters,
		Recent:        pipeline.NewRecentPaths(4096, 10*time.Minute),
		ThumbnailRoot: cfg.ThumbnailRoot,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &crawler.Crawler{Root: *root, Proc: proc, Workers: *workers}
	report, err := c.Run(ctx, crawler.Options{
		Limit:   *limit,
		Kinds:   splitCSV(*kinds),
		Cameras: splitCSV(*cameras),
	})
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	// Fix any counter drift the sweep may have left behind.
	if _, err := (data.StatsModel{DB: db}).RecountCameras(ctx); err != nil {
		log.Printf("[Crawler] Warning: camera recount failed: %v", err)
	}
	if err := (data.StatsModel{DB: db}).RebuildProcessingStats(ctx); err != nil {
		log.Printf("[Crawler] Warning: processing stats rebuild failed: %v", err)
	}

	if report.Failed > 0 {
		for _, sample := range report.FailureSamples {
			log.Printf("[Crawler] failed: %s", sample)
		}
		os.Exit(1)
	}
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
