package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/sentrycam/sentrycam/internal/api"
	"github.com/sentrycam/sentrycam/internal/config"
	"github.com/sentrycam/sentrycam/internal/data"
	"github.com/sentrycam/sentrycam/internal/describe"
	"github.com/sentrycam/sentrycam/internal/pipeline"
	"github.com/sentrycam/sentrycam/internal/watcher"
)

func main() {
	configPath := flag.String("config", "config/default.yaml", "Path to config file")
	migrations := flag.String("migrations", "file://migrations", "Migration source URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("DB ping error: %v", err)
	}

	if err := migrateUp(db, *migrations); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	// Optional terminal-event broker.
	emitters := pipeline.MultiEmitter{pipeline.LogEmitter{}}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Printf("[Server] Warning: NATS connect failed, events log-only: %v", err)
		} else {
			defer nc.Close()
			emitters = append(emitters, pipeline.NewNATSEmitter(nc, cfg.NATSSubject, 3))
			log.Printf("[Server] publishing events to %s on %s", cfg.NATSSubject, cfg.NATSURL)
		}
	}

	var describer describe.Describer
	if cfg.VisionURL != "" {
		describer = describe.NewRemote(cfg.VisionURL, cfg.ImageTimeout(), cfg.VideoTimeout())
		log.Printf("[Server] vision service at %s", cfg.VisionURL)
	} else {
		describer = describe.NewHeuristic()
		log.Printf("[Server] no vision service configured, using heuristic describer")
	}

	proc := &pipeline.Processor{
		Store:         &pipeline.SQLStore{DB: db},
		Describer:     describer,
		Emitter:       emitters,
		Recent:        pipeline.NewRecentPaths(4096, 10*time.Minute),
		ThumbnailRoot: cfg.ThumbnailRoot,
	}
	queue := pipeline.NewQueue(cfg.QueueCapacity, cfg.WorkerCount, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := watcher.New(cfg.FoscamRoot, queue, cfg.RediscoveryInterval())
	go w.Run(ctx)

	// Optional response cache for the aggregate endpoints.
	var cache *api.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = api.NewCache(rdb, time.Duration(cfg.CacheTTLSec)*time.Second)
		log.Printf("[Server] response cache on %s", cfg.RedisAddr)
	}

	server := &api.Server{
		Detections:    data.DetectionModel{DB: db},
		Cameras:       data.CameraModel{DB: db},
		AlertTypes:    data.AlertTypeModel{DB: db},
		MediaRoot:     cfg.FoscamRoot,
		ThumbnailRoot: cfg.ThumbnailRoot,
		Cache:         cache,
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("[Server] listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("[Server] shutting down...")

	cancel()
	queue.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Warning: HTTP shutdown: %v", err)
	}
	log.Println("[Server] stopped")
}

func migrateUp(db *sql.DB, sourceURL string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
