// Package watcher streams freshly uploaded artifacts into the pipeline via
// filesystem notifications, with periodic rediscovery as the safety net for
// directories created after startup and events lost during resubscribes.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sentrycam/sentrycam/internal/foscam"
	"github.com/sentrycam/sentrycam/internal/metrics"
	"github.com/sentrycam/sentrycam/internal/pipeline"
)

const (
	coalesceWindow = time.Second
	backoffMin     = time.Second
	backoffMax     = 30 * time.Second
)

// Enqueuer is the intake side of the pipeline queue. Enqueue blocks when the
// queue is full, which is the back-pressure the pipeline wants from producers.
type Enqueuer interface {
	Enqueue(ctx context.Context, item pipeline.Item) error
}

// Watcher subscribes to every snap/ and record/ directory under Root and
// forwards grammar-matching paths to the queue.
type Watcher struct {
	Root        string
	Queue       Enqueuer
	Rediscovery time.Duration

	recent *lru.Cache[string, time.Time]
}

func New(root string, queue Enqueuer, rediscovery time.Duration) *Watcher {
	if rediscovery <= 0 {
		rediscovery = 60 * time.Second
	}
	recent, _ := lru.New[string, time.Time](1024)
	return &Watcher{
		Root:        root,
		Queue:       queue,
		Rediscovery: rediscovery,
		recent:      recent,
	}
}

// Run blocks until ctx is cancelled. A dead fsnotify subscription is rebuilt
// with exponential backoff; rediscovery keeps working either way once the
// subscription is back.
func (w *Watcher) Run(ctx context.Context) {
	backoff := backoffMin
	for {
		if err := w.watch(ctx); err != nil {
			log.Printf("[Watcher] Warning: subscription lost (%v), retrying in %s", err, backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func (w *Watcher) watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if n := w.subscribe(fsw); n == 0 {
		log.Printf("[Watcher] Warning: no camera directories under %s yet", w.Root)
	}

	ticker := time.NewTicker(w.Rediscovery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.subscribe(fsw)
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// subscribe walks location/device/{snap,record} and adds any directory not
// yet watched. fsnotify tolerates re-adding, so no bookkeeping is needed.
// Returns the number of watched directories.
func (w *Watcher) subscribe(fsw *fsnotify.Watcher) int {
	added := 0
	locations, err := os.ReadDir(w.Root)
	if err != nil {
		log.Printf("[Watcher] Warning: reading %s: %v", w.Root, err)
		return 0
	}

	for _, loc := range locations {
		if !loc.IsDir() {
			continue
		}
		devices, err := os.ReadDir(filepath.Join(w.Root, loc.Name()))
		if err != nil {
			continue
		}
		for _, dev := range devices {
			if !dev.IsDir() || !foscam.IsCameraDevice(dev.Name()) {
				continue
			}
			for _, kind := range []string{foscam.KindSnap, foscam.KindRecord} {
				dir := filepath.Join(w.Root, loc.Name(), dev.Name(), kind)
				if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
					continue
				}
				if err := fsw.Add(dir); err != nil {
					log.Printf("[Watcher] Warning: watching %s: %v", dir, err)
					continue
				}
				added++
			}
		}
	}
	return added
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if _, err := foscam.ParsePath(event.Name); err != nil {
		return
	}

	// Create followed by a burst of Writes for the same upload collapses to
	// one enqueue per coalescing window.
	if last, ok := w.recent.Get(event.Name); ok && time.Since(last) < coalesceWindow {
		return
	}
	w.recent.Add(event.Name, time.Now())

	metrics.RecordWatcherEvent()
	item := pipeline.Item{
		Path:      event.Name,
		Source:    "watcher",
		WaitReady: true,
	}
	if err := w.Queue.Enqueue(ctx, item); err != nil {
		log.Printf("[Watcher] Warning: enqueue of %s aborted: %v", event.Name, err)
	}
}
