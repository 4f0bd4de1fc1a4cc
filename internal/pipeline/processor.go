package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sentrycam/sentrycam/internal/alerts"
	"github.com/sentrycam/sentrycam/internal/data"
	"github.com/sentrycam/sentrycam/internal/describe"
	"github.com/sentrycam/sentrycam/internal/foscam"
	"github.com/sentrycam/sentrycam/internal/media"
	"github.com/sentrycam/sentrycam/internal/metrics"
)

// Pause before the single retry of a transient describe failure.
const describeRetryDelay = 500 * time.Millisecond

// Item is one artifact path handed to the pipeline.
type Item struct {
	Path   string
	Source string // "crawler" or "watcher"

	// WaitReady is set by the watcher: the file may still be uploading.
	WaitReady bool

	requeued bool
}

// Store is the transactional surface the processor persists through.
type Store interface {
	Exists(ctx context.Context, filepath string) (bool, error)
	Commit(ctx context.Context, det *data.Detection, info *foscam.Info, alertKinds []string) (int64, error)
}

// SQLStore commits one detection per transaction against Postgres.
type SQLStore struct {
	DB *sql.DB
}

func (s *SQLStore) Exists(ctx context.Context, filepath string) (bool, error) {
	return data.DetectionModel{DB: s.DB}.ExistsByFilepath(ctx, filepath)
}

// Commit persists the camera upsert, the detection row, its alert links and
// the camera counters atomically. A unique violation on filepath means a
// concurrent producer won the race; the raw error is returned so the caller
// can detect that with data.IsUniqueViolation.
func (s *SQLStore) Commit(ctx context.Context, det *data.Detection, info *foscam.Info, alertKinds []string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cameras := data.CameraModel{DB: tx}
	detections := data.DetectionModel{DB: tx}

	cam, err := cameras.GetOrCreate(ctx, info.Location, info.DeviceName, info.DeviceType)
	if err != nil {
		return 0, fmt.Errorf("upsert camera: %w", err)
	}

	det.CameraID = cam.ID
	if err := detections.Insert(ctx, det); err != nil {
		return 0, err
	}

	if len(alertKinds) > 0 {
		if err := detections.ReplaceAlerts(ctx, det.ID, alertKinds, det.Confidence); err != nil {
			return 0, fmt.Errorf("link alerts: %w", err)
		}
	}

	if err := cameras.BumpCounters(ctx, cam.ID, 1, len(alertKinds)); err != nil {
		return 0, fmt.Errorf("bump counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return det.ID, nil
}

// Processor turns one artifact path into a committed detection row. Safe for
// concurrent use; the describer mutex serializes model calls across workers.
type Processor struct {
	Store     Store
	Describer describe.Describer
	Emitter   Emitter
	Recent    *RecentPaths

	ThumbnailRoot string

	// describeMu keeps exactly one vision call in flight. The model is the
	// bottleneck either way; serializing avoids GPU memory thrash.
	describeMu sync.Mutex
}

// Process runs one artifact to a terminal outcome, returned as the first
// value. The second asks the queue for a single re-queue (file not yet
// stable on disk).
func (p *Processor) Process(ctx context.Context, item Item) (string, bool) {
	info, err := foscam.ParsePath(item.Path)
	if err != nil {
		p.emit(newEvent(item.Source, item.Path, OutcomeSkippedUnrecognized))
		metrics.RecordOutcome("unknown", OutcomeSkippedUnrecognized)
		return OutcomeSkippedUnrecognized, false
	}

	if p.Recent != nil && p.Recent.Seen(item.Path) {
		p.emit(newEvent(item.Source, item.Path, OutcomeSkippedKnown))
		metrics.RecordOutcome(info.MediaType, OutcomeSkippedKnown)
		return OutcomeSkippedKnown, false
	}

	known, err := p.Store.Exists(ctx, item.Path)
	if err != nil {
		p.fail(item, info, fmt.Errorf("existence check: %w", err))
		return OutcomeFailed, false
	}
	if known {
		p.emit(newEvent(item.Source, item.Path, OutcomeSkippedKnown))
		metrics.RecordOutcome(info.MediaType, OutcomeSkippedKnown)
		return OutcomeSkippedKnown, false
	}

	if item.WaitReady && !waitStable(ctx, item.Path) {
		if !item.requeued {
			if p.Recent != nil {
				p.Recent.Forget(item.Path)
			}
			log.Printf("[Pipeline] %s not stable yet, re-queueing once", item.Path)
			return "", true
		}
		p.fail(item, info, fmt.Errorf("file never stabilized within %s", readyMaxWait))
		return OutcomeFailed, false
	}

	start := time.Now()
	det, kinds, err := p.analyze(ctx, item.Path, info)
	if err != nil && describe.IsTransient(err) {
		log.Printf("[Pipeline] Warning: transient describe failure for %s, retrying: %v", item.Path, err)
		select {
		case <-ctx.Done():
		case <-time.After(describeRetryDelay):
		}
		det, kinds, err = p.analyze(ctx, item.Path, info)
	}
	analysisFailed := err != nil
	if analysisFailed {
		// Permanent analysis failure. Commit the row anyway so the file is
		// never re-analyzed; the empty description and zero confidence mark
		// it as seen but unanalyzable.
		log.Printf("[Pipeline] [ERROR] describe failed for %s: %v", item.Path, err)
		det = p.baseDetection(item.Path, info)
		kinds = nil
	}
	det.ProcessingTimeSeconds = time.Since(start).Seconds()
	metrics.RecordDescribeLatency(info.MediaType, det.ProcessingTimeSeconds)

	id, commitErr := p.Store.Commit(ctx, det, info, kinds)
	if commitErr != nil {
		if data.IsUniqueViolation(commitErr) {
			p.emit(newEvent(item.Source, item.Path, OutcomeSkippedKnown))
			metrics.RecordOutcome(info.MediaType, OutcomeSkippedKnown)
			return OutcomeSkippedKnown, false
		}
		p.fail(item, info, commitErr)
		return OutcomeFailed, false
	}

	outcome := OutcomeIngested
	if analysisFailed {
		outcome = OutcomeIngestedUnanalyzable
	}

	ev := newEvent(item.Source, item.Path, outcome)
	ev.Location = info.Location
	ev.Device = info.DeviceName
	ev.Kind = info.Kind
	ev.DetectionID = id
	ev.Alerts = kinds
	p.emit(ev)

	metrics.RecordOutcome(info.MediaType, outcome)
	metrics.RecordAlerts(kinds)
	return outcome, false
}

func (p *Processor) analyze(ctx context.Context, path string, info *foscam.Info) (*data.Detection, []string, error) {
	det := p.baseDetection(path, info)

	if info.MediaType == foscam.MediaImage {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read image: %w", err)
		}

		p.describeMu.Lock()
		analysis, err := p.Describer.DescribeImage(ctx, raw)
		p.describeMu.Unlock()
		if err != nil {
			return nil, nil, err
		}

		kinds := alerts.Derive(describe.AllAspectText(analysis.Aspects))
		det.Description = describe.ComposeImageDescription(analysis.Aspects, kinds)
		det.Confidence = describe.Confidence(det.Description, analysis.Aspects)
		det.Width = analysis.Width
		det.Height = analysis.Height
		det.AnalysisStructured, _ = json.Marshal(analysis)
		p.applyAlerts(det, kinds)
		return det, kinds, nil
	}

	p.describeMu.Lock()
	analysis, err := p.Describer.DescribeVideo(ctx, path)
	p.describeMu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	kindSet := map[string]bool{}
	var kinds []string
	for i := range analysis.Timeline {
		ev := &analysis.Timeline[i]
		ev.Alerts = alerts.Derive(ev.Description)
		for _, k := range ev.Alerts {
			if !kindSet[k] {
				kindSet[k] = true
				kinds = append(kinds, k)
			}
		}
	}

	det.Description = describe.ComposeVideoDescription(analysis.Timeline, analysis.DurationSeconds, kinds)
	det.Confidence = analysis.Confidence
	det.Width = analysis.Width
	det.Height = analysis.Height
	if analysis.FrameCount > 0 {
		det.FrameCount = &analysis.FrameCount
	}
	if analysis.DurationSeconds > 0 {
		det.DurationSeconds = &analysis.DurationSeconds
	}
	det.AnalysisStructured, _ = json.Marshal(analysis)
	p.applyAlerts(det, kinds)

	if len(analysis.ThumbnailJPEG) > 0 && p.ThumbnailRoot != "" {
		stem := strings.TrimSuffix(info.Filename, ".mkv")
		thumbPath, err := media.WriteThumbnail(p.ThumbnailRoot, stem, analysis.ThumbnailJPEG)
		if err != nil {
			log.Printf("[Pipeline] Warning: thumbnail write failed for %s: %v", path, err)
		} else {
			det.ThumbnailPath = &thumbPath
		}
	}

	return det, kinds, nil
}

func (p *Processor) baseDetection(path string, info *foscam.Info) *data.Detection {
	det := &data.Detection{
		Filename:   info.Filename,
		Filepath:   path,
		MediaType:  info.MediaType,
		MotionType: info.MotionType,
		Processed:  true,
	}
	if info.TimestampOK {
		ts := info.Timestamp
		det.FileTimestamp = &ts
	}
	return det
}

func (p *Processor) applyAlerts(det *data.Detection, kinds []string) {
	f := alerts.FlagsFor(kinds)
	det.HasPerson = f.HasPerson
	det.HasVehicle = f.HasVehicle
	det.HasPackage = f.HasPackage
	det.HasUnusualActivity = f.HasUnusualActivity
	det.IsNightTime = f.IsNightTime
	det.AlertCount = len(kinds)
}

func (p *Processor) fail(item Item, info *foscam.Info, err error) {
	if p.Recent != nil {
		p.Recent.Forget(item.Path)
	}

	ev := newEvent(item.Source, item.Path, OutcomeFailed)
	ev.Error = err.Error()
	if info != nil {
		ev.Location = info.Location
		ev.Device = info.DeviceName
		ev.Kind = info.Kind
	}
	p.emit(ev)

	mediaType := "unknown"
	if info != nil {
		mediaType = info.MediaType
	}
	metrics.RecordOutcome(mediaType, OutcomeFailed)
}

func (p *Processor) emit(ev *Event) {
	if p.Emitter != nil {
		p.Emitter.Emit(ev)
	}
}
