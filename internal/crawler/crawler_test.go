package crawler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrycam/sentrycam/internal/data"
	"github.com/sentrycam/sentrycam/internal/describe"
	"github.com/sentrycam/sentrycam/internal/foscam"
	"github.com/sentrycam/sentrycam/internal/pipeline"
)

type recordingStore struct {
	mu       sync.Mutex
	existing map[string]bool
	order    []string
	nextID   int64
}

func (s *recordingStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[path], nil
}

func (s *recordingStore) Commit(_ context.Context, det *data.Detection, _ *foscam.Info, _ []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	det.ID = s.nextID
	s.order = append(s.order, det.Filepath)
	return s.nextID, nil
}

type fixedDescriber struct{}

func (fixedDescriber) DescribeImage(context.Context, []byte) (*describe.ImageAnalysis, error) {
	return &describe.ImageAnalysis{
		Aspects: map[string]string{describe.AspectGeneral: "empty porch"},
		Caption: "empty porch",
	}, nil
}

func (fixedDescriber) DescribeVideo(context.Context, string) (*describe.VideoAnalysis, error) {
	return &describe.VideoAnalysis{DurationSeconds: 10}, nil
}

func tinyJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{100, 100, 100, 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func seedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	payload := tinyJPEG(t)

	files := []string{
		"backyard/R2C_AA11BB22CC33/snap/MDAlarm_20240115-153045.jpg",
		"backyard/R2C_AA11BB22CC33/snap/MDAlarm_20240115-090000.jpg",
		"frontdoor/FoscamCamera_00626EFE4FA3/snap/HMDAlarm_20240116-120000.jpg",
		"frontdoor/FoscamCamera_00626EFE4FA3/snap/weird_name.jpg",
	}
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, payload, 0o644))
	}

	// Non-camera directory and loose file are ignored entirely.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "frontdoor", "not_a_camera", "snap"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("x"), 0o644))

	return root
}

func newCrawler(root string, store pipeline.Store) *Crawler {
	return &Crawler{
		Root: root,
		Proc: &pipeline.Processor{
			Store:     store,
			Describer: fixedDescriber{},
			Emitter:   pipeline.LogEmitter{},
		},
		Workers: 1,
	}
}

func TestRunSweepsInDeterministicOrder(t *testing.T) {
	root := seedTree(t)
	store := &recordingStore{existing: map[string]bool{}}

	report, err := newCrawler(root, store).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Seen)
	assert.Equal(t, 3, report.ProcessedOK)
	assert.Equal(t, 1, report.SkippedUnrecognized)
	assert.Zero(t, report.Failed)

	// Locations ascend; within a camera, oldest timestamp first, then the
	// unparseable filename last.
	require.Len(t, store.order, 3)
	assert.Contains(t, store.order[0], "MDAlarm_20240115-090000.jpg")
	assert.Contains(t, store.order[1], "MDAlarm_20240115-153045.jpg")
	assert.Contains(t, store.order[2], "HMDAlarm_20240116-120000.jpg")
}

func TestRunInterleavesSnapAndRecordByTimestamp(t *testing.T) {
	root := t.TempDir()
	snap := filepath.Join(root, "frontdoor", "FoscamCamera_00626EFE4FA3", "snap", "MDAlarm_20240115-120000.jpg")
	rec := filepath.Join(root, "frontdoor", "FoscamCamera_00626EFE4FA3", "record", "MDalarm_20240115_090000.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(snap), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(rec), 0o755))
	require.NoError(t, os.WriteFile(snap, tinyJPEG(t), 0o644))
	require.NoError(t, os.WriteFile(rec, []byte("mkv"), 0o644))

	store := &recordingStore{existing: map[string]bool{}}
	report, err := newCrawler(root, store).Run(context.Background(), Options{})
	require.NoError(t, err)

	// The morning recording precedes the noon snapshot even though snap/
	// is enumerated before record/.
	assert.Equal(t, 2, report.ProcessedOK)
	require.Len(t, store.order, 2)
	assert.Contains(t, store.order[0], "MDalarm_20240115_090000.mkv")
	assert.Contains(t, store.order[1], "MDAlarm_20240115-120000.jpg")
}

func TestRunSkipsKnownFiles(t *testing.T) {
	root := seedTree(t)
	known := filepath.Join(root, "backyard/R2C_AA11BB22CC33/snap/MDAlarm_20240115-090000.jpg")
	store := &recordingStore{existing: map[string]bool{known: true}}

	report, err := newCrawler(root, store).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedKnown)
	assert.Equal(t, 2, report.ProcessedOK)
}

func TestRunHonorsLimit(t *testing.T) {
	root := seedTree(t)
	store := &recordingStore{existing: map[string]bool{}}

	report, err := newCrawler(root, store).Run(context.Background(), Options{Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Seen)
	assert.Equal(t, 2, report.ProcessedOK)
}

func TestRunHonorsCameraFilter(t *testing.T) {
	root := seedTree(t)
	store := &recordingStore{existing: map[string]bool{}}

	report, err := newCrawler(root, store).Run(context.Background(), Options{
		Cameras: []string{"backyard/R2C_AA11BB22CC33"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Seen)
	assert.Equal(t, 2, report.ProcessedOK)
}

func TestRunHonorsKindFilter(t *testing.T) {
	root := seedTree(t)

	// A record-side artifact that would fail probing; restricting to snap
	// must keep it out of the sweep.
	vid := filepath.Join(root, "backyard/R2C_AA11BB22CC33/record/MDalarm_20240115_153045.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(vid), 0o755))
	require.NoError(t, os.WriteFile(vid, []byte("x"), 0o644))

	store := &recordingStore{existing: map[string]bool{}}
	report, err := newCrawler(root, store).Run(context.Background(), Options{Kinds: []string{foscam.KindSnap}})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Seen)
	for _, p := range store.order {
		assert.NotContains(t, p, ".mkv")
	}
}

func TestRunEmptyRootFails(t *testing.T) {
	store := &recordingStore{existing: map[string]bool{}}
	_, err := newCrawler(filepath.Join(t.TempDir(), "missing"), store).Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestReportElapsed(t *testing.T) {
	root := seedTree(t)
	store := &recordingStore{existing: map[string]bool{}}

	report, err := newCrawler(root, store).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Greater(t, report.Elapsed, time.Duration(0))
}
