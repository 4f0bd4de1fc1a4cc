package pipeline

import (
	"context"
	"os"
	"time"
)

const (
	readySampleInterval = 250 * time.Millisecond
	readyMaxWait        = 10 * time.Second
)

// waitStable waits for a freshly notified file to stop growing. The camera
// uploads over FTP, so the path exists before the bytes are all there. Stable
// means two consecutive size samples agree and are nonzero. Returns false
// when the cap expires first; the caller gets one re-queue before giving up.
func waitStable(ctx context.Context, path string) bool {
	deadline := time.Now().Add(readyMaxWait)

	var prev int64 = -1
	for time.Now().Before(deadline) {
		fi, err := os.Stat(path)
		if err != nil {
			return false
		}

		size := fi.Size()
		if size > 0 && size == prev {
			return true
		}
		prev = size

		select {
		case <-ctx.Done():
			return false
		case <-time.After(readySampleInterval):
		}
	}
	return false
}
