// Package describe provides the vision-language capability: turning an image
// into a structured multi-aspect description and a video into a timeline of
// scene changes plus a representative thumbnail. The underlying model is
// opaque behind the Describer interface; the pipeline injects either the
// remote vision-service client or the deterministic heuristic fallback.
package describe

import (
	"context"
	"errors"
	"fmt"
)

// Aspect names every image analysis must populate.
const (
	AspectGeneral     = "general"
	AspectSecurity    = "security"
	AspectObjects     = "objects"
	AspectActivities  = "activities"
	AspectEnvironment = "environment"
)

// ImageAnalysis is the raw describer output for one still image.
type ImageAnalysis struct {
	Aspects    map[string]string `json:"aspects"`
	Caption    string            `json:"caption"`
	Confidence float64           `json:"confidence"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
}

// TimelineEvent is one significant scene change within a video.
type TimelineEvent struct {
	TimestampSeconds float64  `json:"timestamp_seconds"`
	TimeFormatted    string   `json:"time_formatted"`
	EventType        string   `json:"event_type"`
	Description      string   `json:"description"`
	Alerts           []string `json:"alerts"`
	Confidence       float64  `json:"confidence"`
}

// VideoAnalysis is the raw describer output for one clip.
type VideoAnalysis struct {
	Timeline        []TimelineEvent `json:"timeline"`
	Caption         string          `json:"caption"`
	Confidence      float64         `json:"confidence"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	FrameCount      int             `json:"frame_count"`
	DurationSeconds float64         `json:"duration_seconds"`

	// ThumbnailJPEG is the representative frame, nil when extraction failed.
	ThumbnailJPEG []byte `json:"-"`
}

// Describer is the capability contract the processor depends on.
type Describer interface {
	DescribeImage(ctx context.Context, data []byte) (*ImageAnalysis, error)
	DescribeVideo(ctx context.Context, path string) (*VideoAnalysis, error)
}

// ErrTransient marks failures worth one retry (timeouts, service overload).
// Everything else is treated as permanent and the artifact is committed as
// seen-but-unanalyzable.
var ErrTransient = errors.New("transient describer failure")

// Transient wraps err so IsTransient reports true.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient classifies a describer error for the retry policy. Context
// deadline expiry counts: a stuck model call may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
