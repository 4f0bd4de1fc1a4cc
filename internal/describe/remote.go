package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sentrycam/sentrycam/internal/media"
)

// Remote talks to the GPU-resident vision inference service over HTTP.
// One long-lived client per process; call serialization is the pipeline's
// job, not ours.
type Remote struct {
	baseURL      string
	client       *http.Client
	imageTimeout time.Duration
	videoTimeout time.Duration
	sampleStep   float64
}

// NewRemote builds a client for the vision service at baseURL.
func NewRemote(baseURL string, imageTimeout, videoTimeout time.Duration) *Remote {
	return &Remote{
		baseURL:      baseURL,
		client:       &http.Client{},
		imageTimeout: imageTimeout,
		videoTimeout: videoTimeout,
		sampleStep:   2.0, // seconds between sampled frames
	}
}

type remoteAnalysisResponse struct {
	Aspects    map[string]string `json:"aspects"`
	Caption    string            `json:"caption"`
	Confidence float64           `json:"confidence"`
}

// DescribeImage posts the JPEG to the vision service and returns the aspect
// map. HTTP 5xx and timeouts are transient; 4xx means the payload itself is
// bad and will not improve on retry.
func (r *Remote) DescribeImage(ctx context.Context, data []byte) (*ImageAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, r.imageTimeout)
	defer cancel()

	analysis, err := r.describeFrame(ctx, data)
	if err != nil {
		return nil, err
	}

	if w, h, err := media.ImageDims(data); err == nil {
		analysis.Width = w
		analysis.Height = h
	}
	return analysis, nil
}

func (r *Remote) describeFrame(ctx context.Context, data []byte) (*ImageAnalysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/describe", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, Transient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, Transient(err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, Transient(fmt.Errorf("vision service %d: %s", resp.StatusCode, body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("vision service rejected frame: %d: %s", resp.StatusCode, body)
	}

	var parsed remoteAnalysisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}
	if parsed.Aspects == nil {
		parsed.Aspects = map[string]string{}
	}

	analysis := &ImageAnalysis{
		Aspects:    parsed.Aspects,
		Caption:    parsed.Caption,
		Confidence: parsed.Confidence,
	}
	if analysis.Caption == "" {
		analysis.Caption = parsed.Aspects[AspectGeneral]
	}
	if analysis.Confidence == 0 {
		analysis.Confidence = Confidence(analysis.Caption, parsed.Aspects)
	}
	return analysis, nil
}

// DescribeVideo probes the clip, describes sampled frames through the same
// inference endpoint, and assembles the timeline plus thumbnail.
func (r *Remote) DescribeVideo(ctx context.Context, path string) (*VideoAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, r.videoTimeout)
	defer cancel()

	return analyzeVideo(ctx, path, r.sampleStep, r.describeFrame)
}

// analyzeVideo is the shared video orchestration: probe, sample frames at a
// fixed step, keep frames whose description differs enough from the previous
// scene as timeline events, and extract the representative thumbnail.
func analyzeVideo(ctx context.Context, path string, sampleStep float64, frame func(context.Context, []byte) (*ImageAnalysis, error)) (*VideoAnalysis, error) {
	info, err := media.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	out := &VideoAnalysis{
		Width:           info.Width,
		Height:          info.Height,
		FrameCount:      info.FrameCount,
		DurationSeconds: info.DurationSeconds,
	}

	var prevScene string
	var confidences []float64
	for offset := 0.0; offset <= info.DurationSeconds; offset += sampleStep {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		jpeg, err := media.ExtractFrame(ctx, path, offset)
		if err != nil {
			log.Printf("Warning: frame extraction at %.1fs failed for %s: %v", offset, path, err)
			continue
		}

		analysis, err := frame(ctx, jpeg)
		if err != nil {
			return nil, err
		}

		scene := analysis.Caption
		if scene == "" {
			scene = analysis.Aspects[AspectGeneral]
		}
		if !significantChange(scene, prevScene) {
			continue
		}
		prevScene = scene

		out.Timeline = append(out.Timeline, TimelineEvent{
			TimestampSeconds: offset,
			TimeFormatted:    FormatTimestamp(offset),
			EventType:        classifyEvent(scene),
			Description:      scene,
			Confidence:       analysis.Confidence,
		})
		confidences = append(confidences, analysis.Confidence)

		if info.DurationSeconds == 0 {
			break
		}
	}

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		out.Confidence = sum / float64(len(confidences))
	}

	if thumb, err := media.ExtractFrame(ctx, path, media.ThumbnailOffset(info.DurationSeconds)); err == nil {
		out.ThumbnailJPEG = thumb
	} else {
		log.Printf("Warning: thumbnail extraction failed for %s: %v", path, err)
	}

	return out, nil
}

// significantChange decides whether a frame opens a new timeline event.
// First described frame always does; afterwards a cheap token-overlap test
// keeps near-identical consecutive scenes from spamming the timeline.
func significantChange(scene, prev string) bool {
	if scene == "" {
		return false
	}
	if prev == "" {
		return true
	}
	return tokenOverlap(scene, prev) < 0.8
}
