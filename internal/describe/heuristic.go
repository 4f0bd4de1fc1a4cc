package describe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
)

// Heuristic is the fallback describer used when no vision service is
// configured. It derives coarse aspects from image statistics (dimensions,
// average luminance) so the rest of the pipeline stays exercisable on
// machines without a GPU. Deterministic by design.
type Heuristic struct {
	sampleStep float64
}

func NewHeuristic() *Heuristic {
	return &Heuristic{sampleStep: 2.0}
}

func (h *Heuristic) DescribeImage(ctx context.Context, data []byte) (*ImageAnalysis, error) {
	return h.analyzeFrame(ctx, data)
}

func (h *Heuristic) DescribeVideo(ctx context.Context, path string) (*VideoAnalysis, error) {
	return analyzeVideo(ctx, path, h.sampleStep, h.analyzeFrame)
}

func (h *Heuristic) analyzeFrame(_ context.Context, data []byte) (*ImageAnalysis, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	setting := "daytime scene"
	if averageLuminance(img) < 60 {
		setting = "dark low light scene"
	}

	aspects := map[string]string{
		AspectGeneral:     fmt.Sprintf("static camera view, %dx%d", width, height),
		AspectSecurity:    "no analysis model loaded",
		AspectObjects:     "not classified",
		AspectActivities:  "no activities detected",
		AspectEnvironment: setting,
	}

	caption := aspects[AspectGeneral] + ", " + setting
	return &ImageAnalysis{
		Aspects:    aspects,
		Caption:    caption,
		Confidence: Confidence(caption, aspects),
		Width:      width,
		Height:     height,
	}, nil
}

// averageLuminance samples a coarse grid rather than every pixel.
func averageLuminance(img image.Image) float64 {
	bounds := img.Bounds()
	step := bounds.Dx() / 32
	if step < 1 {
		step = 1
	}

	var sum, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
