// Package media wraps the external ffmpeg/ffprobe tools for video probing
// and frame extraction, plus small image helpers.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// VideoInfo holds the stream properties the pipeline records.
type VideoInfo struct {
	Width           int
	Height          int
	FrameCount      int
	DurationSeconds float64
	FPS             float64
}

// Probe runs ffprobe and extracts the video stream properties.
func Probe(ctx context.Context, path string) (*VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probeData struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			NbFrames   string `json:"nb_frames"`
			RFrameRate string `json:"r_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &probeData); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if probeData.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probeData.Format.Duration, 64); err == nil {
			info.DurationSeconds = d
		}
	}
	for _, stream := range probeData.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.Width = stream.Width
		info.Height = stream.Height
		if stream.NbFrames != "" {
			if n, err := strconv.Atoi(stream.NbFrames); err == nil {
				info.FrameCount = n
			}
		}
		info.FPS = parseFrameRate(stream.RFrameRate)
		break
	}

	// mkv containers often omit nb_frames; estimate from duration.
	if info.FrameCount == 0 && info.FPS > 0 {
		info.FrameCount = int(info.DurationSeconds * info.FPS)
	}
	return info, nil
}

func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// ExtractFrame pulls one JPEG frame at the given offset, streamed over
// stdout so nothing touches disk.
func ExtractFrame(ctx context.Context, path string, offsetSeconds float64) ([]byte, error) {
	args := []string{
		"-ss", fmt.Sprintf("%.2f", offsetSeconds),
		"-i", path,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %s: %w", stderr.String(), err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at %.2fs", offsetSeconds)
	}
	return stdout.Bytes(), nil
}

// ThumbnailOffset picks the representative-frame position: 5 s in, or the
// midpoint for clips shorter than that.
func ThumbnailOffset(durationSeconds float64) float64 {
	if durationSeconds >= 5 {
		return 5
	}
	return durationSeconds / 2
}

// ImageDims decodes just the JPEG header for width and height.
func ImageDims(data []byte) (int, int, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// WriteThumbnail atomically writes a thumbnail as <stem>.jpg under root
// (temp file + rename) and returns the absolute path.
func WriteThumbnail(root, stem string, data []byte) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}

	final := filepath.Join(root, stem+".jpg")
	tmp, err := os.CreateTemp(root, stem+".*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	abs, err := filepath.Abs(final)
	if err != nil {
		return final, nil
	}
	return abs, nil
}
