// Package api exposes the read-side HTTP/JSON surface: detection listings,
// camera inventory, stats, heatmaps, thumbnails and raw media.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sentrycam/sentrycam/internal/data"
	"github.com/sentrycam/sentrycam/internal/metrics"
)

// DetectionStore is the detection read surface the handlers depend on.
type DetectionStore interface {
	GetByID(ctx context.Context, id int64) (*data.Detection, error)
	List(ctx context.Context, f data.ListFilter) ([]*data.DetectionWithCamera, int, error)
	CountStats(ctx context.Context, cameraIDs []int64, now time.Time) (*data.Stats, error)
	HeatmapDaily(ctx context.Context, days int, perCamera bool, cameraIDs []int64, now time.Time) ([]*data.HeatmapBucket, error)
	HeatmapHourly(ctx context.Context, perCamera bool, cameraIDs []int64, now time.Time) ([]*data.HeatmapBucket, error)
}

// CameraStore is the camera read surface.
type CameraStore interface {
	GetByID(ctx context.Context, id int64) (*data.Camera, error)
	List(ctx context.Context) ([]*data.Camera, error)
}

// AlertTypeStore reads the alert catalog and per-detection links.
type AlertTypeStore interface {
	List(ctx context.Context) ([]*data.AlertType, error)
	AlertsFor(ctx context.Context, detectionID int64) ([]string, error)
}

// Server bundles the handler dependencies.
type Server struct {
	Detections DetectionStore
	Cameras    CameraStore
	AlertTypes AlertTypeStore

	MediaRoot     string
	ThumbnailRoot string

	// Cache is optional; nil disables response caching.
	Cache *Cache

	// Now is injectable for window-boundary tests.
	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/detections", s.ListDetections)
		r.Get("/detections/{id}", s.GetDetection)
		r.Get("/detections/{id}/alerts", s.GetDetectionAlerts)
		r.Get("/detections/{id}/thumbnail", s.GetDetectionThumbnail)

		r.Get("/cameras", s.ListCameras)
		r.Get("/cameras/{id}", s.GetCamera)

		r.Get("/alert-types", s.ListAlertTypes)

		r.Get("/stats", s.GetStats)
		r.Get("/heatmap/daily", s.GetHeatmapDaily)
		r.Get("/heatmap/hourly", s.GetHeatmapHourly)
	})

	if s.MediaRoot != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(s.MediaRoot))))
	}
	if s.ThumbnailRoot != "" {
		r.Handle("/thumbnails/*", http.StripPrefix("/thumbnails/", http.FileServer(http.Dir(s.ThumbnailRoot))))
	}

	return r
}

// GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// queryCameraIDs accepts repeated camera_id params and comma-separated lists.
func queryCameraIDs(r *http.Request) ([]int64, bool) {
	var out []int64
	for _, raw := range r.URL.Query()["camera_id"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, false
			}
			out = append(out, id)
		}
	}
	return out, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, name string) bool {
	v := strings.ToLower(r.URL.Query().Get(name))
	return v == "1" || v == "true" || v == "yes"
}

// queryTime parses RFC 3339 first, then bare dates.
func queryTime(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
		return &t, true
	}
	return nil, false
}
