package api

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/sentrycam/sentrycam/internal/data"
)

const maxPerPage = 200

// GET /api/v1/detections
func (s *Server) ListDetections(w http.ResponseWriter, r *http.Request) {
	cameraIDs, ok := queryCameraIDs(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid camera_id")
		return
	}
	start, ok := queryTime(r.URL.Query().Get("start"))
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid start")
		return
	}
	end, ok := queryTime(r.URL.Query().Get("end"))
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid end")
		return
	}

	f := data.ListFilter{
		Page:       queryInt(r, "page", 1),
		PerPage:    queryInt(r, "per_page", 50),
		Start:      start,
		End:        end,
		CameraIDs:  cameraIDs,
		OnlyAlerts: queryBool(r, "alerts_only"),
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > maxPerPage {
		f.PerPage = 50
	}

	items, total, err := s.Detections.List(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*data.DetectionWithCamera{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"detections": items,
		"pagination": map[string]any{
			"page":        f.Page,
			"per_page":    f.PerPage,
			"total":       total,
			"total_pages": (total + f.PerPage - 1) / f.PerPage,
		},
	})
}

// GET /api/v1/detections/{id}
func (s *Server) GetDetection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	det, err := s.Detections.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Detection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, det)
}

// GET /api/v1/detections/{id}/alerts
func (s *Server) GetDetectionAlerts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	if _, err := s.Detections.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Detection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	kinds, err := s.AlertTypes.AlertsFor(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if kinds == nil {
		kinds = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"detection_id": id, "alerts": kinds})
}

// GET /api/v1/detections/{id}/thumbnail
//
// 404 covers all the sad paths: unknown detection, no thumbnail recorded,
// and a recorded path whose file has since vanished.
func (s *Server) GetDetectionThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	det, err := s.Detections.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Detection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if det.ThumbnailPath == nil {
		respondError(w, http.StatusNotFound, "No thumbnail for detection")
		return
	}
	if _, err := os.Stat(*det.ThumbnailPath); err != nil {
		log.Printf("[API] Warning: thumbnail for detection %d dangling at %s: %v", id, *det.ThumbnailPath, err)
		respondError(w, http.StatusNotFound, "Thumbnail missing on disk")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, *det.ThumbnailPath)
}
