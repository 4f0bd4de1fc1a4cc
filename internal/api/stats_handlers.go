package api

import (
	"encoding/json"
	"net/http"
)

// GET /api/v1/stats
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	cameraIDs, ok := queryCameraIDs(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid camera_id")
		return
	}

	s.cached(w, r, func() (any, error) {
		return s.Detections.CountStats(r.Context(), cameraIDs, s.now())
	})
}

// GET /api/v1/heatmap/daily
func (s *Server) GetHeatmapDaily(w http.ResponseWriter, r *http.Request) {
	cameraIDs, ok := queryCameraIDs(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid camera_id")
		return
	}
	days := queryInt(r, "days", 30)
	if days < 1 || days > 365 {
		respondError(w, http.StatusBadRequest, "Invalid days")
		return
	}
	perCamera := queryBool(r, "per_camera")

	s.cached(w, r, func() (any, error) {
		buckets, err := s.Detections.HeatmapDaily(r.Context(), days, perCamera, cameraIDs, s.now())
		if err != nil {
			return nil, err
		}
		return map[string]any{"days": days, "buckets": buckets}, nil
	})
}

// GET /api/v1/heatmap/hourly
func (s *Server) GetHeatmapHourly(w http.ResponseWriter, r *http.Request) {
	cameraIDs, ok := queryCameraIDs(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid camera_id")
		return
	}
	perCamera := queryBool(r, "per_camera")

	s.cached(w, r, func() (any, error) {
		buckets, err := s.Detections.HeatmapHourly(r.Context(), perCamera, cameraIDs, s.now())
		if err != nil {
			return nil, err
		}
		return map[string]any{"buckets": buckets}, nil
	})
}

// cached serves the aggregate payload from Redis when fresh, keyed by the
// full request URI so every filter combination caches independently.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, load func() (any, error)) {
	key := "api:" + r.URL.RequestURI()

	if payload, ok := s.Cache.Get(r.Context(), key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
		return
	}

	result, err := load()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Cache.Set(r.Context(), key, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
