package api

import (
	"errors"
	"net/http"

	"github.com/sentrycam/sentrycam/internal/data"
)

// GET /api/v1/cameras
func (s *Server) ListCameras(w http.ResponseWriter, r *http.Request) {
	cams, err := s.Cameras.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cams == nil {
		cams = []*data.Camera{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"cameras": cams, "total": len(cams)})
}

// GET /api/v1/cameras/{id}
func (s *Server) GetCamera(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	cam, err := s.Cameras.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Camera not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cam)
}

// GET /api/v1/alert-types
func (s *Server) ListAlertTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.AlertTypes.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if types == nil {
		types = []*data.AlertType{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"alert_types": types})
}
