package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gsdesign/adapters/scenariofile"
	"gsdesign/app"
	"gsdesign/domain/core"
	apperrors "gsdesign/internal/errors"
	"gsdesign/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) designID(r *http.Request) (core.DesignID, error) {
	id, err := core.ParseDesignID(chi.URLParam(r, "id"))
	if err != nil {
		return "", apperrors.WithCode(apperrors.CodeInvalidInput, err)
	}
	return id, nil
}

// handleCreateDesign derives and stores a design from a scenario
func (s *Server) handleCreateDesign(w http.ResponseWriter, r *http.Request) {
	var sc models.Scenario
	if err := s.decode(w, r, &sc); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.service.Create(r.Context(), sc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListDesigns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, apperrors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	recs, err := s.service.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"designs": recs, "count": len(recs)})
}

func (s *Server) handleGetDesign(w http.ResponseWriter, r *http.Request) {
	id, err := s.designID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := s.designID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	recs, err := s.service.Revisions(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"revisions": recs, "count": len(recs)})
}

type updateRequest struct {
	Observed []float64 `json:"observed"`
}

// handleUpdateDesign re-derives a design from observed counts
func (s *Server) handleUpdateDesign(w http.ResponseWriter, r *http.Request) {
	id, err := s.designID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req updateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.service.Update(r.Context(), id, req.Observed)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleConditionalPower(w http.ResponseWriter, r *http.Request) {
	id, err := s.designID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req app.ConditionalPowerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.service.ConditionalPower(r.Context(), id, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePredictivePower(w http.ResponseWriter, r *http.Request) {
	id, err := s.designID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req app.PredictivePowerRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.service.PredictivePower(r.Context(), id, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleSweep evaluates a scenario document, JSON or YAML, with optional
// defaults, without storing the designs
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return
	}
	scenarios, err := scenariofile.Parse(data, "scenario")
	if err != nil {
		s.writeError(w, badInput(err))
		return
	}
	res, err := s.service.Sweep(r.Context(), scenarios)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
