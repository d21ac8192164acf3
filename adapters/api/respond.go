package api

import (
	"encoding/json"
	"net/http"

	"gsdesign/domain/core"
	apperrors "gsdesign/internal/errors"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

// writeError maps err to a status through its code. Internal errors are
// logged and not echoed.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	body := errorBody{Error: err.Error(), Code: apperrors.GetCode(err), Field: core.FieldOf(err)}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
		body.Error = "internal error"
	}
	s.writeJSON(w, status, body)
}

// badInput marks decoding failures that carry no domain kind as client
// errors.
func badInput(err error) error {
	if apperrors.GetCode(err) == apperrors.CodeInternalError {
		return apperrors.WithCode(apperrors.CodeInvalidInput, err)
	}
	return err
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badInput(apperrors.Wrap(err, "invalid request body"))
	}
	return nil
}
