package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
)

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, dispatch.ErrorBody{Error: message})
}

// writeResponse writes an operation's response. Handler headers set by the operation are
// applied first so Content-Type stays JSON.
func (s *Server) writeResponse(w http.ResponseWriter, resp dispatch.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	s.jsonResponse(w, resp.StatusCode, resp.Body)
}
