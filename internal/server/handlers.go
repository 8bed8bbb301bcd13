package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
)

// maxBodyBytes bounds request bodies; résumé ingestion passes a location, not the text.
const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON body into out. An empty body leaves out unchanged.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
	return false
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req dispatch.RecommendRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.writeResponse(w, s.svc.Recommend(r.Context(), req))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req dispatch.SearchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.writeResponse(w, s.svc.Search(r.Context(), req))
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req dispatch.AggregationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.writeResponse(w, s.svc.Aggregate(r.Context(), req))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, s.svc.Status(r.Context()))
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req dispatch.TestRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.writeResponse(w, s.svc.Test(r.Context(), req))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req dispatch.IngestRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	s.writeResponse(w, s.svc.Ingest(r.Context(), req))
}

// handleEvent accepts any event the dispatcher understands.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event map[string]any
	if !s.decodeBody(w, r, &event) {
		return
	}
	if event == nil {
		event = map[string]any{}
	}
	s.writeResponse(w, s.dispatcher.Handle(r.Context(), event))
}

// handleHealth returns server liveness
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
