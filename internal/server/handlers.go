package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/errs"
)

type ingestRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

type ingestResponse struct {
	DocumentID     string `json:"document_id"`
	FragmentsAdded int    `json:"fragments_added"`
	Replaced       bool   `json:"replaced"`
	Summary        string `json:"summary,omitempty"`
}

type queryRequest struct {
	Text string `json:"text"`
	K    int    `json:"k"`
}

type matchResponse struct {
	FragmentID string  `json:"fragment_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

type queryResponse struct {
	Matches []matchResponse `json:"matches"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	corpusID := chi.URLParam(r, "corpus")

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.Wrap(err, errs.CodeServerRequestInvalid, "decode ingest request"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	report, err := s.engine.Ingest(r.Context(), corpusID, domain.Document{
		ID:    req.ID,
		Title: req.Title,
		Text:  req.Text,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{
		DocumentID:     report.DocumentID,
		FragmentsAdded: report.FragmentsAdded,
		Replaced:       report.Replaced,
		Summary:        report.Summary,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	corpusID := chi.URLParam(r, "corpus")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errs.Wrap(err, errs.CodeServerRequestInvalid, "decode query request"))
		return
	}
	if req.K == 0 {
		req.K = 5
	}

	matches, err := s.engine.Query(r.Context(), corpusID, req.Text, req.K)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := queryResponse{Matches: make([]matchResponse, len(matches))}
	for i, m := range matches {
		resp.Matches[i] = matchResponse{
			FragmentID: m.Fragment.ID,
			DocumentID: m.DocumentID,
			Text:       m.Fragment.Text,
			Score:      m.Score,
			Start:      m.Fragment.Start,
			End:        m.Fragment.End,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCorpus(w http.ResponseWriter, r *http.Request) {
	corpusID := chi.URLParam(r, "corpus")
	if !s.engine.DeleteCorpus(corpusID) {
		s.writeError(w, errs.New(errs.CodeCorpusNotFound, "corpus does not exist", errs.FieldCorpus(corpusID)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  string(errs.CodeOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encode failures after the header is written can only be logged by
	// the caller's middleware; the status is already on the wire.
	_ = json.NewEncoder(w).Encode(body)
}
