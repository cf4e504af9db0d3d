package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Upendra2003/Aira-Backend/internal/retrieval"
)

type indexSnippetRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// handleIndexSnippet adds one reference reply to the vector store so future
// turns can retrieve it as a style example.
func (s *Server) handleIndexSnippet(w http.ResponseWriter, r *http.Request) {
	idx := s.indexer()
	if idx == nil {
		respondError(w, http.StatusNotImplemented, "retrieval_disabled", "no vector store configured")
		return
	}

	var req indexSnippetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "empty_content", "content must not be empty")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.NewString()
	}

	if err := idx.Add(r.Context(), req.ID, req.Content); err != nil {
		respondError(w, http.StatusInternalServerError, "index_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) indexer() retrieval.Indexer {
	idx, ok := s.retriever.(retrieval.Indexer)
	if !ok {
		return nil
	}
	return idx
}
