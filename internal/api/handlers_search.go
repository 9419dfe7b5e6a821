package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/docstruct/internal/searchstore"
)

// searchRequestFromQuery builds a search request from the common query
// parameters shared by the chunk and section endpoints.
func searchRequestFromQuery(r *http.Request) (searchstore.SearchRequest, string) {
	q := r.URL.Query()
	req := searchstore.SearchRequest{
		Query:      q.Get("q"),
		DocID:      q.Get("doc_id"),
		PathPrefix: q.Get("path_prefix"),
	}
	if req.Query == "" {
		return req, "q query parameter is required"
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return req, "size must be an integer between 1 and 100"
		}
		req.Size = n
	}
	if v := q.Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, "from must be a non-negative integer"
		}
		req.From = n
	}
	return req, ""
}

func (s *Server) handleSearchChunks(w http.ResponseWriter, r *http.Request) {
	req, msg := searchRequestFromQuery(r)
	if msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	res, err := s.search.SearchChunks(r.Context(), req)
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearchSections(w http.ResponseWriter, r *http.Request) {
	req, msg := searchRequestFromQuery(r)
	if msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	res, err := s.search.SearchSections(r.Context(), req)
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
