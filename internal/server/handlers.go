package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/zotseek/zotseek/internal/indexer"
	"github.com/zotseek/zotseek/internal/search"
)

// statusResponse is the /api/status payload.
type statusResponse struct {
	Collection     string         `json:"collection"`
	IndexedItems   int            `json:"indexed_items"`
	EmbeddingModel string         `json:"embedding_model"`
	Dimensions     int            `json:"dimensions"`
	LastSyncTime   *time.Time     `json:"last_sync_time"`
	LastSyncStats  *indexer.Stats `json:"last_sync_stats,omitempty"`
	SyncRunning    bool           `json:"sync_running"`
	SyncStage      string         `json:"sync_stage,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	resp := statusResponse{
		Collection:     stats.Name,
		IndexedItems:   stats.Count,
		EmbeddingModel: stats.EmbeddingModel,
		Dimensions:     stats.Dimensions,
		SyncRunning:    s.syncer.Running(),
	}
	if resp.SyncRunning {
		resp.SyncStage = string(s.syncer.State())
	}

	state, err := s.states.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp.LastSyncTime = state.LastSyncTime
	if state.LastSyncTime != nil {
		stats := state.LastStats
		resp.LastSyncStats = &stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// searchRequest is the /api/search request body.
type searchRequest struct {
	Query   string            `json:"query"`
	Limit   int               `json:"limit"`
	Filters map[string]string `json:"filters"`
	// Format selects "json" (default) or "html" (goldmark-rendered results).
	Format string `json:"format"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.searcher.Search(r.Context(), search.Request{
		Query:   req.Query,
		Limit:   req.Limit,
		Filters: req.Filters,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if strings.EqualFold(req.Format, "html") {
		html, err := renderHTML(search.FormatMarkdown(resp))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(html)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSync kicks off a background sync pass. A pass already in flight
// answers 409 so clients can distinguish "started" from "coalesced".
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var params indexer.Params
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if s.syncer.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
		return
	}

	go func() {
		stats, err := s.syncer.Run(context.Background(), params)
		if errors.Is(err, indexer.ErrSyncBusy) {
			return
		}
		if err != nil {
			log.Printf("server: background sync failed: %v", err)
			return
		}
		log.Printf("server: sync complete: %d added, %d updated, %d errors",
			stats.AddedItems, stats.UpdatedItems, stats.Errors)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// markdown is shared by every request; goldmark renderers are safe for
// concurrent use.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

func renderHTML(md string) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
