package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"yajutter-search/pkg/yajutter"
	"yajutter-search/search"
)

type resultsEvent struct {
	Posts     []postView `json:"posts"`
	FromCache bool       `json:"from_cache"`
}

type progressEvent struct {
	PagesFetched int `json:"pages_fetched"`
	TotalPages   int `json:"total_pages"` // 0 = unknown
}

type completeEvent struct {
	Posts      []postView `json:"posts"`
	TotalPosts int        `json:"total_posts"`
}

type authorEvent struct {
	Author userView `json:"author"`
	UserID int64    `json:"user_id"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// handleSearch runs one search invocation and streams its event sequence
// as SSE. An empty or whitespace-only query short-circuits before the
// transport is ever touched.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query must not be empty"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("Response writer does not support streaming")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	key, err := s.creds.Load(r.Context())
	if err != nil {
		s.logger.Error("Failed to load credential", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load credential"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := &eventStream{w: w, flusher: flusher, logger: s.logger}

	if key == "" {
		stream.send("error", errorEvent{Message: "API credential is not configured"})
		return
	}

	cb := search.Callbacks{
		OnResults: func(results []yajutter.Post, fromCache bool) {
			stream.send("results", resultsEvent{Posts: s.postViews(results), FromCache: fromCache})
		},
		OnProgress: func(pagesFetched, totalPages int) {
			stream.send("progress", progressEvent{PagesFetched: pagesFetched, TotalPages: totalPages})
		},
		OnUser: func(u *yajutter.User) {
			if u != nil {
				stream.send("user", newUserView(u))
			}
		},
		OnAuthorResolved: func(userID int64) {
			if u := s.users.Get(userID); u != nil {
				stream.send("author", authorEvent{UserID: userID, Author: newUserView(u)})
			}
		},
		OnComplete: func(results []yajutter.Post, totalPosts int) {
			stream.send("complete", completeEvent{Posts: s.postViews(results), TotalPosts: totalPosts})
		},
		OnError: func(err error) {
			stream.send("error", errorEvent{Message: fmt.Sprintf("search failed: %v", err)})
		},
	}

	if _, err := s.searcher.Run(r.Context(), query, key, cb); err != nil {
		// The error event has already been delivered via OnError.
		s.logger.Warn("Search request failed", "query", query, "error", err)
	}
}

// eventStream writes SSE frames. Events are serialized through a mutex so
// frames from the enrichment pass can never interleave mid-frame.
type eventStream struct {
	w       io.Writer
	flusher http.Flusher
	logger  *slog.Logger
	mu      sync.Mutex
}

func (s *eventStream) send(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("Failed to marshal event payload", "event", event, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		s.logger.Warn("Failed to write event", "event", event, "error", err)
		return
	}
	s.flusher.Flush()
}
