package server

import (
	"net/http"
	"strings"

	"streamgate/internal/catalog"
	"streamgate/internal/relay"
)

// playChannel relays the requested channel to the client. The HTTP status can
// only reflect failures that happen before the first byte; after that the
// stream simply ends.
func (s *Server) playChannel(w http.ResponseWriter, r *http.Request) {
	slug := catalog.NormalizeSlug(r.PathValue("channel"))
	if slug == "" {
		slug = catalog.NormalizeSlug(r.URL.Query().Get("channel"))
	}
	if slug == "" {
		writeError(w, "Missing channel", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "no-store")

	result := s.engine.Serve(r.Context(), slug, &flushingWriter{w: w})
	if result.Bytes > 0 {
		return
	}

	switch result.Outcome {
	case relay.OutcomeSuccess, relay.OutcomeClientCancelled:
	case relay.OutcomeChannelNotFound:
		writeError(w, "Unknown channel "+strings.TrimSpace(slug), http.StatusNotFound)
	case relay.OutcomeNoHealthyProxy:
		writeError(w, "No healthy proxy available", http.StatusServiceUnavailable)
	default:
		writeError(w, "All sources failed for channel "+slug, http.StatusBadGateway)
	}
}

// flushingWriter pushes each chunk to the client immediately so live streams
// do not sit in the response buffer.
type flushingWriter struct {
	w http.ResponseWriter
}

func (f *flushingWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if flusher, ok := f.w.(http.Flusher); ok && n > 0 {
		flusher.Flush()
	}
	return n, err
}
