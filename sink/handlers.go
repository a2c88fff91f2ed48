package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"github.com/charliek/snag/report"
)

// maxReportBytes bounds the accepted request body, before and after
// decompression
const maxReportBytes = 16 << 20

// Listing limits (default 50, max 500 to keep responses bounded)
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// createReport handles POST /api/v1/reports
func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	reader := io.Reader(http.MaxBytesReader(w, r.Body, maxReportBytes))

	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "malformed gzip body",
				Code:  CodeInvalidPayload,
			})
			return
		}
		defer gz.Close()
		reader = io.LimitReader(gz, maxReportBytes)
	}

	var rep report.Report
	if err := json.NewDecoder(reader).Decode(&rep); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "malformed report payload: " + err.Error(),
			Code:  CodeInvalidPayload,
		})
		return
	}
	if err := rep.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  CodeInvalidPayload,
		})
		return
	}

	stored := s.store.Add(rep)
	s.stream.broadcast(Summarize(stored))

	s.log.Info().
		Str("report_id", stored.ID).
		Str("project_key", rep.ProjectKey).
		Str("page_url", rep.PageURL).
		Int("console_logs", len(rep.ConsoleLogs)).
		Int("network_logs", len(rep.NetworkLogs)).
		Int("user_actions", len(rep.UserActions)).
		Msg("report received")

	writeJSON(w, http.StatusCreated, report.SubmitResult{ID: stored.ID, Success: true})
}

// listReports handles GET /api/v1/reports
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			if l > maxListLimit {
				limit = maxListLimit
			} else {
				limit = l
			}
		}
	}

	summaries := s.store.List(project, limit)

	writeJSON(w, http.StatusOK, ListResponse{
		Reports: summaries,
		Count:   len(summaries),
		Total:   s.store.Len(),
	})
}

// getReport handles GET /api/v1/reports/{id}
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stored, ok := s.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("report %s not found", id),
			Code:  CodeReportNotFound,
		})
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

// deleteReport handles DELETE /api/v1/reports/{id}
func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.store.Delete(id) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("report %s not found", id),
			Code:  CodeReportNotFound,
		})
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// clearReports handles DELETE /api/v1/reports
func (s *Server) clearReports(w http.ResponseWriter, r *http.Request) {
	n := s.store.Clear()
	writeJSON(w, http.StatusOK, ClearResponse{Success: true, Cleared: n})
}

// streamReports handles GET /api/v1/reports/stream (SSE)
func (s *Server) streamReports(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "streaming not supported",
			Code:  CodeStreamingNotSupported,
		})
		return
	}

	id, ch := s.stream.subscribe()
	defer s.stream.unsubscribe(id)

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Slow clients lose events at the subscription channel rather than
	// blocking ingestion; write errors end the stream.
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case summary, ok := <-ch:
			if !ok {
				return
			}

			data, err := json.Marshal(summary)
			if err != nil {
				continue
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				s.log.Debug().Err(err).Str("subscription", id).Msg("sse write failed")
				return
			}
			flusher.Flush()
		}
	}
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
