package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/kestrel-auto/drive.assist/internal/adas"
	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
	"github.com/kestrel-auto/drive.assist/internal/db"
	"github.com/kestrel-auto/drive.assist/internal/feed"
	"github.com/kestrel-auto/drive.assist/internal/httputil"
	"github.com/kestrel-auto/drive.assist/internal/version"
)

// statusResponse wraps the pipeline status with run identity.
type statusResponse struct {
	RunID string `json:"run_id"`
	pipeline.Status
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, statusResponse{
		RunID:  s.runID,
		Status: s.pipeline.Status(),
	})
}

// metricsResponse aggregates feed transport counters with frame timing and
// the per-run warning rollup.
type metricsResponse struct {
	Feed        *feed.Totals           `json:"feed,omitempty"`
	Performance adas.GovernorStats     `json:"performance"`
	Warnings    *db.WarningCounts      `json:"warnings,omitempty"`
	Errors      adas.ErrorWatcherStats `json:"errors"`
	Thresholds  pipeline.Thresholds    `json:"thresholds"`
}

func (s *Server) showMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	status := s.pipeline.Status()
	resp := metricsResponse{
		Performance: status.Performance,
		Errors:      status.Errors,
		Thresholds:  s.pipeline.CurrentThresholds(),
	}
	if s.feed != nil {
		totals := s.feed.Totals()
		resp.Feed = &totals
	}
	if s.db != nil {
		counts, err := s.db.WarningRollup(s.runID)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to roll up warnings: %v", err))
			return
		}
		resp.Warnings = &counts
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	status := s.pipeline.Status()
	health := "ok"
	if status.Errors.SafeMode {
		health = "degraded"
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":           health,
		"safe_mode":        status.Errors.SafeMode,
		"frames_processed": status.FramesProcessed,
		"uptime_seconds":   int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) showSystemInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"run_id":     s.runID,
		"started":    s.started.UTC().Format(time.RFC3339),
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONOK(w, []db.OperatorEvent{})
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.BadRequest(w, "invalid 'limit' parameter: expected 1-1000")
			return
		}
		limit = parsed
	}
	eventType := r.URL.Query().Get("type")

	events, err := s.db.RecentEvents(limit, eventType)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve events: %v", err))
		return
	}
	if events == nil {
		events = []db.OperatorEvent{}
	}
	httputil.WriteJSONOK(w, events)
}

// streamEvents serves pipeline events live over SSE, one JSON object per
// message.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.broker == nil {
		httputil.InternalServerError(w, "event streaming not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, ch := s.broker.Subscribe()
	defer s.broker.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) enableArbiter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	enabled := s.pipeline.EnableLearnedLanes()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"enabled": enabled,
		"mode":    s.pipeline.Status().Arbiter.Mode,
	})
}

func (s *Server) resetDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.pipeline.ResetDisplayFeatures()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"features": s.pipeline.Status().Performance.Features,
	})
}

func (s *Server) configThresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.pipeline.CurrentThresholds())

	case http.MethodPost:
		var update pipeline.Thresholds
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid threshold payload: %v", err))
			return
		}
		if err := s.pipeline.ApplyThresholds(update); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, s.pipeline.CurrentThresholds())

	default:
		httputil.MethodNotAllowed(w)
	}
}
