// Package api serves the public HTTP surface: pipeline status, warning
// metrics, operator events (including a live SSE stream), and the runtime
// control endpoints (arbiter re-arm, display reset, threshold tuning).
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
	"github.com/kestrel-auto/drive.assist/internal/db"
	"github.com/kestrel-auto/drive.assist/internal/feed"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	pipeline *pipeline.Pipeline
	db       *db.DriveDB
	feed     *feed.Stats
	broker   *EventBroker
	runID    string
	started  time.Time
}

// NewServer creates the API server. The feed stats and drive log may be nil
// in tests; the affected endpoints degrade rather than panic.
func NewServer(p *pipeline.Pipeline, driveDB *db.DriveDB, feedStats *feed.Stats, broker *EventBroker, runID string) *Server {
	return &Server{
		pipeline: p,
		db:       driveDB,
		feed:     feedStats,
		broker:   broker,
		runID:    runID,
		started:  time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/metrics", s.showMetrics)
	mux.HandleFunc("/api/health", s.showHealth)
	mux.HandleFunc("/api/system/info", s.showSystemInfo)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/events/stream", s.streamEvents)
	mux.HandleFunc("/api/arbiter/enable", s.enableArbiter)
	mux.HandleFunc("/api/display/reset", s.resetDisplay)
	mux.HandleFunc("/api/config/thresholds", s.configThresholds)
	return mux
}
