// Package monitor serves the operator dashboard: live charts of frame
// latency, lane offset, steering output, and warning activity rendered with
// go-echarts. It keeps a bounded in-memory window of recent decisions; the
// drive log remains the durable record.
package monitor

import (
	"net/http"
	"sync"

	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
	"github.com/kestrel-auto/drive.assist/internal/db"
)

// historySize bounds the in-memory decision window. At 30fps with the default
// sampling this covers several minutes of driving.
const historySize = 1200

// Sample is the slice of a FrameDecision the charts need.
type Sample struct {
	Frame         uint64
	LatencyMS     float64
	VehicleOffset *float64
	SteeringAngle float64
	SpeedMPS      *float64
	FCWS          string
	LDWS          string
	LKAS          string
	ArbiterMode   string
	SafeMode      bool
}

// Dashboard accumulates decision samples and serves the chart endpoints.
// It implements pipeline.DecisionSink; RecordDecision is a mutex-guarded
// ring append and never blocks on I/O.
type Dashboard struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	full    bool

	db    *db.DriveDB
	runID string
}

// NewDashboard creates a dashboard. driveDB may be nil; the warning rollup
// chart then reports an empty run.
func NewDashboard(driveDB *db.DriveDB, runID string) *Dashboard {
	return &Dashboard{
		samples: make([]Sample, historySize),
		db:      driveDB,
		runID:   runID,
	}
}

// RecordDecision implements pipeline.DecisionSink.
func (d *Dashboard) RecordDecision(dec *pipeline.FrameDecision) {
	s := Sample{
		Frame:         dec.Frame,
		LatencyMS:     dec.LatencyMS,
		VehicleOffset: dec.Lanes.Offset,
		SteeringAngle: dec.SteeringAngle,
		SpeedMPS:      dec.SpeedMPS,
		FCWS:          string(dec.FCWS),
		LDWS:          string(dec.LDWS),
		LKAS:          string(dec.LKAS),
		ArbiterMode:   string(dec.ArbiterMode),
		SafeMode:      dec.SafeMode,
	}

	d.mu.Lock()
	d.samples[d.next] = s
	d.next++
	if d.next == len(d.samples) {
		d.next = 0
		d.full = true
	}
	d.mu.Unlock()
}

// Window returns the recorded samples oldest-first.
func (d *Dashboard) Window() []Sample {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.full {
		out := make([]Sample, d.next)
		copy(out, d.samples[:d.next])
		return out
	}
	out := make([]Sample, 0, len(d.samples))
	out = append(out, d.samples[d.next:]...)
	out = append(out, d.samples[:d.next]...)
	return out
}

// AttachRoutes mounts the dashboard and chart endpoints on the given mux.
func (d *Dashboard) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", d.handleDashboard)
	mux.HandleFunc("/charts/latency", d.handleLatencyChart)
	mux.HandleFunc("/charts/offset", d.handleOffsetChart)
	mux.HandleFunc("/charts/steering", d.handleSteeringChart)
	mux.HandleFunc("/charts/speed", d.handleSpeedChart)
	mux.HandleFunc("/charts/warnings", d.handleWarningsChart)
}
