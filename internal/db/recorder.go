package db

import (
	"context"
	"sync/atomic"

	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
	"github.com/kestrel-auto/drive.assist/internal/monitoring"
)

// Recorder decouples the frame path from sqlite writes. The pipeline's sinks
// must not block, so RecordEvent and RecordDecision enqueue onto buffered
// channels and a single background goroutine drains them into the drive log.
// When a buffer is full the entry is dropped and counted; the decision stream
// is sampled upstream, so drops indicate a stalled disk rather than normal
// load.
type Recorder struct {
	db    *DriveDB
	runID string

	events    chan pipeline.Event
	decisions chan *pipeline.FrameDecision

	droppedEvents    atomic.Int64
	droppedDecisions atomic.Int64
}

// NewRecorder creates a recorder persisting under the given run.
func NewRecorder(db *DriveDB, runID string) *Recorder {
	return &Recorder{
		db:        db,
		runID:     runID,
		events:    make(chan pipeline.Event, 256),
		decisions: make(chan *pipeline.FrameDecision, 256),
	}
}

// RecordEvent implements pipeline.EventSink. Never blocks.
func (r *Recorder) RecordEvent(ev pipeline.Event) {
	select {
	case r.events <- ev:
	default:
		r.droppedEvents.Add(1)
	}
}

// RecordDecision implements pipeline.DecisionSink. Never blocks.
func (r *Recorder) RecordDecision(d *pipeline.FrameDecision) {
	select {
	case r.decisions <- d:
	default:
		r.droppedDecisions.Add(1)
	}
}

// Dropped reports how many events and decisions were discarded because the
// writer could not keep up.
func (r *Recorder) Dropped() (events, decisions int64) {
	return r.droppedEvents.Load(), r.droppedDecisions.Load()
}

// Run drains the queues into the drive log until ctx is cancelled, then
// flushes whatever is already buffered.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case ev := <-r.events:
			r.persistEvent(ev)
		case d := <-r.decisions:
			r.persistDecision(d)
		}
	}
}

// flush writes out anything left in the buffers without waiting for more.
func (r *Recorder) flush() {
	for {
		select {
		case ev := <-r.events:
			r.persistEvent(ev)
		case d := <-r.decisions:
			r.persistDecision(d)
		default:
			return
		}
	}
}

func (r *Recorder) persistEvent(ev pipeline.Event) {
	err := r.db.RecordOperatorEvent(OperatorEvent{
		ID:        ev.ID,
		RunID:     r.runID,
		Frame:     ev.Frame,
		Type:      ev.Type,
		Detail:    ev.Detail,
		CreatedAt: ev.Time,
	})
	if err != nil {
		monitoring.Logf("drive log: %v", err)
	}
}

func (r *Recorder) persistDecision(d *pipeline.FrameDecision) {
	rec := FrameDecisionRecord{
		RunID:         r.runID,
		Frame:         d.Frame,
		FrameTime:     d.Timestamp,
		FCWSState:     string(d.FCWS),
		LDWSState:     string(d.LDWS),
		LKASState:     string(d.LKAS),
		SteeringAngle: d.SteeringAngle,
		RiskyCount:    len(d.Risky),
		LaneCenterX:   d.Lanes.CenterX,
		VehicleOffset: d.Lanes.Offset,
		ArbiterMode:   string(d.ArbiterMode),
		LatencyMS:     d.LatencyMS,
		SafeMode:      d.SafeMode,
	}
	if len(d.Risky) > 0 {
		rec.NearestDistance = d.Risky[0].Distance.Meters
	}
	if err := r.db.RecordFrameDecision(rec); err != nil {
		monitoring.Logf("drive log: %v", err)
	}
}
