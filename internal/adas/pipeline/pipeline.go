// Package pipeline composes the adas engines into the per-frame decision
// pipeline: lane arbitration, distance estimation, the three warning
// evaluations, and performance sampling, in that order, synchronously.
package pipeline

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-auto/drive.assist/internal/adas"
	"github.com/kestrel-auto/drive.assist/internal/adas/lanes"
	"github.com/kestrel-auto/drive.assist/internal/timeutil"
)

// Event is an operator-visible state change surfaced by the pipeline.
type Event struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	Frame  uint64    `json:"frame"`
	Type   string    `json:"type"`
	Detail string    `json:"detail"`
}

// Event types emitted on state transitions.
const (
	EventFCWSState      = "fcws_state"
	EventLDWSState      = "ldws_state"
	EventLKASState      = "lkas_state"
	EventArbiterMode    = "arbiter_mode"
	EventDisplayChange  = "display_change"
	EventSafeModeChange = "safe_mode_change"
	EventPipelineError  = "pipeline_error"
)

// EventSink receives operator events. Implementations must not block: the
// pipeline calls them inline on the frame path.
type EventSink interface {
	RecordEvent(ev Event)
}

// DecisionSink receives per-frame decisions, typically for sampled
// persistence. Implementations must not block.
type DecisionSink interface {
	RecordDecision(d *FrameDecision)
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
// This handles the Go interface nil pitfall where interface{} != nil but the underlying value is nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// FrameDecision is the pipeline's output for one frame: the sole contract
// the display and publish layers depend on.
type FrameDecision struct {
	Frame     uint64    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`

	FCWS  adas.FCWSState        `json:"fcws_state"`
	Risky []adas.RiskyDetection `json:"risky_detections,omitempty"`

	LDWS          adas.LDWSState `json:"ldws_state"`
	LKAS          adas.LKASState `json:"lkas_state"`
	SteeringAngle float64        `json:"steering_angle"`

	Lanes       adas.LaneGeometry `json:"lanes"`
	ArbiterMode lanes.ArbiterMode `json:"arbiter_mode"`

	// SpeedMPS is the vehicle speed as reported by the capture unit, passed
	// through for the display surfaces.
	SpeedMPS *float64 `json:"speed_mps,omitempty"`

	LatencyMS float64 `json:"latency_ms"`
	SafeMode  bool    `json:"safe_mode"`
}

// Status is the aggregate system view served by the status endpoint.
type Status struct {
	FramesProcessed int64                  `json:"frames_processed"`
	FCWS            adas.CollisionStats    `json:"fcws"`
	LDWS            adas.DepartureStats    `json:"ldws"`
	LKAS            adas.AssistStats       `json:"lkas"`
	Arbiter         lanes.ArbiterStats     `json:"lane_detection"`
	Calibration     adas.CalibrationInfo   `json:"distance_estimation"`
	Performance     adas.GovernorStats     `json:"performance"`
	Errors          adas.ErrorWatcherStats `json:"errors"`
}

// Config holds dependencies for a decision pipeline. All engines are
// required; the sinks and clock are optional.
type Config struct {
	Estimator *adas.DistanceEstimator
	Arbiter   *lanes.FallbackArbiter
	Collision *adas.CollisionWarningEngine
	Departure *adas.LaneDepartureEngine
	Assist    *adas.LaneKeepAssist
	Governor  *adas.PerformanceGovernor

	// Clock supplies frame timing. Defaults to the real clock.
	Clock timeutil.Clock

	// Events receives operator-visible state transitions. Optional.
	Events EventSink

	// Decisions receives one FrameDecision per DecisionSampleEvery frames.
	// Optional.
	Decisions DecisionSink

	// DecisionSampleEvery thins the decision stream before it reaches the
	// sink so steady-state driving does not flood storage. 1 records every
	// frame; 0 defaults to 1.
	DecisionSampleEvery int
}

// Pipeline owns the engines and all their state. One pipeline per video
// stream. A single mutex serializes ProcessFrame against the control surface
// (status, threshold tuning, re-arm) so the engines themselves stay lock-free.
type Pipeline struct {
	mu sync.Mutex

	estimator *adas.DistanceEstimator
	arbiter   *lanes.FallbackArbiter
	collision *adas.CollisionWarningEngine
	departure *adas.LaneDepartureEngine
	assist    *adas.LaneKeepAssist
	governor  *adas.PerformanceGovernor
	watcher   *adas.ErrorWatcher
	clock     timeutil.Clock

	events      EventSink
	decisions   DecisionSink
	sampleEvery int

	framesProcessed int64

	prevFCWS     adas.FCWSState
	prevLDWS     adas.LDWSState
	prevLKAS     adas.LKASState
	prevMode     lanes.ArbiterMode
	prevFeatures adas.DisplayFeatures
	prevSafeMode bool
}

// New creates a pipeline from the given configuration.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Estimator == nil || cfg.Arbiter == nil || cfg.Collision == nil ||
		cfg.Departure == nil || cfg.Assist == nil || cfg.Governor == nil {
		return nil, fmt.Errorf("pipeline config missing a required engine")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sample := cfg.DecisionSampleEvery
	if sample <= 0 {
		sample = 1
	}

	p := &Pipeline{
		estimator:   cfg.Estimator,
		arbiter:     cfg.Arbiter,
		collision:   cfg.Collision,
		departure:   cfg.Departure,
		assist:      cfg.Assist,
		governor:    cfg.Governor,
		watcher:     adas.NewErrorWatcher(),
		clock:       clock,
		sampleEvery: sample,

		prevFCWS:     adas.FCWSSafe,
		prevLDWS:     adas.LDWSSafe,
		prevLKAS:     adas.LKASStandby,
		prevFeatures: cfg.Governor.Features(),
	}
	p.prevMode = cfg.Arbiter.Mode()
	if !isNilInterface(cfg.Events) {
		p.events = cfg.Events
	}
	if !isNilInterface(cfg.Decisions) {
		p.decisions = cfg.Decisions
	}
	return p, nil
}

// ProcessFrame runs one frame through the full decision pipeline. It never
// returns an error: degraded inputs degrade the decision, and anything
// unexpected is absorbed into the error watcher with a safe decision
// returned in its place.
func (p *Pipeline) ProcessFrame(frame *adas.Frame) (decision *FrameDecision) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			p.watcher.RecordError("process", fmt.Errorf("panic: %v", r))
			p.emit(frameNumber(frame), EventPipelineError, fmt.Sprintf("frame processing panic: %v", r))
			decision = p.safeDecision(frame, start)
		}
	}()

	if frame == nil {
		p.watcher.RecordError("ingest", fmt.Errorf("nil frame"))
		return p.safeDecision(frame, start)
	}

	w := float64(frame.Width)
	h := float64(frame.Height)

	laneResult := p.arbiter.Detect(frame)
	geo := lanes.ComputeGeometry(laneResult, w)

	fcwsState, risky := p.collision.Evaluate(frame.Detections, w, h)
	ldwsState := p.departure.Evaluate(geo.CenterX, geo.Offset, w)
	lkasState, angle := p.assist.Evaluate(geo.CenterX, geo.Offset, w)

	latency := p.clock.Since(start)
	p.governor.Observe(latency)
	p.watcher.RecordSuccess()
	p.framesProcessed++

	decision = &FrameDecision{
		Frame:         frame.Number,
		Timestamp:     frame.Timestamp,
		FCWS:          fcwsState,
		Risky:         risky,
		LDWS:          ldwsState,
		LKAS:          lkasState,
		SteeringAngle: angle,
		Lanes:         geo,
		ArbiterMode:   p.arbiter.Mode(),
		SpeedMPS:      frame.SpeedMPS,
		LatencyMS:     float64(latency) / float64(time.Millisecond),
		SafeMode:      p.watcher.SafeMode(),
	}

	p.emitTransitions(decision)

	if p.decisions != nil && p.framesProcessed%int64(p.sampleEvery) == 0 {
		p.decisions.RecordDecision(decision)
	}

	adas.Tracef("frame %d: fcws=%s ldws=%s lkas=%s angle=%.2f mode=%s latency=%.1fms",
		frame.Number, fcwsState, ldwsState, lkasState, angle, decision.ArbiterMode, decision.LatencyMS)

	return decision
}

// RecordIngestError feeds a frame-delivery failure (decode, reassembly) into
// the error watcher so sustained feed trouble surfaces as safe mode.
func (p *Pipeline) RecordIngestError(stage string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watcher.RecordError(stage, err)
}

// safeDecision is the all-clear fallback emitted when a frame could not be
// processed.
func (p *Pipeline) safeDecision(frame *adas.Frame, start time.Time) *FrameDecision {
	return &FrameDecision{
		Frame:       frameNumber(frame),
		Timestamp:   start,
		FCWS:        adas.FCWSSafe,
		LDWS:        adas.LDWSSafe,
		LKAS:        adas.LKASStandby,
		ArbiterMode: p.arbiter.Mode(),
		LatencyMS:   float64(p.clock.Since(start)) / float64(time.Millisecond),
		SafeMode:    p.watcher.SafeMode(),
	}
}

func frameNumber(frame *adas.Frame) uint64 {
	if frame == nil {
		return 0
	}
	return frame.Number
}

// emitTransitions surfaces state changes since the previous frame as events.
func (p *Pipeline) emitTransitions(d *FrameDecision) {
	if d.FCWS != p.prevFCWS {
		p.emit(d.Frame, EventFCWSState, fmt.Sprintf("%s -> %s", p.prevFCWS, d.FCWS))
		p.prevFCWS = d.FCWS
	}
	if d.LDWS != p.prevLDWS {
		p.emit(d.Frame, EventLDWSState, fmt.Sprintf("%s -> %s", p.prevLDWS, d.LDWS))
		p.prevLDWS = d.LDWS
	}
	if d.LKAS != p.prevLKAS {
		p.emit(d.Frame, EventLKASState, fmt.Sprintf("%s -> %s (%.2f deg)", p.prevLKAS, d.LKAS, d.SteeringAngle))
		p.prevLKAS = d.LKAS
	}
	if d.ArbiterMode != p.prevMode {
		p.emit(d.Frame, EventArbiterMode, fmt.Sprintf("%s -> %s", p.prevMode, d.ArbiterMode))
		p.prevMode = d.ArbiterMode
	}
	if features := p.governor.Features(); features != p.prevFeatures {
		p.emit(d.Frame, EventDisplayChange,
			fmt.Sprintf("birds_eye=%v animations=%v", features.BirdsEyeView, features.Animations))
		p.prevFeatures = features
	}
	if d.SafeMode != p.prevSafeMode {
		p.emit(d.Frame, EventSafeModeChange, fmt.Sprintf("safe_mode=%v", d.SafeMode))
		p.prevSafeMode = d.SafeMode
	}
}

func (p *Pipeline) emit(frame uint64, eventType, detail string) {
	if p.events == nil {
		return
	}
	p.events.RecordEvent(Event{
		ID:     uuid.NewString(),
		Time:   p.clock.Now(),
		Frame:  frame,
		Type:   eventType,
		Detail: detail,
	})
}

// Status assembles the aggregate system view.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		FramesProcessed: p.framesProcessed,
		FCWS:            p.collision.Stats(),
		LDWS:            p.departure.Stats(),
		LKAS:            p.assist.Stats(),
		Arbiter:         p.arbiter.Stats(),
		Calibration:     p.estimator.CalibrationInfo(),
		Performance:     p.governor.Stats(),
		Errors:          p.watcher.Stats(),
	}
}

// EnableLearnedLanes re-arms the learned lane path.
func (p *Pipeline) EnableLearnedLanes() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ok := p.arbiter.Enable()
	if ok {
		p.emit(0, EventArbiterMode, fmt.Sprintf("%s -> %s (re-armed)", p.prevMode, p.arbiter.Mode()))
		p.prevMode = p.arbiter.Mode()
	}
	return ok
}

// ResetDisplayFeatures restores the governor's display feature flags.
func (p *Pipeline) ResetDisplayFeatures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.governor.ResetFeatures()
	features := p.governor.Features()
	p.emit(0, EventDisplayChange,
		fmt.Sprintf("reset: birds_eye=%v animations=%v", features.BirdsEyeView, features.Animations))
	p.prevFeatures = features
}

// Thresholds is the runtime-tunable threshold set.
type Thresholds struct {
	FCWSWarning         *float64 `json:"fcws_warning,omitempty"`
	FCWSCritical        *float64 `json:"fcws_critical,omitempty"`
	LDWSDeparture       *float64 `json:"ldws_departure,omitempty"`
	LKASAssist          *float64 `json:"lkas_assist,omitempty"`
	ArbiterConfidence   *float64 `json:"arbiter_confidence,omitempty"`
	DecisionSampleEvery *int     `json:"decision_sample_every,omitempty"`
}

// CurrentThresholds reports the active tunable values.
func (p *Pipeline) CurrentThresholds() Thresholds {
	p.mu.Lock()
	defer p.mu.Unlock()
	warning, critical := p.collision.Thresholds()
	departure := p.departure.Threshold()
	assist := p.assist.Threshold()
	confidence := p.arbiter.ConfidenceThreshold()
	sample := p.sampleEvery
	return Thresholds{
		FCWSWarning:         &warning,
		FCWSCritical:        &critical,
		LDWSDeparture:       &departure,
		LKASAssist:          &assist,
		ArbiterConfidence:   &confidence,
		DecisionSampleEvery: &sample,
	}
}

// ApplyThresholds applies the set fields of a Thresholds update. Partial
// updates are safe; the first invalid value aborts with an error and leaves
// later fields untouched.
func (p *Pipeline) ApplyThresholds(t Thresholds) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.FCWSWarning != nil || t.FCWSCritical != nil {
		warning, critical := p.collision.Thresholds()
		if t.FCWSWarning != nil {
			warning = *t.FCWSWarning
		}
		if t.FCWSCritical != nil {
			critical = *t.FCWSCritical
		}
		if err := p.collision.SetThresholds(warning, critical); err != nil {
			return err
		}
	}
	if t.LDWSDeparture != nil {
		if err := p.departure.SetThreshold(*t.LDWSDeparture); err != nil {
			return err
		}
	}
	if t.LKASAssist != nil {
		if err := p.assist.SetThreshold(*t.LKASAssist); err != nil {
			return err
		}
	}
	if t.ArbiterConfidence != nil {
		if err := p.arbiter.SetConfidenceThreshold(*t.ArbiterConfidence); err != nil {
			return err
		}
	}
	if t.DecisionSampleEvery != nil {
		if *t.DecisionSampleEvery < 1 {
			return fmt.Errorf("decision_sample_every must be >= 1, got %d", *t.DecisionSampleEvery)
		}
		p.sampleEvery = *t.DecisionSampleEvery
	}
	return nil
}
