package adas

import "fmt"

// LDWSState represents the lane-departure warning state for a frame.
type LDWSState string

const (
	LDWSSafe         LDWSState = "SAFE"          // Vehicle within the departure envelope
	LDWSLeftWarning  LDWSState = "LEFT_WARNING"  // Drifting left of lane center
	LDWSRightWarning LDWSState = "RIGHT_WARNING" // Drifting right of lane center
)

// DepartureConfig holds configuration parameters for the lane-departure
// engine.
type DepartureConfig struct {
	Threshold float64 // Offset in pixels beyond which a departure is flagged
}

// DefaultDepartureConfig returns default lane-departure configuration.
func DefaultDepartureConfig() DepartureConfig {
	return DepartureConfig{Threshold: 30.0}
}

// DepartureStats summarizes the engine for the status surface. DepartureCount
// is the current run length of consecutive warning frames; it is diagnostic
// only and never gates the state itself.
type DepartureStats struct {
	State          LDWSState `json:"state"`
	DepartureCount int       `json:"departure_count"`
	Warnings       int64     `json:"warnings"`
}

// LaneDepartureEngine flags sustained drift away from lane center. The state
// is recomputed from the current frame's offset alone; unresolved lane
// geometry always reads SAFE rather than guessing.
type LaneDepartureEngine struct {
	config DepartureConfig

	state          LDWSState
	departureCount int
	warnings       int64
}

// NewLaneDepartureEngine creates a lane-departure engine.
func NewLaneDepartureEngine(config DepartureConfig) *LaneDepartureEngine {
	return &LaneDepartureEngine{
		config: config,
		state:  LDWSSafe,
	}
}

// Evaluate computes the departure state for one frame. laneCenter and offset
// come from the lane geometry and are nil when the lanes were not resolved;
// positive offset means the vehicle sits left of lane center.
func (e *LaneDepartureEngine) Evaluate(laneCenter, offset *float64, frameWidth float64) LDWSState {
	if laneCenter == nil || offset == nil {
		e.transition(LDWSSafe)
		e.departureCount = 0
		return e.state
	}

	state := LDWSSafe
	switch {
	case *offset > e.config.Threshold:
		state = LDWSLeftWarning
	case *offset < -e.config.Threshold:
		state = LDWSRightWarning
	}

	if state == LDWSSafe {
		e.departureCount = 0
	} else {
		e.departureCount++
		e.warnings++
	}
	e.transition(state)
	return e.state
}

func (e *LaneDepartureEngine) transition(state LDWSState) {
	if state != e.state {
		Diagf("ldws: %s -> %s (run %d)", e.state, state, e.departureCount)
	}
	e.state = state
}

// State returns the most recent departure state.
func (e *LaneDepartureEngine) State() LDWSState { return e.state }

// Stats returns a copy of the engine counters.
func (e *LaneDepartureEngine) Stats() DepartureStats {
	return DepartureStats{
		State:          e.state,
		DepartureCount: e.departureCount,
		Warnings:       e.warnings,
	}
}

// SetThreshold retunes the departure envelope at runtime.
func (e *LaneDepartureEngine) SetThreshold(threshold float64) error {
	if threshold <= 0 {
		return fmt.Errorf("departure threshold must be positive, got %.1f", threshold)
	}
	e.config.Threshold = threshold
	Diagf("ldws: threshold set to %.1f", threshold)
	return nil
}

// Threshold returns the current departure threshold.
func (e *LaneDepartureEngine) Threshold() float64 { return e.config.Threshold }
