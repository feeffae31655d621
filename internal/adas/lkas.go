package adas

import (
	"fmt"
	"math"
)

// LKASState represents whether lane-keep assistance is applying a steering
// suggestion this frame.
type LKASState string

const (
	LKASStandby LKASState = "STANDBY" // Offset inside the assist deadband
	LKASActive  LKASState = "ACTIVE"  // Corrective steering angle computed
)

// maxSteeringRef is the steering angle in degrees corresponding to an offset
// of half the frame width. The proportional formula is not clamped here: an
// offset beyond half the frame width scales past this reference value.
const maxSteeringRef = 30.0

// AssistConfig holds configuration parameters for lane-keep assistance.
type AssistConfig struct {
	Threshold float64 // Offset in pixels beyond which assistance engages
}

// DefaultAssistConfig returns default lane-keep assist configuration.
func DefaultAssistConfig() AssistConfig {
	return AssistConfig{Threshold: 20.0}
}

// AssistStats summarizes the assist state for the status surface.
type AssistStats struct {
	State         LKASState `json:"state"`
	SteeringAngle float64   `json:"steering_angle"`
	Activations   int64     `json:"activations"`
}

// LaneKeepAssist computes a proportional corrective steering angle when the
// vehicle drifts beyond the assist deadband. Like the departure engine it
// holds no history: unresolved lane geometry reads STANDBY with zero angle.
type LaneKeepAssist struct {
	config AssistConfig

	state       LKASState
	angle       float64
	activations int64
}

// NewLaneKeepAssist creates a lane-keep assist unit.
func NewLaneKeepAssist(config AssistConfig) *LaneKeepAssist {
	return &LaneKeepAssist{
		config: config,
		state:  LKASStandby,
	}
}

// Evaluate computes the assist state and steering angle for one frame.
// Positive offset (vehicle left of center) yields a positive angle steering
// back toward center.
func (a *LaneKeepAssist) Evaluate(laneCenter, offset *float64, frameWidth float64) (LKASState, float64) {
	if laneCenter == nil || offset == nil || frameWidth <= 0 {
		a.set(LKASStandby, 0)
		return a.state, a.angle
	}

	if math.Abs(*offset) <= a.config.Threshold {
		a.set(LKASStandby, 0)
		return a.state, a.angle
	}

	angle := *offset / (frameWidth / 2) * maxSteeringRef
	a.set(LKASActive, angle)
	return a.state, a.angle
}

func (a *LaneKeepAssist) set(state LKASState, angle float64) {
	if state != a.state {
		Diagf("lkas: %s -> %s (angle %.2f)", a.state, state, angle)
		if state == LKASActive {
			a.activations++
		}
	}
	a.state = state
	a.angle = angle
}

// State returns the most recent assist state.
func (a *LaneKeepAssist) State() LKASState { return a.state }

// SteeringAngle returns the most recent steering angle in degrees.
func (a *LaneKeepAssist) SteeringAngle() float64 { return a.angle }

// Stats returns a copy of the assist counters.
func (a *LaneKeepAssist) Stats() AssistStats {
	return AssistStats{
		State:         a.state,
		SteeringAngle: a.angle,
		Activations:   a.activations,
	}
}

// SetThreshold retunes the assist deadband at runtime.
func (a *LaneKeepAssist) SetThreshold(threshold float64) error {
	if threshold <= 0 {
		return fmt.Errorf("assist threshold must be positive, got %.1f", threshold)
	}
	a.config.Threshold = threshold
	Diagf("lkas: threshold set to %.1f", threshold)
	return nil
}

// Threshold returns the current assist threshold.
func (a *LaneKeepAssist) Threshold() float64 { return a.config.Threshold }
