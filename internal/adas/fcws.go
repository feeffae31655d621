package adas

import (
	"fmt"
	"sort"
)

// FCWSState represents the forward-collision warning level for a frame.
type FCWSState string

const (
	FCWSSafe     FCWSState = "SAFE"     // No forward object inside the warning envelope
	FCWSWarning  FCWSState = "WARNING"  // Nearest forward object inside warning_distance
	FCWSCritical FCWSState = "CRITICAL" // Nearest forward object inside critical_distance
)

// forwardClasses are the detector classes considered collision-relevant.
var forwardClasses = map[string]bool{
	"car":        true,
	"truck":      true,
	"bus":        true,
	"motorcycle": true,
	"person":     true,
}

// Fraction of frame width treated as the forward path. A detection counts
// only when its horizontal center falls inside the central band.
const (
	forwardZoneLeft  = 0.2
	forwardZoneRight = 0.8
)

// CollisionConfig holds configuration parameters for the collision warning
// engine. Distances are meters when calibration is loaded, otherwise the same
// numbers are read against the 0-100 normalized pixel scale.
type CollisionConfig struct {
	WarningDistance  float64 // Warn below this distance
	CriticalDistance float64 // Escalate below this distance
}

// DefaultCollisionConfig returns default collision warning configuration.
func DefaultCollisionConfig() CollisionConfig {
	return CollisionConfig{
		WarningDistance:  30.0,
		CriticalDistance: 15.0,
	}
}

// CollisionStats summarizes the engine's activity for the status surface.
type CollisionStats struct {
	State       FCWSState `json:"state"`
	Evaluations int64     `json:"evaluations"`
	Warnings    int64     `json:"warnings"`
	Criticals   int64     `json:"criticals"`
}

// CollisionWarningEngine evaluates forward-collision risk once per frame from
// the current detection set. Stateless across frames apart from counters: a
// frame with no forward detections immediately reads SAFE.
type CollisionWarningEngine struct {
	config    CollisionConfig
	estimator *DistanceEstimator

	state FCWSState
	stats CollisionStats
}

// NewCollisionWarningEngine creates a collision warning engine using the
// given estimator for distances.
func NewCollisionWarningEngine(config CollisionConfig, estimator *DistanceEstimator) *CollisionWarningEngine {
	return &CollisionWarningEngine{
		config:    config,
		estimator: estimator,
		state:     FCWSSafe,
	}
}

// Evaluate computes the warning state for one frame. It returns the state and
// the forward-zone detections with attached distance estimates, ordered
// nearest first.
func (e *CollisionWarningEngine) Evaluate(detections []Detection, frameWidth, frameHeight float64) (FCWSState, []RiskyDetection) {
	e.stats.Evaluations++

	var risky []RiskyDetection
	for _, det := range detections {
		if !forwardClasses[det.Class] {
			continue
		}
		cx := det.BBox.CenterX()
		if cx < frameWidth*forwardZoneLeft || cx > frameWidth*forwardZoneRight {
			continue
		}
		risky = append(risky, RiskyDetection{
			Detection: det,
			Distance:  e.estimator.Estimate(det.BBox, frameHeight, det.Class, det.Confidence),
		})
	}

	sort.Slice(risky, func(i, j int) bool {
		return e.rankDistance(risky[i], frameHeight) < e.rankDistance(risky[j], frameHeight)
	})

	state := FCWSSafe
	if len(risky) > 0 {
		switch nearest := e.rankDistance(risky[0], frameHeight); {
		case nearest < e.config.CriticalDistance:
			state = FCWSCritical
		case nearest < e.config.WarningDistance:
			state = FCWSWarning
		}
	}

	if state != e.state {
		Diagf("fcws: %s -> %s (%d forward objects)", e.state, state, len(risky))
		if state == FCWSCritical {
			Opsf("fcws: CRITICAL, nearest object %.1f away", e.rankDistance(risky[0], frameHeight))
		}
	}
	e.state = state
	switch state {
	case FCWSWarning:
		e.stats.Warnings++
	case FCWSCritical:
		e.stats.Criticals++
	}
	e.stats.State = state

	return state, risky
}

// rankDistance is the sort key: meters when the pinhole model held for the
// detection, otherwise the normalized pixel distance on the same 0-100 scale
// the thresholds use.
func (e *CollisionWarningEngine) rankDistance(r RiskyDetection, frameHeight float64) float64 {
	if r.Distance.Meters != nil {
		return *r.Distance.Meters
	}
	return NormalizeDistance(r.Distance.Pixels, frameHeight)
}

// State returns the most recent warning state.
func (e *CollisionWarningEngine) State() FCWSState { return e.state }

// Stats returns a copy of the engine counters.
func (e *CollisionWarningEngine) Stats() CollisionStats {
	s := e.stats
	s.State = e.state
	return s
}

// SetThresholds retunes the warning envelope at runtime.
func (e *CollisionWarningEngine) SetThresholds(warning, critical float64) error {
	if critical <= 0 || warning <= critical {
		return fmt.Errorf("thresholds must satisfy warning > critical > 0, got warning=%.1f critical=%.1f",
			warning, critical)
	}
	e.config.WarningDistance = warning
	e.config.CriticalDistance = critical
	Diagf("fcws: thresholds set to warning=%.1f critical=%.1f", warning, critical)
	return nil
}

// Thresholds returns the current warning and critical distances.
func (e *CollisionWarningEngine) Thresholds() (warning, critical float64) {
	return e.config.WarningDistance, e.config.CriticalDistance
}
