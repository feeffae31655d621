package lanes

import (
	"fmt"

	"github.com/kestrel-auto/drive.assist/internal/adas"
)

// ArbiterMode describes how the arbiter is currently sourcing lanes.
type ArbiterMode string

const (
	ModeDLActive   ArbiterMode = "DL_ACTIVE"   // Learned detector healthy
	ModeDLDegraded ArbiterMode = "DL_DEGRADED" // Recent learned failures, falling back
	ModeDLDisabled ArbiterMode = "DL_DISABLED" // Learned path off until re-armed
)

// ArbiterConfig holds configuration parameters for the fallback arbiter.
type ArbiterConfig struct {
	ConfidenceThreshold    float64 // Minimum learned confidence to accept a result
	MaxConsecutiveFailures int     // Learned failures in a row before disablement
}

// DefaultArbiterConfig returns default arbiter configuration.
func DefaultArbiterConfig() ArbiterConfig {
	return ArbiterConfig{
		ConfidenceThreshold:    0.6,
		MaxConsecutiveFailures: 5,
	}
}

// ArbiterStats summarizes arbiter activity for the status surface.
type ArbiterStats struct {
	Mode                ArbiterMode `json:"mode"`
	DLEnabled           bool        `json:"dl_enabled"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	DLSuccessCount      int64       `json:"dl_success_count"`
	CVFallbackCount     int64       `json:"cv_fallback_count"`
	TotalDetections     int64       `json:"total_detections"`
	DLSuccessRate       float64     `json:"dl_success_rate"`
}

// FallbackArbiter selects between the learned and classical lane detectors
// each frame under a failure budget. A learned attempt counts as a success
// only when it returns without error, clears the confidence threshold, and
// resolves at least one boundary; anything else increments the consecutive
// failure counter and routes the frame to the fallback. Reaching the budget
// disables the learned path until Enable re-arms it. The classical detector
// has no budget: its failures are logged and the frame simply resolves no
// lanes.
//
// One arbiter per pipeline; not safe for concurrent use.
type FallbackArbiter struct {
	config   ArbiterConfig
	learned  Detector // may be nil, leaving the fallback permanently in charge
	fallback Detector

	dlEnabled           bool
	consecutiveFailures int
	dlSuccessCount      int64
	cvFallbackCount     int64
}

// NewFallbackArbiter creates an arbiter over the two strategies. learned may
// be nil when no inference source is configured.
func NewFallbackArbiter(config ArbiterConfig, learned, fallback Detector) *FallbackArbiter {
	a := &FallbackArbiter{
		config:    config,
		learned:   learned,
		fallback:  fallback,
		dlEnabled: learned != nil,
	}
	adas.Diagf("arbiter: initialized, learned enabled=%v threshold=%.2f budget=%d",
		a.dlEnabled, config.ConfidenceThreshold, config.MaxConsecutiveFailures)
	return a
}

// Detect resolves the lane boundaries for one frame. It never fails: learned
// errors are absorbed into the failure budget and the classical fallback
// covers the frame.
func (a *FallbackArbiter) Detect(frame *adas.Frame) Result {
	usedDL := false
	var out Result

	if a.learned != nil && a.dlEnabled && a.consecutiveFailures < a.config.MaxConsecutiveFailures {
		result, err := a.learned.DetectLanes(frame)
		switch {
		case err != nil:
			a.consecutiveFailures++
			adas.Diagf("arbiter: %s detector failed (%d consecutive): %v",
				a.learned.Name(), a.consecutiveFailures, err)
		case result.Confidence < a.config.ConfidenceThreshold:
			a.consecutiveFailures++
			adas.Diagf("arbiter: %s confidence %.2f below %.2f (%d consecutive)",
				a.learned.Name(), result.Confidence, a.config.ConfidenceThreshold, a.consecutiveFailures)
		case !result.Resolved():
			a.consecutiveFailures++
			adas.Diagf("arbiter: %s resolved no lanes (%d consecutive)",
				a.learned.Name(), a.consecutiveFailures)
		default:
			usedDL = true
			a.consecutiveFailures = 0
			a.dlSuccessCount++
			out = result
			adas.Tracef("arbiter: %s ok, confidence %.2f", a.learned.Name(), result.Confidence)
		}
	}

	if !usedDL {
		result, err := a.fallback.DetectLanes(frame)
		if err != nil {
			adas.Diagf("arbiter: %s detector failed: %v", a.fallback.Name(), err)
		} else {
			out = result
		}
		a.cvFallbackCount++
	}

	if a.dlEnabled && a.consecutiveFailures >= a.config.MaxConsecutiveFailures {
		a.dlEnabled = false
		adas.Opsf("arbiter: learned detector disabled after %d consecutive failures, classical fallback only",
			a.consecutiveFailures)
	}

	return out
}

// Mode derives the arbiter's current sourcing mode.
func (a *FallbackArbiter) Mode() ArbiterMode {
	switch {
	case !a.dlEnabled:
		return ModeDLDisabled
	case a.consecutiveFailures > 0:
		return ModeDLDegraded
	default:
		return ModeDLActive
	}
}

// Enable re-arms the learned path and resets the failure budget. It reports
// whether the learned detector is now enabled; re-arming without a learned
// detector configured is a no-op.
func (a *FallbackArbiter) Enable() bool {
	if a.learned == nil {
		adas.Diagf("arbiter: enable requested but no learned detector configured")
		return false
	}
	a.dlEnabled = true
	a.consecutiveFailures = 0
	adas.Opsf("arbiter: learned detector re-enabled")
	return true
}

// Disable turns the learned path off until the next Enable.
func (a *FallbackArbiter) Disable() {
	a.dlEnabled = false
	adas.Opsf("arbiter: learned detector disabled by request")
}

// Enabled reports whether the learned path is currently enabled.
func (a *FallbackArbiter) Enabled() bool { return a.dlEnabled }

// SetConfidenceThreshold retunes the acceptance threshold at runtime.
func (a *FallbackArbiter) SetConfidenceThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0, 1], got %.2f", threshold)
	}
	a.config.ConfidenceThreshold = threshold
	adas.Diagf("arbiter: confidence threshold set to %.2f", threshold)
	return nil
}

// ConfidenceThreshold returns the current acceptance threshold.
func (a *FallbackArbiter) ConfidenceThreshold() float64 { return a.config.ConfidenceThreshold }

// Stats returns a copy of the arbiter counters.
func (a *FallbackArbiter) Stats() ArbiterStats {
	total := a.dlSuccessCount + a.cvFallbackCount
	s := ArbiterStats{
		Mode:                a.Mode(),
		DLEnabled:           a.dlEnabled,
		ConsecutiveFailures: a.consecutiveFailures,
		DLSuccessCount:      a.dlSuccessCount,
		CVFallbackCount:     a.cvFallbackCount,
		TotalDetections:     total,
	}
	if total > 0 {
		s.DLSuccessRate = float64(a.dlSuccessCount) / float64(total)
	}
	return s
}

// ResetStats zeroes the counters without touching the enabled flag.
func (a *FallbackArbiter) ResetStats() {
	a.dlSuccessCount = 0
	a.cvFallbackCount = 0
	a.consecutiveFailures = 0
}
