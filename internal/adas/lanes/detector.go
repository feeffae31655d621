// Package lanes provides the lane-detection strategies of the drive.assist
// pipeline and the arbiter that selects between them per frame: a learned
// detector fed by the external inference runtime, and a classical
// edge-and-line fallback that works directly on the frame's luma plane.
package lanes

import "github.com/kestrel-auto/drive.assist/internal/adas"

// Result is one detector's lane output for a frame. Either boundary may be
// nil when that side was not resolved. Confidence is meaningful only for the
// learned detector; the classical detector reports zero.
type Result struct {
	Left       *adas.LaneLine
	Right      *adas.LaneLine
	Confidence float64
}

// Resolved reports whether at least one lane boundary was found.
func (r Result) Resolved() bool { return r.Left != nil || r.Right != nil }

// Detector is the capability shared by all lane-detection strategies.
type Detector interface {
	// DetectLanes analyzes one frame and returns the lane boundaries it
	// found. An error means the attempt failed outright; a nil-lane Result
	// with no error means the detector ran but saw no lanes.
	DetectLanes(frame *adas.Frame) (Result, error)

	// Name identifies the strategy in logs and stats.
	Name() string
}
