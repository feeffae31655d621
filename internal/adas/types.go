// Package adas implements the decision and safety layer of the drive.assist
// pipeline: distance estimation from object detections, forward-collision and
// lane-departure warning state machines, lane-keep steering assistance, and a
// performance governor that sheds non-critical display features under
// sustained latency.
//
// The package owns no I/O. Frames arrive fully assembled (detections, learned
// lane inference, and a downsampled luma plane) and every engine is plain
// synchronous state mutated one frame at a time by its owning pipeline.
package adas

import "time"

// BBox is an axis-aligned bounding box in frame pixel coordinates.
// X1,Y1 is the top-left corner; X2,Y2 the bottom-right.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the box width in pixels.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// CenterX returns the horizontal center of the box.
func (b BBox) CenterX() float64 { return (b.X1 + b.X2) / 2 }

// CenterY returns the vertical center of the box.
func (b BBox) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// Area returns the box area in square pixels.
func (b BBox) Area() float64 { return b.Width() * b.Height() }

// Detection is one object reported by the external object detector for a
// frame. Detections are read-only downstream and discarded at end of frame.
type Detection struct {
	Class      string  `json:"class"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Distance estimation methods.
const (
	MethodCalibrated   = "calibrated"
	MethodUncalibrated = "uncalibrated"
)

// DistanceEstimation is the estimator's output for a single detection.
// Meters is set only when calibration was available and the pinhole model
// produced a physically plausible value; Pixels is always set and is the
// fallback ordering unit.
type DistanceEstimation struct {
	Meters      *float64 `json:"distance_meters,omitempty"`
	Pixels      float64  `json:"distance_pixels"`
	Confidence  float64  `json:"confidence"`
	IntervalMin float64  `json:"interval_min"`
	IntervalMax float64  `json:"interval_max"`
	Calibrated  bool     `json:"has_calibration"`
	Method      string   `json:"method"`
}

// RiskyDetection pairs a forward-zone detection with its distance estimate.
type RiskyDetection struct {
	Detection Detection          `json:"detection"`
	Distance  DistanceEstimation `json:"distance"`
}

// LaneLine is one lane boundary expressed as a segment from the frame bottom
// toward the horizon. Y1 is the bottom endpoint (largest y).
type LaneLine struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// LaneGeometry is the per-frame lane picture used by LDWS and LKAS.
// CenterX and Offset are computed together from the two boundary lines and
// are either both present or both absent.
type LaneGeometry struct {
	Left    *LaneLine `json:"left,omitempty"`
	Right   *LaneLine `json:"right,omitempty"`
	CenterX *float64  `json:"lane_center_x,omitempty"`
	Offset  *float64  `json:"vehicle_offset,omitempty"`
}

// Complete reports whether both lane boundaries were resolved.
func (g LaneGeometry) Complete() bool { return g.Left != nil && g.Right != nil }

// LanePoint is one (x, y) sample along a lane boundary in pixel coordinates.
type LanePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LaneObservation is one lane boundary as emitted by the learned lane model,
// in whichever of its three output forms the model produced. Exactly one
// field is expected to be set; conversion to a LaneLine lives in the lanes
// package.
type LaneObservation struct {
	Segment *LaneLine   `json:"segment,omitempty"`
	Coeffs  []float64   `json:"coeffs,omitempty"` // x = f(y), highest power first
	Points  []LanePoint `json:"points,omitempty"`
}

// LaneInference is the learned lane model's output for a frame, produced by
// the external inference runtime and delivered alongside the frame. OK is
// false when the runtime reported a failed inference; the arbiter treats a
// nil LaneInference the same way.
type LaneInference struct {
	Left       *LaneObservation `json:"left,omitempty"`
	Right      *LaneObservation `json:"right,omitempty"`
	Confidence float64          `json:"confidence"`
	OK         bool             `json:"ok"`
}

// Frame is the unit of work for one pipeline pass: everything the capture and
// inference unit produced for a single camera frame.
type Frame struct {
	Number    uint64
	Timestamp time.Time

	// Luma is the downsampled 8-bit luminance plane, row-major with no
	// padding (len = Width*Height). It may be nil when the feed carries
	// metadata only; the classical lane detector then has nothing to work
	// with and reports no lanes.
	Width  int
	Height int
	Luma   []uint8

	Detections []Detection
	Inference  *LaneInference

	// SpeedMPS is the vehicle speed if the capture unit reports one.
	SpeedMPS *float64
}

// LumaAt returns the luminance at pixel (x, y), or 0 outside the plane.
func (f *Frame) LumaAt(x, y int) uint8 {
	if f.Luma == nil || x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0
	}
	return f.Luma[y*f.Width+x]
}
