package adas

import "math"

// Plausibility bounds for the calibrated pinhole path. Pinhole results
// outside this range are discarded and the estimate falls back to the
// heuristic pixel path for that detection.
const (
	minPlausibleMeters = 0.5
	maxPlausibleMeters = 200.0
)

// minPixelDistance floors the heuristic pixel distance to keep downstream
// ratios away from division artifacts on very large boxes.
const minPixelDistance = 10.0

// defaultClassHeights maps detector classes to typical real-world heights in
// meters. Classes not listed use defaultObjectHeight.
var defaultClassHeights = map[string]float64{
	"car":        1.5,
	"truck":      3.0,
	"bus":        3.2,
	"motorcycle": 1.2,
	"bicycle":    1.7,
	"person":     1.7,
}

const defaultObjectHeight = 1.5

// DistanceEstimator converts bounding-box geometry into a distance with an
// explicit confidence model. With calibration it uses the pinhole projection
// (focal x realHeight / pixelHeight); without, a monotone heuristic on box
// area and vertical position. One instance per pipeline; not safe for
// concurrent use.
type DistanceEstimator struct {
	cal   *Calibration
	focal float64
}

// NewDistanceEstimator creates an estimator. cal may be nil, in which case
// every estimate uses the uncalibrated path.
func NewDistanceEstimator(cal *Calibration) *DistanceEstimator {
	e := &DistanceEstimator{cal: cal}
	if cal != nil {
		e.focal = cal.FocalLength()
	}
	return e
}

// HasCalibration reports whether a calibration was loaded.
func (e *DistanceEstimator) HasCalibration() bool { return e.cal != nil }

// CalibrationInfo summarizes the loaded calibration for the status surface.
type CalibrationInfo struct {
	HasCalibration bool    `json:"has_calibration"`
	FocalLength    float64 `json:"focal_length,omitempty"`
	ImageWidth     int     `json:"image_width,omitempty"`
	ImageHeight    int     `json:"image_height,omitempty"`
}

// CalibrationInfo returns the estimator's calibration summary.
func (e *DistanceEstimator) CalibrationInfo() CalibrationInfo {
	if e.cal == nil {
		return CalibrationInfo{}
	}
	return CalibrationInfo{
		HasCalibration: true,
		FocalLength:    e.focal,
		ImageWidth:     e.cal.ImageWidth,
		ImageHeight:    e.cal.ImageHeight,
	}
}

// realHeightFor returns the real-world height in meters for a detector class.
func (e *DistanceEstimator) realHeightFor(class string) float64 {
	if e.cal != nil {
		if h, ok := e.cal.ClassHeights[class]; ok {
			return h
		}
	}
	if h, ok := defaultClassHeights[class]; ok {
		return h
	}
	return defaultObjectHeight
}

// Estimate computes the distance estimate for one detection bounding box.
// frameHeight is the full frame height in pixels. It never fails: an
// implausible calibrated result silently reverts to the pixel heuristic.
func (e *DistanceEstimator) Estimate(bbox BBox, frameHeight float64, class string, detConf float64) DistanceEstimation {
	var meters *float64
	if e.cal != nil && bbox.Height() > 0 {
		d := e.focal * e.realHeightFor(class) / bbox.Height()
		if d >= minPlausibleMeters && d <= maxPlausibleMeters {
			meters = &d
		}
	}

	pixels := e.pixelDistance(bbox, frameHeight)

	// Calibration counts only when the pinhole model actually held: a loaded
	// calibration whose result was rejected scores, flags, and brackets like
	// an uncalibrated estimate. The calibrated interval is around meters; the
	// uncalibrated interval is around the 0-100 normalized distance, with
	// margins twice as wide.
	if meters == nil {
		conf := estimateConfidence(bbox, detConf, false)
		margin := (1-conf)*0.4 + 0.2
		normalized := NormalizeDistance(pixels, frameHeight)
		return DistanceEstimation{
			Pixels:      pixels,
			Confidence:  conf,
			Calibrated:  false,
			Method:      MethodUncalibrated,
			IntervalMin: normalized * (1 - margin),
			IntervalMax: normalized * (1 + margin),
		}
	}

	conf := estimateConfidence(bbox, detConf, true)
	margin := (1-conf)*0.2 + 0.1
	return DistanceEstimation{
		Meters:      meters,
		Pixels:      pixels,
		Confidence:  conf,
		Calibrated:  true,
		Method:      MethodCalibrated,
		IntervalMin: *meters * (1 - margin),
		IntervalMax: *meters * (1 + margin),
	}
}

// EstimateBatch applies Estimate to each detection in order. Output ordering
// matches input ordering.
func (e *DistanceEstimator) EstimateBatch(detections []Detection, frameHeight float64) []DistanceEstimation {
	out := make([]DistanceEstimation, len(detections))
	for i, det := range detections {
		out[i] = e.Estimate(det.BBox, frameHeight, det.Class, det.Confidence)
	}
	return out
}

// pixelDistance is the uncalibrated heuristic: larger boxes and boxes nearer
// the frame bottom yield smaller values. The result is a unit-less ordering
// proxy, not a physical distance.
func (e *DistanceEstimator) pixelDistance(bbox BBox, frameHeight float64) float64 {
	if frameHeight <= 0 {
		return minPixelDistance
	}
	normArea := bbox.Area() / (frameHeight * frameHeight)
	normY := bbox.Y2 / frameHeight
	d := frameHeight * (1 - normArea*2) * (1 - normY*0.5)
	if d < minPixelDistance {
		d = minPixelDistance
	}
	return d
}

// estimateConfidence scores an estimate from the detector confidence, box
// size, and aspect-ratio plausibility, boosted when the pinhole model was
// used. Always in [0, 1].
func estimateConfidence(bbox BBox, detConf float64, calibrated bool) float64 {
	sizeFactor := 0.7 + 0.3*math.Min(bbox.Area()/10000.0, 1.0)

	aspect := bbox.Width() / math.Max(bbox.Height(), 1)
	aspectFactor := 0.8
	if aspect >= 0.3 && aspect <= 3.0 {
		aspectFactor = 1.0
	}

	calibFactor := 0.7
	if calibrated {
		calibFactor = 1.2
	}

	c := detConf * sizeFactor * aspectFactor * calibFactor
	return math.Max(0, math.Min(c, 1))
}

// NormalizeDistance maps a pixel-heuristic distance onto a 0-100 scale so
// uncalibrated values can be compared against configured thresholds.
func NormalizeDistance(pixels, frameHeight float64) float64 {
	if frameHeight <= 0 {
		return 100
	}
	n := pixels / (frameHeight * 2) * 100
	if n > 100 {
		n = 100
	}
	return n
}
