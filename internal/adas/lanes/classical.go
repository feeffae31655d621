package lanes

import "github.com/kestrel-auto/drive.assist/internal/adas"

// Classical detector tuning. These track the conventional single-camera lane
// pipeline: Canny hysteresis thresholds, Hough vote and segment limits, and
// the minimum slope that separates lane candidates from horizon clutter.
const (
	cannyLowThreshold  = 50
	cannyHighThreshold = 150

	houghVoteThreshold = 50
	houghMinLineLength = 50
	houghMaxLineGap    = 100

	minLaneSlope = 0.3
)

// ClassicalDetector finds lane boundaries directly on the frame's luma plane
// with edge detection and a line-segment transform. It has no model to lose
// and no confidence score: it either resolves boundaries or reports none,
// and never returns an error.
type ClassicalDetector struct{}

// NewClassicalDetector creates the classical fallback detector.
func NewClassicalDetector() *ClassicalDetector {
	return &ClassicalDetector{}
}

// Name identifies the strategy in logs and stats.
func (d *ClassicalDetector) Name() string { return "classical" }

// DetectLanes runs the edge-and-segment chain on the frame's luma plane.
// Frames without pixel data resolve no lanes.
func (d *ClassicalDetector) DetectLanes(frame *adas.Frame) (Result, error) {
	if frame == nil || frame.Luma == nil || frame.Width <= 0 || frame.Height <= 0 {
		return Result{}, nil
	}
	if len(frame.Luma) < frame.Width*frame.Height {
		return Result{}, nil
	}

	src := &plane{w: frame.Width, h: frame.Height, pix: frame.Luma}
	blurred := gaussianBlur5(src)
	edges := cannyEdges(blurred, cannyLowThreshold, cannyHighThreshold)
	applyTrapezoidMask(edges)
	segments := houghSegments(edges, houghVoteThreshold, houghMinLineLength, houghMaxLineGap)

	left, right := separateLanes(segments, float64(frame.Height))
	return Result{Left: left, Right: right}, nil
}

// separateLanes partitions candidate segments by slope sign (negative slope
// in image coordinates is the left boundary), discards near-horizontal
// segments, and averages each side into one representative line.
func separateLanes(segments []segment, frameHeight float64) (left, right *adas.LaneLine) {
	var leftSegs, rightSegs []segment
	for _, s := range segments {
		slope, ok := s.slope()
		if !ok {
			continue
		}
		if slope < minLaneSlope && slope > -minLaneSlope {
			continue
		}
		if slope < 0 {
			leftSegs = append(leftSegs, s)
		} else {
			rightSegs = append(rightSegs, s)
		}
	}
	return averageLines(leftSegs, frameHeight), averageLines(rightSegs, frameHeight)
}

// averageLines collapses one side's segments into a single line by averaging
// slope and intercept, then spans it from the frame bottom up to the lane
// horizon.
func averageLines(segments []segment, frameHeight float64) *adas.LaneLine {
	if len(segments) == 0 {
		return nil
	}

	var slopeSum, interceptSum float64
	n := 0
	for _, s := range segments {
		slope, ok := s.slope()
		if !ok {
			continue
		}
		slopeSum += slope
		interceptSum += s.y1 - slope*s.x1
		n++
	}
	if n == 0 {
		return nil
	}

	avgSlope := slopeSum / float64(n)
	avgIntercept := interceptSum / float64(n)
	if avgSlope == 0 {
		return nil
	}

	yBottom := frameHeight
	yTop := frameHeight * laneTopFraction
	return &adas.LaneLine{
		X1: (yBottom - avgIntercept) / avgSlope, Y1: yBottom,
		X2: (yTop - avgIntercept) / avgSlope, Y2: yTop,
	}
}
