package lanes

import "math"

// segment is a detected line segment in pixel coordinates.
type segment struct {
	x1, y1, x2, y2 float64
}

func (s segment) length() float64 {
	return math.Hypot(s.x2-s.x1, s.y2-s.y1)
}

// slope returns dy/dx in image coordinates (y grows downward) and whether it
// is defined.
func (s segment) slope() (float64, bool) {
	if s.x2 == s.x1 {
		return 0, false
	}
	return (s.y2 - s.y1) / (s.x2 - s.x1), true
}

// houghSegments extracts line segments from a binary edge plane using a
// Hough vote accumulator (rho resolution 1px, theta resolution 1 degree)
// followed by a walk along each voted line collecting edge-pixel runs.
// Runs shorter than minLength are dropped; gaps up to maxGap are bridged.
func houghSegments(edges *plane, voteThreshold, minLength, maxGap int) []segment {
	w, h := edges.w, edges.h
	const thetaBins = 180
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	rhoBins := 2*diag + 1

	sins := make([]float64, thetaBins)
	coss := make([]float64, thetaBins)
	for t := 0; t < thetaBins; t++ {
		theta := float64(t) * math.Pi / thetaBins
		sins[t] = math.Sin(theta)
		coss[t] = math.Cos(theta)
	}

	votes := make([]int, thetaBins*rhoBins)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.at(x, y) == 0 {
				continue
			}
			for t := 0; t < thetaBins; t++ {
				rho := int(math.Round(float64(x)*coss[t]+float64(y)*sins[t])) + diag
				votes[t*rhoBins+rho]++
			}
		}
	}

	var segments []segment
	for t := 0; t < thetaBins; t++ {
		for r := 0; r < rhoBins; r++ {
			v := votes[t*rhoBins+r]
			if v < voteThreshold || !isLocalMax(votes, thetaBins, rhoBins, t, r) {
				continue
			}
			segments = append(segments,
				walkLine(edges, float64(r-diag), coss[t], sins[t], minLength, maxGap)...)
		}
	}
	return segments
}

// isLocalMax reports whether the accumulator cell dominates its 3x3
// neighborhood, suppressing duplicate near-identical lines.
func isLocalMax(votes []int, thetaBins, rhoBins, t, r int) bool {
	v := votes[t*rhoBins+r]
	for dt := -1; dt <= 1; dt++ {
		for dr := -1; dr <= 1; dr++ {
			nt, nr := t+dt, r+dr
			if nt < 0 || nt >= thetaBins || nr < 0 || nr >= rhoBins {
				continue
			}
			if votes[nt*rhoBins+nr] > v {
				return false
			}
		}
	}
	return true
}

// walkLine traces the line x*cos+y*sin = rho across the plane and collects
// maximal edge-pixel runs along it.
func walkLine(edges *plane, rho, cosT, sinT float64, minLength, maxGap int) []segment {
	// Base point on the line (foot of the perpendicular from the origin)
	// and its unit direction. Walking +-diag from the base covers every
	// in-plane pixel on the line.
	bx, by := rho*cosT, rho*sinT
	dx, dy := -sinT, cosT
	diag := math.Ceil(math.Hypot(float64(edges.w), float64(edges.h)))
	tMin, tMax := -diag, diag

	var segments []segment
	runStart := math.NaN()
	lastHit := 0.0
	flush := func() {
		if !math.IsNaN(runStart) {
			s := segment{
				x1: bx + runStart*dx, y1: by + runStart*dy,
				x2: bx + lastHit*dx, y2: by + lastHit*dy,
			}
			if s.length() >= float64(minLength) {
				segments = append(segments, s)
			}
			runStart = math.NaN()
		}
	}

	for t := tMin; t <= tMax; t++ {
		x := int(math.Round(bx + t*dx))
		y := int(math.Round(by + t*dy))
		if x < 0 || y < 0 || x >= edges.w || y >= edges.h {
			continue
		}
		if edges.at(x, y) != 0 {
			if math.IsNaN(runStart) {
				runStart = t
			}
			lastHit = t
		} else if !math.IsNaN(runStart) && t-lastHit > float64(maxGap) {
			flush()
		}
	}
	flush()
	return segments
}
