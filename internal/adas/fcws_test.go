package adas

import "testing"

// carAt returns a forward-zone car detection whose box height produces the
// given pinhole distance under testCalibration (focal 700, car height 1.5m).
func carAt(meters float64) Detection {
	h := 700 * 1.5 / meters
	return Detection{
		Class:      "car",
		Confidence: 0.9,
		BBox:       BBox{X1: 280, Y1: 300 - h, X2: 360, Y2: 300},
	}
}

func newTestFCWS() *CollisionWarningEngine {
	return NewCollisionWarningEngine(DefaultCollisionConfig(), NewDistanceEstimator(testCalibration()))
}

func TestFCWSNoDetections(t *testing.T) {
	e := newTestFCWS()
	state, risky := e.Evaluate(nil, 640, 360)
	if state != FCWSSafe {
		t.Errorf("expected SAFE with no detections, got %s", state)
	}
	if len(risky) != 0 {
		t.Errorf("expected no risky detections, got %d", len(risky))
	}
}

func TestFCWSThresholds(t *testing.T) {
	cases := []struct {
		meters float64
		want   FCWSState
	}{
		{50, FCWSSafe},
		{29, FCWSWarning},
		{16, FCWSWarning},
		{10, FCWSCritical},
	}
	for _, c := range cases {
		e := newTestFCWS()
		state, risky := e.Evaluate([]Detection{carAt(c.meters)}, 640, 360)
		if state != c.want {
			t.Errorf("car at %.0fm: expected %s, got %s", c.meters, c.want, state)
		}
		if len(risky) != 1 {
			t.Errorf("car at %.0fm: expected 1 risky detection, got %d", c.meters, len(risky))
		}
	}
}

func TestFCWSForwardZoneFilter(t *testing.T) {
	e := newTestFCWS()

	// same near box shifted to the left edge, outside the central band
	det := carAt(10)
	w := det.BBox.Width()
	det.BBox.X1 = 0
	det.BBox.X2 = w

	state, risky := e.Evaluate([]Detection{det}, 640, 360)
	if state != FCWSSafe {
		t.Errorf("expected edge detection ignored, got %s", state)
	}
	if len(risky) != 0 {
		t.Errorf("expected no risky detections, got %d", len(risky))
	}
}

func TestFCWSIgnoresNonForwardClasses(t *testing.T) {
	e := newTestFCWS()
	det := carAt(10)
	det.Class = "traffic_light"
	state, risky := e.Evaluate([]Detection{det}, 640, 360)
	if state != FCWSSafe || len(risky) != 0 {
		t.Errorf("expected non-forward class ignored, got %s with %d risky", state, len(risky))
	}
}

func TestFCWSNearestFirst(t *testing.T) {
	e := newTestFCWS()
	_, risky := e.Evaluate([]Detection{carAt(40), carAt(12), carAt(25)}, 640, 360)
	if len(risky) != 3 {
		t.Fatalf("expected 3 risky detections, got %d", len(risky))
	}
	for i := 1; i < len(risky); i++ {
		if *risky[i-1].Distance.Meters > *risky[i].Distance.Meters {
			t.Fatalf("risky detections not sorted nearest first: %.1f before %.1f",
				*risky[i-1].Distance.Meters, *risky[i].Distance.Meters)
		}
	}
}

func TestFCWSUncalibratedUsesNormalizedScale(t *testing.T) {
	e := NewCollisionWarningEngine(DefaultCollisionConfig(), NewDistanceEstimator(nil))

	// a box filling most of the lower frame normalizes well under the
	// warning threshold
	near := Detection{
		Class:      "car",
		Confidence: 0.9,
		BBox:       BBox{X1: 120, Y1: 100, X2: 520, Y2: 355},
	}
	state, risky := e.Evaluate([]Detection{near}, 640, 360)
	if state == FCWSSafe {
		t.Errorf("expected warning for a near uncalibrated box, got %s", state)
	}
	if len(risky) != 1 || risky[0].Distance.Meters != nil {
		t.Fatalf("expected one pixel-only estimate")
	}
}

func TestFCWSStatsAndState(t *testing.T) {
	e := newTestFCWS()
	e.Evaluate([]Detection{carAt(10)}, 640, 360)
	e.Evaluate([]Detection{carAt(20)}, 640, 360)
	e.Evaluate(nil, 640, 360)

	s := e.Stats()
	if s.Evaluations != 3 {
		t.Errorf("expected 3 evaluations, got %d", s.Evaluations)
	}
	if s.Criticals != 1 || s.Warnings != 1 {
		t.Errorf("expected 1 critical and 1 warning, got %d/%d", s.Criticals, s.Warnings)
	}
	if e.State() != FCWSSafe || s.State != FCWSSafe {
		t.Errorf("expected final state SAFE, got %s", e.State())
	}
}

func TestFCWSSetThresholds(t *testing.T) {
	e := newTestFCWS()
	if err := e.SetThresholds(50, 20); err != nil {
		t.Errorf("valid thresholds rejected: %v", err)
	}
	if w, c := e.Thresholds(); w != 50 || c != 20 {
		t.Errorf("thresholds not applied: %.1f/%.1f", w, c)
	}

	if err := e.SetThresholds(10, 20); err == nil {
		t.Error("expected error for warning <= critical")
	}
	if err := e.SetThresholds(10, 0); err == nil {
		t.Error("expected error for zero critical")
	}
	if w, c := e.Thresholds(); w != 50 || c != 20 {
		t.Errorf("rejected thresholds must not apply: %.1f/%.1f", w, c)
	}
}
