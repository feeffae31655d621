package adas

import "testing"

func evalDeparture(e *LaneDepartureEngine, offset float64) LDWSState {
	center := 320.0
	return e.Evaluate(&center, &offset, 640)
}

func TestLDWSUnresolvedLanesReadSafe(t *testing.T) {
	e := NewLaneDepartureEngine(DefaultDepartureConfig())

	// drive into a warning, then lose the lanes
	evalDeparture(e, 50)
	if e.State() != LDWSLeftWarning {
		t.Fatalf("expected LEFT_WARNING, got %s", e.State())
	}
	if state := e.Evaluate(nil, nil, 640); state != LDWSSafe {
		t.Errorf("expected SAFE with unresolved lanes, got %s", state)
	}
	if e.Stats().DepartureCount != 0 {
		t.Errorf("expected departure run reset, got %d", e.Stats().DepartureCount)
	}
}

func TestLDWSDirections(t *testing.T) {
	cases := []struct {
		offset float64
		want   LDWSState
	}{
		{0, LDWSSafe},
		{30, LDWSSafe}, // exactly at threshold is not a departure
		{31, LDWSLeftWarning},
		{-30, LDWSSafe},
		{-31, LDWSRightWarning},
	}
	for _, c := range cases {
		e := NewLaneDepartureEngine(DefaultDepartureConfig())
		if got := evalDeparture(e, c.offset); got != c.want {
			t.Errorf("offset %.0f: expected %s, got %s", c.offset, c.want, got)
		}
	}
}

func TestLDWSDepartureRunCounting(t *testing.T) {
	e := NewLaneDepartureEngine(DefaultDepartureConfig())

	evalDeparture(e, 40)
	evalDeparture(e, 45)
	evalDeparture(e, 50)
	if s := e.Stats(); s.DepartureCount != 3 || s.Warnings != 3 {
		t.Errorf("expected run 3 / warnings 3, got %d / %d", s.DepartureCount, s.Warnings)
	}

	evalDeparture(e, 0)
	if s := e.Stats(); s.DepartureCount != 0 {
		t.Errorf("expected run reset on safe frame, got %d", s.DepartureCount)
	}
	if s := e.Stats(); s.Warnings != 3 {
		t.Errorf("warnings total must survive reset, got %d", s.Warnings)
	}
}

func TestLDWSSetThreshold(t *testing.T) {
	e := NewLaneDepartureEngine(DefaultDepartureConfig())
	if err := e.SetThreshold(45); err != nil {
		t.Errorf("valid threshold rejected: %v", err)
	}
	if e.Threshold() != 45 {
		t.Errorf("threshold not applied: %.1f", e.Threshold())
	}
	if got := evalDeparture(e, 40); got != LDWSSafe {
		t.Errorf("expected SAFE under the new threshold, got %s", got)
	}

	if err := e.SetThreshold(0); err == nil {
		t.Error("expected error for zero threshold")
	}
	if err := e.SetThreshold(-5); err == nil {
		t.Error("expected error for negative threshold")
	}
}
