package adas

import (
	"math"
	"testing"
)

func evalAssist(a *LaneKeepAssist, offset float64) (LKASState, float64) {
	center := 320.0
	return a.Evaluate(&center, &offset, 640)
}

func TestLKASDeadband(t *testing.T) {
	a := NewLaneKeepAssist(DefaultAssistConfig())

	for _, offset := range []float64{0, 15, -15, 20, -20} {
		state, angle := evalAssist(a, offset)
		if state != LKASStandby || angle != 0 {
			t.Errorf("offset %.0f: expected STANDBY/0, got %s/%.2f", offset, state, angle)
		}
	}
}

func TestLKASProportionalAngle(t *testing.T) {
	a := NewLaneKeepAssist(DefaultAssistConfig())

	// 40px on a 640px frame: 40 / 320 x 30 = 3.75 degrees
	state, angle := evalAssist(a, 40)
	if state != LKASActive {
		t.Fatalf("expected ACTIVE, got %s", state)
	}
	if math.Abs(angle-3.75) > 1e-9 {
		t.Errorf("expected angle 3.75, got %.4f", angle)
	}

	// mirrored drift steers the other way
	_, angle = evalAssist(a, -40)
	if math.Abs(angle+3.75) > 1e-9 {
		t.Errorf("expected angle -3.75, got %.4f", angle)
	}
}

func TestLKASUnresolvedLanesStandby(t *testing.T) {
	a := NewLaneKeepAssist(DefaultAssistConfig())
	evalAssist(a, 100)
	if a.State() != LKASActive {
		t.Fatal("expected ACTIVE before dropout")
	}

	state, angle := a.Evaluate(nil, nil, 640)
	if state != LKASStandby || angle != 0 {
		t.Errorf("expected STANDBY/0 with unresolved lanes, got %s/%.2f", state, angle)
	}
}

func TestLKASActivationCounting(t *testing.T) {
	a := NewLaneKeepAssist(DefaultAssistConfig())

	// one sustained engagement counts once
	evalAssist(a, 50)
	evalAssist(a, 60)
	evalAssist(a, 55)
	evalAssist(a, 0)
	evalAssist(a, 45)

	if s := a.Stats(); s.Activations != 2 {
		t.Errorf("expected 2 activations, got %d", s.Activations)
	}
}

func TestLKASSetThreshold(t *testing.T) {
	a := NewLaneKeepAssist(DefaultAssistConfig())
	if err := a.SetThreshold(50); err != nil {
		t.Errorf("valid threshold rejected: %v", err)
	}
	if state, _ := evalAssist(a, 40); state != LKASStandby {
		t.Errorf("expected STANDBY under widened deadband, got %s", state)
	}
	if err := a.SetThreshold(0); err == nil {
		t.Error("expected error for zero threshold")
	}
}
