package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)

	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClockFrozen(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewMockClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}
	// no real time passes for a mock clock
	if d := clock.Since(start); d != 0 {
		t.Errorf("Since(start) = %v, want 0", d)
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := NewMockClock(start)

	clock.Advance(150 * time.Millisecond)
	if d := clock.Since(start); d != 150*time.Millisecond {
		t.Errorf("Since(start) = %v, want 150ms", d)
	}

	clock.Advance(time.Second)
	want := start.Add(150*time.Millisecond + time.Second)
	if !clock.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", clock.Now(), want)
	}
}

func TestMockClockSet(t *testing.T) {
	clock := NewMockClock(time.Unix(1000, 0))
	target := time.Unix(2000, 0)

	clock.Set(target)
	if !clock.Now().Equal(target) {
		t.Errorf("Now() = %v, want %v", clock.Now(), target)
	}
}

func TestClockInterfaceSatisfied(t *testing.T) {
	var _ Clock = RealClock{}
	var _ Clock = NewMockClock(time.Unix(0, 0))
}
