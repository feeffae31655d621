package lanes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-auto/drive.assist/internal/adas"
)

// scriptedDetector returns its queued results in order, repeating the last
// entry once the script runs out.
type scriptedDetector struct {
	name   string
	script []func() (Result, error)
	calls  int
}

func (d *scriptedDetector) DetectLanes(*adas.Frame) (Result, error) {
	i := d.calls
	if i >= len(d.script) {
		i = len(d.script) - 1
	}
	d.calls++
	return d.script[i]()
}

func (d *scriptedDetector) Name() string { return d.name }

func goodResult(conf float64) func() (Result, error) {
	return func() (Result, error) {
		return Result{
			Left:       &adas.LaneLine{X1: 100, Y1: 360, X2: 200, Y2: 216},
			Right:      &adas.LaneLine{X1: 540, Y1: 360, X2: 440, Y2: 216},
			Confidence: conf,
		}, nil
	}
}

func failResult() func() (Result, error) {
	return func() (Result, error) { return Result{}, errors.New("inference unavailable") }
}

func cvLanes() *scriptedDetector {
	return &scriptedDetector{name: "classical", script: []func() (Result, error){
		func() (Result, error) {
			return Result{Left: &adas.LaneLine{X1: 90, Y1: 360, X2: 210, Y2: 216}}, nil
		},
	}}
}

func TestArbiterUsesLearnedWhenHealthy(t *testing.T) {
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){goodResult(0.9)}}
	cv := cvLanes()
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cv)

	r := a.Detect(&adas.Frame{})
	require.NotNil(t, r.Left)
	assert.Equal(t, 100.0, r.Left.X1)
	assert.Equal(t, ModeDLActive, a.Mode())
	assert.Equal(t, 0, cv.calls)

	s := a.Stats()
	assert.Equal(t, int64(1), s.DLSuccessCount)
	assert.Equal(t, int64(0), s.CVFallbackCount)
	assert.Equal(t, 1.0, s.DLSuccessRate)
}

func TestArbiterFallsBackPerFrame(t *testing.T) {
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){failResult()}}
	cv := cvLanes()
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cv)

	r := a.Detect(&adas.Frame{})
	require.NotNil(t, r.Left)
	assert.Equal(t, 90.0, r.Left.X1, "frame must resolve through the fallback")
	assert.Equal(t, ModeDLDegraded, a.Mode())
	assert.Equal(t, 1, cv.calls)
}

func TestArbiterLowConfidenceCountsAsFailure(t *testing.T) {
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){goodResult(0.3)}}
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cvLanes())

	a.Detect(&adas.Frame{})
	assert.Equal(t, 1, a.Stats().ConsecutiveFailures)
}

func TestArbiterUnresolvedCountsAsFailure(t *testing.T) {
	empty := func() (Result, error) { return Result{Confidence: 0.9}, nil }
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){empty}}
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cvLanes())

	a.Detect(&adas.Frame{})
	assert.Equal(t, 1, a.Stats().ConsecutiveFailures)
}

func TestArbiterDisablesAfterBudget(t *testing.T) {
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){failResult()}}
	cv := cvLanes()
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cv)

	budget := DefaultArbiterConfig().MaxConsecutiveFailures
	for i := 0; i < budget; i++ {
		a.Detect(&adas.Frame{})
	}
	assert.Equal(t, ModeDLDisabled, a.Mode())
	assert.False(t, a.Enabled())
	assert.Equal(t, budget, dl.calls)

	// further frames never touch the learned detector
	a.Detect(&adas.Frame{})
	a.Detect(&adas.Frame{})
	assert.Equal(t, budget, dl.calls)
	assert.Equal(t, int64(budget+2), a.Stats().CVFallbackCount)
}

func TestArbiterSuccessResetsFailureRun(t *testing.T) {
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){
		failResult(), failResult(), failResult(), failResult(), goodResult(0.9),
	}}
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cvLanes())

	for i := 0; i < 5; i++ {
		a.Detect(&adas.Frame{})
	}
	assert.True(t, a.Enabled(), "a success inside the budget must keep the learned path alive")
	assert.Equal(t, 0, a.Stats().ConsecutiveFailures)
	assert.Equal(t, ModeDLActive, a.Mode())
}

func TestArbiterEnableReArms(t *testing.T) {
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){
		failResult(), failResult(), failResult(), failResult(), failResult(), goodResult(0.9),
	}}
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cvLanes())

	for i := 0; i < 5; i++ {
		a.Detect(&adas.Frame{})
	}
	require.False(t, a.Enabled())

	assert.True(t, a.Enable())
	assert.True(t, a.Enabled())
	assert.Equal(t, ModeDLActive, a.Mode())

	r := a.Detect(&adas.Frame{})
	require.NotNil(t, r.Left)
	assert.Equal(t, 100.0, r.Left.X1, "re-armed learned path must serve the frame")
}

func TestArbiterWithoutLearnedDetector(t *testing.T) {
	cv := cvLanes()
	a := NewFallbackArbiter(DefaultArbiterConfig(), nil, cv)

	r := a.Detect(&adas.Frame{})
	require.NotNil(t, r.Left)
	assert.Equal(t, ModeDLDisabled, a.Mode())
	assert.False(t, a.Enable(), "enable without a learned detector is a no-op")
}

func TestArbiterDisable(t *testing.T) {
	dl := &scriptedDetector{name: "learned", script: []func() (Result, error){goodResult(0.9)}}
	cv := cvLanes()
	a := NewFallbackArbiter(DefaultArbiterConfig(), dl, cv)

	a.Disable()
	a.Detect(&adas.Frame{})
	assert.Equal(t, 0, dl.calls)
	assert.Equal(t, 1, cv.calls)
}

func TestArbiterFallbackErrorResolvesNoLanes(t *testing.T) {
	cv := &scriptedDetector{name: "classical", script: []func() (Result, error){failResult()}}
	a := NewFallbackArbiter(DefaultArbiterConfig(), nil, cv)

	r := a.Detect(&adas.Frame{})
	assert.False(t, r.Resolved())
	assert.Equal(t, int64(1), a.Stats().CVFallbackCount)
}

func TestArbiterSetConfidenceThreshold(t *testing.T) {
	a := NewFallbackArbiter(DefaultArbiterConfig(), nil, cvLanes())
	require.NoError(t, a.SetConfidenceThreshold(0.8))
	assert.Equal(t, 0.8, a.ConfidenceThreshold())
	assert.Error(t, a.SetConfidenceThreshold(-0.1))
	assert.Error(t, a.SetConfidenceThreshold(1.5))
}
