package lanes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-auto/drive.assist/internal/adas"
)

func TestObservationToLineSegment(t *testing.T) {
	seg := &adas.LaneLine{X1: 100, Y1: 360, X2: 200, Y2: 216}
	line := ObservationToLine(&adas.LaneObservation{Segment: seg}, 360)
	require.NotNil(t, line)
	assert.Equal(t, *seg, *line)

	// the conversion must copy, not alias
	line.X1 = 0
	assert.Equal(t, 100.0, seg.X1)
}

func TestObservationToLineCoeffs(t *testing.T) {
	// x = -0.5y + 300: x(360)=120, x(216)=192
	obs := &adas.LaneObservation{Coeffs: []float64{-0.5, 300}}
	line := ObservationToLine(obs, 360)
	require.NotNil(t, line)
	assert.InDelta(t, 120, line.X1, 1e-9)
	assert.Equal(t, 360.0, line.Y1)
	assert.InDelta(t, 192, line.X2, 1e-9)
	assert.Equal(t, 216.0, line.Y2)
}

func TestObservationToLinePoints(t *testing.T) {
	// samples along x = -0.5y + 300
	obs := &adas.LaneObservation{Points: []adas.LanePoint{
		{X: 120, Y: 360},
		{X: 150, Y: 300},
		{X: 180, Y: 240},
		{X: 192, Y: 216},
	}}
	line := ObservationToLine(obs, 360)
	require.NotNil(t, line)
	assert.InDelta(t, 120, line.X1, 0.5)
	assert.InDelta(t, 192, line.X2, 0.5)
}

func TestObservationToLineTwoPointsLinearFit(t *testing.T) {
	obs := &adas.LaneObservation{Points: []adas.LanePoint{
		{X: 120, Y: 360},
		{X: 192, Y: 216},
	}}
	line := ObservationToLine(obs, 360)
	require.NotNil(t, line)
	assert.InDelta(t, 120, line.X1, 1e-6)
	assert.InDelta(t, 192, line.X2, 1e-6)
}

func TestObservationToLineEmpty(t *testing.T) {
	assert.Nil(t, ObservationToLine(nil, 360))
	assert.Nil(t, ObservationToLine(&adas.LaneObservation{}, 360))
	assert.Nil(t, ObservationToLine(&adas.LaneObservation{Points: []adas.LanePoint{{X: 1, Y: 1}}}, 360))
	// quartic coefficients are outside the supported forms
	assert.Nil(t, ObservationToLine(&adas.LaneObservation{Coeffs: []float64{1, 2, 3, 4, 5}}, 360))
}

func TestLineToCoeffs(t *testing.T) {
	coeffs, err := LineToCoeffs(adas.LaneLine{X1: 120, Y1: 360, X2: 192, Y2: 216})
	require.NoError(t, err)
	require.Len(t, coeffs, 2)
	assert.InDelta(t, -0.5, coeffs[0], 1e-9)
	assert.InDelta(t, 300, coeffs[1], 1e-9)

	_, err = LineToCoeffs(adas.LaneLine{X1: 0, Y1: 100, X2: 50, Y2: 100})
	assert.Error(t, err)
}

func TestPolyfitQuadratic(t *testing.T) {
	// x = 0.001y^2 - y + 400
	f := func(y float64) float64 { return 0.001*y*y - y + 400 }
	var ys, xs []float64
	for y := 100.0; y <= 360; y += 20 {
		ys = append(ys, y)
		xs = append(xs, f(y))
	}
	coeffs, err := polyfit(ys, xs, 2)
	require.NoError(t, err)
	require.Len(t, coeffs, 3)
	for _, y := range []float64{150, 250, 350} {
		assert.InDelta(t, f(y), polyval(coeffs, y), 1e-6)
	}
}

func TestPolyfitInsufficientPoints(t *testing.T) {
	_, err := polyfit([]float64{1, 2}, []float64{3, 4}, 2)
	assert.Error(t, err)
	_, err = polyfit([]float64{1, 2, 3}, []float64{3, 4}, 1)
	assert.Error(t, err)
}

func TestComputeGeometryCenteredVehicle(t *testing.T) {
	r := Result{
		Left:  &adas.LaneLine{X1: 120, Y1: 360, X2: 200, Y2: 216},
		Right: &adas.LaneLine{X1: 520, Y1: 360, X2: 440, Y2: 216},
	}
	geo := ComputeGeometry(r, 640)
	require.True(t, geo.Complete())
	require.NotNil(t, geo.CenterX)
	require.NotNil(t, geo.Offset)
	assert.Equal(t, 320.0, *geo.CenterX)
	assert.Equal(t, 0.0, *geo.Offset)
}

func TestComputeGeometryOffsetSign(t *testing.T) {
	// lane center right of frame center: vehicle sits left, offset positive
	r := Result{
		Left:  &adas.LaneLine{X1: 200, Y1: 360, X2: 260, Y2: 216},
		Right: &adas.LaneLine{X1: 600, Y1: 360, X2: 520, Y2: 216},
	}
	geo := ComputeGeometry(r, 640)
	require.NotNil(t, geo.Offset)
	assert.Equal(t, 80.0, *geo.Offset)
}

func TestComputeGeometryIncomplete(t *testing.T) {
	r := Result{Left: &adas.LaneLine{X1: 120, Y1: 360, X2: 200, Y2: 216}}
	geo := ComputeGeometry(r, 640)
	assert.False(t, geo.Complete())
	assert.Nil(t, geo.CenterX)
	assert.Nil(t, geo.Offset)
	assert.NotNil(t, geo.Left)
}
