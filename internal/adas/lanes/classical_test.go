package lanes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-auto/drive.assist/internal/adas"
)

// roadFrame paints a dark road with two bright stripes converging toward the
// lane horizon, wide enough that the edge chain has clean gradients to find.
func roadFrame(w, h int) *adas.Frame {
	luma := make([]uint8, w*h)
	for i := range luma {
		luma[i] = 30
	}

	paint := func(xBottom, xTop float64) {
		yTop := int(float64(h) * laneTopFraction)
		for y := yTop; y < h; y++ {
			t := float64(h-1-y) / float64(h-1-yTop)
			x := int(xBottom + t*(xTop-xBottom))
			for dx := -3; dx <= 3; dx++ {
				px := x + dx
				if px >= 0 && px < w {
					luma[y*w+px] = 255
				}
			}
		}
	}
	fw := float64(w)
	paint(fw*0.2, fw*0.45) // left boundary, negative image slope
	paint(fw*0.8, fw*0.55) // right boundary, positive image slope

	return &adas.Frame{Number: 1, Width: w, Height: h, Luma: luma}
}

func TestClassicalDetectsPaintedLanes(t *testing.T) {
	d := NewClassicalDetector()
	result, err := d.DetectLanes(roadFrame(320, 240))
	require.NoError(t, err)
	require.True(t, result.Resolved(), "expected painted stripes to resolve")

	if result.Left != nil && result.Right != nil {
		assert.Less(t, result.Left.X1, result.Right.X1,
			"left boundary must sit left of the right boundary at the frame bottom")
	}
	assert.Equal(t, 0.0, result.Confidence, "classical detector reports no confidence")
}

func TestClassicalEmptyFrames(t *testing.T) {
	d := NewClassicalDetector()

	cases := []*adas.Frame{
		nil,
		{},                                                  // metadata-only, no luma
		{Width: 320, Height: 240},                           // dimensions but no pixels
		{Width: 320, Height: 240, Luma: make([]uint8, 10)},  // truncated plane
		{Width: 0, Height: 240, Luma: make([]uint8, 1000)},  // degenerate width
		{Width: 320, Height: 0, Luma: make([]uint8, 1000)},  // degenerate height
	}
	for i, frame := range cases {
		result, err := d.DetectLanes(frame)
		require.NoError(t, err, "case %d", i)
		assert.False(t, result.Resolved(), "case %d", i)
	}
}

func TestClassicalFlatFrameResolvesNothing(t *testing.T) {
	luma := make([]uint8, 320*240)
	for i := range luma {
		luma[i] = 128
	}
	d := NewClassicalDetector()
	result, err := d.DetectLanes(&adas.Frame{Width: 320, Height: 240, Luma: luma})
	require.NoError(t, err)
	assert.False(t, result.Resolved(), "a featureless frame has no lanes to find")
}

func TestSeparateLanesBySlope(t *testing.T) {
	segs := []segment{
		{x1: 60, y1: 240, x2: 140, y2: 144},  // slope -1.2: left
		{x1: 260, y1: 240, x2: 180, y2: 144}, // slope +1.2: right
		{x1: 0, y1: 100, x2: 200, y2: 110},   // near-horizontal: dropped
	}
	left, right := separateLanes(segs, 240)
	require.NotNil(t, left)
	require.NotNil(t, right)
	assert.Less(t, left.X1, right.X1)
	assert.Equal(t, 240.0, left.Y1)
	assert.Equal(t, 144.0, left.Y2)
}

func TestSeparateLanesOneSided(t *testing.T) {
	segs := []segment{{x1: 60, y1: 240, x2: 140, y2: 144}}
	left, right := separateLanes(segs, 240)
	assert.NotNil(t, left)
	assert.Nil(t, right)
}

func TestAverageLinesEmpty(t *testing.T) {
	assert.Nil(t, averageLines(nil, 240))
}
