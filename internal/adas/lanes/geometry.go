package lanes

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kestrel-auto/drive.assist/internal/adas"
)

// laneTopFraction is how far up the frame a resolved lane line extends.
// Lines span from the frame bottom to this fraction of the height.
const laneTopFraction = 0.6

// ObservationToLine converts a learned-model lane observation, in whichever
// form the model emitted it, to the two-endpoint representation used
// downstream. Returns nil when the observation cannot be converted.
func ObservationToLine(obs *adas.LaneObservation, frameHeight float64) *adas.LaneLine {
	if obs == nil {
		return nil
	}
	yBottom := frameHeight
	yTop := frameHeight * laneTopFraction

	switch {
	case obs.Segment != nil:
		seg := *obs.Segment
		return &seg

	case len(obs.Coeffs) > 0 && len(obs.Coeffs) <= 3:
		return &adas.LaneLine{
			X1: polyval(obs.Coeffs, yBottom), Y1: yBottom,
			X2: polyval(obs.Coeffs, yTop), Y2: yTop,
		}

	case len(obs.Points) >= 2:
		ys := make([]float64, len(obs.Points))
		xs := make([]float64, len(obs.Points))
		for i, p := range obs.Points {
			ys[i] = p.Y
			xs[i] = p.X
		}
		// Quadratic fit over y, linear when the points cannot support it.
		degree := 2
		if len(obs.Points) < 3 {
			degree = 1
		}
		coeffs, err := polyfit(ys, xs, degree)
		if err != nil && degree == 2 {
			coeffs, err = polyfit(ys, xs, 1)
		}
		if err != nil {
			return nil
		}
		return &adas.LaneLine{
			X1: polyval(coeffs, yBottom), Y1: yBottom,
			X2: polyval(coeffs, yTop), Y2: yTop,
		}
	}
	return nil
}

// LineToCoeffs converts a two-endpoint line to linear polynomial
// coefficients x = f(y), highest power first.
func LineToCoeffs(line adas.LaneLine) ([]float64, error) {
	if line.Y1 == line.Y2 {
		return nil, fmt.Errorf("degenerate line: both endpoints at y=%f", line.Y1)
	}
	slope := (line.X2 - line.X1) / (line.Y2 - line.Y1)
	intercept := line.X1 - slope*line.Y1
	return []float64{slope, intercept}, nil
}

// polyval evaluates a polynomial with coefficients ordered highest power
// first at the given point.
func polyval(coeffs []float64, y float64) float64 {
	v := 0.0
	for _, c := range coeffs {
		v = v*y + c
	}
	return v
}

// polyfit computes the least-squares polynomial of the given degree mapping
// ys to xs, returning coefficients highest power first.
func polyfit(ys, xs []float64, degree int) ([]float64, error) {
	if len(ys) != len(xs) {
		return nil, fmt.Errorf("mismatched sample lengths: %d vs %d", len(ys), len(xs))
	}
	if len(ys) < degree+1 {
		return nil, fmt.Errorf("need at least %d points for degree %d, got %d", degree+1, degree, len(ys))
	}

	a := mat.NewDense(len(ys), degree+1, nil)
	for i, y := range ys {
		v := 1.0
		for j := degree; j >= 0; j-- {
			a.Set(i, j, v)
			v *= y
		}
	}
	b := mat.NewVecDense(len(xs), xs)

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		return nil, fmt.Errorf("polynomial fit failed: %w", err)
	}

	coeffs := make([]float64, degree+1)
	for i := range coeffs {
		coeffs[i] = sol.AtVec(i)
	}
	return coeffs, nil
}

// ComputeGeometry assembles the per-frame lane picture from the two resolved
// boundaries. Lane center and vehicle offset need both boundaries; offset is
// lane center minus vehicle center, so positive means the vehicle sits left
// of lane center.
func ComputeGeometry(result Result, frameWidth float64) adas.LaneGeometry {
	geo := adas.LaneGeometry{Left: result.Left, Right: result.Right}
	if result.Left == nil || result.Right == nil {
		return geo
	}
	center := (result.Left.X1 + result.Right.X1) / 2
	offset := center - frameWidth/2
	geo.CenterX = &center
	geo.Offset = &offset
	return geo
}
