package lanes

import (
	"fmt"

	"github.com/kestrel-auto/drive.assist/internal/adas"
)

// InferenceDetector adapts the learned lane model's per-frame output, which
// rides the frame metadata from the external inference runtime, to the
// Detector interface. The model itself never runs here: a missing or failed
// inference is an error the arbiter counts against the learned path.
type InferenceDetector struct{}

// NewInferenceDetector creates the learned-model detector adapter.
func NewInferenceDetector() *InferenceDetector {
	return &InferenceDetector{}
}

// Name identifies the strategy in logs and stats.
func (d *InferenceDetector) Name() string { return "learned" }

// DetectLanes converts the frame's lane inference to line form. The
// observation forms the model may emit (segments, polynomial coefficients,
// point samples) are all reduced to the shared two-endpoint representation.
func (d *InferenceDetector) DetectLanes(frame *adas.Frame) (Result, error) {
	if frame == nil || frame.Inference == nil {
		return Result{}, fmt.Errorf("no lane inference present")
	}
	inf := frame.Inference
	if !inf.OK {
		return Result{}, fmt.Errorf("inference runtime reported failure (confidence %.2f)", inf.Confidence)
	}

	h := float64(frame.Height)
	return Result{
		Left:       ObservationToLine(inf.Left, h),
		Right:      ObservationToLine(inf.Right, h),
		Confidence: inf.Confidence,
	}, nil
}
