package adas

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/kestrel-auto/drive.assist/internal/fsutil"
)

// Calibration holds camera intrinsics and per-class real-world heights, as
// produced by the offline calibration procedure. The file is optional:
// running without one is a normal configuration and the estimator falls back
// to its heuristic pixel path.
type Calibration struct {
	// CameraMatrix is the 3x3 intrinsic matrix, row-major:
	// [fx 0 cx; 0 fy cy; 0 0 1].
	CameraMatrix [3][3]float64 `json:"camera_matrix"`

	// DistCoeffs are the lens distortion coefficients. They are carried for
	// the capture unit's undistortion step and unused here.
	DistCoeffs []float64 `json:"dist_coeffs,omitempty"`

	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`

	// ClassHeights overrides the built-in real-world object heights
	// (meters) for specific detector classes.
	ClassHeights map[string]float64 `json:"class_heights,omitempty"`
}

// FocalLength returns the mean of the x and y focal lengths in pixels.
func (c *Calibration) FocalLength() float64 {
	return (c.CameraMatrix[0][0] + c.CameraMatrix[1][1]) / 2
}

// Validate checks that the calibration is usable for distance estimation.
func (c *Calibration) Validate() error {
	if c.CameraMatrix[0][0] <= 0 || c.CameraMatrix[1][1] <= 0 {
		return fmt.Errorf("camera matrix focal lengths must be positive, got fx=%f fy=%f",
			c.CameraMatrix[0][0], c.CameraMatrix[1][1])
	}
	if c.ImageWidth < 0 || c.ImageHeight < 0 {
		return fmt.Errorf("image dimensions must be non-negative, got %dx%d",
			c.ImageWidth, c.ImageHeight)
	}
	for class, h := range c.ClassHeights {
		if h <= 0 {
			return fmt.Errorf("class height for %q must be positive, got %f", class, h)
		}
	}
	return nil
}

// maxCalibrationFileSize caps calibration files at 1MB.
const maxCalibrationFileSize = 1 * 1024 * 1024

// LoadCalibration loads a Calibration from a JSON file. The file must have a
// .json extension and be under the max file size.
func LoadCalibration(fsys fsutil.FileSystem, path string) (*Calibration, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("calibration file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat calibration file: %w", err)
	}
	if fileInfo.Size() > maxCalibrationFileSize {
		return nil, fmt.Errorf("calibration file too large: %d bytes (max %d)",
			fileInfo.Size(), maxCalibrationFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	cal := &Calibration{}
	if err := json.Unmarshal(data, cal); err != nil {
		return nil, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}

	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}

	return cal, nil
}
