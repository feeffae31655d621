// Package config loads the drive.assist tuning file: the warning thresholds,
// arbiter failure budget, and performance limits that shape the per-frame
// decision engines. Fields use pointers so an omitted key is distinguishable
// from an explicit zero; every accessor falls back to the hard default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config/thresholds endpoint so the same JSON
// can be used for both startup configuration and runtime updates.
type TuningConfig struct {
	// Forward-collision warning params
	FCWSWarningDistance  *float64 `json:"fcws_warning_distance,omitempty"`
	FCWSCriticalDistance *float64 `json:"fcws_critical_distance,omitempty"`

	// Lane-departure / lane-keep params
	LDWSDepartureThreshold *float64 `json:"ldws_departure_threshold,omitempty"`
	LKASAssistThreshold    *float64 `json:"lkas_assist_threshold,omitempty"`

	// Lane-detector fallback params
	CVConfidenceThreshold    *float64 `json:"fallback_cv_confidence_threshold,omitempty"`
	MaxConsecutiveDLFailures *int     `json:"fallback_max_consecutive_dl_failures,omitempty"`

	// Performance governor params
	MaxLatencyMS *float64 `json:"performance_max_latency_ms,omitempty"`

	// Camera params
	CalibrationFile *string `json:"camera_calibration_file,omitempty"`

	// Display feature defaults (the governor's starting flags)
	BirdsEyeView *bool `json:"display_birds_eye_view,omitempty"`
	Animations   *bool `json:"display_animations,omitempty"`

	// Feed listener params
	FeedReceiveBuffer *int    `json:"feed_receive_buffer,omitempty"`
	FeedFrameTimeout  *string `json:"feed_frame_timeout,omitempty"` // duration string like "200ms"

	// Decision persistence params
	DecisionSampleEvery *int `json:"decision_sample_every,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field explicitly set
// to its hard default. Useful for writing a complete defaults file.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		FCWSWarningDistance:      ptrFloat64(30.0),
		FCWSCriticalDistance:     ptrFloat64(15.0),
		LDWSDepartureThreshold:   ptrFloat64(30.0),
		LKASAssistThreshold:      ptrFloat64(20.0),
		CVConfidenceThreshold:    ptrFloat64(0.6),
		MaxConsecutiveDLFailures: ptrInt(5),
		MaxLatencyMS:             ptrFloat64(100.0),
		CalibrationFile:          ptrString(""),
		BirdsEyeView:             ptrBool(true),
		Animations:               ptrBool(true),
		FeedReceiveBuffer:        ptrInt(4 << 20),
		FeedFrameTimeout:         ptrString("200ms"),
		DecisionSampleEvery:      ptrInt(10),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	warning := c.GetFCWSWarningDistance()
	critical := c.GetFCWSCriticalDistance()
	if critical <= 0 {
		return fmt.Errorf("fcws_critical_distance must be positive, got %f", critical)
	}
	if warning <= critical {
		return fmt.Errorf("fcws_warning_distance (%f) must exceed fcws_critical_distance (%f)",
			warning, critical)
	}

	if c.LDWSDepartureThreshold != nil && *c.LDWSDepartureThreshold <= 0 {
		return fmt.Errorf("ldws_departure_threshold must be positive, got %f", *c.LDWSDepartureThreshold)
	}

	if c.LKASAssistThreshold != nil && *c.LKASAssistThreshold <= 0 {
		return fmt.Errorf("lkas_assist_threshold must be positive, got %f", *c.LKASAssistThreshold)
	}

	if c.CVConfidenceThreshold != nil {
		if *c.CVConfidenceThreshold < 0 || *c.CVConfidenceThreshold > 1 {
			return fmt.Errorf("fallback_cv_confidence_threshold must be between 0 and 1, got %f",
				*c.CVConfidenceThreshold)
		}
	}

	if c.MaxConsecutiveDLFailures != nil && *c.MaxConsecutiveDLFailures < 1 {
		return fmt.Errorf("fallback_max_consecutive_dl_failures must be at least 1, got %d",
			*c.MaxConsecutiveDLFailures)
	}

	if c.MaxLatencyMS != nil && *c.MaxLatencyMS <= 0 {
		return fmt.Errorf("performance_max_latency_ms must be positive, got %f", *c.MaxLatencyMS)
	}

	if c.CalibrationFile != nil && *c.CalibrationFile != "" {
		if ext := filepath.Ext(*c.CalibrationFile); ext != ".json" {
			return fmt.Errorf("camera_calibration_file must have .json extension, got %q", ext)
		}
	}

	if c.FeedReceiveBuffer != nil && *c.FeedReceiveBuffer < 0 {
		return fmt.Errorf("feed_receive_buffer must be non-negative, got %d", *c.FeedReceiveBuffer)
	}

	// Validate FeedFrameTimeout can be parsed if set
	if c.FeedFrameTimeout != nil && *c.FeedFrameTimeout != "" {
		if _, err := time.ParseDuration(*c.FeedFrameTimeout); err != nil {
			return fmt.Errorf("invalid feed_frame_timeout '%s': %w", *c.FeedFrameTimeout, err)
		}
	}

	if c.DecisionSampleEvery != nil && *c.DecisionSampleEvery < 1 {
		return fmt.Errorf("decision_sample_every must be at least 1, got %d", *c.DecisionSampleEvery)
	}

	return nil
}

// GetFCWSWarningDistance returns the fcws_warning_distance value or the default.
func (c *TuningConfig) GetFCWSWarningDistance() float64 {
	if c.FCWSWarningDistance == nil {
		return 30.0 // default
	}
	return *c.FCWSWarningDistance
}

// GetFCWSCriticalDistance returns the fcws_critical_distance value or the default.
func (c *TuningConfig) GetFCWSCriticalDistance() float64 {
	if c.FCWSCriticalDistance == nil {
		return 15.0 // default
	}
	return *c.FCWSCriticalDistance
}

// GetLDWSDepartureThreshold returns the ldws_departure_threshold value or the default.
func (c *TuningConfig) GetLDWSDepartureThreshold() float64 {
	if c.LDWSDepartureThreshold == nil {
		return 30.0 // default
	}
	return *c.LDWSDepartureThreshold
}

// GetLKASAssistThreshold returns the lkas_assist_threshold value or the default.
func (c *TuningConfig) GetLKASAssistThreshold() float64 {
	if c.LKASAssistThreshold == nil {
		return 20.0 // default
	}
	return *c.LKASAssistThreshold
}

// GetCVConfidenceThreshold returns the fallback_cv_confidence_threshold value or the default.
func (c *TuningConfig) GetCVConfidenceThreshold() float64 {
	if c.CVConfidenceThreshold == nil {
		return 0.6 // default
	}
	return *c.CVConfidenceThreshold
}

// GetMaxConsecutiveDLFailures returns the fallback_max_consecutive_dl_failures value or the default.
func (c *TuningConfig) GetMaxConsecutiveDLFailures() int {
	if c.MaxConsecutiveDLFailures == nil {
		return 5 // default
	}
	return *c.MaxConsecutiveDLFailures
}

// GetMaxLatency returns the performance budget as a time.Duration.
func (c *TuningConfig) GetMaxLatency() time.Duration {
	if c.MaxLatencyMS == nil {
		return 100 * time.Millisecond // default
	}
	return time.Duration(*c.MaxLatencyMS * float64(time.Millisecond))
}

// GetCalibrationFile returns the camera_calibration_file value or "" when no
// calibration is configured. Running without calibration is a supported
// configuration, not an error.
func (c *TuningConfig) GetCalibrationFile() string {
	if c.CalibrationFile == nil {
		return ""
	}
	return *c.CalibrationFile
}

// GetBirdsEyeView returns the display_birds_eye_view value or the default.
func (c *TuningConfig) GetBirdsEyeView() bool {
	if c.BirdsEyeView == nil {
		return true // default
	}
	return *c.BirdsEyeView
}

// GetAnimations returns the display_animations value or the default.
func (c *TuningConfig) GetAnimations() bool {
	if c.Animations == nil {
		return true // default
	}
	return *c.Animations
}

// GetFeedReceiveBuffer returns the feed_receive_buffer value or the default.
func (c *TuningConfig) GetFeedReceiveBuffer() int {
	if c.FeedReceiveBuffer == nil {
		return 4 << 20 // default 4MB
	}
	return *c.FeedReceiveBuffer
}

// GetFeedFrameTimeout parses and returns the FeedFrameTimeout as a time.Duration.
func (c *TuningConfig) GetFeedFrameTimeout() time.Duration {
	if c.FeedFrameTimeout == nil || *c.FeedFrameTimeout == "" {
		return 200 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.FeedFrameTimeout)
	if err != nil {
		return 200 * time.Millisecond // default on parse error
	}
	return d
}

// GetDecisionSampleEvery returns the decision_sample_every value or the default.
func (c *TuningConfig) GetDecisionSampleEvery() int {
	if c.DecisionSampleEvery == nil {
		return 10 // default
	}
	return *c.DecisionSampleEvery
}
