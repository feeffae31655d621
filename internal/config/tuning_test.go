package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.FCWSWarningDistance == nil || *cfg.FCWSWarningDistance != 30.0 {
		t.Errorf("Expected FCWSWarningDistance 30.0, got %v", cfg.FCWSWarningDistance)
	}
	if cfg.FCWSCriticalDistance == nil || *cfg.FCWSCriticalDistance != 15.0 {
		t.Errorf("Expected FCWSCriticalDistance 15.0, got %v", cfg.FCWSCriticalDistance)
	}
	if cfg.MaxConsecutiveDLFailures == nil || *cfg.MaxConsecutiveDLFailures != 5 {
		t.Errorf("Expected MaxConsecutiveDLFailures 5, got %v", cfg.MaxConsecutiveDLFailures)
	}
	if cfg.FeedFrameTimeout == nil || *cfg.FeedFrameTimeout != "200ms" {
		t.Errorf("Expected FeedFrameTimeout '200ms', got %v", cfg.FeedFrameTimeout)
	}

	// Test getter methods
	if cfg.GetLDWSDepartureThreshold() != 30.0 {
		t.Errorf("GetLDWSDepartureThreshold() = %f, want 30.0", cfg.GetLDWSDepartureThreshold())
	}
	if cfg.GetLKASAssistThreshold() != 20.0 {
		t.Errorf("GetLKASAssistThreshold() = %f, want 20.0", cfg.GetLKASAssistThreshold())
	}
	if cfg.GetCVConfidenceThreshold() != 0.6 {
		t.Errorf("GetCVConfidenceThreshold() = %f, want 0.6", cfg.GetCVConfidenceThreshold())
	}
	if cfg.GetMaxLatency() != 100*time.Millisecond {
		t.Errorf("GetMaxLatency() = %v, want 100ms", cfg.GetMaxLatency())
	}
	if !cfg.GetBirdsEyeView() || !cfg.GetAnimations() {
		t.Error("display features should default to enabled")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultTuningConfig should validate, got %v", err)
	}
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	// All accessors must return the hard defaults on a nil-field config.
	if cfg.GetFCWSWarningDistance() != 30.0 {
		t.Errorf("GetFCWSWarningDistance() = %f, want 30.0", cfg.GetFCWSWarningDistance())
	}
	if cfg.GetFCWSCriticalDistance() != 15.0 {
		t.Errorf("GetFCWSCriticalDistance() = %f, want 15.0", cfg.GetFCWSCriticalDistance())
	}
	if cfg.GetMaxConsecutiveDLFailures() != 5 {
		t.Errorf("GetMaxConsecutiveDLFailures() = %d, want 5", cfg.GetMaxConsecutiveDLFailures())
	}
	if cfg.GetCalibrationFile() != "" {
		t.Errorf("GetCalibrationFile() = %q, want empty", cfg.GetCalibrationFile())
	}
	if cfg.GetFeedReceiveBuffer() != 4<<20 {
		t.Errorf("GetFeedReceiveBuffer() = %d, want %d", cfg.GetFeedReceiveBuffer(), 4<<20)
	}
	if cfg.GetFeedFrameTimeout() != 200*time.Millisecond {
		t.Errorf("GetFeedFrameTimeout() = %v, want 200ms", cfg.GetFeedFrameTimeout())
	}
	if cfg.GetDecisionSampleEvery() != 10 {
		t.Errorf("GetDecisionSampleEvery() = %d, want 10", cfg.GetDecisionSampleEvery())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "fcws_warning_distance": 40,
  "fcws_critical_distance": 20,
  "ldws_departure_threshold": 35,
  "lkas_assist_threshold": 25,
  "fallback_cv_confidence_threshold": 0.7,
  "fallback_max_consecutive_dl_failures": 3,
  "performance_max_latency_ms": 80,
  "feed_frame_timeout": "150ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if cfg.GetFCWSWarningDistance() != 40 {
		t.Errorf("GetFCWSWarningDistance() = %f, want 40", cfg.GetFCWSWarningDistance())
	}
	if cfg.GetFCWSCriticalDistance() != 20 {
		t.Errorf("GetFCWSCriticalDistance() = %f, want 20", cfg.GetFCWSCriticalDistance())
	}
	if cfg.GetLDWSDepartureThreshold() != 35 {
		t.Errorf("GetLDWSDepartureThreshold() = %f, want 35", cfg.GetLDWSDepartureThreshold())
	}
	if cfg.GetLKASAssistThreshold() != 25 {
		t.Errorf("GetLKASAssistThreshold() = %f, want 25", cfg.GetLKASAssistThreshold())
	}
	if cfg.GetCVConfidenceThreshold() != 0.7 {
		t.Errorf("GetCVConfidenceThreshold() = %f, want 0.7", cfg.GetCVConfidenceThreshold())
	}
	if cfg.GetMaxConsecutiveDLFailures() != 3 {
		t.Errorf("GetMaxConsecutiveDLFailures() = %d, want 3", cfg.GetMaxConsecutiveDLFailures())
	}
	if cfg.GetMaxLatency() != 80*time.Millisecond {
		t.Errorf("GetMaxLatency() = %v, want 80ms", cfg.GetMaxLatency())
	}
	if cfg.GetFeedFrameTimeout() != 150*time.Millisecond {
		t.Errorf("GetFeedFrameTimeout() = %v, want 150ms", cfg.GetFeedFrameTimeout())
	}

	// Omitted keys keep their defaults
	if cfg.GetDecisionSampleEvery() != 10 {
		t.Errorf("GetDecisionSampleEvery() = %d, want default 10", cfg.GetDecisionSampleEvery())
	}
}

func TestLoadTuningConfig_Partial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{"ldws_departure_threshold": 45}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	if cfg.GetLDWSDepartureThreshold() != 45 {
		t.Errorf("GetLDWSDepartureThreshold() = %f, want 45", cfg.GetLDWSDepartureThreshold())
	}
	if cfg.GetFCWSWarningDistance() != 30 {
		t.Errorf("GetFCWSWarningDistance() = %f, want default 30", cfg.GetFCWSWarningDistance())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "wrong extension",
			file:    "config.yaml",
			content: `{}`,
		},
		{
			name:    "invalid json",
			file:    "bad.json",
			content: `{not json`,
		},
		{
			name:    "warning below critical",
			file:    "inverted.json",
			content: `{"fcws_warning_distance": 10, "fcws_critical_distance": 20}`,
		},
		{
			name:    "negative departure threshold",
			file:    "negative.json",
			content: `{"ldws_departure_threshold": -5}`,
		},
		{
			name:    "confidence out of range",
			file:    "confidence.json",
			content: `{"fallback_cv_confidence_threshold": 1.5}`,
		},
		{
			name:    "zero failure budget",
			file:    "budget.json",
			content: `{"fallback_max_consecutive_dl_failures": 0}`,
		},
		{
			name:    "bad frame timeout",
			file:    "timeout.json",
			content: `{"feed_frame_timeout": "fast"}`,
		},
		{
			name:    "calibration wrong extension",
			file:    "calib.json",
			content: `{"camera_calibration_file": "calib.yml"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := LoadTuningConfig(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestValidate_ZeroValueConfig(t *testing.T) {
	// A config with no fields set validates against the defaults.
	if err := EmptyTuningConfig().Validate(); err != nil {
		t.Errorf("empty config should validate, got %v", err)
	}
}
