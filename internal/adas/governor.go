package adas

import "time"

// GovernorConfig holds configuration parameters for the performance governor.
type GovernorConfig struct {
	MaxLatency time.Duration // Sustained average above this sheds a feature
	WindowSize int           // Frames in the moving-average window

	// Initial display feature flags.
	BirdsEyeView bool
	Animations   bool
}

// DefaultGovernorConfig returns default governor configuration.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		MaxLatency:   100 * time.Millisecond,
		WindowSize:   30,
		BirdsEyeView: true,
		Animations:   true,
	}
}

// DisplayFeatures are the non-critical visualization toggles the governor
// manages. The warning engines never depend on these.
type DisplayFeatures struct {
	BirdsEyeView bool `json:"birds_eye_view"`
	Animations   bool `json:"animations"`
}

// GovernorStats summarizes frame timing for the metrics surface.
type GovernorStats struct {
	AvgLatencyMS  float64         `json:"avg_latency_ms"`
	LastLatencyMS float64         `json:"last_latency_ms"`
	FPS           float64         `json:"fps"`
	WindowFill    int             `json:"window_fill"`
	Degradations  int64           `json:"degradations"`
	Features      DisplayFeatures `json:"features"`
}

// PerformanceGovernor watches per-frame wall-clock durations and sheds
// non-critical display features when the moving average stays above the
// configured budget. A breach frame sheds every still-enabled feature in one
// pass. Shedding is one-way: a disabled feature stays disabled until
// ResetFeatures, it is never re-enabled automatically.
type PerformanceGovernor struct {
	config GovernorConfig

	window []time.Duration
	next   int
	filled int
	last   time.Duration

	features     DisplayFeatures
	degradations int64
}

// NewPerformanceGovernor creates a governor with the given configuration.
func NewPerformanceGovernor(config GovernorConfig) *PerformanceGovernor {
	if config.WindowSize <= 0 {
		config.WindowSize = DefaultGovernorConfig().WindowSize
	}
	return &PerformanceGovernor{
		config: config,
		window: make([]time.Duration, config.WindowSize),
		features: DisplayFeatures{
			BirdsEyeView: config.BirdsEyeView,
			Animations:   config.Animations,
		},
	}
}

// Observe records one frame duration and applies the shedding policy. No
// action is taken until the window has filled once.
func (g *PerformanceGovernor) Observe(frameDuration time.Duration) {
	g.last = frameDuration
	g.window[g.next] = frameDuration
	g.next = (g.next + 1) % len(g.window)
	if g.filled < len(g.window) {
		g.filled++
	}
	if g.filled < len(g.window) {
		return
	}

	avg := g.Average()
	if avg <= g.config.MaxLatency {
		return
	}

	if g.features.BirdsEyeView {
		g.features.BirdsEyeView = false
		g.degradations++
		Opsf("governor: avg frame latency %.1fms over %.0fms budget, disabling bird's-eye view",
			float64(avg)/float64(time.Millisecond),
			float64(g.config.MaxLatency)/float64(time.Millisecond))
	}
	if g.features.Animations {
		g.features.Animations = false
		g.degradations++
		Opsf("governor: avg frame latency %.1fms over budget, disabling animations",
			float64(avg)/float64(time.Millisecond))
	}
}

// Average returns the moving average over the currently filled window.
func (g *PerformanceGovernor) Average() time.Duration {
	if g.filled == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < g.filled; i++ {
		sum += g.window[i]
	}
	return sum / time.Duration(g.filled)
}

// Features returns the current display feature flags.
func (g *PerformanceGovernor) Features() DisplayFeatures { return g.features }

// ResetFeatures restores the configured display features. This is the only
// way a shed feature comes back.
func (g *PerformanceGovernor) ResetFeatures() {
	g.features = DisplayFeatures{
		BirdsEyeView: g.config.BirdsEyeView,
		Animations:   g.config.Animations,
	}
	Opsf("governor: display features reset")
}

// Stats returns a copy of the governor metrics.
func (g *PerformanceGovernor) Stats() GovernorStats {
	avg := g.Average()
	s := GovernorStats{
		AvgLatencyMS:  float64(avg) / float64(time.Millisecond),
		LastLatencyMS: float64(g.last) / float64(time.Millisecond),
		WindowFill:    g.filled,
		Degradations:  g.degradations,
		Features:      g.features,
	}
	if avg > 0 {
		s.FPS = float64(time.Second) / float64(avg)
	}
	return s
}
