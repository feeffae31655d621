package adas

// maxConsecutiveErrors is the run length of failed frames after which the
// watcher declares safe mode.
const maxConsecutiveErrors = 10

// ErrorWatcherStats summarizes pipeline error health.
type ErrorWatcherStats struct {
	TotalErrors       int64 `json:"total_errors"`
	ConsecutiveErrors int   `json:"consecutive_errors"`
	SafeMode          bool  `json:"safe_mode"`
}

// ErrorWatcher tracks consecutive per-frame processing errors. A sustained
// run flips the watcher into safe mode, which is purely an operator signal:
// processing continues and the next clean frame clears it.
type ErrorWatcher struct {
	threshold   int
	consecutive int
	total       int64
	safeMode    bool
}

// NewErrorWatcher creates a watcher with the default threshold.
func NewErrorWatcher() *ErrorWatcher {
	return &ErrorWatcher{threshold: maxConsecutiveErrors}
}

// RecordError notes a failed frame for the named stage.
func (w *ErrorWatcher) RecordError(stage string, err error) {
	w.total++
	w.consecutive++
	Diagf("pipeline: %s error (%d consecutive): %v", stage, w.consecutive, err)
	if !w.safeMode && w.consecutive >= w.threshold {
		w.safeMode = true
		Opsf("pipeline: %d consecutive errors, entering safe mode", w.consecutive)
	}
}

// RecordSuccess notes a clean frame, resetting the run and leaving safe mode
// if it was set.
func (w *ErrorWatcher) RecordSuccess() {
	if w.safeMode {
		Opsf("pipeline: recovered after %d consecutive errors, leaving safe mode", w.consecutive)
	}
	w.consecutive = 0
	w.safeMode = false
}

// SafeMode reports whether the watcher is currently in safe mode.
func (w *ErrorWatcher) SafeMode() bool { return w.safeMode }

// Stats returns a copy of the watcher counters.
func (w *ErrorWatcher) Stats() ErrorWatcherStats {
	return ErrorWatcherStats{
		TotalErrors:       w.total,
		ConsecutiveErrors: w.consecutive,
		SafeMode:          w.safeMode,
	}
}
