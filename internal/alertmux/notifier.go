package alertmux

import (
	"context"
	"sync/atomic"

	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
	"github.com/kestrel-auto/drive.assist/internal/monitoring"
)

// Notifier bridges pipeline events to HUD alert lines. Serial writes can
// stall, so RecordEvent only enqueues; a background goroutine owns the port.
// A full queue drops the alert and counts it.
type Notifier struct {
	mux     AlertMuxInterface
	queue   chan string
	dropped atomic.Int64
}

// NewNotifier creates a notifier writing through the given alert mux.
func NewNotifier(mux AlertMuxInterface) *Notifier {
	return &Notifier{
		mux:   mux,
		queue: make(chan string, 32),
	}
}

// RecordEvent implements pipeline.EventSink. Never blocks.
func (n *Notifier) RecordEvent(ev pipeline.Event) {
	line := FormatAlert(ev)
	if line == "" {
		return
	}
	select {
	case n.queue <- line:
	default:
		n.dropped.Add(1)
	}
}

// Dropped reports how many alerts were discarded because the HUD could not
// keep up.
func (n *Notifier) Dropped() int64 { return n.dropped.Load() }

// Run writes queued alerts to the HUD until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-n.queue:
			if err := n.mux.SendAlert(line); err != nil {
				monitoring.Logf("hud: failed to send alert: %v", err)
			}
		}
	}
}
