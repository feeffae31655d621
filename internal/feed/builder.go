package feed

import (
	"fmt"
	"time"

	"github.com/kestrel-auto/drive.assist/internal/adas"
	"github.com/kestrel-auto/drive.assist/internal/monitoring"
	"github.com/kestrel-auto/drive.assist/internal/timeutil"
)

// FrameCallback receives each fully reassembled frame, in arrival order.
type FrameCallback func(frame *adas.Frame)

// pendingFrame is a frame under reassembly: the header has been seen and
// tiles are being filled in.
type pendingFrame struct {
	frame     *adas.Frame
	tileCount int
	tilesSeen map[int]bool
	started   time.Time
}

// FrameBuilder reassembles feed datagrams into complete frames. A frame is
// complete when its header and all tiles have been seen; a header for a newer
// frame drops any stale partial, as does exceeding the frame timeout. Tiles
// arriving before their header, or for an already-dropped frame, are counted
// and discarded.
//
// The builder is driven from a single listener goroutine and is not safe for
// concurrent use.
type FrameBuilder struct {
	onFrame FrameCallback
	timeout time.Duration
	clock   timeutil.Clock
	stats   *Stats

	pending *pendingFrame
}

// NewFrameBuilder creates a builder delivering complete frames to onFrame.
// timeout bounds how long a partial frame may wait for its remaining tiles;
// zero uses a 200ms default. stats may be nil.
func NewFrameBuilder(onFrame FrameCallback, timeout time.Duration, clock timeutil.Clock, stats *Stats) *FrameBuilder {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FrameBuilder{
		onFrame: onFrame,
		timeout: timeout,
		clock:   clock,
		stats:   stats,
	}
}

// Ingest processes one decoded datagram. Errors describe malformed datagrams;
// the builder's own state stays consistent across them.
func (b *FrameBuilder) Ingest(d Datagram) error {
	switch {
	case d.Header != nil:
		return b.ingestHeader(d.Header)
	case d.Tile != nil:
		return b.ingestTile(d.Tile)
	default:
		return fmt.Errorf("empty datagram")
	}
}

func (b *FrameBuilder) ingestHeader(h *Header) error {
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("frame %d: invalid dimensions %dx%d", h.Frame, h.Width, h.Height)
	}

	// A new header supersedes whatever was in flight.
	if b.pending != nil {
		monitoring.Logf("feed: dropping partial frame %d (%d/%d tiles) for new frame %d",
			b.pending.frame.Number, len(b.pending.tilesSeen), b.pending.tileCount, h.Frame)
		if b.stats != nil {
			b.stats.AddDroppedFrame()
		}
		b.pending = nil
	}

	frame := &adas.Frame{
		Number:     h.Frame,
		Timestamp:  h.Timestamp,
		Width:      h.Width,
		Height:     h.Height,
		Detections: h.Meta.Detections,
		Inference:  h.Meta.Inference,
		SpeedMPS:   h.Meta.SpeedMPS,
	}

	// Metadata-only frames carry no pixels and complete immediately.
	if h.TileCount == 0 {
		b.deliver(frame)
		return nil
	}

	frame.Luma = make([]uint8, h.Width*h.Height)
	b.pending = &pendingFrame{
		frame:     frame,
		tileCount: h.TileCount,
		tilesSeen: make(map[int]bool, h.TileCount),
		started:   b.clock.Now(),
	}
	return nil
}

func (b *FrameBuilder) ingestTile(t *Tile) error {
	p := b.pending
	if p == nil || p.frame.Number != t.Frame {
		if b.stats != nil {
			b.stats.AddOrphanTile()
		}
		return nil
	}

	if b.clock.Since(p.started) > b.timeout {
		monitoring.Logf("feed: dropping stale partial frame %d (%d/%d tiles after %v)",
			p.frame.Number, len(p.tilesSeen), p.tileCount, b.timeout)
		if b.stats != nil {
			b.stats.AddDroppedFrame()
		}
		b.pending = nil
		return nil
	}

	if t.Index >= p.tileCount {
		return fmt.Errorf("frame %d: tile index %d out of range (count %d)",
			t.Frame, t.Index, p.tileCount)
	}
	if t.RowStart+t.RowCount > p.frame.Height {
		return fmt.Errorf("frame %d: tile rows %d+%d exceed height %d",
			t.Frame, t.RowStart, t.RowCount, p.frame.Height)
	}
	want := t.RowCount * p.frame.Width
	if len(t.Pixels) != want {
		return fmt.Errorf("frame %d: tile payload %d bytes, want %d",
			t.Frame, len(t.Pixels), want)
	}

	if p.tilesSeen[t.Index] {
		return nil // duplicate delivery, already copied
	}
	copy(p.frame.Luma[t.RowStart*p.frame.Width:], t.Pixels)
	p.tilesSeen[t.Index] = true

	if len(p.tilesSeen) == p.tileCount {
		b.deliver(p.frame)
		b.pending = nil
	}
	return nil
}

func (b *FrameBuilder) deliver(frame *adas.Frame) {
	if b.stats != nil {
		b.stats.AddFrame()
	}
	if b.onFrame != nil {
		b.onFrame(frame)
	}
}

// Pending reports whether a partial frame is currently under reassembly.
func (b *FrameBuilder) Pending() bool { return b.pending != nil }
