package feed

import (
	"sync"
	"time"
)

// Stats tracks feed ingestion counters. Safe for concurrent use; the listener
// adds from its receive loop while the main process logs rates periodically
// via GetAndReset.
type Stats struct {
	mu            sync.Mutex
	packetCount   int64
	byteCount     int64
	frameCount    int64
	decodeErrors  int64
	droppedFrames int64
	orphanTiles   int64
	lastReset     time.Time

	// lifetime counters, never reset
	totals  Totals
	started time.Time
}

// NewStats creates a stats tracker with the reset window starting now.
func NewStats() *Stats {
	now := time.Now()
	return &Stats{lastReset: now, started: now}
}

// AddPacket records one received datagram of the given size.
func (s *Stats) AddPacket(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetCount++
	s.byteCount += int64(bytes)
	s.totals.Packets++
	s.totals.Bytes += int64(bytes)
}

// AddFrame records one completely reassembled frame.
func (s *Stats) AddFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
	s.totals.Frames++
}

// AddDecodeError records a datagram that failed to decode or reassemble.
func (s *Stats) AddDecodeError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decodeErrors++
	s.totals.DecodeErrors++
}

// AddDroppedFrame records a partial frame abandoned before completion.
func (s *Stats) AddDroppedFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.droppedFrames++
	s.totals.DroppedFrames++
}

// AddOrphanTile records a tile with no matching pending frame.
func (s *Stats) AddOrphanTile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphanTiles++
	s.totals.OrphanTiles++
}

// Snapshot is one window of feed counters.
type Snapshot struct {
	Packets       int64
	Bytes         int64
	Frames        int64
	DecodeErrors  int64
	DroppedFrames int64
	OrphanTiles   int64
	Duration      time.Duration
}

// GetAndReset returns the counters accumulated since the last reset and
// starts a new window.
func (s *Stats) GetAndReset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		Packets:       s.packetCount,
		Bytes:         s.byteCount,
		Frames:        s.frameCount,
		DecodeErrors:  s.decodeErrors,
		DroppedFrames: s.droppedFrames,
		OrphanTiles:   s.orphanTiles,
		Duration:      now.Sub(s.lastReset),
	}

	s.packetCount = 0
	s.byteCount = 0
	s.frameCount = 0
	s.decodeErrors = 0
	s.droppedFrames = 0
	s.orphanTiles = 0
	s.lastReset = now

	return snap
}

// Totals are lifetime feed counters, unaffected by the rate window.
type Totals struct {
	Packets       int64         `json:"packets"`
	Bytes         int64         `json:"bytes"`
	Frames        int64         `json:"frames"`
	DecodeErrors  int64         `json:"decode_errors"`
	DroppedFrames int64         `json:"dropped_frames"`
	OrphanTiles   int64         `json:"orphan_tiles"`
	Uptime        time.Duration `json:"uptime"`
}

// Totals returns the lifetime counters without disturbing the rate window.
func (s *Stats) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.totals
	t.Uptime = time.Since(s.started)
	return t
}
