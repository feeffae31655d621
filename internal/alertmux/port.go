package alertmux

import (
	"io"
	"time"
)

// HUDPorter defines the minimal interface needed for the alert HUD serial
// link. This abstraction enables unit testing without real HUD hardware.
type HUDPorter interface {
	io.ReadWriter
	io.Closer
}

// HUDPortMode defines serial port configuration parameters.
type HUDPortMode struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// Parity defines serial port parity options.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits defines serial port stop bit options.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// DefaultHUDPortMode returns the default mode for the in-cabin alert HUD.
func DefaultHUDPortMode() *HUDPortMode {
	return &HUDPortMode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}

// HUDPortFactory defines an interface for creating HUD ports.
// This abstraction enables dependency injection of port creation.
type HUDPortFactory interface {
	// Open opens a serial port at the specified path with the given mode.
	Open(path string, mode *HUDPortMode) (HUDPorter, error)
}

// TimeoutHUDPorter extends HUDPorter with timeout capabilities.
// This is an optional interface that ports may implement.
type TimeoutHUDPorter interface {
	HUDPorter
	// SetReadTimeout sets the read timeout for the port.
	SetReadTimeout(timeout time.Duration) error
}
