package alertmux

import (
	"go.bug.st/serial"
)

// NewRealAlertMux creates an AlertMux instance backed by a real serial port at
// the given path using the provided serial options.
func NewRealAlertMux(path string, opts PortOptions) (*AlertMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewAlertMux[serial.Port](port), nil
}
