package feed

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/kestrel-auto/drive.assist/internal/monitoring"
)

// ListenerConfig tunes the UDP feed listener.
type ListenerConfig struct {
	// Address is the UDP bind address, e.g. ":4590".
	Address string

	// ReceiveBuffer is the socket receive buffer size in bytes. Zero keeps
	// the OS default.
	ReceiveBuffer int
}

// DecodeErrorFunc receives datagrams that failed to decode or reassemble.
type DecodeErrorFunc func(stage string, err error)

// Listen runs the UDP receive loop until ctx is cancelled, decoding each
// datagram and feeding it to the builder. Decode and reassembly failures are
// reported through onError and never stop the loop.
func Listen(ctx context.Context, cfg ListenerConfig, builder *FrameBuilder, stats *Stats, onError DecodeErrorFunc) error {
	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	defer conn.Close()

	if cfg.ReceiveBuffer > 0 {
		if err := conn.SetReadBuffer(cfg.ReceiveBuffer); err != nil {
			monitoring.Logf("feed: failed to set UDP receive buffer to %d bytes: %v (some OSes clamp buffer sizes)",
				cfg.ReceiveBuffer, err)
		}
	}

	monitoring.Logf("feed: listening for frame datagrams on %s", cfg.Address)

	buffer := make([]byte, MaxDatagramSize)
	timeoutCount := 0

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("feed: listener shutting down")
			return ctx.Err()
		default:
			// Set a read timeout to allow checking for context cancellation.
			if err := conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
				monitoring.Logf("feed: error setting read deadline: %v", err)
				continue
			}

			n, _, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					timeoutCount++
					if timeoutCount%10 == 0 {
						monitoring.Logf("feed: no datagrams received for %d seconds", timeoutCount)
					}
					continue
				}
				monitoring.Logf("feed: error reading UDP datagram: %v", err)
				continue
			}
			timeoutCount = 0

			if stats != nil {
				stats.AddPacket(n)
			}

			d, err := Decode(buffer[:n])
			if err != nil {
				if stats != nil {
					stats.AddDecodeError()
				}
				if onError != nil {
					onError("decode", err)
				}
				continue
			}
			if err := builder.Ingest(d); err != nil {
				if stats != nil {
					stats.AddDecodeError()
				}
				if onError != nil {
					onError("reassemble", err)
				}
			}
		}
	}
}
