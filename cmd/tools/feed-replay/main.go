// Command feed-replay resends a captured feed (pcap) to a running service
// over UDP, pacing packets by their recorded timestamps.
//
// Usage:
//
//	go run ./cmd/tools/feed-replay -pcap drive.pcap -addr localhost:5600
//
// Flags:
//
//	-pcap   Capture file to replay (required)
//	-addr   UDP target (default: localhost:5600)
//	-rate   Playback speed multiplier; 0 replays as fast as possible
//	-loop   Loop playback when reaching end
package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func main() {
	pcapFile := flag.String("pcap", "", "capture file to replay (required)")
	addr := flag.String("addr", "localhost:5600", "UDP target")
	rate := flag.Float64("rate", 1.0, "playback speed multiplier; 0 for no pacing")
	loop := flag.Bool("loop", false, "loop playback when reaching end")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("Error: -pcap flag is required")
	}

	target, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Fatalf("Failed to resolve %s: %v", *addr, err)
	}
	conn, err := net.DialUDP("udp", nil, target)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", *addr, err)
	}
	defer conn.Close()

	pass := 0
	for {
		pass++
		sent, skipped, err := replayOnce(*pcapFile, conn, *rate)
		if err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
		log.Printf("✓ pass %d: %d packets sent, %d skipped", pass, sent, skipped)
		if !*loop {
			return
		}
	}
}

// replayOnce streams every UDP payload in the capture to conn, sleeping
// between packets to honour the recorded inter-packet gaps scaled by rate.
func replayOnce(path string, conn *net.UDPConn, rate float64) (sent, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, 0, err
	}

	var prev time.Time
	for {
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return sent, skipped, nil
		}
		if err != nil {
			return sent, skipped, err
		}

		payload := udpPayload(data)
		if payload == nil {
			skipped++
			continue
		}

		if rate > 0 && !prev.IsZero() {
			gap := ci.Timestamp.Sub(prev)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) / rate))
			}
		}
		prev = ci.Timestamp

		if _, err := conn.Write(payload); err != nil {
			return sent, skipped, err
		}
		sent++
	}
}

// udpPayload extracts the UDP payload from a captured ethernet frame, or nil
// when the packet is not UDP.
func udpPayload(data []byte) []byte {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil
	}
	udp := udpLayer.(*layers.UDP)
	if len(udp.Payload) == 0 {
		return nil
	}
	return udp.Payload
}
