// Command gen-feed generates a synthetic capture feed for testing the
// pipeline without a vehicle: frames with painted lane stripes, an optional
// lead vehicle closing in, and learned lane inference. Output goes live over
// UDP, to a pcap file for later replay, or both.
//
// Scenarios:
//
//	cruise    steady driving, centered in lane, no hazards
//	approach  lead vehicle closing from far ahead to a near stop
//	drift     vehicle drifts across the lane and back
//	dropout   learned lane inference fails partway through the run
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/kestrel-auto/drive.assist/internal/adas"
	"github.com/kestrel-auto/drive.assist/internal/feed"
)

func main() {
	addr := flag.String("addr", "", "UDP target (e.g. localhost:5600); empty to skip live send")
	pcapOut := flag.String("pcap", "", "pcap output path; empty to skip capture")
	scenario := flag.String("scenario", "approach", "scenario: cruise, approach, drift, dropout")
	frames := flag.Int("n", 300, "number of frames")
	fps := flag.Float64("fps", 30, "frame rate")
	width := flag.Int("width", 640, "frame width")
	height := flag.Int("height", 360, "frame height")
	flag.Parse()

	if *addr == "" && *pcapOut == "" {
		log.Fatal("Error: at least one of -addr or -pcap is required")
	}
	gen, err := newGenerator(*scenario, *width, *height)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var conn *net.UDPConn
	if *addr != "" {
		target, err := net.ResolveUDPAddr("udp", *addr)
		if err != nil {
			log.Fatalf("Failed to resolve %s: %v", *addr, err)
		}
		conn, err = net.DialUDP("udp", nil, target)
		if err != nil {
			log.Fatalf("Failed to dial %s: %v", *addr, err)
		}
		defer conn.Close()
	}

	var capture *pcapWriter
	if *pcapOut != "" {
		capture, err = newPcapWriter(*pcapOut)
		if err != nil {
			log.Fatalf("Failed to open pcap output: %v", err)
		}
		defer capture.Close()
	}

	interval := time.Duration(float64(time.Second) / *fps)
	start := time.Now()
	var sent int
	for i := 0; i < *frames; i++ {
		ts := start.Add(time.Duration(i) * interval)
		for _, pkt := range gen.frameDatagrams(uint64(i+1), ts) {
			if conn != nil {
				if _, err := conn.Write(pkt); err != nil {
					log.Fatalf("UDP send failed: %v", err)
				}
			}
			if capture != nil {
				if err := capture.WritePacket(ts, pkt); err != nil {
					log.Fatalf("pcap write failed: %v", err)
				}
			}
			sent++
		}
		if conn != nil {
			time.Sleep(interval)
		}
		if (i+1)%100 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}

	log.Printf("✓ %d frames, %d datagrams (%s scenario)", *frames, sent, *scenario)
	if *pcapOut != "" {
		log.Printf("✓ Created: %s", *pcapOut)
	}
}

// generator produces one synthetic frame per call, advancing scenario state.
type generator struct {
	scenario string
	width    int
	height   int
	total    int
}

func newGenerator(scenario string, width, height int) (*generator, error) {
	switch scenario {
	case "cruise", "approach", "drift", "dropout":
	default:
		return nil, fmt.Errorf("unknown scenario %q", scenario)
	}
	if width <= 0 || width > 0xFFFF || height <= 0 || height > 0xFFFF {
		return nil, fmt.Errorf("frame dimensions out of range: %dx%d", width, height)
	}
	return &generator{scenario: scenario, width: width, height: height}, nil
}

// frameDatagrams builds the wire datagrams for one frame: header first, then
// luma tiles sized to fit under the datagram limit.
func (g *generator) frameDatagrams(frame uint64, ts time.Time) [][]byte {
	g.total++
	t := float64(g.total)

	offset := g.laneOffset(t)
	luma := g.paintLuma(offset)
	meta := feed.Metadata{
		Detections: g.detections(t),
		Inference:  g.inference(t, offset),
	}
	speed := 13.5
	meta.SpeedMPS = &speed

	rowsPerTile := (feed.MaxDatagramSize - 64) / g.width
	if rowsPerTile < 1 {
		rowsPerTile = 1
	}
	tileCount := (g.height + rowsPerTile - 1) / rowsPerTile

	hdr, err := feed.EncodeHeader(feed.Header{
		Frame:     frame,
		Width:     g.width,
		Height:    g.height,
		TileCount: tileCount,
		Timestamp: ts,
		Meta:      meta,
	})
	if err != nil {
		log.Fatalf("header encode failed: %v", err)
	}

	pkts := [][]byte{hdr}
	for i := 0; i < tileCount; i++ {
		rowStart := i * rowsPerTile
		rowCount := rowsPerTile
		if rowStart+rowCount > g.height {
			rowCount = g.height - rowStart
		}
		tile, err := feed.EncodeTile(feed.Tile{
			Frame:    frame,
			Index:    i,
			RowStart: rowStart,
			RowCount: rowCount,
			Pixels:   luma[rowStart*g.width : (rowStart+rowCount)*g.width],
		})
		if err != nil {
			log.Fatalf("tile encode failed: %v", err)
		}
		pkts = append(pkts, tile)
	}
	return pkts
}

// laneOffset returns the vehicle's lateral offset in pixels for this frame.
func (g *generator) laneOffset(t float64) float64 {
	if g.scenario != "drift" {
		return 0
	}
	// slow sinusoidal drift: out to 80px and back over ~200 frames
	return 80 * math.Sin(t*2*math.Pi/200)
}

// paintLuma renders a dark road with two bright lane stripes converging
// toward a vanishing point. The offset shifts the stripes laterally, which
// is how the camera sees the vehicle moving within the lane.
func (g *generator) paintLuma(offset float64) []uint8 {
	luma := make([]uint8, g.width*g.height)
	for i := range luma {
		luma[i] = 40 // road surface
	}

	vanishY := float64(g.height) * 0.45
	for y := int(vanishY); y < g.height; y++ {
		// stripes spread apart as y approaches the frame bottom
		spread := (float64(y) - vanishY) / (float64(g.height) - vanishY)
		center := float64(g.width)/2 - offset*spread
		half := 60 + 200*spread

		for _, x := range []float64{center - half, center + half} {
			for dx := -2; dx <= 2; dx++ {
				px := int(x) + dx
				if px >= 0 && px < g.width {
					luma[y*g.width+px] = 230
				}
			}
		}
	}
	return luma
}

// detections returns the object detector output for this frame.
func (g *generator) detections(t float64) []adas.Detection {
	if g.scenario != "approach" {
		return nil
	}
	// lead vehicle grows from a distant speck to a near box over 300 frames
	progress := math.Min(t/300, 1)
	w := 30 + 170*progress
	h := w * 0.7
	cx := float64(g.width) / 2
	bottom := float64(g.height)*0.5 + float64(g.height)*0.45*progress
	return []adas.Detection{{
		Class:      "car",
		Confidence: 0.92,
		BBox: adas.BBox{
			X1: cx - w/2, Y1: bottom - h,
			X2: cx + w/2, Y2: bottom,
		},
	}}
}

// inference returns the learned lane model output for this frame.
func (g *generator) inference(t float64, offset float64) *adas.LaneInference {
	if g.scenario == "dropout" && t > 150 {
		return &adas.LaneInference{OK: false}
	}

	vanishY := float64(g.height) * 0.45
	center := float64(g.width) / 2
	left := &adas.LaneObservation{Segment: &adas.LaneLine{
		X1: center - offset - 260, Y1: float64(g.height),
		X2: center - 60, Y2: vanishY,
	}}
	right := &adas.LaneObservation{Segment: &adas.LaneLine{
		X1: center - offset + 260, Y1: float64(g.height),
		X2: center + 60, Y2: vanishY,
	}}
	return &adas.LaneInference{Left: left, Right: right, Confidence: 0.88, OK: true}
}

// pcapWriter wraps a pcap file, framing each feed datagram as a UDP packet
// so the capture replays through standard tooling.
type pcapWriter struct {
	f   *os.File
	w   *pcapgo.Writer
	buf gopacket.SerializeBuffer
	eth layers.Ethernet
	ip  layers.IPv4
	udp layers.UDP
}

func newPcapWriter(path string) (*pcapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, err
	}

	pw := &pcapWriter{f: f, w: w, buf: gopacket.NewSerializeBuffer()}
	pw.eth = layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	pw.ip = layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	pw.udp = layers.UDP{SrcPort: 5600, DstPort: 5600}
	return pw, nil
}

func (pw *pcapWriter) WritePacket(ts time.Time, payload []byte) error {
	if err := pw.udp.SetNetworkLayerForChecksum(&pw.ip); err != nil {
		return err
	}
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(pw.buf, opts,
		&pw.eth, &pw.ip, &pw.udp, gopacket.Payload(payload)); err != nil {
		return err
	}
	data := pw.buf.Bytes()
	return pw.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}

func (pw *pcapWriter) Close() error { return pw.f.Close() }
