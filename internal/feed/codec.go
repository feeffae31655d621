// Package feed implements the UDP ingestion path for drive.assist: the
// datagram protocol carrying per-frame capture output (object detections,
// learned lane inference, and a downsampled luma plane), the frame builder
// that reassembles datagrams into complete frames, and the listener loop.
//
// Each frame arrives as one header datagram followed by zero or more tile
// datagrams. The header carries frame identity, dimensions, and a JSON
// metadata block; tiles carry contiguous luma rows. A frame with a zero tile
// count is metadata-only and is complete as soon as the header is seen.
package feed

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrel-auto/drive.assist/internal/adas"
)

// Wire constants for the feed datagram protocol.
const (
	// Magic identifies a drive.assist feed datagram ("DAF1").
	Magic = 0x44414631

	// ProtocolVersion is the current wire version.
	ProtocolVersion = 1

	// Datagram types.
	TypeHeader = 0x00
	TypeTile   = 0x01

	// headerFixedSize is the fixed-length prefix of a header datagram:
	// magic(4) version(1) type(1) frame(8) width(2) height(2) tiles(2)
	// timestamp(8) metaLen(4).
	headerFixedSize = 32

	// tileFixedSize is the fixed-length prefix of a tile datagram:
	// magic(4) version(1) type(1) frame(8) index(2) rowStart(2) rowCount(2).
	tileFixedSize = 20

	// MaxDatagramSize bounds a single feed datagram. Tiles are sized by the
	// sender to stay under this.
	MaxDatagramSize = 60000
)

// Metadata is the JSON block riding the header datagram: everything the
// capture and inference unit produced for the frame beyond raw pixels.
type Metadata struct {
	Detections []adas.Detection    `json:"detections,omitempty"`
	Inference  *adas.LaneInference `json:"lane_inference,omitempty"`
	SpeedMPS   *float64            `json:"speed_mps,omitempty"`
}

// Header is a decoded header datagram.
type Header struct {
	Frame     uint64
	Width     int
	Height    int
	TileCount int
	Timestamp time.Time
	Meta      Metadata
}

// Tile is a decoded tile datagram: a run of contiguous luma rows.
type Tile struct {
	Frame    uint64
	Index    int
	RowStart int
	RowCount int
	Pixels   []uint8
}

// Datagram is the decoded form of one feed packet; exactly one of Header and
// Tile is set.
type Datagram struct {
	Header *Header
	Tile   *Tile
}

// EncodeHeader serializes a header datagram.
func EncodeHeader(h Header) ([]byte, error) {
	meta, err := json.Marshal(h.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame metadata: %w", err)
	}
	if headerFixedSize+len(meta) > MaxDatagramSize {
		return nil, fmt.Errorf("frame metadata too large: %d bytes", len(meta))
	}
	if h.Width < 0 || h.Width > 0xFFFF || h.Height < 0 || h.Height > 0xFFFF {
		return nil, fmt.Errorf("frame dimensions out of range: %dx%d", h.Width, h.Height)
	}
	if h.TileCount < 0 || h.TileCount > 0xFFFF {
		return nil, fmt.Errorf("tile count out of range: %d", h.TileCount)
	}

	buf := make([]byte, headerFixedSize+len(meta))
	binary.BigEndian.PutUint32(buf[0:], Magic)
	buf[4] = ProtocolVersion
	buf[5] = TypeHeader
	binary.BigEndian.PutUint64(buf[6:], h.Frame)
	binary.BigEndian.PutUint16(buf[14:], uint16(h.Width))
	binary.BigEndian.PutUint16(buf[16:], uint16(h.Height))
	binary.BigEndian.PutUint16(buf[18:], uint16(h.TileCount))
	binary.BigEndian.PutUint64(buf[20:], uint64(h.Timestamp.UnixNano()))
	binary.BigEndian.PutUint32(buf[28:], uint32(len(meta)))
	copy(buf[headerFixedSize:], meta)
	return buf, nil
}

// EncodeTile serializes a tile datagram.
func EncodeTile(t Tile) ([]byte, error) {
	if t.Index < 0 || t.Index > 0xFFFF || t.RowStart < 0 || t.RowStart > 0xFFFF ||
		t.RowCount < 0 || t.RowCount > 0xFFFF {
		return nil, fmt.Errorf("tile fields out of range: index=%d rows=%d+%d",
			t.Index, t.RowStart, t.RowCount)
	}
	if tileFixedSize+len(t.Pixels) > MaxDatagramSize {
		return nil, fmt.Errorf("tile payload too large: %d bytes", len(t.Pixels))
	}

	buf := make([]byte, tileFixedSize+len(t.Pixels))
	binary.BigEndian.PutUint32(buf[0:], Magic)
	buf[4] = ProtocolVersion
	buf[5] = TypeTile
	binary.BigEndian.PutUint64(buf[6:], t.Frame)
	binary.BigEndian.PutUint16(buf[14:], uint16(t.Index))
	binary.BigEndian.PutUint16(buf[16:], uint16(t.RowStart))
	binary.BigEndian.PutUint16(buf[18:], uint16(t.RowCount))
	copy(buf[tileFixedSize:], t.Pixels)
	return buf, nil
}

// Decode parses one feed datagram. The returned Datagram owns its data; the
// caller may reuse the input buffer.
func Decode(pkt []byte) (Datagram, error) {
	if len(pkt) < 6 {
		return Datagram{}, fmt.Errorf("datagram too short: %d bytes", len(pkt))
	}
	if magic := binary.BigEndian.Uint32(pkt[0:]); magic != Magic {
		return Datagram{}, fmt.Errorf("bad magic 0x%08x", magic)
	}
	if v := pkt[4]; v != ProtocolVersion {
		return Datagram{}, fmt.Errorf("unsupported protocol version %d", v)
	}

	switch pkt[5] {
	case TypeHeader:
		return decodeHeader(pkt)
	case TypeTile:
		return decodeTile(pkt)
	default:
		return Datagram{}, fmt.Errorf("unknown datagram type 0x%02x", pkt[5])
	}
}

func decodeHeader(pkt []byte) (Datagram, error) {
	if len(pkt) < headerFixedSize {
		return Datagram{}, fmt.Errorf("header datagram too short: %d bytes", len(pkt))
	}
	metaLen := int(binary.BigEndian.Uint32(pkt[28:]))
	if len(pkt) != headerFixedSize+metaLen {
		return Datagram{}, fmt.Errorf("header datagram length mismatch: have %d, metadata claims %d",
			len(pkt)-headerFixedSize, metaLen)
	}

	h := &Header{
		Frame:     binary.BigEndian.Uint64(pkt[6:]),
		Width:     int(binary.BigEndian.Uint16(pkt[14:])),
		Height:    int(binary.BigEndian.Uint16(pkt[16:])),
		TileCount: int(binary.BigEndian.Uint16(pkt[18:])),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(pkt[20:]))),
	}
	if metaLen > 0 {
		if err := json.Unmarshal(pkt[headerFixedSize:], &h.Meta); err != nil {
			return Datagram{}, fmt.Errorf("failed to parse frame metadata: %w", err)
		}
	}
	return Datagram{Header: h}, nil
}

func decodeTile(pkt []byte) (Datagram, error) {
	if len(pkt) < tileFixedSize {
		return Datagram{}, fmt.Errorf("tile datagram too short: %d bytes", len(pkt))
	}
	t := &Tile{
		Frame:    binary.BigEndian.Uint64(pkt[6:]),
		Index:    int(binary.BigEndian.Uint16(pkt[14:])),
		RowStart: int(binary.BigEndian.Uint16(pkt[16:])),
		RowCount: int(binary.BigEndian.Uint16(pkt[18:])),
	}
	payload := pkt[tileFixedSize:]
	t.Pixels = make([]uint8, len(payload))
	copy(t.Pixels, payload)
	return Datagram{Tile: t}, nil
}
