package alertmux

import (
	"fmt"
	"strings"

	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
)

// Inbound operator commands. The HUD sends a single uppercase token per line
// when a cabin button is pressed.
const (
	CommandRearm        = "rearm"
	CommandResetDisplay = "reset_display"
	CommandAck          = "ack"
	CommandUnknown      = "unknown"
)

// ClassifyLine inspects a line received from the HUD and returns a command
// token. Classification is intentionally conservative: firmware revisions
// differ in whitespace and argument handling, so only the leading token is
// considered.
func ClassifyLine(line string) string {
	fields := strings.Fields(strings.ToUpper(line))
	if len(fields) == 0 {
		return CommandUnknown
	}
	switch fields[0] {
	case "REARM":
		return CommandRearm
	case "RESET", "RESET-DISPLAY":
		return CommandResetDisplay
	case "ACK", "OK":
		return CommandAck
	}
	return CommandUnknown
}

// FormatAlert renders an operator event as a HUD alert line. The HUD firmware
// expects "ALERT <type> <detail>" with the detail collapsed to a single line.
// Events that do not warrant a cabin alert return "".
func FormatAlert(ev pipeline.Event) string {
	switch ev.Type {
	case pipeline.EventFCWSState, pipeline.EventLDWSState, pipeline.EventLKASState,
		pipeline.EventArbiterMode, pipeline.EventSafeModeChange:
		detail := strings.Join(strings.Fields(ev.Detail), " ")
		return fmt.Sprintf("ALERT %s %s", ev.Type, detail)
	}
	return ""
}
