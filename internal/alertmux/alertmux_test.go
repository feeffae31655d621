package alertmux

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kestrel-auto/drive.assist/internal/adas/pipeline"
)

// TestHUDPort implements HUDPorter for testing AlertMux operations
type TestHUDPort struct {
	readData    []byte
	readIndex   int
	writtenData bytes.Buffer
	writeErr    error
	closeErr    error
	closed      bool
	mu          sync.Mutex
}

func NewTestHUDPort(data string) *TestHUDPort {
	return &TestHUDPort{
		readData: []byte(data),
	}
}

func (p *TestHUDPort) Read(buf []byte) (int, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, io.EOF
		}
		if p.readIndex < len(p.readData) {
			n := copy(buf, p.readData[p.readIndex:])
			p.readIndex += n
			p.mu.Unlock()
			return n, nil
		}
		// Block until closed to simulate waiting for more data
		p.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
}

func (p *TestHUDPort) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.writtenData.Write(buf)
}

func (p *TestHUDPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

func (p *TestHUDPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writtenData.String()
}

func TestSendAlertAppendsNewline(t *testing.T) {
	port := NewTestHUDPort("")
	mux := NewAlertMux(port)
	defer mux.Close()

	if err := mux.SendAlert("ALERT fcws_state SAFE -> WARNING"); err != nil {
		t.Fatalf("SendAlert failed: %v", err)
	}
	got := port.Written()
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("alert line missing trailing newline: %q", got)
	}
	if strings.Count(got, "\n") != 1 {
		t.Errorf("expected a single line, got %q", got)
	}

	// A line already ending in a newline is not doubled.
	port.writtenData.Reset()
	if err := mux.SendAlert("ALERT ldws_state SAFE -> LEFT_WARNING\n"); err != nil {
		t.Fatalf("SendAlert failed: %v", err)
	}
	if got := port.Written(); strings.Count(got, "\n") != 1 {
		t.Errorf("expected a single line, got %q", got)
	}
}

func TestSendAlertWriteError(t *testing.T) {
	port := NewTestHUDPort("")
	port.writeErr = errors.New("device unplugged")
	mux := NewAlertMux(port)
	defer mux.Close()

	if err := mux.SendAlert("ALERT test"); err == nil {
		t.Error("expected error from failed write")
	}
}

func TestMonitorFanOut(t *testing.T) {
	port := NewTestHUDPort("REARM\nACK\n")
	mux := NewAlertMux(port)

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()
	defer mux.Unsubscribe(id1)
	defer mux.Unsubscribe(id2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	for _, ch := range []chan string{ch1, ch2} {
		select {
		case line := <-ch:
			if line != "REARM" {
				t.Errorf("expected REARM, got %q", line)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for fan-out line")
		}
	}

	mux.Close()
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	mux := NewAlertMux(NewTestHUDPort(""))
	defer mux.Close()

	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after Unsubscribe")
	}

	// Unsubscribing twice is harmless.
	mux.Unsubscribe(id)
}

func TestCloseClosesSubscribers(t *testing.T) {
	port := NewTestHUDPort("")
	mux := NewAlertMux(port)

	_, ch := mux.Subscribe()
	if err := mux.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed on Close")
	}
	if !port.closed {
		t.Error("expected underlying port closed")
	}
}

func TestMonitorContextCancel(t *testing.T) {
	port := NewTestHUDPort("")
	mux := NewAlertMux(port)
	defer mux.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestClassifyLine(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"REARM", CommandRearm},
		{"rearm", CommandRearm},
		{"  REARM  ", CommandRearm},
		{"REARM 1", CommandRearm},
		{"RESET", CommandResetDisplay},
		{"RESET-DISPLAY", CommandResetDisplay},
		{"ACK", CommandAck},
		{"OK", CommandAck},
		{"", CommandUnknown},
		{"BEEP", CommandUnknown},
	}
	for _, c := range cases {
		if got := ClassifyLine(c.line); got != c.want {
			t.Errorf("ClassifyLine(%q) = %q, want %q", c.line, got, c.want)
		}
	}
}

func TestFormatAlert(t *testing.T) {
	ev := pipeline.Event{Type: pipeline.EventFCWSState, Detail: "SAFE -> WARNING"}
	if got := FormatAlert(ev); got != "ALERT fcws_state SAFE -> WARNING" {
		t.Errorf("unexpected alert line %q", got)
	}

	// Multi-line detail collapses to one line.
	ev = pipeline.Event{Type: pipeline.EventArbiterMode, Detail: "DL_ACTIVE ->\nDL_DEGRADED"}
	if got := FormatAlert(ev); strings.Contains(got, "\n") {
		t.Errorf("alert line contains newline: %q", got)
	}

	// Display shedding events stay off the HUD.
	ev = pipeline.Event{Type: pipeline.EventDisplayChange, Detail: "birds_eye_view off"}
	if got := FormatAlert(ev); got != "" {
		t.Errorf("expected no alert for display change, got %q", got)
	}
}

func TestDisabledAlertMux(t *testing.T) {
	d := NewDisabledAlertMux()

	if err := d.SendAlert("ALERT anything"); err != nil {
		t.Errorf("disabled SendAlert returned error: %v", err)
	}

	_, ch := d.Subscribe()
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel closed on Close")
	}

	// Subscribing after close yields an already-closed channel.
	_, ch = d.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if opts.BaudRate != 115200 || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("unexpected defaults: %+v", opts)
	}

	if _, err := (PortOptions{DataBits: 9}).Normalize(); err == nil {
		t.Error("expected error for invalid data bits")
	}
	if _, err := (PortOptions{StopBits: 3}).Normalize(); err == nil {
		t.Error("expected error for invalid stop bits")
	}
	if _, err := (PortOptions{Parity: "X"}).Normalize(); err == nil {
		t.Error("expected error for invalid parity")
	}

	a := PortOptions{Parity: "none"}
	b := PortOptions{BaudRate: 115200, Parity: "N"}
	if !a.Equal(b) {
		t.Errorf("expected %+v equal to %+v after normalization", a, b)
	}
}
