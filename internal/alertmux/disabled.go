package alertmux

import (
	"context"
	"net/http"
	"sync"
)

// DisabledAlertMux is a no-op AlertMux implementation used when no HUD is
// connected (for --hud-port ""). It allows the server and admin routes to run
// without a real device. Subscribers are tracked so their channels can be
// deterministically closed on Unsubscribe() or Close(), allowing readers to
// unblock predictably during shutdown.
type DisabledAlertMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledAlertMux() *DisabledAlertMux {
	return &DisabledAlertMux{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledAlertMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		d.mu.Unlock()
		return id, ch
	}
	d.subscribers[id] = ch
	d.mu.Unlock()
	return id, ch
}

func (d *DisabledAlertMux) Unsubscribe(id string) {
	d.mu.Lock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
}

func (d *DisabledAlertMux) SendAlert(string) error { return nil }

func (d *DisabledAlertMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledAlertMux) Close() error {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	// Close all subscriber channels
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
	return nil
}

func (d *DisabledAlertMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/hud-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alert HUD disabled"))
	})
}
