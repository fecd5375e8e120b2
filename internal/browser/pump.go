package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-rod/rod"

	"tubesieve/internal/logging"
)

// drainEventsJS atomically swaps the in-page queue for an empty one and
// returns whatever had accumulated since the last drain.
const drainEventsJS = `() => {
	const buf = Array.isArray(window.__sieveEvents) ? window.__sieveEvents : [];
	window.__sieveEvents = [];
	return buf;
}`

type pageEvent struct {
	Binding string `json:"binding"`
	Detail  string `json:"detail"`
	Value   string `json:"value"`
}

// StartEvents begins draining the page's event queue on the configured
// throttle interval. Starting an already running pump is a no-op.
func (d *PageDocument) StartEvents(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pumping {
		return nil
	}
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.pumping = true
	go d.pump(ctx, d.stopCh, d.doneCh)
	logging.Events("event pump started (throttle=%s)", d.throttle)
	return nil
}

// StopEvents stops the pump and waits for it to exit. Safe to call
// multiple times and when the pump never started.
func (d *PageDocument) StopEvents() {
	d.mu.Lock()
	if !d.pumping {
		d.mu.Unlock()
		return
	}
	d.pumping = false
	close(d.stopCh)
	done := d.doneCh
	d.mu.Unlock()

	<-done
	logging.Events("event pump stopped")
}

func (d *PageDocument) pump(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	throttle := d.throttle
	if throttle <= 0 {
		throttle = 250 * time.Millisecond
	}
	ticker := time.NewTicker(throttle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			d.drainOnce()
		}
	}
}

// drainOnce pulls queued events off the page and dispatches them to
// their bound handlers. Handlers run on the pump goroutine, so they
// must not block on the pump stopping.
func (d *PageDocument) drainOnce() {
	res, err := d.page.Evaluate(&rod.EvalOptions{
		JS:           drainEventsJS,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		// Navigation or a closed page; the next tick retries.
		logging.EventsDebug("drain failed: %v", err)
		return
	}
	if res == nil || res.Value.Nil() {
		return
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		logging.EventsDebug("drain marshal failed: %v", err)
		return
	}

	var events []pageEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		logging.EventsDebug("drain decode failed: %v", err)
		return
	}

	for _, ev := range events {
		d.mu.RLock()
		fn, bound := d.bindings[ev.Binding]
		d.mu.RUnlock()
		if !bound {
			logging.EventsDebug("no handler for binding %s", ev.Binding)
			continue
		}
		logging.Events("dispatch %s detail=%q value=%q", ev.Binding, ev.Detail, ev.Value)
		fn(ev.Detail, ev.Value)
	}
}
