package dom

import (
	"time"

	"tubesieve/internal/logging"
)

// Default discovery budget. Thirty seconds rides out the slowest
// observed comment-section hydration; five polls a second keeps the
// reaction snappy without hammering the page.
const (
	DefaultDiscoverTimeout  = 30 * time.Second
	DefaultDiscoverInterval = 200 * time.Millisecond
)

// Discover polls s for selector with the default budget. See
// DiscoverWithin for the contract.
func Discover(s Scope, selector string, fn func(Element)) {
	DiscoverWithin(s, selector, DefaultDiscoverTimeout, DefaultDiscoverInterval, fn)
}

// DiscoverWithin polls s for selector until it matches or the time
// budget runs out, then invokes fn exactly once: with the element on
// success, with nil on exhaustion. A non-positive timeout reports
// absence without performing a single lookup.
//
// Every call is an independent session running on its own goroutine,
// and fn is called on that goroutine; callers touching shared state
// synchronize on their side. Lookup errors count as misses, so a page
// that is briefly navigating away just burns budget instead of killing
// the session. There is no cancellation handle: a caller that may stop
// caring passes a short timeout instead of keeping a knob to twist.
func DiscoverWithin(s Scope, selector string, timeout, interval time.Duration, fn func(Element)) {
	if interval <= 0 {
		interval = DefaultDiscoverInterval
	}
	d := &discovery{
		scope:     s,
		selector:  selector,
		remaining: timeout,
		interval:  interval,
		fn:        fn,
	}
	go d.run()
}

// discovery is one polling session. All state is confined to the
// session goroutine, so there is nothing to lock.
type discovery struct {
	scope     Scope
	selector  string
	remaining time.Duration
	interval  time.Duration
	fn        func(Element)
	attempts  int
}

func (d *discovery) run() {
	if d.remaining <= 0 {
		d.fn(nil)
		return
	}
	for {
		d.attempts++
		el, err := d.scope.QuerySelector(d.selector)
		if err == nil && el != nil {
			logging.DomDebug("discover %q: found on attempt %d", d.selector, d.attempts)
			d.fn(el)
			return
		}
		// Budget bookkeeping is arithmetic on the configured interval,
		// not wall clock, so the attempt ceiling for a given budget is
		// stable under scheduler jitter: ceil(timeout/interval).
		if d.remaining <= d.interval {
			logging.DomDebug("discover %q: exhausted after %d attempts", d.selector, d.attempts)
			d.fn(nil)
			return
		}
		d.remaining -= d.interval
		time.Sleep(d.interval)
	}
}
