// Package watch implements continuous rebuild mode: a recursive content
// watcher feeds change events into a debouncer, which coalesces bursts into
// single build triggers consumed by the watch service loop.
package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"git.home.luguber.info/inful/wikigen/internal/events"
)

// DebouncerConfig tunes trigger coalescing.
type DebouncerConfig struct {
	// QuietWindow is how long the content tree must stay quiet before a
	// pending burst triggers a build.
	QuietWindow time.Duration
	// MaxDelay bounds postponement: a burst that never goes quiet still
	// builds after this long.
	MaxDelay time.Duration
}

// Debouncer coalesces BuildRequested bursts into single BuildNow events.
// A save-all in an editor or a git checkout touches many files at once; the
// site should rebuild once, not once per file. Builds run serially in the
// service loop, so at most one BuildNow is ever in flight.
type Debouncer struct {
	bus *events.Bus
	cfg DebouncerConfig

	mu        sync.Mutex
	readyOnce sync.Once
	ready     chan struct{}

	pending        bool
	full           bool
	firstRequestAt time.Time
	lastRequestAt  time.Time
	lastReason     string
	requestCount   int
}

func NewDebouncer(bus *events.Bus, cfg DebouncerConfig) (*Debouncer, error) {
	if bus == nil {
		return nil, errors.New("watch: debouncer requires a bus")
	}
	if cfg.QuietWindow <= 0 {
		return nil, errors.New("watch: quiet window must be > 0")
	}
	if cfg.MaxDelay <= 0 {
		return nil, errors.New("watch: max delay must be > 0")
	}
	return &Debouncer{bus: bus, cfg: cfg, ready: make(chan struct{})}, nil
}

// Ready is closed once Run has subscribed, for deterministic startup
// sequencing.
func (d *Debouncer) Ready() <-chan struct{} { return d.ready }

// Run processes requests until ctx is canceled or the bus closes.
func (d *Debouncer) Run(ctx context.Context) error {
	reqCh, unsubscribe := events.Subscribe[events.BuildRequested](d.bus, 64)
	defer unsubscribe()

	d.readyOnce.Do(func() { close(d.ready) })

	newStoppedTimer := func() *time.Timer {
		t := time.NewTimer(time.Hour)
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()

	resetTimer := func(t *time.Timer, after time.Duration) {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(after)
	}

	var quietC, maxC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case req, ok := <-reqCh:
			if !ok {
				return nil
			}
			d.onRequest(req)

			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C

			// The max timer runs from the first request of a burst and is
			// never pushed back by later ones.
			if d.firstOfBurst() {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			d.emit(ctx, "quiet")
			quietC = nil
			maxC = nil

		case <-maxC:
			d.emit(ctx, "max_delay")
			quietC = nil
			maxC = nil
		}
	}
}

func (d *Debouncer) onRequest(req events.BuildRequested) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := req.RequestedAt
	if now.IsZero() {
		now = time.Now()
	}
	if !d.pending {
		d.pending = true
		d.firstRequestAt = now
		d.requestCount = 0
		d.full = false
	}
	d.lastRequestAt = now
	d.lastReason = req.Reason
	d.requestCount++
	if req.Full {
		// One full request makes the whole coalesced build full.
		d.full = true
	}
}

func (d *Debouncer) firstOfBurst() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending && d.requestCount == 1
}

func (d *Debouncer) emit(ctx context.Context, cause string) {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	evt := events.BuildNow{
		TriggeredAt:  time.Now(),
		RequestCount: d.requestCount,
		FirstRequest: d.firstRequestAt,
		LastRequest:  d.lastRequestAt,
		LastReason:   d.lastReason,
		Full:         d.full,
		Cause:        cause,
	}
	d.pending = false
	d.full = false
	d.mu.Unlock()

	_ = d.bus.Publish(ctx, evt)
}
