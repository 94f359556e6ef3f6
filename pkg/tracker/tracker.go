package tracker

import (
	"sync"
	"time"
)

const (
	// DefaultBatchSize triggers a flush when the queue reaches it.
	DefaultBatchSize = 10
	// DefaultFlushInterval is the recurring flush period.
	DefaultFlushInterval = 5 * time.Second
)

// AnalyticsTracker is the transport core: it queues consented events,
// batches them, and flushes on size, interval, or shutdown.
//
// Every public method checks the privacy gate first; a disallowed call is
// a silent no-op. Flush swaps the whole queue under the lock and sends
// outside it, so the ticker and the shutdown path can never drain the
// same events twice. A failed send is dropped: analytics loss under
// transient failure is preferred over retry storms.
type AnalyticsTracker struct {
	mu     sync.Mutex
	queue  []Event
	closed bool

	batchSize     int
	flushInterval time.Duration
	transport     Transport
	privacy       *PrivacyManager
	identity      *VisitorIdentity

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewAnalyticsTracker(transport Transport, privacy *PrivacyManager, identity *VisitorIdentity, batchSize int, flushInterval time.Duration) *AnalyticsTracker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	t := &AnalyticsTracker{
		batchSize:     batchSize,
		flushInterval: flushInterval,
		transport:     transport,
		privacy:       privacy,
		identity:      identity,
		done:          make(chan struct{}),
	}

	t.ticker = time.NewTicker(flushInterval)
	t.wg.Add(1)
	go t.flushLoop()

	// Opting out clears pending work and stops the timer.
	privacy.OnChange(func(ev PrivacyEvent) {
		if ev == EventOptedOut {
			t.handleOptOut()
		}
	})

	return t
}

// Track queues an event built by EventTracker. Silent no-op when tracking
// is not allowed.
func (t *AnalyticsTracker) Track(ev Event) {
	defer swallowPanic()

	if !t.privacy.Allowed() {
		return
	}

	var toSend []Event
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.queue = append(t.queue, ev)
	if len(t.queue) >= t.batchSize {
		toSend = t.queue
		t.queue = nil
	}
	t.mu.Unlock()

	if toSend != nil {
		t.send(toSend)
	}
}

// TrackPageView queues a pageview event.
func (t *AnalyticsTracker) TrackPageView(path, title, referrer string) {
	defer swallowPanic()

	t.Track(Event{
		Type: "pageview",
		Data: EventData{
			Page:      path,
			Title:     title,
			Referrer:  referrer,
			Timestamp: time.Now().UnixMilli(),
		},
	})
}

// Flush drains and sends everything currently queued.
func (t *AnalyticsTracker) Flush() {
	defer swallowPanic()

	t.mu.Lock()
	toSend := t.queue
	t.queue = nil
	t.mu.Unlock()

	if len(toSend) > 0 {
		t.send(toSend)
	}
}

// QueueLen reports the number of pending events.
func (t *AnalyticsTracker) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Close flushes pending events and stops the flush loop. The unload
// analog: best effort, not guaranteed delivery.
func (t *AnalyticsTracker) Close() {
	defer swallowPanic()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	t.ticker.Stop()
	t.Flush()
	t.wg.Wait()
}

func (t *AnalyticsTracker) flushLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			t.Flush()
		}
	}
}

func (t *AnalyticsTracker) handleOptOut() {
	t.mu.Lock()
	t.queue = nil
	t.mu.Unlock()
	t.ticker.Stop()
}

// send posts one batch. Fire and forget; errors are dropped.
func (t *AnalyticsTracker) send(events []Event) {
	defer swallowPanic()

	payload := BatchPayload{
		VisitorInfo: t.identity.GetVisitorInfo(),
		Events:      events,
	}
	_ = t.transport.SendBatch(payload)
}

// swallowPanic keeps SDK failures from ever reaching host code.
func swallowPanic() {
	_ = recover()
}
