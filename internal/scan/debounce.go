// Package scan validates attendee QR codes at the venue on behalf of a
// signed-in staff privilege.
package scan

import (
	"sync"
	"time"
)

// DefaultWindow is how long a repeated scan of the same code is ignored.
const DefaultWindow = 3 * time.Second

// Debouncer suppresses the burst of identical reads a scanner emits for a
// single code. It is a best-effort filter; the backend still rejects a
// privilege claimed twice.
type Debouncer struct {
	mu         sync.Mutex
	window     time.Duration
	now        func() time.Time
	processing bool
	lastText   string
	lastAt     time.Time
}

// NewDebouncer returns a Debouncer. A nil now uses time.Now.
func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{window: window, now: now}
}

// Begin reports whether text should be processed. It refuses while another
// scan is being processed, and refuses the previous text within the
// window. An accepted scan must be finished with Done.
func (d *Debouncer) Begin(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.processing {
		return false
	}
	now := d.now()
	if text == d.lastText && now.Sub(d.lastAt) < d.window {
		return false
	}
	d.processing = true
	d.lastText, d.lastAt = text, now
	return true
}

// Done marks the current scan as processed.
func (d *Debouncer) Done() {
	d.mu.Lock()
	d.processing = false
	d.mu.Unlock()
}

// Reset forgets the last scan so the same code can be scanned right away.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.processing = false
	d.lastText, d.lastAt = "", time.Time{}
	d.mu.Unlock()
}
