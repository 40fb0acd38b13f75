package debounce

import (
	"sync"
	"time"
)

// Debouncer groups rapid successive calls into a single callback after a
// quiet period.
//
// Every Call cancels the pending timer before arming a new one, so only the
// trailing call of a burst shorter than the delay fires. A sequence number
// turns callbacks from superseded timers into no-ops even when the timer
// goroutine already started. The callback is never run concurrently with
// itself by the debouncer.
type Debouncer struct {
	mu       sync.Mutex
	clock    Clock
	delay    time.Duration
	timer    Timer
	pending  bool
	stopped  bool
	seq      uint64
	running  sync.Mutex
	callback func()
}

// New creates a debouncer that runs callback once no Call has been made for
// at least delay, measured on clock. A nil clock uses RealClock.
func New(clock Clock, delay time.Duration, callback func()) *Debouncer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Debouncer{
		clock:    clock,
		delay:    delay,
		callback: callback,
	}
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Call (re)arms the timer. Any pending timer is cancelled first.
// Calls after Stop are ignored.
func (d *Debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.pending = true
	d.seq++
	currentSeq := d.seq

	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.fire(currentSeq)
	})
}

// fire runs the callback if seq is still the armed generation.
func (d *Debouncer) fire(seq uint64) {
	d.running.Lock()
	defer d.running.Unlock()

	d.mu.Lock()
	if !d.pending || d.seq != seq || d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	if d.callback != nil {
		d.callback()
	}
}

// Flush runs the callback now if a call is pending, cancelling the timer.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	currentSeq := d.seq
	d.mu.Unlock()

	d.fire(currentSeq)
}

// Cancel drops any pending call without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}

// Pending reports whether a call is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending call and disables the debouncer. It waits for a
// callback that is already running, so nothing runs after Stop returns.
// Stop must not be called from inside the callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()

	d.running.Lock()
	d.running.Unlock()
}
