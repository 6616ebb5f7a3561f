package configurator

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay of quiescence. Each Trigger supersedes
// the pending one; a superseded timer that already fired is ignored.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
	seq   uint64
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the quiescence window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
}

// Cancel drops the pending run, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Interval runs fn every period while started. Start and Stop are idempotent
// and may be called from fn.
type Interval struct {
	mu     sync.Mutex
	period time.Duration
	fn     func()
	stop   chan struct{}
}

func NewInterval(period time.Duration, fn func()) *Interval {
	return &Interval{period: period, fn: fn}
}

func (i *Interval) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.stop != nil {
		return
	}
	stop := make(chan struct{})
	i.stop = stop
	go i.run(stop)
}

func (i *Interval) run(stop chan struct{}) {
	t := time.NewTicker(i.period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			i.fn()
		}
	}
}

func (i *Interval) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.stop != nil {
		close(i.stop)
		i.stop = nil
	}
}

func (i *Interval) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stop != nil
}
