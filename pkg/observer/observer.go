// Package observer watches the natural size of an image and the size of the
// box it is rendered in.
//
// There is no resize event for either of them, so both are sampled on a
// fixed cadence and downstream work is triggered only when a sample differs
// from the previous one.
package observer

import (
	"sync"
	"time"

	"github.com/menta2k/img-frameright/pkg/geometry"
)

// DefaultPeriod is the sampling interval
const DefaultPeriod = 200 * time.Millisecond

// Probe reads the sizes being observed
type Probe interface {
	// NaturalSize returns the intrinsic size of the loaded image, zero when
	// nothing is loaded yet.
	NaturalSize() geometry.Size
	// BoxSize returns the rendered size of the element
	BoxSize() geometry.Size
}

// ProbeFunc adapts two functions to a Probe
type ProbeFunc struct {
	Natural func() geometry.Size
	Box     func() geometry.Size
}

func (p ProbeFunc) NaturalSize() geometry.Size { return p.Natural() }
func (p ProbeFunc) BoxSize() geometry.Size     { return p.Box() }

// Changes describes what differed in one sample
type Changes struct {
	NaturalChanged bool
	BoxChanged     bool
	Natural        geometry.Size
	Box            geometry.Size
}

// Any reports whether anything changed
func (c Changes) Any() bool {
	return c.NaturalChanged || c.BoxChanged
}

// Observer samples a Probe periodically
type Observer struct {
	mu        sync.Mutex
	probe     Probe
	scheduler Scheduler
	period    time.Duration
	onChange  func(Changes)

	natural geometry.SizeSlot
	box     geometry.SizeSlot

	cancel     func()
	generation uint64
}

// Config holds observer settings
type Config struct {
	Period time.Duration
}

// New creates an Observer. onChange is called after a sample in which at
// least one size changed.
func New(probe Probe, scheduler Scheduler, onChange func(Changes)) *Observer {
	return NewWithConfig(probe, scheduler, onChange, Config{Period: DefaultPeriod})
}

// NewWithConfig creates an Observer with custom settings
func NewWithConfig(probe Probe, scheduler Scheduler, onChange func(Changes), config Config) *Observer {
	if scheduler == nil {
		scheduler = TickerScheduler{}
	}
	if config.Period <= 0 {
		config.Period = DefaultPeriod
	}
	return &Observer{
		probe:     probe,
		scheduler: scheduler,
		period:    config.Period,
		onChange:  onChange,
	}
}

// Period returns the sampling interval
func (o *Observer) Period() time.Duration {
	return o.period
}

// Start begins periodic sampling. Starting a running observer is a no-op.
// A fresh start forgets earlier samples, so its first sample reports the
// current sizes as changed.
func (o *Observer) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		return
	}
	o.natural = geometry.SizeSlot{}
	o.box = geometry.SizeSlot{}
	o.generation++
	gen := o.generation
	o.cancel = o.scheduler.Every(o.period, func() { o.tick(gen) })
}

// Stop ends periodic sampling. Stopping a stopped observer is a no-op. It
// must not be called from within the onChange callback.
func (o *Observer) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.generation++
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether the observer is started
func (o *Observer) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel != nil
}

// Observe takes one sample and notifies on change. It is what every tick
// runs, exported so hosts can force a sample.
func (o *Observer) Observe() Changes {
	o.mu.Lock()
	changes := o.sampleLocked()
	o.mu.Unlock()

	o.notify(changes)
	return changes
}

// Sizes returns the last sampled natural and box sizes
func (o *Observer) Sizes() (natural, box geometry.Size) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.natural.Get(), o.box.Get()
}

func (o *Observer) tick(gen uint64) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	changes := o.sampleLocked()
	o.mu.Unlock()

	o.notify(changes)
}

func (o *Observer) sampleLocked() Changes {
	natural := o.probe.NaturalSize()
	box := o.probe.BoxSize()

	var c Changes
	c.NaturalChanged = o.natural.SetIfDifferent(geometry.NewSize(natural.Width, natural.Height))
	c.BoxChanged = o.box.SetIfDifferent(geometry.NewSize(box.Width, box.Height))
	c.Natural = o.natural.Get()
	c.Box = o.box.Get()
	return c
}

func (o *Observer) notify(c Changes) {
	if c.Any() && o.onChange != nil {
		o.onChange(c)
	}
}
