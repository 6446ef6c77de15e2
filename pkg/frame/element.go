// Package frame implements the image frame element: an image that pans and
// zooms to the region of interest best fitting the element's current box.
//
// The host rendering framework is modelled explicitly. The host sets
// attributes in batches, which triggers Update with the names that changed,
// calls Attach and Detach on lifecycle events, and reads Render to learn how
// the inner <img> and the host element must look. Sizes are read through an
// observer.Probe, sampled periodically while attached.
package frame

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/menta2k/img-frameright/pkg/compositor"
	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/observer"
	"github.com/menta2k/img-frameright/pkg/regions"
	"github.com/menta2k/img-frameright/pkg/selector"
)

// Config holds element settings
type Config struct {
	// Period is the observer sampling interval
	Period time.Duration
	// Threshold is the divergence under which the full image is kept
	Threshold float64
	// LogOutput receives debug lines, os.Stderr when nil
	LogOutput io.Writer
	// NewID generates ids for regions without one
	NewID func() string
}

// DefaultConfig returns the default element configuration
func DefaultConfig() Config {
	return Config{
		Period:    observer.DefaultPeriod,
		Threshold: selector.DefaultThreshold,
	}
}

// Element is one image frame instance. It owns all of its state; nothing is
// shared between instances. Methods are safe for concurrent use, observer
// ticks and attribute updates are serialised.
type Element struct {
	mu     sync.Mutex
	config Config
	logger *log.Logger

	attrs       map[string]string
	descriptors []regions.Descriptor

	original regions.Region
	regions  []regions.Region
	box      geometry.Size

	selected  selector.Result
	transform compositor.Transform
	imgStyle  string
	hostStyle map[string]string

	attached     bool
	observer     *observer.Observer
	computations int
}

// New creates an Element with default configuration
func New(probe observer.Probe, scheduler observer.Scheduler) *Element {
	return NewWithConfig(probe, scheduler, DefaultConfig())
}

// NewWithConfig creates an Element with custom configuration
func NewWithConfig(probe observer.Probe, scheduler observer.Scheduler, config Config) *Element {
	if config.Period <= 0 {
		config.Period = observer.DefaultPeriod
	}
	if config.Threshold <= 0 {
		config.Threshold = selector.DefaultThreshold
	}
	out := config.LogOutput
	if out == nil {
		out = os.Stderr
	}

	e := &Element{
		config: config,
		logger: log.NewWithOptions(out, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           log.DebugLevel,
		}),
		attrs:     make(map[string]string),
		original:  regions.Original(geometry.UnknownSize),
		hostStyle: make(map[string]string),
	}
	e.observer = observer.NewWithConfig(probe, scheduler, e.handleChanges, observer.Config{Period: config.Period})
	return e
}

// Attach starts observing sizes. Attaching twice is a no-op.
func (e *Element) Attach() {
	e.mu.Lock()
	e.attached = true
	e.mu.Unlock()

	e.observer.Start()
}

// Detach stops observing sizes. No recomputation happens after it returns
// until the element is attached again.
func (e *Element) Detach() {
	e.mu.Lock()
	e.attached = false
	e.mu.Unlock()

	// Outside the lock: stopping waits for an in-flight tick, which needs it.
	e.observer.Stop()
}

// Attached reports whether the element is attached
func (e *Element) Attached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached
}

// SetAttribute sets one attribute
func (e *Element) SetAttribute(name, value string) {
	e.SetAttributes(map[string]string{name: value})
}

// SetAttributes applies a batch of attribute values and runs Update with
// the names whose value actually changed.
func (e *Element) SetAttributes(batch map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := make(map[string]bool)
	for name, value := range batch {
		if old, ok := e.attrs[name]; ok && old == value {
			continue
		}
		e.attrs[name] = value
		changed[name] = true
	}
	e.updateLocked(changed)
}

// RemoveAttribute removes an attribute
func (e *Element) RemoveAttribute(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.attrs[name]; !ok {
		return
	}
	delete(e.attrs, name)
	e.updateLocked(map[string]bool{name: true})
}

// Attribute returns an attribute value
func (e *Element) Attribute(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.attrs[name]
	return v, ok
}

// Update reacts to a set of changed attribute names
func (e *Element) Update(changed ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := make(map[string]bool, len(changed))
	for _, name := range changed {
		set[name] = true
	}
	e.updateLocked(set)
}

func (e *Element) updateLocked(changed map[string]bool) {
	if changed[AttrImageRegions] {
		descs, err := regions.ParseDescriptors(e.attrs[AttrImageRegions])
		if err != nil {
			e.errorf("Ignoring %s: %v", AttrImageRegions, err)
		}
		e.descriptors = descs
		e.populateRegions()
	}

	if changed[AttrImageRegionID] {
		e.panAndZoom()
	}

	if changed[AttrWidth] {
		e.setHostMax("max-width", AttrWidth)
	}
	if changed[AttrHeight] {
		e.setHostMax("max-height", AttrHeight)
	}
}

func (e *Element) setHostMax(property, attr string) {
	if v, ok := e.attrs[attr]; ok && v != "" {
		e.hostStyle[property] = v + "px"
		return
	}
	delete(e.hostStyle, property)
}

// handleChanges runs on every observer sample in which something changed
func (e *Element) handleChanges(c observer.Changes) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.attached {
		return
	}

	if c.NaturalChanged {
		e.original.Size = c.Natural
		e.logf("Natural image size is now %s", c.Natural)
		e.populateRegions()
	}
	if c.BoxChanged {
		e.box = c.Box
		e.logf("Element size is now %s", c.Box)
	}
	e.panAndZoom()
}

// populateRegions rebuilds the region list from the descriptors
func (e *Element) populateRegions() {
	e.logf("Normalizing %d image regions", len(e.descriptors))

	res := regions.Normalize(e.descriptors, e.original.Size, regions.Options{
		ResponsiveSource: e.attrs[AttrSrcset] != "",
		NewID:            e.config.NewID,
	})
	e.regions = res.Regions

	if res.Deferred {
		e.logf("Natural image size unknown, normalization deferred")
		return
	}
	for _, w := range res.Warnings {
		e.errorf("%s", w)
	}
	for _, r := range res.Regions {
		e.logf("Region: %s", r)
	}
	if res.Dropped > 0 {
		e.logf("Dropped %d invalid image regions", res.Dropped)
	}
}

// panAndZoom selects the best region and recomputes the <img> style
func (e *Element) panAndZoom() {
	if e.original.Size.IsUnknown() {
		e.logf("Natural image size unknown, pan and zoom deferred")
		return
	}

	e.selected = selector.Select(selector.Input{
		Box:        e.box,
		Original:   e.original,
		Regions:    e.regions,
		OverrideID: e.attrs[AttrImageRegionID],
		Threshold:  e.config.Threshold,
	})
	e.logf("Selected region %s (%s, divergence %.3f)", e.selected.Region.ID, e.selected.Reason, e.selected.Divergence)

	e.transform = compositor.Compose(e.selected.Region, e.box)
	e.imgStyle = compositor.Style(e.transform, e.imgStyle == "", e.config.Period)
	e.computations++
}

// Selected returns the currently selected region, false before the first
// computation.
func (e *Element) Selected() (regions.Region, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected.Region, e.computations > 0
}

// Selection returns the last selector outcome, including why the region
// won, false before the first computation.
func (e *Element) Selection() (selector.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, e.computations > 0
}

// Regions returns a copy of the normalized region list
func (e *Element) Regions() []regions.Region {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]regions.Region(nil), e.regions...)
}

// Computations returns how many times the style has been recomputed
func (e *Element) Computations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computations
}

// debug follows boolean attribute semantics, except that an explicit
// "false" turns it off.
func (e *Element) debug() bool {
	v, ok := e.attrs[AttrDebug]
	return ok && !strings.EqualFold(strings.TrimSpace(v), "false")
}

func (e *Element) format(format string, args ...any) string {
	text := fmt.Sprintf(format, args...)
	if id := e.attrs[AttrID]; id != "" {
		return fmt.Sprintf("[%s] %s", id, text)
	}
	return text
}

func (e *Element) logf(format string, args ...any) {
	if e.debug() {
		e.logger.Info(e.format(format, args...))
	}
}

func (e *Element) errorf(format string, args ...any) {
	if e.debug() {
		e.logger.Error(e.format(format, args...))
	}
}
