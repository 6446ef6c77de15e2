package frame

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/observer"
	"github.com/menta2k/img-frameright/pkg/regions"
)

const testRegions = `[
	{"id": "portrait", "shape": "rectangle", "absolute": false, "x": 0.25, "y": 0, "width": 0.5, "height": 1},
	{"id": "square", "shape": "rectangle", "absolute": false, "x": "0", "y": "0", "width": "0.8", "height": "1"},
	{"id": "broken", "shape": "circle", "absolute": false, "x": 0, "y": 0, "width": 1, "height": 1}
]`

// fakeProbe stands in for the rendered DOM
type fakeProbe struct {
	mu      sync.Mutex
	natural geometry.Size
	box     geometry.Size
}

func (p *fakeProbe) set(natural, box geometry.Size) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.natural, p.box = natural, box
}

func (p *fakeProbe) NaturalSize() geometry.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.natural
}

func (p *fakeProbe) BoxSize() geometry.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box
}

func newTestElement(t *testing.T) (*Element, *fakeProbe, *observer.ManualScheduler, *bytes.Buffer) {
	t.Helper()
	probe := &fakeProbe{}
	sched := observer.NewManualScheduler()
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.LogOutput = &buf
	return NewWithConfig(probe, sched, cfg), probe, sched, &buf
}

func TestElementPanAndZoom(t *testing.T) {
	e, probe, sched, _ := newTestElement(t)
	e.SetAttributes(map[string]string{
		AttrImageRegions: testRegions,
		"src":            "photo.jpg",
	})

	if r := e.Render(); r.ImgStyle != "" {
		t.Errorf("Expected no style before the natural size is known, got %q", r.ImgStyle)
	}
	if len(e.Regions()) != 0 {
		t.Errorf("Expected normalization to be deferred")
	}

	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()
	sched.Tick()

	if got := len(e.Regions()); got != 2 {
		t.Fatalf("Expected 2 regions, got %d", got)
	}
	selected, ok := e.Selected()
	if !ok || selected.ID != "portrait" {
		t.Errorf("Expected portrait to be selected, got %s", selected.ID)
	}

	want := "visibility: visible; transform-origin: 300px 0px; transform: translate(-300px, 0px) scale(0.750);"
	if got := e.Render().ImgStyle; got != want {
		t.Errorf("Unexpected style:\n got: %s\nwant: %s", got, want)
	}
}

func TestElementThrottlesTicks(t *testing.T) {
	e, probe, sched, _ := newTestElement(t)
	e.SetAttribute(AttrImageRegions, testRegions)
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()

	sched.Tick()
	sched.Tick()
	sched.Tick()
	if n := e.Computations(); n != 1 {
		t.Errorf("Expected 1 computation for unchanged sizes, got %d", n)
	}

	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(1000, 800))
	sched.Tick()
	if n := e.Computations(); n != 2 {
		t.Errorf("Expected a recomputation after resize, got %d", n)
	}

	style := e.Render().ImgStyle
	if !strings.Contains(style, "transition: all 0.3s;") {
		t.Errorf("Expected a transition on the second styling, got %s", style)
	}
	if !strings.Contains(style, "object-fit: cover;") {
		t.Errorf("Expected the full image when ratios match, got %s", style)
	}
}

func TestElementLifecycle(t *testing.T) {
	e, probe, sched, _ := newTestElement(t)
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))

	e.Attach()
	e.Attach()
	if sched.Active() != 1 {
		t.Fatalf("Expected 1 running timer, got %d", sched.Active())
	}
	sched.Tick()
	if e.Computations() != 1 {
		t.Fatalf("Expected 1 computation, got %d", e.Computations())
	}

	e.Detach()
	e.Detach()
	if sched.Active() != 0 {
		t.Errorf("Expected timer to be stopped, got %d active", sched.Active())
	}

	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(800, 200))
	sched.Tick()
	if e.Computations() != 1 {
		t.Errorf("Expected no recomputation after detach, got %d", e.Computations())
	}

	e.Attach()
	sched.Tick()
	if e.Computations() != 2 {
		t.Errorf("Expected re-attach to resume observing, got %d", e.Computations())
	}
}

// stallingProbe holds the next BoxSize read until released
type stallingProbe struct {
	fakeProbe
	gate    sync.Mutex
	stall   chan struct{}
	entered chan struct{}
}

func (p *stallingProbe) stallNext() (entered, release chan struct{}) {
	p.gate.Lock()
	defer p.gate.Unlock()
	p.entered = make(chan struct{})
	p.stall = make(chan struct{})
	return p.entered, p.stall
}

func (p *stallingProbe) BoxSize() geometry.Size {
	p.gate.Lock()
	stall, entered := p.stall, p.entered
	p.stall, p.entered = nil, nil
	p.gate.Unlock()

	if stall != nil {
		close(entered)
		<-stall
	}
	return p.fakeProbe.BoxSize()
}

func TestElementDetachDuringTick(t *testing.T) {
	probe := &stallingProbe{}
	sched := observer.NewManualScheduler()
	cfg := DefaultConfig()
	cfg.LogOutput = &bytes.Buffer{}
	e := NewWithConfig(probe, sched, cfg)
	e.SetAttribute(AttrImageRegions, testRegions)

	probe.set(geometry.NewSize(1000, 1000), geometry.NewSize(500, 500))
	e.Attach()
	sched.Tick()
	if selected, _ := e.Selected(); !selected.IsOriginal() {
		t.Fatalf("Expected the full image for a square box, got %s", selected.ID)
	}

	// The resize is sampled by a tick that is still running when Detach lands
	probe.set(geometry.NewSize(1000, 1000), geometry.NewSize(200, 400))
	entered, release := probe.stallNext()
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		sched.Tick()
	}()
	<-entered

	detachDone := make(chan struct{})
	go func() {
		defer close(detachDone)
		e.Detach()
	}()
	deadline := time.Now().Add(2 * time.Second)
	for e.Attached() {
		if time.Now().After(deadline) {
			t.Fatal("Detach never started")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	<-tickDone
	<-detachDone

	e.Attach()
	for i := 0; i < 3; i++ {
		sched.Tick()
	}

	selected, ok := e.Selected()
	if !ok || selected.ID != "portrait" {
		t.Errorf("Expected the 200x400 box to select portrait after re-attach, got %s", selected.ID)
	}
}

func TestElementOverride(t *testing.T) {
	e, probe, sched, _ := newTestElement(t)
	e.SetAttribute(AttrImageRegions, testRegions)
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()
	sched.Tick()

	e.SetAttribute(AttrImageRegionID, "square")
	if r, _ := e.Selected(); r.ID != "square" {
		t.Errorf("Expected override to select square immediately, got %s", r.ID)
	}
	if e.Computations() != 2 {
		t.Errorf("Expected override to recompute, got %d", e.Computations())
	}

	e.SetAttribute(AttrImageRegionID, regions.OriginalID)
	if r, _ := e.Selected(); !r.IsOriginal() {
		t.Errorf("Expected override to select the original, got %s", r.ID)
	}

	e.RemoveAttribute(AttrImageRegionID)
	if r, _ := e.Selected(); r.ID != "portrait" {
		t.Errorf("Expected best fit after removing the override, got %s", r.ID)
	}
}

func TestElementRegionsAttributeChange(t *testing.T) {
	e, probe, sched, _ := newTestElement(t)
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()
	sched.Tick()

	if r, _ := e.Selected(); !r.IsOriginal() {
		t.Fatalf("Expected original without regions, got %s", r.ID)
	}

	e.SetAttribute(AttrImageRegions, testRegions)
	if got := len(e.Regions()); got != 2 {
		t.Fatalf("Expected regions to be rebuilt on attribute change, got %d", got)
	}

	e.SetAttribute(AttrImageRegions, "not json")
	if got := len(e.Regions()); got != 0 {
		t.Errorf("Expected invalid attribute to yield no regions, got %d", got)
	}
}

func TestElementNaturalSizeChangeRebuildsRegions(t *testing.T) {
	e, probe, sched, _ := newTestElement(t)
	e.SetAttribute(AttrImageRegions, testRegions)
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()
	sched.Tick()

	probe.set(geometry.NewSize(500, 400), geometry.NewSize(300, 600))
	sched.Tick()

	r, ok := regions.Find(e.Regions(), "portrait")
	if !ok {
		t.Fatal("Expected portrait region")
	}
	if r.Position != (geometry.Position{X: 125, Y: 0}) || !r.Size.Equal(geometry.NewSize(250, 400)) {
		t.Errorf("Expected region resolved against the new natural size, got %s", r)
	}
}

func TestElementAttributes(t *testing.T) {
	e, probe, sched, _ := newTestElement(t)
	e.SetAttributes(map[string]string{
		"alt":            "A cat",
		"src":            "cat.jpg",
		"loading":        "lazy",
		AttrWidth:        "640",
		AttrHeight:       "480",
		AttrStyle:        "border: 1px solid red",
		AttrImageRegions: testRegions,
		AttrID:           "hero",
	})
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()
	sched.Tick()

	r := e.Render()
	for _, name := range []string{"alt", "src", "loading"} {
		if _, ok := r.ImgAttributes[name]; !ok {
			t.Errorf("Expected %s to be forwarded", name)
		}
	}
	for _, name := range []string{AttrWidth, AttrHeight, AttrImageRegions, AttrID} {
		if _, ok := r.ImgAttributes[name]; ok {
			t.Errorf("Did not expect %s to be forwarded", name)
		}
	}
	if r.ImgAttributes[AttrStyle] != r.ImgStyle {
		t.Errorf("Expected the <img> style to be the computed one, got %q", r.ImgAttributes[AttrStyle])
	}

	if r.HostStyle["max-width"] != "640px" || r.HostStyle["max-height"] != "480px" {
		t.Errorf("Unexpected host style %v", r.HostStyle)
	}
	if got := r.HostStyleString(); got != "max-height: 480px; max-width: 640px;" {
		t.Errorf("Unexpected host style string %q", got)
	}

	e.RemoveAttribute(AttrWidth)
	if _, ok := e.Render().HostStyle["max-width"]; ok {
		t.Error("Expected max-width to be removed with the width attribute")
	}

	tag := r.ImgTag()
	if !strings.HasPrefix(tag, `<img alt="A cat" loading="lazy" src="cat.jpg" style="visibility: visible;`) {
		t.Errorf("Unexpected tag %s", tag)
	}
}

func TestElementDebugLogging(t *testing.T) {
	e, probe, sched, buf := newTestElement(t)
	e.SetAttributes(map[string]string{
		AttrImageRegions: testRegions,
		AttrID:           "hero",
	})
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()
	sched.Tick()

	if buf.Len() != 0 {
		t.Fatalf("Expected no output without debug, got %q", buf.String())
	}

	e.SetAttribute(AttrDebug, "")
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(600, 300))
	sched.Tick()

	out := buf.String()
	if !strings.Contains(out, "[hero] Selected region") {
		t.Errorf("Expected prefixed debug lines, got %q", out)
	}

	buf.Reset()
	e.SetAttribute(AttrDebug, "false")
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	sched.Tick()
	if buf.Len() != 0 {
		t.Errorf("Expected debug=\"false\" to silence output, got %q", buf.String())
	}
}

func TestElementAbsoluteRegionsWithSrcsetWarns(t *testing.T) {
	e, probe, sched, buf := newTestElement(t)
	e.SetAttributes(map[string]string{
		AttrDebug:        "",
		AttrSrcset:       "small.jpg 500w, large.jpg 1000w",
		AttrImageRegions: `[{"id": "abs", "shape": "rectangle", "absolute": true, "x": 10, "y": 10, "width": 100, "height": 200}]`,
	})
	probe.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	e.Attach()
	sched.Tick()

	if !strings.Contains(buf.String(), "srcset") {
		t.Errorf("Expected a srcset warning, got %q", buf.String())
	}
	if len(e.Regions()) != 1 {
		t.Errorf("Expected the absolute region to be kept despite the warning")
	}
}

func TestElementInstancesAreIndependent(t *testing.T) {
	a, probeA, schedA, _ := newTestElement(t)
	b, probeB, schedB, _ := newTestElement(t)

	a.SetAttribute(AttrImageRegions, testRegions)
	probeA.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	probeB.set(geometry.NewSize(1000, 800), geometry.NewSize(300, 600))
	a.Attach()
	b.Attach()
	schedA.Tick()
	schedB.Tick()

	if len(b.Regions()) != 0 {
		t.Errorf("Regions leaked between instances")
	}
	ra, _ := a.Selected()
	rb, _ := b.Selected()
	if ra.ID != "portrait" || !rb.IsOriginal() {
		t.Errorf("Unexpected selections %s / %s", ra.ID, rb.ID)
	}
}

func ExampleElement() {
	probe := observer.ProbeFunc{
		Natural: func() geometry.Size { return geometry.NewSize(1000, 2000) },
		Box:     func() geometry.Size { return geometry.NewSize(400, 300) },
	}
	sched := observer.NewManualScheduler()

	e := New(probe, sched)
	e.SetAttribute(AttrImageRegions, `[{"id":"r","shape":"rectangle","absolute":true,"x":100,"y":100,"width":200,"height":100}]`)
	e.Attach()
	defer e.Detach()
	sched.Tick()

	fmt.Println(e.Render().ImgStyle)
	// Output: visibility: visible; transform-origin: 133px 100px; transform: translate(-133px, -100px) scale(3.000);
}
