// Package ratelimit debounces the raw inputs of a slicer viewer (slider
// index, view range) into an infrequently updated committed state.
//
// The limiter is a small state machine driven by an external timer:
// inputs arm a deadline and switch the timer on, and a tick past the
// deadline produces exactly one commit from the inputs current at that
// moment. A tick without a deadline switches the timer off again.
package ratelimit

import (
	"math"
	"time"

	"volslicer/internal/models"
)

// Default debounce timings.
const (
	DefaultDrag        = 200 * time.Millisecond
	DefaultView        = 400 * time.Millisecond
	DefaultInit        = 100 * time.Millisecond
	DefaultWarmupTicks = 5
)

// DefaultPlotSize is assumed until the host reports the real plot size.
var DefaultPlotSize = [2]float64{400, 400}

// Timings configures the debounce delays of a Limiter.
type Timings struct {
	// Drag is the delay after a slider change
	Drag time.Duration

	// View is the delay after a pan or zoom; longer so scroll zoom settles
	View time.Duration

	// Init is the delay after the viewer starts
	Init time.Duration

	// WarmupTicks is the number of ticks that must have elapsed before the
	// first commit, giving the plot time to settle its initial axis ranges
	WarmupTicks int
}

// DefaultTimings returns the standard debounce delays.
func DefaultTimings() Timings {
	return Timings{
		Drag:        DefaultDrag,
		View:        DefaultView,
		Init:        DefaultInit,
		WarmupTicks: DefaultWarmupTicks,
	}
}

// Sample is a snapshot of the raw inputs, read when a commit happens.
type Sample struct {
	Index int
	Info  models.AxisInfo

	// XView and YView are the figure's current view ranges, in any order
	XView, YView [2]float64

	// PlotSize is the size of the plot area in pixels; zero means unknown
	PlotSize [2]float64
}

// Limiter is the per-viewer debounce state. It is not safe for concurrent
// use; a viewer drives it from its event loop.
type Limiter struct {
	timings Timings

	deadline  time.Time
	armed     bool
	enabled   bool
	ticks     int
	lastIndex int
}

// New creates an idle limiter.
func New(t Timings) *Limiter {
	return &Limiter{timings: t, lastIndex: -1}
}

func (l *Limiter) arm(now time.Time, d time.Duration) {
	l.deadline = now.Add(d)
	l.armed = true
	l.enabled = true
}

// Start arms the initial commit.
func (l *Limiter) Start(now time.Time) { l.arm(now, l.timings.Init) }

// IndexChanged records a slider change.
func (l *Limiter) IndexChanged(now time.Time) { l.arm(now, l.timings.Drag) }

// ViewChanged records a pan or zoom.
func (l *Limiter) ViewChanged(now time.Time) { l.arm(now, l.timings.View) }

// Enabled reports whether the timer should be delivering ticks.
func (l *Limiter) Enabled() bool { return l.enabled }

// Pending reports whether a commit is scheduled.
func (l *Limiter) Pending() bool { return l.armed }

// Ticks returns the number of ticks received so far.
func (l *Limiter) Ticks() int { return l.ticks }

// Tick handles one timer tick. It returns a new committed state and true
// when the deadline has passed and the warm-up period is over. The sample
// function is only called on commit.
func (l *Limiter) Tick(now time.Time, sample func() Sample) (models.CommittedState, bool) {
	l.ticks++
	if !l.armed {
		l.enabled = false
		return models.CommittedState{}, false
	}
	if now.Before(l.deadline) || l.ticks < l.timings.WarmupTicks {
		return models.CommittedState{}, false
	}

	l.armed = false
	l.deadline = time.Time{}

	s := sample()
	state := Commit(s)
	if s.Index != l.lastIndex {
		l.lastIndex = s.Index
		state.IndexChanged = true
	}
	return state, true
}

// Reset forgets the last committed index so the next commit is reported as
// an index change. Used when the viewer's frame is replaced.
func (l *Limiter) Reset() { l.lastIndex = -1 }

// Commit builds the committed state for a sample. IndexChanged is left
// false; the Limiter fills it in.
func Commit(s Sample) models.CommittedState {
	xrange, yrange := CommittedView(s.Info, s.XView, s.YView, s.PlotSize)
	return models.CommittedState{
		Index:  s.Index,
		XRange: xrange,
		YRange: yrange,
		ZPos:   s.Info.ZPos(s.Index),
		Axis:   s.Info.Axis,
		Color:  s.Info.Color,
	}
}

// CommittedView intersects the volume extent with the figure's view range.
// The view range is first inset by two plot pixels on each side so that
// the viewer's own corner indicators are not cut in half at the edge.
func CommittedView(info models.AxisInfo, xview, yview, plotSize [2]float64) (xrange, yrange [2]float64) {
	if plotSize[0] <= 0 || plotSize[1] <= 0 {
		plotSize = DefaultPlotSize
	}
	xvol, yvol := info.VolumeRange()
	xfig := inset(ordered(xview), plotSize[0])
	yfig := inset(ordered(yview), plotSize[1])

	xrange = [2]float64{math.Max(xvol[0], xfig[0]), math.Min(xvol[1], xfig[1])}
	yrange = [2]float64{math.Max(yvol[0], yfig[0]), math.Min(yvol[1], yfig[1])}
	return
}

func ordered(r [2]float64) [2]float64 {
	return [2]float64{math.Min(r[0], r[1]), math.Max(r[0], r[1])}
}

// inset moves both ends inward by two pixels; the upper end uses the
// already adjusted width.
func inset(r [2]float64, pixels float64) [2]float64 {
	r[0] += 2 * (r[1] - r[0]) / pixels
	r[1] -= 2 * (r[1] - r[0]) / pixels
	return r
}
