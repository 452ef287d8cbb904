package ratelimit

import (
	"math"
	"testing"
	"time"

	"volslicer/internal/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

// testInfo is the axis-0 frame of a 10x20x30 volume
func testInfo() models.AxisInfo {
	return models.AxisInfo{
		Axis:     0,
		Size:     [3]int{30, 20, 10},
		Stepsize: [3]float64{1, 1, 1},
		Color:    "#1F77B4",
	}
}

func sampler(index *int) func() Sample {
	return func() Sample {
		info := testInfo()
		x, y := info.VolumeRange()
		return Sample{Index: *index, Info: info, XView: x, YView: y}
	}
}

func TestWarmup(t *testing.T) {
	l := New(DefaultTimings())
	index := 0
	l.Start(at(0))
	if !l.Enabled() || !l.Pending() {
		t.Fatal("Expected Start to enable the timer")
	}

	commits := 0
	firstCommit := 0
	for tick := 1; tick <= 8; tick++ {
		if _, ok := l.Tick(at(tick*100), sampler(&index)); ok {
			commits++
			if firstCommit == 0 {
				firstCommit = tick
			}
		}
	}
	if commits != 1 {
		t.Errorf("Expected 1 commit, got %d", commits)
	}
	if firstCommit != DefaultWarmupTicks {
		t.Errorf("Expected first commit on tick %d, got %d", DefaultWarmupTicks, firstCommit)
	}
	if l.Enabled() {
		t.Error("Expected the timer to switch off after an idle tick")
	}
}

// Slider moves to 3, 3, 3, 7 at 50ms intervals with ticks every 100ms:
// exactly one commit, carrying index 7.
func TestDragCoalescing(t *testing.T) {
	l := New(DefaultTimings())
	index := 0
	l.Start(at(0))
	for tick := 1; tick <= 6; tick++ {
		l.Tick(at(tick*100), sampler(&index))
	}
	if l.Enabled() {
		t.Fatal("Expected limiter to be idle after the initial commit")
	}

	for i, v := range []int{3, 3, 3, 7} {
		index = v
		l.IndexChanged(at(1000 + i*50))
	}

	var commits []models.CommittedState
	for ms := 1100; ms <= 2000; ms += 100 {
		if state, ok := l.Tick(at(ms), sampler(&index)); ok {
			commits = append(commits, state)
			if ms != 1400 {
				t.Errorf("Expected commit at 1400ms, got %dms", ms)
			}
		}
	}
	if len(commits) != 1 {
		t.Fatalf("Expected exactly 1 commit, got %d", len(commits))
	}
	if commits[0].Index != 7 || !commits[0].IndexChanged {
		t.Errorf("Expected index 7 with index_changed, got %+v", commits[0])
	}
	if commits[0].Axis != 0 || commits[0].Color != "#1F77B4" {
		t.Errorf("Unexpected axis/color in %+v", commits[0])
	}
}

func TestViewChangeKeepsIndexUnchanged(t *testing.T) {
	l := New(DefaultTimings())
	index := 4
	l.Start(at(0))
	for tick := 1; tick <= 5; tick++ {
		l.Tick(at(tick*100), sampler(&index))
	}

	l.ViewChanged(at(600))
	if _, ok := l.Tick(at(900), sampler(&index)); ok {
		t.Fatal("Expected view change to wait 400ms")
	}
	state, ok := l.Tick(at(1000), sampler(&index))
	if !ok {
		t.Fatal("Expected commit 400ms after the view change")
	}
	if state.IndexChanged {
		t.Error("Expected index_changed to be false when only the view moved")
	}
}

func TestTickWithoutDeadline(t *testing.T) {
	l := New(DefaultTimings())
	called := false
	if _, ok := l.Tick(at(0), func() Sample { called = true; return Sample{} }); ok {
		t.Error("Expected no commit from an idle limiter")
	}
	if called {
		t.Error("Expected sample not to be read without a commit")
	}
	if l.Enabled() {
		t.Error("Expected idle limiter to stay disabled")
	}
}

func TestCommittedView(t *testing.T) {
	info := testInfo()
	xvol, yvol := info.VolumeRange()
	if xvol != [2]float64{-0.5, 29.5} || yvol != [2]float64{-0.5, 19.5} {
		t.Fatalf("Unexpected volume range %v %v", xvol, yvol)
	}

	// Full view: both ends move inward by two pixels
	x, _ := CommittedView(info, xvol, yvol, [2]float64{})
	wantLo := -0.5 + 2*30.0/400
	wantHi := 29.5 - 2*(29.5-wantLo)/400
	if math.Abs(x[0]-wantLo) > 1e-9 || math.Abs(x[1]-wantHi) > 1e-9 {
		t.Errorf("Expected xrange [%v, %v], got %v", wantLo, wantHi, x)
	}

	// Reversed view order gives the same result
	xr, _ := CommittedView(info, [2]float64{xvol[1], xvol[0]}, yvol, [2]float64{})
	if xr != x {
		t.Errorf("Expected reversed view to give %v, got %v", x, xr)
	}

	// Zoomed out: clipped to the volume
	x, y := CommittedView(info, [2]float64{-100, 100}, [2]float64{-100, 100}, [2]float64{800, 800})
	if x != xvol || y != yvol {
		t.Errorf("Expected clipping to volume range, got %v %v", x, y)
	}
}

func TestCommitZPos(t *testing.T) {
	info := testInfo()
	info.Offset[2] = 10
	info.Stepsize[2] = 2.5
	state := Commit(Sample{Index: 4, Info: info})
	if state.ZPos != 20 {
		t.Errorf("Expected zpos 20, got %v", state.ZPos)
	}
}
