// Package slicer implements interactive slice viewers for 3D volumes.
//
// An App owns a single cooperative event loop. Every viewer input,
// scene delivery, tile arrival and timer tick is an event on that loop, so
// viewer state is never touched concurrently. Viewers of the same scene
// find each other through the App's scene bus.
package slicer

import (
	"context"
	"sync"
	"time"

	"volslicer/internal/models"
	"volslicer/pkg/config"
	"volslicer/pkg/logging"
	"volslicer/pkg/ratelimit"
	"volslicer/pkg/scene"
)

// Clock abstracts time for the rate limiters.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures an App.
type Option func(*App)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithTileSource sets where full-resolution tiles come from. By default
// the App renders them itself.
func WithTileSource(src TileSource) Option {
	return func(a *App) { a.source = src }
}

// App hosts viewers and runs their event loop.
type App struct {
	cfg     *config.Config
	timings ratelimit.Timings
	clock   Clock
	source  TileSource
	bus     *scene.Bus
	ids     *scene.IdentityAllocator

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	viewers map[string]*Viewer
	order   []*Viewer

	fetches sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewApp creates an App. A nil cfg selects the defaults.
func NewApp(cfg *config.Config, opts ...Option) *App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	a := &App{
		cfg: cfg,
		timings: ratelimit.Timings{
			Drag:        cfg.Timing.Drag,
			View:        cfg.Timing.View,
			Init:        cfg.Timing.Init,
			WarmupTicks: cfg.Timing.WarmupTicks,
		},
		clock:   systemClock{},
		ids:     scene.NewIdentityAllocator(),
		wake:    make(chan struct{}, 1),
		viewers: make(map[string]*Viewer),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.bus = scene.NewBus(a.Post)
	for _, opt := range opts {
		opt(a)
	}
	if a.source == nil {
		a.source = a
	}
	return a
}

// SetTileSource replaces the tile source. It must be called before any
// viewer is created.
func (a *App) SetTileSource(src TileSource) {
	a.source = src
}

// Bus returns the scene bus shared by all viewers.
func (a *App) Bus() *scene.Bus { return a.bus }

// Config returns the configuration the App was created with.
func (a *App) Config() *config.Config { return a.cfg }

// Post schedules fn on the event loop. It is safe to call from any
// goroutine.
func (a *App) Post(fn func()) {
	a.mu.Lock()
	a.queue = append(a.queue, fn)
	a.mu.Unlock()
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the event loop and waits for it to finish.
func (a *App) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	a.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPending runs queued events, including the ones they queue, until the
// queue is empty. It returns the number of events run.
func (a *App) RunPending() int {
	n := 0
	for {
		a.mu.Lock()
		q := a.queue
		a.queue = nil
		a.mu.Unlock()
		if len(q) == 0 {
			return n
		}
		for _, fn := range q {
			fn()
			n++
		}
	}
}

// Drain runs events and waits for outstanding tile fetches until nothing
// is left to do. Must be called from the event loop goroutine.
func (a *App) Drain() {
	for {
		a.fetches.Wait()
		if a.RunPending() == 0 {
			return
		}
	}
}

// Tick delivers one timer tick to every viewer whose timer is on.
func (a *App) Tick() {
	now := a.clock.Now()
	for _, v := range a.Viewers() {
		v.tick(now)
	}
}

// Run drives the event loop until ctx is done, ticking at the configured
// poll interval.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Timing.Poll)
	defer ticker.Stop()

	logging.Infof("Event loop started, polling every %s\n", a.cfg.Timing.Poll)
	a.RunPending()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.Tick()
			a.RunPending()
		case <-a.wake:
			a.RunPending()
		}
	}
}

// Close cancels outstanding fetches and shuts down the scene bus.
func (a *App) Close() {
	a.cancel()
	a.fetches.Wait()
	a.bus.Close()
}

// goFetch runs fn on a goroutine tracked by Drain and Close.
func (a *App) goFetch(fn func(ctx context.Context)) {
	a.fetches.Add(1)
	go func() {
		defer a.fetches.Done()
		fn(a.ctx)
	}()
}

// Viewer looks up a viewer by context id.
func (a *App) Viewer(id string) (*Viewer, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.viewers[id]
	return v, ok
}

// Viewers lists viewers in creation order.
func (a *App) Viewers() []*Viewer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Viewer(nil), a.order...)
}

func (a *App) register(v *Viewer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.viewers[v.context] = v
	a.order = append(a.order, v)
}

func (a *App) unregister(v *Viewer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.viewers, v.context)
	for i, o := range a.order {
		if o == v {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// States returns the committed states published in a scene.
func (a *App) States(sceneID string) []models.CommittedState {
	entries := a.bus.Snapshot(scene.Filter{Scene: sceneID, Name: scene.StateName})
	states := make([]models.CommittedState, 0, len(entries))
	for _, e := range entries {
		if s, ok := e.Value.(models.CommittedState); ok {
			states = append(states, s)
		}
	}
	return states
}

// SetPosition publishes a position to every viewer of a scene, as if one of
// them had been clicked.
func (a *App) SetPosition(sceneID string, pos models.Position) error {
	return a.bus.Publish(scene.Key{Scene: sceneID, Axis: -1, Context: "external", Name: scene.SetPosName}, pos)
}
