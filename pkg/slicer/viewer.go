package slicer

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/groupcache/lru"

	"volslicer/internal/models"
	"volslicer/pkg/dataflow"
	"volslicer/pkg/figure"
	"volslicer/pkg/logging"
	"volslicer/pkg/ratelimit"
	"volslicer/pkg/scene"
	"volslicer/pkg/tiles"
	"volslicer/pkg/visualization"
)

// thumbnailMemoSize is the number of thumbnail sets kept per viewer, keyed
// by contrast limits.
const thumbnailMemoSize = 4

// Cell names, as listed by Viewer.Stores.
const (
	CellInfo            = "info"
	CellClim            = "clim"
	CellThumbs          = "thumbs"
	CellOverlay         = "overlay"
	CellServerData      = "server-data"
	CellImgTraces       = "img-traces"
	CellIndicatorTraces = "indicator-traces"
	CellExtraTraces     = "extra-traces"
	CellTimer           = "timer"
	CellState           = "state"
	CellSetPos          = "setpos"
	CellIndex           = "index"
	CellView            = "view"
	CellPeers           = "peer-states"
	CellFigure          = "figure"
)

// View is the figure's view range and plot size as reported by the host.
type View struct {
	XRange   [2]float64 `json:"xrange"`
	YRange   [2]float64 `json:"yrange"`
	PlotSize [2]float64 `json:"plot_size"`
}

// Viewer shows slices of one volume along one axis. Apart from the
// accessors documented as safe, its methods must be called on the App's
// event loop (see App.Post and App.Call).
type Viewer struct {
	app     *App
	vol     *models.Volume
	axis    int
	context string
	sceneID string

	thumbSize int
	thumbsOn  bool

	limiter *ratelimit.Limiter
	tiles   *tiles.Cache
	builder tiles.Builder
	memo    *lru.Cache

	requestedClim [2]float64
	cancels       []func()

	graph           *dataflow.Graph
	info            *dataflow.Cell[models.AxisInfo]
	clim            *dataflow.Cell[[2]float64]
	thumbs          *dataflow.Cell[models.ThumbnailSet]
	overlay         *dataflow.Cell[models.OverlaySet]
	serverData      *dataflow.Cell[tiles.Entry]
	imgTraces       *dataflow.Cell[[]models.Trace]
	indicatorTraces *dataflow.Cell[[]models.Trace]
	extraTraces     *dataflow.Cell[[]models.Trace]
	timer           *dataflow.Cell[bool]
	state           *dataflow.Cell[*models.CommittedState]
	setpos          *dataflow.Cell[models.Position]
	index           *dataflow.Cell[int]
	view            *dataflow.Cell[View]
	peers           *dataflow.Cell[[]models.CommittedState]
	fig             *dataflow.Cell[figure.Figure]
}

// NewViewer validates p, computes the thumbnails and registers a viewer of
// vol. It must be called on the event loop, or before the loop runs.
func (a *App) NewViewer(vol *models.Volume, p Params) (*Viewer, error) {
	r, err := a.resolve(vol, p)
	if err != nil {
		return nil, err
	}

	info := models.NewAxisInfo(vol, r.axis, r.spacing, r.origin, r.color)
	if r.thumbsOn {
		info.ThumbnailSize = visualization.ThumbnailDims([2]int{info.Size[0], info.Size[1]}, r.thumbSize)
	}

	v := &Viewer{
		app:           a,
		vol:           vol,
		axis:          r.axis,
		context:       a.ids.NextContext(),
		sceneID:       r.sceneID,
		thumbSize:     r.thumbSize,
		thumbsOn:      r.thumbsOn,
		limiter:       ratelimit.New(a.timings),
		tiles:         tiles.NewCache(),
		memo:          lru.New(thumbnailMemoSize),
		requestedClim: r.clim,
	}

	xrange, yrange := info.VolumeRange()
	layout := figure.NewLayout(r.reverseY)

	g := dataflow.New()
	v.graph = g
	v.info = dataflow.NewCell(g, CellInfo, info)
	v.clim = dataflow.NewCell(g, CellClim, r.clim)
	v.thumbs = dataflow.NewCell(g, CellThumbs, models.ThumbnailSet{})
	v.overlay = dataflow.NewCell(g, CellOverlay, models.OverlaySet{})
	v.serverData = dataflow.NewCell(g, CellServerData, tiles.Empty)
	v.imgTraces = dataflow.NewCell(g, CellImgTraces, []models.Trace{})
	v.indicatorTraces = dataflow.NewCell(g, CellIndicatorTraces, []models.Trace{})
	v.extraTraces = dataflow.NewCell(g, CellExtraTraces, []models.Trace{})
	v.timer = dataflow.NewCell(g, CellTimer, false)
	v.state = dataflow.NewCell[*models.CommittedState](g, CellState, nil)
	v.setpos = dataflow.NewCell(g, CellSetPos, models.Position{})
	v.index = dataflow.NewCell(g, CellIndex, info.Size[2]/2)
	v.view = dataflow.NewCell(g, CellView, View{XRange: xrange, YRange: yrange})
	v.peers = dataflow.NewCell(g, CellPeers, []models.CommittedState{})
	v.fig = dataflow.NewCell(g, CellFigure, figure.Figure{Layout: layout})

	g.Node("thumbnails", []dataflow.Ref{v.clim}, v.updateThumbnails)
	g.Node("request", []dataflow.Ref{v.state, v.clim}, v.requestTile)
	g.Node("publish", []dataflow.Ref{v.state}, v.publishState)
	g.Node("image-traces", []dataflow.Ref{v.index, v.serverData, v.overlay, v.thumbs}, v.updateImageTraces)
	g.Node("indicators", []dataflow.Ref{v.peers, v.state}, v.updateIndicators)
	g.Node("figure", []dataflow.Ref{v.imgTraces, v.indicatorTraces, v.extraTraces}, v.updateFigure)

	// Thumbnails are computed eagerly so a failure surfaces here
	v.clim.Set(r.clim)
	if err := g.Flush(); err != nil {
		return nil, err
	}

	cancel, err := a.bus.Subscribe(scene.Filter{Scene: v.sceneID, Name: scene.StateName}, v.onState)
	if err != nil {
		return nil, err
	}
	v.cancels = append(v.cancels, cancel)
	cancel, err = a.bus.Subscribe(scene.Filter{Scene: v.sceneID, Name: scene.SetPosName}, v.onSetPos)
	if err != nil {
		v.Close()
		return nil, err
	}
	v.cancels = append(v.cancels, cancel)

	a.register(v)
	v.limiter.Start(a.clock.Now())
	v.timer.Set(true)

	logging.Infof("Viewer %s: axis %d of %v volume in scene %s, thumbnails %v\n",
		v.context, v.axis, vol.Shape, v.sceneID, info.ThumbnailSize)
	return v, nil
}

// Close unsubscribes the viewer and removes it from the App.
func (v *Viewer) Close() {
	for _, cancel := range v.cancels {
		cancel()
	}
	v.cancels = nil
	v.app.unregister(v)
}

func (v *Viewer) flush() {
	if err := v.graph.Flush(); err != nil {
		logging.Errorf("Viewer %s: %v\n", v.context, err)
	}
}

func (v *Viewer) now() time.Time { return v.app.clock.Now() }

// Nodes

func (v *Viewer) updateThumbnails() error {
	clim := v.clim.Get()
	if set, ok := v.memo.Get(clim); ok {
		v.thumbs.Set(set.(models.ThumbnailSet))
		return nil
	}

	tlog := logging.NewTimeLog()
	target := 0
	if v.thumbsOn {
		target = v.thumbSize
	}
	set, err := visualization.Thumbnails(context.Background(), v.vol, v.axis, clim, target, v.app.cfg.Processing.NumCores)
	if err != nil {
		return err
	}
	var total uint64
	for _, enc := range set {
		total += uint64(len(enc))
	}
	tlog.Debugf("Viewer %s: encoded %d slices for clim %v, %s", v.context, len(set), clim, humanize.Bytes(total))

	v.memo.Add(clim, set)
	v.thumbs.Set(set)
	return nil
}

func (v *Viewer) requestTile() error {
	clim := v.clim.Get()
	climChanged := clim != v.requestedClim
	if climChanged {
		v.requestedClim = clim
		if v.thumbsOn {
			v.tiles.Invalidate()
			v.serverData.Set(tiles.Empty)
		}
	}
	if !v.thumbsOn {
		return nil
	}

	st := v.state.Get()
	if st == nil || !(st.IndexChanged || climChanged) {
		return nil
	}
	if !v.tiles.NeedsRequest(st.Index) {
		return nil
	}

	ticket := v.tiles.Begin(st.Index)
	req := TileRequest{Viewer: v.context, Index: st.Index, Clim: clim}
	src := v.app.source
	v.app.goFetch(func(ctx context.Context) {
		img, err := src.FetchTile(ctx, req)
		v.app.Post(func() { v.tileArrived(ticket, img, err) })
	})
	return nil
}

func (v *Viewer) tileArrived(t tiles.Ticket, img models.EncodedImage, err error) {
	if err != nil {
		logging.Warningf("Viewer %s: tile %d failed: %v\n", v.context, t.Index, err)
		v.tiles.MarkFailed(t)
		return
	}
	if !v.tiles.Accept(t, img) {
		logging.Debugf("Viewer %s: dropped tile %d rendered with old contrast limits\n", v.context, t.Index)
		return
	}
	v.serverData.Set(v.tiles.Entry())
	v.flush()
}

func (v *Viewer) publishState() error {
	st := v.state.Get()
	if st == nil {
		return nil
	}
	key := scene.Key{Scene: v.sceneID, Axis: v.axis, Context: v.context, Name: scene.StateName}
	return v.app.bus.Publish(key, *st)
}

func (v *Viewer) updateImageTraces() error {
	pair, ok := v.builder.Build(tiles.Inputs{
		Index:      v.index.Get(),
		Tile:       v.serverData.Get(),
		Thumbnails: v.thumbs.Get(),
		Overlays:   v.overlay.Get(),
		Info:       v.info.Get(),
	})
	if ok {
		v.imgTraces.Set(pair.Traces())
	}
	return nil
}

func (v *Viewer) updateIndicators() error {
	traces := scene.Indicators(v.info.Get(), v.state.Get(), v.peers.Get())
	if traces != nil {
		v.indicatorTraces.Set(traces)
	}
	return nil
}

func (v *Viewer) updateFigure() error {
	fig, ok := figure.Compose(v.fig.Get(), v.imgTraces.Get(), v.extraTraces.Get(), v.indicatorTraces.Get())
	if ok {
		v.fig.Set(fig)
	}
	return nil
}

// Events

func (v *Viewer) tick(now time.Time) {
	if !v.limiter.Enabled() {
		return
	}
	st, ok := v.limiter.Tick(now, v.sample)
	if v.timer.Get() != v.limiter.Enabled() {
		v.timer.Set(v.limiter.Enabled())
	}
	if ok {
		v.state.Set(&st)
	}
	v.flush()
}

func (v *Viewer) sample() ratelimit.Sample {
	view := v.view.Get()
	return ratelimit.Sample{
		Index:    v.index.Get(),
		Info:     v.info.Get(),
		XView:    view.XRange,
		YView:    view.YRange,
		PlotSize: view.PlotSize,
	}
}

func (v *Viewer) onState(scene.Entry) {
	v.peers.Set(v.app.States(v.sceneID))
	v.flush()
}

func (v *Viewer) onSetPos(e scene.Entry) {
	pos, ok := e.Value.(models.Position)
	if !ok {
		return
	}
	value, ok := pos.ForAxis(v.axis)
	if !ok {
		return
	}
	info := v.info.Get()
	if info.RawIndex(value) == v.index.Get() {
		return
	}
	v.setIndex(info.IndexFor(value))
}

func (v *Viewer) setIndex(i int) {
	if i == v.index.Get() {
		return
	}
	v.index.Set(i)
	v.limiter.IndexChanged(v.now())
	v.timer.Set(true)
	v.flush()
}

// SetIndex moves the slider.
func (v *Viewer) SetIndex(i int) error {
	if i < 0 || i >= v.NSlices() {
		return fmt.Errorf("%w: index %d not in [0, %d)", visualization.ErrIndexOutOfRange, i, v.NSlices())
	}
	v.setIndex(i)
	return nil
}

// SetViewRange records a pan or zoom of the figure.
func (v *Viewer) SetViewRange(xrange, yrange [2]float64) error {
	if !finite(xrange[0], xrange[1], yrange[0], yrange[1]) {
		return fmt.Errorf("slicer: view range must be finite, got %v %v", xrange, yrange)
	}
	view := v.view.Get()
	view.XRange, view.YRange = xrange, yrange
	v.view.Set(view)

	fig := v.fig.Get()
	fig.Layout.XAxis.Range = &xrange
	fig.Layout.YAxis.Range = &yrange
	v.fig.Set(fig)

	v.limiter.ViewChanged(v.now())
	v.timer.Set(true)
	v.flush()
	return nil
}

// SetPlotSize records the plot area size in pixels. It takes effect on the
// next commit.
func (v *Viewer) SetPlotSize(w, h float64) {
	view := v.view.Get()
	view.PlotSize = [2]float64{w, h}
	v.view.Set(view)
}

// Click publishes the clicked scene position so that the other viewers of
// the scene move their sliders there.
func (v *Viewer) Click(x, y float64) error {
	info := v.info.Get()
	depth := info.ZPos(v.index.Get())
	xyz := []float64{x, y}
	at := 2 - v.axis
	xyz = append(xyz[:at], append([]float64{depth}, xyz[at:]...)...)
	pos := models.NewPosition(xyz[0], xyz[1], xyz[2])

	v.setpos.Set(pos)
	v.flush()
	key := scene.Key{Scene: v.sceneID, Axis: v.axis, Context: v.context, Name: scene.SetPosName}
	return v.app.bus.Publish(key, pos)
}

// SetContrastLimits changes the intensity mapping of thumbnails and tiles.
func (v *Viewer) SetContrastLimits(lo, hi float64) error {
	if !finite(lo, hi) {
		return &ParamError{Param: "clim", Err: fmt.Errorf("%w: got [%v, %v]", ErrInvalidContrast, lo, hi)}
	}
	clim := [2]float64{lo, hi}
	if clim == v.clim.Get() {
		return nil
	}
	v.clim.Set(clim)
	v.flush()
	return nil
}

// SetOverlay replaces the overlay images; nil clears them.
func (v *Viewer) SetOverlay(set models.OverlaySet) error {
	if set == nil {
		set = visualization.EmptyOverlay(v.NSlices())
	}
	if len(set) != v.NSlices() {
		return fmt.Errorf("%w: %d overlay slices for %d slices", visualization.ErrShapeMismatch, len(set), v.NSlices())
	}
	v.overlay.Set(set)
	v.flush()
	return nil
}

// SetExtraTraces replaces the user-defined traces drawn over the slice.
func (v *Viewer) SetExtraTraces(traces []models.Trace) {
	if traces == nil {
		traces = []models.Trace{}
	}
	v.extraTraces.Set(traces)
	v.flush()
}

// CreateOverlayData colors a label mask for use with SetOverlay. A nil mask
// produces an overlay that clears any previous one. Without colors the
// default colormap is used. Safe to call from any goroutine.
func (v *Viewer) CreateOverlayData(mask *models.Volume, colors ...interface{}) (models.OverlaySet, error) {
	if mask == nil {
		return visualization.EmptyOverlay(v.NSlices()), nil
	}
	if mask.Shape != v.vol.Shape {
		return nil, fmt.Errorf("%w: mask has shape %v, expected %v", visualization.ErrShapeMismatch, mask.Shape, v.vol.Shape)
	}
	table, err := visualization.ParseColors(colors...)
	if err != nil {
		return nil, err
	}
	return visualization.BuildOverlay(mask, v.axis, table)
}

// Accessors. SceneID, Axis, NSlices, Context, Info and Volume never change
// and are safe to call from any goroutine.

func (v *Viewer) SceneID() string        { return v.sceneID }
func (v *Viewer) Axis() int              { return v.axis }
func (v *Viewer) NSlices() int           { return v.vol.Shape[v.axis] }
func (v *Viewer) Context() string        { return v.context }
func (v *Viewer) Volume() *models.Volume { return v.vol }

// Info returns the viewer's local frame.
func (v *Viewer) Info() models.AxisInfo { return v.info.Get() }

// Index returns the raw slider index.
func (v *Viewer) Index() int { return v.index.Get() }

// State returns the last committed state, or nil before the first commit.
func (v *Viewer) State() *models.CommittedState {
	st := v.state.Get()
	if st == nil {
		return nil
	}
	c := *st
	return &c
}

// Figure returns the composed figure.
func (v *Viewer) Figure() figure.Figure { return v.fig.Get() }

// Thumbnails returns the low-res images of the current contrast limits.
func (v *Viewer) Thumbnails() models.ThumbnailSet { return v.thumbs.Get() }

// ContrastLimits returns the current contrast limits.
func (v *Viewer) ContrastLimits() [2]float64 { return v.clim.Get() }

// ThumbnailsEnabled reports whether the low-res tier is in use.
func (v *Viewer) ThumbnailsEnabled() bool { return v.thumbsOn }

// TimerEnabled reports whether the viewer wants timer ticks.
func (v *Viewer) TimerEnabled() bool { return v.timer.Get() }

// Stores lists the names of the viewer's cells.
func (v *Viewer) Stores() []string { return v.graph.Names() }

// Store looks up a cell value by name.
func (v *Viewer) Store(name string) (interface{}, bool) {
	c, ok := v.graph.Cell(name)
	if !ok {
		return nil, false
	}
	return c.Value(), true
}
