package tiles

import "volslicer/internal/models"

// SliceHoverTemplate shows scene coordinates when hovering the slice.
const SliceHoverTemplate = "(%{x:.2f}, %{y:.2f})<extra></extra>"

// Inputs are the values the image traces are derived from.
type Inputs struct {
	Index      int
	Tile       Entry
	Thumbnails models.ThumbnailSet
	Overlays   models.OverlaySet
	Info       models.AxisInfo
}

// Pair is the slice image and its overlay.
type Pair struct {
	Slice   models.Placement
	Overlay models.Placement
}

// Traces renders the pair as the two image traces of a figure.
func (p Pair) Traces() []models.Trace {
	slice := p.Slice.Trace()
	slice.HoverTemplate = SliceHoverTemplate
	overlay := p.Overlay.Trace()
	overlay.HoverInfo = "skip"
	return []models.Trace{slice, overlay}
}

// Builder produces image trace pairs and suppresses repeats.
type Builder struct {
	prev    Pair
	emitted bool
}

// Build derives the pair for in. It returns false when the result equals
// the previously emitted pair.
func (b *Builder) Build(in Inputs) (Pair, bool) {
	p := Place(in)
	if b.emitted && p == b.prev {
		return p, false
	}
	b.prev, b.emitted = p, true
	return p, true
}

// Last returns the most recently emitted pair.
func (b *Builder) Last() (Pair, bool) { return b.prev, b.emitted }

// Place computes the placements without any suppression.
func Place(in Inputs) Pair {
	info := in.Info
	full := models.Placement{
		X0: info.Offset[0],
		Y0: info.Offset[1],
		DX: info.Stepsize[0],
		DY: info.Stepsize[1],
	}

	overlay := full
	if in.Index >= 0 && in.Index < len(in.Overlays) {
		overlay.Source = in.Overlays[in.Index]
	}

	slice := full
	if in.Tile.Index == in.Index {
		slice.Source = in.Tile.Image
		return Pair{Slice: slice, Overlay: overlay}
	}

	if in.Index >= 0 && in.Index < len(in.Thumbnails) {
		slice.Source = in.Thumbnails[in.Index]
	}
	// Stretch the thumbnail over the area of the full-resolution slice
	if info.ThumbnailSize[0] > 0 && info.ThumbnailSize[1] > 0 {
		slice.DX *= float64(info.Size[0]) / float64(info.ThumbnailSize[0])
		slice.DY *= float64(info.Size[1]) / float64(info.ThumbnailSize[1])
	}
	slice.X0 += 0.5*slice.DX - 0.5*info.Stepsize[0]
	slice.Y0 += 0.5*slice.DY - 0.5*info.Stepsize[1]
	return Pair{Slice: slice, Overlay: overlay}
}

// Rect returns the scene rectangle (x0, y0, x1, y1) covered by an image of
// w by h pixels at placement p.
func Rect(p models.Placement, w, h int) [4]float64 {
	return [4]float64{
		p.X0 - 0.5*p.DX,
		p.Y0 - 0.5*p.DY,
		p.X0 + (float64(w)-0.5)*p.DX,
		p.Y0 + (float64(h)-0.5)*p.DY,
	}
}
