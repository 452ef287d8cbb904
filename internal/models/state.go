package models

import "math"

// EncodedImage is a compact, embeddable image: a base64 PNG data URI.
type EncodedImage = string

// NoOverlay marks a slice without any overlay pixels.
const NoOverlay EncodedImage = ""

// ThumbnailSet holds one encoded low-resolution image per slice index.
type ThumbnailSet []EncodedImage

// OverlaySet holds one encoded overlay image per slice index, or NoOverlay.
type OverlaySet []EncodedImage

// AxisInfo describes a viewer's local 2D-plus-depth frame. Size, Offset and
// Stepsize are ordered (x, y, z) where z runs along the sliced axis.
type AxisInfo struct {
	Axis          int        `json:"axis"`
	Size          [3]int     `json:"size"`
	Offset        [3]float64 `json:"offset"`
	Stepsize      [3]float64 `json:"stepsize"`
	ThumbnailSize [2]int     `json:"thumbnail_size"`
	Color         string     `json:"color"`
}

// ShapeToSize2D turns a zyx triple into the local (x', y', z') frame of the
// given axis: the axis entry is removed, the remaining two are reversed, and
// the axis entry is appended.
func ShapeToSize2D[T any](shape [3]T, axis int) [3]T {
	rest := make([]T, 0, 2)
	for i := 0; i < 3; i++ {
		if i != axis {
			rest = append(rest, shape[i])
		}
	}
	return [3]T{rest[1], rest[0], shape[axis]}
}

// NewAxisInfo derives the local frame of a volume for one axis. The
// thumbnail size is filled in by the caller.
func NewAxisInfo(vol *Volume, axis int, spacing, origin [3]float64, color string) AxisInfo {
	size := ShapeToSize2D(vol.Shape, axis)
	return AxisInfo{
		Axis:          axis,
		Size:          size,
		Offset:        ShapeToSize2D(origin, axis),
		Stepsize:      ShapeToSize2D(spacing, axis),
		ThumbnailSize: [2]int{size[0], size[1]},
		Color:         color,
	}
}

// VolumeRange returns the scene-space extent of a full slice, measured from
// the outer edge of the first pixel to the outer edge of the last.
func (a AxisInfo) VolumeRange() (xrange, yrange [2]float64) {
	xrange = [2]float64{
		a.Offset[0] - 0.5*a.Stepsize[0],
		a.Offset[0] + (float64(a.Size[0])-0.5)*a.Stepsize[0],
	}
	yrange = [2]float64{
		a.Offset[1] - 0.5*a.Stepsize[1],
		a.Offset[1] + (float64(a.Size[1])-0.5)*a.Stepsize[1],
	}
	return
}

// ZPos converts a slice index into a scene coordinate along the axis.
func (a AxisInfo) ZPos(index int) float64 {
	return a.Offset[2] + float64(index)*a.Stepsize[2]
}

// RawIndex converts a scene coordinate along the axis into the nearest
// slice index, rounding halves up. The result may be out of range.
func (a AxisInfo) RawIndex(pos float64) int {
	return int(math.Floor((pos-a.Offset[2])/a.Stepsize[2] + 0.5))
}

// IndexFor is RawIndex clamped to the valid slice range.
func (a AxisInfo) IndexFor(pos float64) int {
	index := a.RawIndex(pos)
	if index < 0 {
		return 0
	}
	if index > a.Size[2]-1 {
		return a.Size[2] - 1
	}
	return index
}

// CommittedState is the rate-limited, publicly visible snapshot of a viewer.
// It is replaced wholesale on every commit and shared by value.
type CommittedState struct {
	Index        int        `json:"index"`
	IndexChanged bool       `json:"index_changed"`
	XRange       [2]float64 `json:"xrange"`
	YRange       [2]float64 `json:"yrange"`
	ZPos         float64    `json:"zpos"`
	Axis         int        `json:"axis"`
	Color        string     `json:"color"`
}

// Position is a point in scene coordinates (x, y, z). A nil component is a
// placeholder that leaves the corresponding axis untouched.
type Position [3]*float64

// NewPosition builds a Position; NaN values become placeholders.
func NewPosition(x, y, z float64) Position {
	var p Position
	for i, v := range [3]float64{x, y, z} {
		v := v
		if !math.IsNaN(v) {
			p[i] = &v
		}
	}
	return p
}

// ForAxis returns the coordinate that drives viewers slicing along axis.
// The tuple is xyz while axes are zyx, hence the reversed lookup.
func (p Position) ForAxis(axis int) (float64, bool) {
	if axis < 0 || axis > 2 {
		return 0, false
	}
	v := p[2-axis]
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
