package slicer

import (
	"errors"
	"fmt"
	"math"

	"volslicer/internal/models"
	"volslicer/pkg/config"
	"volslicer/pkg/scene"
	"volslicer/pkg/visualization"
)

// Construction errors. A failed NewViewer returns a *ParamError wrapping
// one of these.
var (
	ErrInvalidVolume    = models.ErrInvalidVolume
	ErrInvalidAxis      = visualization.ErrInvalidAxis
	ErrInvalidSceneID   = scene.ErrInvalidSceneID
	ErrInvalidThumbnail = config.ErrInvalidThumbnail
	ErrInvalidContrast  = errors.New("slicer: contrast limits must be finite")
	ErrUnknownViewer    = errors.New("slicer: unknown viewer")
)

// ParamError names the construction parameter that was rejected.
type ParamError struct {
	Param string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("slicer: invalid %s: %v", e.Param, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// Params are the optional construction parameters of a viewer. The zero
// value selects every default.
type Params struct {
	// Axis is the dimension to slice along (0, 1 or 2)
	Axis int

	// Spacing and Origin override the volume's own geometry (zyx)
	Spacing *[3]float64
	Origin  *[3]float64

	// ReverseY defaults to the configured value
	ReverseY *bool

	// ContrastLimits default to the volume's minimum and maximum
	ContrastLimits *[2]float64

	// SceneID defaults to an id shared by all viewers of the same volume.
	// Custom ids must pass scene.ValidateID.
	SceneID string

	// Color defaults to the palette entry of the axis; an empty string
	// disables the viewer's own indicator frame
	Color *string

	// Thumbnail selects the low-res tier; zero uses the configured value
	Thumbnail config.Thumbnail
}

// resolved holds validated parameters.
type resolved struct {
	axis      int
	spacing   [3]float64
	origin    [3]float64
	reverseY  bool
	clim      [2]float64
	sceneID   string
	color     string
	thumbSize int
	thumbsOn  bool
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (a *App) resolve(vol *models.Volume, p Params) (resolved, error) {
	var r resolved
	if err := vol.Validate(); err != nil {
		return r, &ParamError{Param: "volume", Err: err}
	}

	if p.Axis < 0 || p.Axis > 2 {
		return r, &ParamError{Param: "axis", Err: fmt.Errorf("%w: got %d", ErrInvalidAxis, p.Axis)}
	}
	r.axis = p.Axis

	r.spacing = vol.Spacing
	if r.spacing == ([3]float64{}) {
		r.spacing = [3]float64{1, 1, 1}
	}
	if p.Spacing != nil {
		r.spacing = *p.Spacing
	}
	for _, s := range r.spacing {
		if !(s > 0) || !finite(s) {
			return r, &ParamError{Param: "spacing", Err: fmt.Errorf("%w: spacing %v", ErrInvalidVolume, r.spacing)}
		}
	}
	r.origin = vol.Origin
	if p.Origin != nil {
		r.origin = *p.Origin
	}
	if !finite(r.origin[:]...) {
		return r, &ParamError{Param: "origin", Err: fmt.Errorf("%w: origin %v", ErrInvalidVolume, r.origin)}
	}

	r.reverseY = a.cfg.Viewer.ReverseY
	if p.ReverseY != nil {
		r.reverseY = *p.ReverseY
	}

	if p.ContrastLimits != nil {
		r.clim = *p.ContrastLimits
		if !finite(r.clim[0], r.clim[1]) {
			return r, &ParamError{Param: "clim", Err: fmt.Errorf("%w: got %v", ErrInvalidContrast, r.clim)}
		}
	} else {
		r.clim = visualization.VolumeRange(vol)
	}

	if p.SceneID == "" {
		r.sceneID = a.ids.SceneFor(vol)
	} else {
		if err := scene.ValidateID(p.SceneID); err != nil {
			return r, &ParamError{Param: "scene_id", Err: err}
		}
		r.sceneID = p.SceneID
	}

	if p.Color != nil {
		r.color = *p.Color
	} else if r.axis < len(a.cfg.Viewer.Palette) {
		r.color = a.cfg.Viewer.Palette[r.axis]
	}

	thumb := p.Thumbnail
	if thumb == config.ThumbnailDefault {
		thumb = a.cfg.Viewer.Thumbnail
	}
	r.thumbSize, r.thumbsOn = thumb.Resolve(vol.MaxExtent())
	return r, nil
}
