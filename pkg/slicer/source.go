package slicer

import (
	"context"
	"fmt"

	"volslicer/internal/models"
	"volslicer/pkg/visualization"
)

// TileRequest asks for the full-resolution image of one slice.
type TileRequest struct {
	Viewer string     `json:"viewer"`
	Index  int        `json:"index"`
	Clim   [2]float64 `json:"clim"`
}

// TileSource produces full-resolution tiles. Implementations may be
// remote; FetchTile is always called off the event loop.
type TileSource interface {
	FetchTile(ctx context.Context, req TileRequest) (models.EncodedImage, error)
}

// FetchTile renders a tile from the volume of the requested viewer. The App
// is its own default TileSource.
func (a *App) FetchTile(ctx context.Context, req TileRequest) (models.EncodedImage, error) {
	v, ok := a.Viewer(req.Viewer)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownViewer, req.Viewer)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := visualization.SliceUint8(v.vol, v.axis, req.Index, req.Clim)
	if err != nil {
		return "", err
	}
	return visualization.Encode(img, 0)
}
