package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/zenazn/goji/web"

	"volslicer/internal/models"
	"volslicer/pkg/scene"
	"volslicer/pkg/slicer"
	"volslicer/pkg/tiles"
	"volslicer/pkg/visualization"
)

var errBadInput = errors.New("server: bad input")

// maxBodySize bounds POST bodies; all inputs are small JSON documents.
const maxBodySize = 1 << 16

// ViewerInfo describes one viewer in the viewer list.
type ViewerInfo struct {
	Context        string          `json:"context"`
	SceneID        string          `json:"scene_id"`
	Axis           int             `json:"axis"`
	NSlices        int             `json:"nslices"`
	Index          int             `json:"index"`
	ContrastLimits [2]float64      `json:"clim"`
	Thumbnails     bool            `json:"thumbnails"`
	Info           models.AxisInfo `json:"info"`
}

type indexBody struct {
	Index *int `json:"index"`
}

type viewBody struct {
	XRange   [2]float64  `json:"xrange"`
	YRange   [2]float64  `json:"yrange"`
	PlotSize *[2]float64 `json:"plot_size"`
}

type climBody struct {
	Clim [2]float64 `json:"clim"`
}

type clickBody struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func decodeBody(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadInput, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadInput, err)
	}
	return nil
}

// parseClim reads "lo,hi".
func parseClim(s string) ([2]float64, error) {
	var clim [2]float64
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return clim, fmt.Errorf("%w: clim must be lo,hi, got %q", errBadInput, s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return clim, fmt.Errorf("%w: clim %q: %v", errBadInput, s, err)
		}
		clim[i] = v
	}
	return clim, nil
}

// onViewer runs fn with the named viewer on the event loop.
func (s *Server) onViewer(r *http.Request, id string, fn func(v *slicer.Viewer) error) error {
	v, ok := s.app.Viewer(id)
	if !ok {
		return fmt.Errorf("%w: %q", slicer.ErrUnknownViewer, id)
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	errc := make(chan error, 1)
	if err := s.app.Call(ctx, func() { errc <- fn(v) }); err != nil {
		return err
	}
	return <-errc
}

func (s *Server) viewersHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var list []ViewerInfo
	err := s.app.Call(ctx, func() {
		list = make([]ViewerInfo, 0, len(s.app.Viewers()))
		for _, v := range s.app.Viewers() {
			list = append(list, ViewerInfo{
				Context:        v.Context(),
				SceneID:        v.SceneID(),
				Axis:           v.Axis(),
				NSlices:        v.NSlices(),
				Index:          v.Index(),
				ContrastLimits: v.ContrastLimits(),
				Thumbnails:     v.ThumbnailsEnabled(),
				Info:           v.Info(),
			})
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list)
}

// tileHandler returns a full-resolution slice as PNG, or as a JSON tile
// entry holding a data URI when format=uri.
func (s *Server) tileHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	id := c.URLParams["ctx"]
	index, err := strconv.Atoi(c.URLParams["index"])
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: slice index %q", errBadInput, c.URLParams["index"]))
		return
	}

	var clim [2]float64
	if q := r.URL.Query().Get("clim"); q != "" {
		if clim, err = parseClim(q); err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		err = s.onViewer(r, id, func(v *slicer.Viewer) error {
			clim = v.ContrastLimits()
			return nil
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	img, err := s.tiles.FetchTile(ctx, slicer.TileRequest{Viewer: id, Index: index, Clim: clim})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "uri" {
		writeJSON(w, r, tiles.Entry{Index: index, Image: img})
		return
	}
	data, err := visualization.PNGBytes(img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func (s *Server) thumbnailsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var set models.ThumbnailSet
	err := s.onViewer(r, c.URLParams["ctx"], func(v *slicer.Viewer) error {
		set = v.Thumbnails()
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, set)
}

func (s *Server) figureHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var fig interface{}
	err := s.onViewer(r, c.URLParams["ctx"], func(v *slicer.Viewer) error {
		fig = v.Figure()
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, fig)
}

func (s *Server) indexHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var body indexBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Index == nil {
		writeError(w, r, fmt.Errorf("%w: missing index", errBadInput))
		return
	}
	err := s.onViewer(r, c.URLParams["ctx"], func(v *slicer.Viewer) error {
		return v.SetIndex(*body.Index)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, body)
}

func (s *Server) viewHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var body viewBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.onViewer(r, c.URLParams["ctx"], func(v *slicer.Viewer) error {
		if body.PlotSize != nil {
			v.SetPlotSize(body.PlotSize[0], body.PlotSize[1])
		}
		if err := v.SetViewRange(body.XRange, body.YRange); err != nil {
			return fmt.Errorf("%w: %v", errBadInput, err)
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) climHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var body climBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.onViewer(r, c.URLParams["ctx"], func(v *slicer.Viewer) error {
		return v.SetContrastLimits(body.Clim[0], body.Clim[1])
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clickHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var body clickBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.onViewer(r, c.URLParams["ctx"], func(v *slicer.Viewer) error {
		return v.Click(body.X, body.Y)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stateHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	sceneID := c.URLParams["scene"]
	if err := scene.ValidateID(sceneID); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadInput, err))
		return
	}
	writeJSON(w, r, s.app.States(sceneID))
}

// setposHandler accepts [x, y, z] where null leaves an axis untouched.
func (s *Server) setposHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	sceneID := c.URLParams["scene"]
	if err := scene.ValidateID(sceneID); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadInput, err))
		return
	}
	var pos models.Position
	if err := decodeBody(r, &pos); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.app.SetPosition(sceneID, pos); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
