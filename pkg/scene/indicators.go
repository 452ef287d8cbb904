package scene

import (
	"math"

	"volslicer/internal/models"
)

// frameFraction sizes the corner brackets relative to the mean extent.
const frameFraction = 0.1

// Indicators draws where the peers of a viewer are. Each peer on another
// axis becomes a line at its z position spanning its committed view range.
// When there is at least one such line the viewer's own view range is
// framed with corner brackets in its own color. A nil own state means the
// viewer has not committed yet, and Indicators returns nil for "no update".
func Indicators(info models.AxisInfo, own *models.CommittedState, peers []models.CommittedState) []models.Trace {
	if own == nil {
		return nil
	}
	traces := []models.Trace{}
	for _, p := range peers {
		x, y, ok := peerLine(info.Axis, p)
		if !ok {
			continue
		}
		traces = append(traces, models.Trace{
			X:    x,
			Y:    y,
			Line: &models.Line{Color: p.Color, Width: 1},
		})
	}

	if info.Color != "" && len(traces) > 0 {
		traces = append(traces, selfFrame(info, *own))
	}

	for i := range traces {
		traces[i].Type = models.ScatterTrace
		traces[i].Mode = "lines"
		traces[i].HoverInfo = "skip"
		traces[i].ShowLegend = new(bool)
	}
	return traces
}

func peerLine(axis int, p models.CommittedState) (x, y models.Series, ok bool) {
	zpos := models.Series{p.ZPos, p.ZPos}
	xr := models.Series{p.XRange[0], p.XRange[1]}
	yr := models.Series{p.YRange[0], p.YRange[1]}

	switch {
	case axis == 0 && p.Axis == 1:
		return xr, zpos, true
	case axis == 0 && p.Axis == 2:
		return zpos, xr, true
	case axis == 1 && p.Axis == 2:
		return zpos, yr, true
	case axis == 1 && p.Axis == 0:
		return xr, zpos, true
	case axis == 2 && p.Axis == 0:
		return yr, zpos, true
	case axis == 2 && p.Axis == 1:
		return zpos, yr, true
	}
	return nil, nil, false
}

// selfFrame draws four corner brackets of equal scene size for all viewers
// of the same volume.
func selfFrame(info models.AxisInfo, s models.CommittedState) models.Trace {
	lx := float64(info.Size[0]) * info.Stepsize[0]
	ly := float64(info.Size[1]) * info.Stepsize[1]
	lz := float64(info.Size[2]) * info.Stepsize[2]
	dd := frameFraction * (lx + ly + lz) / 3
	dd = math.Min(dd, 0.45*math.Min(lx, math.Min(ly, lz)))

	x1, x2, x3, x4 := s.XRange[0], s.XRange[0]+dd, s.XRange[1]-dd, s.XRange[1]
	y1, y2, y3, y4 := s.YRange[0], s.YRange[0]+dd, s.YRange[1]-dd, s.YRange[1]
	gap := models.Gap

	return models.Trace{
		X:    models.Series{x1, x1, x2, gap, x3, x4, x4, gap, x4, x4, x3, gap, x2, x1, x1},
		Y:    models.Series{y2, y1, y1, gap, y1, y1, y2, gap, y3, y4, y4, gap, y4, y4, y3},
		Line: &models.Line{Color: info.Color, Width: 4},
	}
}
