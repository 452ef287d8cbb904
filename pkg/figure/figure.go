// Package figure assembles the render payload of a viewer from its image,
// user-supplied and indicator traces.
package figure

import "volslicer/internal/models"

// Margin is the space around the plot area, in pixels.
type Margin struct {
	L   int `json:"l"`
	R   int `json:"r"`
	T   int `json:"t"`
	B   int `json:"b"`
	Pad int `json:"pad"`
}

// Axis configures one plot axis.
type Axis struct {
	ShowGrid       bool   `json:"showgrid"`
	ShowTickLabels bool   `json:"showticklabels"`
	ZeroLine       bool   `json:"zeroline"`
	Constrain      string `json:"constrain,omitempty"`
	ScaleAnchor    string `json:"scaleanchor,omitempty"`

	// AutoRange is true or "reversed"
	AutoRange interface{} `json:"autorange"`

	// Range is the current view range as reported by the host, if any
	Range *[2]float64 `json:"range,omitempty"`
}

// Layout is the non-data part of a figure.
type Layout struct {
	Margin   Margin `json:"margin"`
	DragMode string `json:"dragmode"`
	XAxis    Axis   `json:"xaxis"`
	YAxis    Axis   `json:"yaxis"`
}

// Figure is what the plotting widget renders.
type Figure struct {
	Data   []models.Trace `json:"data"`
	Layout Layout         `json:"layout"`
}

// NewLayout returns the default layout of a slicer figure: no decorations,
// panning by default, square pixels, and y pointing down when reverseY.
func NewLayout(reverseY bool) Layout {
	var yauto interface{} = true
	if reverseY {
		yauto = "reversed"
	}
	return Layout{
		Margin:   Margin{Pad: 4},
		DragMode: "pan",
		XAxis: Axis{
			AutoRange: true,
			Constrain: "range",
		},
		YAxis: Axis{
			AutoRange:   yauto,
			Constrain:   "range",
			ScaleAnchor: "x",
		},
	}
}

// Compose replaces the data of prev with image traces, then extra traces,
// then the indicator traces that have a line color. The layout is kept.
// It returns false when the data did not change.
func Compose(prev Figure, img, extra, indicators []models.Trace) (Figure, bool) {
	data := make([]models.Trace, 0, len(img)+len(extra)+len(indicators))
	data = append(data, img...)
	data = append(data, extra...)
	for _, t := range indicators {
		if t.Line != nil && t.Line.Color != "" {
			data = append(data, t)
		}
	}
	if prev.Data != nil && models.EqualTraces(prev.Data, data) {
		return prev, false
	}
	return Figure{Data: data, Layout: prev.Layout}, true
}
