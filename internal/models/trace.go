package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Trace types understood by the rendering widget.
const (
	ImageTrace   = "image"
	ScatterTrace = "scatter"
)

// Series is a list of coordinates where NaN marks a gap in a polyline.
// Gaps are serialized as JSON null.
type Series []float64

// Gap is the value used to lift the pen between two line segments.
var Gap = math.NaN()

// MarshalJSON writes NaN entries as null.
func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
		} else {
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads null entries back as gaps.
func (s *Series) UnmarshalJSON(b []byte) error {
	var raw []*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = Gap
		} else {
			out[i] = *v
		}
	}
	*s = out
	return nil
}

// Equal compares two series, treating gaps as equal to each other.
func (s Series) Equal(o Series) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if math.IsNaN(s[i]) && math.IsNaN(o[i]) {
			continue
		}
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Line styles a scatter trace.
type Line struct {
	Color string `json:"color"`
	Width int    `json:"width"`
}

// Trace is one renderable item of a figure. Image traces use the placement
// fields; scatter traces use X, Y and Line.
type Trace struct {
	Type string `json:"type"`

	Source string  `json:"source,omitempty"`
	X0     float64 `json:"x0,omitempty"`
	Y0     float64 `json:"y0,omitempty"`
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`

	X    Series `json:"x,omitempty"`
	Y    Series `json:"y,omitempty"`
	Mode string `json:"mode,omitempty"`
	Line *Line  `json:"line,omitempty"`

	HoverInfo     string `json:"hoverinfo,omitempty"`
	HoverTemplate string `json:"hovertemplate,omitempty"`
	ShowLegend    *bool  `json:"showlegend,omitempty"`
}

// Equal reports whether two traces describe the same drawing.
func (t Trace) Equal(o Trace) bool {
	if t.Type != o.Type || t.Source != o.Source ||
		t.X0 != o.X0 || t.Y0 != o.Y0 || t.DX != o.DX || t.DY != o.DY ||
		t.Mode != o.Mode || t.HoverInfo != o.HoverInfo || t.HoverTemplate != o.HoverTemplate {
		return false
	}
	if !t.X.Equal(o.X) || !t.Y.Equal(o.Y) {
		return false
	}
	if (t.Line == nil) != (o.Line == nil) || (t.Line != nil && *t.Line != *o.Line) {
		return false
	}
	if (t.ShowLegend == nil) != (o.ShowLegend == nil) || (t.ShowLegend != nil && *t.ShowLegend != *o.ShowLegend) {
		return false
	}
	return true
}

// EqualTraces compares two trace lists element-wise.
func EqualTraces(a, b []Trace) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Placement is the affine placement of an image in scene coordinates.
type Placement struct {
	Source EncodedImage
	X0, Y0 float64
	DX, DY float64
}

// Trace converts a placement into an image trace.
func (p Placement) Trace() Trace {
	return Trace{
		Type:   ImageTrace,
		Source: p.Source,
		X0:     p.X0,
		Y0:     p.Y0,
		DX:     p.DX,
		DY:     p.DY,
	}
}
