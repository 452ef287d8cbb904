package models

import (
	"errors"
	"fmt"
)

// ErrInvalidVolume is returned when a volume does not describe a 3D grid.
var ErrInvalidVolume = errors.New("models: invalid volume")

// DType describes how the samples of a Volume are to be interpreted.
// Samples are always stored as float64; the type only constrains which
// values are meaningful (e.g. a Bool mask holds 0 and 1 only).
type DType int

const (
	Float DType = iota
	Uint8
	Bool
	Label
)

func (d DType) String() string {
	switch d {
	case Float:
		return "float"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Label:
		return "label"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// Volume is a read-only 3D grid of scalar samples in zyx order.
// Viewers keep a pointer to the volume and never copy it; the pointer
// itself is used as the volume identity when assigning scene ids.
type Volume struct {
	// Data holds the samples in row-major order: z*d1*d2 + y*d2 + x
	Data []float64

	// Shape is (d0, d1, d2), i.e. (z, y, x)
	Shape [3]int

	// Spacing is the physical distance between voxels per dimension (zyx)
	Spacing [3]float64

	// Origin is the physical offset per dimension (zyx)
	Origin [3]float64

	DType DType
}

// NewVolume wraps data in a Volume of the given dimensions, with unit
// spacing and zero origin. It fails if dims does not have exactly three
// positive entries or if the data length does not match.
func NewVolume(data []float64, dims ...int) (*Volume, error) {
	if len(dims) != 3 {
		return nil, fmt.Errorf("%w: expected 3 dimensions, got %d", ErrInvalidVolume, len(dims))
	}
	n := 1
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dimension %d has size %d", ErrInvalidVolume, i, d)
		}
		n *= d
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: shape %v needs %d samples, got %d", ErrInvalidVolume, dims, n, len(data))
	}
	return &Volume{
		Data:    data,
		Shape:   [3]int{dims[0], dims[1], dims[2]},
		Spacing: [3]float64{1, 1, 1},
		DType:   Float,
	}, nil
}

// NewUint8Volume converts bytes into a Uint8 volume.
func NewUint8Volume(data []uint8, dims ...int) (*Volume, error) {
	f := make([]float64, len(data))
	for i, v := range data {
		f[i] = float64(v)
	}
	vol, err := NewVolume(f, dims...)
	if err != nil {
		return nil, err
	}
	vol.DType = Uint8
	return vol, nil
}

// NewMask creates a Bool volume from a predicate evaluated on every sample
// of the source volume.
func NewMask(src *Volume, pred func(v float64) bool) *Volume {
	data := make([]float64, len(src.Data))
	for i, v := range src.Data {
		if pred(v) {
			data[i] = 1
		}
	}
	return &Volume{
		Data:    data,
		Shape:   src.Shape,
		Spacing: src.Spacing,
		Origin:  src.Origin,
		DType:   Bool,
	}
}

// Validate checks the internal consistency of a volume built by hand.
func (v *Volume) Validate() error {
	if v == nil {
		return fmt.Errorf("%w: nil volume", ErrInvalidVolume)
	}
	n := 1
	for i, d := range v.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d has size %d", ErrInvalidVolume, i, d)
		}
		n *= d
	}
	if len(v.Data) != n {
		return fmt.Errorf("%w: shape %v needs %d samples, got %d", ErrInvalidVolume, v.Shape, n, len(v.Data))
	}
	return nil
}

// At returns the sample at (z, y, x).
func (v *Volume) At(z, y, x int) float64 {
	return v.Data[(z*v.Shape[1]+y)*v.Shape[2]+x]
}

// MaxExtent returns the largest of the three dimensions.
func (v *Volume) MaxExtent() int {
	m := v.Shape[0]
	for _, d := range v.Shape[1:] {
		if d > m {
			m = d
		}
	}
	return m
}
