// Package visualization turns a 3D volume into displayable 2D images: it
// samples orthogonal slices, maps intensities into 8-bit, encodes images as
// embeddable PNG data URIs, and colors label masks into overlays.
package visualization

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"volslicer/internal/models"
)

var (
	ErrInvalidAxis     = errors.New("visualization: axis must be 0, 1, or 2")
	ErrIndexOutOfRange = errors.New("visualization: slice index out of range")
)

// Slice extracts the 2D hyperplane at index along axis. The result is laid
// out in the local frame of the axis: rows run along local y, columns along
// local x (see models.ShapeToSize2D).
func Slice(vol *models.Volume, axis, index int) (*mat.Dense, error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAxis, axis)
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if index < 0 || index >= vol.Shape[axis] {
		return nil, fmt.Errorf("%w: index %d not in [0, %d)", ErrIndexOutOfRange, index, vol.Shape[axis])
	}

	d0, d1, d2 := vol.Shape[0], vol.Shape[1], vol.Shape[2]
	var im *mat.Dense

	switch axis {
	case 0:
		// Plane spanned by y (rows) and x (columns); contiguous in memory
		im = mat.NewDense(d1, d2, nil)
		start := index * d1 * d2
		for y := 0; y < d1; y++ {
			im.SetRow(y, vol.Data[start+y*d2:start+(y+1)*d2])
		}

	case 1:
		// Plane spanned by z (rows) and x (columns)
		im = mat.NewDense(d0, d2, nil)
		for z := 0; z < d0; z++ {
			start := (z*d1 + index) * d2
			im.SetRow(z, vol.Data[start:start+d2])
		}

	case 2:
		// Plane spanned by z (rows) and y (columns)
		im = mat.NewDense(d0, d1, nil)
		for z := 0; z < d0; z++ {
			for y := 0; y < d1; y++ {
				im.Set(z, y, vol.At(z, y, index))
			}
		}
	}

	return im, nil
}

// Rescale maps im linearly so that clim[0] becomes 0 and clim[1] becomes 255,
// clamping values outside that range. The limits may be given in either
// order. A zero-width range yields an all-zero image.
func Rescale(im mat.Matrix, clim [2]float64) *image.Gray {
	rows, cols := im.Dims()
	out := image.NewGray(image.Rect(0, 0, cols, rows))

	lo, hi := math.Min(clim[0], clim[1]), math.Max(clim[0], clim[1])
	if hi == lo || math.IsNaN(hi-lo) {
		return out
	}
	scale := 255 / (hi - lo)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := (im.At(y, x) - lo) * scale
			if v < 0 || math.IsNaN(v) {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.Pix[y*out.Stride+x] = uint8(v)
		}
	}
	return out
}

// AsDense converts an 8-bit image back into a matrix of intensities.
func AsDense(img *image.Gray) *mat.Dense {
	b := img.Bounds()
	m := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			m.Set(y, x, float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
		}
	}
	return m
}

// AsUbyte stretches an arbitrary matrix to the full 8-bit range using its
// own minimum and maximum, rounding to the nearest level.
func AsUbyte(im mat.Matrix) *image.Gray {
	rows, cols := im.Dims()
	out := image.NewGray(image.Rect(0, 0, cols, rows))
	mi, ma := mat.Min(im), mat.Max(im)
	if ma == mi {
		return out
	}
	scale := 255 / (ma - mi)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Pix[y*out.Stride+x] = uint8((im.At(y, x)-mi)*scale + 0.5)
		}
	}
	return out
}

// SliceUint8 samples a slice and applies the contrast limits in one step.
func SliceUint8(vol *models.Volume, axis, index int, clim [2]float64) (*image.Gray, error) {
	im, err := Slice(vol, axis, index)
	if err != nil {
		return nil, err
	}
	return Rescale(im, clim), nil
}

// VolumeRange returns the minimum and maximum sample of a volume, the
// default contrast limits.
func VolumeRange(vol *models.Volume) [2]float64 {
	if len(vol.Data) == 0 {
		return [2]float64{0, 0}
	}
	return [2]float64{floats.Min(vol.Data), floats.Max(vol.Data)}
}
