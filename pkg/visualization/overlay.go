package visualization

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"volslicer/internal/models"
)

var (
	ErrInvalidDtype  = errors.New("visualization: mask must have bool or uint8 dtype")
	ErrInvalidColor  = errors.New("visualization: invalid color")
	ErrShapeMismatch = errors.New("visualization: mask shape does not match volume")
)

// defaultAlpha is applied to colors given without an alpha component.
const defaultAlpha = 100

// ColorTable maps label values to colors. Entry 0 is reserved for
// "no label" and is inserted by BuildOverlay.
type ColorTable []color.NRGBA

// ParseColor accepts a hex string ("#rrggbb" or "#rgb"), an RGB or RGBA
// tuple as []int, []float64, [3]int or [4]int, or a color.Color.
func ParseColor(c interface{}) (color.NRGBA, error) {
	switch v := c.(type) {
	case string:
		return parseHex(v)
	case color.NRGBA:
		return v, nil
	case color.Color:
		return color.NRGBAModel.Convert(v).(color.NRGBA), nil
	case [3]int:
		return fromInts(v[:])
	case [4]int:
		return fromInts(v[:])
	case []int:
		return fromInts(v)
	case []float64:
		ints := make([]int, len(v))
		for i, f := range v {
			ints[i] = int(f)
		}
		return fromInts(ints)
	}
	return color.NRGBA{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidColor, c)
}

func parseHex(s string) (color.NRGBA, error) {
	if !strings.HasPrefix(s, "#") {
		return color.NRGBA{}, fmt.Errorf("%w: named colors are not supported, hex colors are: %q", ErrInvalidColor, s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: defaultAlpha}, nil
}

func fromInts(v []int) (color.NRGBA, error) {
	if len(v) != 3 && len(v) != 4 {
		return color.NRGBA{}, fmt.Errorf("%w: expected color tuples to be 3 or 4 elements, got %d", ErrInvalidColor, len(v))
	}
	clamp := func(x int) uint8 {
		if x < 0 {
			return 0
		}
		if x > 255 {
			return 255
		}
		return uint8(x)
	}
	c := color.NRGBA{R: clamp(v[0]), G: clamp(v[1]), B: clamp(v[2]), A: defaultAlpha}
	if len(v) == 4 {
		c.A = clamp(v[3])
	}
	return c, nil
}

// ParseColors normalizes a list of color specifications. With no arguments
// it returns the default overlay colormap.
func ParseColors(specs ...interface{}) (ColorTable, error) {
	if len(specs) == 0 {
		specs = make([]interface{}, 0, len(models.D3)-3)
		for _, s := range models.D3[3:] {
			specs = append(specs, s)
		}
	}
	table := make(ColorTable, len(specs))
	for i, s := range specs {
		c, err := ParseColor(s)
		if err != nil {
			return nil, err
		}
		table[i] = c
	}
	return table, nil
}

// CheckMask verifies that a mask holds small non-negative integer labels.
func CheckMask(mask *models.Volume) error {
	if mask == nil {
		return fmt.Errorf("%w: nil mask", ErrInvalidDtype)
	}
	if err := mask.Validate(); err != nil {
		return err
	}
	switch mask.DType {
	case models.Bool, models.Uint8, models.Label:
	default:
		return fmt.Errorf("%w: got %s", ErrInvalidDtype, mask.DType)
	}
	for _, v := range mask.Data {
		if v < 0 || v > 255 || v != math.Trunc(v) {
			return fmt.Errorf("%w: label value %g", ErrInvalidDtype, v)
		}
	}
	return nil
}

// BuildOverlay colors every slice of a label mask along axis. Slices without
// any label become models.NoOverlay instead of a transparent image. Labels
// beyond the end of the table reuse its last color. An empty table selects
// the default colormap.
func BuildOverlay(mask *models.Volume, axis int, table ColorTable) (models.OverlaySet, error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAxis, axis)
	}
	if err := CheckMask(mask); err != nil {
		return nil, err
	}
	if len(table) == 0 {
		var err error
		if table, err = ParseColors(); err != nil {
			return nil, err
		}
	}
	colormap := append(ColorTable{{}}, table...)

	// Extend up front so the workers only read the table
	maxLabel := 0
	for _, v := range mask.Data {
		if int(v) > maxLabel {
			maxLabel = int(v)
		}
	}
	for len(colormap) <= maxLabel {
		colormap = append(colormap, colormap[len(colormap)-1])
	}

	set, err := EncodeAll(context.Background(), mask.Shape[axis], 0, func(index int) (models.EncodedImage, error) {
		im, err := Slice(mask, axis, index)
		if err != nil {
			return "", err
		}
		rows, cols := im.Dims()
		rgba := image.NewNRGBA(image.Rect(0, 0, cols, rows))
		labelled := false
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				label := int(im.At(y, x))
				if label == 0 {
					continue
				}
				labelled = true
				rgba.SetNRGBA(x, y, colormap[label])
			}
		}
		if !labelled {
			return models.NoOverlay, nil
		}
		return Encode(rgba, 0)
	})
	if err != nil {
		return nil, err
	}
	return models.OverlaySet(set), nil
}

// EmptyOverlay returns an overlay set of n absence markers.
func EmptyOverlay(n int) models.OverlaySet {
	return make(models.OverlaySet, n)
}
