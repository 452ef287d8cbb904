package visualization

import (
	"errors"
	"math/rand"
	"testing"

	"volslicer/internal/models"
)

// newTestVolume creates a volume where every voxel encodes its own position
func newTestVolume(t *testing.T, d0, d1, d2 int) *models.Volume {
	t.Helper()
	data := make([]float64, d0*d1*d2)
	for z := 0; z < d0; z++ {
		for y := 0; y < d1; y++ {
			for x := 0; x < d2; x++ {
				data[(z*d1+y)*d2+x] = float64(z*10000 + y*100 + x)
			}
		}
	}
	vol, err := models.NewVolume(data, d0, d1, d2)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return vol
}

// TestSliceShapes verifies the slice layout for each axis of a 10x20x30 volume
func TestSliceShapes(t *testing.T) {
	vol := newTestVolume(t, 10, 20, 30)

	cases := []struct {
		axis       int
		rows, cols int
	}{
		{0, 20, 30},
		{1, 10, 30},
		{2, 10, 20},
	}
	for _, c := range cases {
		im, err := Slice(vol, c.axis, 5)
		if err != nil {
			t.Fatalf("Failed to slice axis %d: %v", c.axis, err)
		}
		rows, cols := im.Dims()
		if rows != c.rows || cols != c.cols {
			t.Errorf("Axis %d: expected %dx%d slice, got %dx%d", c.axis, c.rows, c.cols, rows, cols)
		}

		size := models.ShapeToSize2D(vol.Shape, c.axis)
		if size[0] != cols || size[1] != rows {
			t.Errorf("Axis %d: local size %v does not match slice %dx%d", c.axis, size, cols, rows)
		}
	}
}

// TestSliceValues verifies that sampled values come from the requested plane
func TestSliceValues(t *testing.T) {
	vol := newTestVolume(t, 10, 20, 30)

	im, _ := Slice(vol, 0, 5)
	if got := im.At(3, 7); got != 50307 {
		t.Errorf("Axis 0: expected 50307, got %v", got)
	}

	im, _ = Slice(vol, 1, 4)
	if got := im.At(2, 9); got != 20409 {
		t.Errorf("Axis 1: expected 20409, got %v", got)
	}

	im, _ = Slice(vol, 2, 6)
	if got := im.At(8, 11); got != 81106 {
		t.Errorf("Axis 2: expected 81106, got %v", got)
	}
}

// TestSliceErrors verifies range and axis checks
func TestSliceErrors(t *testing.T) {
	vol := newTestVolume(t, 10, 20, 30)

	if _, err := Slice(vol, 0, 10); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange for index 10, got %v", err)
	}
	if _, err := Slice(vol, 0, -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange for index -1, got %v", err)
	}
	if _, err := Slice(vol, 2, 29); err != nil {
		t.Errorf("Expected index 29 to be valid along axis 2, got %v", err)
	}
	if _, err := Slice(vol, 3, 0); !errors.Is(err, ErrInvalidAxis) {
		t.Errorf("Expected ErrInvalidAxis, got %v", err)
	}
}

// TestRescale verifies the linear mapping and clamping
func TestRescale(t *testing.T) {
	vol := newTestVolume(t, 2, 2, 4)
	im, _ := Slice(vol, 0, 0) // values 0..3 and 100..103

	out := Rescale(im, [2]float64{0, 100})
	if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 2 {
		t.Fatalf("Unexpected output size %v", out.Bounds())
	}
	if got := out.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("Expected 0 at lower limit, got %d", got)
	}
	if got := out.GrayAt(2, 0).Y; got != 5 {
		t.Errorf("Expected 5 for value 2, got %d", got)
	}
	if got := out.GrayAt(3, 1).Y; got != 255 {
		t.Errorf("Expected clamping to 255, got %d", got)
	}

	// Reversed limits behave the same
	rev := Rescale(im, [2]float64{100, 0})
	if rev.GrayAt(2, 0).Y != out.GrayAt(2, 0).Y {
		t.Error("Expected reversed contrast limits to be reordered")
	}

	// Zero-width range yields zeros instead of dividing by zero
	flat := Rescale(im, [2]float64{7, 7})
	for _, p := range flat.Pix {
		if p != 0 {
			t.Fatalf("Expected all-zero output for zero-width range, got %d", p)
		}
	}
}

// TestRescaleIdempotence verifies rescale(rescale(im, clim), (0,255)) == rescale(im, clim)
func TestRescaleIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]float64, 4*16*16)
	for i := range data {
		data[i] = rng.Float64()*400 - 50
	}
	vol, err := models.NewVolume(data, 4, 16, 16)
	if err != nil {
		t.Fatal(err)
	}

	for _, clim := range [][2]float64{{0, 255}, {-20, 300}, {10, 11}} {
		im, _ := Slice(vol, 1, 2)
		once := Rescale(im, clim)
		twice := Rescale(AsDense(once), [2]float64{0, 255})
		for i := range once.Pix {
			if once.Pix[i] != twice.Pix[i] {
				t.Fatalf("clim %v: pixel %d changed from %d to %d", clim, i, once.Pix[i], twice.Pix[i])
			}
		}
	}
}

// TestAsUbyte verifies the min-max stretch used for non-8-bit data
func TestAsUbyte(t *testing.T) {
	vol := newTestVolume(t, 1, 2, 2)
	im, _ := Slice(vol, 0, 0)
	out := AsUbyte(im)
	if out.GrayAt(0, 0).Y != 0 || out.GrayAt(1, 1).Y != 255 {
		t.Errorf("Expected stretch to [0, 255], got %v", out.Pix)
	}
}

// TestVolumeRange verifies the default contrast limits
func TestVolumeRange(t *testing.T) {
	vol := newTestVolume(t, 3, 3, 3)
	r := VolumeRange(vol)
	if r[0] != 0 || r[1] != 20202 {
		t.Errorf("Expected range [0, 20202], got %v", r)
	}
}
