package visualization

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"

	"volslicer/internal/models"
)

const dataURIPrefix = "data:image/png;base64,"

var ErrNotDataURI = errors.New("visualization: not a PNG data URI")

// ThumbnailDims returns the exact size of the thumbnail Encode produces for
// an image of the given (w, h) size and longer-edge target. The box is
// chosen so that the shorter side becomes target; the image is never
// enlarged, and the aspect ratio is kept by rounding the free side to
// whichever neighbouring integer best preserves it.
func ThumbnailDims(size [2]int, target int) [2]int {
	w, h := size[0], size[1]
	if target <= 0 || w <= 0 || h <= 0 {
		return size
	}

	var x, y int
	if w > h {
		x, y = int(float64(target)*float64(w)/float64(h)), target
	} else {
		x, y = target, int(float64(target)*float64(h)/float64(w))
	}
	if x >= w && y >= h {
		return size
	}

	aspect := float64(w) / float64(h)
	if float64(x)/float64(y) >= aspect {
		x = roundAspect(float64(y)*aspect, func(n float64) float64 {
			return math.Abs(aspect - n/float64(y))
		})
	} else {
		y = roundAspect(float64(x)/aspect, func(n float64) float64 {
			if n == 0 {
				return 0
			}
			return math.Abs(aspect - float64(x)/n)
		})
	}
	return [2]int{x, y}
}

// roundAspect picks floor or ceil of number, whichever has the lower key,
// preferring floor on ties, and never returns less than 1.
func roundAspect(number float64, key func(float64) float64) int {
	lo, hi := math.Floor(number), math.Ceil(number)
	n := lo
	if key(hi) < key(lo) {
		n = hi
	}
	if n < 1 {
		return 1
	}
	return int(n)
}

// Encode turns an image into a PNG data URI. With a positive target the
// image is first downsampled to ThumbnailDims(size, target).
func Encode(img image.Image, target int) (models.EncodedImage, error) {
	b := img.Bounds()
	size := [2]int{b.Dx(), b.Dy()}
	if target > 0 {
		if dims := ThumbnailDims(size, target); dims != size {
			img = downsample(img, dims)
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("visualization: encoding %dx%d image: %w", size[0], size[1], err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func downsample(src image.Image, dims [2]int) image.Image {
	r := image.Rect(0, 0, dims[0], dims[1])
	var dst draw.Image
	switch src.(type) {
	case *image.Gray:
		dst = image.NewGray(r)
	default:
		dst = image.NewNRGBA(r)
	}
	draw.ApproxBiLinear.Scale(dst, r, src, src.Bounds(), draw.Src, nil)
	return dst
}

// Decode parses a data URI produced by Encode.
func Decode(enc models.EncodedImage) (image.Image, error) {
	raw, err := PNGBytes(enc)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(raw))
}

// EncodedSize returns the pixel size of an encoded image without decoding
// its pixel data.
func EncodedSize(enc models.EncodedImage) ([2]int, error) {
	raw, err := PNGBytes(enc)
	if err != nil {
		return [2]int{}, err
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return [2]int{}, err
	}
	return [2]int{cfg.Width, cfg.Height}, nil
}

// PNGBytes returns the raw PNG payload of an encoded image.
func PNGBytes(enc models.EncodedImage) ([]byte, error) {
	if !strings.HasPrefix(enc, dataURIPrefix) {
		return nil, ErrNotDataURI
	}
	raw, err := base64.StdEncoding.DecodeString(enc[len(dataURIPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}
	return raw, nil
}

// FromPNG wraps a raw PNG payload as an encoded image.
func FromPNG(b []byte) models.EncodedImage {
	return dataURIPrefix + base64.StdEncoding.EncodeToString(b)
}
