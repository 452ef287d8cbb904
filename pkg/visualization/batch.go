package visualization

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"volslicer/internal/models"
)

// EncodeAll runs encode for every index in [0, n) using up to workers
// goroutines and returns the results in index order. The first error
// cancels the remaining work.
func EncodeAll(ctx context.Context, n, workers int, encode func(index int) (models.EncodedImage, error)) ([]models.EncodedImage, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]models.EncodedImage, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			enc, err := encode(i)
			if err != nil {
				return err
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Thumbnails encodes every slice of vol along axis with the given contrast
// limits. A non-positive target encodes at full resolution.
func Thumbnails(ctx context.Context, vol *models.Volume, axis int, clim [2]float64, target, workers int) (models.ThumbnailSet, error) {
	if axis < 0 || axis > 2 {
		return nil, ErrInvalidAxis
	}
	set, err := EncodeAll(ctx, vol.Shape[axis], workers, func(index int) (models.EncodedImage, error) {
		im, err := SliceUint8(vol, axis, index, clim)
		if err != nil {
			return "", err
		}
		return Encode(im, target)
	})
	if err != nil {
		return nil, err
	}
	return models.ThumbnailSet(set), nil
}
