package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
	"github.com/twinj/uuid"

	"volslicer/internal/models"
	"volslicer/pkg/logging"
	"volslicer/pkg/slicer"
	"volslicer/pkg/tiles"
)

// LocalSource serves tiles in-process and keeps recently rendered ones in a
// byte-bounded cache. Tiles never change for a given viewer, index and
// contrast limits, so entries do not expire.
type LocalSource struct {
	next  slicer.TileSource
	cache *freecache.Cache

	attempts uint64
	hits     uint64
}

// NewLocalSource wraps next with a cache of about cacheMB megabytes. A
// size of zero disables caching.
func NewLocalSource(next slicer.TileSource, cacheMB int) *LocalSource {
	s := &LocalSource{next: next}
	if cacheMB > 0 {
		numBytes := cacheMB << 20
		s.cache = freecache.NewCache(numBytes)
		logging.Infof("Created freecache of ~ %s for full-resolution tiles.\n", humanize.IBytes(uint64(numBytes)))
	}
	return s
}

func tileKey(req slicer.TileRequest) []byte {
	return []byte(fmt.Sprintf("%s/%d/%g,%g", req.Viewer, req.Index, req.Clim[0], req.Clim[1]))
}

// FetchTile returns the cached tile or renders it with the wrapped source.
func (s *LocalSource) FetchTile(ctx context.Context, req slicer.TileRequest) (models.EncodedImage, error) {
	if s.cache == nil {
		return s.next.FetchTile(ctx, req)
	}
	key := tileKey(req)
	atomic.AddUint64(&s.attempts, 1)
	data, err := s.cache.Get(key)
	if err != nil && err != freecache.ErrNotFound {
		return "", err
	}
	if data != nil {
		atomic.AddUint64(&s.hits, 1)
		return models.EncodedImage(data), nil
	}

	img, err := s.next.FetchTile(ctx, req)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(key, []byte(img), 0); err != nil {
		// too large for the cache; still a valid tile
		logging.Debugf("Tile %s not cached: %v\n", key, err)
	}
	return img, nil
}

// Stats returns the number of lookups and cache hits so far.
func (s *LocalSource) Stats() (attempts, hits uint64) {
	return atomic.LoadUint64(&s.attempts), atomic.LoadUint64(&s.hits)
}

// HTTPSource fetches tiles from a remote server's tile endpoint.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource creates a source for the server at baseURL. A nil client
// selects one with a short timeout.
func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("bad tile server url %q: %w", baseURL, err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{base: base, client: client}, nil
}

// FetchTile requests the tile as a data URI.
func (s *HTTPSource) FetchTile(ctx context.Context, req slicer.TileRequest) (models.EncodedImage, error) {
	u := *s.base
	u.Path = fmt.Sprintf("%s/api/viewer/%s/tile/%d", u.Path, url.PathEscape(req.Viewer), req.Index)
	q := url.Values{}
	q.Set("clim", strconv.FormatFloat(req.Clim[0], 'g', -1, 64)+","+strconv.FormatFloat(req.Clim[1], 'g', -1, 64))
	q.Set("format", "uri")
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	id := uuid.NewV4().String()
	httpReq.Header.Set(RequestIDHeader, id)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("tile request %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("tile request %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tile request %s: status %d: %s", id, resp.StatusCode, data)
	}

	var entry tiles.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", fmt.Errorf("tile request %s: %w", id, err)
	}
	if entry.Index != req.Index {
		return "", fmt.Errorf("tile request %s: asked for slice %d, got %d", id, req.Index, entry.Index)
	}
	return entry.Image, nil
}
