package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultThumbnailSize is the longer-edge pixel target of the low-res tier.
const DefaultThumbnailSize = 32

// ErrInvalidThumbnail is returned for a thumbnail setting that is neither a
// boolean nor an integer.
var ErrInvalidThumbnail = errors.New("config: thumbnail must be a boolean or an integer")

// Thumbnail selects the low-resolution tier. The zero value means the default
// size, ThumbnailOff (or any non-positive size given explicitly) disables the
// tier so that full-resolution data is served for every slice.
type Thumbnail int

const (
	ThumbnailDefault Thumbnail = 0
	ThumbnailOff     Thumbnail = -1
)

// Resolve returns the effective thumbnail size for a volume whose largest
// extent is maxExtent. The tier is disabled when the target is not smaller
// than the image itself.
func (t Thumbnail) Resolve(maxExtent int) (size int, enabled bool) {
	switch {
	case t == ThumbnailDefault:
		size = DefaultThumbnailSize
	case t < 0:
		return 0, false
	default:
		size = int(t)
	}
	if size >= maxExtent {
		return 0, false
	}
	return size, true
}

// UnmarshalYAML accepts true (default size), false (disabled) or an integer.
func (t *Thumbnail) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d", ErrInvalidThumbnail, node.Line)
	}
	switch node.ShortTag() {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			*t = DefaultThumbnailSize
		} else {
			*t = ThumbnailOff
		}
		return nil
	case "!!int":
		var n int
		if err := node.Decode(&n); err != nil {
			return err
		}
		if n <= 0 {
			*t = ThumbnailOff
		} else {
			*t = Thumbnail(n)
		}
		return nil
	}
	return fmt.Errorf("%w: got %q at line %d", ErrInvalidThumbnail, node.Value, node.Line)
}

// MarshalYAML writes false for a disabled tier and the size otherwise.
func (t Thumbnail) MarshalYAML() (interface{}, error) {
	switch {
	case t < 0:
		return false, nil
	case t == ThumbnailDefault:
		return DefaultThumbnailSize, nil
	}
	return int(t), nil
}

// ParseThumbnail reads a command-line thumbnail setting with the same
// rules as the YAML form.
func ParseThumbnail(s string) (Thumbnail, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true":
		return Thumbnail(DefaultThumbnailSize), nil
	case "false":
		return ThumbnailOff, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidThumbnail, s)
	}
	if n <= 0 {
		return ThumbnailOff, nil
	}
	return Thumbnail(n), nil
}
