package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestDefaultConfig verifies the documented default timings and sizes
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timing.Drag != 200*time.Millisecond {
		t.Errorf("Expected drag timeout 200ms, got %s", cfg.Timing.Drag)
	}
	if cfg.Timing.View != 400*time.Millisecond {
		t.Errorf("Expected view timeout 400ms, got %s", cfg.Timing.View)
	}
	if cfg.Timing.Init != 100*time.Millisecond {
		t.Errorf("Expected init timeout 100ms, got %s", cfg.Timing.Init)
	}
	if cfg.Timing.WarmupTicks != 5 {
		t.Errorf("Expected 5 warmup ticks, got %d", cfg.Timing.WarmupTicks)
	}
	if size, ok := cfg.Viewer.Thumbnail.Resolve(100); !ok || size != 32 {
		t.Errorf("Expected default thumbnail size 32, got %d (enabled=%v)", size, ok)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestLoadConfigMissingFile verifies that a missing file yields the defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Server.Address != DefaultConfig().Server.Address {
		t.Errorf("Expected default address, got %s", cfg.Server.Address)
	}
}

// TestSaveAndLoadConfig verifies a config survives a trip through a file
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "volslicer.yaml")

	cfg := DefaultConfig()
	cfg.Timing.Drag = 150 * time.Millisecond
	cfg.Viewer.Thumbnail = ThumbnailOff
	cfg.Server.Address = ":9000"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Timing.Drag != 150*time.Millisecond {
		t.Errorf("Expected drag 150ms, got %s", loaded.Timing.Drag)
	}
	if loaded.Viewer.Thumbnail != ThumbnailOff {
		t.Errorf("Expected thumbnails off, got %d", loaded.Viewer.Thumbnail)
	}
	if loaded.Server.Address != ":9000" {
		t.Errorf("Expected address :9000, got %s", loaded.Server.Address)
	}
}

// TestLoadConfigRejectsBadValues verifies validation after parsing
func TestLoadConfigRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("timing:\n  poll: 0s\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("Expected error for zero poll interval, got nil")
	}

	thumb := filepath.Join(dir, "thumb.yaml")
	if err := os.WriteFile(thumb, []byte("viewer:\n  thumbnail: 20.2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(thumb)
	if !errors.Is(err, ErrInvalidThumbnail) {
		t.Errorf("Expected ErrInvalidThumbnail, got %v", err)
	}
}

// TestThumbnailYAML verifies the accepted spellings of the thumbnail setting
func TestThumbnailYAML(t *testing.T) {
	cases := []struct {
		in   string
		want Thumbnail
	}{
		{"true", DefaultThumbnailSize},
		{"false", ThumbnailOff},
		{"20", 20},
		{"0", ThumbnailOff},
		{"-1", ThumbnailOff},
	}
	for _, c := range cases {
		var th Thumbnail
		if err := yaml.Unmarshal([]byte(c.in), &th); err != nil {
			t.Errorf("Unexpected error for %q: %v", c.in, err)
			continue
		}
		if th != c.want {
			t.Errorf("For %q expected %d, got %d", c.in, c.want, th)
		}
	}

	for _, in := range []string{"20.2", "big"} {
		var th Thumbnail
		if err := yaml.Unmarshal([]byte(in), &th); !errors.Is(err, ErrInvalidThumbnail) {
			t.Errorf("Expected ErrInvalidThumbnail for %q, got %v", in, err)
		}
	}
}

// TestThumbnailResolve verifies the tier is disabled when it would not shrink the image
func TestThumbnailResolve(t *testing.T) {
	if _, ok := Thumbnail(102).Resolve(100); ok {
		t.Error("Expected thumbnail larger than the volume to be disabled")
	}
	if size, ok := Thumbnail(50).Resolve(100); !ok || size != 50 {
		t.Errorf("Expected size 50, got %d (enabled=%v)", size, ok)
	}
	if _, ok := ThumbnailOff.Resolve(100); ok {
		t.Error("Expected ThumbnailOff to be disabled")
	}
}

func TestParseThumbnail(t *testing.T) {
	cases := []struct {
		in   string
		want Thumbnail
	}{
		{"true", DefaultThumbnailSize},
		{"", DefaultThumbnailSize},
		{"False", ThumbnailOff},
		{"0", ThumbnailOff},
		{" 48 ", 48},
	}
	for _, c := range cases {
		got, err := ParseThumbnail(c.in)
		if err != nil || got != c.want {
			t.Errorf("ParseThumbnail(%q): expected %d, got %d (%v)", c.in, c.want, got, err)
		}
	}
	if _, err := ParseThumbnail("yes"); !errors.Is(err, ErrInvalidThumbnail) {
		t.Errorf("Expected ErrInvalidThumbnail, got %v", err)
	}
}

// TestNumCoresDefaulting verifies that Validate leaves the config alone and
// LoadConfig fills in the core count
func TestNumCoresDefaulting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.NumCores = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Processing.NumCores != 0 {
		t.Errorf("Expected Validate to keep numCores 0, got %d", cfg.Processing.NumCores)
	}

	path := filepath.Join(t.TempDir(), "cores.yaml")
	if err := os.WriteFile(path, []byte("processing:\n  numCores: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Processing.NumCores != runtime.NumCPU() {
		t.Errorf("Expected numCores %d, got %d", runtime.NumCPU(), loaded.Processing.NumCores)
	}

	if err := os.WriteFile(path, []byte("processing:\n  numCores: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if loaded, err = LoadConfig(path); err != nil || loaded.Processing.NumCores != 3 {
		t.Errorf("Expected numCores 3 to be kept, got %+v (%v)", loaded, err)
	}
}
