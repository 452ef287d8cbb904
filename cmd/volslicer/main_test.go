package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseShape(t *testing.T) {
	shape, err := parseShape("64, 96,128")
	if err != nil {
		t.Fatalf("parseShape failed: %v", err)
	}
	if shape != [3]int{64, 96, 128} {
		t.Errorf("Expected [64 96 128], got %v", shape)
	}

	for _, in := range []string{"64.7,96,128", "1e2,4,4", "64,96", "0,4,4", "4,-1,4", "a,b,c"} {
		if _, err := parseShape(in); err == nil {
			t.Errorf("Expected an error for %q", in)
		}
	}
}

func TestParseTriple(t *testing.T) {
	spacing, err := parseTriple("0.5,1, 2.25")
	if err != nil {
		t.Fatalf("parseTriple failed: %v", err)
	}
	if spacing != [3]float64{0.5, 1, 2.25} {
		t.Errorf("Expected [0.5 1 2.25], got %v", spacing)
	}
}

func TestLoadVolume(t *testing.T) {
	vol, err := loadVolume("", [3]int{4, 6, 8})
	if err != nil {
		t.Fatalf("Failed to build phantom: %v", err)
	}
	if vol.Shape != [3]int{4, 6, 8} {
		t.Errorf("Expected phantom shape [4 6 8], got %v", vol.Shape)
	}

	path := filepath.Join(t.TempDir(), "vol.raw")
	if err := os.WriteFile(path, make([]byte, 2*3*4), 0644); err != nil {
		t.Fatal(err)
	}
	vol, err = loadVolume(path, [3]int{2, 3, 4})
	if err != nil {
		t.Fatalf("Failed to load raw volume: %v", err)
	}
	if vol.Shape != [3]int{2, 3, 4} {
		t.Errorf("Expected shape [2 3 4], got %v", vol.Shape)
	}
	if _, err := loadVolume(path, [3]int{2, 3, 5}); err == nil {
		t.Error("Expected an error for a shape that does not match the file")
	}
}
