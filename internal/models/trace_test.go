package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestSeriesGapsAsNull(t *testing.T) {
	s := Series{1, Gap, 2.5}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[1,null,2.5]" {
		t.Errorf("Expected [1,null,2.5], got %s", data)
	}

	var back Series
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back) != 3 || !math.IsNaN(back[1]) {
		t.Fatalf("Expected a gap at index 1, got %v", back)
	}
	if !back.Equal(s) {
		t.Errorf("Expected %v, got %v", s, back)
	}
}

func TestSeriesEdgeValues(t *testing.T) {
	data, err := json.Marshal(Series{math.Inf(1), -0.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[null,-0.5]" {
		t.Errorf("Expected infinities as null, got %s", data)
	}

	data, err = json.Marshal(Series(nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "null" {
		t.Errorf("Expected null for a nil series, got %s", data)
	}
	var s Series
	if err := json.Unmarshal([]byte("null"), &s); err != nil || s != nil {
		t.Errorf("Expected a nil series, got %v (%v)", s, err)
	}
	if err := json.Unmarshal([]byte(`[1,"a"]`), &s); err == nil {
		t.Error("Expected an error for a non-numeric entry")
	}
}

func TestSeriesEqual(t *testing.T) {
	if !(Series{Gap, 1}).Equal(Series{Gap, 1}) {
		t.Error("Expected gaps to compare equal")
	}
	if (Series{Gap, 1}).Equal(Series{0, 1}) {
		t.Error("Expected a gap to differ from zero")
	}
	if (Series{1}).Equal(Series{1, 2}) {
		t.Error("Expected different lengths to differ")
	}
}

// A line trace with pen lifts must encode; encoding/json rejects raw NaN.
func TestTraceWithGapsMarshals(t *testing.T) {
	tr := Trace{
		Type: ScatterTrace,
		X:    Series{0, 1, Gap, 3, 4},
		Y:    Series{0, 0, Gap, 5, 5},
		Mode: "lines",
		Line: &Line{Color: "#1f77b4", Width: 4},
	}
	data, err := json.Marshal([]Trace{tr})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"x":[0,1,null,3,4]`) {
		t.Errorf("Expected gaps as null in %s", data)
	}

	var back []Trace
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back) != 1 || !back[0].Equal(tr) {
		t.Errorf("Expected %+v, got %+v", tr, back)
	}
}
