package model

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestFlexTimeUnmarshalVariants(t *testing.T) {
	want := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   string
	}{
		{"rfc3339", `"2026-03-02T09:30:00Z"`},
		{"rfc3339 offset", `"2026-03-02T10:30:00+01:00"`},
		{"no zone", `"2026-03-02T09:30:00"`},
		{"space separated", `"2026-03-02 09:30:00"`},
		{"epoch seconds", `1772443800`},
		{"epoch millis", `1772443800000`},
		{"epoch string", `"1772443800"`},
	}
	for _, tc := range cases {
		var f FlexTime
		if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if !f.Time().Equal(want) {
			t.Errorf("%s: parsed %v, want %v", tc.name, f.Time(), want)
		}
	}
}

func TestFlexTimeUnmarshalDateOnly(t *testing.T) {
	var f FlexTime
	if err := json.Unmarshal([]byte(`"2026-03-02"`), &f); err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !f.Time().Equal(want) {
		t.Fatalf("parsed %v, want %v", f.Time(), want)
	}
}

// Garbage timestamps coerce to now instead of failing the record.
func TestFlexTimeUnmarshalGarbageFallsBack(t *testing.T) {
	var f FlexTime
	if err := json.Unmarshal([]byte(`"three days after the field trip"`), &f); err != nil {
		t.Fatal(err)
	}
	if d := time.Since(f.Time()); d < 0 || d > time.Minute {
		t.Fatalf("fallback time %v not near now", f.Time())
	}
}

func TestFlexTimeRoundTrip(t *testing.T) {
	orig := At(time.Date(2026, 3, 2, 9, 30, 15, 250_000_000, time.UTC))
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}
	var back FlexTime
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Time().Equal(orig.Time()) {
		t.Fatalf("round trip changed %v to %v", orig.Time(), back.Time())
	}
}

func TestCoerce(t *testing.T) {
	want := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	if got := Coerce(want).Time(); !got.Equal(want) {
		t.Errorf("time.Time: %v", got)
	}
	if got := Coerce("2026-03-02T09:30:00Z").Time(); !got.Equal(want) {
		t.Errorf("string: %v", got)
	}
	if got := Coerce(int64(1772443800)).Time(); !got.Equal(want) {
		t.Errorf("int64 epoch: %v", got)
	}
	if got := Coerce(1772443800000.0).Time(); !got.Equal(want) {
		t.Errorf("float millis: %v", got)
	}
	if got := Coerce(At(want)).Time(); !got.Equal(want) {
		t.Errorf("FlexTime passthrough: %v", got)
	}
	if got := Coerce(nil); got.IsZero() {
		t.Error("nil should coerce to now, not zero")
	}
}

func TestSubjectsSortedDistinct(t *testing.T) {
	req := AnalyticsRequest{
		Emotions: []EmotionEntry{
			{ID: "1", StudentID: "beta"},
			{ID: "2", StudentID: "alpha"},
			{ID: "3", StudentID: "beta"},
			{ID: "4"},
		},
		SensoryInputs: []SensoryEntry{{ID: "5", StudentID: "gamma"}},
	}
	got := req.Subjects()
	want := []string{"alpha", "beta", "gamma"}
	if len(got) != len(want) {
		t.Fatalf("subjects = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("subjects = %v, want %v", got, want)
		}
	}
}
