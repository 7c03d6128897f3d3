package markup

import (
	"strings"
	"testing"
)

func TestSegments_RoundTrip(t *testing.T) {
	input := "[[FLOAT.terminal]] system ready.\n[tag::db] and {ctx::sys} end"
	var b strings.Builder
	for _, s := range Segments(input) {
		b.WriteString(s.Text)
	}
	if b.String() != input {
		t.Errorf("joined = %q, want %q", b.String(), input)
	}
}

func TestSegments_Kinds(t *testing.T) {
	segs := Segments("a [[Note]] b [tag::x] c {evt::input}")
	var kinds []Kind
	for _, s := range segs {
		kinds = append(kinds, s.Kind)
	}
	want := []Kind{KindText, KindLink, KindText, KindTag, KindText, KindMarker}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kind %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestSegments_PlainText(t *testing.T) {
	segs := Segments("hello world")
	if len(segs) != 1 || segs[0].Kind != KindText {
		t.Errorf("segments = %+v", segs)
	}
	if len(Segments("")) != 0 {
		t.Error("empty content should have no segments")
	}
}

func TestParse_Extraction(t *testing.T) {
	r := Parse("[[Initial Input Event]]\nsee [[Other|alias]] [[Initial Input Event]]\n[tag::db] [tag::arch] [tag::db]\n\n[marker::{evt::input}] {ctx::sys}")
	if len(r.Links) != 2 || r.Links[0] != "Initial Input Event" || r.Links[1] != "Other" {
		t.Errorf("links = %v", r.Links)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "db" || r.Tags[1] != "arch" {
		t.Errorf("tags = %v", r.Tags)
	}
	if len(r.Markers) != 2 || r.Markers[0] != "{evt::input}" || r.Markers[1] != "{ctx::sys}" {
		t.Errorf("markers = %v", r.Markers)
	}
}

func TestParse_NullMarkerIgnored(t *testing.T) {
	r := Parse("[marker::null]")
	if len(r.Markers) != 0 {
		t.Errorf("markers = %v, want none", r.Markers)
	}
}
