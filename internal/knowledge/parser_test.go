package knowledge

import (
	"strings"
	"testing"
)

func TestParseSections(t *testing.T) {
	content := `Arrays are everywhere.

# Arrays
An array stores items contiguously.

## Indexing
Indexes start at zero.

## Empty

# Slices
A view over an array.`

	sections := ParseSections(content)
	want := []struct {
		heading string
		level   int
	}{
		{"Introduction", 0},
		{"Arrays", 1},
		{"Indexing", 2},
		{"Slices", 1},
	}
	if len(sections) != len(want) {
		t.Fatalf("got %d sections; want %d: %+v", len(sections), len(want), sections)
	}
	for i, w := range want {
		if sections[i].Heading != w.heading || sections[i].Level != w.level {
			t.Errorf("section %d = %q/%d; want %q/%d", i, sections[i].Heading, sections[i].Level, w.heading, w.level)
		}
	}
	if sections[2].Content != "Indexes start at zero." {
		t.Errorf("content = %q", sections[2].Content)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q; want short", got)
	}

	text := "first paragraph\n\nsecond paragraph that is longer"
	if got := Truncate(text, 20); got != "first paragraph" {
		t.Errorf("Truncate() = %q; want first paragraph", got)
	}

	long := strings.Repeat("x", 50)
	got := Truncate(long, 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestNormalizeTopic(t *testing.T) {
	tests := map[string]string{
		"System Design": "system-design",
		"system_design": "system-design",
		" DSA ":         "dsa",
		"frontend":      "frontend",
	}
	for in, want := range tests {
		if got := NormalizeTopic(in); got != want {
			t.Errorf("NormalizeTopic(%q) = %q; want %q", in, got, want)
		}
	}
}
