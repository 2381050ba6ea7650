package block

import "testing"

func TestFlattenJoinsSpansAndLines(t *testing.T) {
	tb := TextBlock{Lines: []Line{
		{Spans: []Span{{Text: "Defect"}, {Text: "Code:"}}},
		{Spans: []Span{{Text: "17"}}},
	}}
	if got := Flatten(tb); got != "Defect Code: 17" {
		t.Fatalf("Flatten = %q", got)
	}
}

func TestFlattenNormalizesWhitespace(t *testing.T) {
	tb := TextBlock{Lines: []Line{
		{Spans: []Span{{Text: "  Cracked \t flange  "}, {Text: " Defect\n"}}},
	}}
	if got := Flatten(tb); got != "Cracked flange Defect" {
		t.Fatalf("Flatten = %q", got)
	}
}

func TestFlattenMalformedBlock(t *testing.T) {
	for _, tb := range []TextBlock{
		{},
		{Lines: []Line{{}}},
		{Lines: []Line{{Spans: []Span{{Text: "   "}}}}},
	} {
		if got := Flatten(tb); got != "" {
			t.Fatalf("expected empty flatten, got %q", got)
		}
	}
}

func TestCentroid(t *testing.T) {
	x, y := (BBox{X0: 10, Y0: 20, X1: 30, Y1: 60}).Centroid()
	if x != 20 || y != 40 {
		t.Fatalf("centroid = (%v, %v)", x, y)
	}
}
