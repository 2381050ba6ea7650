package extract

import (
	"testing"

	"github.com/fieldaudit/defectscan/block"
)

func TestCaptionWindowCollectsTextBlocks(t *testing.T) {
	blocks := []block.Block{
		ib(block.BBox{}),
		tb("one"), tb("two"), tb("three"),
	}

	win, ok := captionWindow(blocks, 0, 3)
	if !ok {
		t.Fatal("expected full window")
	}
	want := []string{"one", "two", "three"}
	for i := range want {
		if win[i] != want[i] {
			t.Fatalf("window[%d] = %q, want %q", i, win[i], want[i])
		}
	}
}

func TestCaptionWindowSkipsImagesAndEmptyText(t *testing.T) {
	blocks := []block.Block{
		ib(block.BBox{}),
		tb("one"),
		ib(block.BBox{}),              // image, does not count
		block.TextBlock{},             // no lines, flattens empty
		tb("   "),                     // whitespace only, flattens empty
		tb("two"),
		tb("three"),
	}

	win, ok := captionWindow(blocks, 0, 3)
	if !ok {
		t.Fatalf("expected full window, got %d blocks", len(win))
	}
	if win[0] != "one" || win[1] != "two" || win[2] != "three" {
		t.Fatalf("unexpected window %v", win)
	}
}

func TestCaptionWindowShortStream(t *testing.T) {
	blocks := []block.Block{
		ib(block.BBox{}),
		tb("one"), tb("two"),
	}

	win, ok := captionWindow(blocks, 0, 6)
	if ok {
		t.Fatal("expected short window")
	}
	if len(win) != 2 {
		t.Fatalf("expected 2 partial blocks, got %d", len(win))
	}
}

func TestCaptionWindowStartsAfterCandidate(t *testing.T) {
	blocks := []block.Block{
		tb("before"), // must not be collected
		ib(block.BBox{}),
		tb("after"),
	}

	win, ok := captionWindow(blocks, 1, 1)
	if !ok || win[0] != "after" {
		t.Fatalf("expected [after], got %v (ok=%v)", win, ok)
	}
}

func TestCaptionWindowAtEndOfStream(t *testing.T) {
	blocks := []block.Block{tb("only"), ib(block.BBox{})}

	win, ok := captionWindow(blocks, 1, 6)
	if ok || len(win) != 0 {
		t.Fatalf("expected empty short window, got %v (ok=%v)", win, ok)
	}
}
