package extract

import (
	"testing"

	"github.com/fieldaudit/defectscan/block"
)

// ---------------------------------------------------------------------------
// Candidate selection
// ---------------------------------------------------------------------------

func TestSelectCandidatesStreamOrder(t *testing.T) {
	e := newTestExtractor(t, nil) // stream order, skip 1
	page := &block.Page{Blocks: []block.Block{
		ib(block.BBox{Y0: 10}), // header image, skipped
		tb("text"),
		ib(block.BBox{Y0: 200}),
		ib(block.BBox{Y0: 400}),
	}}

	cands := e.selectCandidates(page)
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].StreamIndex != 2 || cands[1].StreamIndex != 3 {
		t.Fatalf("unexpected stream indexes %d, %d", cands[0].StreamIndex, cands[1].StreamIndex)
	}
}

func TestSelectCandidatesVisualOrder(t *testing.T) {
	e := newTestExtractor(t, func(c *Config) { c.Order = OrderVisual })
	// Stream order disagrees with top-to-bottom order: the page's topmost
	// image is painted last.
	page := &block.Page{Blocks: []block.Block{
		ib(block.BBox{Y0: 500}),
		ib(block.BBox{Y0: 300}),
		ib(block.BBox{Y0: 10}),
	}}

	cands := e.selectCandidates(page)
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	// Topmost (stream index 2) is skipped; remaining follow top edge order.
	if cands[0].StreamIndex != 1 || cands[1].StreamIndex != 0 {
		t.Fatalf("unexpected stream indexes %d, %d", cands[0].StreamIndex, cands[1].StreamIndex)
	}
}

func TestSelectCandidatesVisualTieKeepsStreamOrder(t *testing.T) {
	e := newTestExtractor(t, func(c *Config) {
		c.Order = OrderVisual
		c.SkipLeading = 0
	})
	page := &block.Page{Blocks: []block.Block{
		ib(block.BBox{Y0: 100, X0: 300}),
		ib(block.BBox{Y0: 100, X0: 50}),
	}}

	cands := e.selectCandidates(page)
	if cands[0].StreamIndex != 0 || cands[1].StreamIndex != 1 {
		t.Fatal("expected stable ordering for equal top edges")
	}
}

func TestSelectCandidatesTooFewImages(t *testing.T) {
	e := newTestExtractor(t, nil) // skip 1
	page := &block.Page{Blocks: []block.Block{
		tb("text"),
		ib(block.BBox{}),
	}}

	if cands := e.selectCandidates(page); cands != nil {
		t.Fatalf("expected no candidates, got %d", len(cands))
	}
}

func TestSelectCandidatesSkipZero(t *testing.T) {
	e := newTestExtractor(t, func(c *Config) { c.SkipLeading = 0 })
	page := &block.Page{Blocks: []block.Block{ib(block.BBox{})}}

	if cands := e.selectCandidates(page); len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
}

// ---------------------------------------------------------------------------
// Rendered image resolution
// ---------------------------------------------------------------------------

func TestResolveRenderedDirectRef(t *testing.T) {
	images := []block.RenderedImage{
		{AssetRef: "Im1#0", Ext: "jpg"},
		{AssetRef: "Im2#0", Ext: "png"},
	}
	cand := Candidate{Block: block.ImageBlock{AssetRefs: []string{"Im2#0"}}}

	claimed := make(map[int]bool)
	img, ok := resolveRendered(cand, images, claimed)
	if !ok || img.AssetRef != "Im2#0" {
		t.Fatalf("expected direct match on Im2#0, got %+v (ok=%v)", img, ok)
	}
	if !claimed[1] {
		t.Fatal("direct match must claim its image")
	}
}

func TestResolveRenderedNearestCentroid(t *testing.T) {
	images := []block.RenderedImage{
		{AssetRef: "far", Rect: block.BBox{X0: 400, Y0: 400, X1: 500, Y1: 500}},
		{AssetRef: "near", Rect: block.BBox{X0: 90, Y0: 95, X1: 110, Y1: 115}},
	}
	cand := Candidate{Block: block.ImageBlock{BBox: block.BBox{X0: 95, Y0: 100, X1: 105, Y1: 110}}}

	img, ok := resolveRendered(cand, images, make(map[int]bool))
	if !ok || img.AssetRef != "near" {
		t.Fatalf("expected nearest image, got %+v (ok=%v)", img, ok)
	}
}

func TestResolveRenderedClaimedExclusivity(t *testing.T) {
	// Both candidates are nearest the same image; the second must take the
	// remaining one.
	images := []block.RenderedImage{
		{AssetRef: "a", Rect: block.BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}},
		{AssetRef: "b", Rect: block.BBox{X0: 0, Y0: 100, X1: 10, Y1: 110}},
	}
	c1 := Candidate{Block: block.ImageBlock{BBox: block.BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}}}
	c2 := Candidate{Block: block.ImageBlock{BBox: block.BBox{X0: 0, Y0: 5, X1: 10, Y1: 15}}}

	claimed := make(map[int]bool)
	first, ok := resolveRendered(c1, images, claimed)
	if !ok || first.AssetRef != "a" {
		t.Fatalf("first candidate: got %+v (ok=%v)", first, ok)
	}
	second, ok := resolveRendered(c2, images, claimed)
	if !ok || second.AssetRef != "b" {
		t.Fatalf("second candidate: got %+v (ok=%v)", second, ok)
	}
}

func TestResolveRenderedExhaustedPool(t *testing.T) {
	images := []block.RenderedImage{{AssetRef: "only"}}
	cand := Candidate{Block: block.ImageBlock{}}

	claimed := map[int]bool{0: true}
	if _, ok := resolveRendered(cand, images, claimed); ok {
		t.Fatal("expected no resolution when all images are claimed")
	}
}

func TestResolveRenderedNoImages(t *testing.T) {
	if _, ok := resolveRendered(Candidate{}, nil, make(map[int]bool)); ok {
		t.Fatal("expected no resolution for empty image set")
	}
}
