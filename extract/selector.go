package extract

import (
	"math"
	"sort"

	"github.com/fieldaudit/defectscan/block"
)

// Candidate is an image block eligible for caption association.
// StreamIndex is its position in the page's content-stream block order,
// which is where the caption window scan starts regardless of the ordering
// policy used for selection.
type Candidate struct {
	StreamIndex int
	Block       block.ImageBlock
}

// selectCandidates collects the page's image blocks in policy order and
// drops the first SkipLeading of them.
func (e *Extractor) selectCandidates(page *block.Page) []Candidate {
	var cands []Candidate
	for i, b := range page.Blocks {
		if ib, ok := b.(block.ImageBlock); ok {
			cands = append(cands, Candidate{StreamIndex: i, Block: ib})
		}
	}

	if e.cfg.Order == OrderVisual {
		// "First" means topmost, not first-in-stream. Stable sort keeps
		// stream order for blocks sharing a top edge.
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Block.BBox.Y0 < cands[j].Block.BBox.Y0
		})
	}

	if len(cands) <= e.cfg.SkipLeading {
		return nil
	}
	return cands[e.cfg.SkipLeading:]
}

// resolveRendered associates a candidate with a rendered image. Direct
// asset references win; otherwise the unclaimed rendered image whose
// placement centroid is nearest the candidate centroid is chosen, ties
// broken by encounter order. claimed is threaded across candidates of one
// page so two candidates never map to the same rendered image.
func resolveRendered(cand Candidate, images []block.RenderedImage, claimed map[int]bool) (*block.RenderedImage, bool) {
	if len(images) == 0 {
		return nil, false
	}

	for _, ref := range cand.Block.AssetRefs {
		for i := range images {
			if images[i].AssetRef == ref {
				claimed[i] = true
				return &images[i], true
			}
		}
	}

	cx, cy := cand.Block.BBox.Centroid()
	best := -1
	bestDist := math.Inf(1)
	for i := range images {
		if claimed[i] {
			continue
		}
		ix, iy := images[i].Rect.Centroid()
		if d := math.Hypot(ix-cx, iy-cy); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, false
	}
	claimed[best] = true
	return &images[best], true
}
