package extract

import "github.com/fieldaudit/defectscan/block"

// captionWindow scans forward from the block after position start, in
// content-stream order, collecting size non-empty text-block strings.
// Image blocks and text blocks that normalize to empty are skipped and do
// not count. Returns ok=false (a short window, never an error) when the
// stream is exhausted first; captions always follow their image in the
// content stream even when images are visually reordered.
func captionWindow(blocks []block.Block, start, size int) ([]string, bool) {
	var win []string
	for i := start + 1; i < len(blocks) && len(win) < size; i++ {
		switch b := blocks[i].(type) {
		case block.TextBlock:
			if s := block.Flatten(b); s != "" {
				win = append(win, s)
			}
		case block.ImageBlock:
			// skipped, does not break the window
		}
	}
	return win, len(win) == size
}
