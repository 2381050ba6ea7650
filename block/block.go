// Package block defines the page/block stream model the extraction engine
// consumes, and providers that produce it from real documents.
//
// Coordinates use a top-left origin: y grows downward, so the "topmost"
// block on a page is the one with the smallest Y0. Providers working in
// PDF user space (bottom-left origin) convert before emitting blocks.
package block

import "context"

// BBox is an axis-aligned bounding box (x0,y0 top-left, x1,y1 bottom-right).
type BBox struct {
	X0, Y0, X1, Y1 float64
}

// Centroid returns the center point of the box.
func (b BBox) Centroid() (x, y float64) {
	return (b.X0 + b.X1) / 2, (b.Y0 + b.Y1) / 2
}

// Span is a plain-text fragment within a line.
type Span struct {
	Text string
}

// Line is an ordered sequence of spans.
type Line struct {
	Spans []Span
}

// Block is a typed region of a page. The only implementations are TextBlock
// and ImageBlock; a type switch over Block is exhaustive.
type Block interface {
	Bounds() BBox
	block()
}

// TextBlock is a text region carrying nested line/span structure.
// A block with no lines or spans normalizes to empty text; it is never a
// hard failure.
type TextBlock struct {
	BBox  BBox
	Lines []Line
}

func (t TextBlock) Bounds() BBox { return t.BBox }
func (t TextBlock) block()       {}

// ImageBlock is an image region. AssetRefs names the embedded image assets
// the block directly references, matching RenderedImage.AssetRef; it may be
// empty, in which case the asset is resolved spatially.
type ImageBlock struct {
	BBox      BBox
	AssetRefs []string
}

func (i ImageBlock) Bounds() BBox { return i.BBox }
func (i ImageBlock) block()       {}

// RenderedImage is an embedded image asset as actually painted on the page:
// its placement rectangle, byte payload, and format extension (without dot).
type RenderedImage struct {
	AssetRef string
	Rect     BBox
	Data     []byte
	Ext      string
}

// Page is an ordered sequence of blocks plus the set of images rendered on
// it. Block order reflects content-stream order, which is not guaranteed to
// be visual order. Number is 1-based.
type Page struct {
	Number int
	Blocks []Block
	Images []RenderedImage
}

// Document is an open document yielding pages.
type Document interface {
	// NumPages returns the page count.
	NumPages() int
	// Page returns the 1-based page n.
	Page(n int) (*Page, error)
	Close() error
}

// Provider opens documents and materializes their block streams.
type Provider interface {
	Open(ctx context.Context, path string) (Document, error)
	SupportedFormats() []string
}
