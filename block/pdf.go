package block

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/ledongthuc/pdf"
)

// PDFProvider materializes block streams from PDF files.
//
// The underlying library exposes positioned characters but not the order of
// drawing operators across text and images, so pages are emitted in visual
// order: blocks sorted by top edge, ties by left edge. Captions in the
// report template sit directly below their image, so the forward-scan
// assumption holds for streams produced here.
type PDFProvider struct {
	// LineTolerance is the max vertical distance (points) between characters
	// grouped into one line.
	LineTolerance float64
	// BlockGap is the vertical gap (points) between lines that starts a new
	// text block.
	BlockGap float64
	// WordGap is the horizontal gap, as a fraction of font size, that
	// inserts a space between adjacent characters.
	WordGap float64
}

// NewPDFProvider returns a provider with grouping defaults that match the
// inspection report template's line spacing.
func NewPDFProvider() *PDFProvider {
	return &PDFProvider{
		LineTolerance: 2.0,
		BlockGap:      14.0,
		WordGap:       0.3,
	}
}

func (p *PDFProvider) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFProvider) Open(ctx context.Context, path string) (Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return &pdfDocument{file: f, reader: r, prov: p}, nil
}

type pdfDocument struct {
	file   *os.File
	reader *pdf.Reader
	prov   *PDFProvider
}

func (d *pdfDocument) NumPages() int { return d.reader.NumPage() }

func (d *pdfDocument) Close() error { return d.file.Close() }

// Page builds the block stream for 1-based page n.
func (d *pdfDocument) Page(n int) (page *Page, err error) {
	// The pdf library panics on malformed objects; surface that as an error
	// for the page instead of taking down the caller.
	defer func() {
		if r := recover(); r != nil {
			page, err = nil, fmt.Errorf("reading page %d: %v", n, r)
		}
	}()

	pg := d.reader.Page(n)
	if pg.V.IsNull() {
		return &Page{Number: n}, nil
	}

	height := pageHeight(pg)

	blocks := groupTextBlocks(pg.Content().Text, height, d.prov.LineTolerance, d.prov.BlockGap, d.prov.WordGap)

	images := renderedImages(pg, height)
	for _, ri := range images {
		blocks = append(blocks, ImageBlock{
			BBox:      ri.Rect,
			AssetRefs: []string{ri.AssetRef},
		})
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		bi, bj := blocks[i].Bounds(), blocks[j].Bounds()
		if bi.Y0 != bj.Y0 {
			return bi.Y0 < bj.Y0
		}
		return bi.X0 < bj.X0
	})

	return &Page{Number: n, Blocks: blocks, Images: images}, nil
}

// pageHeight returns the page height from the (possibly inherited) MediaBox,
// falling back to A4 when absent.
func pageHeight(pg pdf.Page) float64 {
	v := pg.V
	for !v.IsNull() {
		if mb := v.Key("MediaBox"); !mb.IsNull() && mb.Len() == 4 {
			if h := mb.Index(3).Float64() - mb.Index(1).Float64(); h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return 842
}

// pdfChar is the subset of pdf.Text the grouping code needs, with the
// y-coordinate already flipped to top-left origin.
type pdfChar struct {
	x, yTop, w, size float64
	s                string
}

type pdfLine struct {
	bbox BBox
	text string
}

// groupTextBlocks reconstructs text blocks from positioned characters:
// characters are folded into lines by vertical proximity, lines into blocks
// by vertical gaps. Each line becomes one span so downstream flattening
// sees the nested structure.
func groupTextBlocks(texts []pdf.Text, pageHeight, lineTol, blockGap, wordGap float64) []Block {
	if len(texts) == 0 {
		return nil
	}

	chars := make([]pdfChar, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		chars = append(chars, pdfChar{
			x:    t.X,
			yTop: pageHeight - t.Y,
			w:    t.W,
			size: t.FontSize,
			s:    t.S,
		})
	}
	if len(chars) == 0 {
		return nil
	}

	sort.SliceStable(chars, func(i, j int) bool {
		if chars[i].yTop != chars[j].yTop {
			return chars[i].yTop < chars[j].yTop
		}
		return chars[i].x < chars[j].x
	})

	lines := groupLines(chars, lineTol, wordGap)

	var blocks []Block
	var cur []pdfLine
	flush := func() {
		if len(cur) == 0 {
			return
		}
		tb := TextBlock{BBox: cur[0].bbox}
		for _, ln := range cur {
			tb.BBox = union(tb.BBox, ln.bbox)
			tb.Lines = append(tb.Lines, Line{Spans: []Span{{Text: ln.text}}})
		}
		blocks = append(blocks, tb)
		cur = nil
	}

	for _, ln := range lines {
		if len(cur) > 0 && ln.bbox.Y0-cur[len(cur)-1].bbox.Y0 > blockGap {
			flush()
		}
		cur = append(cur, ln)
	}
	flush()

	return blocks
}

// groupLines folds vertically-close characters into lines, inserting spaces
// at horizontal gaps wider than wordGap of the font size.
func groupLines(chars []pdfChar, lineTol, wordGap float64) []pdfLine {
	var lines []pdfLine
	var run []pdfChar

	flush := func() {
		if len(run) == 0 {
			return
		}
		sort.SliceStable(run, func(i, j int) bool { return run[i].x < run[j].x })

		bbox := BBox{X0: run[0].x, Y0: run[0].yTop - run[0].size, X1: run[0].x + run[0].w, Y1: run[0].yTop}
		text := run[0].s
		for i := 1; i < len(run); i++ {
			c := run[i]
			prev := run[i-1]
			gap := c.x - (prev.x + prev.w)
			size := c.size
			if size == 0 {
				size = 10
			}
			if gap > wordGap*size {
				text += " "
			}
			text += c.s
			bbox = union(bbox, BBox{X0: c.x, Y0: c.yTop - c.size, X1: c.x + c.w, Y1: c.yTop})
		}
		lines = append(lines, pdfLine{bbox: bbox, text: text})
		run = nil
	}

	for _, c := range chars {
		if len(run) > 0 && c.yTop-run[0].yTop > lineTol {
			flush()
		}
		run = append(run, c)
	}
	flush()

	return lines
}

func union(a, b BBox) BBox {
	if b.X0 < a.X0 {
		a.X0 = b.X0
	}
	if b.Y0 < a.Y0 {
		a.Y0 = b.Y0
	}
	if b.X1 > a.X1 {
		a.X1 = b.X1
	}
	if b.Y1 > a.Y1 {
		a.Y1 = b.Y1
	}
	return a
}
