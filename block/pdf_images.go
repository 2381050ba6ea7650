package block

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// imageAsset is a decoded page image resource.
type imageAsset struct {
	data []byte
	ext  string
}

// renderedImages extracts the page's image XObjects and pairs each drawing
// of one with its placement rectangle from the content stream. An asset
// drawn twice yields two RenderedImages with distinct AssetRefs.
func renderedImages(pg pdf.Page, pageHeight float64) []RenderedImage {
	assets := pageImageAssets(pg)
	if len(assets) == 0 {
		return nil
	}

	var images []RenderedImage
	seen := map[string]int{}
	for _, pl := range imagePlacements(pg, pageHeight) {
		a, ok := assets[pl.name]
		if !ok {
			continue // form XObject or undecodable image
		}
		ref := fmt.Sprintf("%s#%d", pl.name, seen[pl.name])
		seen[pl.name]++
		images = append(images, RenderedImage{
			AssetRef: ref,
			Rect:     pl.rect,
			Data:     a.data,
			Ext:      a.ext,
		})
	}

	// Assets never drawn by a Do operator (e.g. referenced from an
	// unparsed form) still belong to the page's asset pool so spatial
	// matching has something to claim.
	if len(images) == 0 {
		for name, a := range assets {
			images = append(images, RenderedImage{
				AssetRef: name + "#0",
				Data:     a.data,
				Ext:      a.ext,
			})
		}
	}

	return images
}

// pageImageAssets decodes the image XObjects in the page resources.
func pageImageAssets(pg pdf.Page) map[string]imageAsset {
	xobj := pg.V.Key("Resources").Key("XObject")
	if xobj.IsNull() {
		return nil
	}

	assets := make(map[string]imageAsset)
	for _, name := range xobj.Keys() {
		v := xobj.Key(name)
		if v.Key("Subtype").Name() != "Image" {
			continue
		}
		a, ok := decodeImageXObject(v)
		if !ok {
			slog.Debug("pdf: skipping undecodable image", "name", name,
				"filter", filterName(v))
			continue
		}
		assets[name] = a
	}
	return assets
}

// decodeImageXObject reads an image stream and maps it to (bytes, ext).
// DCT/JPX streams are self-contained codec data; Flate streams carry raw
// samples and are re-encoded as PNG when the pixel layout is one we handle.
func decodeImageXObject(v pdf.Value) (imageAsset, bool) {
	switch filterName(v) {
	case "DCTDecode":
		data, ok := readStream(v)
		if !ok {
			return imageAsset{}, false
		}
		return imageAsset{data: data, ext: "jpg"}, true
	case "JPXDecode":
		data, ok := readStream(v)
		if !ok {
			return imageAsset{}, false
		}
		return imageAsset{data: data, ext: "jp2"}, true
	default:
		data, ok := readStream(v)
		if !ok {
			return imageAsset{}, false
		}
		encoded, ok := encodeRawSamples(v, data)
		if !ok {
			return imageAsset{}, false
		}
		return imageAsset{data: encoded, ext: "png"}, true
	}
}

// filterName returns the (last) stream filter name, or "".
func filterName(v pdf.Value) string {
	f := v.Key("Filter")
	switch f.Kind() {
	case pdf.Name:
		return f.Name()
	case pdf.Array:
		if n := f.Len(); n > 0 {
			return f.Index(n - 1).Name()
		}
	}
	return ""
}

// readStream reads decoded stream content. The pdf library panics on
// filters it does not implement; treat that as an undecodable stream.
func readStream(v pdf.Value) (data []byte, ok bool) {
	defer func() {
		if recover() != nil {
			data, ok = nil, false
		}
	}()

	rc := v.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// encodeRawSamples converts 8-bit gray or RGB sample data to PNG.
func encodeRawSamples(v pdf.Value, data []byte) ([]byte, bool) {
	w := int(v.Key("Width").Int64())
	h := int(v.Key("Height").Int64())
	bpc := int(v.Key("BitsPerComponent").Int64())
	if w <= 0 || h <= 0 || bpc != 8 {
		return nil, false
	}

	var img image.Image
	switch v.Key("ColorSpace").Name() {
	case "DeviceGray":
		if len(data) < w*h {
			return nil, false
		}
		g := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			copy(g.Pix[y*g.Stride:], data[y*w:(y+1)*w])
		}
		img = g
	case "DeviceRGB":
		if len(data) < w*h*3 {
			return nil, false
		}
		rgb := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * 3
				rgb.Set(x, y, color.RGBA{R: data[i], G: data[i+1], B: data[i+2], A: 255})
			}
		}
		img = rgb
	default:
		return nil, false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

// placement is one drawing of a named XObject.
type placement struct {
	name string
	rect BBox
}

// imagePlacements walks the page content streams tracking the transformation
// matrix and records the placement rectangle of every XObject invocation.
func imagePlacements(pg pdf.Page, pageHeight float64) []placement {
	var placements []placement
	for _, data := range contentStreams(pg) {
		placements = append(placements, scanPlacements(data, pageHeight)...)
	}
	return placements
}

func contentStreams(pg pdf.Page) [][]byte {
	contents := pg.V.Key("Contents")
	var streams [][]byte
	switch contents.Kind() {
	case pdf.Stream:
		if data, ok := readStream(contents); ok {
			streams = append(streams, data)
		}
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			if data, ok := readStream(contents.Index(i)); ok {
				streams = append(streams, data)
			}
		}
	}
	return streams
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func mul(m, n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// scanPlacements runs a minimal interpreter over one content stream: only
// q/Q/cm and named Do operators matter. Images are drawn in the unit
// square, so the CTM translation and scale give the placement rectangle.
func scanPlacements(data []byte, pageHeight float64) []placement {
	var (
		placements []placement
		ctm        = identity
		stack      []matrix
		operands   []float64
		lastName   string
	)

	for _, tok := range strings.Fields(string(data)) {
		if strings.HasPrefix(tok, "/") {
			lastName = strings.TrimPrefix(tok, "/")
			operands = operands[:0]
			continue
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			operands = append(operands, f)
			continue
		}

		switch tok {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if len(operands) >= 6 {
				o := operands[len(operands)-6:]
				ctm = mul(matrix{o[0], o[1], o[2], o[3], o[4], o[5]}, ctm)
			}
		case "Do":
			if lastName != "" {
				placements = append(placements, placement{
					name: lastName,
					rect: placementRect(ctm, pageHeight),
				})
			}
		}
		operands = operands[:0]
		lastName = ""
	}

	return placements
}

// placementRect maps the CTM-transformed unit square to a top-left-origin
// bounding box.
func placementRect(ctm matrix, pageHeight float64) BBox {
	x := ctm[4]
	y := ctm[5]
	w := math.Hypot(ctm[0], ctm[1])
	h := math.Hypot(ctm[2], ctm[3])
	return BBox{
		X0: x,
		Y0: pageHeight - (y + h),
		X1: x + w,
		Y1: pageHeight - y,
	}
}
