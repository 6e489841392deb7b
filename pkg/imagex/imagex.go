// Package imagex decodes uploaded document images and renders rectangular
// sub-regions of them as PNG for targeted extraction.
package imagex

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/Abraxas-365/docfill/pkg/errx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// PNGMime is the MIME type of every rendered crop.
const PNGMime = "image/png"

var imageErrors = errx.NewRegistry("IMAGE")

var (
	CodeDecodeFailed = imageErrors.Register("DECODE_FAILED", errx.TypeValidation, 400, "Unsupported or corrupt image")
	CodeEmptyRegion  = imageErrors.Register("EMPTY_REGION", errx.TypeValidation, 400, "Crop region does not overlap the image")
	CodeEncodeFailed = imageErrors.Register("ENCODE_FAILED", errx.TypeInternal, 500, "Failed to encode image")
)

// Decoded is a source image decoded once and shared read-only.
type Decoded struct {
	Image  image.Image
	Format string
}

// Bounds returns the image bounds.
func (d *Decoded) Bounds() image.Rectangle { return d.Image.Bounds() }

// Decode parses png, jpeg, gif, webp, bmp or tiff data.
func Decode(data []byte) (*Decoded, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imageErrors.NewWithCause(CodeDecodeFailed, err)
	}
	return &Decoded{Image: img, Format: format}, nil
}

// Crop copies the part of img inside rect into a new image and encodes it as
// PNG. rect is intersected with the image bounds first.
func Crop(img image.Image, rect image.Rectangle) ([]byte, error) {
	region := rect.Intersect(img.Bounds())
	if region.Empty() {
		return nil, imageErrors.New(CodeEmptyRegion).
			WithDetail("rect", rect.String()).
			WithDetail("bounds", img.Bounds().String())
	}

	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(dst, dst.Bounds(), img, region.Min, draw.Src)
	return EncodePNG(dst)
}

// Fit scales img down so that neither side exceeds maxSide. Images already
// within bounds, or a non-positive maxSide, return img unchanged.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	if w >= h {
		h = h * maxSide / w
		w = maxSide
	} else {
		w = w * maxSide / h
		h = maxSide
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, imageErrors.NewWithCause(CodeEncodeFailed, err)
	}
	return buf.Bytes(), nil
}
