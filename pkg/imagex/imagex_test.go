package imagex_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/imagex"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/10+y/10)%2 == 0 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func TestDecodeRoundTrip(t *testing.T) {
	data, err := imagex.EncodePNG(checkerboard(40, 30))
	if err != nil {
		t.Fatal(err)
	}
	d, err := imagex.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Format != "png" || d.Bounds().Dx() != 40 || d.Bounds().Dy() != 30 {
		t.Fatalf("decoded %s %v", d.Format, d.Bounds())
	}

	if _, err := imagex.Decode([]byte("not an image")); !errx.HasCode(err, imagex.CodeDecodeFailed) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestCrop(t *testing.T) {
	src := checkerboard(100, 80)

	data, err := imagex.Crop(src, image.Rect(10, 0, 30, 15))
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 15 {
		t.Fatalf("crop size = %v", out.Bounds())
	}
	// (10,0) in the source is white; it must land at the crop origin.
	if r, _, _, _ := out.At(0, 0).RGBA(); r != 0xffff {
		t.Fatalf("crop origin not aligned with source region")
	}

	clamped, err := imagex.Crop(src, image.Rect(90, 70, 200, 200))
	if err != nil {
		t.Fatal(err)
	}
	out, _ = png.Decode(bytes.NewReader(clamped))
	if out.Bounds().Dx() != 10 || out.Bounds().Dy() != 10 {
		t.Fatalf("clamped size = %v", out.Bounds())
	}

	if _, err := imagex.Crop(src, image.Rect(200, 200, 300, 300)); !errx.HasCode(err, imagex.CodeEmptyRegion) {
		t.Fatalf("expected empty region error, got %v", err)
	}
}

func TestFit(t *testing.T) {
	src := checkerboard(400, 200)
	if got := imagex.Fit(src, 0); got != image.Image(src) {
		t.Fatal("Fit with no limit changed the image")
	}
	b := imagex.Fit(src, 100).Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("fit bounds = %v", b)
	}
}
