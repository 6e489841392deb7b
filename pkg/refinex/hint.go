package refinex

import (
	"image"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultMinArea is the bounding-box area, in px², below which a hint is
// treated as an accidental click rather than a region.
const DefaultMinArea = 4.0

// Point is a pixel coordinate on the source image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Area() float64 { return r.Width * r.Height }

// Hint is a user-drawn region tied to one field label. Geometry is either a
// free-form stroke (Points) or a stored rectangle; Points win when both are
// set.
type Hint struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Points []Point `json:"points,omitempty"`
	Rect   *Rect   `json:"rect,omitempty"`
}

// TrimmedLabel is the label hints participate under.
func (h Hint) TrimmedLabel() string { return strings.TrimSpace(h.Label) }

// Labeled reports whether the hint names a field.
func (h Hint) Labeled() bool { return h.TrimmedLabel() != "" }

// Bounds returns the bounding box of the hint geometry. ok is false when the
// hint carries no geometry at all.
func (h Hint) Bounds() (Rect, bool) {
	if len(h.Points) > 0 {
		minX, minY := h.Points[0].X, h.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range h.Points[1:] {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
		return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
	}
	if h.Rect != nil {
		r := *h.Rect
		if r.Width < 0 {
			r.X, r.Width = r.X+r.Width, -r.Width
		}
		if r.Height < 0 {
			r.Y, r.Height = r.Y+r.Height, -r.Height
		}
		return r, true
	}
	return Rect{}, false
}

// Degenerate reports whether the hint's bounding box is smaller than
// minArea. A zero-width line is degenerate regardless of its length.
func (h Hint) Degenerate(minArea float64) bool {
	b, ok := h.Bounds()
	if !ok || b.Width <= 0 || b.Height <= 0 {
		return true
	}
	return b.Area() < minArea
}

// Active reports whether the hint takes part in refinement.
func (h Hint) Active(minArea float64) bool {
	return h.Labeled() && !h.Degenerate(minArea)
}

// Signature identifies the hint's label and geometry. Two hints with the
// same signature produce the same refinement.
func (h Hint) Signature() string {
	var b strings.Builder
	b.WriteString(h.ID)
	b.WriteByte(':')
	b.WriteString(h.TrimmedLabel())
	b.WriteByte(':')
	switch {
	case len(h.Points) > 0:
		b.WriteString("p")
		for _, p := range h.Points {
			b.WriteByte(';')
			b.WriteString(num(p.X))
			b.WriteByte(',')
			b.WriteString(num(p.Y))
		}
	case h.Rect != nil:
		b.WriteString("r;")
		b.WriteString(strings.Join([]string{num(h.Rect.X), num(h.Rect.Y), num(h.Rect.Width), num(h.Rect.Height)}, ","))
	}
	return b.String()
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// SetSignature is the sorted, joined signature of every active hint.
func SetSignature(hints []Hint, minArea float64) string {
	sigs := make([]string, 0, len(hints))
	for _, h := range hints {
		if h.Active(minArea) {
			sigs = append(sigs, h.Signature())
		}
	}
	sort.Strings(sigs)
	return strings.Join(sigs, "|")
}

// PaddedRegion grows b by frac of its width and height on every side, snaps
// outward to whole pixels and clamps the result to bounds. The returned
// rectangle may be empty.
func PaddedRegion(b Rect, frac float64, bounds image.Rectangle) image.Rectangle {
	padX, padY := b.Width*frac, b.Height*frac
	r := image.Rect(
		int(math.Floor(b.X-padX)),
		int(math.Floor(b.Y-padY)),
		int(math.Ceil(b.X+b.Width+padX)),
		int(math.Ceil(b.Y+b.Height+padY)),
	)
	return r.Intersect(bounds)
}
