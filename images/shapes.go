// Package images - Geometry shared by the detectors, renderers and plate log.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// String returns the size formatted as WxH.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// SizeOf returns the dimensions of an image.Rectangle.
func SizeOf(r image.Rectangle) Size {
	return Size{Width: r.Dx(), Height: r.Dy()}
}

// Box is an axis-aligned box with a top-left origin, in pixels.
//
// Coordinates are float32 so that decoded model output keeps its sub-pixel
// precision until it is drawn.
type Box struct {
	Left   float32 `json:"left" yaml:"left"`
	Top    float32 `json:"top" yaml:"top"`
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// BoxFromCenter builds a Box from a centre point and its extent.
//
// Arguments:
//   - cx, cy: The centre of the box.
//   - w, h: The width and height of the box. Negative extents are flipped.
//
// Returns:
//   - Box: The box with its origin moved to the top-left corner.
func BoxFromCenter(cx, cy, w, h float32) Box {
	w, h = math32.Abs(w), math32.Abs(h)
	return Box{Left: cx - w/2, Top: cy - h/2, Width: w, Height: h}
}

// BoxFromRectangle converts an integer image.Rectangle to a Box.
func BoxFromRectangle(r image.Rectangle) Box {
	r = r.Canon()
	return Box{
		Left:   float32(r.Min.X),
		Top:    float32(r.Min.Y),
		Width:  float32(r.Dx()),
		Height: float32(r.Dy()),
	}
}

// Right returns the exclusive right edge.
func (b Box) Right() float32 { return b.Left + b.Width }

// Bottom returns the exclusive bottom edge.
func (b Box) Bottom() float32 { return b.Top + b.Height }

// Area returns the area of the box, zero for degenerate boxes.
func (b Box) Area() float32 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Scale multiplies the box by independent x and y factors.
func (b Box) Scale(sx, sy float32) Box {
	return Box{Left: b.Left * sx, Top: b.Top * sy, Width: b.Width * sx, Height: b.Height * sy}
}

// Clip restricts the box to the [0, size) frame. A box that falls entirely
// outside the frame collapses to zero width or height.
//
// Arguments:
//   - size: The frame the box must lie within.
//
// Returns:
//   - Box: The clipped box.
func (b Box) Clip(size Size) Box {
	w, h := float32(size.Width), float32(size.Height)

	x1 := math32.Min(math32.Max(b.Left, 0), w)
	y1 := math32.Min(math32.Max(b.Top, 0), h)
	x2 := math32.Min(math32.Max(b.Right(), 0), w)
	y2 := math32.Min(math32.Max(b.Bottom(), 0), h)

	return Box{Left: x1, Top: y1, Width: x2 - x1, Height: y2 - y1}
}

// Rectangle rounds the box to an image.Rectangle for drawing and cropping.
func (b Box) Rectangle() image.Rectangle {
	return image.Rect(
		int(math32.Round(b.Left)),
		int(math32.Round(b.Top)),
		int(math32.Round(b.Right())),
		int(math32.Round(b.Bottom())),
	).Canon()
}

// IoU returns the intersection-over-union of b and o.
func (b Box) IoU(o Box) float32 {
	return CalculateIoU(b, o)
}

// String formats the box as left,top widthxheight.
func (b Box) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", b.Left, b.Top, b.Width, b.Height)
}

// CalculateIoU measures how much two boxes overlap: the area they share divided
// by the area they cover together. 1.0 means identical boxes, 0.0 means disjoint
// or touching boxes.
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
// Arguments:
//   - r: The first box.
//   - o: The other box.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example:
//
// ```go
//
//	a := Box{Left: 0, Top: 0, Width: 10, Height: 10}
//	b := Box{Left: 5, Top: 5, Width: 10, Height: 10}
//	fmt.Println(CalculateIoU(a, b)) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Box) float32 {
	ix1 := math32.Max(r.Left, o.Left)
	iy1 := math32.Max(r.Top, o.Top)
	ix2 := math32.Min(r.Right(), o.Right())
	iy2 := math32.Min(r.Bottom(), o.Bottom())

	// Disjoint or touching boxes share no area.
	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH

	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
