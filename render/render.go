// Package render draws detections onto images and writes them to disk.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/nvr-ai/go-plates/images"
	"github.com/nvr-ai/go-plates/models/postprocess"
)

// goldenAngle spreads consecutive class hues around the colour wheel.
const goldenAngle = 137.50776405003785

var font *truetype.Font

// init sets up the label font.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Options controls how detections are drawn.
type Options struct {
	// LineWidth is the box outline width in pixels.
	LineWidth float64
	// FontSize is the label size in points.
	FontSize float64
}

// DefaultOptions draws 2px boxes with 14pt labels.
func DefaultOptions() Options {
	return Options{LineWidth: 2, FontSize: 14}
}

// ClassColor returns a stable, distinct colour for a class index.
func ClassColor(class int) color.RGBA {
	hue := math.Mod(float64(class)*goldenAngle, 360)
	if hue < 0 {
		hue += 360
	}
	lightness := 0.55 + 0.1*float64(((class%3)+3)%3)
	r, g, b := colorful.Hcl(hue, 0.45, lightness).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Label formats the caption drawn above a detection, e.g. "person 0.87".
func Label(name string, score float32) string {
	return fmt.Sprintf("%s %.2f", name, score)
}

// Annotate draws each detection as a class-coloured box with its label.
//
// Arguments:
//   - img: The source image. It is not modified.
//   - dets: The detections, in img's pixel space.
//   - label: Names a class index.
//   - opts: Line and font sizes.
//
// Returns:
//   - *image.RGBA: A copy of img with the detections drawn.
func Annotate(img image.Image, dets []postprocess.Result, label func(int) string, opts Options) *image.RGBA {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: opts.FontSize}))
	dc.SetLineWidth(opts.LineWidth)

	origin := img.Bounds().Min
	for _, d := range dets {
		c := ClassColor(d.Class)
		x := float64(d.Box.Left) - float64(origin.X)
		y := float64(d.Box.Top) - float64(origin.Y)

		dc.SetColor(c)
		dc.DrawRectangle(x, y, float64(d.Box.Width), float64(d.Box.Height))
		dc.Stroke()

		text := Label(label(d.Class), d.Score)
		w, h := dc.MeasureString(text)
		ty := y - h - 4
		if ty < 0 {
			ty = y
		}
		dc.DrawRectangle(x, ty, w+6, h+4)
		dc.Fill()
		dc.SetColor(color.White)
		dc.DrawStringAnchored(text, x+3, ty+2, 0, 1)
	}

	return dc.Image().(*image.RGBA)
}

// Crop returns the part of img under box, clipped to img.
func Crop(img image.Image, box images.Box) *image.NRGBA {
	r := box.Rectangle().Add(img.Bounds().Min)
	return imaging.Crop(img, r)
}

// Save writes img to path. The format follows the extension: .webp is
// encoded losslessly, everything else goes through imaging.
func Save(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", path)
		}
		if err := webp.Encode(f, img, &webp.Options{Lossless: true}); err != nil {
			f.Close()
			return errors.Wrapf(err, "failed to encode %s", path)
		}
		return f.Close()
	}

	return errors.Wrapf(imaging.Save(img, path), "failed to save %s", path)
}
