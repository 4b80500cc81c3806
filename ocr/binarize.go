package ocr

import (
	"bytes"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/anthonynsimon/bild/segment"
	"github.com/pkg/errors"
)

// blurSigma is the sigma OpenCV derives for a 3x3 Gaussian kernel with sigma 0.
const blurSigma = 0.8

// Binarize converts a plate crop to black text on a white background, or the
// inverse, ready for OCR: grayscale, a light Gaussian blur, then an Otsu
// threshold.
//
// Arguments:
//   - img: The crop to binarize.
//
// Returns:
//   - *image.Gray: Pixels above the Otsu level are 255, the rest 0.
func Binarize(img image.Image) *image.Gray {
	gray := effect.Grayscale(img)
	blurred := blur.Gaussian(gray, blurSigma)

	level := OtsuLevel(blurred)
	if level == 255 {
		return image.NewGray(blurred.Bounds())
	}
	// segment.Threshold keeps values >= level; Otsu keeps values > level.
	return segment.Threshold(blurred, level+1)
}

// OtsuLevel returns the threshold that maximises the between-class variance
// of the intensity histogram of img.
//
// Arguments:
//   - img: A grayscale image. Only the red channel is counted.
//
// Returns:
//   - uint8: The level t such that pixels > t form the foreground.
func OtsuLevel(img image.Image) uint8 {
	bins := histogram.NewRGBAHistogram(img).R.Bins

	total, sum := 0, 0.0
	for i, n := range bins {
		total += n
		sum += float64(i * n)
	}
	if total == 0 {
		return 0
	}

	var (
		best     uint8
		maxVar   float64
		weightBg int
		sumBg    float64
	)
	for t := 0; t < len(bins); t++ {
		weightBg += bins[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * bins[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sum - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > maxVar {
			maxVar = between
			best = uint8(t)
		}
	}
	return best
}

// EncodePNG encodes img as PNG, the format handed to the recognizer.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}
