package plates

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrCascadeNotLoaded is returned when the cascade file is missing or invalid.
var ErrCascadeNotLoaded = errors.New("cascade not loaded")

// Detector finds plate rectangles with a Haar cascade.
type Detector struct {
	classifier gocv.CascadeClassifier
	cfg        Config
}

// NewDetector loads cfg.CascadePath.
//
// Arguments:
//   - cfg: The plate configuration.
//
// Returns:
//   - *Detector: The detector. Close releases the classifier.
//   - error: ErrCascadeNotLoaded if the cascade cannot be read.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, errors.Wrapf(ErrCascadeNotLoaded, "error reading cascade file: %s", cfg.CascadePath)
	}
	return &Detector{classifier: classifier, cfg: cfg}, nil
}

// Detect returns the plate rectangles in frame, clipped to the frame.
func (d *Detector) Detect(frame gocv.Mat) []image.Rectangle {
	if frame.Empty() {
		return nil
	}

	minSize := image.Pt(d.cfg.MinSize.Width, d.cfg.MinSize.Height)
	rects := d.classifier.DetectMultiScaleWithParams(frame, d.cfg.ScaleFactor, d.cfg.MinNeighbors, 0, minSize, image.Point{})

	return ClipRects(rects, image.Rect(0, 0, frame.Cols(), frame.Rows()))
}

// Close releases the classifier.
func (d *Detector) Close() error {
	return d.classifier.Close()
}

// ClipRects intersects each rectangle with bounds and drops the empty ones.
func ClipRects(rects []image.Rectangle, bounds image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rects))
	for _, r := range rects {
		r = r.Canon().Intersect(bounds)
		if r.Empty() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Preprocess converts a BGR plate crop to a binary image for OCR: grayscale,
// a 3x3 Gaussian blur, then an Otsu threshold.
//
// Arguments:
//   - crop: A BGR or single-channel crop.
//
// Returns:
//   - gocv.Mat: The binary image. The caller must Close it.
//   - error: An error if crop is empty.
func Preprocess(crop gocv.Mat) (gocv.Mat, error) {
	if crop.Empty() {
		return gocv.NewMat(), errors.New("empty crop")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if crop.Channels() == 1 {
		crop.CopyTo(&gray)
	} else {
		gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	out := gocv.NewMat()
	gocv.Threshold(blurred, &out, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return out, nil
}
