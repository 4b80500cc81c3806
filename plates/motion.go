package plates

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// motionThreshold binarises the MOG2 foreground mask. Shadows are marked 127
// by MOG2 and count as motion.
const motionThreshold = 25

// MotionDetector reports whether a frame differs from the learned background.
// It keeps a MOG2 background model across frames, so one detector serves one
// stream.
type MotionDetector struct {
	subtractor gocv.BackgroundSubtractorMOG2
	delta      gocv.Mat
	mask       gocv.Mat
	kernel     gocv.Mat
	minArea    float64
}

// NewMotionDetector creates a detector that reports motion when any
// foreground blob covers at least minArea pixels.
func NewMotionDetector(minArea float64) *MotionDetector {
	return &MotionDetector{
		subtractor: gocv.NewBackgroundSubtractorMOG2(),
		delta:      gocv.NewMat(),
		mask:       gocv.NewMat(),
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		minArea:    minArea,
	}
}

// Moving updates the background model with frame and reports whether it
// contains motion: background subtraction, threshold, dilation, then the
// area of each external contour.
func (m *MotionDetector) Moving(frame gocv.Mat) (bool, error) {
	if frame.Empty() {
		return false, errors.New("empty frame")
	}
	if err := m.subtractor.Apply(frame, &m.delta); err != nil {
		return false, errors.Wrap(err, "background subtraction failed")
	}
	gocv.Threshold(m.delta, &m.mask, motionThreshold, 255, gocv.ThresholdBinary)
	if err := gocv.Dilate(m.mask, &m.mask, m.kernel); err != nil {
		return false, errors.Wrap(err, "dilation failed")
	}

	contours := gocv.FindContours(m.mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) >= m.minArea {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the background model and buffers.
func (m *MotionDetector) Close() error {
	m.delta.Close()
	m.mask.Close()
	m.kernel.Close()
	return m.subtractor.Close()
}
