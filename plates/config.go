// Package plates detects licence plates in video frames with a Haar cascade
// and reads them with OCR.
package plates

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-plates/images"
)

// Config configures plate detection and what happens to each plate found.
type Config struct {
	// CascadePath is the Haar cascade XML file.
	CascadePath string `json:"cascade_path" yaml:"cascade_path"`
	// ScaleFactor is how much the image shrinks at each cascade scale.
	ScaleFactor float64 `json:"scale_factor" yaml:"scale_factor"`
	// MinNeighbors is how many neighbouring hits a candidate needs to be kept.
	MinNeighbors int `json:"min_neighbors" yaml:"min_neighbors"`
	// MinSize is the smallest plate considered. Zero means no limit.
	MinSize images.Size `json:"min_size" yaml:"min_size"`
	// CropDir receives <i>.png plate crops when SaveCrops is set.
	CropDir string `json:"crop_dir" yaml:"crop_dir"`
	// SaveCrops writes each plate crop to CropDir.
	SaveCrops bool `json:"save_crops" yaml:"save_crops"`
	// DrawLabels draws the box and text onto the frame.
	DrawLabels bool `json:"draw_labels" yaml:"draw_labels"`
	// SkipEmpty keeps reads with no text out of the log.
	SkipEmpty bool `json:"skip_empty" yaml:"skip_empty"`
	// DedupWindow keeps repeats of the same text out of the log. Zero disables it.
	DedupWindow time.Duration `json:"dedup_window" yaml:"dedup_window"`
	// MotionMinArea skips plate detection on frames without a moving blob of
	// at least this many pixels. Zero disables motion gating.
	MotionMinArea float64 `json:"motion_min_area" yaml:"motion_min_area"`
}

// DefaultConfig returns the settings of the original webcam detector.
func DefaultConfig() Config {
	return Config{
		CascadePath:  "Resources/haarcascade_russian_plate_number.xml",
		ScaleFactor:  1.1,
		MinNeighbors: 10,
		CropDir:      "Resources/Plates",
		SaveCrops:    true,
		DrawLabels:   true,
		SkipEmpty:    true,
		DedupWindow:  2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CascadePath == "" {
		return errors.New("cascade path is required")
	}
	if c.ScaleFactor <= 1 {
		return errors.Errorf("scale factor must be greater than 1, got %v", c.ScaleFactor)
	}
	if c.MinNeighbors < 0 {
		return errors.Errorf("min neighbors must not be negative, got %d", c.MinNeighbors)
	}
	if c.MinSize.Width < 0 || c.MinSize.Height < 0 {
		return errors.Errorf("min size must not be negative, got %s", c.MinSize)
	}
	if c.SaveCrops && c.CropDir == "" {
		return errors.New("crop dir is required when saving crops")
	}
	if c.MotionMinArea < 0 {
		return errors.Errorf("motion min area must not be negative, got %v", c.MotionMinArea)
	}
	if c.DedupWindow < 0 {
		return errors.Errorf("dedup window must not be negative, got %s", c.DedupWindow)
	}
	return nil
}
