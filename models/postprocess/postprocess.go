// Package postprocess - decodes raw single-shot detector output into results.
package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-plates/images"
)

// ErrInvalidInput is returned for malformed anchor tensors and degenerate geometry.
var ErrInvalidInput = errors.New("invalid input")

// anchor row offsets.
const (
	offsetCX = iota
	offsetCY
	offsetW
	offsetH
	offsetConf

	// minRowLen is the box plus one confidence or class column.
	minRowLen = 5
)

// Params configures a single post-processing pass.
type Params struct {
	// InputSize is the size the model was evaluated at.
	InputSize images.Size `json:"input_size" yaml:"input_size"`
	// ImageSize is the size of the original image the boxes are rescaled to.
	ImageSize images.Size `json:"image_size" yaml:"image_size"`
	// ConfidenceThreshold drops rows scoring below it before suppression.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// NMS configures the suppression pass.
	NMS NMSConfig `json:"nms" yaml:"nms"`
	// PlaceholderClass is assigned when a row carries no class scores.
	PlaceholderClass int `json:"placeholder_class" yaml:"placeholder_class"`
	// NoObjectness selects the [cx, cy, w, h, class...] layout, where the
	// confidence is the best class score. The default layout carries an
	// objectness column at offset 4.
	NoObjectness bool `json:"no_objectness" yaml:"no_objectness"`
}

// Validate checks the geometry and thresholds.
//
// Returns:
//   - error: ErrInvalidInput wrapped with the offending field, or nil.
func (p Params) Validate() error {
	if !p.InputSize.Valid() {
		return errors.Wrapf(ErrInvalidInput, "input size %s must be positive", p.InputSize)
	}
	if !p.ImageSize.Valid() {
		return errors.Wrapf(ErrInvalidInput, "image size %s must be positive", p.ImageSize)
	}
	if !(p.ConfidenceThreshold > 0 && p.ConfidenceThreshold < 1) {
		return errors.Wrapf(ErrInvalidInput, "confidence threshold %v outside (0,1)", p.ConfidenceThreshold)
	}
	if !(p.NMS.IoUThreshold > 0 && p.NMS.IoUThreshold < 1) {
		return errors.Wrapf(ErrInvalidInput, "nms threshold %v outside (0,1)", p.NMS.IoUThreshold)
	}
	return nil
}

// PostProcess turns raw per-anchor predictions into a minimal, non-overlapping
// set of labeled detections.
//
// Arguments:
//   - anchors: One row per anchor, each [cx, cy, w, h, conf, classScores...].
//   - p: Sizes and thresholds for this pass.
//
// Returns:
//   - []Result: Survivors in descending score order.
//   - error: ErrInvalidInput for an empty tensor, ragged rows or bad geometry.
//
// Example:
//
// ```go
//
//	results, err := postprocess.PostProcess(rows, postprocess.Params{
//	    InputSize:           images.Size{Width: 640, Height: 640},
//	    ImageSize:           images.Size{Width: 1280, Height: 720},
//	    ConfidenceThreshold: 0.5,
//	    NMS:                 postprocess.NMSConfig{IoUThreshold: 0.4},
//	})
//
// ```
func PostProcess(anchors [][]float32, p Params) ([]Result, error) {
	candidates, err := Decode(anchors, p)
	if err != nil {
		return nil, err
	}
	return ApplyGreedyNMS(candidates, p.NMS), nil
}

// Decode filters rows by confidence and converts the survivors to results in
// source image coordinates. Rows whose clipped box has no area are dropped.
// Results keep anchor order.
func Decode(anchors [][]float32, p Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(anchors) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "no anchors")
	}

	rowLen := len(anchors[0])
	if rowLen < minRowLen {
		return nil, errors.Wrapf(ErrInvalidInput, "anchor rows have %d values, need at least %d", rowLen, minRowLen)
	}

	scaleX := float32(p.ImageSize.Width) / float32(p.InputSize.Width)
	scaleY := float32(p.ImageSize.Height) / float32(p.InputSize.Height)

	results := make([]Result, 0, 16)
	for i, row := range anchors {
		if len(row) != rowLen {
			return nil, errors.Wrapf(ErrInvalidInput, "anchor %d has %d values, expected %d", i, len(row), rowLen)
		}

		var (
			confidence float32
			class      int
		)
		if p.NoObjectness {
			class, confidence = argmax(row[offsetConf:])
		} else {
			confidence = row[offsetConf]
			class = p.PlaceholderClass
			if rowLen > minRowLen {
				class, _ = argmax(row[minRowLen:])
			}
		}

		// Negated so NaN confidences are dropped too.
		if !(confidence >= p.ConfidenceThreshold) {
			continue
		}

		box := images.BoxFromCenter(row[offsetCX], row[offsetCY], row[offsetW], row[offsetH]).
			Scale(scaleX, scaleY).
			Clip(p.ImageSize)
		if !(box.Area() > 0) {
			continue
		}

		results = append(results, Result{Box: box, Score: confidence, Class: class})
	}

	return results, nil
}

// argmax returns the index and value of the first maximum in scores.
func argmax(scores []float32) (int, float32) {
	best, bestScore := 0, scores[0]
	for i := 1; i < len(scores); i++ {
		if scores[i] > bestScore {
			best, bestScore = i, scores[i]
		}
	}
	return best, bestScore
}
