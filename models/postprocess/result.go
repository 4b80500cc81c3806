// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-plates/images"
)

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result in source image pixels.
	Box images.Box `json:"box" yaml:"box"`
	// The confidence score of the result.
	Score float32 `json:"score" yaml:"score"`
	// The predicted class index of the result.
	Class int `json:"class" yaml:"class"`
}

// String formats the result for log lines.
func (r Result) String() string {
	return fmt.Sprintf("class=%d score=%.2f box=%s", r.Class, r.Score, r.Box)
}
