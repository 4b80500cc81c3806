// Package yolov8 - YOLO-style single-shot detector adapter.
package yolov8

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-plates/images"
	"github.com/nvr-ai/go-plates/models"
	"github.com/nvr-ai/go-plates/models/postprocess"
)

// Options is the options for the YOLOv8 model.
type Options struct {
	// InputShape is the width and height the network is evaluated at.
	InputShape images.Size `json:"input_shape" yaml:"input_shape"`
	// Layout is the axis order of the raw output tensor.
	Layout postprocess.Layout `json:"layout" yaml:"layout"`
	// NoObjectness is set for exports without an objectness column.
	NoObjectness bool `json:"no_objectness" yaml:"no_objectness"`
	// ConfidenceThreshold drops candidates below it.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// NMS configures suppression.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
	// PlaceholderClass is used for rows without class scores.
	PlaceholderClass int `json:"placeholder_class" yaml:"placeholder_class"`
	// Family selects the label set.
	Family models.Family `json:"family" yaml:"family"`
	// Labels overrides the family label set when non-empty.
	Labels []string `json:"labels" yaml:"labels"`
}

// DefaultOptions mirrors the stock yolov8n.onnx export run at 640x640.
func DefaultOptions() Options {
	return Options{
		InputShape:          images.Size{Width: 640, Height: 640},
		Layout:              postprocess.LayoutRows,
		ConfidenceThreshold: 0.5,
		NMS:                 postprocess.NMSConfig{IoUThreshold: 0.4},
		Family:              models.FamilyPlate,
	}
}

// YOLOv8 is the instance of the YOLOv8 model.
type YOLOv8 struct {
	options Options
	labels  models.OutputClassSet
}

// NewModel creates a new model.
//
// Arguments:
//   - opts: The options for the model.
//
// Returns:
//   - *YOLOv8: The model.
//   - error: postprocess.ErrInvalidInput if the options cannot describe a model.
func NewModel(opts Options) (*YOLOv8, error) {
	if !opts.InputShape.Valid() {
		return nil, errors.Wrapf(postprocess.ErrInvalidInput, "NewModel requires a positive input shape, got %s", opts.InputShape)
	}

	var labels models.OutputClassSet
	if len(opts.Labels) > 0 {
		labels = models.NewClassSet(opts.Family, opts.Labels)
	} else {
		set, err := models.ClassSet(opts.Family)
		if err != nil {
			return nil, errors.Wrap(err, "NewModel requires a known family or explicit labels")
		}
		labels = set
	}

	return &YOLOv8{options: opts, labels: labels}, nil
}

// Options returns the options for the model.
func (m *YOLOv8) Options() Options {
	return m.options
}

// Label returns the human-readable name of a class index.
func (m *YOLOv8) Label(class int) string {
	if class >= 0 && class < len(m.labels.Classes) {
		return m.labels.Classes[class].Name
	}
	return models.LookupName(m.options.Family, class)
}

// Params builds the post-processing parameters for one image.
func (m *YOLOv8) Params(imageSize images.Size) postprocess.Params {
	return postprocess.Params{
		InputSize:           m.options.InputShape,
		ImageSize:           imageSize,
		ConfidenceThreshold: m.options.ConfidenceThreshold,
		NMS:                 m.options.NMS,
		PlaceholderClass:    m.options.PlaceholderClass,
		NoObjectness:        m.options.NoObjectness,
	}
}

// PostProcess postprocesses the output of the model.
//
// Arguments:
//   - output: The flat output buffer of the model.
//   - shape: The shape of output.
//   - imageSize: The size of the image the boxes are rescaled to.
//
// Returns:
//   - []postprocess.Result: The surviving detections, best first.
//   - error: postprocess.ErrInvalidInput for malformed output.
func (m *YOLOv8) PostProcess(output []float32, shape []int, imageSize images.Size) ([]postprocess.Result, error) {
	anchors, err := postprocess.AnchorsFromTensor(output, shape, m.options.Layout)
	if err != nil {
		return nil, err
	}
	return postprocess.PostProcess(anchors, m.Params(imageSize))
}
