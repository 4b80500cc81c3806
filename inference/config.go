// Package inference - Configuration for the ONNX object detector backends.
package inference

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-plates/images"
	"github.com/nvr-ai/go-plates/models"
	"github.com/nvr-ai/go-plates/models/postprocess"
	"github.com/nvr-ai/go-plates/models/yolov8"
)

// Backend selects the runtime that executes the model.
type Backend string

const (
	// BackendONNXRuntime runs the model with onnxruntime through onnxruntime_go.
	BackendONNXRuntime Backend = "onnxruntime"
	// BackendOpenCV runs the model with the OpenCV DNN module through gocv.
	BackendOpenCV Backend = "opencv"
)

// Provider is an onnxruntime execution provider.
type Provider string

const (
	// ProviderCPU is the default onnxruntime CPU provider.
	ProviderCPU Provider = "cpu"
	// ProviderCoreML uses Apple CoreML for macOS acceleration.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO uses Intel OpenVINO.
	ProviderOpenVINO Provider = "openvino"
)

// ErrUnsupportedBackend is returned for an unknown Backend or Provider.
var ErrUnsupportedBackend = errors.New("unsupported backend")

// Config represents the configuration for an ONNX detector.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// Backend selects onnxruntime or OpenCV DNN.
	Backend Backend `json:"backend" yaml:"backend"`
	// SharedLibPath overrides the onnxruntime shared library location.
	SharedLibPath string `json:"shared_lib_path" yaml:"shared_lib_path"`
	// Provider is the onnxruntime execution provider.
	Provider Provider `json:"provider" yaml:"provider"`
	// IntraOpThreads parallelizes execution within graph nodes. 0 uses the default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads parallelizes execution across graph nodes. 0 uses the default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// InputName is the name of the model's image input.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName is the name of the model's detection output.
	OutputName string `json:"output_name" yaml:"output_name"`
	// OutputShape is the shape of the detection output, e.g. [1, 84, 8400].
	OutputShape []int `json:"output_shape" yaml:"output_shape"`
	// Model configures decoding of the output tensor.
	Model yolov8.Options `json:"model" yaml:"model"`
}

// DefaultConfig returns the configuration of the stock yolov8n.onnx export.
//
// Returns:
//   - Config: 640x640 input, [1, 84, 8400] channel-major output, confidence
//     0.5 and NMS IoU 0.4.
func DefaultConfig() Config {
	model := yolov8.DefaultOptions()
	model.Family = models.FamilyYOLO
	model.Layout = postprocess.LayoutChannels
	model.NoObjectness = true

	return Config{
		ModelPath:   "yolov8n.onnx",
		Backend:     BackendONNXRuntime,
		Provider:    ProviderCPU,
		InputName:   "images",
		OutputName:  "output0",
		OutputShape: []int{1, 84, 8400},
		Model:       model,
	}
}

// InputSize returns the network input size.
func (c Config) InputSize() images.Size {
	return c.Model.InputShape
}

// Validate checks the configuration before any native resources are touched.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	switch c.Backend {
	case BackendONNXRuntime, BackendOpenCV:
	default:
		return errors.Wrapf(ErrUnsupportedBackend, "backend %q", c.Backend)
	}
	switch c.Provider {
	case ProviderCPU, ProviderCoreML, ProviderOpenVINO, "":
	default:
		return errors.Wrapf(ErrUnsupportedBackend, "provider %q", c.Provider)
	}
	if !c.Model.InputShape.Valid() {
		return errors.Wrapf(postprocess.ErrInvalidInput, "input shape %s", c.Model.InputShape)
	}
	if c.Backend == BackendONNXRuntime && len(c.OutputShape) == 0 {
		return errors.New("output shape is required for onnxruntime")
	}
	for _, d := range c.OutputShape {
		if d <= 0 {
			return errors.Wrapf(postprocess.ErrInvalidInput, "output shape %v", c.OutputShape)
		}
	}
	thresholds := c.Model.Params(c.Model.InputShape)
	return thresholds.Validate()
}
