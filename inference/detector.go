package inference

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-plates/images"
	"github.com/nvr-ai/go-plates/models/postprocess"
	"github.com/nvr-ai/go-plates/models/yolov8"
)

// Detector runs a YOLO-style model on still images.
type Detector interface {
	// Detect returns the post-processed detections for img, in img's pixel space.
	Detect(ctx context.Context, img image.Image) ([]postprocess.Result, error)
	// Label names a class index.
	Label(class int) string
	// Close releases native resources.
	Close() error
}

// NewDetector creates the detector selected by cfg.Backend.
//
// Arguments:
//   - cfg: The detector configuration.
//   - logger: Receives lifecycle and per-run debug messages.
//
// Returns:
//   - Detector: The detector.
//   - error: An error if cfg is invalid or the model cannot be loaded.
func NewDetector(cfg Config, logger *zap.Logger) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid detector config")
	}
	model, err := yolov8.NewModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendOpenCV:
		return NewDNNDetector(cfg, model, logger)
	default:
		session, err := NewSession(cfg, logger)
		if err != nil {
			return nil, err
		}
		return &ortDetector{session: session, model: model, logger: logger}, nil
	}
}

// ortDetector runs the model on onnxruntime.
type ortDetector struct {
	session *Session
	model   *yolov8.YOLOv8
	logger  *zap.Logger
}

// Detect implements Detector.
func (d *ortDetector) Detect(ctx context.Context, img image.Image) ([]postprocess.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.session.Lock()
	defer d.session.Unlock()

	if d.session.Input == nil {
		return nil, errors.New("detector closed")
	}

	if err := PrepareInput(img, d.session.Input.GetData(), d.model.Options().InputShape); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	results, err := d.model.PostProcess(d.session.Output.GetData(), d.session.OutputShape, images.SizeOf(img.Bounds()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to post-process output")
	}

	d.logger.Debug("inference complete", zap.Int("detections", len(results)))
	return results, nil
}

// Label implements Detector.
func (d *ortDetector) Label(class int) string {
	return d.model.Label(class)
}

// Close implements Detector.
func (d *ortDetector) Close() error {
	d.session.Close()
	d.logger.Info("🔒 ONNX detector closed")
	return nil
}
