package inference

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-plates/images"
	"github.com/nvr-ai/go-plates/models/postprocess"
	"github.com/nvr-ai/go-plates/models/yolov8"
)

// DNNDetector handles ONNX model inference using the OpenCV DNN module.
type DNNDetector struct {
	net    gocv.Net
	model  *yolov8.YOLOv8
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewDNNDetector loads cfg.ModelPath with gocv.ReadNetFromONNX.
//
// Arguments:
//   - cfg: The detector configuration.
//   - model: Decodes the network output.
//   - logger: Receives lifecycle messages.
//
// Returns:
//   - *DNNDetector: The detector.
//   - error: An error if the model file is missing or unreadable.
func NewDNNDetector(cfg Config, model *yolov8.YOLOv8, logger *zap.Logger) (*DNNDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load ONNX model: %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendOpenCV); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "failed to set DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "failed to set DNN target")
	}

	logger.Info("✅ OpenCV DNN detector initialized",
		zap.String("model", cfg.ModelPath),
		zap.Stringer("input", cfg.InputSize()),
	)

	return &DNNDetector{net: net, model: model, logger: logger}, nil
}

// Detect implements Detector.
func (d *DNNDetector) Detect(ctx context.Context, img image.Image) ([]postprocess.Result, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image")
	}
	defer mat.Close()

	return d.DetectMat(ctx, mat)
}

// DetectMat runs the model on a BGR frame.
//
// Arguments:
//   - ctx: Checked before the forward pass.
//   - img: A BGR frame, as returned by gocv.IMRead or VideoCapture.
//
// Returns:
//   - []postprocess.Result: Detections in img's pixel space.
//   - error: An error if the detector is closed or the output is malformed.
func (d *DNNDetector) DetectMat(ctx context.Context, img gocv.Mat) ([]postprocess.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, errors.Wrap(postprocess.ErrInvalidInput, "empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("detector closed")
	}

	in := d.model.Options().InputShape
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(in.Width, in.Height), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read network output")
	}

	results, err := d.model.PostProcess(data, output.Size(), images.Size{Width: img.Cols(), Height: img.Rows()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to post-process output")
	}
	return results, nil
}

// Label implements Detector.
func (d *DNNDetector) Label(class int) string {
	return d.model.Label(class)
}

// Close implements Detector.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.logger.Info("🔒 OpenCV DNN detector closed")
	return d.net.Close()
}
