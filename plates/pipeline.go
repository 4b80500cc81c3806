package plates

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-plates/ocr"
	"github.com/nvr-ai/go-plates/platelog"
	"github.com/nvr-ai/go-plates/profiler"
)

// labelColor is the box and text colour drawn on the frame.
var labelColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// Read is one plate found in a frame.
type Read struct {
	// Text is the OCR output, possibly empty.
	Text string
	// Box is the plate rectangle in frame pixels.
	Box image.Rectangle
	// At is when the frame was processed.
	At time.Time
	// Logged reports whether the read passed the gate and was recorded.
	Logged bool
}

// PlateFinder finds plate rectangles in a frame.
type PlateFinder interface {
	Detect(frame gocv.Mat) []image.Rectangle
}

// Pipeline runs detection, OCR and logging over frames.
type Pipeline struct {
	cfg        Config
	finder     PlateFinder
	recognizer ocr.Recognizer
	sink       platelog.Sink
	gate       *Gate
	motion     *MotionDetector
	clock      clock.Clock
	profiler   *profiler.Profiler
	logger     *zap.Logger
	source     string
}

// PipelineOptions holds the collaborators of a Pipeline.
type PipelineOptions struct {
	// Finder locates plates. Usually a *Detector.
	Finder PlateFinder
	// Recognizer reads each plate.
	Recognizer ocr.Recognizer
	// Sink records the reads that pass the gate.
	Sink platelog.Sink
	// Source names the capture device or file in the log.
	Source string
	// Clock overrides the wall clock.
	Clock clock.Clock
	// Profiler times each stage. May be nil.
	Profiler *profiler.Profiler
	// Logger receives per-plate messages.
	Logger *zap.Logger
}

// NewPipeline creates a pipeline.
//
// Arguments:
//   - cfg: The plate configuration.
//   - opts: The collaborators. Finder, Recognizer and Sink are required.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: An error if cfg is invalid, a collaborator is missing or CropDir cannot be created.
func NewPipeline(cfg Config, opts PipelineOptions) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Finder == nil || opts.Recognizer == nil || opts.Sink == nil {
		return nil, errors.New("pipeline requires a finder, a recognizer and a sink")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if cfg.SaveCrops {
		if err := os.MkdirAll(cfg.CropDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create crop dir %s", cfg.CropDir)
		}
	}

	var motion *MotionDetector
	if cfg.MotionMinArea > 0 {
		motion = NewMotionDetector(cfg.MotionMinArea)
	}

	return &Pipeline{
		cfg:        cfg,
		motion:     motion,
		finder:     opts.Finder,
		recognizer: opts.Recognizer,
		sink:       opts.Sink,
		gate:       NewGate(cfg.SkipEmpty, cfg.DedupWindow, opts.Clock),
		clock:      opts.Clock,
		profiler:   opts.Profiler,
		logger:     opts.Logger,
		source:     opts.Source,
	}, nil
}

// ProcessFrame finds and reads every plate in frame. When DrawLabels is set
// the boxes and text are drawn onto frame. With motion gating enabled, frames
// without motion return no reads.
//
// A plate that fails preprocessing, OCR or logging is skipped and its error
// is returned combined with the others, alongside the reads that succeeded.
//
// Arguments:
//   - ctx: Cancels the remaining plates of the frame.
//   - frame: A BGR frame.
//
// Returns:
//   - []Read: One read per plate that was recognised, in detection order.
//   - error: The combined per-plate errors, or ctx's error.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame *gocv.Mat) ([]Read, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	if p.motion != nil {
		done := p.profiler.StartOperation("motion")
		moving, err := p.motion.Moving(*frame)
		done()
		if err != nil {
			return nil, err
		}
		if !moving {
			return nil, nil
		}
	}

	done := p.profiler.StartOperation("detect")
	rects := p.finder.Detect(*frame)
	done()
	p.profiler.RecordMetric("plates_per_frame", float64(len(rects)))

	now := p.clock.Now()
	reads := make([]Read, 0, len(rects))
	var errs error

	for i, r := range rects {
		if err := ctx.Err(); err != nil {
			return reads, multierr.Append(errs, err)
		}

		text, err := p.readPlate(ctx, *frame, r, i)
		if err != nil {
			p.logger.Warn("failed to read plate", zap.Int("index", i), zap.Stringer("box", r), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}

		if p.cfg.DrawLabels {
			gocv.Rectangle(frame, r, labelColor, 2)
			gocv.PutText(frame, text, image.Pt(r.Min.X, r.Min.Y-10), gocv.FontHersheySimplex, 1, labelColor, 2)
		}

		read := Read{Text: text, Box: r, At: now}
		if p.gate.Allow(text) {
			entry := platelog.Entry{Text: text, At: now, Box: r, Source: p.source}
			if err := p.sink.Record(ctx, entry); err != nil {
				errs = multierr.Append(errs, err)
			} else {
				read.Logged = true
				p.logger.Info("🚗 plate", zap.String("text", text), zap.Stringer("box", r))
			}
		}
		reads = append(reads, read)
	}

	return reads, errs
}

// readPlate crops, saves, preprocesses and recognises one plate.
func (p *Pipeline) readPlate(ctx context.Context, frame gocv.Mat, r image.Rectangle, index int) (string, error) {
	crop := frame.Region(r)
	defer crop.Close()

	if p.cfg.SaveCrops {
		path := filepath.Join(p.cfg.CropDir, fmt.Sprintf("%d.png", index))
		if !gocv.IMWrite(path, crop) {
			p.logger.Warn("failed to save plate crop", zap.String("path", path))
		}
	}

	done := p.profiler.StartOperation("preprocess")
	binary, err := Preprocess(crop)
	done()
	if err != nil {
		binary.Close()
		return "", err
	}
	defer binary.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, binary)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode plate")
	}
	defer buf.Close()

	done = p.profiler.StartOperation("ocr")
	text, err := p.recognizer.Recognize(ctx, buf.GetBytes())
	done()
	if err != nil {
		return "", errors.Wrap(err, "failed to recognise plate")
	}
	return text, nil
}

// Close releases the recognizer, the sink and the motion model.
func (p *Pipeline) Close() error {
	err := multierr.Append(p.recognizer.Close(), p.sink.Close())
	if p.motion != nil {
		err = multierr.Append(err, p.motion.Close())
	}
	return err
}
