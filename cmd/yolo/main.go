// Command yolo runs a YOLO ONNX model on still images, prints the detections
// and writes annotated copies.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-plates/config"
	"github.com/nvr-ai/go-plates/inference"
	"github.com/nvr-ai/go-plates/logging"
	"github.com/nvr-ai/go-plates/models/postprocess"
	"github.com/nvr-ai/go-plates/ocr"
	"github.com/nvr-ai/go-plates/profiler"
	"github.com/nvr-ai/go-plates/render"
	"github.com/nvr-ai/go-plates/util"
)

// options are the command line settings layered over the configuration.
type options struct {
	image   string
	dir     string
	out     string
	readOCR bool
	show    bool
}

func main() {
	var opts options
	configPath := flag.String("config", "", "YAML configuration file")
	envFile := flag.String("env", ".env", "dotenv file with PLATES_* overrides")
	flag.StringVar(&opts.image, "image", "Plates/car.jpg", "image to run the model on")
	flag.StringVar(&opts.dir, "dir", "", "directory of images to run the model on, instead of -image")
	flag.StringVar(&opts.out, "out", "out", "directory for annotated images, empty to skip")
	flag.BoolVar(&opts.readOCR, "ocr", false, "read the text inside each detection")
	flag.BoolVar(&opts.show, "show", false, "display each annotated image until a key is pressed")
	backend := flag.String("backend", "", "inference backend: onnxruntime or opencv")
	model := flag.String("model", "", "ONNX model path")
	conf := flag.Float64("conf", 0, "confidence threshold")
	nms := flag.Float64("nms", 0, "NMS IoU threshold")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Detector.Backend = inference.Backend(*backend)
		case "model":
			cfg.Detector.ModelPath = *model
		case "conf":
			cfg.Detector.Model.ConfidenceThreshold = float32(*conf)
		case "nms":
			cfg.Detector.Model.NMS.IoUThreshold = float32(*nms)
		}
	})

	logger, err := logging.New("yolo", cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Detector.Validate(); err != nil {
		logger.Fatal("❌ invalid detector settings", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Fatal("❌ yolo failed", zap.Error(err))
	}
}

// run detects objects in every input image.
func run(ctx context.Context, cfg config.Config, opts options, logger *zap.Logger) error {
	files, err := inputs(opts)
	if err != nil {
		return err
	}

	detector, err := inference.NewDetector(cfg.Detector, logger)
	if err != nil {
		return errors.Wrap(err, "could not load model")
	}
	defer detector.Close()
	logger.Info("✅ model loaded successfully", zap.String("model", cfg.Detector.ModelPath))

	var recognizer ocr.Recognizer
	if opts.readOCR {
		tess, err := ocr.NewTesseract(cfg.OCR, logger)
		if err != nil {
			return err
		}
		defer tess.Close()
		recognizer = tess
	}

	var window *gocv.Window
	if opts.show {
		window = gocv.NewWindow("YOLOv8 Detection")
		defer window.Close()
	}

	prof := profiler.New(cfg.Profiler, logger.Named("profiler"))
	defer func() {
		for _, op := range prof.Report().Operations {
			logger.Info("⏱️ timing", zap.String("op", op.Name), zap.Duration("avg", op.Avg), zap.Int64("count", op.Count))
		}
	}()

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
		if err != nil {
			logger.Error("❌ could not load image", zap.String("path", file.Path), zap.Error(err))
			continue
		}

		done := prof.StartOperation("detect")
		dets, err := detector.Detect(ctx, img)
		done()
		if err != nil {
			logger.Error("❌ detection failed", zap.String("path", file.Path), zap.Error(err))
			continue
		}

		printDetections(file.Path, dets, detector.Label)

		if recognizer != nil {
			readDetections(ctx, img, dets, recognizer, logger)
		}

		annotated := render.Annotate(img, dets, detector.Label, render.DefaultOptions())
		if opts.out != "" {
			path := filepath.Join(opts.out, strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))+".png")
			if err := render.Save(path, annotated); err != nil {
				logger.Error("❌ could not save image", zap.String("path", path), zap.Error(err))
			}
		}

		if window != nil {
			if err := showImage(window, annotated); err != nil {
				logger.Warn("could not display image", zap.Error(err))
			}
		}
	}
	return nil
}

// inputs loads the -dir batch, or the single -image.
func inputs(opts options) ([]util.ImageFile, error) {
	if opts.dir != "" {
		files, err := util.LoadDirectoryImageFiles(opts.dir)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, errors.Errorf("no images in %s", opts.dir)
		}
		return files, nil
	}

	data, err := os.ReadFile(opts.image)
	if err != nil {
		return nil, errors.Wrap(err, "could not load image")
	}
	return []util.ImageFile{{Path: opts.image, Data: data, Frame: util.FrameNumber(opts.image)}}, nil
}

// printDetections writes one line per detection to stdout.
func printDetections(path string, dets []postprocess.Result, label func(int) string) {
	fmt.Printf("%s: %d detection(s)\n", path, len(dets))
	for i, d := range dets {
		fmt.Printf("  %2d  %-14s %.2f  %s\n", i, label(d.Class), d.Score, d.Box)
	}
}

// readDetections runs OCR on each detection crop.
func readDetections(ctx context.Context, img image.Image, dets []postprocess.Result, rec ocr.Recognizer, logger *zap.Logger) {
	for i, d := range dets {
		crop := render.Crop(img, d.Box)
		if crop.Bounds().Empty() {
			continue
		}
		data, err := ocr.EncodePNG(ocr.Binarize(crop))
		if err != nil {
			logger.Warn("could not encode crop", zap.Int("index", i), zap.Error(err))
			continue
		}
		text, err := rec.Recognize(ctx, data)
		if err != nil {
			logger.Warn("OCR failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		fmt.Printf("  %2d  text=%q\n", i, text)
	}
}

// showImage displays img and waits for a key press.
func showImage(window *gocv.Window, img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	window.IMShow(mat)
	window.WaitKey(0)
	return nil
}
