// Command plates reads licence plates from a webcam or video file, draws
// them on the frame and logs each new plate.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-plates/config"
	"github.com/nvr-ai/go-plates/logging"
	"github.com/nvr-ai/go-plates/ocr"
	"github.com/nvr-ai/go-plates/platelog"
	"github.com/nvr-ai/go-plates/plates"
	"github.com/nvr-ai/go-plates/profiler"
)

// escKey is the key code returned by WaitKey for ESC.
const escKey = 27

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	envFile := flag.String("env", ".env", "dotenv file with PLATES_* overrides")
	device := flag.Int("device", 0, "video capture device")
	video := flag.String("video", "", "video file to read instead of the device")
	show := flag.Bool("show", false, "display annotated frames")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Capture.Device = *device
		case "video":
			cfg.Capture.Video = *video
		case "show":
			cfg.Capture.Show = *show
		}
	})

	logger, err := logging.New("plates", cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("❌ plates failed", zap.Error(err))
	}
}

// run opens the capture source and processes frames until the source ends,
// ESC is pressed in the window or ctx is cancelled.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	detector, err := plates.NewDetector(cfg.Plates)
	if err != nil {
		return err
	}
	defer detector.Close()

	recognizer, err := ocr.NewTesseract(cfg.OCR, logger)
	if err != nil {
		return err
	}

	sink, err := platelog.Open(cfg.Log)
	if err != nil {
		recognizer.Close()
		return err
	}

	prof := profiler.New(cfg.Profiler, logger.Named("profiler"))
	go prof.Run(ctx)

	source, capture, err := openCapture(cfg.Capture)
	if err != nil {
		recognizer.Close()
		sink.Close()
		return err
	}
	defer capture.Close()

	pipeline, err := plates.NewPipeline(cfg.Plates, plates.PipelineOptions{
		Finder:     detector,
		Recognizer: recognizer,
		Sink:       sink,
		Source:     source,
		Profiler:   prof,
		Logger:     logger,
	})
	if err != nil {
		recognizer.Close()
		sink.Close()
		return err
	}
	defer pipeline.Close()

	var window *gocv.Window
	if cfg.Capture.Show {
		window = gocv.NewWindow(cfg.Capture.Window)
		defer window.Close()
	}

	frame := gocv.NewMat()
	defer frame.Close()

	logger.Info("🎥 reading frames", zap.String("source", source))

	frameCount := 0
	lastTime := time.Now()

	for ctx.Err() == nil {
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			logger.Info("capture ended", zap.String("source", source))
			return nil
		}

		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			prof.RecordMetric("fps", float64(frameCount)/elapsed)
			frameCount = 0
			lastTime = time.Now()
		}

		done := prof.StartOperation("frame")
		reads, err := pipeline.ProcessFrame(ctx, &frame)
		done()
		if err != nil {
			logger.Warn("frame processed with errors", zap.Int("plates", len(reads)), zap.Error(err))
		}

		if window != nil {
			window.IMShow(frame)
			if window.WaitKey(1) == escKey {
				return nil
			}
		}
	}
	return nil
}

// openCapture opens the video file when one is configured, else the device.
func openCapture(c config.Capture) (string, *gocv.VideoCapture, error) {
	if c.Video != "" {
		capture, err := gocv.VideoCaptureFile(c.Video)
		if err != nil {
			return "", nil, errors.Wrapf(err, "error opening video file %s", c.Video)
		}
		return c.Video, capture, nil
	}

	capture, err := gocv.OpenVideoCapture(c.Device)
	if err != nil {
		return "", nil, errors.Wrapf(err, "error opening capture device %d", c.Device)
	}
	return fmt.Sprintf("device:%d", c.Device), capture, nil
}
