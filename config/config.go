// Package config loads the settings shared by the programs: a YAML file over
// the defaults, then a .env file, then PLATES_* environment variables.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-plates/inference"
	"github.com/nvr-ai/go-plates/logging"
	"github.com/nvr-ai/go-plates/ocr"
	"github.com/nvr-ai/go-plates/platelog"
	"github.com/nvr-ai/go-plates/plates"
	"github.com/nvr-ai/go-plates/profiler"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLATES_"

// Capture selects the frame source of the webcam program.
type Capture struct {
	// Device is the video capture device index.
	Device int `json:"device" yaml:"device"`
	// Video is a video file to read instead of the device.
	Video string `json:"video" yaml:"video"`
	// Show displays annotated frames in a window.
	Show bool `json:"show" yaml:"show"`
	// Window is the display window title.
	Window string `json:"window" yaml:"window"`
}

// Config is the complete program configuration.
type Config struct {
	Logging  logging.Options  `json:"logging" yaml:"logging"`
	Capture  Capture          `json:"capture" yaml:"capture"`
	Plates   plates.Config    `json:"plates" yaml:"plates"`
	OCR      ocr.Config       `json:"ocr" yaml:"ocr"`
	Log      platelog.Config  `json:"log" yaml:"log"`
	Detector inference.Config `json:"detector" yaml:"detector"`
	Profiler profiler.Options `json:"profiler" yaml:"profiler"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logging:  logging.DefaultOptions(),
		Capture:  Capture{Window: "Camera"},
		Plates:   plates.DefaultConfig(),
		OCR:      ocr.DefaultConfig(),
		Log:      platelog.DefaultConfig(),
		Detector: inference.DefaultConfig(),
		Profiler: profiler.Options{ReportInterval: 5 * time.Second},
	}
}

// Load builds the configuration.
//
// Arguments:
//   - path: A YAML file merged over Default. Empty skips it.
//   - envFile: A .env file loaded into the environment. Missing files are ignored.
//     Variables already set take precedence over the file.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if a file cannot be parsed, an override is malformed or
//     the result does not validate.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return Config{}, errors.Wrapf(err, "failed to load %s", envFile)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode merges YAML data over cfg. Unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := logging.NewConfig(c.Logging); err != nil {
		return err
	}
	if err := c.Plates.Validate(); err != nil {
		return errors.Wrap(err, "plates")
	}
	if err := c.OCR.Validate(); err != nil {
		return errors.Wrap(err, "ocr")
	}
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if c.Capture.Device < 0 {
		return errors.Errorf("capture device must not be negative, got %d", c.Capture.Device)
	}
	return nil
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg from PLATES_* variables read through lookup.
//
// Recognised keys, without the prefix: LOG_LEVEL, DEVICE, VIDEO, CASCADE_PATH,
// CROP_DIR, DEDUP_WINDOW, OCR_LANGUAGE, TESSDATA_PREFIX, CSV_PATH,
// SQLITE_PATH, MODEL_PATH, BACKEND, ORT_LIBRARY, CONFIDENCE and NMS.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	env := envReader{lookup: lookup}

	env.setString("LOG_LEVEL", &cfg.Logging.Level)
	env.setInt("DEVICE", &cfg.Capture.Device)
	env.setString("VIDEO", &cfg.Capture.Video)
	env.setString("CASCADE_PATH", &cfg.Plates.CascadePath)
	env.setString("CROP_DIR", &cfg.Plates.CropDir)
	env.setDuration("DEDUP_WINDOW", &cfg.Plates.DedupWindow)
	env.setString("OCR_LANGUAGE", &cfg.OCR.Language)
	env.setString("TESSDATA_PREFIX", &cfg.OCR.TessdataPrefix)
	env.setString("CSV_PATH", &cfg.Log.CSVPath)
	env.setString("SQLITE_PATH", &cfg.Log.SQLitePath)
	env.setString("MODEL_PATH", &cfg.Detector.ModelPath)
	env.setString("ORT_LIBRARY", &cfg.Detector.SharedLibPath)
	env.setFloat32("CONFIDENCE", &cfg.Detector.Model.ConfidenceThreshold)
	env.setFloat32("NMS", &cfg.Detector.Model.NMS.IoUThreshold)

	var backend string
	if env.setString("BACKEND", &backend) {
		cfg.Detector.Backend = inference.Backend(backend)
	}

	return env.err
}

// envReader applies typed overrides and keeps the first parse error.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	value, ok := e.lookup(EnvPrefix + key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = errors.Wrapf(err, "invalid %s%s", EnvPrefix, key)
	}
}

func (e *envReader) setString(key string, dst *string) bool {
	value, ok := e.raw(key)
	if ok {
		*dst = value
	}
	return ok
}

func (e *envReader) setInt(key string, dst *int) {
	if value, ok := e.raw(key); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setFloat32(key string, dst *float32) {
	if value, ok := e.raw(key); ok {
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = float32(f)
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if value, ok := e.raw(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}
