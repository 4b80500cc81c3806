package ocr

import (
	"context"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Recognizer turns an encoded image into text.
type Recognizer interface {
	// Recognize returns the trimmed text found in the PNG-encoded image.
	// An image with no text returns "" and no error.
	Recognize(ctx context.Context, png []byte) (string, error)
	Close() error
}

// PageSegMode mirrors Tesseract's page segmentation modes by name.
type PageSegMode string

const (
	// PageSegAuto lets Tesseract segment the page.
	PageSegAuto PageSegMode = "auto"
	// PageSegSingleLine treats the image as one line of text.
	PageSegSingleLine PageSegMode = "single_line"
	// PageSegSingleWord treats the image as one word.
	PageSegSingleWord PageSegMode = "single_word"
	// PageSegSingleBlock treats the image as one uniform block of text.
	PageSegSingleBlock PageSegMode = "single_block"
)

var pageSegModes = map[PageSegMode]gosseract.PageSegMode{
	PageSegAuto:        gosseract.PSM_AUTO,
	PageSegSingleLine:  gosseract.PSM_SINGLE_LINE,
	PageSegSingleWord:  gosseract.PSM_SINGLE_WORD,
	PageSegSingleBlock: gosseract.PSM_SINGLE_BLOCK,
}

// Config configures the Tesseract recognizer.
type Config struct {
	// Language is the Tesseract language, e.g. "eng".
	Language string `json:"language" yaml:"language"`
	// Whitelist restricts the recognised characters when non-empty.
	Whitelist string `json:"whitelist" yaml:"whitelist"`
	// PageSegMode selects how Tesseract segments the input.
	PageSegMode PageSegMode `json:"page_seg_mode" yaml:"page_seg_mode"`
	// TessdataPrefix overrides the directory holding *.traineddata.
	TessdataPrefix string `json:"tessdata_prefix" yaml:"tessdata_prefix"`
}

// DefaultConfig reads a single line of English text.
func DefaultConfig() Config {
	return Config{
		Language:    "eng",
		PageSegMode: PageSegSingleLine,
	}
}

// Validate checks that the page segmentation mode is known.
func (c Config) Validate() error {
	if c.Language == "" {
		return errors.New("ocr language is required")
	}
	if _, ok := pageSegModes[c.PageSegMode]; !ok && c.PageSegMode != "" {
		return errors.Errorf("unknown page segmentation mode %q", c.PageSegMode)
	}
	return nil
}

// Tesseract is a Recognizer backed by one gosseract client.
type Tesseract struct {
	client *gosseract.Client
	logger *zap.Logger
	mu     sync.Mutex
}

// NewTesseract creates a Tesseract recognizer.
//
// Arguments:
//   - cfg: The recognizer configuration.
//   - logger: Receives lifecycle messages.
//
// Returns:
//   - *Tesseract: The recognizer. Close releases the native client.
//   - error: An error if the configuration is rejected by Tesseract.
func NewTesseract(cfg Config, logger *zap.Logger) (*Tesseract, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	fail := func(err error, msg string) (*Tesseract, error) {
		client.Close()
		return nil, errors.Wrap(err, msg)
	}

	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			return fail(err, "failed to set tessdata path")
		}
	}
	if err := client.SetLanguage(cfg.Language); err != nil {
		return fail(err, "failed to set language")
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			return fail(err, "failed to set whitelist")
		}
	}
	if mode, ok := pageSegModes[cfg.PageSegMode]; ok {
		if err := client.SetPageSegMode(mode); err != nil {
			return fail(err, "failed to set page segmentation mode")
		}
	}

	logger.Info("✅ tesseract initialized",
		zap.String("language", cfg.Language),
		zap.String("psm", string(cfg.PageSegMode)),
		zap.String("version", gosseract.Version()),
	)

	return &Tesseract{client: client, logger: logger}, nil
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(png) == 0 {
		return "", errors.New("empty image")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return "", errors.New("recognizer closed")
	}
	if err := t.client.SetImageFromBytes(png); err != nil {
		return "", errors.Wrap(err, "failed to set image")
	}

	text, err := t.client.Text()
	if err != nil {
		return "", errors.Wrap(err, "OCR failed")
	}
	return Clean(text), nil
}

// Close implements Recognizer.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// Clean trims surrounding whitespace and collapses internal runs of
// whitespace, including the newlines Tesseract appends, to single spaces.
func Clean(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
