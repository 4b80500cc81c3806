// Package platelog records recognised licence plates.
package platelog

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Entry is one recognised plate.
type Entry struct {
	// Text is the OCR output.
	Text string `json:"text"`
	// At is when the frame was processed.
	At time.Time `json:"at"`
	// Box is the plate rectangle in frame pixels.
	Box image.Rectangle `json:"box"`
	// Source names the capture device or file.
	Source string `json:"source"`
}

// Sink stores entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Config selects the sinks built by Open. Empty paths disable a sink.
type Config struct {
	// CSVPath is the append-only CSV log, "plates.csv" by default.
	CSVPath string `json:"csv_path" yaml:"csv_path"`
	// SQLitePath is the SQLite database file.
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`
}

// DefaultConfig logs to plates.csv in the working directory.
func DefaultConfig() Config {
	return Config{CSVPath: "plates.csv"}
}

// Open builds the sinks named by cfg.
//
// Arguments:
//   - cfg: The sink configuration.
//
// Returns:
//   - Sink: A MultiSink over the enabled sinks. With none enabled it records nothing.
//   - error: An error if any sink cannot be opened. Sinks already opened are closed.
func Open(cfg Config) (Sink, error) {
	var sinks MultiSink

	if cfg.CSVPath != "" {
		csv, err := NewCSVSink(cfg.CSVPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csv)
	}
	if cfg.SQLitePath != "" {
		db, err := NewSQLiteSink(cfg.SQLitePath)
		if err != nil {
			return nil, multierr.Append(err, sinks.Close())
		}
		sinks = append(sinks, db)
	}

	return sinks, nil
}

// MultiSink records every entry to each of its sinks.
type MultiSink []Sink

// Record implements Sink. Every sink is tried; their errors are combined.
func (m MultiSink) Record(ctx context.Context, e Entry) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Record(ctx, e))
	}
	return errors.Wrap(err, "failed to record plate")
}

// Close implements Sink.
func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}
