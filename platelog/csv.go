package platelog

import (
	"context"
	"encoding/csv"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// CSVSink appends "text,timestamp" rows to a file. Timestamps use
// time.ANSIC, the layout of C's ctime.
type CSVSink struct {
	file *os.File
	w    *csv.Writer
	mu   sync.Mutex
}

// NewCSVSink opens path for appending, creating it if needed.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	return &CSVSink{file: f, w: csv.NewWriter(f)}, nil
}

// Record implements Sink. Each row is flushed before Record returns.
func (s *CSVSink) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return errors.New("csv sink closed")
	}
	if err := s.w.Write([]string{e.Text, e.At.Format(time.ANSIC)}); err != nil {
		return errors.Wrap(err, "failed to write csv row")
	}
	s.w.Flush()
	return errors.Wrap(s.w.Error(), "failed to flush csv row")
}

// Close implements Sink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
