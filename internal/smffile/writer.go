package smffile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/leandrodaf/midirec/internal/session"
	"github.com/leandrodaf/midirec/sdk/contracts"
	"go.uber.org/multierr"
)

// TimestampLayout formats the capture start appended to file names in auto mode.
const TimestampLayout = "20060102-150405"

// Extension is appended to every output file.
const Extension = ".mid"

// maxCollisions bounds the search for a free file name.
const maxCollisions = 1000

// WriteError reports a take that could not be stored. The take is kept so
// the caller can retry.
type WriteError struct {
	Path string
	Take *session.Take
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s (take started %s): %v", e.Path, e.Take.StartedAt.Format(time.DateTime), e.Err)
}

// Unwrap exposes both contracts.ErrIO and the underlying cause.
func (e *WriteError) Unwrap() []error {
	return []error{contracts.ErrIO, e.Err}
}

// Writer is a session.Sink that writes one file per take.
type Writer struct {
	enc       *Encoder
	baseName  string
	timestamp bool
	overwrite bool
	logger    contracts.Logger
}

// NewWriter returns a Writer for base name baseName. With timestamp set
// (auto mode) every file name carries the take's capture start.
func NewWriter(enc *Encoder, baseName string, timestamp, overwrite bool, logger contracts.Logger) *Writer {
	return &Writer{
		enc:       enc,
		baseName:  baseName,
		timestamp: timestamp,
		overwrite: overwrite,
		logger:    logger,
	}
}

// PathFor returns the preferred file name for take: <base>.mid, or
// <base>_<YYYYMMDD-HHMMSS>.mid in auto mode.
func (w *Writer) PathFor(take *session.Take) string {
	if w.timestamp {
		return w.baseName + "_" + take.StartedAt.Format(TimestampLayout) + Extension
	}
	return w.baseName + Extension
}

// WriteTake encodes take into a new file and returns its path. Existing
// files are never replaced unless overwrite is set; a numeric suffix is
// added instead. Failures are returned as *WriteError and the partial file
// is removed.
func (w *Writer) WriteTake(take *session.Take) (string, error) {
	path := w.PathFor(take)

	f, path, err := w.create(path)
	if err != nil {
		return "", &WriteError{Path: path, Take: take, Err: err}
	}
	w.logger.Info("Save MIDI file", w.logger.Field().String("path", path))

	bw := bufio.NewWriter(f)
	_, err = w.enc.Encode(bw, take)
	if err == nil {
		err = bw.Flush()
	}
	err = multierr.Append(err, f.Close())
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			w.logger.Warn("failed to remove partial file", w.logger.Field().String("path", path), w.logger.Field().Error("error", rmErr))
		}
		return "", &WriteError{Path: path, Take: take, Err: err}
	}
	return path, nil
}

func (w *Writer) create(path string) (*os.File, string, error) {
	if w.overwrite {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		return f, path, err
	}

	stem := path[:len(path)-len(Extension)]
	candidate := path
	for i := 1; i <= maxCollisions; i++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if candidate != path {
				w.logger.Warn("output file exists, using a new name",
					w.logger.Field().String("wanted", path),
					w.logger.Field().String("path", candidate))
			}
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, candidate, err
		}
		candidate = stem + "_" + strconv.Itoa(i) + Extension
	}
	return nil, path, fmt.Errorf("no free file name for %s after %d attempts: %w", path, maxCollisions, os.ErrExist)
}
