package midi

import (
	"context"
	"path/filepath"
	"time"

	"github.com/leandrodaf/midirec/internal/session"
	"github.com/leandrodaf/midirec/internal/smffile"
	"github.com/leandrodaf/midirec/internal/timing"
	"github.com/leandrodaf/midirec/sdk/contracts"
	"go.uber.org/multierr"
)

const (
	// DefaultBaseName is the output name used when none is given.
	DefaultBaseName = "track"
	// DefaultTempoBPM is the tempo written to every file unless overridden.
	DefaultTempoBPM = timing.DefaultTempoBPM
	// EventBufferSize is the capacity of the channel between a client and
	// the recorder.
	EventBufferSize = 1024
)

// Recorder turns a stream of captured events into Standard MIDI Files.
// Without a silence timeout it records a single take named after the base
// name. With one (auto mode) every take gets its own timestamped file.
type Recorder struct {
	options contracts.RecordOptions
	writer  *smffile.Writer
	session *session.Recorder
}

// NewRecorder creates a Recorder with the specified options.
func NewRecorder(opts ...contracts.RecordOption) (*Recorder, error) {
	options := applyRecordDefaults(opts...)

	conv, err := timing.NewConverter(timing.DefaultResolution, options.TempoBPM)
	if err != nil {
		return nil, err
	}

	auto := options.SilenceTimeout > 0
	writer := smffile.NewWriter(smffile.NewEncoder(conv, trackName(options.BaseName)),
		options.BaseName, auto, options.Overwrite, options.Logger)

	rec, err := session.NewRecorder(session.Config{
		Converter:      conv,
		Sink:           writer,
		SilenceTimeout: options.SilenceTimeout,
		Clock:          options.Clock,
		Logger:         options.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Recorder{
		options: options,
		writer:  writer,
		session: rec,
	}, nil
}

// Record starts capturing from client and records until ctx is cancelled.
// The client must have a device selected. It is stopped before Record
// returns.
func (r *Recorder) Record(ctx context.Context, client contracts.ClientMIDI) error {
	events := make(chan contracts.RawEvent, EventBufferSize)
	client.StartCapture(events)

	err := r.Run(ctx, events)
	return multierr.Append(err, client.Stop())
}

// Run records the events read from events until ctx is cancelled or the
// channel is closed. Failed writes are returned as *smffile.WriteError
// values combined with multierr.
func (r *Recorder) Run(ctx context.Context, events <-chan contracts.RawEvent) error {
	if r.options.SilenceTimeout > 0 {
		r.options.Logger.Info("Auto mode enabled",
			r.options.Logger.Field().Duration("silence", r.options.SilenceTimeout))
	}
	return r.session.Run(ctx, events)
}

// State returns the recording phase.
func (r *Recorder) State() session.State {
	return r.session.State()
}

// Written returns the number of files saved so far.
func (r *Recorder) Written() int {
	return r.session.Written()
}

// SilenceTimeout returns the auto mode timeout, zero when disabled.
func (r *Recorder) SilenceTimeout() time.Duration {
	return r.options.SilenceTimeout
}

// trackName is the sequence name stored in each file.
func trackName(baseName string) string {
	return filepath.Base(baseName)
}
