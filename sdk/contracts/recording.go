package contracts

import "time"

// RecordOptions configures a recording session.
type RecordOptions struct {
	Logger         Logger        // Logger for session progress and write failures.
	Clock          Clock         // Time base shared with the input client.
	BaseName       string        // Output file name or path, without the .mid extension.
	SilenceTimeout time.Duration // Gap that closes a take; zero records a single take until shutdown.
	TempoBPM       float64       // Tempo used to convert time into ticks.
	Overwrite      bool          // Replace existing files instead of choosing a free name.
}

// RecordOption is a function that modifies RecordOptions.
type RecordOption func(*RecordOptions)

// WithRecorderLogger sets the logger used by the recorder.
func WithRecorderLogger(l Logger) RecordOption {
	return func(opts *RecordOptions) {
		opts.Logger = l
	}
}

// WithRecorderClock sets the recorder's time base. It must be the clock the
// input client stamps events with.
func WithRecorderClock(clock Clock) RecordOption {
	return func(opts *RecordOptions) {
		opts.Clock = clock
	}
}

// WithBaseName sets the output file name or path, without extension.
func WithBaseName(name string) RecordOption {
	return func(opts *RecordOptions) {
		opts.BaseName = name
	}
}

// WithSilenceTimeout enables auto mode: a new file is started after d of silence.
func WithSilenceTimeout(d time.Duration) RecordOption {
	return func(opts *RecordOptions) {
		opts.SilenceTimeout = d
	}
}

// WithTempo sets the tempo in beats per minute.
func WithTempo(bpm float64) RecordOption {
	return func(opts *RecordOptions) {
		opts.TempoBPM = bpm
	}
}

// WithOverwrite allows existing output files to be replaced.
func WithOverwrite(overwrite bool) RecordOption {
	return func(opts *RecordOptions) {
		opts.Overwrite = overwrite
	}
}
