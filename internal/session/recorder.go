package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midirec/internal/timing"
	"github.com/leandrodaf/midirec/sdk/contracts"
	"go.uber.org/multierr"
)

// State is the phase of a recording session.
type State int

const (
	// WaitingForFirstEvent means no take is open.
	WaitingForFirstEvent State = iota
	// Recording means a take is open and accepting events.
	Recording
	// ShuttingDown means the session is flushing its last take.
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case WaitingForFirstEvent:
		return "waiting"
	case Recording:
		return "recording"
	case ShuttingDown:
		return "shutting down"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sink stores finished takes. WriteTake is called from its own goroutine
// and may run while the next take is being recorded.
type Sink interface {
	WriteTake(take *Take) (string, error)
}

// Config holds the collaborators of a Recorder.
type Config struct {
	Converter      *timing.Converter
	Sink           Sink
	SilenceTimeout time.Duration // Zero records a single take until shutdown.
	Clock          contracts.Clock
	Logger         contracts.Logger
	Now            func() time.Time // Wall clock used to name takes; defaults to time.Now.
}

// Recorder is the session state machine. It reads captured events, groups
// them into takes separated by silence and hands sealed takes to the sink.
type Recorder struct {
	conv    *timing.Converter
	sink    Sink
	monitor *SilenceMonitor
	logger  contracts.Logger
	now     func() time.Time

	mu      sync.Mutex
	state   State
	segment *Segment

	wg      sync.WaitGroup
	errMu   sync.Mutex
	errs    error
	written int
}

// NewRecorder validates cfg and returns a Recorder in the waiting state.
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.Converter == nil {
		return nil, errors.New("recorder: converter is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("recorder: sink is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("recorder: logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = contracts.NewMonotonicClock()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Recorder{
		conv:    cfg.Converter,
		sink:    cfg.Sink,
		monitor: NewSilenceMonitor(cfg.SilenceTimeout, cfg.Clock),
		logger:  cfg.Logger,
		now:     cfg.Now,
		state:   WaitingForFirstEvent,
	}, nil
}

// State returns the current phase.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Written returns the number of takes stored successfully so far.
func (r *Recorder) Written() int {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.written
}

// Run consumes events until ctx is cancelled or the channel is closed.
// Before returning it seals the open take, waits for every pending write
// and returns all write failures combined. A timestamp regression stops
// the session with ErrTimestampRegression after flushing what was recorded.
func (r *Recorder) Run(ctx context.Context, events <-chan contracts.RawEvent) error {
	defer r.monitor.Stop()

	r.logger.Info("Waiting for first event ...")
	for {
		select {
		case <-ctx.Done():
			return r.shutdown(events, nil)
		case ev, ok := <-events:
			if !ok {
				return r.shutdown(nil, nil)
			}
			if err := r.handle(ev); err != nil {
				return r.shutdown(nil, err)
			}
		case deadline := <-r.monitor.Expired():
			if err := r.expire(events, deadline); err != nil {
				return r.shutdown(nil, err)
			}
		}
	}
}

// handle places ev by its timestamp: an event at or past the silence
// deadline starts a new take even if the expiry was not consumed yet.
func (r *Recorder) handle(ev contracts.RawEvent) error {
	if r.State() == Recording && r.monitor.Passed(ev.Timestamp) {
		r.closeTake()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case WaitingForFirstEvent:
		r.segment = NewSegment(r.conv, ev, r.now())
		r.state = Recording
		r.logger.Info("Recording started")
	case Recording:
		if err := r.segment.Append(ev); err != nil {
			return err
		}
	default:
		return nil
	}

	r.logger.Debug("event",
		r.logger.Field().Duration("timestamp", ev.Timestamp),
		r.logger.Field().String("message", fmt.Sprintf("% X", ev.Bytes())))
	r.monitor.Reset(ev.Timestamp)
	return nil
}

// expire closes the current take. An event that was already queued before
// the deadline still belongs to the take and re-arms the monitor instead.
func (r *Recorder) expire(events <-chan contracts.RawEvent, deadline time.Duration) error {
	if r.State() != Recording {
		return nil
	}

	select {
	case ev, ok := <-events:
		if ok && ev.Timestamp < deadline {
			return r.handle(ev)
		}
		r.closeTake()
		if !ok {
			return nil
		}
		return r.handle(ev)
	default:
		r.closeTake()
		return nil
	}
}

func (r *Recorder) closeTake() {
	r.logger.Info("Timeout exceeded, starting a new track")
	r.flush(WaitingForFirstEvent)
	r.logger.Info("Waiting for first event ...")
}

// shutdown appends the events already queued in pending (if any), flushes
// the open take and waits for all writes.
func (r *Recorder) shutdown(pending <-chan contracts.RawEvent, cause error) error {
	if pending != nil {
		cause = r.drain(pending)
	}

	r.flush(ShuttingDown)
	r.wg.Wait()

	r.errMu.Lock()
	defer r.errMu.Unlock()
	return multierr.Append(cause, r.errs)
}

func (r *Recorder) drain(pending <-chan contracts.RawEvent) error {
	for n := len(pending); n > 0; n-- {
		ev, ok := <-pending
		if !ok {
			return nil
		}
		if err := r.handle(ev); err != nil {
			return err
		}
	}
	return nil
}

// flush seals the open take, if any, and writes it in the background.
func (r *Recorder) flush(next State) {
	r.mu.Lock()
	segment := r.segment
	r.segment = nil
	r.state = next
	r.mu.Unlock()

	r.monitor.Stop()
	if segment == nil {
		return
	}
	take := segment.Seal()
	if take == nil || len(take.Events) == 0 {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.write(take)
	}()
}

func (r *Recorder) write(take *Take) {
	path, err := r.sink.WriteTake(take)

	r.errMu.Lock()
	defer r.errMu.Unlock()

	if err != nil {
		r.errs = multierr.Append(r.errs, err)
		r.logger.Error("Failed to save MIDI file",
			r.logger.Field().Time("started", take.StartedAt),
			r.logger.Field().Int("events", len(take.Events)),
			r.logger.Field().Error("error", err))
		return
	}
	r.written++
	r.logger.Info("Saved MIDI file",
		r.logger.Field().String("path", path),
		r.logger.Field().Int("events", len(take.Events)),
		r.logger.Field().Duration("length", take.Length()))
}
