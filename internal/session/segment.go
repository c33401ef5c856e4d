// Package session turns a stream of captured MIDI events into takes: it
// buffers events, watches for silence and hands finished takes to a sink.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midirec/internal/timing"
	"github.com/leandrodaf/midirec/sdk/contracts"
)

// ErrSealed is returned when appending to a segment that was already sealed.
var ErrSealed = errors.New("segment is sealed")

// TimedEvent is a MIDI message with its delta time in ticks.
type TimedEvent struct {
	Delta uint32
	Data  []byte
}

// Take is a sealed, read-only segment ready to be encoded.
type Take struct {
	StartedAt time.Time     // Wall clock time of the first event.
	Start     time.Duration // Clock timestamp of the first event.
	End       time.Duration // Clock timestamp of the last event.
	Events    []TimedEvent
}

// Length returns the time between the first and last event of the take.
func (t *Take) Length() time.Duration {
	return t.End - t.Start
}

// Segment accumulates the events of one take. Append and Seal may be
// called from different goroutines.
type Segment struct {
	mu        sync.Mutex
	conv      *timing.Converter
	startedAt time.Time
	start     time.Duration
	last      time.Duration
	lastPos   uint64
	events    []TimedEvent
	sealed    bool
}

// NewSegment opens a segment whose time origin is the first event.
func NewSegment(conv *timing.Converter, first contracts.RawEvent, startedAt time.Time) *Segment {
	return &Segment{
		conv:      conv,
		startedAt: startedAt,
		start:     first.Timestamp,
		last:      first.Timestamp,
		events:    []TimedEvent{{Delta: 0, Data: first.Bytes()}},
	}
}

// Append converts ev to a TimedEvent and adds it to the segment. Deltas are
// the difference of tick positions measured from the segment start.
func (s *Segment) Append(ev contracts.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return ErrSealed
	}
	if ev.Timestamp < s.last {
		return fmt.Errorf("%w: %v after %v", contracts.ErrTimestampRegression, s.last, ev.Timestamp)
	}
	pos, err := s.conv.Position(s.start, ev.Timestamp)
	if err != nil {
		return err
	}
	delta := pos - s.lastPos
	if delta > timing.MaxDelta {
		return fmt.Errorf("%w: %v", timing.ErrDeltaTooLarge, ev.Timestamp-s.last)
	}
	s.events = append(s.events, TimedEvent{Delta: uint32(delta), Data: ev.Bytes()})
	s.last = ev.Timestamp
	s.lastPos = pos
	return nil
}

// Len returns the number of buffered events.
func (s *Segment) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Seal closes the segment and returns its contents. Appends that happen
// after Seal fail with ErrSealed; calling Seal twice returns nil.
func (s *Segment) Seal() *Take {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return nil
	}
	s.sealed = true
	events := s.events
	s.events = nil
	return &Take{
		StartedAt: s.startedAt,
		Start:     s.start,
		End:       s.last,
		Events:    events,
	}
}
