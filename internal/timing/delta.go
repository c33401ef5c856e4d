// Package timing converts capture timestamps into SMF ticks.
package timing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/leandrodaf/midirec/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// DefaultResolution is the number of ticks per quarter note written to every file.
	DefaultResolution = smf.MetricTicks(480)
	// DefaultTempoBPM is the tempo assumed when none is configured.
	DefaultTempoBPM = 120.0

	// MaxDelta is the largest value a variable-length quantity can hold.
	MaxDelta = 0x0FFFFFFF
)

// ErrDeltaTooLarge is returned when a gap does not fit in a variable-length quantity.
var ErrDeltaTooLarge = errors.New("delta time exceeds variable-length quantity range")

// Converter maps time differences to ticks under a fixed tempo and resolution.
type Converter struct {
	resolution   smf.MetricTicks
	usPerQuarter int64
}

// NewConverter returns a Converter for the given resolution and tempo.
func NewConverter(resolution smf.MetricTicks, tempoBPM float64) (*Converter, error) {
	if resolution == 0 || resolution > 0x7FFF {
		return nil, fmt.Errorf("invalid resolution %d", resolution)
	}
	if tempoBPM <= 0 || math.IsNaN(tempoBPM) || math.IsInf(tempoBPM, 0) {
		return nil, fmt.Errorf("invalid tempo %v", tempoBPM)
	}
	us := int64(math.Round(60_000_000 / tempoBPM))
	if us < 1 || us > 0xFFFFFF {
		return nil, fmt.Errorf("tempo %v out of range", tempoBPM)
	}
	return &Converter{resolution: resolution, usPerQuarter: us}, nil
}

// Resolution returns the ticks per quarter note.
func (c *Converter) Resolution() smf.MetricTicks {
	return c.resolution
}

// MicrosecondsPerQuarter returns the tempo as microseconds per quarter note.
func (c *Converter) MicrosecondsPerQuarter() int64 {
	return c.usPerQuarter
}

// TempoBPM returns the effective tempo after rounding to whole microseconds.
func (c *Converter) TempoBPM() float64 {
	return 60_000_000 / float64(c.usPerQuarter)
}

// Ticks converts the time between prev and curr into ticks, rounding half up:
//
//	ticks = round((curr - prev) / usPerQuarter * resolution)
//
// Timestamps are truncated to microseconds first.
func (c *Converter) Ticks(prev, curr time.Duration) (uint32, error) {
	ticks, err := c.Position(prev, curr)
	if err != nil {
		return 0, err
	}
	if ticks > MaxDelta {
		return 0, fmt.Errorf("%w: %v", ErrDeltaTooLarge, curr-prev)
	}
	return uint32(ticks), nil
}

// Position is Ticks without the delta time limit: the tick position of curr
// on a time line that starts at origin.
func (c *Converter) Position(origin, curr time.Duration) (uint64, error) {
	if curr < origin {
		return 0, fmt.Errorf("%w: %v after %v", contracts.ErrTimestampRegression, origin, curr)
	}
	us := curr.Microseconds() - origin.Microseconds()
	return uint64((2*us*int64(c.resolution) + c.usPerQuarter) / (2 * c.usPerQuarter)), nil
}

// Duration converts ticks back into time at the converter's tempo.
func (c *Converter) Duration(ticks uint32) time.Duration {
	us := int64(ticks) * c.usPerQuarter / int64(c.resolution)
	return time.Duration(us) * time.Microsecond
}
