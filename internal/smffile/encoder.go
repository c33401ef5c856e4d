// Package smffile stores recorded takes as Standard MIDI Files.
package smffile

import (
	"fmt"
	"io"

	"github.com/leandrodaf/midirec/internal/session"
	"github.com/leandrodaf/midirec/internal/timing"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Encoder serializes takes into single-track SMF documents.
type Encoder struct {
	conv      *timing.Converter
	trackName string
}

// NewEncoder returns an Encoder writing the converter's resolution and tempo.
// An empty trackName omits the track name meta event.
func NewEncoder(conv *timing.Converter, trackName string) *Encoder {
	return &Encoder{conv: conv, trackName: trackName}
}

// Build assembles the SMF document for a take: a header with the
// resolution, then one track holding the optional name and the tempo at
// delta 0, every event in order and End-of-Track.
func (e *Encoder) Build(take *session.Take) (*smf.SMF, error) {
	if take == nil || len(take.Events) == 0 {
		return nil, fmt.Errorf("empty take")
	}

	doc := smf.New()
	doc.TimeFormat = e.conv.Resolution()

	var track smf.Track
	if e.trackName != "" {
		track.Add(0, smf.MetaTrackSequenceName(e.trackName))
	}
	track.Add(0, smf.MetaTempo(e.conv.TempoBPM()))
	for i, ev := range take.Events {
		if ev.Delta > timing.MaxDelta {
			return nil, fmt.Errorf("event %d: %w", i, timing.ErrDeltaTooLarge)
		}
		track.Add(ev.Delta, ev.Data)
	}
	track.Close(0)

	if err := doc.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	return doc, nil
}

// Encode writes the SMF document for take to w.
func (e *Encoder) Encode(w io.Writer, take *session.Take) (int64, error) {
	doc, err := e.Build(take)
	if err != nil {
		return 0, err
	}
	n, err := doc.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return n, nil
}
