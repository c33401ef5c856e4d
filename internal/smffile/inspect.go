package smffile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/leandrodaf/midirec/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrMalformed is wrapped by every structural problem Verify finds.
var ErrMalformed = errors.New("malformed SMF data")

// Layout describes the chunk structure of an SMF file.
type Layout struct {
	HeaderLength uint32
	Format       uint16
	Tracks       uint16
	Division     uint16
	TrackLengths []uint32
}

// Verify walks the chunks and events of an SMF byte stream without
// interpreting them. It checks that the header is six bytes long, that
// every track ends with End-of-Track exactly at the end of its chunk and
// that nothing follows the last chunk.
func Verify(data []byte) (*Layout, error) {
	if len(data) < 14 || string(data[:4]) != "MThd" {
		return nil, fmt.Errorf("%w: missing MThd header", ErrMalformed)
	}
	l := &Layout{
		HeaderLength: binary.BigEndian.Uint32(data[4:8]),
		Format:       binary.BigEndian.Uint16(data[8:10]),
		Tracks:       binary.BigEndian.Uint16(data[10:12]),
		Division:     binary.BigEndian.Uint16(data[12:14]),
	}
	if l.HeaderLength != 6 {
		return nil, fmt.Errorf("%w: header length %d", ErrMalformed, l.HeaderLength)
	}

	pos := 14
	for i := 0; i < int(l.Tracks); i++ {
		if len(data)-pos < 8 || string(data[pos:pos+4]) != "MTrk" {
			return nil, fmt.Errorf("%w: track %d: missing MTrk chunk", ErrMalformed, i)
		}
		n := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		pos += 8
		if uint64(len(data)-pos) < uint64(n) {
			return nil, fmt.Errorf("%w: track %d: chunk length %d exceeds data", ErrMalformed, i, n)
		}
		if err := verifyTrack(data[pos : pos+int(n)]); err != nil {
			return nil, fmt.Errorf("%w: track %d: %v", ErrMalformed, i, err)
		}
		l.TrackLengths = append(l.TrackLengths, n)
		pos += int(n)
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-pos)
	}
	return l, nil
}

func verifyTrack(body []byte) error {
	var running byte
	for pos := 0; pos < len(body); {
		_, n, err := readVLQ(body[pos:])
		if err != nil {
			return err
		}
		pos += n
		if pos >= len(body) {
			return errors.New("delta time without event")
		}

		status := body[pos]
		switch {
		case status == 0xFF:
			if pos+1 >= len(body) {
				return errors.New("truncated meta event")
			}
			typ := body[pos+1]
			length, n, err := readVLQ(body[pos+2:])
			if err != nil {
				return err
			}
			end := pos + 2 + n + int(length)
			if end > len(body) {
				return errors.New("truncated meta event")
			}
			if typ == 0x2F {
				if length != 0 || end != len(body) {
					return errors.New("End-of-Track is not the last event")
				}
				return nil
			}
			pos = end
			running = 0
		case status == 0xF0 || status == 0xF7:
			length, n, err := readVLQ(body[pos+1:])
			if err != nil {
				return err
			}
			pos += 1 + n + int(length)
			running = 0
		case status&0x80 != 0:
			size := contracts.DataLength(status)
			if size < 0 {
				return fmt.Errorf("unexpected status 0x%02X", status)
			}
			running = status
			pos += 1 + size
		default:
			if running == 0 {
				return errors.New("running status without a previous status")
			}
			pos += contracts.DataLength(running)
		}
		if pos > len(body) {
			return errors.New("truncated event")
		}
	}
	return errors.New("missing End-of-Track")
}

// readVLQ decodes a variable-length quantity of at most four bytes.
func readVLQ(b []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		if i >= len(b) {
			return 0, 0, errors.New("truncated variable-length quantity")
		}
		v = v<<7 | uint32(b[i]&0x7F)
		if b[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errors.New("variable-length quantity longer than four bytes")
}

// Summary is a readable description of a recorded file.
type Summary struct {
	Layout     *Layout
	Resolution uint16
	TempoBPM   float64
	Events     int // Channel messages, meta events excluded.
	Ticks      uint64
	Length     time.Duration
}

// Summarize verifies data and reads it back with an SMF reader.
func Summarize(data []byte) (*Summary, error) {
	layout, err := Verify(data)
	if err != nil {
		return nil, err
	}
	doc, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	s := &Summary{Layout: layout, TempoBPM: 120}
	if mt, ok := doc.TimeFormat.(smf.MetricTicks); ok {
		s.Resolution = mt.Resolution()
	}
	for _, track := range doc.Tracks {
		var ticks uint64
		for _, ev := range track {
			ticks += uint64(ev.Delta)
			msg := ev.Message
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				usPerQuarter := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if usPerQuarter > 0 {
					s.TempoBPM = 60_000_000 / float64(usPerQuarter)
				}
			}
			if len(msg) > 0 && contracts.DataLength(msg[0]) >= 0 {
				s.Events++
			}
		}
		if ticks > s.Ticks {
			s.Ticks = ticks
		}
	}
	if s.Resolution > 0 {
		s.Length = time.Duration(float64(s.Ticks) / float64(s.Resolution) * 60 / s.TempoBPM * float64(time.Second))
	}
	return s, nil
}
