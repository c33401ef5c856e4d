package contracts

import "time"

// RawEvent is a single MIDI channel message as captured from an input port.
type RawEvent struct {
	Timestamp time.Duration // Capture time, measured from the Clock origin.
	Status    byte          // Status byte (command in the high nibble, channel in the low nibble).
	Data      [2]byte       // Data bytes; only the first Len()-1 are meaningful.
	Size      uint8         // Number of data bytes (0-2).
}

// Len returns the encoded length of the message in bytes.
func (e RawEvent) Len() int {
	return 1 + int(e.Size)
}

// Bytes returns the status byte followed by its data bytes.
func (e RawEvent) Bytes() []byte {
	b := make([]byte, 0, 3)
	b = append(b, e.Status)
	return append(b, e.Data[:e.Size]...)
}

// NewRawEvent builds a RawEvent from a status byte and its data bytes.
// It returns false if the status is not a channel message or if the
// number of data bytes does not match the status.
func NewRawEvent(ts time.Duration, status byte, data ...byte) (RawEvent, bool) {
	n := DataLength(status)
	if n < 0 || len(data) < n {
		return RawEvent{}, false
	}
	ev := RawEvent{Timestamp: ts, Status: status, Size: uint8(n)}
	copy(ev.Data[:], data[:n])
	return ev, true
}

// DataLength returns the number of data bytes that follow a channel
// message status byte, or -1 for anything that is not a channel message
// (running status data, system common, system exclusive, real-time).
func DataLength(status byte) int {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		return 2
	case 0xC0, 0xD0:
		return 1
	default:
		return -1
	}
}

// SplitPacket splits a packet of concatenated channel messages into raw
// events that all share the same timestamp. System bytes (sysex, clock,
// active sensing and friends) are skipped together with their payload.
func SplitPacket(ts time.Duration, data []byte) []RawEvent {
	var events []RawEvent
	for i := 0; i < len(data); {
		status := data[i]
		n := DataLength(status)
		if n < 0 || i+1+n > len(data) {
			i++
			continue
		}
		if ev, ok := NewRawEvent(ts, status, data[i+1:i+1+n]...); ok {
			events = append(events, ev)
		}
		i += 1 + n
	}
	return events
}

// ClientMIDI defines an interface for MIDI input operations.
type ClientMIDI interface {
	Stop() error                             // Stops capturing and releases the device handle. Safe to call more than once.
	ListDevices() ([]DeviceInfo, error)      // Lists all available MIDI input devices.
	SelectDevice(deviceID int) error         // Opens a MIDI input by index; wraps ErrDevice on failure.
	StartCapture(eventChannel chan RawEvent) // Starts delivering captured events to the given channel.
}
