package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midirec/internal/midi/mididarwin"
	"github.com/leandrodaf/midirec/internal/midi/midirtmidi"
	"github.com/leandrodaf/midirec/internal/midi/midiwindows"
	"github.com/leandrodaf/midirec/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system is not supported by the MIDI client.
var ErrUnsupportedOS = errors.New("unsupported operating system")

type clientInitializer func(*contracts.ClientOptions) (contracts.ClientMIDI, error)

// clientInitializers maps OS names to corresponding MIDI client initializers.
var clientInitializers = map[string]clientInitializer{
	"darwin":  mididarwin.NewMIDIClient,  // CoreMIDI.
	"windows": midiwindows.NewMIDIClient, // winmm.
	"linux":   midirtmidi.NewMIDIClient,  // RtMidi over ALSA.
	"freebsd": midirtmidi.NewMIDIClient,
	"netbsd":  midirtmidi.NewMIDIClient,
	"openbsd": midirtmidi.NewMIDIClient,
}

// NewClient initializes a MIDI client based on the current operating system.
// It returns ErrUnsupportedOS, wrapped in contracts.ErrDevice, if no driver
// serves the OS.
func NewClient(opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	return newClientFor(runtime.GOOS, opts)
}

func newClientFor(goos string, opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	if initializer, exists := clientInitializers[goos]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %w: %s", contracts.ErrDevice, ErrUnsupportedOS, goos)
}
