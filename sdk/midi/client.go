package midi

import (
	"github.com/leandrodaf/midirec/sdk/contracts"
)

// NewMIDIClient creates a new MIDI input client for the current operating
// system. It applies default options and initializes the client.
//
// Pass the same clock to WithClock and to WithRecorderClock when the client
// feeds a Recorder; events are stamped with it.
func NewMIDIClient(opts ...contracts.Option) (contracts.ClientMIDI, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(&options)
	if err != nil {
		return nil, err
	}

	return client, nil
}
