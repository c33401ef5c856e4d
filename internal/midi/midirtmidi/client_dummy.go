//go:build darwin || windows
// +build darwin windows

package midirtmidi

import (
	"fmt"

	"github.com/leandrodaf/midirec/sdk/contracts"
)

type dummyMIDIClient struct {
	logger contracts.Logger
}

// NewMIDIClient returns a client that reports RtMidi as unavailable; the
// native driver serves this platform.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	options.Logger.Debug("Using dummy RtMidi client")
	return &dummyMIDIClient{logger: options.Logger}, nil
}

func (m *dummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	return nil, fmt.Errorf("%w: RtMidi client is not built for this platform", contracts.ErrDevice)
}

func (m *dummyMIDIClient) SelectDevice(deviceID int) error {
	return fmt.Errorf("%w: RtMidi client is not built for this platform", contracts.ErrDevice)
}

func (m *dummyMIDIClient) StartCapture(eventChannel chan contracts.RawEvent) {
	m.logger.Warn("StartCapture called on dummy RtMidi client")
}

func (m *dummyMIDIClient) Stop() error {
	return nil
}
