//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/midirec/sdk/contracts"
)

type dummyMIDIClient struct {
	logger contracts.Logger
}

// NewMIDIClient initializes a dummy MIDI client for non-Windows systems.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	options.Logger.Debug("Using dummy winmm client for non-Windows system")
	return &dummyMIDIClient{
		logger: options.Logger,
	}, nil
}

// ListDevices reports that winmm is unavailable on this platform.
func (m *dummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy winmm client")
	return nil, fmt.Errorf("%w: winmm is not available on this platform", contracts.ErrDevice)
}

// SelectDevice reports that winmm is unavailable on this platform.
func (m *dummyMIDIClient) SelectDevice(deviceID int) error {
	m.logger.Warn("SelectDevice called on dummy winmm client")
	return fmt.Errorf("%w: winmm is not available on this platform", contracts.ErrDevice)
}

// StartCapture logs a warning; no events are ever delivered.
func (m *dummyMIDIClient) StartCapture(eventChannel chan contracts.RawEvent) {
	m.logger.Warn("StartCapture called on dummy winmm client")
}

// Stop does nothing.
func (m *dummyMIDIClient) Stop() error {
	return nil
}
