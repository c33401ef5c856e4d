//go:build !darwin && !windows
// +build !darwin,!windows

package midirtmidi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midirec/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/multierr"
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNoDeviceSelected  = errors.New("no MIDI device selected")
)

// ClientMid captures MIDI input through the RtMidi driver (ALSA on Linux).
type ClientMid struct {
	logger          contracts.Logger
	clock           contracts.Clock
	driver          *rtmididrv.Driver
	midiEventFilter *contracts.MIDIEventFilter
	eventChannel    atomic.Value // chan contracts.RawEvent

	mu       sync.Mutex
	in       drivers.In
	stopFn   func()
	stopOnce sync.Once
}

// NewMIDIClient opens the RtMidi driver.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrDevice, err)
	}
	options.Logger.Debug("RtMidi driver opened")

	return &ClientMid{
		logger:          options.Logger,
		clock:           options.Clock,
		driver:          drv,
		midiEventFilter: options.MIDIEventFilter,
	}, nil
}

// ListDevices lists the MIDI input ports known to the driver.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	ins, err := m.driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list MIDI inputs: %v", contracts.ErrDevice, err)
	}
	if len(ins) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, fmt.Errorf("%w: %w", contracts.ErrDevice, ErrNoMIDIDevices)
	}

	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = contracts.DeviceInfo{
			Index:      i,
			Name:       in.String(),
			EntityName: in.String(),
		}
	}
	return devices, nil
}

// SelectDevice opens the input port at deviceID, closing any previous one.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ins, err := m.driver.Ins()
	if err != nil {
		return fmt.Errorf("%w: failed to list MIDI inputs: %v", contracts.ErrDevice, err)
	}
	if deviceID < 0 || deviceID >= len(ins) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return fmt.Errorf("%w: %w %d (%d available)", contracts.ErrDevice, ErrInvalidMIDIDevice, deviceID, len(ins))
	}

	if err := m.closePort(); err != nil {
		m.logger.Warn("Failed to close previous MIDI input", m.logger.Field().Error("error", err))
	}

	in := ins[deviceID]
	if err := in.Open(); err != nil {
		m.logger.Error("Failed to open MIDI input", m.logger.Field().String("deviceName", in.String()))
		return fmt.Errorf("%w: failed to open %q: %v", contracts.ErrDevice, in.String(), err)
	}
	m.in = in
	m.logger.Info("MIDI device selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", in.String()))
	return nil
}

// StartCapture begins delivering events to eventChannel.
func (m *ClientMid) StartCapture(eventChannel chan contracts.RawEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if eventChannel == nil {
		m.logger.Error("StartCapture called with nil eventChannel")
		return
	}
	if m.in == nil {
		m.logger.Error("Cannot start capture", m.logger.Field().Error("error", ErrNoDeviceSelected))
		return
	}

	m.eventChannel.Store(eventChannel)
	if m.stopFn != nil {
		m.logger.Warn("Capture already started; replacing the event channel")
		return
	}

	stop, err := midi.ListenTo(m.in, m.handleMessage, midi.HandleError(func(err error) {
		m.logger.Warn("MIDI listener error", m.logger.Field().Error("error", err))
	}))
	if err != nil {
		m.logger.Error("Failed to start MIDI capture", m.logger.Field().Error("error", err))
		return
	}
	m.stopFn = stop
	m.logger.Debug("MIDI capture started")
}

// handleMessage stamps msg with the shared clock; the driver's own
// millisecond timestamp is not used.
func (m *ClientMid) handleMessage(msg midi.Message, _ int32) {
	ch, _ := m.eventChannel.Load().(chan contracts.RawEvent)
	if ch == nil {
		return
	}
	for _, event := range contracts.SplitPacket(m.clock(), msg) {
		if !m.midiEventFilter.Allows(event.Status) {
			continue
		}
		select {
		case ch <- event:
		default:
			m.logger.Warn("Event buffer full; dropping MIDI event", m.logger.Field().Uint8("status", event.Status))
		}
	}
}

// Stop stops listening, closes the port and the driver. It is safe to call
// more than once.
func (m *ClientMid) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.eventChannel.Store((chan contracts.RawEvent)(nil))
		err = multierr.Append(m.closePort(), m.driver.Close())
		if err != nil {
			err = fmt.Errorf("%w: %v", contracts.ErrDevice, err)
			return
		}
		m.logger.Debug("MIDI capture stopped and driver closed")
	})
	return err
}

func (m *ClientMid) closePort() error {
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
	}
	if m.in == nil {
		return nil
	}
	in := m.in
	m.in = nil
	return in.Close()
}
