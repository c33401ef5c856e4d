//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/leandrodaf/midirec/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIIN windows.Handle

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_LONGDATA  = 0x3C4 // System exclusive buffer filled
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

var (
	ErrNoMIDIDevices     = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
)

// Struct representing MIDI device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// ClientMid manages MIDI input on Windows through winmm.
type ClientMid struct {
	logger          contracts.Logger
	clock           contracts.Clock
	eventChannel    atomic.Value // chan contracts.RawEvent
	handle          HMIDIIN
	portConn        bool
	started         bool
	mu              sync.Mutex
	midiEventFilter *contracts.MIDIEventFilter
	stopOnce        sync.Once
}

// Load the winmm.dll library and required functions
var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen       = winmm.NewProc("midiInOpen")
	procMidiInStart      = winmm.NewProc("midiInStart")
	procMidiInStop       = winmm.NewProc("midiInStop")
	procMidiInReset      = winmm.NewProc("midiInReset")
	procMidiInClose      = winmm.NewProc("midiInClose")
)

// The runtime keeps a limited number of callbacks, so one is shared by every client.
var (
	callbackOnce sync.Once
	callback     uintptr
)

// NewMIDIClient creates a MIDI client for Windows
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	if err := winmm.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrDevice, err)
	}
	options.Logger.Debug("MIDI client created for Windows")

	return &ClientMid{
		logger:          options.Logger,
		clock:           options.Clock,
		midiEventFilter: options.MIDIEventFilter,
	}, nil
}

func numDevices() int {
	r0, _, _ := procMidiInGetNumDevs.Call()
	return int(uint32(r0))
}

// ListDevices lists the available MIDI devices
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	n := numDevices()
	if n == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, fmt.Errorf("%w: %w", contracts.ErrDevice, ErrNoMIDIDevices)
	}

	devices := make([]contracts.DeviceInfo, 0, n)
	for i := 0; i < n; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			m.logger.Warn("Failed to get MIDI device information", m.logger.Field().Int("deviceID", i))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			Index:        i,
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// SelectDevice opens the MIDI input at deviceID, closing any previous one.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := numDevices(); deviceID < 0 || deviceID >= n {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return fmt.Errorf("%w: %w %d (%d available)", contracts.ErrDevice, ErrInvalidMIDIDevice, deviceID, n)
	}

	if m.portConn {
		if err := m.closeDevice(); err != nil {
			return fmt.Errorf("%w: failed to close previous MIDI device: %v", contracts.ErrDevice, err)
		}
	}

	callbackOnce.Do(func() {
		callback = windows.NewCallback(midiInCallback)
	})

	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&m.handle)),
		uintptr(deviceID),
		callback,
		uintptr(unsafe.Pointer(m)),
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		m.logger.Error("Failed to open MIDI device",
			m.logger.Field().Int("deviceID", deviceID),
			m.logger.Field().Error("error", err))
		return fmt.Errorf("%w: failed to open MIDI device %d: mmresult %d", contracts.ErrDevice, deviceID, r1)
	}

	m.portConn = true
	m.logger.Info("MIDI device selected", m.logger.Field().Int("deviceID", deviceID))
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
	if !m.portConn || m.handle == 0 {
		m.logger.Error("Cannot start capture: no MIDI device selected")
		return
	}

	m.eventChannel.Store(eventChannel)
	if m.started {
		m.logger.Warn("Capture already started; replacing the event channel")
		return
	}

	r1, _, err := procMidiInStart.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error("Failed to start MIDI capture", m.logger.Field().Error("error", err))
		return
	}
	m.started = true
	m.logger.Debug("MIDI capture started")
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	m := (*ClientMid)(unsafe.Pointer(dwInstance))

	switch wMsg {
	case MIM_OPEN:
		m.logger.Debug("MIDI device opened")
	case MIM_CLOSE:
		m.logger.Debug("MIDI device closed")
	case MIM_DATA, MIM_MOREDATA:
		// dwParam1 packs status and up to two data bytes, low byte first.
		packed := []byte{byte(dwParam1), byte(dwParam1 >> 8), byte(dwParam1 >> 16)}
		event, ok := contracts.NewRawEvent(m.clock(), packed[0], packed[1:]...)
		if !ok {
			return 0
		}
		if !m.midiEventFilter.Allows(event.Status) {
			return 0
		}

		if ch, ok := m.eventChannel.Load().(chan contracts.RawEvent); ok && ch != nil {
			select {
			case ch <- event:
			default:
				m.logger.Warn("Event buffer full; dropping MIDI event", m.logger.Field().Uint8("status", event.Status))
			}
		}
	case MIM_LONGDATA:
		// System exclusive is not recorded.
	case MIM_ERROR, MIM_LONGERROR:
		m.logger.Warn("Invalid MIDI message received", m.logger.Field().Uint64("param", uint64(dwParam1)))
	default:
		m.logger.Debug("Unknown MIDI message", m.logger.Field().Uint64("msg", uint64(wMsg)))
	}

	return 0
}

// Stop terminates MIDI event capture and closes the device.
// Calling it again, or before a device was selected, does nothing.
func (m *ClientMid) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.eventChannel.Store((chan contracts.RawEvent)(nil))
		if !m.portConn {
			return
		}
		if err = m.closeDevice(); err != nil {
			err = fmt.Errorf("%w: failed to stop MIDI capture: %v", contracts.ErrDevice, err)
			return
		}
		m.logger.Debug("MIDI capture stopped and device closed")
	})
	return err
}

// closeDevice stops the input and releases the handle.
func (m *ClientMid) closeDevice() error {
	if m.handle == 0 {
		return errors.New("invalid MIDI device handle")
	}

	if m.started {
		if r1, _, _ := procMidiInStop.Call(uintptr(m.handle)); r1 != 0 {
			return fmt.Errorf("midiInStop: mmresult %d", r1)
		}
		m.started = false
	}
	procMidiInReset.Call(uintptr(m.handle))

	if r1, _, _ := procMidiInClose.Call(uintptr(m.handle)); r1 != 0 {
		return fmt.Errorf("midiInClose: mmresult %d", r1)
	}

	m.portConn = false
	m.handle = 0
	return nil
}
