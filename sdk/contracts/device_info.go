package contracts

import "fmt"

// DeviceInfo describes a MIDI input port as reported by the OS.
type DeviceInfo struct {
	Index        int    // Position to pass to SelectDevice.
	Name         string // Port name.
	Manufacturer string // Empty when the driver does not report it.
	EntityName   string // Name of the entity the port belongs to.
}

// String formats the device the way --list prints it.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%d : %s", d.Index, d.Name)
}
