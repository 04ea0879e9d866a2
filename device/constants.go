package device

import "fmt"

// Fixed-size limits backing the core's zero-allocation tables.
const (
	// MaxEndpoints is the number of endpoint numbers (0..MaxEndpoints-1);
	// the endpoint table supports the non-control ones (1..MaxEndpoints-1)
	// in both directions, and endpoint 0 is handled
	// separately as the control endpoint. The table's width is
	// 2*(MaxEndpoints-1) per the endpoint index formula.
	MaxEndpoints = 16

	// MaxStrings is the maximum number of string descriptors a device
	// registers.
	MaxStrings = 16

	// MaxEP0MaxPacketSize is the largest legal EP0 packet size.
	MaxEP0MaxPacketSize = 64

	// MaxControlBufferSize bounds the per-transfer control buffer used
	// for GET_STATUS/GET_CONFIGURATION/GET_INTERFACE replies and for the
	// device descriptor the core marshals itself; configuration and string
	// descriptors are sent straight from the bytes the class registered.
	MaxControlBufferSize = 512

	// MaxInterfaces is the number of interface numbers the device tracks
	// alternate-setting state for.
	MaxInterfaces = 8

	// maxQueuedUpcalls bounds how many class callbacks a single PHY event
	// or Complete* call can queue before they are delivered after the
	// core lock is released.
	maxQueuedUpcalls = 4
)

// Speed represents the negotiated USB connection speed.
type Speed uint8

// USB speeds this stack negotiates (USB 2.0 Specification; no SuperSpeed).
const (
	SpeedLow  Speed = iota // 1.5 Mbit/s
	SpeedFull              // 12 Mbit/s
	SpeedHigh              // 480 Mbit/s
)

// String returns a human-readable speed description.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed (1.5 Mbps)"
	case SpeedFull:
		return "Full Speed (12 Mbps)"
	case SpeedHigh:
		return "High Speed (480 Mbps)"
	default:
		return fmt.Sprintf("Unknown Speed (%d)", s)
	}
}

// MaxPacketSize0 returns EP0's default maximum packet size at this speed.
func (s Speed) MaxPacketSize0() uint16 {
	switch s {
	case SpeedLow:
		return 8
	default:
		return 64
	}
}

// State represents a device's position in the USB 2.0 chapter-9 state
// machine (§9.1). States form a strict partial order Attached < Powered <
// Default < Address < Configured; Suspended is tracked independently as a
// boolean on [Device] because any state may be suspended and resumed back
// into the same state it left.
type State uint8

// Device states as defined in USB 2.0 specification section 9.1.
const (
	StateAttached   State = iota // Attached to the bus, not yet powered
	StatePowered                 // Bus power present
	StateDefault                 // Reset to the default address (0)
	StateAddress                 // Host has assigned a unique address
	StateConfigured              // A configuration is active
)

// String returns a human-readable state description.
func (s State) String() string {
	switch s {
	case StateAttached:
		return "Attached"
	case StatePowered:
		return "Powered"
	case StateDefault:
		return "Default"
	case StateAddress:
		return "Address"
	case StateConfigured:
		return "Configured"
	default:
		return fmt.Sprintf("Unknown State (%d)", s)
	}
}
