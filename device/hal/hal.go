package hal

// Speed represents the negotiated USB connection speed.
type Speed uint8

// USB speed constants (USB 2.0 Specification).
const (
	SpeedUnknown Speed = iota // Not connected or not yet negotiated
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
	SpeedHigh                 // High Speed (480 Mbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	case SpeedHigh:
		return "High Speed"
	default:
		return "Unknown"
	}
}

// TransferType identifies the kind of data an endpoint moves.
type TransferType uint8

// Endpoint transfer types, matching the low two bits of bmAttributes.
const (
	TransferControl TransferType = iota
	TransferIsochronous
	TransferBulk
	TransferInterrupt
)

// EndpointCapability describes what one hardware endpoint slot can do.
//
// [Driver.EndpointTable] returns one of these per non-control endpoint slot
// the hardware exposes (for example an IN-only FIFO, or a fixed byte
// budget). The device core does not read this table: every endpoint_add
// request is passed to [Driver.EndpointAdd], and a PHY refuses one its
// hardware cannot satisfy by returning an error there.
type EndpointCapability struct {
	// DirectionMask restricts which direction(s) this slot supports: bit 0
	// (0x01) = OUT capable, bit 1 (0x02) = IN capable. Most microcontroller
	// USB peripherals expose per-direction FIFOs, so a slot is rarely both.
	DirectionMask uint8

	// AllowedTypes is a bitmask of 1<<TransferType for each transfer type
	// this slot's hardware FIFO can be configured as.
	AllowedTypes uint8

	// ByteCost is the hardware FIFO budget this slot consumes once
	// configured, in bytes. Zero means the slot has no fixed-cost
	// constraint worth reporting.
	ByteCost uint16
}

// SupportsDirection reports whether dir (0 = OUT, 0x80 = IN) is usable on
// this slot.
func (c EndpointCapability) SupportsDirection(dir uint8) bool {
	if dir&0x80 != 0 {
		return c.DirectionMask&0x02 != 0
	}
	return c.DirectionMask&0x01 != 0
}

// SupportsType reports whether t can be configured on this slot.
func (c EndpointCapability) SupportsType(t TransferType) bool {
	return c.AllowedTypes&(1<<uint(t)) != 0
}

// Events is the set of callbacks a PHY driver invokes to report bus
// activity and transfer completion to the core. The core implements
// Events; a PHY driver is handed one at [Driver.Init] and calls its
// methods directly from whatever context delivers the hardware event —
// an interrupt handler, or [Driver.Process] if events are queued.
//
// Every method here must be called with the PHY's own state already
// consistent for a reentrant call: the core may call back into [Driver]
// synchronously from inside an Events method (e.g. EP0Setup commonly
// leads to an immediate EP0Write for the data stage of a short control
// read). A PHY must not call two Events methods concurrently from
// different threads/interrupt levels without its own serialization.
type Events interface {
	// Power reports bus power/VBUS transitions. on=true means bus power
	// (or connection) is present.
	Power(on bool)

	// Suspend reports a bus suspend/resume transition.
	Suspend(on bool)

	// SOF reports a start-of-frame with the 11-bit frame number. Only
	// delivered while SOF interrupts are enabled (see [Driver.SOFEnable]).
	SOF(frame uint16)

	// Reset reports a bus reset condition.
	Reset()

	// EP0Setup reports that a new 8-byte SETUP packet is available; the
	// core retrieves it via [Driver.EP0SetupReadResult].
	EP0Setup()

	// EP0In reports that a previously issued [Driver.EP0Write] completed.
	EP0In()

	// EP0Out reports that a previously issued [Driver.EP0Read] completed;
	// the core retrieves the byte count via [Driver.EP0ReadResult].
	EP0Out()

	// In reports that a previously issued [Driver.EndpointWrite] on ep
	// completed.
	In(ep uint8)

	// Out reports that a previously issued [Driver.EndpointRead] on ep
	// completed; the core retrieves the byte count via
	// [Driver.EndpointReadResult].
	Out(ep uint8)
}

// Driver is the hardware abstraction a USB PHY implementation provides to
// the device core. Every method is non-blocking: data-moving methods
// (EP0Read, EP0Write, EndpointRead, EndpointWrite) issue a single transfer
// to the hardware and return immediately; completion is reported later
// through the [Events] interface handed to [Driver.Init].
//
// Driver methods are called only from within the core's critical section
// (see the device package's lock discipline); a Driver implementation
// does not need its own locking against concurrent calls from the core,
// but must still be safe to call from within an [Events] callback it is
// itself delivering, since the core frequently does so.
type Driver interface {
	// Init prepares the hardware and registers events as the delivery
	// target for all subsequent bus activity. Init is called exactly once
	// before any other Driver method.
	Init(events Events) error

	// Deinit releases hardware resources. No other Driver method is
	// called after Deinit returns.
	Deinit() error

	// Connect drives the D+/D- pull-up to attach to the bus. Idempotent:
	// calling Connect while already connected leaves the bus attached
	// exactly once.
	Connect() error

	// Disconnect releases the pull-up, detaching from the bus. Idempotent.
	Disconnect() error

	// Configure performs post-SET_CONFIGURATION hardware housekeeping,
	// called once the core has moved to the Configured state.
	Configure() error

	// Unconfigure performs pre-SET_CONFIGURATION teardown, called before
	// the core leaves the Configured state.
	Unconfigure() error

	// SOFEnable enables start-of-frame interrupt delivery via
	// [Events.SOF].
	SOFEnable() error

	// SOFDisable disables start-of-frame interrupt delivery.
	SOFDisable() error

	// SetAddress latches the device's bus address in hardware. Called
	// from the Status-stage completion of SET_ADDRESS, i.e. after the USB
	// 2.0 status stage has already been acknowledged to the host, per
	// USB 2.0 §9.4.6. A PHY whose hardware requires the address to be set
	// before the status stage IN token is sent must compensate
	// internally; this contract does not do so on its behalf.
	SetAddress(address uint8) error

	// EP0SetMaxPacket negotiates EP0's packet size and returns the value
	// hardware actually settled on (some PHYs only support a fixed size).
	EP0SetMaxPacket(n uint16) (uint16, error)

	// EP0SetupReadResult copies the most recently received 8-byte SETUP
	// packet into buf, following an [Events.EP0Setup] callback. Returns
	// the number of bytes copied (8, or 0 if none is pending).
	EP0SetupReadResult(buf []byte) int

	// EP0Read issues a read of up to len(buf) bytes on EP0's OUT data
	// stage. Completion is reported via [Events.EP0Out]; the byte count
	// is retrieved with EP0ReadResult.
	EP0Read(buf []byte) error

	// EP0ReadResult returns the number of bytes the most recently
	// completed EP0Read delivered into its buffer.
	EP0ReadResult() int

	// EP0Write issues a write of data on EP0's IN data or status stage.
	// n=0 sends a zero-length packet (used both for ZLP termination of a
	// short IN transfer and for the OUT-direction status stage).
	// Completion is reported via [Events.EP0In].
	EP0Write(data []byte) error

	// EP0Stall stalls both directions of EP0, signaling a protocol error
	// to the host.
	EP0Stall() error

	// EndpointAdd creates a hardware endpoint per cfg. Called only while
	// the core's endpoint-add window is open.
	EndpointAdd(cfg EndpointConfig) error

	// EndpointRemove tears down the hardware endpoint at address addr.
	EndpointRemove(addr uint8) error

	// EndpointStall stalls the endpoint at addr.
	EndpointStall(addr uint8) error

	// EndpointUnstall clears a stall condition at addr.
	EndpointUnstall(addr uint8) error

	// EndpointAbort cancels any in-flight transfer at addr. After it
	// returns, no further [Events.In] or [Events.Out] fires for the
	// cancelled transfer and the PHY no longer references the caller's
	// buffer.
	EndpointAbort(addr uint8) error

	// EndpointRead issues a read of up to len(buf) bytes on the OUT
	// endpoint at addr. Returns false if the endpoint cannot accept a
	// read right now (stalled, or already has one pending). Completion
	// is reported via [Events.Out]; the byte count is retrieved with
	// EndpointReadResult.
	EndpointRead(addr uint8, buf []byte) bool

	// EndpointReadResult returns the number of bytes the most recently
	// completed EndpointRead at addr delivered.
	EndpointReadResult(addr uint8) int

	// EndpointWrite issues a write of data on the IN endpoint at addr.
	// Returns false if the endpoint cannot accept a write right now.
	// Completion is reported via [Events.In].
	EndpointWrite(addr uint8, data []byte) bool

	// EndpointTable reports the hardware's non-control endpoint slots and
	// their capabilities, in a fixed order. The device core does not call
	// it; EndpointAdd requests are not validated against it up front.
	EndpointTable() []EndpointCapability

	// Process drains any interrupts queued by an ISR trampoline and
	// delivers them via Events. A PHY that calls Events directly from its
	// interrupt handler may implement this as a no-op.
	Process()

	// IsConnected reports whether the device currently perceives itself
	// as attached to a host (bus power present and pull-up engaged).
	IsConnected() bool

	// GetSpeed returns the negotiated USB connection speed, or
	// SpeedUnknown before negotiation completes.
	GetSpeed() Speed
}

// EndpointConfig describes the hardware configuration requested for one
// non-control endpoint. This is the platform-agnostic representation
// [Driver.EndpointAdd] consumes; it mirrors the descriptor fields the
// class layer already produced, so no translation happens at the call
// site.
type EndpointConfig struct {
	Address       uint8  // Endpoint address including direction bit.
	Attributes    uint8  // Transfer type and sync/usage flags (bmAttributes).
	MaxPacketSize uint16 // Maximum packet size, ≤ 1024.
	Interval      uint8  // Polling interval for interrupt/isochronous endpoints.
}

// Number returns the endpoint number (0-15).
func (e EndpointConfig) Number() uint8 {
	return e.Address & 0x0F
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e EndpointConfig) IsIn() bool {
	return e.Address&0x80 != 0
}

// TransferType returns the configured transfer type.
func (e EndpointConfig) TransferType() TransferType {
	return TransferType(e.Attributes & 0x03)
}
