package device

// ClassCallbacks is the contract a class-level driver (CDC, HID, MSC, or a
// vendor-specific function) implements to participate in enumeration and
// control transfers. The core calls these methods synchronously, always
// after releasing its own lock (see the package doc for the lock
// discipline this makes safe): a class driver may call the matching
// Complete* method on [Device] inline, from within the callback it was
// just given, without risking deadlock.
//
// SetConfiguration, SetInterface, and Request are "begin" calls: the core
// parks the in-flight control transfer and waits for the class to resolve
// it asynchronously via [Device.CompleteSetConfiguration],
// [Device.CompleteSetInterface], or [Device.CompleteRequest]. A class that
// can decide synchronously is free to call the matching Complete* method
// before its begin callback even returns.
type ClassCallbacks interface {
	// StateChange is called whenever the device's [State] changes.
	StateChange(old, new State)

	// Reset is called on every USB bus reset.
	Reset()

	// SOF is called once per start-of-frame, only while SOF delivery is
	// enabled (see [Device.EnableSOF]).
	SOF(frame uint16)

	// SetConfiguration begins a SET_CONFIGURATION request for the given
	// configuration value (0 = unconfigure). The class must eventually
	// call [Device.CompleteSetConfiguration].
	SetConfiguration(value uint8)

	// SetInterface begins a SET_INTERFACE request selecting alt on the
	// given interface number. The class must eventually call
	// [Device.CompleteSetInterface].
	SetInterface(iface, alt uint8)

	// Request is called for every SETUP packet before standard dispatch,
	// giving the class first refusal on class/vendor requests (and
	// visibility into standard ones). The class must eventually call
	// [Device.CompleteRequest].
	Request(setup *SetupPacket)

	// RequestXferDone reports that the data stage following a Request
	// ended, successfully or not. aborted is true if a bus reset or a new
	// SETUP packet interrupted the transfer before it finished normally;
	// buffers the class handed to the data stage are safe to release
	// once this is called.
	RequestXferDone(setup *SetupPacket, aborted bool)
}
