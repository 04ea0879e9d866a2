package device

import (
	"sync"

	"github.com/ardnew/usbd/device/hal"
	"github.com/ardnew/usbd/pkg"
)

// debugAssertions gates the panics the core raises when a class driver
// violates the Complete* contract (resolving a callback that was never
// outstanding, or resolving the wrong one). Leave enabled in development;
// a release build can disable it with [SetDebugAssertions] once the class
// integration is trusted, trading a crash for silently ignoring the
// misuse.
var debugAssertions = true

// SetDebugAssertions toggles whether a protocol-contract violation by the
// class layer panics (true, the default) or is silently ignored (false).
func SetDebugAssertions(enabled bool) {
	debugAssertions = enabled
}

func assertFail(msg string) {
	pkg.LogError(pkg.ComponentDevice, "assertion failed", "detail", msg)
	if debugAssertions {
		panic("usbd: " + msg)
	}
}

// deferredAction names a core-internal continuation recorded by a
// Complete* call and run by [Device.leave] immediately before the lock is
// released. A continuation only ever touches core or PHY state — it never
// calls into class code, which is what makes running it still under the
// lock safe (class upcalls are queued separately and always run after the
// lock is released; see [Device.leave]).
type deferredAction uint8

const (
	deferredNone deferredAction = iota
	deferredFinishSetConfiguration
	deferredFinishSetInterface
)

// upcallKind identifies which [ClassCallbacks] method a queued upcall
// resolves to.
type upcallKind uint8

const (
	upcallStateChange upcallKind = iota
	upcallReset
	upcallSOF
	upcallSetConfiguration
	upcallSetInterface
	upcallRequest
	upcallRequestXferDone
	upcallEndpointComplete
)

// upcallEntry is one queued class callback, captured under the lock and
// delivered by [Device.leave] after the lock is released.
type upcallEntry struct {
	kind upcallKind

	old, new State
	frame     uint16
	value     uint8
	iface     uint8
	alt       uint8
	setup     SetupPacket
	aborted   bool

	addr       uint8
	epCallback EndpointCallback
}

// Device is the core of a USB 2.0 device-side protocol stack: the state
// machine, endpoint table, and control transfer engine bound to one PHY
// driver and one class driver.
//
// Every exported method and every PHY event entry point acquires Device's
// internal lock exactly once, via enter/leave, and never nests the
// acquisition; upcalls into the class driver always happen after the lock
// has been released (see [Device.leave]), which is what makes it safe for
// a class driver to call a Complete* method synchronously, inline, from
// within the callback it was just given.
type Device struct {
	mu sync.Mutex

	phy   hal.Driver
	class ClassCallbacks

	descriptor       *DeviceDescriptor
	configDescriptor []byte
	strings          [MaxStrings][]byte

	state     State
	suspended bool
	connected bool
	address   uint8
	speed     Speed

	configValue         uint8
	remoteWakeupEnabled bool
	altSetting          [MaxInterfaces]uint8

	ep0MaxPacket        uint16
	endpointWindowOpen  bool
	endpoints           endpointTable
	sofEnabled          bool

	ctrl controlTransfer

	// pendingSetup holds a Setup decoded while the previous control
	// transfer's begin-call was still outstanding: the class is told about
	// it immediately (§4.3, "the engine always calls callback_request
	// first"), but it is not armed onto ctrl until the stale callback
	// resolves and frees the record (see [Device.resetTransfer]).
	pendingSetup    SetupPacket
	pendingSetupSet bool

	deferred   deferredAction
	deferredOK bool

	upcalls   [maxQueuedUpcalls]upcallEntry
	upcallLen int
}

// NewDevice creates a Device bound to phy and class. The device descriptor
// must already be populated by the caller (vendor/product IDs, string
// indices, bMaxPacketSize0); it is not copied, so it must outlive the
// Device.
func NewDevice(phy hal.Driver, class ClassCallbacks, desc *DeviceDescriptor) *Device {
	d := &Device{
		phy:        phy,
		class:      class,
		descriptor: desc,
		state:      StateAttached,
		speed:      SpeedFull,
	}
	d.endpoints.phy = phy
	return d
}

// Init brings up the PHY and negotiates EP0's packet size. Init must be
// called exactly once before any PHY event entry point fires.
func (d *Device) Init() error {
	if err := d.phy.Init(d); err != nil {
		return err
	}
	negotiated, err := d.phy.EP0SetMaxPacket(d.speed.MaxPacketSize0())
	if err != nil {
		return err
	}
	d.ep0MaxPacket = negotiated
	return nil
}

// Deinit tears down the PHY. No PHY event entry point may fire after
// Deinit returns.
func (d *Device) Deinit() error {
	return d.phy.Deinit()
}

// SetConfigurationDescriptor installs the fully marshaled configuration
// descriptor (header, interfaces, endpoints, and any class sub-descriptors
// nested by the caller) served for GET_DESCRIPTOR(Configuration). The
// bytes are stored by reference, not copied, and must remain valid and
// unmutated for the life of the Device — per §5, descriptor buffers are
// read-only after initialization and the core may hand a pointer into
// them straight to the PHY for the IN stage.
func (d *Device) SetConfigurationDescriptor(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configDescriptor = data
}

// SetString installs a pre-encoded string descriptor (including index 0,
// the language ID list) at index. The data is stored by reference.
func (d *Device) SetString(index uint8, data []byte) {
	if int(index) >= len(d.strings) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strings[index] = data
}

// State returns the device's current position in the chapter-9 state
// machine.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsSuspended reports whether the device is currently suspended. Suspend
// is tracked independently of [Device.State] because any state may be
// suspended and later resumed back into itself.
func (d *Device) IsSuspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

// Address returns the device's current bus address (0 before SET_ADDRESS).
func (d *Device) Address() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// Configuration returns the active configuration value (0 = unconfigured).
func (d *Device) Configuration() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configValue
}

// Connect asks the PHY to engage the D+/D- pull-up and attach to the bus.
// Idempotent per §8: calling Connect while already connected leaves the
// bus attached exactly once and does not touch the PHY a second time.
func (d *Device) Connect() error {
	d.enter()
	defer d.leave()
	if d.connected {
		return nil
	}
	if err := d.phy.Connect(); err != nil {
		return err
	}
	d.connected = true
	return nil
}

// Disconnect asks the PHY to release the bus pull-up. Idempotent, and
// returns the device to the Attached state as if it had never been
// powered, since a detached device no longer has a host to enumerate
// with.
func (d *Device) Disconnect() error {
	d.enter()
	defer d.leave()
	if !d.connected {
		return nil
	}
	if err := d.phy.Disconnect(); err != nil {
		return err
	}
	d.connected = false
	d.abortControlTransfer()
	d.endpoints.removeAll()
	old := d.state
	d.state = StateAttached
	if old != d.state {
		d.queueUpcall(upcallEntry{kind: upcallStateChange, old: old, new: d.state})
	}
	return nil
}

// IsConnected reports whether [Device.Connect] has been called without a
// subsequent [Device.Disconnect].
func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// EnableSOF toggles start-of-frame delivery via [ClassCallbacks.SOF].
func (d *Device) EnableSOF(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sofEnabled = enabled
	if enabled {
		_ = d.phy.SOFEnable()
	} else {
		_ = d.phy.SOFDisable()
	}
}

// --- Endpoint manager, exposed to class code (§4.4) ---

// EndpointAdd enables a non-control endpoint, asking the PHY to create it.
// Permitted only while a SET_CONFIGURATION request is being processed or
// the device is moving out of Configured (invariant 2); returns false
// otherwise, or if the address is EP0, max_packet exceeds 1024, or the
// endpoint is already enabled.
func (d *Device) EndpointAdd(addr uint8, maxPacket uint16, attributes uint8, interval uint8, cb EndpointCallback) bool {
	d.enter()
	defer d.leave()
	if !d.endpointWindowOpen {
		return false
	}
	return d.endpoints.add(addr, maxPacket, attributes, interval, cb)
}

// EndpointRemove aborts any pending transfer on addr, then disables it.
func (d *Device) EndpointRemove(addr uint8) {
	d.enter()
	defer d.leave()
	d.endpoints.remove(addr)
}

// EndpointRemoveAll sweeps every enabled non-control endpoint.
func (d *Device) EndpointRemoveAll() {
	d.enter()
	defer d.leave()
	d.endpoints.removeAll()
}

// EndpointStall sets the Stalled flag on addr, cancelling any pending
// transfer.
func (d *Device) EndpointStall(addr uint8) bool {
	d.enter()
	defer d.leave()
	return d.endpoints.stall(addr)
}

// EndpointUnstall clears the Stalled flag on addr. A transfer pending at
// the moment of the unstall is also cancelled; the host is expected to
// re-issue it.
func (d *Device) EndpointUnstall(addr uint8) bool {
	d.enter()
	defer d.leave()
	return d.endpoints.unstall(addr)
}

// EndpointAbort asks the PHY to cancel any in-flight transfer on addr.
func (d *Device) EndpointAbort(addr uint8) {
	d.enter()
	defer d.leave()
	d.endpoints.abort(addr)
}

// ReadStart issues one PHY read on the OUT endpoint at addr. max must be
// at least the endpoint's configured max packet size.
func (d *Device) ReadStart(addr uint8, buf []byte, max int) bool {
	d.enter()
	defer d.leave()
	return d.endpoints.readStart(addr, buf, max)
}

// ReadFinish returns the byte count delivered by the most recently
// completed read on addr. Call it from the [EndpointCallback] registered
// with [Device.EndpointAdd] — that callback runs after the core lock has
// already been released (see [Device.In]), so this is safe to call
// synchronously from within it.
func (d *Device) ReadFinish(addr uint8) int {
	d.enter()
	defer d.leave()
	return d.endpoints.readFinish(addr)
}

// WriteStart issues one PHY write on the IN endpoint at addr. data must
// be at most the endpoint's configured max packet size.
func (d *Device) WriteStart(addr uint8, data []byte) bool {
	d.enter()
	defer d.leave()
	return d.endpoints.writeStart(addr, data)
}

// WriteFinish returns the size accepted by the most recently completed
// write on addr. Like [Device.ReadFinish], it is safe to call from within
// the [EndpointCallback] registered with [Device.EndpointAdd].
func (d *Device) WriteFinish(addr uint8) int {
	d.enter()
	defer d.leave()
	return d.endpoints.writeFinish(addr)
}

// --- Core lock discipline ---

func (d *Device) enter() {
	d.mu.Lock()
}

// leave drains the single pending deferred core continuation, if any,
// then releases the lock, then delivers any class upcalls queued while
// the lock was held — strictly in that order, so a class driver observing
// an upcall never finds the core lock still engaged.
func (d *Device) leave() {
	switch d.deferred {
	case deferredFinishSetConfiguration:
		d.finishSetConfiguration(d.deferredOK)
	case deferredFinishSetInterface:
		d.finishSetInterface(d.deferredOK)
	}
	d.deferred = deferredNone

	n := d.upcallLen
	var pending [maxQueuedUpcalls]upcallEntry
	copy(pending[:n], d.upcalls[:n])
	d.upcallLen = 0

	d.mu.Unlock()

	for i := 0; i < n; i++ {
		d.invokeUpcall(&pending[i])
	}
}

// queueUpcall records a class callback to deliver once the lock is
// released. Silently drops the upcall past capacity rather than blocking
// or allocating; four is more than any single event in this stack
// produces.
func (d *Device) queueUpcall(e upcallEntry) {
	if d.upcallLen >= len(d.upcalls) {
		pkg.LogWarn(pkg.ComponentDevice, "upcall queue overflow, dropping", "kind", e.kind)
		return
	}
	d.upcalls[d.upcallLen] = e
	d.upcallLen++
}

func (d *Device) invokeUpcall(e *upcallEntry) {
	if d.class == nil {
		return
	}
	switch e.kind {
	case upcallStateChange:
		d.class.StateChange(e.old, e.new)
	case upcallReset:
		d.class.Reset()
	case upcallSOF:
		d.class.SOF(e.frame)
	case upcallSetConfiguration:
		d.class.SetConfiguration(e.value)
	case upcallSetInterface:
		d.class.SetInterface(e.iface, e.alt)
	case upcallRequest:
		setup := e.setup
		d.class.Request(&setup)
	case upcallRequestXferDone:
		setup := e.setup
		d.class.RequestXferDone(&setup, e.aborted)
	case upcallEndpointComplete:
		if e.epCallback != nil {
			e.epCallback(e.addr)
		}
	}
}

// --- Core continuations, run under the lock by leave ---

func (d *Device) finishSetConfiguration(ok bool) {
	if !ok {
		d.ep0Stall()
		return
	}
	value := d.ctrl.pendingValue
	old := d.state
	if value == 0 {
		d.endpoints.removeAll()
		_ = d.phy.Unconfigure()
		d.configValue = 0
		d.state = StateAddress
	} else {
		d.configValue = value
		_ = d.phy.Configure()
		d.state = StateConfigured
	}
	d.endpointWindowOpen = false
	if old != d.state {
		d.queueUpcall(upcallEntry{kind: upcallStateChange, old: old, new: d.state})
	}
	d.grantStatus()
}

func (d *Device) finishSetInterface(ok bool) {
	if !ok {
		d.ep0Stall()
		return
	}
	if int(d.ctrl.pendingIface) < len(d.altSetting) {
		d.altSetting[d.ctrl.pendingIface] = d.ctrl.pendingAlt
	}
	d.grantStatus()
}

// --- PHY event entry points (hal.Events) ---

// Power implements [hal.Events]. on=true transitions Attached→Powered.
func (d *Device) Power(on bool) {
	d.enter()
	old := d.state
	if on && d.state == StateAttached {
		d.state = StatePowered
	} else if !on {
		d.state = StateAttached
	}
	if old != d.state {
		d.queueUpcall(upcallEntry{kind: upcallStateChange, old: old, new: d.state})
	}
	d.leave()
}

// Suspend implements [hal.Events]. Suspend is orthogonal to [State]: the
// state value is preserved and restored on resume.
func (d *Device) Suspend(on bool) {
	d.enter()
	d.suspended = on
	d.leave()
}

// SOF implements [hal.Events].
func (d *Device) SOF(frame uint16) {
	d.enter()
	if d.sofEnabled {
		d.queueUpcall(upcallEntry{kind: upcallSOF, frame: frame})
	}
	d.leave()
}

// Reset implements [hal.Events]. Every bus reset clears the endpoint
// table, aborts any in-flight control transfer, and returns the device to
// the Default state.
func (d *Device) Reset() {
	d.enter()
	d.abortControlTransfer()
	d.endpoints.removeAll()
	d.address = 0
	d.configValue = 0
	d.remoteWakeupEnabled = false
	d.endpointWindowOpen = false

	old := d.state
	d.state = StateDefault
	if old != d.state {
		d.queueUpcall(upcallEntry{kind: upcallStateChange, old: old, new: d.state})
	}
	d.queueUpcall(upcallEntry{kind: upcallReset})
	d.leave()
}

// EP0Setup implements [hal.Events].
func (d *Device) EP0Setup() {
	d.enter()
	var raw [SetupPacketSize]byte
	n := d.phy.EP0SetupReadResult(raw[:])
	d.beginSetup(raw[:n])
	d.leave()
}

// EP0In implements [hal.Events].
func (d *Device) EP0In() {
	d.enter()
	d.onEP0In()
	d.leave()
}

// EP0Out implements [hal.Events].
func (d *Device) EP0Out() {
	d.enter()
	d.onEP0Out()
	d.leave()
}

// In implements [hal.Events]. The registered [EndpointCallback] is queued
// like any other class upcall (see [Device.leave]) and so runs only after
// the core lock has been released; it is safe to call [Device.ReadFinish],
// [Device.WriteFinish], or any other [Device] method synchronously from
// within it.
func (d *Device) In(ep uint8) {
	d.enter()
	addr := ep | EndpointDirectionIn
	if cb := d.endpoints.onComplete(addr); cb != nil {
		d.queueUpcall(upcallEntry{kind: upcallEndpointComplete, addr: addr, epCallback: cb})
	}
	d.leave()
}

// Out implements [hal.Events]. See [Device.In] for the callback's
// locking contract.
func (d *Device) Out(ep uint8) {
	d.enter()
	addr := ep | EndpointDirectionOut
	if cb := d.endpoints.onComplete(addr); cb != nil {
		d.queueUpcall(upcallEntry{kind: upcallEndpointComplete, addr: addr, epCallback: cb})
	}
	d.leave()
}
