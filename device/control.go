package device

import (
	"github.com/ardnew/usbd/pkg"
)

// controlStage is the three-stage (plus Setup) control transfer state
// machine position.
type controlStage uint8

const (
	stageSetup controlStage = iota
	stageDataIn
	stageDataOut
	stageStatus
)

// pendingCallback names which class-visible callback, if any, is
// currently outstanding on the in-flight control transfer.
type pendingCallback uint8

const (
	callbackNone pendingCallback = iota
	callbackRequest
	callbackSetConfiguration
	callbackSetInterface
)

// RequestVerdict is the class's answer to [ClassCallbacks.Request],
// delivered via [Device.CompleteRequest].
type RequestVerdict uint8

const (
	// VerdictPassthrough hands the request to the standard dispatcher
	// (§4.2 of the standard request table).
	VerdictPassthrough RequestVerdict = iota
	// VerdictSend supplies data for the IN data stage.
	VerdictSend
	// VerdictReceive supplies a buffer for the OUT data stage.
	VerdictReceive
	// VerdictFail stalls EP0; the request is not supported.
	VerdictFail
)

// controlTransfer is the singleton control-transfer record: at most one
// control transfer is ever in flight, since EP0 is bidirectional and
// shared by every standard, class, and vendor request.
type controlTransfer struct {
	setup SetupPacket

	buf       []byte // response or receive buffer for the data stage
	offset    int    // cursor into buf
	remaining int    // bytes left to move

	stage controlStage

	zlp    bool // a terminating zero-length packet is still owed
	notify bool // report RequestXferDone once the data stage ends

	userCallback pendingCallback
	aborted      bool

	// pendingValue/pendingIface/pendingAlt carry the class-directed
	// argument for the currently outstanding SetConfiguration or
	// SetInterface callback through to its Complete* resolution.
	pendingValue uint8
	pendingIface uint8
	pendingAlt   uint8

	// pendingSetAddress/pendingAddress carry a SET_ADDRESS request
	// through to the status-stage completion, per USB 2.0 §9.4.6 (the
	// address takes effect only after the status stage acknowledges).
	pendingSetAddress bool
	pendingAddress    uint8

	// responseBuf backs standard-request replies (GET_STATUS,
	// GET_CONFIGURATION, GET_INTERFACE, and descriptor responses the core
	// itself serves) so no package-level static is ever aliased across
	// transfers (Open Question 3).
	responseBuf [MaxControlBufferSize]byte
}

// reset clears the control transfer back to its idle Setup-stage state.
func (c *controlTransfer) reset() {
	*c = controlTransfer{responseBuf: c.responseBuf}
}

// armSetup installs setup as the live control transfer, ready for
// callback_request to be delivered against it.
func (d *Device) armSetup(setup SetupPacket) {
	c := &d.ctrl
	c.setup = setup
	c.stage = stageSetup
	c.userCallback = callbackRequest
}

// resetTransfer clears the control transfer record and, if a Setup arrived
// while the record was occupied (see [Device.beginSetup]), promotes it into
// the now-free record so its own callback_request resolution can proceed
// normally.
func (d *Device) resetTransfer() {
	d.ctrl.reset()
	if !d.pendingSetupSet {
		return
	}
	setup := d.pendingSetup
	d.pendingSetupSet = false
	d.armSetup(setup)
}

// beginSetup decodes a freshly arrived SETUP packet and hands it to the
// class via callback_request. Per §4.3, every Setup event implicitly
// cancels any in-progress control transfer: invariant 6 (§3) requires a
// class callback still outstanding on the old transfer to be raised as
// aborted rather than silently dropped, and resolved only when that
// callback's Complete* call eventually arrives (see
// [Device.abortControlTransfer], [Device.CompleteRequest]). The new
// request is still announced to the class immediately either way, since
// the engine always calls callback_request before anything else.
func (d *Device) beginSetup(raw []byte) {
	var setup SetupPacket
	if err := ParseSetupPacket(raw, &setup); err != nil {
		pkg.LogWarn(pkg.ComponentControl, "malformed setup packet", "error", err)
		d.ep0Stall()
		return
	}

	d.abortControlTransfer()

	c := &d.ctrl
	if c.userCallback != callbackNone {
		// abortControlTransfer only flagged the outstanding callback
		// aborted; the record is still occupied by it. A Setup that
		// arrives before that is resolved supersedes any Setup still
		// waiting in pendingSetup too.
		if d.pendingSetupSet {
			d.queueUpcall(upcallEntry{kind: upcallRequestXferDone, setup: d.pendingSetup, aborted: true})
		}
		d.pendingSetup, d.pendingSetupSet = setup, true
		d.queueUpcall(upcallEntry{kind: upcallRequest, setup: setup})
		return
	}

	d.armSetup(setup)
	d.queueUpcall(upcallEntry{kind: upcallRequest, setup: setup})
}

// CompleteRequest resolves the class's verdict for the currently
// outstanding Request callback. data is the IN-stage payload for
// [VerdictSend], or the caller-owned buffer to receive the OUT stage for
// [VerdictReceive]; it is ignored for the other verdicts.
func (d *Device) CompleteRequest(verdict RequestVerdict, data []byte) {
	d.enter()
	defer d.leave()

	c := &d.ctrl
	if c.userCallback != callbackRequest {
		assertFail("CompleteRequest with no outstanding Request callback")
		return
	}
	if c.aborted {
		d.queueUpcall(upcallEntry{kind: upcallRequestXferDone, setup: c.setup, aborted: true})
		d.resetTransfer()
		return
	}
	c.userCallback = callbackNone

	switch verdict {
	case VerdictPassthrough:
		d.dispatchStandard(&c.setup)
	case VerdictSend:
		d.grantDataIn(data, true)
	case VerdictReceive:
		d.grantDataOut(data, true)
	default:
		d.ep0Stall()
	}
}

// CompleteSetConfiguration resolves the class's verdict for the currently
// outstanding SetConfiguration callback.
func (d *Device) CompleteSetConfiguration(ok bool) {
	d.enter()
	defer d.leave()

	c := &d.ctrl
	if c.userCallback != callbackSetConfiguration {
		assertFail("CompleteSetConfiguration with no outstanding SetConfiguration callback")
		return
	}
	if c.aborted {
		d.resetTransfer()
		return
	}
	c.userCallback = callbackNone
	d.deferred = deferredFinishSetConfiguration
	d.deferredOK = ok
}

// CompleteSetInterface resolves the class's verdict for the currently
// outstanding SetInterface callback.
func (d *Device) CompleteSetInterface(ok bool) {
	d.enter()
	defer d.leave()

	c := &d.ctrl
	if c.userCallback != callbackSetInterface {
		assertFail("CompleteSetInterface with no outstanding SetInterface callback")
		return
	}
	if c.aborted {
		d.resetTransfer()
		return
	}
	c.userCallback = callbackNone
	d.deferred = deferredFinishSetInterface
	d.deferredOK = ok
}

// grantDataIn arms the data stage to send resp in response to the pending
// Setup, truncated to wLength. notify requests a RequestXferDone once the
// data stage ends (set for class-supplied data, not for standard-handled
// requests).
func (d *Device) grantDataIn(resp []byte, notify bool) {
	c := &d.ctrl
	if !c.setup.IsDeviceToHost() {
		d.ep0Stall()
		return
	}
	if c.setup.Length == 0 {
		d.grantStatus()
		return
	}
	length := len(resp)
	if length > int(c.setup.Length) {
		length = int(c.setup.Length)
	}
	c.buf = resp[:length]
	c.offset = 0
	c.remaining = length
	c.zlp = length > 0 && length < int(c.setup.Length) && length%int(d.ep0MaxPacket) == 0
	c.notify = notify
	c.stage = stageDataIn
	d.pumpDataIn()
}

// grantDataOut arms the data stage to receive exactly wLength bytes into
// buf, which must be at least that large.
func (d *Device) grantDataOut(buf []byte, notify bool) {
	c := &d.ctrl
	if c.setup.IsDeviceToHost() || len(buf) < int(c.setup.Length) {
		d.ep0Stall()
		return
	}
	if c.setup.Length == 0 {
		d.grantStatus()
		return
	}
	c.buf = buf[:c.setup.Length]
	c.offset = 0
	c.remaining = int(c.setup.Length)
	c.notify = notify
	c.stage = stageDataOut
	_ = d.phy.EP0Read(c.buf[c.offset:])
}

// grantStatus drives the status stage: a zero-length write terminates
// both the IN-data-then-OUT-ack case and the no-data case; the OUT-data
// case is acked by a zero-length IN write the same way.
func (d *Device) grantStatus() {
	c := &d.ctrl
	c.stage = stageStatus
	_ = d.phy.EP0Write(nil)
}

// ep0Stall stalls EP0 and resets the control transfer record.
func (d *Device) ep0Stall() {
	_ = d.phy.EP0Stall()
	pkg.LogWarn(pkg.ComponentControl, "EP0 stalled", "setup", d.ctrl.setup.String())
	d.resetTransfer()
}

// pumpDataIn writes the next packet of the IN data stage, sized to at
// most EP0's negotiated max packet size.
func (d *Device) pumpDataIn() {
	c := &d.ctrl
	n := c.remaining
	if n > int(d.ep0MaxPacket) {
		n = int(d.ep0MaxPacket)
	}
	chunk := c.buf[c.offset : c.offset+n]
	if err := d.phy.EP0Write(chunk); err != nil {
		d.ep0Stall()
		return
	}
	c.offset += n
	c.remaining -= n
}

// onEP0In handles the PHY's report that the most recently issued EP0Write
// completed.
func (d *Device) onEP0In() {
	c := &d.ctrl
	switch c.stage {
	case stageDataIn:
		if c.remaining > 0 {
			d.pumpDataIn()
			return
		}
		if c.zlp {
			c.zlp = false
			_ = d.phy.EP0Write(nil)
			return
		}
		d.finishDataStage()
	case stageStatus:
		d.finishTransfer()
	}
}

// onEP0Out handles the PHY's report that the most recently issued EP0Read
// completed.
func (d *Device) onEP0Out() {
	c := &d.ctrl
	if c.stage != stageDataOut {
		return
	}
	n := d.phy.EP0ReadResult()
	c.offset += n
	c.remaining -= n
	if c.remaining > 0 {
		_ = d.phy.EP0Read(c.buf[c.offset:])
		return
	}
	d.finishDataStage()
}

// finishDataStage concludes the data stage. The status stage begins
// immediately — not waiting for a further data-stage event — per USB 2.0
// §8.5.3.2. If the class asked to be notified, RequestXferDone fires now,
// once the data stage itself has ended.
func (d *Device) finishDataStage() {
	c := &d.ctrl
	if c.notify {
		d.queueUpcall(upcallEntry{kind: upcallRequestXferDone, setup: c.setup, aborted: c.aborted})
		c.notify = false
	}
	d.grantStatus()
}

// finishTransfer concludes the control transfer once the status stage has
// been acknowledged by the PHY. A parked SET_ADDRESS takes effect here,
// after the status stage, per USB 2.0 §9.4.6 (see SPEC_FULL.md Open
// Question 1).
func (d *Device) finishTransfer() {
	c := &d.ctrl
	if c.pendingSetAddress && !c.aborted {
		addr := c.pendingAddress
		_ = d.phy.SetAddress(addr)
		d.address = addr
		old := d.state
		if addr == 0 {
			d.state = StateDefault
		} else {
			d.state = StateAddress
		}
		if old != d.state {
			d.queueUpcall(upcallEntry{kind: upcallStateChange, old: old, new: d.state})
		}
	}
	d.resetTransfer()
}

// abortControlTransfer is invoked on a bus reset, on disconnect, and by
// [Device.beginSetup] for a new Setup arriving while the record is still
// occupied (§3 invariant 6). Three cases, per §4.3's abort semantics:
//
//   - A class callback is still outstanding: the class resolves it itself
//     (eventually, via CompleteRequest/CompleteSetConfiguration/
//     CompleteSetInterface), so the record is left in place, only flagged
//     aborted; that Complete* call is what actually notifies the class and
//     frees the record (see [Device.resetTransfer]).
//   - A class-granted data stage is already mid-flight (the begin-call
//     already resolved; notify is set): nothing will ever resolve it on
//     its own, so the class is told now, and the record is freed
//     immediately.
//   - Otherwise (idle, or a core-served request with no class callback
//     involved): the record is simply freed; there is nothing to notify.
func (d *Device) abortControlTransfer() {
	c := &d.ctrl
	switch {
	case c.userCallback != callbackNone:
		c.aborted = true
	case c.notify:
		d.queueUpcall(upcallEntry{kind: upcallRequestXferDone, setup: c.setup, aborted: true})
		d.resetTransfer()
	default:
		d.resetTransfer()
	}
}
