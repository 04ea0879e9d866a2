package device

import (
	"fmt"

	"github.com/ardnew/usbd/device/hal"
	"github.com/ardnew/usbd/pkg"
)

// Endpoint transfer types (USB 2.0 Spec Table 9-13).
const (
	EndpointTypeControl     = 0x00 // Control transfer
	EndpointTypeIsochronous = 0x01 // Isochronous transfer
	EndpointTypeBulk        = 0x02 // Bulk transfer
	EndpointTypeInterrupt   = 0x03 // Interrupt transfer
)

// Endpoint directions.
const (
	EndpointDirectionOut = 0x00 // Host to device
	EndpointDirectionIn  = 0x80 // Device to host
)

// Isochronous synchronization types (bits 2-3 of Attributes).
const (
	IsoSyncNone     = 0x00 // No synchronization
	IsoSyncAsync    = 0x04 // Asynchronous
	IsoSyncAdaptive = 0x08 // Adaptive
	IsoSyncSync     = 0x0C // Synchronous
)

// Isochronous usage types (bits 4-5 of Attributes).
const (
	IsoUsageData     = 0x00 // Data endpoint
	IsoUsageFeedback = 0x10 // Feedback endpoint
	IsoUsageImplicit = 0x20 // Implicit feedback data endpoint
)

// MaxEndpointMaxPacketSize is the largest max_packet_size endpoint_add
// accepts.
const MaxEndpointMaxPacketSize = 1024

// endpointFlags is the per-endpoint bitset {Enabled, Stalled}.
type endpointFlags uint8

const (
	endpointEnabled endpointFlags = 1 << iota
	endpointStalled
)

// EndpointCallback is invoked, after the core lock has been released, when
// a pending transfer on a non-control endpoint completes, in either
// direction. It is safe to call [Device.ReadFinish], [Device.WriteFinish],
// or any other [Device] method synchronously from within it.
type EndpointCallback func(addr uint8)

// endpointRecord is one slot of the non-control endpoint table.
type endpointRecord struct {
	flags         endpointFlags
	attributes    uint8 // bmAttributes: transfer type + iso sync/usage bits
	maxPacketSize uint16
	interval      uint8
	pending       int // 0 or 1: PHY transfers issued but not yet completed
	transferSize  int // last accepted write_start size, for write_finish
	callback      EndpointCallback
}

func (r *endpointRecord) enabled() bool { return r.flags&endpointEnabled != 0 }
func (r *endpointRecord) stalled() bool { return r.flags&endpointStalled != 0 }

// endpointIndex linearizes a non-control endpoint address into a dense
// table index, per index = ((num<<1)|dir) - 2. It is a total function:
// addr 0 (EP0, either direction) and any address whose direction bit
// combined with number would fall outside the table are rejected with
// ok=false rather than silently wrapping.
func endpointIndex(addr uint8) (index int, ok bool) {
	num := addr & 0x0F
	if num == 0 || num >= MaxEndpoints {
		return 0, false
	}
	dir := uint8(0)
	if addr&0x80 != 0 {
		dir = 1
	}
	return (int(num)<<1 | int(dir)) - 2, true
}

// endpointTableSize is the width of the dense non-control endpoint table.
const endpointTableSize = 2 * (MaxEndpoints - 1)

// endpointTable is the fixed-size map of linearized endpoint index to
// per-endpoint state.
type endpointTable struct {
	slots [endpointTableSize]endpointRecord
	phy   hal.Driver
}

func (t *endpointTable) reset() {
	for i := range t.slots {
		t.slots[i] = endpointRecord{}
	}
}

func (t *endpointTable) lookup(addr uint8) (*endpointRecord, bool) {
	idx, ok := endpointIndex(addr)
	if !ok {
		return nil, false
	}
	return &t.slots[idx], true
}

// add enables a non-control endpoint and asks the PHY to create it.
// Permitted only while the caller has verified the endpoint-add window is
// open (see device.go's SET_CONFIGURATION handling).
func (t *endpointTable) add(addr uint8, maxPacket uint16, attributes uint8, interval uint8, cb EndpointCallback) bool {
	if addr&0x0F == 0 {
		return false // EP0 is not a table member
	}
	if maxPacket > MaxEndpointMaxPacketSize {
		return false
	}
	rec, ok := t.lookup(addr)
	if !ok || rec.enabled() {
		return false
	}
	if err := t.phy.EndpointAdd(hal.EndpointConfig{
		Address:       addr,
		Attributes:    attributes,
		MaxPacketSize: maxPacket,
		Interval:      interval,
	}); err != nil {
		pkg.LogWarn(pkg.ComponentEndpoint, "endpoint_add rejected by PHY",
			"address", fmt.Sprintf("0x%02X", addr), "error", err)
		return false
	}
	*rec = endpointRecord{
		flags:         endpointEnabled,
		attributes:    attributes,
		maxPacketSize: maxPacket,
		interval:      interval,
		callback:      cb,
	}
	return true
}

// remove aborts any pending transfer on addr, then disables it.
func (t *endpointTable) remove(addr uint8) {
	rec, ok := t.lookup(addr)
	if !ok || !rec.enabled() {
		return
	}
	if rec.pending > 0 {
		_ = t.phy.EndpointAbort(addr)
		rec.pending = 0
	}
	_ = t.phy.EndpointRemove(addr)
	*rec = endpointRecord{}
}

// removeAll sweeps every enabled non-control endpoint, both directions.
func (t *endpointTable) removeAll() {
	for num := uint8(1); num < MaxEndpoints; num++ {
		t.remove(num | EndpointDirectionOut)
		t.remove(num | EndpointDirectionIn)
	}
}

// stall sets the Stalled flag and cancels any pending transfer.
func (t *endpointTable) stall(addr uint8) bool {
	rec, ok := t.lookup(addr)
	if !ok || !rec.enabled() {
		return false
	}
	if rec.pending > 0 {
		_ = t.phy.EndpointAbort(addr)
		rec.pending = 0
	}
	rec.flags |= endpointStalled
	_ = t.phy.EndpointStall(addr)
	pkg.LogDebug(pkg.ComponentEndpoint, "endpoint stalled",
		"address", fmt.Sprintf("0x%02X", addr))
	return true
}

// unstall clears the Stalled flag. Per the endpoint manager contract, an
// unstall after a pending transfer also cancels it: the host is expected
// to re-issue.
func (t *endpointTable) unstall(addr uint8) bool {
	rec, ok := t.lookup(addr)
	if !ok || !rec.enabled() {
		return false
	}
	if rec.pending > 0 {
		_ = t.phy.EndpointAbort(addr)
		rec.pending = 0
	}
	rec.flags &^= endpointStalled
	_ = t.phy.EndpointUnstall(addr)
	pkg.LogDebug(pkg.ComponentEndpoint, "endpoint stall cleared",
		"address", fmt.Sprintf("0x%02X", addr))
	return true
}

// abort asks the PHY to cancel the in-flight transfer and clears pending.
func (t *endpointTable) abort(addr uint8) {
	rec, ok := t.lookup(addr)
	if !ok || rec.pending == 0 {
		return
	}
	_ = t.phy.EndpointAbort(addr)
	rec.pending = 0
}

// readStart issues one PHY read on an OUT endpoint. Requires max to be at
// least the endpoint's max_packet_size and no read already pending.
func (t *endpointTable) readStart(addr uint8, buf []byte, max int) bool {
	rec, ok := t.lookup(addr)
	if !ok || !rec.enabled() || rec.stalled() {
		return false
	}
	if rec.pending != 0 || max < int(rec.maxPacketSize) {
		return false
	}
	if !t.phy.EndpointRead(addr, buf) {
		return false
	}
	rec.pending = 1
	return true
}

// readFinish returns the byte count the PHY delivered on the endpoint's
// most recently completed read. Called from the Out dispatch, after
// pending has already been decremented.
func (t *endpointTable) readFinish(addr uint8) int {
	return t.phy.EndpointReadResult(addr)
}

// writeStart issues one PHY write on an IN endpoint. Requires size to be
// at most the endpoint's max_packet_size and no write already pending.
func (t *endpointTable) writeStart(addr uint8, data []byte) bool {
	rec, ok := t.lookup(addr)
	if !ok || !rec.enabled() || rec.stalled() {
		return false
	}
	if rec.pending != 0 || len(data) > int(rec.maxPacketSize) {
		return false
	}
	if !t.phy.EndpointWrite(addr, data) {
		return false
	}
	rec.pending = 1
	rec.transferSize = len(data)
	return true
}

// writeFinish returns the size accepted by the endpoint's most recently
// completed write.
func (t *endpointTable) writeFinish(addr uint8) int {
	rec, ok := t.lookup(addr)
	if !ok {
		return 0
	}
	return rec.transferSize
}

// onComplete is invoked by the device core's In/Out PHY event dispatch:
// it clears pending and then, if the endpoint is still enabled, returns its
// registered callback (nil if none) without invoking it, so the caller can
// run it outside the endpoint
// table's own bookkeeping (the core lock is already held by the caller;
// this method does not itself acquire or release it).
func (t *endpointTable) onComplete(addr uint8) EndpointCallback {
	rec, ok := t.lookup(addr)
	if !ok {
		return nil
	}
	if rec.pending > 0 {
		rec.pending = 0
	}
	if !rec.enabled() {
		return nil
	}
	return rec.callback
}

// TransferTypeName returns a human-readable transfer type name.
func TransferTypeName(t uint8) string {
	switch t & 0x03 {
	case EndpointTypeControl:
		return "Control"
	case EndpointTypeIsochronous:
		return "Isochronous"
	case EndpointTypeBulk:
		return "Bulk"
	case EndpointTypeInterrupt:
		return "Interrupt"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// DirectionName returns a human-readable direction name.
func DirectionName(dir uint8) string {
	if dir == EndpointDirectionIn {
		return "IN"
	}
	return "OUT"
}
