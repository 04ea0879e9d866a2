// Package device implements the device side of the USB 2.0 protocol
// stack core: the chapter-9 state machine, the three-stage control
// transfer engine on endpoint 0, the standard request dispatcher, the
// non-control endpoint manager, and the descriptor accessors a class
// driver builds its descriptors on top of.
//
// It is platform-agnostic and talks to hardware only through the
// [hal.Driver] interface in [github.com/ardnew/usbd/device/hal]; a
// platform vendor implements that interface once per transceiver, and
// every USB-protocol behavior in this package works unmodified on top of
// it. The stack never allocates on the control or data-stage hot paths:
// descriptor and setup-packet codecs marshal into caller-provided
// buffers, the endpoint table is a fixed-size array, and control
// transfer replies come out of a per-[Device] buffer rather than a heap
// allocation.
//
// # Architecture
//
//   - [Device] owns the state machine, the endpoint table, and the
//     singleton control transfer record, and is the type a PHY driver's
//     events target (it implements [hal.Events]).
//   - [SetupPacket] is the decoded 8-byte control transfer header.
//   - [DeviceDescriptor], [ConfigurationDescriptor], [InterfaceDescriptor],
//     and [EndpointDescriptor] marshal and parse the chapter-9 descriptor
//     formats; [FindDescriptor] walks a configuration descriptor's nested
//     sub-descriptors by type and index.
//   - [ClassCallbacks] is the contract a class driver (CDC, HID, MSC, or
//     vendor-specific) implements to participate in enumeration and
//     control transfers; the matching Complete* methods on [Device]
//     resolve each callback, synchronously or from any later context.
//
// # Device states
//
// The stack implements the USB 2.0 chapter-9 device state machine:
//
//	Attached → Powered → Default → Address → Configured
//
// Suspended is tracked independently of this progression (see
// [Device.IsSuspended]): any state may be suspended and later resumed
// back into itself.
//
// # Lock discipline
//
// Every exported [Device] method and every [hal.Events] entry point
// acquires Device's internal lock exactly once and never nests the
// acquisition. Upcalls into [ClassCallbacks] are queued while the lock is
// held and delivered only after it has been released, which is what
// makes it safe for a class driver to call the matching Complete* method
// on [Device] inline, from within the callback it was just given,
// without risking deadlock or unbounded call-stack recursion through the
// PHY.
//
// # Class drivers
//
// Specific class implementations (CDC line coding, HID report
// descriptors, MSC SCSI) are out of scope for this package; they are
// external collaborators built against [ClassCallbacks] and the
// endpoint-manager and descriptor-accessor methods on [Device]. This
// module ships no example class driver; [github.com/ardnew/usbd/device/hal/fifo]
// provides a fake PHY a test harness can drive a [Device] through.
package device
