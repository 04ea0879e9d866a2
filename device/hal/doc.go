// Package hal defines the Hardware Abstraction Layer interface for USB
// device stacks.
//
// The HAL provides a platform-agnostic interface between the device core
// (package [github.com/ardnew/usbd/device]) and the underlying USB
// transceiver (PHY). Platform vendors implement [Driver] to enable the
// stack on their specific controller; the core implements all protocol
// logic, leaving the PHY driver to handle only low-level hardware access
// and interrupt delivery.
//
// # Event-driven, not blocking
//
// Unlike a host-side or file-descriptor-based HAL, [Driver]'s data-moving
// methods never block: Read/Write/setup operations are fire-and-forget —
// they issue a single transfer to the hardware and return immediately. The
// PHY driver reports completion later by invoking the corresponding method
// on [Events] from whatever context its interrupt handler runs in (an ISR,
// an ISR trampoline drained by [Driver.Process], or — in a software PHY
// such as [github.com/ardnew/usbd/device/hal/fifo] — a goroutine). The core
// serializes all such deliveries under its own lock; see the device
// package's documentation for the critical-section discipline this
// implies for PHY authors: never call back into [Events] while still
// inside a call the core made into [Driver].
//
// # Zero-Allocation Design
//
// HAL implementations should follow zero-allocation patterns where
// feasible: reuse buffers the core provides, avoid allocation in
// Read/Write, and keep fixed-size internal state.
//
// # Implementing a PHY driver
//
//  1. Create a type that implements every [Driver] method.
//  2. Perform hardware bring-up in Init; attach to the bus in Connect.
//  3. Implement the EP0* methods for control transfers.
//  4. Implement EndpointRead/EndpointWrite for data endpoints.
//  5. Deliver [Events] calls as the hardware signals them — directly from
//     an interrupt handler on bare metal, or from [Driver.Process] if
//     events are queued and drained from a trampoline.
//
// A fake PHY for tests, which queues completions in memory and delivers
// them from [Driver.Process], is available in
// [github.com/ardnew/usbd/device/hal/fifo].
package hal
