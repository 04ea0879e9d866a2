package pkg

import "errors"

// USB protocol errors.
//
// These are sentinel values, not wrapped types: callers compare with
// [errors.Is]. Most core operations that can fail for protocol reasons
// report the failure as a stall or a false return (see the Refusal error
// kind) rather than one of these; they exist for the cases where a Go
// error return is the natural signal (parsing, descriptor access).
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrProtocol indicates a protocol-level failure: an unsupported
	// standard request, a missing descriptor, a direction mismatch between
	// the host's bmRequestType and the class/standard reply, or a data
	// stage whose length disagrees with wLength.
	ErrProtocol = errors.New("protocol error")

	// ErrNotConfigured indicates an operation required the device to be in
	// the Configured state.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidEndpoint indicates an invalid or out-of-range endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidState indicates an invalid device state for the operation.
	ErrInvalidState = errors.New("invalid device state")

	// ErrInvalidRequest indicates an invalid or unsupported request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNotSupported indicates an unsupported operation or feature
	// (SET_DESCRIPTOR, LPM, remote wakeup signalling).
	ErrNotSupported = errors.New("not supported")

	// ErrBusy indicates the resource is busy: a transfer is already pending
	// on the endpoint, or the endpoint-add window is closed.
	ErrBusy = errors.New("resource busy")

	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("descriptor too short")

	// ErrDescriptorTypeMismatch indicates the descriptor type does not match expected.
	ErrDescriptorTypeMismatch = errors.New("descriptor type mismatch")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrAborted indicates a control transfer was abandoned because of a
	// bus reset or a new SETUP arriving while a class callback was still
	// outstanding. The class sees this as RequestXferDone(setup, true).
	ErrAborted = errors.New("control transfer aborted")
)
