// Package fifo implements an in-process fake PHY satisfying [hal.Driver],
// for tests and examples that need to exercise the device core end to end
// without real transceiver hardware.
//
// Unlike the teacher's named-pipe HAL, which moved bytes between two
// separate OS processes over FIFOs on disk, this fake PHY has no process
// boundary to cross: a driving goroutine (a test, or an example's "host"
// half) calls the Inject* methods to simulate bus activity, and Process
// delivers the completions the device core's own writes and reads
// generated. The package keeps the teacher's fifo name for the same role
// that package played — a software stand-in for hardware reachable from ordinary Go
// code — adapted to this core's event-driven, non-blocking [hal.Driver]
// contract instead of a blocking, context-based one.
package fifo
