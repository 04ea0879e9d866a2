package fifo

import (
	"testing"

	"github.com/ardnew/usbd/device/hal"
)

type recordingEvents struct {
	ep0In, ep0Out int
	inCount, outCount map[uint8]int
	setup bool
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{inCount: map[uint8]int{}, outCount: map[uint8]int{}}
}

func (r *recordingEvents) Power(bool)      {}
func (r *recordingEvents) Suspend(bool)    {}
func (r *recordingEvents) SOF(uint16)      {}
func (r *recordingEvents) Reset()          {}
func (r *recordingEvents) EP0Setup()       { r.setup = true }
func (r *recordingEvents) EP0In()          { r.ep0In++ }
func (r *recordingEvents) EP0Out()         { r.ep0Out++ }
func (r *recordingEvents) In(ep uint8)     { r.inCount[ep]++ }
func (r *recordingEvents) Out(ep uint8)    { r.outCount[ep]++ }

func TestConnectDisconnectIdempotent(t *testing.T) {
	d := New(nil)
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := d.Connect(); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if !d.IsConnected() {
		t.Fatal("expected connected")
	}
	if err := d.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := d.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	if d.IsConnected() {
		t.Fatal("expected disconnected")
	}
}

func TestEP0WriteQueuesCompletion(t *testing.T) {
	d := New(nil)
	ev := newRecordingEvents()
	if err := d.Init(ev); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := d.EP0Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("EP0Write: %v", err)
	}
	if ev.ep0In != 0 {
		t.Fatalf("EP0In delivered before Process: %d", ev.ep0In)
	}

	d.Process()
	if ev.ep0In != 1 {
		t.Fatalf("expected one EP0In after Process, got %d", ev.ep0In)
	}
	if got := d.LastEP0Write(); string(got) != "\x01\x02\x03" {
		t.Fatalf("LastEP0Write = %v", got)
	}
}

func TestInjectSetupDeliversImmediately(t *testing.T) {
	d := New(nil)
	ev := newRecordingEvents()
	_ = d.Init(ev)

	d.InjectSetup([8]byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00})
	if !ev.setup {
		t.Fatal("expected EP0Setup delivered synchronously")
	}
	var buf [8]byte
	if n := d.EP0SetupReadResult(buf[:]); n != 8 {
		t.Fatalf("EP0SetupReadResult = %d", n)
	}
	if buf[1] != 0x06 {
		t.Fatalf("bRequest = 0x%02X, want GET_DESCRIPTOR", buf[1])
	}
}

func TestEndpointReadWriteRequireConfiguration(t *testing.T) {
	d := New(nil)
	_ = d.Init(newRecordingEvents())

	const addrOut = 0x01
	const addrIn = 0x81

	if d.EndpointRead(addrOut, make([]byte, 64)) {
		t.Fatal("EndpointRead should fail before EndpointAdd")
	}
	if d.EndpointWrite(addrIn, []byte{1}) {
		t.Fatal("EndpointWrite should fail before EndpointAdd")
	}

	if err := d.EndpointAdd(hal.EndpointConfig{Address: addrOut, MaxPacketSize: 64, Attributes: 0x02}); err != nil {
		t.Fatalf("EndpointAdd OUT: %v", err)
	}
	if err := d.EndpointAdd(hal.EndpointConfig{Address: addrIn, MaxPacketSize: 64, Attributes: 0x02}); err != nil {
		t.Fatalf("EndpointAdd IN: %v", err)
	}

	d.InjectOutData(addrOut, []byte("hello"))
	if !d.EndpointRead(addrOut, make([]byte, 64)) {
		t.Fatal("EndpointRead should succeed once configured")
	}
	if d.EndpointRead(addrOut, make([]byte, 64)) {
		t.Fatal("EndpointRead should refuse a second pending read")
	}

	ev := newRecordingEvents()
	_ = d.Init(ev)
	d.Process()
	if ev.outCount[1] != 1 {
		t.Fatalf("expected one Out(1), got %d", ev.outCount[1])
	}
	if n := d.EndpointReadResult(addrOut); n != 5 {
		t.Fatalf("EndpointReadResult = %d, want 5", n)
	}

	if !d.EndpointWrite(addrIn, []byte("world")) {
		t.Fatal("EndpointWrite should succeed once configured")
	}
	d.Process()
	if got := d.LastWrite(addrIn); string(got) != "world" {
		t.Fatalf("LastWrite = %q", got)
	}
}

func TestEndpointStallBlocksTransfer(t *testing.T) {
	d := New(nil)
	_ = d.Init(newRecordingEvents())
	const addr = 0x82
	if err := d.EndpointAdd(hal.EndpointConfig{Address: addr, MaxPacketSize: 64, Attributes: 0x03}); err != nil {
		t.Fatalf("EndpointAdd: %v", err)
	}
	if err := d.EndpointStall(addr); err != nil {
		t.Fatalf("EndpointStall: %v", err)
	}
	if !d.EndpointStalled(addr) {
		t.Fatal("expected stalled")
	}
	if d.EndpointWrite(addr, []byte{1}) {
		t.Fatal("EndpointWrite should refuse a stalled endpoint")
	}
	if err := d.EndpointUnstall(addr); err != nil {
		t.Fatalf("EndpointUnstall: %v", err)
	}
	if d.EndpointStalled(addr) {
		t.Fatal("expected unstalled")
	}
}
