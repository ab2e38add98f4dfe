// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee_test

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	xbee "github.com/andersbl/xbeego"
	"github.com/andersbl/xbeego/mocks"
)

// fakeLink is a byte pipe a stubbed XBee module writes responses into and
// the device's Reader drains from, modeled on examples/pipe_test.go's
// stubXBeeModule but driven through a mocks.MockTransport instead of
// net.Pipe, so Write call sites can be asserted directly.
type fakeLink struct {
	mu      sync.Mutex
	pending []byte
	closed  bool
}

func (l *fakeLink) push(b []byte) {
	l.mu.Lock()
	l.pending = append(l.pending, b...)
	l.mu.Unlock()
}

func (l *fakeLink) read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		if l.closed {
			return 0, io.EOF
		}
		return 0, xbee.ErrWouldBlock
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *fakeLink) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func newLinkedMockTransport(ctrl *gomock.Controller, onWrite func(p []byte) (int, error)) (*mocks.MockTransport, *fakeLink) {
	link := &fakeLink{}
	mt := mocks.NewMockTransport(ctrl)
	mt.EXPECT().Open().Return(nil)
	mt.EXPECT().IsOpen().Return(true).AnyTimes()
	mt.EXPECT().Read(gomock.Any()).DoAndReturn(link.read).AnyTimes()
	mt.EXPECT().Close().DoAndReturn(func() error { link.close(); return nil })
	if onWrite != nil {
		mt.EXPECT().Write(gomock.Any()).DoAndReturn(onWrite).AnyTimes()
	}
	return mt, link
}

// newInitializedStubDevice opens and initializes a LocalDevice against a
// stub XBee module answering SH/SL/NI/HV/VR, with hv as the reported
// hardware version. extra, if non-nil, is consulted for every AT_COMMAND
// before the default table lookup; returning true means it already pushed
// the reply and the default handling is skipped.
func newInitializedStubDevice(t *testing.T, hv byte, extra func(mnemonic string, req xbee.Frame, push func(xbee.Frame)) bool) *xbee.LocalDevice {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	values := map[string][]byte{
		"SH": {0x00, 0x13, 0xA2, 0x00},
		"SL": {0x40, 0xAA, 0xBB, 0xCC},
		"NI": []byte("xbee-1"),
		"HV": {hv},
		"VR": {0x10, 0x81},
	}

	var link *fakeLink
	mt, link := newLinkedMockTransport(ctrl, func(p []byte) (int, error) {
		frames, _ := xbee.DecodeAll(p, false)
		for _, req := range frames {
			if req.Type != xbee.FrameATCommand || len(req.Payload) < 2 {
				continue
			}
			mnemonic := string(req.Payload[0:2])
			push := func(f xbee.Frame) { link.push(xbee.Encode(f, false)) }
			if extra != nil && extra(mnemonic, req, push) {
				continue
			}
			value, ok := values[mnemonic]
			status := byte(xbee.ATStatusOK)
			if !ok {
				status = byte(xbee.ATStatusInvalidCommand)
			}
			payload := append([]byte{req.Payload[0], req.Payload[1], status}, value...)
			push(xbee.Frame{Type: xbee.FrameATCommandResponse, ID: req.ID, Payload: payload})
		}
		return len(p), nil
	})

	dev := xbee.NewLocalDevice(mt,
		xbee.WithOperatingMode(xbee.ModeAPI),
		xbee.WithReceiveTimeout(2*time.Second),
		xbee.WithRetryDelay(time.Millisecond))

	if err := dev.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := dev.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return dev
}

// TestDevice_Initialize_S6 reproduces spec.md's S6 scenario at the facade
// level, over a mocked transport rather than net.Pipe.
func TestDevice_Initialize_S6(t *testing.T) {
	dev := newInitializedStubDevice(t, 0x1E, nil)
	defer dev.Close()

	id := dev.Identity()
	if id.Addr64.String() != "0013A20040AABBCC" {
		t.Errorf("Addr64 = %s, want 0013A20040AABBCC", id.Addr64.String())
	}
	if id.NodeID != "xbee-1" {
		t.Errorf("NodeID = %q, want %q", id.NodeID, "xbee-1")
	}
	if id.HardwareVersion != xbee.HardwareVersion(0x1E) {
		t.Errorf("HardwareVersion = 0x%02X, want 0x1E", byte(id.HardwareVersion))
	}
	if id.FirmwareVersion != "1081" {
		t.Errorf("FirmwareVersion = %q, want %q", id.FirmwareVersion, "1081")
	}
	if id.Protocol != xbee.ProtocolRaw802154 {
		t.Errorf("Protocol = %v, want RAW_802_15_4", id.Protocol)
	}
}

// TestDevice_StateMachine checks spec §4.8's "commands valid only in
// INITIALIZED+OPEN" rule across NEW→CONNECTED→INITIALIZED→CLOSED.
func TestDevice_StateMachine(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mt, _ := newLinkedMockTransport(ctrl, nil)
	dev := xbee.NewLocalDevice(mt,
		xbee.WithOperatingMode(xbee.ModeAPI),
		xbee.WithReceiveTimeout(50*time.Millisecond),
		xbee.WithRetryDelay(time.Millisecond))

	if _, err := dev.GetParameter("NI"); err != xbee.ErrInterfaceNotOpen {
		t.Fatalf("GetParameter before Open = %v, want ErrInterfaceNotOpen", err)
	}

	if err := dev.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := dev.GetParameter("NI"); err != xbee.ErrInterfaceNotOpen {
		t.Fatalf("GetParameter before Initialize = %v, want ErrInterfaceNotOpen", err)
	}

	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := dev.GetParameter("NI"); err != xbee.ErrInterfaceNotOpen {
		t.Fatalf("GetParameter after Close = %v, want ErrInterfaceNotOpen", err)
	}
}

// TestDevice_GetDIO_S7_RAW802154Async reproduces spec.md's S7: on the
// RAW_802_15_4 protocol, get_dio sends IS, gets an immediate empty-value OK,
// then the sample itself lands as an asynchronous RX_IO_64 frame.
func TestDevice_GetDIO_S7_RAW802154Async(t *testing.T) {
	dev := newInitializedStubDevice(t, 0x17, func(mnemonic string, req xbee.Frame, push func(xbee.Frame)) bool {
		if mnemonic != "IS" {
			return false
		}
		push(xbee.Frame{Type: xbee.FrameATCommandResponse, ID: req.ID, Payload: []byte{'I', 'S', byte(xbee.ATStatusOK)}})
		// sampleCount=1, digitalMask=bit3, analogMask=0, digitalValues=bit3 set (HIGH).
		push(xbee.Frame{Type: xbee.FrameRXIO64, Payload: []byte{0x01, 0x00, 0x08, 0x00, 0x00, 0x08}})
		return true
	})
	defer dev.Close()

	level, err := dev.GetDIO(xbee.DIO3)
	if err != nil {
		t.Fatalf("GetDIO: %v", err)
	}
	if level != xbee.High {
		t.Fatalf("GetDIO(DIO3) = %v, want HIGH", level)
	}
}

// TestDevice_Invariant6_PWMRoundTrip checks spec §8 invariant 6:
// get_pwm_duty(set_pwm_duty(line, pct)) is within ±(100/1023) of pct.
func TestDevice_Invariant6_PWMRoundTrip(t *testing.T) {
	var lastValue []byte
	dev := newInitializedStubDevice(t, 0x23, func(mnemonic string, req xbee.Frame, push func(xbee.Frame)) bool {
		if mnemonic != "M0" {
			return false
		}
		if len(req.Payload) > 2 {
			lastValue = append([]byte{}, req.Payload[2:]...)
		}
		push(xbee.Frame{Type: xbee.FrameATCommandResponse, ID: req.ID, Payload: append([]byte{'M', '0', byte(xbee.ATStatusOK)}, lastValue...)})
		return true
	})
	defer dev.Close()

	if err := dev.SetPWMDuty(xbee.DIO10, 50); err != nil {
		t.Fatalf("SetPWMDuty: %v", err)
	}
	got, err := dev.GetPWMDuty(xbee.DIO10)
	if err != nil {
		t.Fatalf("GetPWMDuty: %v", err)
	}
	const want, tolerance = 50.0, 100.0 / 1023.0
	if got < want-tolerance || got > want+tolerance {
		t.Fatalf("GetPWMDuty = %v, want within %v of %v", got, tolerance, want)
	}
}

func TestDevice_SetParameter_RejectsNilValue(t *testing.T) {
	dev := newInitializedStubDevice(t, 0x23, nil)
	defer dev.Close()

	if err := dev.SetParameter("D0", nil); err != xbee.ErrNullArg {
		t.Fatalf("SetParameter(nil) = %v, want ErrNullArg", err)
	}
}

// identityStubValues is the SH/SL/NI/HV/VR table newInitializedStubDevice and
// the transmit tests below both answer AT_COMMAND requests with.
var identityStubValues = map[string][]byte{
	"SH": {0x00, 0x13, 0xA2, 0x00},
	"SL": {0x40, 0xAA, 0xBB, 0xCC},
	"NI": []byte("xbee-1"),
	"HV": {0x1E},
	"VR": {0x10, 0x81},
}

// newInitializedStubDeviceWithTXReply is newInitializedStubDevice extended to
// also answer TRANSMIT_REQUEST frames with a successful TRANSMIT_STATUS, for
// exercising SendData/SendDataNonBlocking against the Correlator's
// with_listener and sync send paths (spec §4.7).
func newInitializedStubDeviceWithTXReply(t *testing.T) *xbee.LocalDevice {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	var link *fakeLink
	mt, link := newLinkedMockTransport(ctrl, func(p []byte) (int, error) {
		frames, _ := xbee.DecodeAll(p, false)
		for _, req := range frames {
			push := func(f xbee.Frame) { link.push(xbee.Encode(f, false)) }
			switch req.Type {
			case xbee.FrameATCommand:
				if len(req.Payload) < 2 {
					continue
				}
				mnemonic := string(req.Payload[0:2])
				value, ok := identityStubValues[mnemonic]
				status := byte(xbee.ATStatusOK)
				if !ok {
					status = byte(xbee.ATStatusInvalidCommand)
				}
				payload := append([]byte{req.Payload[0], req.Payload[1], status}, value...)
				push(xbee.Frame{Type: xbee.FrameATCommandResponse, ID: req.ID, Payload: payload})
			case xbee.FrameTransmitRequest:
				if req.ID == 0 {
					continue // frame_id 0 requests a suppressed reply
				}
				payload := []byte{0xFF, 0xFE, 0x00, byte(xbee.TransmitStatusSuccess)}
				push(xbee.Frame{Type: xbee.FrameTransmitStatus, ID: req.ID, Payload: payload})
			}
		}
		return len(p), nil
	})

	dev := xbee.NewLocalDevice(mt,
		xbee.WithOperatingMode(xbee.ModeAPI),
		xbee.WithReceiveTimeout(2*time.Second),
		xbee.WithRetryDelay(time.Millisecond))
	if err := dev.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := dev.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return dev
}

// TestDevice_SendData_WaitsForTransmitStatus wires Correlator.sendAndCheck
// through a real facade operation (spec §4.7 send_and_check).
func TestDevice_SendData_WaitsForTransmitStatus(t *testing.T) {
	dev := newInitializedStubDeviceWithTXReply(t)
	defer dev.Close()

	dest := xbee.NewAddress64(identityStubValues["SH"], identityStubValues["SL"])
	if err := dev.SendData(dest, []byte("hello")); err != nil {
		t.Fatalf("SendData: %v", err)
	}
}

// TestDevice_SendDataAsync_NoFrameID wires Correlator.sendFireAndForget
// through a real facade operation (spec §4.7 "opts.sync=false,
// no_frame_id"): the stub module never answers a frame_id-0 TRANSMIT_REQUEST,
// so a hang here would mean SendDataAsync is waiting for a reply it must not.
func TestDevice_SendDataAsync_NoFrameID(t *testing.T) {
	dev := newInitializedStubDeviceWithTXReply(t)
	defer dev.Close()

	dest := xbee.NewAddress64(identityStubValues["SH"], identityStubValues["SL"])
	done := make(chan error, 1)
	go func() { done <- dev.SendDataAsync(dest, []byte("hello")) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SendDataAsync: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendDataAsync blocked waiting for a reply it should not expect")
	}
}

// TestDevice_SendDataNonBlocking_WaitReleasesFrameID wires
// Correlator.sendWithListener through a real facade operation (spec §4.7
// "opts.sync=false, with_listener(L)"), and checks Wait both observes the
// TRANSMIT_STATUS and frees the frame ID: 256 round trips exceed the 255
// IDs, so a leaked ID would fail the last call with ErrFrameIDExhausted.
func TestDevice_SendDataNonBlocking_WaitReleasesFrameID(t *testing.T) {
	dev := newInitializedStubDeviceWithTXReply(t)
	defer dev.Close()

	dest := xbee.NewAddress64(identityStubValues["SH"], identityStubValues["SL"])
	for i := 0; i < 256; i++ {
		waiter, err := dev.SendDataNonBlocking(dest, []byte("hello"))
		if err != nil {
			t.Fatalf("SendDataNonBlocking: %v", err)
		}
		if err := waiter.Wait(2 * time.Second); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}
