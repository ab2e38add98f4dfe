// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee_test

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	xbee "github.com/andersbl/xbeego"
)

func TestRemoteDevice_GetParameter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	remoteAddr := xbee.NewAddress64([]byte{0x00, 0x13, 0xA2, 0x00}, []byte{0x40, 0xAA, 0xBB, 0xCC})

	var link *fakeLink
	mt, link := newLinkedMockTransport(ctrl, func(p []byte) (int, error) {
		frames, _ := xbee.DecodeAll(p, false)
		for _, req := range frames {
			if req.Type != xbee.FrameRemoteATCommandRequest || len(req.Payload) < 13 {
				continue
			}
			var gotAddr xbee.Address64
			copy(gotAddr[:], req.Payload[0:8])
			if gotAddr != remoteAddr {
				t.Errorf("dest64 = %s, want %s", gotAddr, remoteAddr)
			}
			mnemonic := string(req.Payload[11:13])
			if mnemonic != "NI" {
				t.Errorf("mnemonic = %q, want NI", mnemonic)
			}
			resp := xbee.Frame{
				Type:    xbee.FrameRemoteATCommandResponse,
				ID:      req.ID,
				Payload: append([]byte{'N', 'I', byte(xbee.ATStatusOK)}, "remote-1"...),
			}
			link.push(xbee.Encode(resp, false))
		}
		return len(p), nil
	})

	local := xbee.NewLocalDevice(mt,
		xbee.WithOperatingMode(xbee.ModeAPI),
		xbee.WithReceiveTimeout(2*time.Second),
		xbee.WithRetryDelay(time.Millisecond))
	if err := local.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer local.Close()

	remote := xbee.NewRemoteDevice(local, remoteAddr)
	if remote.Addr64() != remoteAddr {
		t.Fatalf("Addr64() = %s, want %s", remote.Addr64(), remoteAddr)
	}

	got, err := remote.GetParameter("NI")
	if err != nil {
		t.Fatalf("GetParameter: %v", err)
	}
	if string(got) != "remote-1" {
		t.Fatalf("GetParameter(NI) = %q, want %q", got, "remote-1")
	}

	nodeID, err := remote.NodeID()
	if err != nil {
		t.Fatalf("NodeID: %v", err)
	}
	if nodeID != "remote-1" {
		t.Fatalf("NodeID() = %q, want %q", nodeID, "remote-1")
	}
}

func TestRemoteDevice_SetParameter_RejectsNilValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mt, _ := newLinkedMockTransport(ctrl, nil)
	local := xbee.NewLocalDevice(mt, xbee.WithOperatingMode(xbee.ModeAPI))
	if err := local.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer local.Close()

	remote := xbee.NewRemoteDevice(local, xbee.Address64{})
	if err := remote.SetParameter("D0", nil); err != xbee.ErrNullArg {
		t.Fatalf("SetParameter(nil) = %v, want ErrNullArg", err)
	}
}

// TestRemoteDevice_HardwareVersion_CachesAfterFirstFetch checks the lazy
// fetch-and-cache contract (spec §4.9): a second call must not re-query the
// module.
func TestRemoteDevice_HardwareVersion_CachesAfterFirstFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	calls := 0
	var link *fakeLink
	mt, link := newLinkedMockTransport(ctrl, func(p []byte) (int, error) {
		frames, _ := xbee.DecodeAll(p, false)
		for _, req := range frames {
			if req.Type != xbee.FrameRemoteATCommandRequest || len(req.Payload) < 13 {
				continue
			}
			calls++
			resp := xbee.Frame{
				Type:    xbee.FrameRemoteATCommandResponse,
				ID:      req.ID,
				Payload: []byte{'H', 'V', byte(xbee.ATStatusOK), 0x1E},
			}
			link.push(xbee.Encode(resp, false))
		}
		return len(p), nil
	})

	local := xbee.NewLocalDevice(mt,
		xbee.WithOperatingMode(xbee.ModeAPI),
		xbee.WithReceiveTimeout(2*time.Second),
		xbee.WithRetryDelay(time.Millisecond))
	if err := local.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer local.Close()

	remote := xbee.NewRemoteDevice(local, xbee.Address64{})

	hv1, err := remote.HardwareVersion()
	if err != nil {
		t.Fatalf("HardwareVersion: %v", err)
	}
	hv2, err := remote.HardwareVersion()
	if err != nil {
		t.Fatalf("HardwareVersion (cached): %v", err)
	}
	if hv1 != hv2 || hv1 != xbee.HardwareVersion(0x1E) {
		t.Fatalf("HardwareVersion = %v, %v, want both 0x1E", hv1, hv2)
	}
	if calls != 1 {
		t.Fatalf("remote module queried %d times, want 1 (second call should hit cache)", calls)
	}
}
