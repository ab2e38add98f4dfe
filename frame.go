// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import "fmt"

// FrameType is the one-byte API frame type field (spec §3/§4.3).
type FrameType byte

// Known frame types (spec §4.3, non-exhaustive; values match the XBee API
// frame reference and other_examples/samuel-go-xbee).
const (
	FrameATCommand               FrameType = 0x08
	FrameATCommandQueue          FrameType = 0x09
	FrameTransmitRequest         FrameType = 0x10
	FrameExplicitAddrCommand     FrameType = 0x11
	FrameRemoteATCommandRequest  FrameType = 0x17
	FrameTXRequest64             FrameType = 0x00
	FrameTXRequest16             FrameType = 0x01
	FrameATCommandResponse       FrameType = 0x88
	FrameModemStatus             FrameType = 0x8A
	FrameTransmitStatus          FrameType = 0x8B
	FrameTXStatus                FrameType = 0x89
	FrameRXIO64                  FrameType = 0x82
	FrameRXIO16                  FrameType = 0x83
	FrameReceivePacket           FrameType = 0x90
	FrameExplicitRXIndicator     FrameType = 0x91
	FrameIODataSampleRXIndicator FrameType = 0x92
	FrameRemoteATCommandResponse FrameType = 0x97
)

func (t FrameType) String() string {
	switch t {
	case FrameATCommand:
		return "AT_COMMAND"
	case FrameATCommandQueue:
		return "AT_COMMAND_QUEUE"
	case FrameTransmitRequest:
		return "TRANSMIT_REQUEST"
	case FrameExplicitAddrCommand:
		return "EXPLICIT_ADDRESSING_COMMAND"
	case FrameRemoteATCommandRequest:
		return "REMOTE_AT_COMMAND_REQUEST"
	case FrameATCommandResponse:
		return "AT_COMMAND_RESPONSE"
	case FrameModemStatus:
		return "MODEM_STATUS"
	case FrameTransmitStatus:
		return "TRANSMIT_STATUS"
	case FrameTXStatus:
		return "TX_STATUS"
	case FrameRXIO64:
		return "RX_IO_64"
	case FrameRXIO16:
		return "RX_IO_16"
	case FrameReceivePacket:
		return "RECEIVE_PACKET"
	case FrameExplicitRXIndicator:
		return "EXPLICIT_RX_INDICATOR"
	case FrameIODataSampleRXIndicator:
		return "IO_DATA_SAMPLE_RX_INDICATOR"
	case FrameRemoteATCommandResponse:
		return "REMOTE_AT_COMMAND_RESPONSE"
	default:
		return fmt.Sprintf("FRAME(0x%02X)", byte(t))
	}
}

// Frame is a decoded API frame (spec §3): a type byte, an optional frame ID,
// and a payload. ID==0 means "no frame ID present" — the sender did not
// request a response.
type Frame struct {
	Type    FrameType
	ID      byte
	Payload []byte
}

// needsFrameID reports whether frames of this type elicit a response and
// therefore require a non-zero frame ID to be assigned before sending
// (spec §4.3: "needs_frame_id is true exactly for request frames that
// elicit a status/response").
func (t FrameType) needsFrameID() bool {
	switch t {
	case FrameATCommand, FrameATCommandQueue, FrameTransmitRequest,
		FrameExplicitAddrCommand, FrameRemoteATCommandRequest,
		FrameTXRequest64, FrameTXRequest16:
		return true
	default:
		return false
	}
}

// carriesFrameID reports whether the wire layout of frames of this type
// includes a frame-ID byte immediately after the type byte. This is a
// superset of needsFrameID: response/status types (AT_COMMAND_RESPONSE,
// TRANSMIT_STATUS, TX_STATUS, REMOTE_AT_COMMAND_RESPONSE) echo back a frame
// ID but are never themselves assigned one, while unsolicited notification
// types (MODEM_STATUS, RX_IO_*, RECEIVE_PACKET, IO_DATA_SAMPLE_RX_INDICATOR)
// carry no frame ID at all. The Codec uses this to split the decoded
// payload into Frame.ID and Frame.Payload.
func (t FrameType) carriesFrameID() bool {
	if t.needsFrameID() {
		return true
	}
	switch t {
	case FrameATCommandResponse, FrameTransmitStatus, FrameTXStatus, FrameRemoteATCommandResponse:
		return true
	default:
		return false
	}
}

// isOpaque reports whether t is outside the known registry. Unknown frame
// types still decode successfully; they just carry their raw payload
// (spec §4.2: "Unknown frame types decode to an 'opaque' frame...").
func (t FrameType) isOpaque() bool {
	switch t {
	case FrameATCommand, FrameATCommandQueue, FrameTransmitRequest, FrameExplicitAddrCommand,
		FrameRemoteATCommandRequest, FrameTXRequest64, FrameTXRequest16, FrameATCommandResponse, FrameModemStatus, FrameTransmitStatus,
		FrameTXStatus, FrameRXIO64, FrameRXIO16, FrameReceivePacket, FrameExplicitRXIndicator,
		FrameIODataSampleRXIndicator, FrameRemoteATCommandResponse:
		return false
	default:
		return true
	}
}

// framesEqual reports whether two frames encode to the same wire bytes,
// independent of escape mode. Used for echo suppression (spec §4.7/§5).
func framesEqual(a, b Frame) bool {
	if a.Type != b.Type || a.ID != b.ID || len(a.Payload) != len(b.Payload) {
		return false
	}
	for i := range a.Payload {
		if a.Payload[i] != b.Payload[i] {
			return false
		}
	}
	return true
}
