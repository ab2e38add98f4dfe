// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import "fmt"

// ATCommand is a two-letter AT mnemonic addressing a module parameter or
// action (spec §3/GLOSSARY).
type ATCommand [2]byte

// NewATCommand validates and returns an ATCommand from a 2-byte mnemonic.
func NewATCommand(mnemonic string) (ATCommand, error) {
	if len(mnemonic) != 2 {
		return ATCommand{}, &InvalidArgError{Msg: fmt.Sprintf("AT mnemonic must be exactly 2 bytes, got %d", len(mnemonic))}
	}
	return ATCommand{mnemonic[0], mnemonic[1]}, nil
}

func (c ATCommand) String() string { return string(c[:]) }

// equalFold reports whether c and other name the same mnemonic, ignoring
// case (spec §4.7: "the same mnemonic (case-insensitive)").
func (c ATCommand) equalFold(other ATCommand) bool {
	return foldByte(c[0]) == foldByte(other[0]) && foldByte(c[1]) == foldByte(other[1])
}

func foldByte(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// ATStatus is the status byte of an AT_COMMAND_RESPONSE frame (spec §3).
type ATStatus byte

const (
	ATStatusOK               ATStatus = 0
	ATStatusError            ATStatus = 1
	ATStatusInvalidCommand   ATStatus = 2
	ATStatusInvalidParameter ATStatus = 3
	ATStatusTXFailure        ATStatus = 4
	ATStatusUnknown          ATStatus = 0xFF
)

func (s ATStatus) String() string {
	switch s {
	case ATStatusOK:
		return "OK"
	case ATStatusError:
		return "ERROR"
	case ATStatusInvalidCommand:
		return "INVALID_COMMAND"
	case ATStatusInvalidParameter:
		return "INVALID_PARAMETER"
	case ATStatusTXFailure:
		return "TX_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// ATResponse is a decoded AT_COMMAND_RESPONSE or REMOTE_AT_COMMAND_RESPONSE
// payload (spec §3).
type ATResponse struct {
	Command ATCommand
	Status  ATStatus
	Value   []byte
}

// TransmitStatus is the delivery status byte of a TRANSMIT_STATUS/TX_STATUS
// frame (spec §4.7: "send_and_check" requires this be SUCCESS).
type TransmitStatus byte

const (
	TransmitStatusSuccess TransmitStatus = 0x00
)

func (s TransmitStatus) String() string {
	if s == TransmitStatusSuccess {
		return "SUCCESS"
	}
	return fmt.Sprintf("FAILURE(0x%02X)", byte(s))
}

// parseATResponse decodes an AT_COMMAND_RESPONSE payload: mnemonic(2) +
// status(1) + value(var). payload must already have the frame ID peeled
// off by the Codec.
func parseATResponse(payload []byte) (ATResponse, error) {
	if len(payload) < 3 {
		return ATResponse{}, ErrOpNotSupported
	}
	return ATResponse{
		Command: ATCommand{payload[0], payload[1]},
		Status:  ATStatus(payload[2]),
		Value:   payload[3:],
	}, nil
}

// sentMnemonic extracts the AT mnemonic from a frame about to be sent, for
// frame types whose payload carries one: AT_COMMAND/AT_COMMAND_QUEUE
// (mnemonic at payload[0:2]) and REMOTE_AT_COMMAND_REQUEST (mnemonic after
// dest64(8)+dest16(2)+options(1), at payload[11:13]). Used by the
// Correlator's waiter match predicate (spec §4.7 rule 2).
func sentMnemonic(f Frame) (ATCommand, bool) {
	switch f.Type {
	case FrameATCommand, FrameATCommandQueue:
		if len(f.Payload) >= 2 {
			return ATCommand{f.Payload[0], f.Payload[1]}, true
		}
	case FrameRemoteATCommandRequest:
		if len(f.Payload) >= 13 {
			return ATCommand{f.Payload[11], f.Payload[12]}, true
		}
	}
	return ATCommand{}, false
}

// responseMnemonic extracts the AT mnemonic from a received
// AT_COMMAND_RESPONSE or REMOTE_AT_COMMAND_RESPONSE frame's payload (frame
// ID already peeled off by the Codec).
func responseMnemonic(f Frame) (ATCommand, bool) {
	switch f.Type {
	case FrameATCommandResponse, FrameRemoteATCommandResponse:
		if len(f.Payload) >= 2 {
			return ATCommand{f.Payload[0], f.Payload[1]}, true
		}
	}
	return ATCommand{}, false
}

// parseTransmitStatus decodes a TX_STATUS (802.15.4, 1-byte payload after
// frame ID: status(1)) or TRANSMIT_STATUS (ZigBee, 5-byte payload after
// frame ID) payload, taking only the delivery status byte each format
// places in a fixed position.
func parseTransmitStatus(frameType FrameType, payload []byte) (TransmitStatus, error) {
	switch frameType {
	case FrameTXStatus:
		if len(payload) < 1 {
			return 0, ErrOpNotSupported
		}
		return TransmitStatus(payload[0]), nil
	case FrameTransmitStatus:
		// ZigBee TRANSMIT_STATUS payload: dest16(2) retryCount(1) deliveryStatus(1) discoveryStatus(1)
		if len(payload) < 4 {
			return 0, ErrOpNotSupported
		}
		return TransmitStatus(payload[3]), nil
	default:
		return 0, ErrOpNotSupported
	}
}
