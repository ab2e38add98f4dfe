// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors observable by callers. See spec §7.
var (
	// ErrInvalidOperatingMode reports a command issued while the module's
	// operating mode is not API or API_ESCAPE.
	ErrInvalidOperatingMode = fmt.Errorf("xbee: invalid operating mode")

	// ErrInterfaceNotOpen reports the transport was closed at call time.
	ErrInterfaceNotOpen = fmt.Errorf("xbee: interface not open")

	// ErrTimeout reports no matching frame arrived within the configured
	// receive timeout.
	ErrTimeout = fmt.Errorf("xbee: timeout waiting for response")

	// ErrOpNotSupported reports a response missing the payload an operation
	// requires.
	ErrOpNotSupported = fmt.Errorf("xbee: operation not supported by response")

	// ErrFrameIDExhausted reports no free frame ID in [1..255].
	ErrFrameIDExhausted = fmt.Errorf("xbee: frame id space exhausted")

	// ErrTransportClosed reports the Reader observed EOF; every pending
	// waiter fails with this error.
	ErrTransportClosed = fmt.Errorf("xbee: transport closed")

	// ErrNullArg reports a required argument was nil.
	ErrNullArg = fmt.Errorf("xbee: argument must not be nil")

	// errBadChecksum and errBadLength are codec-internal; §4.2/§4.5 say they
	// never surface to callers raw. The Reader logs and drops the frame.
	errBadChecksum = fmt.Errorf("xbee: bad checksum")
	errBadLength   = fmt.Errorf("xbee: bad frame length")
)

// ATCommandError reports an AT response with a non-OK status (spec §7).
type ATCommandError struct {
	Command ATCommand
	Status  ATStatus
}

func (e *ATCommandError) Error() string {
	return fmt.Sprintf("xbee: AT command %s failed: %s", e.Command, e.Status)
}

// TransmitError reports a transmit-status frame with a non-SUCCESS status.
type TransmitError struct {
	Status TransmitStatus
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("xbee: transmit failed: %s", e.Status)
}

// InvalidArgError reports an argument precondition failure (spec §7).
type InvalidArgError struct {
	Msg string
}

func (e *InvalidArgError) Error() string { return "xbee: invalid argument: " + e.Msg }

// IoError wraps a transport read/write failure observed at an API boundary.
// Internally the Reader, Correlator, and Device Facade all use
// github.com/pkg/errors.Wrap to attach call-site context before handing the
// error to the caller as an *IoError (spec §7: "the facade translates
// transport I/O errors into XBeeError(cause) at its boundary").
type IoError struct {
	Cause error
}

func (e *IoError) Error() string { return "xbee: i/o error: " + e.Cause.Error() }

func (e *IoError) Unwrap() error { return e.Cause }

// wrapIoError attaches msg as context to cause via pkg/errors and returns an
// *IoError carrying the wrapped chain.
func wrapIoError(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &IoError{Cause: pkgerrors.Wrap(cause, msg)}
}
