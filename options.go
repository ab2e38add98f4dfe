// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import "time"

// OperatingMode is the module's current protocol mode (spec §3). Only API
// and APIEscaped support the frame protocol.
type OperatingMode uint8

const (
	ModeUnknown OperatingMode = iota
	ModeAT
	ModeAPI
	ModeAPIEscaped
)

func (m OperatingMode) String() string {
	switch m {
	case ModeAT:
		return "AT"
	case ModeAPI:
		return "API"
	case ModeAPIEscaped:
		return "API_ESCAPE"
	default:
		return "UNKNOWN"
	}
}

func (m OperatingMode) supportsFrames() bool {
	return m == ModeAPI || m == ModeAPIEscaped
}

func (m OperatingMode) escaped() bool { return m == ModeAPIEscaped }

// Parity is the serial line parity setting (spec §6, pass-through only).
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// FlowControl is the serial line flow-control setting (spec §6,
// pass-through only).
type FlowControl uint8

const (
	FlowControlNone FlowControl = iota
	FlowControlHardware
	FlowControlSoftware
)

// SerialParams describes the serial line parameters a Transport
// implementation should apply. This module never opens a transport itself
// (spec §1 Non-goals); SerialParams exists only so a single Config value can
// carry both the protocol engine's settings and the parameters a concrete
// Transport needs, following the field shape of Daedaluz-goserial's port
// configuration without any of its ioctl machinery.
type SerialParams struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   Parity
	Flow     FlowControl
}

// DefaultSerialParams returns the spec §6 default: 9600-8-N-1-none.
func DefaultSerialParams() SerialParams {
	return SerialParams{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: ParityNone, Flow: FlowControlNone}
}

// Config configures the protocol engine (spec §6).
type Config struct {
	// ReceiveTimeout bounds every sync wait (spec §5). Default 2000ms.
	ReceiveTimeout time.Duration

	// EnterCommandModeGuard is the guard-time silence required before and
	// after the "+++" escape sequence when entering AT command mode from a
	// transport that is currently in plain AT mode. Default 1200ms.
	EnterCommandModeGuard time.Duration

	// EnterCommandModeTimeout bounds waiting for the "OK\r" reply to "+++".
	// Default 1500ms.
	EnterCommandModeTimeout time.Duration

	// OperatingMode selects API vs API_ESCAPE framing. Default API_ESCAPE.
	OperatingMode OperatingMode

	// Serial carries pass-through serial line parameters for a Transport
	// implementation; the protocol engine does not interpret it.
	Serial SerialParams

	// RetryDelay controls how the Reader handles ErrWouldBlock from a
	// non-blocking Transport's Read (a Write returning it is not retried):
	//   - negative: the Reader stops (fully non-blocking)
	//   - zero: yield (runtime.Gosched) and retry
	//   - positive: sleep for the duration and retry
	// Default is positive (cooperative blocking), since most Transport
	// implementations (a serial port, a TCP socket) block on Read/Write.
	RetryDelay time.Duration
}

// DefaultConfig returns the spec §6 defaults.
func DefaultConfig() Config {
	return Config{
		ReceiveTimeout:          2000 * time.Millisecond,
		EnterCommandModeGuard:   1200 * time.Millisecond,
		EnterCommandModeTimeout: 1500 * time.Millisecond,
		OperatingMode:           ModeAPIEscaped,
		Serial:                  DefaultSerialParams(),
		RetryDelay:              10 * time.Millisecond,
	}
}

// Option mutates a Config built from DefaultConfig.
type Option func(*Config)

// WithReceiveTimeout sets the deadline for every synchronous wait.
func WithReceiveTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReceiveTimeout = d }
}

// WithOperatingMode selects API vs API_ESCAPE framing.
func WithOperatingMode(m OperatingMode) Option {
	return func(c *Config) { c.OperatingMode = m }
}

// WithEnterCommandModeGuard sets the AT command-mode guard time.
func WithEnterCommandModeGuard(d time.Duration) Option {
	return func(c *Config) { c.EnterCommandModeGuard = d }
}

// WithEnterCommandModeTimeout sets the AT command-mode entry timeout.
func WithEnterCommandModeTimeout(d time.Duration) Option {
	return func(c *Config) { c.EnterCommandModeTimeout = d }
}

// WithSerialParams sets the pass-through serial line parameters.
func WithSerialParams(p SerialParams) Option {
	return func(c *Config) { c.Serial = p }
}

// WithRetryDelay sets the retry/wait policy used when the Transport returns
// ErrWouldBlock.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) { c.RetryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on ErrWouldBlock.
func WithBlock() Option { return func(c *Config) { c.RetryDelay = 0 } }

// WithNonblock makes the Reader stop on its first ErrWouldBlock.
func WithNonblock() Option { return func(c *Config) { c.RetryDelay = -1 } }

func newConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, fn := range opts {
		fn(&c)
	}
	return c
}
