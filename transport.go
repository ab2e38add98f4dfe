// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

// Transport is the abstract byte channel the protocol engine runs over
// (spec §4.4/§6). It is deliberately the only external collaborator this
// module depends on: a concrete serial or TCP transport is out of scope
// (spec §1 Non-goals) and lives in the host program.
//
// Read and Write may be blocking or non-blocking. A non-blocking
// implementation signals "no progress without waiting" by returning
// ErrWouldBlock; the Reader retries a Read per Config.RetryDelay, while
// the Correlator does not retry a Write and reports ErrWouldBlock from it
// as an *IoError.
// Framing errors (bad checksum, bad length) are never the Transport's
// responsibility — only genuine I/O failures are reported via error.
type Transport interface {
	// Open prepares the channel for Read/Write. Opening an already-open
	// Transport is a no-op.
	Open() error

	// Close releases the channel. Closing an already-closed Transport is a
	// no-op. After Close, IsOpen reports false and Read/Write fail.
	Close() error

	// IsOpen reports whether the channel currently accepts Read/Write.
	IsOpen() bool

	// Read reads into p, returning the number of bytes read. io.EOF, or
	// zero bytes with a nil error, signals the channel is closed; the Reader
	// treats both the same way.
	Read(p []byte) (n int, err error)

	// Write writes p, returning the number of bytes written. A short write
	// without error is a protocol violation a Transport must not commit.
	Write(p []byte) (n int, err error)
}
