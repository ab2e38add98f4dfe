// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Wire format (spec §3/§4.2/§6):
//
//	0x7E | len_hi | len_lo | type | payload | cksum
//
// len is the big-endian 16-bit count of type+payload bytes (the type byte
// counts, the frame ID — when the frame type carries one — is the first
// byte of payload). cksum is 0xFF minus the 8-bit sum of type+payload.
//
// In escaped mode (API_ESCAPE), every byte after the start delimiter whose
// value is in {0x7E, 0x7D, 0x11, 0x13} is replaced by the two-byte sequence
// 0x7D, value^0x20. The start delimiter itself is never escaped.
//
// Decode is a resumable byte-at-a-time state machine (WAIT_DELIM, LEN_HI,
// LEN_LO, PAYLOAD, CKSUM, ESCAPED_NEXT) so the Reader can feed it directly
// from short Transport.Read results, the same discipline
// hayabusa-cloud-framer/internal.go uses for its own length-prefix header
// parse.

package xbee

const (
	startDelimiter byte = 0x7E
	escapeByte     byte = 0x7D
	escapeXor      byte = 0x20
)

func isEscapeCandidate(b byte) bool {
	switch b {
	case 0x7E, 0x7D, 0x11, 0x13:
		return true
	default:
		return false
	}
}

// Encode serializes f to its wire form. If escaped, every byte after the
// start delimiter is escaped per the rule above (spec §4.2).
func Encode(f Frame, escaped bool) []byte {
	body := make([]byte, 0, 2+len(f.Payload))
	body = append(body, byte(f.Type))
	if f.Type.carriesFrameID() {
		body = append(body, f.ID)
	}
	body = append(body, f.Payload...)

	var cs checksum
	cs.addBytes(body)

	length := len(body)
	raw := make([]byte, 0, 2+len(body)+1)
	raw = append(raw, byte(length>>8), byte(length&0xFF))
	raw = append(raw, body...)
	raw = append(raw, cs.generate())

	out := make([]byte, 0, 1+len(raw)+len(raw)/4)
	out = append(out, startDelimiter)
	for _, b := range raw {
		if escaped && isEscapeCandidate(b) {
			out = append(out, escapeByte, b^escapeXor)
		} else {
			out = append(out, b)
		}
	}
	return out
}

type decodeState uint8

const (
	stateWaitDelim decodeState = iota
	stateLenHi
	stateLenLo
	statePayload
	stateChecksum
	stateEscapedNext
)

// Codec is a resumable, escape-aware decoder for one Transport's inbound
// byte stream (spec §4.2). It is not safe for concurrent use; the Reader
// (spec §4.5) is its only caller.
type Codec struct {
	escaped bool

	state     decodeState
	prevState decodeState // logical state to resume once ESCAPED_NEXT is consumed

	lenHi  byte
	length int // remaining type+payload byte count for the in-flight frame
	buf    []byte
	cksum  checksum
}

// NewCodec returns a Codec that decodes escaped or plain frames.
func NewCodec(escaped bool) *Codec {
	return &Codec{escaped: escaped, state: stateWaitDelim}
}

// Feed advances the decoder by one raw wire byte. ready is true exactly
// when frame holds a fully decoded frame. err is non-nil exactly when a
// framing error (BadChecksum/BadLength) was detected; the decoder has
// already resynced to WAIT_DELIM by the time Feed returns, and the caller
// (the Reader) is expected to log and continue per spec §4.5 — these errors
// never surface past the Reader (spec §7).
func (c *Codec) Feed(b byte) (frame Frame, ready bool, err error) {
	// An unexpected start delimiter resyncs at any time, per spec §4.2,
	// including mid escape-sequence: a literal 0x7E is never a legitimately
	// escaped byte since the encoder never escapes the delimiter. In plain
	// mode this also applies to a 0x7E inside a frame's body, so such a
	// frame does not decode.
	if b == startDelimiter {
		c.resetFrame()
		c.state = stateLenHi
		return Frame{}, false, nil
	}

	if c.state == stateEscapedNext {
		b ^= escapeXor
		c.state = c.prevState
		return c.consume(b)
	}

	if c.state == stateWaitDelim {
		// Noise before the delimiter; discard silently (invariant 3).
		return Frame{}, false, nil
	}

	if c.escaped && b == escapeByte {
		c.prevState = c.state
		c.state = stateEscapedNext
		return Frame{}, false, nil
	}

	return c.consume(b)
}

func (c *Codec) consume(b byte) (Frame, bool, error) {
	switch c.state {
	case stateLenHi:
		c.lenHi = b
		c.state = stateLenLo
		return Frame{}, false, nil

	case stateLenLo:
		length := int(c.lenHi)<<8 | int(b)
		if length == 0 {
			c.state = stateWaitDelim
			return Frame{}, false, errBadLength
		}
		c.length = length
		c.buf = make([]byte, 0, length)
		c.cksum.reset()
		c.state = statePayload
		return Frame{}, false, nil

	case statePayload:
		c.buf = append(c.buf, b)
		c.cksum.add(b)
		if len(c.buf) == c.length {
			c.state = stateChecksum
		}
		return Frame{}, false, nil

	case stateChecksum:
		ok := c.cksum.validate(b)
		body := c.buf
		c.resetFrame()
		c.state = stateWaitDelim
		if !ok {
			return Frame{}, false, errBadChecksum
		}
		return splitBody(body), true, nil

	default: // stateWaitDelim: not reached, Feed returns before calling consume
		return Frame{}, false, nil
	}
}

func (c *Codec) resetFrame() {
	c.lenHi = 0
	c.length = 0
	c.buf = nil
	c.cksum.reset()
}

// splitBody interprets a decoded type+payload body into a Frame, peeling off
// the frame-ID byte for frame types whose wire layout carries one.
func splitBody(body []byte) Frame {
	if len(body) == 0 {
		return Frame{}
	}
	t := FrameType(body[0])
	rest := body[1:]
	if t.carriesFrameID() && len(rest) > 0 {
		return Frame{Type: t, ID: rest[0], Payload: rest[1:]}
	}
	return Frame{Type: t, Payload: rest}
}

// DecodeAll feeds every byte of stream through a fresh Codec and returns
// each frame decoded along with any framing errors encountered, in stream
// order. It is a test/diagnostic convenience; the Reader uses Feed directly
// so it can interleave decoding with Transport.Read.
func DecodeAll(stream []byte, escaped bool) (frames []Frame, errs []error) {
	c := NewCodec(escaped)
	for _, b := range stream {
		f, ready, err := c.Feed(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ready {
			frames = append(frames, f)
		}
	}
	return frames, errs
}
