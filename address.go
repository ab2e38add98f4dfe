// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import (
	"encoding/hex"
	"strings"
)

// Address16 is a module's 16-bit network address (spec §3).
type Address16 [2]byte

// Address16Unknown is the sentinel "unknown" 16-bit address.
var Address16Unknown = Address16{0xFF, 0xFE}

func (a Address16) String() string { return strings.ToUpper(hex.EncodeToString(a[:])) }

// IsUnknown reports whether a is the sentinel unknown address.
func (a Address16) IsUnknown() bool { return a == Address16Unknown }

// Address64 is a module's 64-bit IEEE address (spec §3), formed by
// concatenating SH (high 4 bytes) and SL (low 4 bytes).
type Address64 [8]byte

// Address64Unknown is the sentinel "unknown" 64-bit address.
var Address64Unknown = Address64{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func (a Address64) String() string { return strings.ToUpper(hex.EncodeToString(a[:])) }

// IsUnknown reports whether a is the sentinel unknown address.
func (a Address64) IsUnknown() bool { return a == Address64Unknown }

// NewAddress64 concatenates sh (SH, high 4 bytes) and sl (SL, low 4 bytes,
// left-padded to 4 bytes) into a 64-bit address (spec §3).
func NewAddress64(sh, sl []byte) Address64 {
	var a Address64
	copy(a[0:4], padLeft(sh, 4))
	copy(a[4:8], padLeft(sl, 4))
	return a
}

// padLeft left-pads b with zero bytes to length n, or truncates the
// leftmost excess if b is longer than n.
func padLeft(b []byte, n int) []byte {
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
