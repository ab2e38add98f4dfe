// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

// checksum accumulates an 8-bit running sum over the type and payload bytes
// of a frame (spec §3/§4.1). The start delimiter and length are never
// included.
type checksum struct {
	sum byte
}

// add folds a single byte into the running sum.
func (c *checksum) add(b byte) {
	c.sum += b
}

// addBytes folds bs into the running sum. A nil or empty bs is a no-op.
func (c *checksum) addBytes(bs []byte) {
	for _, b := range bs {
		c.sum += b
	}
}

// reset clears the accumulator.
func (c *checksum) reset() {
	c.sum = 0
}

// generate returns the trailing checksum byte for the bytes folded so far.
func (c *checksum) generate() byte {
	return 0xFF - c.sum
}

// validate reports whether trailing completes the running sum to 0xFF.
func (c *checksum) validate(trailing byte) bool {
	return (c.sum+trailing)&0xFF == 0xFF
}
