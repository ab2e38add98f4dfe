// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import "testing"

func TestChecksum_GenerateAndValidate(t *testing.T) {
	var c checksum
	c.addBytes([]byte{0x08, 0x01, 0x4E, 0x49})

	got := c.generate()
	if got != 0x5F {
		t.Fatalf("generate() = 0x%02X, want 0x5F", got)
	}
	if !c.validate(got) {
		t.Fatalf("validate(0x%02X) = false, want true", got)
	}
	if c.validate(got ^ 0x01) {
		t.Fatalf("validate(corrupted trailing byte) = true, want false")
	}
}

func TestChecksum_AddBytesEmptyIsNoop(t *testing.T) {
	var c checksum
	c.add(0x42)
	before := c.sum
	c.addBytes(nil)
	c.addBytes([]byte{})
	if c.sum != before {
		t.Fatalf("sum changed after no-op addBytes: before=0x%02X after=0x%02X", before, c.sum)
	}
}

func TestChecksum_Reset(t *testing.T) {
	var c checksum
	c.addBytes([]byte{0x01, 0x02, 0x03})
	c.reset()
	if c.sum != 0 {
		t.Fatalf("sum after reset = 0x%02X, want 0", c.sum)
	}
	if c.generate() != 0xFF {
		t.Fatalf("generate() after reset = 0x%02X, want 0xFF", c.generate())
	}
}

// TestChecksum_Invariant2 checks spec §8 invariant 2:
// generate_checksum(body) + sum(body) ≡ 0xFF (mod 256).
func TestChecksum_Invariant2(t *testing.T) {
	bodies := [][]byte{
		{0x08, 0x01, 0x4E, 0x49},
		{0x08, 0x01, 0x4E, 0x49, 0x11},
		{},
		{0xFF, 0xFF, 0xFF},
	}
	for _, body := range bodies {
		var c checksum
		c.addBytes(body)
		gen := c.generate()
		if (int(c.sum)+int(gen))&0xFF != 0xFF {
			t.Fatalf("body %v: sum=0x%02X generate=0x%02X, sum+generate mod 256 != 0xFF", body, c.sum, gen)
		}
	}
}
