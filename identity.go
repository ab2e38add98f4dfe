// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import (
	"encoding/hex"
	"strings"

	"github.com/imdario/mergo"
)

// HardwareVersion is the module's HV value, a 1-byte code identifying the
// radio hardware family (spec §3).
type HardwareVersion byte

// Known hardware version codes (spec §3 "hardware version (1 byte → enum)").
// Values follow the Digi XBee HV reference, the only public source for this
// byte-to-family mapping; other_examples/ carries no HV table of its own.
const (
	HardwareVersionUnknown           HardwareVersion = 0x00
	HardwareVersionXBee802_15_4      HardwareVersion = 0x17
	HardwareVersionXBeePro802_15_4   HardwareVersion = 0x18
	HardwareVersionXBeePro802_15_4B  HardwareVersion = 0x19
	HardwareVersionXBee802_15_4Rev2  HardwareVersion = 0x1E
	HardwareVersionXBeeProZNet25     HardwareVersion = 0x22
	HardwareVersionXBeeZNet25        HardwareVersion = 0x23
	HardwareVersionXBeeProZNet25Rev2 HardwareVersion = 0x24
	HardwareVersionXBeeZB            HardwareVersion = 0x25
	HardwareVersionXBeeProZB         HardwareVersion = 0x26
	HardwareVersionXBeeZBRev2        HardwareVersion = 0x27
	HardwareVersionXBeeProZBRev2     HardwareVersion = 0x28
	HardwareVersionXBeeProDigiMesh   HardwareVersion = 0x2A
	HardwareVersionXBeeDigiMesh      HardwareVersion = 0x2C
	HardwareVersionXBeePro10DigiMesh HardwareVersion = 0x2D
	HardwareVersionXBeePro63DigiMesh HardwareVersion = 0x2E
)

func (h HardwareVersion) String() string {
	return "0x" + strings.ToUpper(hex.EncodeToString([]byte{byte(h)}))
}

// Protocol identifies which XBee network protocol a module speaks. It
// governs framing details the facade must branch on (spec §4.8 IS sampling
// note: "for the RAW_802_15_4 protocol... for other protocols...").
type Protocol byte

const (
	ProtocolUnknown   Protocol = iota
	ProtocolRaw802154          // 802.15.4 point-to-point / star
	ProtocolZNet               // ZigBee-precursor "ZNet 2.5" stack
	ProtocolZigBee             // full ZigBee (ZB) stack
	ProtocolDigiMesh           // DigiMesh mesh stack
)

func (p Protocol) String() string {
	switch p {
	case ProtocolRaw802154:
		return "RAW_802_15_4"
	case ProtocolZNet:
		return "ZNET"
	case ProtocolZigBee:
		return "ZIGBEE"
	case ProtocolDigiMesh:
		return "DIGIMESH"
	default:
		return "UNKNOWN"
	}
}

// protocolFor is the fixed (hw, fw) → protocol decision table required by
// spec §3. The hardware byte alone picks the family for every code Digi has
// published; firmwareVersion is consulted only to disambiguate a firmware
// line that Digi re-used across two families (none currently known), so it
// is accepted but only the hardware byte is keyed on below. Kept as a
// function rather than a map literal so a future disambiguating case reads
// naturally as an added branch rather than a second table.
func protocolFor(hw HardwareVersion, firmwareVersion string) Protocol {
	_ = firmwareVersion
	switch hw {
	case HardwareVersionXBee802_15_4, HardwareVersionXBeePro802_15_4,
		HardwareVersionXBeePro802_15_4B, HardwareVersionXBee802_15_4Rev2:
		return ProtocolRaw802154
	case HardwareVersionXBeeProZNet25, HardwareVersionXBeeZNet25, HardwareVersionXBeeProZNet25Rev2:
		return ProtocolZNet
	case HardwareVersionXBeeZB, HardwareVersionXBeeProZB, HardwareVersionXBeeZBRev2, HardwareVersionXBeeProZBRev2:
		return ProtocolZigBee
	case HardwareVersionXBeeProDigiMesh, HardwareVersionXBeeDigiMesh,
		HardwareVersionXBeePro10DigiMesh, HardwareVersionXBeePro63DigiMesh:
		return ProtocolDigiMesh
	default:
		return ProtocolUnknown
	}
}

// Identity is a device's cached identity (spec §3 "Device identity"). A
// zero value field means "not yet populated"; initialize() (spec §4.8)
// fills only the empties of an existing Identity rather than overwriting it
// wholesale, so a cached NodeID survives a later re-initialize that only
// refreshes the rest.
type Identity struct {
	Addr64          Address64
	Addr16          Address16
	NodeID          string // ≤ 20 bytes, spec §3
	HardwareVersion HardwareVersion
	FirmwareVersion string // hex string, e.g. "1081"
	Protocol        Protocol
}

// fillEmpty merges src into dst, writing only fields that are currently
// zero-valued on dst (spec §3 Lifecycle: "initialize() fills only empties";
// §9 Open Question: "re-initialize overwrites only null fields"). It uses
// mergo.Merge in its default mode, which already skips any dst field that is
// non-zero — see https://pkg.go.dev/github.com/imdario/mergo#Merge, the same
// "don't clobber what's already set" semantics damianoneill-net/v2 relies on
// for option-struct defaulting. mergo never counts a fixed-size array as
// empty, so the two address fields are filled here directly; an Addr64 still
// at the unknown sentinel also counts as empty, as Initialize treats it.
func (id *Identity) fillEmpty(src Identity) error {
	if err := mergo.Merge(id, src); err != nil {
		return err
	}
	if (id.Addr64 == (Address64{}) || id.Addr64.IsUnknown()) && src.Addr64 != (Address64{}) {
		id.Addr64 = src.Addr64
	}
	if id.Addr16 == (Address16{}) {
		id.Addr16 = src.Addr16
	}
	return nil
}

// deriveProtocol recomputes Protocol from the current HardwareVersion and
// FirmwareVersion. Called once both HV and VR responses have landed.
func (id *Identity) deriveProtocol() {
	id.Protocol = protocolFor(id.HardwareVersion, id.FirmwareVersion)
}

// firmwareVersionString renders a VR response value (big-endian bytes) as
// the hex string form identity carries (spec S6: VR=[0x10,0x81] → "1081").
func firmwareVersionString(value []byte) string {
	return strings.ToUpper(hex.EncodeToString(value))
}

// nodeIDString trims a received NI value to its printable content: NI
// responses are padded with trailing NUL bytes up to the field's maximum
// length, which callers must not treat as part of the node ID (spec §3:
// "nodeID (≤ 20 bytes)").
func nodeIDString(value []byte) string {
	return strings.TrimRight(string(value), "\x00")
}
