// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xbee

import "fmt"

// IOLine is a named GPIO/analog pin on the module (spec GLOSSARY). Each line
// carries capability bits (PWM-capable, analog-capable) and an AT mnemonic
// used to configure it (spec §3).
type IOLine uint8

const (
	DIO0 IOLine = iota
	DIO1
	DIO2
	DIO3
	DIO4
	DIO5
	DIO6
	DIO7
	DIO8
	DIO10
	DIO11
	DIO12
)

func (l IOLine) String() string {
	switch l {
	case DIO0, DIO1, DIO2, DIO3, DIO4, DIO5, DIO6, DIO7, DIO8:
		return fmt.Sprintf("DIO%d", l.channelBit())
	case DIO10, DIO11, DIO12:
		return fmt.Sprintf("DIO%d", l.channelBit())
	default:
		return fmt.Sprintf("IOLine(%d)", uint8(l))
	}
}

// channelBit is this line's bit position in an IO sample's channel mask
// (spec §3 IO sample).
func (l IOLine) channelBit() int {
	switch l {
	case DIO0, DIO1, DIO2, DIO3, DIO4, DIO5, DIO6, DIO7, DIO8:
		return int(l)
	case DIO10:
		return 10
	case DIO11:
		return 11
	case DIO12:
		return 12
	default:
		return -1
	}
}

// configureMnemonic returns the AT command used to configure this line's
// mode (D0-D8, P0-P2).
func (l IOLine) configureMnemonic() (ATCommand, bool) {
	switch l {
	case DIO0:
		return ATCommand{'D', '0'}, true
	case DIO1:
		return ATCommand{'D', '1'}, true
	case DIO2:
		return ATCommand{'D', '2'}, true
	case DIO3:
		return ATCommand{'D', '3'}, true
	case DIO4:
		return ATCommand{'D', '4'}, true
	case DIO5:
		return ATCommand{'D', '5'}, true
	case DIO6:
		return ATCommand{'D', '6'}, true
	case DIO7:
		return ATCommand{'D', '7'}, true
	case DIO8:
		return ATCommand{'D', '8'}, true
	case DIO10:
		return ATCommand{'P', '0'}, true
	case DIO11:
		return ATCommand{'P', '1'}, true
	case DIO12:
		return ATCommand{'P', '2'}, true
	default:
		return ATCommand{}, false
	}
}

// pwmCapable reports whether this line can be driven as a PWM output
// (spec §4.8: set_pwm_duty/get_pwm_duty).
func (l IOLine) pwmCapable() bool { return l == DIO10 || l == DIO11 }

// pwmMnemonic returns the AT command controlling this line's PWM duty cycle
// (M0 for DIO10/PWM0, M1 for DIO11/PWM1).
func (l IOLine) pwmMnemonic() (ATCommand, bool) {
	switch l {
	case DIO10:
		return ATCommand{'M', '0'}, true
	case DIO11:
		return ATCommand{'M', '1'}, true
	default:
		return ATCommand{}, false
	}
}

// analogCapable reports whether this line can be sampled as an ADC input
// (spec §4.8: get_adc). Only AD0-AD3 (DIO0-DIO3) have an analog front end.
func (l IOLine) analogCapable() bool {
	switch l {
	case DIO0, DIO1, DIO2, DIO3:
		return true
	default:
		return false
	}
}

// IOLineMode is a per-pin configuration value written/read via the line's
// configure mnemonic (spec §4.8 set_io_config/get_io_config).
type IOLineMode byte

const (
	IOLineModeDisabled       IOLineMode = 0
	IOLineModeAnalogInput    IOLineMode = 2
	IOLineModeDigitalInput   IOLineMode = 3
	IOLineModeDigitalOutLow  IOLineMode = 4
	IOLineModeDigitalOutHigh IOLineMode = 5
)

// validFor reports whether mode is a legal configuration value for line
// (spec §4.8 get_io_config: "OpNotSupported... value not a valid mode for
// that line").
func (m IOLineMode) validFor(line IOLine) bool {
	switch m {
	case IOLineModeDisabled, IOLineModeDigitalInput, IOLineModeDigitalOutLow, IOLineModeDigitalOutHigh:
		return true
	case IOLineModeAnalogInput:
		return line.analogCapable()
	default:
		return false
	}
}

// DigitalLevel is a sampled or commanded digital IO value.
type DigitalLevel byte

const (
	Low  DigitalLevel = 0
	High DigitalLevel = 1
)

func (d DigitalLevel) String() string {
	if d == High {
		return "HIGH"
	}
	return "LOW"
}

// IOSample is a decoded IS-response or RX_IO_*/IO_DATA_SAMPLE_RX_INDICATOR
// payload (spec §3).
type IOSample struct {
	ChannelMask uint16
	Digital     map[IOLine]DigitalLevel
	Analog      map[IOLine]uint16
}

var sampledLines = []IOLine{DIO0, DIO1, DIO2, DIO3, DIO4, DIO5, DIO6, DIO7, DIO8, DIO10, DIO11, DIO12}

// parseIOSample decodes the common XBee IO sample payload shape:
//
//	sampleCount(1) digitalMask(2) analogMask(1) [digitalValues(2) if digitalMask!=0] [analogValues(2) each set bit in analogMask]
//
// The digital mask's bits correspond to IOLine.channelBit; only bits 0-8 and
// 10-12 are meaningful. This shape is shared by the IS AT response and the
// RX_IO_16/RX_IO_64/IO_DATA_SAMPLE_RX_INDICATOR async frames (spec §4.8 IS
// sampling note).
func parseIOSample(payload []byte) (IOSample, error) {
	if len(payload) < 4 {
		return IOSample{}, ErrOpNotSupported
	}
	digitalMask := uint16(payload[1])<<8 | uint16(payload[2])
	analogMask := payload[3]
	off := 4

	sample := IOSample{
		ChannelMask: digitalMask | uint16(analogMask)<<9,
		Digital:     map[IOLine]DigitalLevel{},
		Analog:      map[IOLine]uint16{},
	}

	if digitalMask != 0 {
		if len(payload) < off+2 {
			return IOSample{}, ErrOpNotSupported
		}
		values := uint16(payload[off])<<8 | uint16(payload[off+1])
		off += 2
		for _, line := range sampledLines {
			bit := line.channelBit()
			if bit < 0 || digitalMask&(1<<uint(bit)) == 0 {
				continue
			}
			if values&(1<<uint(bit)) != 0 {
				sample.Digital[line] = High
			} else {
				sample.Digital[line] = Low
			}
		}
	}

	for i := 0; i < 8; i++ {
		if analogMask&(1<<uint(i)) == 0 {
			continue
		}
		if len(payload) < off+2 {
			return IOSample{}, ErrOpNotSupported
		}
		value := (uint16(payload[off])<<8 | uint16(payload[off+1])) & 0x03FF
		off += 2
		if line, ok := analogLineForBit(i); ok {
			sample.Analog[line] = value
		}
	}

	return sample, nil
}

func analogLineForBit(bit int) (IOLine, bool) {
	switch bit {
	case 0:
		return DIO0, true
	case 1:
		return DIO1, true
	case 2:
		return DIO2, true
	case 3:
		return DIO3, true
	default:
		return 0, false
	}
}
