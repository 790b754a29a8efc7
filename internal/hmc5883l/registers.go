// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hmc5883l

import "time"

// DefaultAddr is the 7-bit I2C address of the HMC5883L. The chip has no
// address pins, so in practice this is the only address.
const DefaultAddr uint16 = 0x1E

// Register map (datasheet table 2).
const (
	regConfigA byte = 0x00
	regConfigB byte = 0x01
	regMode    byte = 0x02
	regDataXH  byte = 0x03
	regDataXL  byte = 0x04
	regDataZH  byte = 0x05
	regDataZL  byte = 0x06
	regDataYH  byte = 0x07
	regDataYL  byte = 0x08
	regStatus  byte = 0x09
	regIDA     byte = 0x0A
	regIDB     byte = 0x0B
	regIDC     byte = 0x0C
)

// Identification register contents for a healthy part.
const (
	idAValue byte = 'H'
	idBValue byte = '4'
	idCValue byte = '3'
)

// STATUS register bits.
const (
	statusReadyBit byte = 0
	statusLockBit  byte = 1
)

// field describes one configuration bitfield: the register it lives in, the
// MSB of the field, and its width in bits. All field access goes through
// Dev.readField / Dev.writeField so the shift/mask arithmetic exists once.
type field struct {
	reg    byte
	msb    byte
	length byte
}

func (f field) shift() byte { return f.msb - f.length + 1 }
func (f field) mask() byte  { return byte((1<<f.length)-1) << f.shift() }

var (
	fieldAveraging = field{regConfigA, 6, 2}
	fieldDataRate  = field{regConfigA, 4, 3}
	fieldBias      = field{regConfigA, 1, 2}
	fieldGain      = field{regConfigB, 7, 3}
	fieldMode      = field{regMode, 1, 2}
)

// Averaging selects how many samples the device averages per output.
type Averaging byte

const (
	Average1 Averaging = iota
	Average2
	Average4
	Average8
)

// Rate selects the continuous-mode data output rate.
type Rate byte

const (
	Rate0_75Hz Rate = iota // 0.75 Hz
	Rate1_5Hz
	Rate3Hz
	Rate7_5Hz
	Rate15Hz // power-on default
	Rate30Hz
	Rate75Hz
)

// Bias selects the measurement bias applied through the offset straps.
// Positive/negative bias drives a known artificial field on all three axes
// and is how the self test works.
type Bias byte

const (
	BiasNormal Bias = iota
	BiasPositive
	BiasNegative
)

// Gain selects one of 8 sensitivity ranges. The constant names carry the
// nominal LSB/Gauss figure from the datasheet.
type Gain byte

const (
	Gain1370 Gain = iota // ±0.88 Ga
	Gain1090             // ±1.3 Ga, power-on default
	Gain820              // ±1.9 Ga
	Gain660              // ±2.5 Ga
	Gain440              // ±4.0 Ga
	Gain390              // ±4.7 Ga
	Gain330              // ±5.6 Ga
	Gain230              // ±8.1 Ga
)

// NumGains is the number of discrete gain settings.
const NumGains = 8

// lsbPerGauss maps a Gain to its nominal digital resolution.
var lsbPerGauss = [NumGains]float64{1370, 1090, 820, 660, 440, 390, 330, 230}

// LSBPerGauss returns the nominal counts-per-Gauss for the gain setting.
func (g Gain) LSBPerGauss() float64 { return lsbPerGauss[g] }

// Mode selects the operating mode in the MODE register.
type Mode byte

const (
	ModeContinuous Mode = iota
	ModeSingle
	ModeIdle
)

// Self-test excitation field applied by the offset straps, in Gauss
// (datasheet self test limits, nominal).
const (
	selfTestGaussX = 1.16
	selfTestGaussY = 1.16
	selfTestGaussZ = 1.08
)

// OverflowValue is written to a data register when the ADC over- or
// underflows on that axis, or when the bias math overflows. It clears on the
// next valid measurement.
const OverflowValue int16 = -4096

const (
	// measurementPeriod is how long a triggered single measurement takes
	// before the data registers are valid.
	measurementPeriod = 6 * time.Millisecond
	// powerUpDelay is the wait after power-on before the device accepts
	// bus commands.
	powerUpDelay = 200 * time.Microsecond
)
