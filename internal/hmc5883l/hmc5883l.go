// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hmc5883l drives the Honeywell HMC5883L 3-axis magnetometer over a
// register-oriented bus, normally I2C. Beyond the plain register accessors it
// implements the self-test calibration that derives per-gain scale factors
// from the known offset-strap excitation field.
//
// A Dev is not safe for concurrent use; callers serialize access externally.
package hmc5883l

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// Opts holds the construction options for a Dev.
type Opts struct {
	// Addr is the 7-bit bus address. 0 means DefaultAddr.
	Addr uint16
	// Averaging, Rate, Gain and Mode are programmed by Init.
	Averaging Averaging
	Rate      Rate
	Gain      Gain
	Mode      Mode
	// Sleep blocks the caller for at least d. nil means time.Sleep. Tests
	// inject a recorder here.
	Sleep func(d time.Duration)
}

// DefaultOpts matches the datasheet power-on configuration except for
// averaging, which is raised to 8 samples for quieter output.
var DefaultOpts = Opts{
	Averaging: Average8,
	Rate:      Rate15Hz,
	Gain:      Gain1090,
	Mode:      ModeSingle,
}

// Dev is a handle to one HMC5883L. It caches the gain and mode last written
// to the device and keeps the per-gain scale factor table filled in by
// Calibrate.
type Dev struct {
	tp    Transport
	sleep func(time.Duration)

	gain  Gain
	mode  Mode
	scale [NumGains][3]float64
}

// New opens the device on an I2C bus, verifies its identification registers
// and programs the configuration from opts.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	d, err := NewFromTransport(NewI2CTransport(bus, addr), opts)
	if err != nil {
		return nil, err
	}
	if !d.TestConnection() {
		return nil, fmt.Errorf("hmc5883l: no device at 0x%02X (bad identification registers)", addr)
	}
	return d, nil
}

// NewFromTransport builds a Dev on an already-bound transport and programs
// the configuration from opts. It does not probe the identification
// registers.
func NewFromTransport(tp Transport, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{tp: tp, sleep: opts.Sleep}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	if err := d.Init(opts.Averaging, opts.Rate, opts.Gain, opts.Mode); err != nil {
		return nil, err
	}
	return d, nil
}

// Init programs CONFIG_A in one write (averaging, rate, normal bias), then
// the gain and mode registers, and resets every scale factor to identity.
// Scale factors stay 1.0 until a Calibrate for that gain succeeds.
func (d *Dev) Init(avg Averaging, rate Rate, gain Gain, mode Mode) error {
	d.sleep(powerUpDelay)

	cra := byte(avg)<<fieldAveraging.shift() |
		byte(rate)<<fieldDataRate.shift() |
		byte(BiasNormal)<<fieldBias.shift()
	if err := d.tp.WriteByte(regConfigA, cra); err != nil {
		return err
	}
	if err := d.SetGain(gain); err != nil {
		return err
	}
	if err := d.SetMode(mode); err != nil {
		return err
	}
	for g := range d.scale {
		d.scale[g] = [3]float64{1, 1, 1}
	}
	return nil
}

// TestConnection reports whether the three identification registers read
// back as 'H', '4', '3'. Any bus error counts as not connected.
func (d *Dev) TestConnection() bool {
	var id [3]byte
	if err := d.tp.ReadBytes(regIDA, id[:]); err != nil {
		return false
	}
	return id[0] == idAValue && id[1] == idBValue && id[2] == idCValue
}

// ID returns the raw contents of the three identification registers.
func (d *Dev) ID() (a, b, c byte, err error) {
	var id [3]byte
	if err = d.tp.ReadBytes(regIDA, id[:]); err != nil {
		return 0, 0, 0, err
	}
	return id[0], id[1], id[2], nil
}

// readField extracts one configuration field, right-aligned.
func (d *Dev) readField(f field) (byte, error) {
	b, err := d.tp.ReadByte(f.reg)
	if err != nil {
		return 0, err
	}
	return (b & f.mask()) >> f.shift(), nil
}

// writeField read-modify-writes one configuration field, leaving the other
// bits of the register untouched.
func (d *Dev) writeField(f field, value byte) error {
	b, err := d.tp.ReadByte(f.reg)
	if err != nil {
		return err
	}
	b = (b &^ f.mask()) | (value << f.shift() & f.mask())
	return d.tp.WriteByte(f.reg, b)
}

func (d *Dev) readStatusBit(bit byte) (bool, error) {
	b, err := d.tp.ReadByte(regStatus)
	if err != nil {
		return false, err
	}
	return b&(1<<bit) != 0, nil
}

// SampleAveraging reads the averaged-samples setting from CONFIG_A.
func (d *Dev) SampleAveraging() (Averaging, error) {
	v, err := d.readField(fieldAveraging)
	return Averaging(v), err
}

// SetSampleAveraging sets how many samples are averaged per measurement.
func (d *Dev) SetSampleAveraging(a Averaging) error {
	return d.writeField(fieldAveraging, byte(a))
}

// DataRate reads the continuous-mode output rate from CONFIG_A.
func (d *Dev) DataRate() (Rate, error) {
	v, err := d.readField(fieldDataRate)
	return Rate(v), err
}

// SetDataRate sets the continuous-mode output rate.
func (d *Dev) SetDataRate(r Rate) error {
	return d.writeField(fieldDataRate, byte(r))
}

// MeasurementBias reads the offset-strap bias setting from CONFIG_A.
func (d *Dev) MeasurementBias() (Bias, error) {
	v, err := d.readField(fieldBias)
	return Bias(v), err
}

// SetMeasurementBias sets the offset-strap bias. Positive or negative bias
// applies the artificial self-test field on all three axes.
func (d *Dev) SetMeasurementBias(b Bias) error {
	return d.writeField(fieldBias, byte(b))
}

// Gain reads the gain setting back from CONFIG_B.
func (d *Dev) Gain() (Gain, error) {
	v, err := d.readField(fieldGain)
	return Gain(v), err
}

// SetGain writes CONFIG_B as a whole byte with bits 4-0 forced to zero; the
// datasheet requires the reserved bits to be written as zero. The cached
// gain, which selects the scale factors applied by Heading, only moves on an
// acknowledged write.
func (d *Dev) SetGain(g Gain) error {
	if g >= NumGains {
		return fmt.Errorf("hmc5883l: gain %d out of range", g)
	}
	if err := d.tp.WriteByte(regConfigB, byte(g)<<fieldGain.shift()); err != nil {
		return err
	}
	d.gain = g
	return nil
}

// CachedGain returns the gain last successfully written, i.e. the one whose
// scale factors Heading applies.
func (d *Dev) CachedGain() Gain { return d.gain }

// Mode reads the operating mode back from the MODE register.
func (d *Dev) Mode() (Mode, error) {
	v, err := d.readField(fieldMode)
	return Mode(v), err
}

// SetMode writes the MODE register as a whole byte with bits 7-2 forced to
// zero, as the datasheet requires. The cached mode updates even when the
// write fails: it only gates whether RawHeading re-triggers a measurement,
// and the trigger rewrites the register anyway.
func (d *Dev) SetMode(m Mode) error {
	err := d.tp.WriteByte(regMode, byte(m)<<fieldMode.shift())
	d.mode = m
	return err
}

// CachedMode returns the mode last requested through SetMode.
func (d *Dev) CachedMode() Mode { return d.mode }

// RawHeading reads the three data registers in one 6-byte transfer. In
// single-measurement mode it first re-triggers a measurement and blocks for
// one measurement period; in continuous mode the latest latched sample is
// read directly.
//
// An axis that over- or underflowed reads as OverflowValue; that is passed
// through for the caller to check. The device streams the axes as X, Z, Y
// (big endian), and that order is decoded here.
func (d *Dev) RawHeading() (x, y, z int16, err error) {
	if d.mode == ModeSingle {
		if err = d.tp.WriteByte(regMode, byte(ModeSingle)<<fieldMode.shift()); err != nil {
			return 0, 0, 0, err
		}
		d.sleep(measurementPeriod)
	}
	var buf [6]byte
	if err = d.tp.ReadBytes(regDataXH, buf[:]); err != nil {
		return 0, 0, 0, err
	}
	x = int16(uint16(buf[0])<<8 | uint16(buf[1]))
	z = int16(uint16(buf[2])<<8 | uint16(buf[3]))
	y = int16(uint16(buf[4])<<8 | uint16(buf[5]))
	return x, y, z, nil
}

// Heading returns the raw 3-axis reading multiplied elementwise by the scale
// factors of the cached gain, truncated toward zero to int16.
func (d *Dev) Heading() (x, y, z int16, err error) {
	rx, ry, rz, err := d.RawHeading()
	if err != nil {
		return 0, 0, 0, err
	}
	sf := &d.scale[d.gain]
	x = int16(int64(sf[0] * float64(rx)))
	y = int16(int64(sf[1] * float64(ry)))
	z = int16(int64(sf[2] * float64(rz)))
	return x, y, z, nil
}

// HeadingX returns the scaled X axis. Like the other single-axis accessors
// it performs a full 3-axis read and discards the rest.
func (d *Dev) HeadingX() (int16, error) {
	x, _, _, err := d.Heading()
	return x, err
}

// HeadingY returns the scaled Y axis.
func (d *Dev) HeadingY() (int16, error) {
	_, y, _, err := d.Heading()
	return y, err
}

// HeadingZ returns the scaled Z axis.
func (d *Dev) HeadingZ() (int16, error) {
	_, _, z, err := d.Heading()
	return z, err
}

// RawHeadingX returns the raw X axis.
func (d *Dev) RawHeadingX() (int16, error) {
	x, _, _, err := d.RawHeading()
	return x, err
}

// RawHeadingY returns the raw Y axis.
func (d *Dev) RawHeadingY() (int16, error) {
	_, y, _, err := d.RawHeading()
	return y, err
}

// RawHeadingZ returns the raw Z axis.
func (d *Dev) RawHeadingZ() (int16, error) {
	_, _, z, err := d.RawHeading()
	return z, err
}

// LockStatus reads the data output register lock bit. While set, a partial
// read is in progress and new samples are held off the data registers.
func (d *Dev) LockStatus() (bool, error) {
	return d.readStatusBit(statusLockBit)
}

// ReadyStatus reads the data ready bit.
func (d *Dev) ReadyStatus() (bool, error) {
	return d.readStatusBit(statusReadyBit)
}

// ScaleFactors returns the X, Y, Z scale multipliers stored for a gain.
func (d *Dev) ScaleFactors(g Gain) (x, y, z float64) {
	return d.scale[g][0], d.scale[g][1], d.scale[g][2]
}
