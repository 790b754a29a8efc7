// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hmc5883l

import (
	"errors"
	"testing"
	"time"
)

var errNack = errors.New("mock: no ack")

type regWrite struct {
	reg   byte
	value byte
}

// mockTransport is a register-image bus double. Reads of the six data
// registers pop scripted samples; everything else hits the register image.
type mockTransport struct {
	regs    [13]byte
	writes  []regWrite
	samples [][6]byte
	failW   map[byte]bool
	failR   map[byte]bool
}

func newMockTransport() *mockTransport {
	m := &mockTransport{
		failW: map[byte]bool{},
		failR: map[byte]bool{},
	}
	m.regs[regIDA] = idAValue
	m.regs[regIDB] = idBValue
	m.regs[regIDC] = idCValue
	return m
}

func (m *mockTransport) WriteByte(reg, value byte) error {
	if m.failW[reg] {
		return errNack
	}
	m.regs[reg] = value
	m.writes = append(m.writes, regWrite{reg, value})
	return nil
}

func (m *mockTransport) ReadByte(reg byte) (byte, error) {
	if m.failR[reg] {
		return 0, errNack
	}
	return m.regs[reg], nil
}

func (m *mockTransport) ReadBytes(reg byte, p []byte) error {
	if m.failR[reg] {
		return errNack
	}
	if reg == regDataXH && len(p) == 6 && len(m.samples) > 0 {
		copy(p, m.samples[0][:])
		m.samples = m.samples[1:]
		return nil
	}
	copy(p, m.regs[reg:int(reg)+len(p)])
	return nil
}

func (m *mockTransport) pushSample(x, z, y [2]byte) {
	m.samples = append(m.samples, [6]byte{x[0], x[1], z[0], z[1], y[0], y[1]})
}

func (m *mockTransport) lastWrite(t *testing.T) regWrite {
	t.Helper()
	if len(m.writes) == 0 {
		t.Fatal("no writes recorded")
	}
	return m.writes[len(m.writes)-1]
}

// newTestDev builds a Dev over m with default options and a sleep recorder.
func newTestDev(t *testing.T, m *mockTransport, slept *[]time.Duration) *Dev {
	t.Helper()
	opts := DefaultOpts
	opts.Sleep = func(d time.Duration) {
		if slept != nil {
			*slept = append(*slept, d)
		}
	}
	d, err := NewFromTransport(m, &opts)
	if err != nil {
		t.Fatalf("NewFromTransport: %v", err)
	}
	return d
}

func TestInit(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)

	t.Run("ConfigA", func(t *testing.T) {
		// 8-sample averaging, 15 Hz, normal bias.
		if m.regs[regConfigA] != 0x70 {
			t.Errorf("CONFIG_A = 0x%02X, want 0x70", m.regs[regConfigA])
		}
	})
	t.Run("ConfigB", func(t *testing.T) {
		if m.regs[regConfigB] != byte(Gain1090)<<5 {
			t.Errorf("CONFIG_B = 0x%02X, want 0x%02X", m.regs[regConfigB], byte(Gain1090)<<5)
		}
	})
	t.Run("Mode", func(t *testing.T) {
		if m.regs[regMode] != byte(ModeSingle) {
			t.Errorf("MODE = 0x%02X, want 0x%02X", m.regs[regMode], byte(ModeSingle))
		}
	})
	t.Run("IdentityScaleFactors", func(t *testing.T) {
		for g := Gain(0); g < NumGains; g++ {
			x, y, z := d.ScaleFactors(g)
			if x != 1 || y != 1 || z != 1 {
				t.Errorf("gain %d: scale factors (%v,%v,%v), want (1,1,1)", g, x, y, z)
			}
		}
	})
}

func TestTestConnection(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		if !d.TestConnection() {
			t.Error("expected connected")
		}
	})
	t.Run("WrongID", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.regs[regIDB] = 'X'
		if d.TestConnection() {
			t.Error("expected not connected with bad ID_B")
		}
	})
	t.Run("ReadError", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.failR[regIDA] = true
		if d.TestConnection() {
			t.Error("expected not connected on failed read")
		}
	})
}

func TestSetGain(t *testing.T) {
	t.Run("ReservedBitsZero", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.regs[regConfigB] = 0xFF // stale garbage must not leak through
		if err := d.SetGain(Gain390); err != nil {
			t.Fatalf("SetGain: %v", err)
		}
		if w := m.lastWrite(t); w.reg != regConfigB || w.value != 5<<5 {
			t.Errorf("wrote 0x%02X to reg 0x%02X, want 0x%02X to CONFIG_B", w.value, w.reg, 5<<5)
		}
		if d.CachedGain() != Gain390 {
			t.Errorf("cached gain = %d, want %d", d.CachedGain(), Gain390)
		}
	})
	t.Run("CacheOnlyOnAck", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.failW[regConfigB] = true
		if err := d.SetGain(Gain230); err == nil {
			t.Fatal("expected error on nacked write")
		}
		if d.CachedGain() != Gain1090 {
			t.Errorf("cached gain = %d, want unchanged %d", d.CachedGain(), Gain1090)
		}
	})
	t.Run("OutOfRange", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		if err := d.SetGain(Gain(8)); err == nil {
			t.Error("expected error for gain 8")
		}
	})
}

func TestSetMode(t *testing.T) {
	t.Run("ReservedBitsZero", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		if err := d.SetMode(ModeContinuous); err != nil {
			t.Fatalf("SetMode: %v", err)
		}
		if w := m.lastWrite(t); w.reg != regMode || w.value != 0x00 {
			t.Errorf("wrote 0x%02X to reg 0x%02X, want 0x00 to MODE", w.value, w.reg)
		}
	})
	t.Run("CacheUpdatesOnFailedWrite", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.failW[regMode] = true
		if err := d.SetMode(ModeContinuous); err == nil {
			t.Fatal("expected error on nacked write")
		}
		if d.CachedMode() != ModeContinuous {
			t.Errorf("cached mode = %d, want %d", d.CachedMode(), ModeContinuous)
		}
	})
}

func TestFieldReadModifyWrite(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)

	t.Run("SetMeasurementBiasKeepsNeighbours", func(t *testing.T) {
		m.regs[regConfigA] = 0x70
		if err := d.SetMeasurementBias(BiasPositive); err != nil {
			t.Fatalf("SetMeasurementBias: %v", err)
		}
		if m.regs[regConfigA] != 0x71 {
			t.Errorf("CONFIG_A = 0x%02X, want 0x71", m.regs[regConfigA])
		}
	})
	t.Run("SetDataRateKeepsNeighbours", func(t *testing.T) {
		m.regs[regConfigA] = 0x71
		if err := d.SetDataRate(Rate75Hz); err != nil {
			t.Fatalf("SetDataRate: %v", err)
		}
		if m.regs[regConfigA] != 0x79 {
			t.Errorf("CONFIG_A = 0x%02X, want 0x79", m.regs[regConfigA])
		}
	})
	t.Run("ReadBack", func(t *testing.T) {
		m.regs[regConfigA] = 0x79
		avg, err := d.SampleAveraging()
		if err != nil || avg != Average8 {
			t.Errorf("SampleAveraging = %d, %v, want %d", avg, err, Average8)
		}
		rate, err := d.DataRate()
		if err != nil || rate != Rate75Hz {
			t.Errorf("DataRate = %d, %v, want %d", rate, err, Rate75Hz)
		}
		bias, err := d.MeasurementBias()
		if err != nil || bias != BiasPositive {
			t.Errorf("MeasurementBias = %d, %v, want %d", bias, err, BiasPositive)
		}
	})
}

func TestRawHeading(t *testing.T) {
	t.Run("AxisOrder", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.samples = append(m.samples, [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
		x, y, z, err := d.RawHeading()
		if err != nil {
			t.Fatalf("RawHeading: %v", err)
		}
		if x != 0x0102 || z != 0x0304 || y != 0x0506 {
			t.Errorf("got x=0x%04X y=0x%04X z=0x%04X, want x=0x0102 y=0x0506 z=0x0304", x, y, z)
		}
	})
	t.Run("SingleModeRetriggers", func(t *testing.T) {
		m := newMockTransport()
		var slept []time.Duration
		d := newTestDev(t, m, &slept)
		slept = slept[:0]
		m.writes = nil
		m.pushSample([2]byte{0, 1}, [2]byte{0, 2}, [2]byte{0, 3})
		if _, _, _, err := d.RawHeading(); err != nil {
			t.Fatalf("RawHeading: %v", err)
		}
		if len(m.writes) != 1 || m.writes[0] != (regWrite{regMode, byte(ModeSingle)}) {
			t.Errorf("writes = %v, want one single-mode trigger", m.writes)
		}
		if len(slept) != 1 || slept[0] != measurementPeriod {
			t.Errorf("slept = %v, want one measurement period", slept)
		}
	})
	t.Run("ContinuousModeReadsDirectly", func(t *testing.T) {
		m := newMockTransport()
		var slept []time.Duration
		d := newTestDev(t, m, &slept)
		if err := d.SetMode(ModeContinuous); err != nil {
			t.Fatalf("SetMode: %v", err)
		}
		slept = slept[:0]
		m.writes = nil
		m.pushSample([2]byte{0, 1}, [2]byte{0, 2}, [2]byte{0, 3})
		if _, _, _, err := d.RawHeading(); err != nil {
			t.Fatalf("RawHeading: %v", err)
		}
		if len(m.writes) != 0 {
			t.Errorf("writes = %v, want none", m.writes)
		}
		if len(slept) != 0 {
			t.Errorf("slept = %v, want none", slept)
		}
	})
	t.Run("BusError", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.failR[regDataXH] = true
		x, y, z, err := d.RawHeading()
		if err == nil {
			t.Fatal("expected error")
		}
		if x != 0 || y != 0 || z != 0 {
			t.Errorf("got (%d,%d,%d), want zero values with error", x, y, z)
		}
	})
}

func TestHeading(t *testing.T) {
	cases := []struct {
		name    string
		scale   [3]float64
		raw     [6]byte // wire order: X, Z, Y
		x, y, z int16
	}{
		{"Identity", [3]float64{1, 1, 1}, [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, 0x0102, 0x0506, 0x0304},
		{"MaxPositive", [3]float64{1, 1, 1}, [6]byte{0x7F, 0xFF, 0x7F, 0xFF, 0x7F, 0xFF}, 32767, 32767, 32767},
		{"MaxNegative", [3]float64{1, 1, 1}, [6]byte{0x80, 0x01, 0x80, 0x01, 0x80, 0x01}, -32767, -32767, -32767},
		{"OverflowPassesThrough", [3]float64{1, 1, 1}, [6]byte{0xF0, 0x00, 0xF0, 0x00, 0xF0, 0x00}, -4096, -4096, -4096},
		// 100*1.5=150, -3*0.5=-1.5 truncates toward zero to -1, 7*0.5=3.5 to 3.
		{"TruncatesTowardZero", [3]float64{1.5, 0.5, 0.5}, [6]byte{0x00, 0x64, 0x00, 0x07, 0xFF, 0xFD}, 150, -1, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMockTransport()
			d := newTestDev(t, m, nil)
			d.scale[d.gain] = tc.scale
			m.samples = append(m.samples, tc.raw)
			x, y, z, err := d.Heading()
			if err != nil {
				t.Fatalf("Heading: %v", err)
			}
			if x != tc.x || y != tc.y || z != tc.z {
				t.Errorf("got (%d,%d,%d), want (%d,%d,%d)", x, y, z, tc.x, tc.y, tc.z)
			}
		})
	}
}

func TestSingleAxisAccessors(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)
	// Each accessor burns one full sample.
	for i := 0; i < 3; i++ {
		m.samples = append(m.samples, [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	}
	if x, err := d.RawHeadingX(); err != nil || x != 0x0102 {
		t.Errorf("RawHeadingX = %d, %v, want 0x0102", x, err)
	}
	if y, err := d.RawHeadingY(); err != nil || y != 0x0506 {
		t.Errorf("RawHeadingY = %d, %v, want 0x0506", y, err)
	}
	if z, err := d.RawHeadingZ(); err != nil || z != 0x0304 {
		t.Errorf("RawHeadingZ = %d, %v, want 0x0304", z, err)
	}
	if len(m.samples) != 0 {
		t.Errorf("%d scripted samples left, want 0", len(m.samples))
	}
}

func TestStatusBits(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)

	m.regs[regStatus] = 0x01
	ready, err := d.ReadyStatus()
	if err != nil || !ready {
		t.Errorf("ReadyStatus = %v, %v, want true", ready, err)
	}
	lock, err := d.LockStatus()
	if err != nil || lock {
		t.Errorf("LockStatus = %v, %v, want false", lock, err)
	}

	m.regs[regStatus] = 0x02
	ready, err = d.ReadyStatus()
	if err != nil || ready {
		t.Errorf("ReadyStatus = %v, %v, want false", ready, err)
	}
	lock, err = d.LockStatus()
	if err != nil || !lock {
		t.Errorf("LockStatus = %v, %v, want true", lock, err)
	}
}

func TestID(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)
	a, b, c, err := d.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if a != 'H' || b != '4' || c != '3' {
		t.Errorf("ID = %q %q %q, want 'H' '4' '3'", a, b, c)
	}
}
