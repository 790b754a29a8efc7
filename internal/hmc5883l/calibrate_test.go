// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hmc5883l

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCalibrateSuccess(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)
	if err := d.SetGain(Gain820); err != nil {
		t.Fatalf("SetGain: %v", err)
	}

	// First acquisition latches the ambient field, second is the netted
	// self-test response.
	m.pushSample([2]byte{0x00, 0x64}, [2]byte{0x00, 0x64}, [2]byte{0x00, 0x64})
	m.pushSample([2]byte{0x01, 0xF4}, [2]byte{0x01, 0xCC}, [2]byte{0x01, 0xE0}) // x=500 z=460 y=480

	if err := d.Calibrate(int(Gain390)); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	t.Run("ScaleFactors", func(t *testing.T) {
		x, y, z := d.ScaleFactors(Gain390)
		if !almostEqual(x, 1.16*390/500) {
			t.Errorf("x scale = %v, want %v", x, 1.16*390/500)
		}
		if !almostEqual(y, 1.16*390/480) {
			t.Errorf("y scale = %v, want %v", y, 1.16*390/480)
		}
		if !almostEqual(z, 1.08*390/460) {
			t.Errorf("z scale = %v, want %v", z, 1.08*390/460)
		}
	})
	t.Run("GainRestored", func(t *testing.T) {
		if m.regs[regConfigB] != byte(Gain820)<<5 {
			t.Errorf("CONFIG_B = 0x%02X, want 0x%02X", m.regs[regConfigB], byte(Gain820)<<5)
		}
		if d.CachedGain() != Gain820 {
			t.Errorf("cached gain = %d, want %d", d.CachedGain(), Gain820)
		}
	})
	t.Run("BiasRestored", func(t *testing.T) {
		if m.regs[regConfigA]&fieldBias.mask() != byte(BiasNormal) {
			t.Errorf("CONFIG_A bias bits = 0x%02X, want normal", m.regs[regConfigA]&fieldBias.mask())
		}
	})
	t.Run("OtherGainsUntouched", func(t *testing.T) {
		for g := Gain(0); g < NumGains; g++ {
			if g == Gain390 {
				continue
			}
			x, y, z := d.ScaleFactors(g)
			if x != 1 || y != 1 || z != 1 {
				t.Errorf("gain %d: scale factors (%v,%v,%v), want identity", g, x, y, z)
			}
		}
	})
}

func TestCalibrateNegativeTargetUsesCachedGain(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)
	if err := d.SetGain(Gain660); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
	m.pushSample([2]byte{0x00, 0x64}, [2]byte{0x00, 0x64}, [2]byte{0x00, 0x64})
	m.pushSample([2]byte{0x02, 0x00}, [2]byte{0x02, 0x00}, [2]byte{0x02, 0x00}) // all 512

	if err := d.Calibrate(-1); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	x, _, _ := d.ScaleFactors(Gain660)
	if !almostEqual(x, 1.16*660/512) {
		t.Errorf("x scale = %v, want %v", x, 1.16*660/512)
	}
	if gx, _, _ := d.ScaleFactors(Gain1090); gx != 1 {
		t.Errorf("default gain scale touched: %v", gx)
	}
}

func TestCalibrateOverflow(t *testing.T) {
	overflow := [2]byte{0xF0, 0x00} // -4096 on the wire

	t.Run("FirstAcquisition", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		d.scale[Gain440] = [3]float64{2, 2, 2}
		m.pushSample(overflow, [2]byte{0x00, 0x64}, [2]byte{0x00, 0x64})

		err := d.Calibrate(int(Gain440))
		if !errors.Is(err, ErrSaturated) {
			t.Fatalf("Calibrate = %v, want ErrSaturated", err)
		}
		x, y, z := d.ScaleFactors(Gain440)
		if x != 1 || y != 1 || z != 1 {
			t.Errorf("scale factors (%v,%v,%v), want reset to identity", x, y, z)
		}
	})
	t.Run("SecondAcquisitionLeavesTestConfig", func(t *testing.T) {
		m := newMockTransport()
		d := newTestDev(t, m, nil)
		m.pushSample([2]byte{0x00, 0x64}, [2]byte{0x00, 0x64}, [2]byte{0x00, 0x64})
		m.pushSample([2]byte{0x00, 0x64}, overflow, [2]byte{0x00, 0x64})

		err := d.Calibrate(int(Gain440))
		if !errors.Is(err, ErrSaturated) {
			t.Fatalf("Calibrate = %v, want ErrSaturated", err)
		}
		// The failure path does not restore: the device stays at the
		// test gain, positive bias, single mode.
		if m.regs[regConfigB] != byte(Gain440)<<5 {
			t.Errorf("CONFIG_B = 0x%02X, want test gain 0x%02X", m.regs[regConfigB], byte(Gain440)<<5)
		}
		if m.regs[regConfigA]&fieldBias.mask() != byte(BiasPositive) {
			t.Errorf("CONFIG_A bias bits = 0x%02X, want positive", m.regs[regConfigA]&fieldBias.mask())
		}
		if m.regs[regMode] != byte(ModeSingle) {
			t.Errorf("MODE = 0x%02X, want single", m.regs[regMode])
		}
		if d.CachedGain() != Gain440 {
			t.Errorf("cached gain = %d, want test gain %d", d.CachedGain(), Gain440)
		}
	})
}

func TestCalibrateNullField(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)
	d.scale[Gain1370] = [3]float64{3, 3, 3}
	m.pushSample([2]byte{0x00, 0x64}, [2]byte{0x00, 0x64}, [2]byte{0x00, 0x64})
	m.pushSample([2]byte{0x00, 0x64}, [2]byte{0x00, 0x64}, [2]byte{0x00, 0x00}) // y = 0

	err := d.Calibrate(int(Gain1370))
	if !errors.Is(err, ErrNullField) {
		t.Fatalf("Calibrate = %v, want ErrNullField", err)
	}
	x, y, z := d.ScaleFactors(Gain1370)
	if x != 1 || y != 1 || z != 1 {
		t.Errorf("scale factors (%v,%v,%v), want reset to identity", x, y, z)
	}
}

func TestCalibrateBusError(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)
	d.scale[Gain230] = [3]float64{4, 4, 4}
	m.failW[regConfigB] = true

	if err := d.Calibrate(int(Gain230)); err == nil {
		t.Fatal("expected error when the gain write is nacked")
	}
	// Bus errors abort without resetting the table.
	x, _, _ := d.ScaleFactors(Gain230)
	if x != 4 {
		t.Errorf("x scale = %v, want untouched 4", x)
	}
}

func TestCalibrateOutOfRangeTarget(t *testing.T) {
	m := newMockTransport()
	d := newTestDev(t, m, nil)
	if err := d.Calibrate(8); err == nil {
		t.Error("expected error for target gain 8")
	}
}
