// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/compass_computer/internal/config"
	"github.com/relabs-tech/compass_computer/internal/heading"
	"github.com/relabs-tech/compass_computer/internal/hmc5883l"
	"github.com/relabs-tech/compass_computer/internal/mag"
)

// MagManager owns the single HMC5883L on the compass bus. The driver itself
// is not safe for concurrent use, so every tool (producer, calibration
// handler, register debug) goes through the manager's mutex.
type MagManager struct {
	mu          sync.Mutex
	bus         i2c.BusCloser
	dev         *hmc5883l.Dev
	busName     string
	declination float64
	available   bool
}

var (
	magManager     *MagManager
	magManagerOnce sync.Once
)

// GetMagManager returns the process-wide magnetometer manager.
func GetMagManager() *MagManager {
	magManagerOnce.Do(func() {
		magManager = &MagManager{}
	})
	return magManager
}

// Init opens the configured I2C bus and brings up the magnetometer.
// Idempotent: a second call on an initialized manager is a no-op.
func (m *MagManager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.available {
		return nil
	}

	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("mag: periph host init: %w", err)
	}

	busName := cfg.MagI2CBus
	if busName == "" {
		busName = "1"
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("mag: i2c open on bus %s: %w", busName, err)
	}

	opts := hmc5883l.Opts{
		Addr:      cfg.MagI2CAddr,
		Averaging: hmc5883l.Averaging(cfg.MagAveraging),
		Rate:      hmc5883l.Rate(cfg.MagRate),
		Gain:      hmc5883l.Gain(cfg.MagGain),
		Mode:      hmc5883l.ModeSingle,
	}
	if cfg.MagMode == "continuous" {
		opts.Mode = hmc5883l.ModeContinuous
	}

	dev, err := hmc5883l.New(bus, &opts)
	if err != nil {
		bus.Close()
		return fmt.Errorf("mag: device init: %w", err)
	}

	a, b, c, err := dev.ID()
	if err != nil {
		bus.Close()
		return fmt.Errorf("mag: reading identification: %w", err)
	}
	log.Printf("mag: HMC5883L on bus %s, ID=%q%q%q, gain=%d, mode=%s",
		busName, a, b, c, cfg.MagGain, cfg.MagMode)

	if cfg.MagCalibrateOnStart {
		if err := dev.Calibrate(int(opts.Gain)); err != nil {
			log.Printf("mag: WARNING: startup self-test calibration failed: %v", err)
			// The failure path leaves the device in the test
			// configuration; reprogram it before use.
			if err := dev.Init(opts.Averaging, opts.Rate, opts.Gain, opts.Mode); err != nil {
				bus.Close()
				return fmt.Errorf("mag: reinit after failed calibration: %w", err)
			}
		} else {
			sx, sy, sz := dev.ScaleFactors(opts.Gain)
			log.Printf("mag: self-test scale factors: X=%.4f Y=%.4f Z=%.4f", sx, sy, sz)
		}
	}

	m.bus = bus
	m.dev = dev
	m.busName = "i2c" + busName
	m.declination = cfg.MagDeclinationDeg
	m.available = true
	return nil
}

// IsAvailable reports whether Init has succeeded.
func (m *MagManager) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Next reads one scaled 3-axis sample.
func (m *MagManager) Next() (mag.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return mag.Sample{}, fmt.Errorf("mag: not initialized")
	}
	x, y, z, err := m.dev.Heading()
	if err != nil {
		return mag.Sample{}, fmt.Errorf("mag: read: %w", err)
	}
	fx, fy, fz := float64(x), float64(y), float64(z)
	return mag.Sample{
		Source: m.busName,
		Mx:     x,
		My:     y,
		Mz:     z,
		Norm:   math.Sqrt(fx*fx + fy*fy + fz*fz),
		Time:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Heading reads one sample and reduces it to a planar compass heading with
// the configured declination applied.
func (m *MagManager) Heading() (heading.Reading, error) {
	s, err := m.Next()
	if err != nil {
		return heading.Reading{}, err
	}
	return heading.Reading{
		Degrees: heading.FromComponents(float64(s.Mx), float64(s.My), m.declination),
		Source:  s.Source,
		Time:    s.Time,
	}, nil
}

// Calibrate runs the device self test for one gain (negative = current) and
// returns the stored scale factors.
func (m *MagManager) Calibrate(target int) (sx, sy, sz float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return 0, 0, 0, fmt.Errorf("mag: not initialized")
	}
	g := m.dev.CachedGain()
	if target >= 0 {
		g = hmc5883l.Gain(target)
	}
	if err := m.dev.Calibrate(target); err != nil {
		return 0, 0, 0, err
	}
	sx, sy, sz = m.dev.ScaleFactors(g)
	return sx, sy, sz, nil
}

// ScaleFactors returns the stored multipliers for one gain.
func (m *MagManager) ScaleFactors(g hmc5883l.Gain) (sx, sy, sz float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev.ScaleFactors(g)
}

// Reprogram rewrites the device configuration, e.g. after a failed
// calibration left it in the test state.
func (m *MagManager) Reprogram() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return fmt.Errorf("mag: not initialized")
	}
	cfg := config.Get()
	mode := hmc5883l.ModeSingle
	if cfg.MagMode == "continuous" {
		mode = hmc5883l.ModeContinuous
	}
	return m.dev.Init(
		hmc5883l.Averaging(cfg.MagAveraging),
		hmc5883l.Rate(cfg.MagRate),
		hmc5883l.Gain(cfg.MagGain),
		mode,
	)
}

// ReadRegister exposes a raw register read for the debug tooling.
func (m *MagManager) ReadRegister(reg byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return 0, fmt.Errorf("mag: not initialized")
	}
	return m.dev.ReadRegister(reg)
}

// WriteRegister exposes a raw register write for the debug tooling.
func (m *MagManager) WriteRegister(reg, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return fmt.Errorf("mag: not initialized")
	}
	return m.dev.WriteRegister(reg, value)
}

// DumpRegisters reads the whole register file.
func (m *MagManager) DumpRegisters() ([13]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return [13]byte{}, fmt.Errorf("mag: not initialized")
	}
	return m.dev.DumpRegisters()
}

// Close releases the bus.
func (m *MagManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus == nil {
		return nil
	}
	err := m.bus.Close()
	m.bus = nil
	m.dev = nil
	m.available = false
	return err
}
