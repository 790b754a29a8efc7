// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hmc5883l

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// Transport is the register-level bus under the driver. Every call is a
// blocking round trip; an error means the transfer did not take effect and
// any returned values are unspecified. The device address is bound at
// transport construction.
type Transport interface {
	// WriteByte writes value to a register.
	WriteByte(reg, value byte) error
	// ReadByte reads a single register.
	ReadByte(reg byte) (byte, error)
	// ReadBytes fills p starting at reg, auto-incrementing. A short
	// transfer is an error.
	ReadBytes(reg byte, p []byte) error
}

type i2cTransport struct {
	dev i2c.Dev
}

// NewI2CTransport binds addr on bus as a register transport.
func NewI2CTransport(bus i2c.Bus, addr uint16) Transport {
	return &i2cTransport{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

func (t *i2cTransport) WriteByte(reg, value byte) error {
	if err := t.dev.Tx([]byte{reg, value}, nil); err != nil {
		return fmt.Errorf("hmc5883l: write reg 0x%02X: %w", reg, err)
	}
	return nil
}

func (t *i2cTransport) ReadByte(reg byte) (byte, error) {
	var buf [1]byte
	if err := t.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("hmc5883l: read reg 0x%02X: %w", reg, err)
	}
	return buf[0], nil
}

func (t *i2cTransport) ReadBytes(reg byte, p []byte) error {
	if err := t.dev.Tx([]byte{reg}, p); err != nil {
		return fmt.Errorf("hmc5883l: read %d bytes at reg 0x%02X: %w", len(p), reg, err)
	}
	return nil
}
