// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hmc5883l

// BitField describes one named field inside a register, for the register
// debug tooling.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo is display metadata for one register.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R" or "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// RegisterMap returns metadata for the full HMC5883L register set.
func RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: "0x00", Name: "CONFIG_A", Description: "Configuration Register A", Access: "RW", Default: "0x10",
			BitFields: []BitField{
				{Bits: "6:5", Name: "MA", Description: "Samples averaged per measurement output", Values: "0=1, 1=2, 2=4, 3=8"},
				{Bits: "4:2", Name: "DO", Description: "Data output rate", Values: "0=0.75Hz, 1=1.5Hz, 2=3Hz, 3=7.5Hz, 4=15Hz, 5=30Hz, 6=75Hz"},
				{Bits: "1:0", Name: "MS", Description: "Measurement bias", Values: "0=Normal, 1=Positive, 2=Negative"},
			}},
		{Address: "0x01", Name: "CONFIG_B", Description: "Configuration Register B", Access: "RW", Default: "0x20",
			BitFields: []BitField{
				{Bits: "7:5", Name: "GN", Description: "Gain (LSB/Gauss)", Values: "0=1370, 1=1090, 2=820, 3=660, 4=440, 5=390, 6=330, 7=230"},
				{Bits: "4:0", Name: "0", Description: "Must be written as zero"},
			}},
		{Address: "0x02", Name: "MODE", Description: "Mode Register", Access: "RW", Default: "0x01",
			BitFields: []BitField{
				{Bits: "1:0", Name: "MD", Description: "Operating mode", Values: "0=Continuous, 1=Single, 2/3=Idle"},
				{Bits: "7:2", Name: "0", Description: "Must be written as zero"},
			}},
		{Address: "0x03", Name: "DATAX_H", Description: "X-Axis Data High Byte", Access: "R"},
		{Address: "0x04", Name: "DATAX_L", Description: "X-Axis Data Low Byte", Access: "R"},
		{Address: "0x05", Name: "DATAZ_H", Description: "Z-Axis Data High Byte", Access: "R"},
		{Address: "0x06", Name: "DATAZ_L", Description: "Z-Axis Data Low Byte", Access: "R"},
		{Address: "0x07", Name: "DATAY_H", Description: "Y-Axis Data High Byte", Access: "R"},
		{Address: "0x08", Name: "DATAY_L", Description: "Y-Axis Data Low Byte", Access: "R"},
		{Address: "0x09", Name: "STATUS", Description: "Status Register", Access: "R",
			BitFields: []BitField{
				{Bits: "1", Name: "LOCK", Description: "Data output register lock; set while a partial read is pending"},
				{Bits: "0", Name: "RDY", Description: "Data ready"},
			}},
		{Address: "0x0A", Name: "ID_A", Description: "Identification Register A", Access: "R", Default: "0x48 ('H')"},
		{Address: "0x0B", Name: "ID_B", Description: "Identification Register B", Access: "R", Default: "0x34 ('4')"},
		{Address: "0x0C", Name: "ID_C", Description: "Identification Register C", Access: "R", Default: "0x33 ('3')"},
	}
}

// ReadRegister exposes a raw register read for the debug tooling.
func (d *Dev) ReadRegister(reg byte) (byte, error) {
	return d.tp.ReadByte(reg)
}

// WriteRegister exposes a raw register write for the debug tooling. It does
// not refresh the cached gain/mode; use SetGain/SetMode for those.
func (d *Dev) WriteRegister(reg, value byte) error {
	return d.tp.WriteByte(reg, value)
}

// DumpRegisters reads all 13 registers in address order.
func (d *Dev) DumpRegisters() ([13]byte, error) {
	var regs [13]byte
	for reg := byte(0); reg < 13; reg++ {
		v, err := d.tp.ReadByte(reg)
		if err != nil {
			return regs, err
		}
		regs[reg] = v
	}
	return regs, nil
}
