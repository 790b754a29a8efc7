// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/relabs-tech/compass_computer/internal/hmc5883l"
	"github.com/relabs-tech/compass_computer/internal/sensors"
)

// WebSocket message for register debugging. Address and Value are hex or
// decimal strings ("0x0A" or "10").
type RegisterCmd struct {
	Action  string `json:"action"` // "read", "read_all", "write", "map", "reinit"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is sent back for every command.
type RegisterResponse struct {
	Type        string                  `json:"type"` // "register_data", "register_map", "status", "error"
	Address     string                  `json:"addr,omitempty"`
	Value       string                  `json:"value,omitempty"`
	Registers   map[string]string       `json:"registers,omitempty"` // for bulk read
	Timestamp   string                  `json:"timestamp,omitempty"`
	Message     string                  `json:"message,omitempty"`
	RegisterMap []hmc5883l.RegisterInfo `json:"register_map,omitempty"`
}

// HandleRegisterDebugWS serves the register-level debug tool. Raw writes can
// put the device into any state; the "reinit" action reprograms it from the
// configuration file.
func HandleRegisterDebugWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			log.Printf("register debug: websocket read error: %v", err)
			return
		}

		resp := handleRegisterCmd(cmd)
		resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("register debug: websocket write error: %v", err)
			return
		}
	}
}

func handleRegisterCmd(cmd RegisterCmd) RegisterResponse {
	mgr := sensors.GetMagManager()

	switch cmd.Action {
	case "map":
		return RegisterResponse{Type: "register_map", RegisterMap: hmc5883l.RegisterMap()}

	case "read":
		reg, err := parseRegAddr(cmd.Address)
		if err != nil {
			return errorResponse(err)
		}
		value, err := mgr.ReadRegister(reg)
		if err != nil {
			return errorResponse(err)
		}
		return RegisterResponse{
			Type:    "register_data",
			Address: fmt.Sprintf("0x%02X", reg),
			Value:   fmt.Sprintf("0x%02X", value),
		}

	case "read_all":
		regs, err := mgr.DumpRegisters()
		if err != nil {
			return errorResponse(err)
		}
		out := make(map[string]string, len(regs))
		for reg, value := range regs {
			out[fmt.Sprintf("0x%02X", reg)] = fmt.Sprintf("0x%02X", value)
		}
		return RegisterResponse{Type: "register_data", Registers: out}

	case "write":
		reg, err := parseRegAddr(cmd.Address)
		if err != nil {
			return errorResponse(err)
		}
		value, err := strconv.ParseUint(cmd.Value, 0, 8)
		if err != nil {
			return errorResponse(fmt.Errorf("invalid value %q: %w", cmd.Value, err))
		}
		if err := mgr.WriteRegister(reg, byte(value)); err != nil {
			return errorResponse(err)
		}
		return RegisterResponse{
			Type:    "status",
			Address: fmt.Sprintf("0x%02X", reg),
			Value:   fmt.Sprintf("0x%02X", value),
			Message: "written",
		}

	case "reinit":
		if err := mgr.Reprogram(); err != nil {
			return errorResponse(err)
		}
		return RegisterResponse{Type: "status", Message: "device reprogrammed from config"}

	default:
		return errorResponse(fmt.Errorf("unknown action %q", cmd.Action))
	}
}

func parseRegAddr(s string) (byte, error) {
	reg, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid register address %q: %w", s, err)
	}
	if reg > 0x0C {
		return 0, fmt.Errorf("register address 0x%02X out of range (0x00-0x0C)", reg)
	}
	return byte(reg), nil
}

func errorResponse(err error) RegisterResponse {
	return RegisterResponse{Type: "error", Message: err.Error()}
}
