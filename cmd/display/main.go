// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/compass_computer/internal/app"
	"github.com/relabs-tech/compass_computer/internal/config"
)

func main() {
	log.Println("starting compass-computer OLED display (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("compass_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
