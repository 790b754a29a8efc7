// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/compass_computer/internal/heading"
)

func RunMockConsole() error {
	src := heading.NewMockSource()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		h, err := src.Next()
		if err != nil {
			return err
		}

		fmt.Printf("HEADING=%6.2f°\n", h.Degrees)
	}
	return nil
}
