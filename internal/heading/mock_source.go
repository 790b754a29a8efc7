// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package heading

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock heading source that sweeps slowly around the
// compass rose with a little wobble.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (Reading, error) {
	elapsed := time.Since(m.start).Seconds()

	return Reading{
		Degrees: Normalize(elapsed*12 + 5*math.Sin(elapsed*0.8)),
		Source:  "mock",
		Time:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}
