// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/sms_beacon/internal/imu"
)

type mockSource struct {
	kind  Kind
	start time.Time
}

// NewMockSource creates a source that generates smoothly changing values
// around typical sea-level readings.
func NewMockSource(kind Kind) Source {
	return &mockSource{kind: kind, start: time.Now()}
}

func (m *mockSource) Kind() Kind   { return m.kind }
func (m *mockSource) Name() string { return "mock/" + m.kind.String() }

func (m *mockSource) Read() (float64, error) {
	elapsed := time.Since(m.start).Seconds()

	switch m.kind {
	case Pressure:
		return 1013.25 + 2*math.Sin(elapsed/60), nil
	case Temperature:
		return 20 + 1.5*math.Cos(elapsed/90), nil
	default:
		return imu.StandardGravity + 0.05*math.Sin(elapsed*3), nil
	}
}
