// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/sms_beacon/internal/imu"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
)

// accelReader is the part of the MPU9250 driver the gravity source needs.
type accelReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

// GravitySource reports the magnitude of the acceleration vector measured
// by an MPU9250. At rest this is gravity; the value includes any linear
// acceleration of the device.
type GravitySource struct {
	name    string
	lsbPerG float64

	mu  sync.Mutex
	dev accelReader
}

// OpenGravity initializes an MPU9250 over SPI with the given chip-select
// pin. periph's host must already be initialized.
func OpenGravity(spiDev, csPin string, lsbPerG float64) (*GravitySource, error) {
	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	return newGravitySource("mpu9250:"+spiDev, dev, lsbPerG), nil
}

func newGravitySource(name string, dev accelReader, lsbPerG float64) *GravitySource {
	return &GravitySource{name: name, lsbPerG: lsbPerG, dev: dev}
}

func (s *GravitySource) Kind() Kind   { return Gravity }
func (s *GravitySource) Name() string { return s.name }

// ReadRaw reads one accelerometer sample.
func (s *GravitySource) ReadRaw() (imu.AccelRaw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ax, err := s.dev.GetAccelerationX()
	if err != nil {
		return imu.AccelRaw{}, fmt.Errorf("%s accel X: %w", s.name, err)
	}
	ay, err := s.dev.GetAccelerationY()
	if err != nil {
		return imu.AccelRaw{}, fmt.Errorf("%s accel Y: %w", s.name, err)
	}
	az, err := s.dev.GetAccelerationZ()
	if err != nil {
		return imu.AccelRaw{}, fmt.Errorf("%s accel Z: %w", s.name, err)
	}

	return imu.AccelRaw{Source: s.name, Ax: ax, Ay: ay, Az: az}, nil
}

// Read returns |a| in m/s².
func (s *GravitySource) Read() (float64, error) {
	raw, err := s.ReadRaw()
	if err != nil {
		return 0, err
	}
	return raw.Magnitude(s.lsbPerG), nil
}
