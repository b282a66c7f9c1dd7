// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/sms_beacon/internal/config"
)

// Open builds the sensor hub for the configured driver. With the periph
// driver a sensor that fails to initialize is logged and left out, the
// same as a device without that sensor; DefaultSensor then returns nil for
// its kind.
func Open(cfg *config.Config, log logrus.FieldLogger) (*Hub, error) {
	switch cfg.SensorDriver {
	case "none":
		log.Info("sensors disabled")
		return NewHub(log), nil

	case "mock":
		log.Info("using mock sensors")
		return NewHub(log,
			NewMockSource(Pressure),
			NewMockSource(Temperature),
			NewMockSource(Gravity),
		), nil

	case "periph":
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph host init: %w", err)
		}

		var sources []Source
		var closers []func() error

		if cfg.BMPSPIDevice != "" {
			bmp, err := OpenBMP(cfg.BMPSPIDevice)
			if err != nil {
				log.WithError(err).Warn("barometer unavailable, pressure and temperature will not be reported")
			} else {
				log.Infof("barometer initialized on %s", cfg.BMPSPIDevice)
				sources = append(sources, bmp.Pressure(), bmp.Temperature())
				closers = append(closers, bmp.Close)
			}
		}

		if cfg.IMUSPIDevice != "" {
			g, err := OpenGravity(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelLSBPerG)
			if err != nil {
				log.WithError(err).Warn("accelerometer unavailable, gravity will not be reported")
			} else {
				log.Infof("accelerometer initialized on %s", cfg.IMUSPIDevice)
				sources = append(sources, g)
			}
		}

		h := NewHub(log, sources...)
		h.closers = closers
		return h, nil

	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.SensorDriver)
	}
}
