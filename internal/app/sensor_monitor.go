// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sms_beacon/internal/config"
	"github.com/relabs-tech/sms_beacon/internal/sensors"
)

// RunSensorMonitor prints every reading from the configured sensors until
// ctx is cancelled. With SENSOR_DRIVER=mock it needs no hardware.
func RunSensorMonitor(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	hub, err := sensors.Open(cfg, log)
	if err != nil {
		return err
	}
	defer hub.Close()

	n := watchSensors(hub, cfg.SensorDelay(), os.Stdout)
	if n == 0 {
		return fmt.Errorf("no sensors available with driver %q", cfg.SensorDriver)
	}

	<-ctx.Done()
	return nil
}

// watchSensors registers a printing listener with each default sensor and
// returns how many were found.
func watchSensors(hub *sensors.Hub, delay time.Duration, w io.Writer) int {
	var mu sync.Mutex
	l := sensors.ListenerFunc(func(ev sensors.Event) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[%-11s] %-22s %10.3f\n", ev.Kind, ev.Source, ev.Value)
	})

	n := 0
	for _, kind := range []sensors.Kind{sensors.Pressure, sensors.Temperature, sensors.Gravity} {
		if hub.Register(l, hub.DefaultSensor(kind), delay) {
			n++
		}
	}
	return n
}
