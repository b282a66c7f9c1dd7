// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/sms_beacon/internal/beacon"
	"github.com/relabs-tech/sms_beacon/internal/config"
	"github.com/relabs-tech/sms_beacon/internal/gps"
	"github.com/relabs-tech/sms_beacon/internal/logging"
	"github.com/relabs-tech/sms_beacon/internal/mirror"
	"github.com/relabs-tech/sms_beacon/internal/sensors"
	"github.com/relabs-tech/sms_beacon/internal/sms"
	"github.com/relabs-tech/sms_beacon/internal/status"
)

// RunBeacon builds every component from cfg and runs until ctx is
// cancelled or SIGINT/SIGTERM arrives. SIGUSR1 pauses and SIGUSR2 resumes.
func RunBeacon(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	hub, err := sensors.Open(cfg, logging.Component(log, "sensors"))
	if err != nil {
		return err
	}
	defer hub.Close()

	sender, closeSender, err := openSender(cfg, log)
	if err != nil {
		return err
	}
	defer closeSender()

	board := status.NewBoard()
	sinks := []beacon.Sink{sms.NewDispatcher(sender, cfg.SMSDestinations, logging.Component(log, "sms"))}

	var mq *mirror.MQTT
	if cfg.MQTTBroker != "" {
		mq, err = mirror.Connect(cfg, logging.Component(log, "mirror"))
		if err != nil {
			log.WithError(err).Warn("running without MQTT mirror")
		} else {
			defer mq.Close()
			sinks = append(sinks, mq)
		}
	}

	ctrl := NewController(hub, board, Settings{
		Locations:    locationSources(cfg),
		MinInterval:  cfg.GPSMinInterval(),
		SensorDelay:  cfg.SensorDelay(),
		Period:       cfg.SMSPeriod(),
		InitialDelay: cfg.SMSInitialDelay(),
	}, logging.Component(log, "beacon"), sinks...)

	auxCtx, stopAux := context.WithCancel(ctx)
	var aux sync.WaitGroup
	defer func() {
		stopAux()
		aux.Wait()
	}()

	if mq != nil {
		aux.Add(1)
		go func() {
			defer aux.Done()
			mq.WatchStatus(auxCtx, board)
		}()
	}

	if cfg.DisplayEnabled {
		oled, err := openDisplay(cfg.DisplayI2CBus)
		if err != nil {
			log.WithError(err).Warn("running without display")
		} else {
			defer oled.Close()
			aux.Add(1)
			go func() {
				defer aux.Done()
				status.RunDisplay(auxCtx, oled, board, cfg.DisplayInterval(), logging.Component(log, "display"))
			}()
		}
	}

	if cfg.WebServerPort > 0 {
		srv := status.NewServer(board, ctrl, logging.Component(log, "web"))
		aux.Add(1)
		go func() {
			defer aux.Done()
			if err := srv.Run(auxCtx, cfg.WebServerPort); err != nil {
				log.WithError(err).Error("web server stopped")
			}
		}()
	}

	if err := ctrl.Create(ctx); err != nil {
		return err
	}
	ctrl.Resume()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	handleLifecycle(ctx, sigCh, ctrl, log)

	ctrl.Destroy()
	return nil
}

// handleLifecycle maps signals onto lifecycle calls and returns on
// SIGINT, SIGTERM or ctx cancellation.
func handleLifecycle(ctx context.Context, sigCh <-chan os.Signal, lc status.Lifecycle, log logrus.FieldLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				lc.Pause()
			case syscall.SIGUSR2:
				lc.Resume()
			default:
				log.Infof("received %v, shutting down", sig)
				return
			}
		}
	}
}

func openSender(cfg *config.Config, log logrus.FieldLogger) (sms.Sender, func(), error) {
	smsLog := logging.Component(log, "sms")
	if cfg.SMSDriver == "log" {
		smsLog.Warn("SMS driver is log: messages are not sent")
		return sms.LogSender{Log: smsLog}, func() {}, nil
	}

	modem, err := sms.OpenModem(cfg.ModemSerialPort, uint(cfg.ModemBaudRate), cfg.ModemTimeout(), smsLog)
	if err != nil {
		return nil, nil, fmt.Errorf("open modem: %w", err)
	}
	return modem, func() { modem.Close() }, nil
}

func locationSources(cfg *config.Config) []LocationSource {
	var out []LocationSource
	if cfg.GPSSerialPort != "" {
		out = append(out, LocationSource{
			Name:   "gps",
			Source: gps.SerialSource{PortName: cfg.GPSSerialPort, BaudRate: uint(cfg.GPSBaudRate)},
		})
	}
	if cfg.NetworkNMEAAddr != "" {
		out = append(out, LocationSource{
			Name:   "network",
			Source: gps.TCPSource{Addr: cfg.NetworkNMEAAddr},
		})
	}
	return out
}

func openDisplay(busName string) (*status.OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return status.OpenOLED(busName)
}
